package pg_listener

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// SyncChannel is the channel the sync_queue insert trigger notifies on.
const SyncChannel = "payrec_sync"

// EnqueuedItem is the payload of a sync queue insert notification.
type EnqueuedItem struct {
	ID         int64  `json:"id"`
	Type       string `json:"type"`
	ResourceID string `json:"resource_id"`
}

type HandlerFunc func(item EnqueuedItem)

type ListenerConfig struct {
	PgConnStr    string
	Channel      string
	MinReconnect time.Duration
	MaxReconnect time.Duration
	PingEvery    time.Duration
}

type DBListener struct {
	config  ListenerConfig
	handler HandlerFunc
}

func NewDBListener(config ListenerConfig, handler HandlerFunc) *DBListener {
	if config.Channel == "" {
		config.Channel = SyncChannel
	}
	if config.MinReconnect <= 0 {
		config.MinReconnect = 10 * time.Second
	}
	if config.MaxReconnect <= 0 {
		config.MaxReconnect = time.Minute
	}
	if config.PingEvery <= 0 {
		config.PingEvery = 90 * time.Second
	}
	return &DBListener{config: config, handler: handler}
}

// Start listens until ctx is cancelled. pq reconnects on its own; a nil
// notification marks a reconnect, after which the handler gets an empty item
// so callers can catch up on anything missed.
func (d *DBListener) Start(ctx context.Context) error {
	listener := pq.NewListener(d.config.PgConnStr, d.config.MinReconnect, d.config.MaxReconnect, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logrus.WithError(err).WithField("event", ev).Warn("postgres listener event")
		}
	})
	defer listener.Close()

	if err := listener.Listen(d.config.Channel); err != nil {
		return err
	}
	logrus.WithField("channel", d.config.Channel).Info("listening for postgres notifications")

	ticker := time.NewTicker(d.config.PingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			d.handleNotification(n)
		case <-ticker.C:
			if err := listener.Ping(); err != nil {
				logrus.WithError(err).Warn("postgres listener ping failed")
			}
		}
	}
}

func (d *DBListener) handleNotification(n *pq.Notification) {
	if n == nil {
		d.handler(EnqueuedItem{})
		return
	}

	var item EnqueuedItem
	if err := json.Unmarshal([]byte(n.Extra), &item); err != nil {
		logrus.WithError(err).WithField("channel", n.Channel).Warn("malformed notification payload")
		return
	}
	d.handler(item)
}
