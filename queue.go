/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package payrec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/blnkfinance/payrec/config"
	"github.com/blnkfinance/payrec/internal/messaging"
	redis_db "github.com/blnkfinance/payrec/internal/redis-db"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

const (
	TaskSyncTrigger   = "sync:trigger"
	TaskNotifyMessage = "notify:message"
)

// syncTriggerDedupWindow keeps a burst of webhooks down to one trigger task.
const syncTriggerDedupWindow = 5 * time.Second

// Queue represents the asynq client used to hand work to the workers.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
	cfg       config.QueueConfig
}

type syncTriggerPayload struct {
	Source string `json:"source"`
}

// NewQueue initializes a new Queue instance with the provided configuration.
//
// Parameters:
// - conf *config.Configuration: The configuration for the queue.
//
// Returns:
// - *Queue: A pointer to the newly created Queue instance.
func NewQueue(conf *config.Configuration) *Queue {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB, TLSConfig: redisOption.TLSConfig}
	return &Queue{
		Client:    asynq.NewClient(queueOptions),
		Inspector: asynq.NewInspector(queueOptions),
		cfg:       conf.Queue,
	}
}

// EnqueueSyncTrigger asks a worker to trigger the orchestrator. Triggers
// inside the dedup window are dropped since the orchestrator coalesces them
// anyway.
func (q *Queue) EnqueueSyncTrigger(ctx context.Context, source string) error {
	ctx, span := otel.Tracer("payrec.queue").Start(ctx, "EnqueueSyncTrigger")
	defer span.End()

	payload, err := json.Marshal(syncTriggerPayload{Source: source})
	if err != nil {
		return err
	}
	task := asynq.NewTask(TaskSyncTrigger, payload)
	_, err = q.Client.EnqueueContext(ctx, task, asynq.Queue(q.cfg.SyncQueue), asynq.Unique(syncTriggerDedupWindow), asynq.MaxRetry(3))
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	if err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// EnqueueMessage hands an outbound customer message to the messaging queue.
func (q *Queue) EnqueueMessage(ctx context.Context, msg messaging.Message) error {
	ctx, span := otel.Tracer("payrec.queue").Start(ctx, "EnqueueMessage")
	defer span.End()

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	info, err := q.Client.EnqueueContext(ctx, asynq.NewTask(TaskNotifyMessage, payload), asynq.Queue(q.cfg.MessagingQueue), asynq.MaxRetry(5))
	if err != nil {
		span.RecordError(err)
		log.Println(err, info)
		return err
	}
	logrus.WithField("template", msg.Template).Debug("message enqueued")
	return nil
}

// Close releases the asynq client and inspector connections.
func (q *Queue) Close() error {
	if err := q.Inspector.Close(); err != nil {
		return err
	}
	return q.Client.Close()
}

// ProcessSyncTrigger is the worker handler for sync:trigger tasks.
func (p *Payrec) ProcessSyncTrigger(_ context.Context, task *asynq.Task) error {
	var payload syncTriggerPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode sync trigger: %v: %w", err, asynq.SkipRetry)
	}
	if payload.Source == "" {
		payload.Source = "webhook"
	}
	result := p.orchestrator.Trigger(payload.Source)
	logrus.WithFields(logrus.Fields{"source": payload.Source, "status": result.Status, "run_id": result.RunID}).Info("sync trigger processed")
	return nil
}

// ProcessMessage is the worker handler for notify:message tasks. A provider
// that is not configured drops the message without retrying.
func (p *Payrec) ProcessMessage(ctx context.Context, task *asynq.Task) error {
	var msg messaging.Message
	if err := json.Unmarshal(task.Payload(), &msg); err != nil {
		return fmt.Errorf("decode message: %v: %w", err, asynq.SkipRetry)
	}
	err := p.messenger.Send(ctx, msg)
	if errors.Is(err, messaging.ErrNotConfigured) {
		logrus.WithField("template", msg.Template).Debug("messaging not configured, message dropped")
		return nil
	}
	if errors.Is(err, messaging.ErrInvalidContact) {
		logrus.WithError(err).WithField("template", msg.Template).Warn("message dropped")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if err != nil {
		logrus.WithError(err).WithField("template", msg.Template).Warn("failed to send message")
		return err
	}
	return nil
}
