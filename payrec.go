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
	"embed"
	"errors"
	"time"

	"github.com/blnkfinance/payrec/config"
	"github.com/blnkfinance/payrec/database"
	"github.com/blnkfinance/payrec/internal/cache"
	redlock "github.com/blnkfinance/payrec/internal/lock"
	"github.com/blnkfinance/payrec/internal/messaging"
	"github.com/blnkfinance/payrec/internal/ocr"
	"github.com/blnkfinance/payrec/internal/platform"
	redis_db "github.com/blnkfinance/payrec/internal/redis-db"
	"github.com/blnkfinance/payrec/internal/storage"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

//go:embed sql/*.sql
var SQLFiles embed.FS

var errPlatformNotConfigured = errors.New("platform client is not configured")

// taskQueue is the detached work the service hands to the asynq workers.
type taskQueue interface {
	EnqueueSyncTrigger(ctx context.Context, source string) error
	EnqueueMessage(ctx context.Context, msg messaging.Message) error
}

// Payrec is the reconciliation service. It owns the datasource, the remote
// store client and the sync orchestrator.
type Payrec struct {
	datasource   database.IDataSource
	redis        redis.UniversalClient
	queue        taskQueue
	platform     platform.Client
	ocr          ocr.Extractor
	storage      storage.Uploader
	messenger    messaging.Sender
	cache        cache.Cache
	debouncer    *redlock.Debouncer
	orchestrator *Orchestrator
	config       *config.Configuration
	now          func() time.Time
}

type Option func(*Payrec)

func WithRedis(client redis.UniversalClient) Option {
	return func(p *Payrec) { p.redis = client }
}

func WithQueue(q taskQueue) Option {
	return func(p *Payrec) { p.queue = q }
}

func WithPlatform(c platform.Client) Option {
	return func(p *Payrec) { p.platform = c }
}

func WithOCR(e ocr.Extractor) Option {
	return func(p *Payrec) { p.ocr = e }
}

func WithStorage(u storage.Uploader) Option {
	return func(p *Payrec) { p.storage = u }
}

func WithMessenger(s messaging.Sender) Option {
	return func(p *Payrec) { p.messenger = s }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Payrec) { p.now = now }
}

// New initializes a Payrec instance with the provided datasource.
// Collaborators not supplied through options are built from the loaded
// configuration.
//
// Parameters:
// - db database.IDataSource: The datasource for database operations.
// - opts ...Option: Overrides for the redis client, queue and collaborators.
//
// Returns:
// - *Payrec: The initialized service.
// - error: An error if the configuration is missing or a collaborator cannot be built.
func New(db database.IDataSource, opts ...Option) (*Payrec, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	p := &Payrec{datasource: db, config: cfg, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}

	if p.redis == nil {
		redisClient, err := redis_db.NewRedisClient([]string{cfg.Redis.Dns}, cfg.Redis.SkipTLSVerify)
		if err != nil {
			return nil, err
		}
		p.redis = redisClient.Client()
	}
	if p.queue == nil {
		p.queue = NewQueue(cfg)
	}
	if p.platform == nil && cfg.Platform.BaseURL != "" {
		client, err := platform.NewHTTPClient(platform.Config{
			BaseURL:      cfg.Platform.BaseURL,
			StoreID:      cfg.Platform.StoreID,
			AccessToken:  cfg.Platform.AccessToken,
			UserAgent:    cfg.Platform.UserAgent,
			RequestDelay: time.Duration(cfg.Platform.RequestDelayMs) * time.Millisecond,
		})
		if err != nil {
			return nil, err
		}
		p.platform = client
	}
	if p.ocr == nil {
		p.ocr = ocr.NewHTTPExtractor(cfg.OCR.Url, cfg.OCR.ApiKey, time.Duration(cfg.OCR.Timeout)*time.Second)
	}
	if p.storage == nil {
		uploader, err := storage.New(context.Background(), cfg.Storage)
		if err != nil {
			return nil, err
		}
		p.storage = uploader
	}
	if p.messenger == nil {
		p.messenger = messaging.NewHTTPSender(cfg.Messaging.Url, cfg.Messaging.Token, cfg.Messaging.DefaultRegion)
	}

	p.cache = cache.NewRedisCache(p.redis)
	p.debouncer = redlock.NewDebouncer(p.redis, "payrec:debounce", uuid.NewString(), cfg.DebounceWindow())
	p.orchestrator = NewOrchestrator(p.runSync, syncRunTimeout)
	return p, nil
}

// Orchestrator exposes the single-flight sync runner.
func (p *Payrec) Orchestrator() *Orchestrator {
	return p.orchestrator
}

func (p *Payrec) platformClient() (platform.Client, error) {
	if p.platform == nil {
		return nil, errPlatformNotConfigured
	}
	return p.platform, nil
}
