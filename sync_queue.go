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
	"strings"
	"time"

	"github.com/blnkfinance/payrec/internal/apierror"
	"github.com/blnkfinance/payrec/model"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

// statsWindow is the trailing window the queue statistics cover.
const statsWindow = 24 * time.Hour

// numberResourcePrefix marks an order_sync resource id that still carries
// the order number because the remote id is not known yet.
const numberResourcePrefix = "number:"

// SyncRequest describes a unit of sync work to enqueue.
type SyncRequest struct {
	Type        model.SyncType
	ResourceID  string
	OrderNumber string
	Payload     interface{}
}

func (r SyncRequest) validate() error {
	switch r.Type {
	case model.SyncOrder, model.SyncOrderCancel:
	default:
		return apierror.NewAPIError(apierror.ErrInvalidInput, "unknown sync item type "+string(r.Type), nil)
	}
	if strings.TrimSpace(r.ResourceID) == "" {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "resource id is required", nil)
	}
	return nil
}

// NextRetry decides what happens to an item after its attempts-th failed
// attempt. Out of attempts it is failed for good; otherwise it goes back to
// pending after base * 2^(attempts-1).
func NextRetry(attempts, maxAttempts int, base time.Duration, now time.Time) (model.SyncStatus, time.Time) {
	if attempts >= maxAttempts {
		return model.SyncFailed, now
	}
	if attempts < 1 {
		attempts = 1
	}
	return model.SyncPending, now.Add(base * time.Duration(1<<uint(attempts-1)))
}

// EnqueueSync durably records a unit of sync work. Enqueueing an identity
// that is already pending or processing only refreshes its payload, and
// created is false.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - req SyncRequest: The type, resource id and payload of the work.
//
// Returns:
// - *model.SyncQueueItem: The stored item.
// - bool: Whether a new item was created.
// - error: INVALID_INPUT for a malformed request, or a storage error.
func (p *Payrec) EnqueueSync(ctx context.Context, req SyncRequest) (*model.SyncQueueItem, bool, error) {
	ctx, span := otel.Tracer("payrec.sync").Start(ctx, "EnqueueSync")
	defer span.End()

	if err := req.validate(); err != nil {
		return nil, false, err
	}

	var payload json.RawMessage
	if req.Payload != nil {
		raw, err := json.Marshal(req.Payload)
		if err != nil {
			return nil, false, apierror.NewAPIError(apierror.ErrInvalidInput, "sync payload is not serializable", err)
		}
		payload = raw
	}

	item, created, err := p.datasource.EnqueueSync(ctx, &model.SyncQueueItem{
		Type:        req.Type,
		ResourceID:  req.ResourceID,
		OrderNumber: req.OrderNumber,
		Payload:     payload,
		Status:      model.SyncPending,
		MaxAttempts: p.config.Sync.MaxAttempts,
		NextRetryAt: p.now(),
	})
	if err != nil {
		span.RecordError(err)
		return nil, false, err
	}

	logrus.WithFields(logrus.Fields{
		"sync_item_id": item.ID,
		"type":         item.Type,
		"resource_id":  item.ResourceID,
		"created":      created,
	}).Debug("sync item enqueued")
	return item, created, nil
}

func (p *Payrec) completeSync(ctx context.Context, item *model.SyncQueueItem) error {
	return p.datasource.CompleteSync(ctx, item.ID, p.now())
}

// failSync schedules the retry of a failed item. Invalid input never
// succeeds on retry, so it fails the item immediately.
func (p *Payrec) failSync(ctx context.Context, item *model.SyncQueueItem, cause error) (model.SyncStatus, error) {
	now := p.now()
	status, next := NextRetry(item.Attempts, item.MaxAttempts, p.config.SyncBaseDelay(), now)
	if apierror.Is(cause, apierror.ErrInvalidInput) {
		status, next = model.SyncFailed, now
	}

	logger := logrus.WithFields(logrus.Fields{
		"sync_item_id": item.ID,
		"type":         item.Type,
		"resource_id":  item.ResourceID,
		"attempts":     item.Attempts,
		"status":       status,
	})
	if status == model.SyncFailed {
		logger.WithError(cause).Error("sync item failed permanently")
	} else {
		logger.WithError(cause).WithField("next_retry_at", next).Warn("sync item failed, retry scheduled")
	}

	return status, p.datasource.FailSync(ctx, item.ID, status, next, cause.Error())
}

// CleanupSync deletes completed items older than the retention window.
func (p *Payrec) CleanupSync(ctx context.Context) (int64, error) {
	return p.datasource.CleanupSync(ctx, p.now().Add(-p.config.SyncRetention()))
}

// SyncQueueStats counts queue items by status over the trailing 24 hours.
func (p *Payrec) SyncQueueStats(ctx context.Context) (*model.SyncQueueStats, error) {
	return p.datasource.SyncQueueStats(ctx, p.now().Add(-statsWindow))
}

func (p *Payrec) ListSyncItems(ctx context.Context, status model.SyncStatus, limit int) ([]model.SyncQueueItem, error) {
	switch status {
	case model.SyncPending, model.SyncProcessing, model.SyncCompleted, model.SyncFailed:
	default:
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "unknown sync status "+string(status), nil)
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return p.datasource.ListSyncItems(ctx, status, limit)
}

// RecoverStuckSync returns items left in processing for longer than
// threshold, typically by a crashed worker, to the queue.
func (p *Payrec) RecoverStuckSync(ctx context.Context, threshold time.Duration) (int64, error) {
	if threshold < time.Minute {
		threshold = time.Minute
	}
	recovered, err := p.datasource.RecoverStuckSync(ctx, p.now().Add(-threshold))
	if err != nil {
		return 0, err
	}
	if recovered > 0 {
		logrus.WithField("recovered", recovered).Warn("recovered stuck sync items")
	}
	return recovered, nil
}
