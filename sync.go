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
	"errors"
	"fmt"
	"time"

	"github.com/blnkfinance/payrec/internal/notification"
	"github.com/blnkfinance/payrec/internal/platform"
	"github.com/blnkfinance/payrec/model"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

const (
	syncRunLockKey = "payrec:sync:run"
	syncRunTimeout = 10 * time.Minute
)

// ErrSyncRunHeld is returned when another instance holds the sync run lock.
var ErrSyncRunHeld = errors.New("sync run is in progress on another instance")

// SyncStatus is what the status API reports about synchronization.
type SyncStatus struct {
	Orchestrator OrchestratorStatus    `json:"orchestrator"`
	Queue        *model.SyncQueueStats `json:"queue"`
}

// TriggerSync starts an orchestrator run, or queues a rerun.
func (p *Payrec) TriggerSync(source string) TriggerResult {
	return p.orchestrator.Trigger(source)
}

func (p *Payrec) GetSyncStatus(ctx context.Context) (*SyncStatus, error) {
	stats, err := p.SyncQueueStats(ctx)
	if err != nil {
		return nil, err
	}
	return &SyncStatus{Orchestrator: p.orchestrator.Status(), Queue: stats}, nil
}

// RunSync runs one sync job inline, bypassing the orchestrator. The CLI uses
// it for one-shot runs.
func (p *Payrec) RunSync(ctx context.Context, source string) (model.SyncResult, error) {
	return p.runSync(ctx, source)
}

// runSync is the orchestrator job: discover remote orders missing locally,
// drain the queue up to the batch size, then clean up old completed items.
// A polling failure is reported but does not stop the drain.
func (p *Payrec) runSync(ctx context.Context, source string) (model.SyncResult, error) {
	ctx, span := otel.Tracer("payrec.sync").Start(ctx, "RunSync")
	defer span.End()

	var result model.SyncResult
	if p.config.Sync.DistributedGuard {
		lock, err := redislock.New(p.redis).Obtain(ctx, syncRunLockKey, syncRunTimeout, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			return result, ErrSyncRunHeld
		}
		if err != nil {
			return result, fmt.Errorf("obtain sync run lock: %w", err)
		}
		defer func() {
			if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				logrus.WithError(err).Warn("failed to release sync run lock")
			}
		}()
	}

	var errs []error
	if err := p.pollPlatform(ctx, &result); err != nil {
		logrus.WithError(err).WithField("source", source).Warn("polling the store failed")
		errs = append(errs, fmt.Errorf("poll: %w", err))
	}
	if err := p.drainSyncQueue(ctx, p.config.Sync.BatchSize, &result); err != nil {
		errs = append(errs, fmt.Errorf("drain: %w", err))
	}
	cleaned, err := p.CleanupSync(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("cleanup: %w", err))
	}
	result.Cleaned = int(cleaned)

	runErr := errors.Join(errs...)
	if runErr != nil {
		span.RecordError(runErr)
		notification.NotifyError(fmt.Errorf("sync run from %s: %w", source, runErr))
	}
	return result, runErr
}

// pollPlatform lists orders updated on the store within the poll window and
// enqueues an order_sync for each one the mirror does not have yet.
func (p *Payrec) pollPlatform(ctx context.Context, result *model.SyncResult) error {
	client, err := p.platformClient()
	if err != nil {
		return err
	}

	window := time.Duration(p.config.Platform.PollWindowHours) * time.Hour
	remote, err := client.SearchOrders(ctx, platform.SearchParams{UpdatedSince: p.now().Add(-window)})
	if err != nil {
		return err
	}
	result.Polled = len(remote)
	if len(remote) == 0 {
		return nil
	}

	numbers := make([]string, 0, len(remote))
	for _, o := range remote {
		if o.Number != "" {
			numbers = append(numbers, o.Number)
		}
	}
	missing, err := p.datasource.MissingOrderNumbers(ctx, numbers)
	if err != nil {
		return err
	}
	isMissing := make(map[string]bool, len(missing))
	for _, n := range missing {
		isMissing[n] = true
	}

	for _, o := range remote {
		if !isMissing[o.Number] {
			continue
		}
		_, created, err := p.EnqueueSync(ctx, SyncRequest{Type: model.SyncOrder, ResourceID: o.ID, OrderNumber: o.Number})
		if err != nil {
			return err
		}
		if created {
			result.Enqueued++
		}
	}
	return nil
}
