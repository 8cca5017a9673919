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

package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/blnkfinance/payrec/internal/apierror"
	"github.com/blnkfinance/payrec/model"
	"go.opentelemetry.io/otel"
)

const syncColumns = `id, type, resource_id, order_number, payload, status, attempts, max_attempts,
	next_retry_at, last_error, created_at, updated_at, completed_at`

func scanSyncItem(row rowScanner, extra ...interface{}) (*model.SyncQueueItem, error) {
	item := &model.SyncQueueItem{}
	var payload []byte
	dest := []interface{}{
		&item.ID, &item.Type, &item.ResourceID, &item.OrderNumber, &payload, &item.Status, &item.Attempts,
		&item.MaxAttempts, &item.NextRetryAt, &item.LastError, &item.CreatedAt, &item.UpdatedAt, &item.CompletedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	item.Payload = payload
	return item, nil
}

// EnqueueSync records a unit of sync work. While an item with the same
// (type, resource id) is pending or processing, the existing row is returned
// with its payload refreshed and created is false.
func (d Datasource) EnqueueSync(ctx context.Context, item *model.SyncQueueItem) (*model.SyncQueueItem, bool, error) {
	ctx, span := otel.Tracer("payrec.sync_queue").Start(ctx, "Enqueueing sync item")
	defer span.End()

	payload := []byte(item.Payload)
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	var created bool
	stored, err := scanSyncItem(d.Conn.QueryRowContext(ctx, `
		INSERT INTO payrec.sync_queue (type, resource_id, order_number, payload, status, max_attempts, next_retry_at)
		VALUES ($1, $2, $3, $4, 'pending', $5, $6)
		ON CONFLICT (type, resource_id) WHERE status IN ('pending', 'processing')
		DO UPDATE SET payload = EXCLUDED.payload,
			order_number = COALESCE(NULLIF(EXCLUDED.order_number, ''), payrec.sync_queue.order_number),
			updated_at = NOW()
		RETURNING `+syncColumns+`, (xmax = 0)`,
		item.Type, item.ResourceID, item.OrderNumber, string(payload), item.MaxAttempts, item.NextRetryAt,
	), &created)
	if err != nil {
		return nil, false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to enqueue sync item", err)
	}
	return stored, created, nil
}

// DequeueSync claims the oldest due pending item, flipping it to processing
// and counting the attempt. Rows locked by another worker are skipped, so
// concurrent workers never claim the same item.
func (d Datasource) DequeueSync(ctx context.Context, now time.Time) (*model.SyncQueueItem, error) {
	ctx, span := otel.Tracer("payrec.sync_queue").Start(ctx, "Dequeueing sync item")
	defer span.End()

	item, err := scanSyncItem(d.Conn.QueryRowContext(ctx, `
		UPDATE payrec.sync_queue
		SET status = 'processing', attempts = attempts + 1, updated_at = $1
		WHERE id = (
			SELECT id FROM payrec.sync_queue
			WHERE status = 'pending' AND next_retry_at <= $1
			ORDER BY created_at ASC, id ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+syncColumns, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrQueueEmpty
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to dequeue sync item", err)
	}
	return item, nil
}

func (d Datasource) CompleteSync(ctx context.Context, id int64, at time.Time) error {
	ctx, span := otel.Tracer("payrec.sync_queue").Start(ctx, "Completing sync item")
	defer span.End()

	_, err := d.Conn.ExecContext(ctx, `
		UPDATE payrec.sync_queue
		SET status = 'completed', last_error = '', completed_at = $2, updated_at = $2
		WHERE id = $1`, id, at)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to complete sync item", err)
	}
	return nil
}

// FailSync records a failed attempt. status is pending for a scheduled retry
// or failed once the item is out of attempts.
func (d Datasource) FailSync(ctx context.Context, id int64, status model.SyncStatus, nextRetryAt time.Time, lastError string) error {
	ctx, span := otel.Tracer("payrec.sync_queue").Start(ctx, "Failing sync item")
	defer span.End()

	_, err := d.Conn.ExecContext(ctx, `
		UPDATE payrec.sync_queue
		SET status = $2, next_retry_at = $3, last_error = $4, updated_at = NOW()
		WHERE id = $1`, id, status, nextRetryAt, lastError)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record sync failure", err)
	}
	return nil
}

// CleanupSync deletes completed items finished before completedBefore.
func (d Datasource) CleanupSync(ctx context.Context, completedBefore time.Time) (int64, error) {
	ctx, span := otel.Tracer("payrec.sync_queue").Start(ctx, "Cleaning up sync queue")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `
		DELETE FROM payrec.sync_queue
		WHERE status = 'completed' AND completed_at < $1`, completedBefore)
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to clean up sync queue", err)
	}
	return result.RowsAffected()
}

// RecoverStuckSync returns items left in processing since before
// processingBefore to pending, or to failed when they have no attempts left.
func (d Datasource) RecoverStuckSync(ctx context.Context, processingBefore time.Time) (int64, error) {
	ctx, span := otel.Tracer("payrec.sync_queue").Start(ctx, "Recovering stuck sync items")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE payrec.sync_queue
		SET status = CASE WHEN attempts >= max_attempts THEN 'failed' ELSE 'pending' END,
			next_retry_at = NOW(),
			last_error = 'processing timed out',
			updated_at = NOW()
		WHERE status = 'processing' AND updated_at < $1`, processingBefore)
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to recover stuck sync items", err)
	}
	return result.RowsAffected()
}

// SyncQueueStats counts items per status. Open items are always counted;
// completed and failed ones only when they changed since since.
func (d Datasource) SyncQueueStats(ctx context.Context, since time.Time) (*model.SyncQueueStats, error) {
	ctx, span := otel.Tracer("payrec.sync_queue").Start(ctx, "Computing sync queue stats")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM payrec.sync_queue
		WHERE status IN ('pending', 'processing') OR updated_at >= $1
		GROUP BY status`, since)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to compute sync queue stats", err)
	}
	defer rows.Close()

	stats := &model.SyncQueueStats{Since: since}
	for rows.Next() {
		var status model.SyncStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		switch status {
		case model.SyncPending:
			stats.Pending = count
		case model.SyncProcessing:
			stats.Processing = count
		case model.SyncCompleted:
			stats.Completed = count
		case model.SyncFailed:
			stats.Failed = count
		}
	}
	return stats, rows.Err()
}

func (d Datasource) ListSyncItems(ctx context.Context, status model.SyncStatus, limit int) ([]model.SyncQueueItem, error) {
	ctx, span := otel.Tracer("payrec.sync_queue").Start(ctx, "Listing sync items")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+syncColumns+` FROM payrec.sync_queue
		WHERE status = $1
		ORDER BY updated_at DESC
		LIMIT $2`, status, limit)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to list sync items", err)
	}
	defer rows.Close()

	var items []model.SyncQueueItem
	for rows.Next() {
		item, err := scanSyncItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}
