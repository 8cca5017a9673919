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
	"fmt"

	"github.com/blnkfinance/payrec/internal/apierror"
	"github.com/blnkfinance/payrec/model"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
)

const uniqueViolation = "23505"

const receiptColumns = `receipt_id, order_number, content_hash, raw_text, detected_amount, confirmed_amount,
	declared_total_at_upload, state, financial_entity_id, match_strategy, file_url, uploaded_by,
	reviewed_by, rejection_reason, created_at, reviewed_at`

func scanReceipt(row rowScanner) (*model.Receipt, error) {
	r := &model.Receipt{}
	err := row.Scan(
		&r.ID, &r.OrderNumber, &r.ContentHash, &r.RawText, &r.DetectedAmount, &r.ConfirmedAmount,
		&r.DeclaredTotalAtUpload, &r.State, &r.FinancialEntityID, &r.MatchStrategy, &r.FileURL, &r.UploadedBy,
		&r.ReviewedBy, &r.RejectionReason, &r.CreatedAt, &r.ReviewedAt,
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// InsertReceipt persists a new receipt. A second receipt with the same content
// hash, even one racing past the pre-check, is refused as a duplicate.
func (d Datasource) InsertReceipt(ctx context.Context, receipt *model.Receipt) error {
	ctx, span := otel.Tracer("payrec.receipt").Start(ctx, "Saving receipt to db")
	defer span.End()

	err := d.Conn.QueryRowContext(ctx, `
		INSERT INTO payrec.receipts (
			receipt_id, order_number, content_hash, raw_text, detected_amount, declared_total_at_upload,
			state, financial_entity_id, match_strategy, uploaded_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`,
		receipt.ID, receipt.OrderNumber, receipt.ContentHash, receipt.RawText, receipt.DetectedAmount,
		receipt.DeclaredTotalAtUpload, receipt.State, receipt.FinancialEntityID, receipt.MatchStrategy, receipt.UploadedBy,
	).Scan(&receipt.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apierror.NewAPIError(apierror.ErrDuplicate, "Receipt has already been submitted", nil)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to save receipt", err)
	}
	return nil
}

// GetReceipt retrieves a receipt by id.
func (d Datasource) GetReceipt(ctx context.Context, id string) (*model.Receipt, error) {
	ctx, span := otel.Tracer("payrec.receipt").Start(ctx, "Fetching receipt from db")
	defer span.End()

	r, err := scanReceipt(d.Conn.QueryRowContext(ctx,
		`SELECT `+receiptColumns+` FROM payrec.receipts WHERE receipt_id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Receipt '%s' not found", id), nil)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to fetch receipt", err)
	}
	return r, nil
}

// GetReceiptByHash finds the receipt previously stored with contentHash.
func (d Datasource) GetReceiptByHash(ctx context.Context, contentHash string) (*model.Receipt, error) {
	ctx, span := otel.Tracer("payrec.receipt").Start(ctx, "Fetching receipt by content hash")
	defer span.End()

	r, err := scanReceipt(d.Conn.QueryRowContext(ctx,
		`SELECT `+receiptColumns+` FROM payrec.receipts WHERE content_hash = $1`, contentHash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "No receipt with this content", nil)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to fetch receipt", err)
	}
	return r, nil
}

func (d Datasource) ListReceipts(ctx context.Context, orderNumber string) ([]model.Receipt, error) {
	ctx, span := otel.Tracer("payrec.receipt").Start(ctx, "Listing receipts of order")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx,
		`SELECT `+receiptColumns+` FROM payrec.receipts WHERE order_number = $1 ORDER BY created_at ASC`, orderNumber)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to list receipts", err)
	}
	defer rows.Close()

	var receipts []model.Receipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan receipt", err)
		}
		receipts = append(receipts, *r)
	}
	return receipts, rows.Err()
}

// ReviewReceipt confirms or rejects a receipt. The update only applies while
// the receipt is still awaiting confirmation; reviewing it a second time is a
// conflict and leaves the stored row untouched.
func (d Datasource) ReviewReceipt(ctx context.Context, review model.ReceiptReview) (*model.Receipt, error) {
	ctx, span := otel.Tracer("payrec.receipt").Start(ctx, "Reviewing receipt")
	defer span.End()

	r, err := scanReceipt(d.Conn.QueryRowContext(ctx, `
		UPDATE payrec.receipts
		SET state = $2, confirmed_amount = $3, reviewed_by = $4, rejection_reason = $5, reviewed_at = $6
		WHERE receipt_id = $1 AND state = 'awaiting_confirmation'
		RETURNING `+receiptColumns,
		review.ReceiptID, review.State, review.ConfirmedAmount, review.ReviewedBy, review.RejectionReason, review.ReviewedAt))
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to review receipt", err)
	}

	existing, getErr := d.GetReceipt(ctx, review.ReceiptID)
	if getErr != nil {
		return nil, getErr
	}
	return nil, apierror.NewAPIError(apierror.ErrConflict,
		fmt.Sprintf("Receipt '%s' is already %s", existing.ID, existing.State), nil)
}

func (d Datasource) UpdateReceiptFileURL(ctx context.Context, id, fileURL string) error {
	ctx, span := otel.Tracer("payrec.receipt").Start(ctx, "Updating receipt file url")
	defer span.End()

	_, err := d.Conn.ExecContext(ctx, `UPDATE payrec.receipts SET file_url = $2 WHERE receipt_id = $1`, id, fileURL)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update receipt file url", err)
	}
	return nil
}

// RecordDuplicateAttempt keeps an audit row for a refused duplicate submission.
func (d Datasource) RecordDuplicateAttempt(ctx context.Context, attempt model.DuplicateAttempt) error {
	ctx, span := otel.Tracer("payrec.receipt").Start(ctx, "Recording duplicate receipt attempt")
	defer span.End()

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO payrec.receipt_duplicate_attempts (order_number, content_hash, original_receipt_id, attempted_by, attempted_at)
		VALUES ($1, $2, $3, $4, $5)`,
		attempt.OrderNumber, attempt.ContentHash, attempt.OriginalReceiptID, attempt.AttemptedBy, attempt.AttemptedAt)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record duplicate attempt", err)
	}
	return nil
}
