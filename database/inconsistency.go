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
	"time"

	"github.com/blnkfinance/payrec/internal/apierror"
	"github.com/blnkfinance/payrec/model"
	"go.opentelemetry.io/otel"
)

func resolveOpen(ctx context.Context, exec interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}, orderNumber string, at time.Time) (int64, error) {
	result, err := exec.ExecContext(ctx, `
		UPDATE payrec.inconsistencies SET resolved = TRUE, resolved_at = $2
		WHERE order_number = $1 AND NOT resolved`, orderNumber, at)
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to resolve inconsistencies", err)
	}
	return result.RowsAffected()
}

// ReplaceInconsistencies supersedes every open finding of the order with
// items. The old set is resolved and the new one inserted atomically.
func (d Datasource) ReplaceInconsistencies(ctx context.Context, orderNumber string, items []model.Inconsistency, at time.Time) error {
	ctx, span := otel.Tracer("payrec.inconsistency").Start(ctx, "Replacing order inconsistencies")
	defer span.End()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err := resolveOpen(ctx, tx, orderNumber, at); err != nil {
		return err
	}

	for _, item := range items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO payrec.inconsistencies (order_number, type, product_id, variant_id, detail, detected_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			orderNumber, item.Type, item.ProductID, item.VariantID, item.Detail, at)
		if err != nil {
			return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record inconsistency", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return nil
}

// ResolveInconsistencies marks every open finding of the order resolved.
func (d Datasource) ResolveInconsistencies(ctx context.Context, orderNumber string, at time.Time) (int64, error) {
	ctx, span := otel.Tracer("payrec.inconsistency").Start(ctx, "Resolving order inconsistencies")
	defer span.End()

	return resolveOpen(ctx, d.Conn, orderNumber, at)
}

func (d Datasource) ListOpenInconsistencies(ctx context.Context, orderNumber string) ([]model.Inconsistency, error) {
	ctx, span := otel.Tracer("payrec.inconsistency").Start(ctx, "Listing open inconsistencies")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, order_number, type, product_id, variant_id, detail, resolved, detected_at, resolved_at
		FROM payrec.inconsistencies
		WHERE order_number = $1 AND NOT resolved
		ORDER BY id ASC`, orderNumber)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to list inconsistencies", err)
	}
	defer rows.Close()

	var items []model.Inconsistency
	for rows.Next() {
		var i model.Inconsistency
		err := rows.Scan(&i.ID, &i.OrderNumber, &i.Type, &i.ProductID, &i.VariantID, &i.Detail,
			&i.Resolved, &i.DetectedAt, &i.ResolvedAt)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
