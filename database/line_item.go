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

	"github.com/blnkfinance/payrec/internal/apierror"
	"github.com/blnkfinance/payrec/model"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
)

// ReplaceLineItems makes the stored line items of an order exactly items:
// every item is upserted on (order, product, variant) and rows no longer
// present are deleted, all in one transaction. Items repeating a product and
// variant are stored as one row with the summed quantity. Running it twice
// with the same items leaves the table unchanged.
func (d Datasource) ReplaceLineItems(ctx context.Context, orderNumber string, items []model.OrderLineItem) error {
	ctx, span := otel.Tracer("payrec.line_items").Start(ctx, "Replacing order line items")
	defer span.End()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	items = mergeLineItems(items)
	keys := make([]string, 0, len(items))
	for _, item := range items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO payrec.order_line_items (order_number, product_id, variant_id, name, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (order_number, product_id, variant_id) DO UPDATE SET
				name = EXCLUDED.name, quantity = EXCLUDED.quantity, unit_price = EXCLUDED.unit_price`,
			orderNumber, item.ProductID, item.VariantID, item.Name, item.Quantity, item.UnitPrice)
		if err != nil {
			return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to upsert line item", err)
		}
		keys = append(keys, item.Key())
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM payrec.order_line_items
		WHERE order_number = $1 AND NOT ((product_id || ':' || variant_id) = ANY($2))`,
		orderNumber, pq.Array(keys))
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to delete removed line items", err)
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return nil
}

// mergeLineItems folds items sharing a key into the first occurrence, adding
// up quantities. Order of first appearance is kept.
func mergeLineItems(items []model.OrderLineItem) []model.OrderLineItem {
	merged := make([]model.OrderLineItem, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		if i, seen := index[item.Key()]; seen {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.Key()] = len(merged)
		merged = append(merged, item)
	}
	return merged
}

// GetLineItems returns the local line item mirror of an order.
func (d Datasource) GetLineItems(ctx context.Context, orderNumber string) ([]model.OrderLineItem, error) {
	ctx, span := otel.Tracer("payrec.line_items").Start(ctx, "Fetching order line items")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT order_number, product_id, variant_id, name, quantity, unit_price
		FROM payrec.order_line_items
		WHERE order_number = $1
		ORDER BY product_id, variant_id`, orderNumber)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to fetch line items", err)
	}
	defer rows.Close()

	var items []model.OrderLineItem
	for rows.Next() {
		var li model.OrderLineItem
		if err := rows.Scan(&li.OrderNumber, &li.ProductID, &li.VariantID, &li.Name, &li.Quantity, &li.UnitPrice); err != nil {
			return nil, err
		}
		items = append(items, li)
	}
	return items, rows.Err()
}
