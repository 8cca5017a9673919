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

const orderColumns = `id, order_number, remote_id, store_id, customer_name, customer_phone,
	declared_total, amount_paid, balance, payment_state, workflow_state, version,
	printed_at, packed_at, shipped_at, cancelled_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*model.Order, error) {
	o := &model.Order{}
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.RemoteID, &o.StoreID, &o.CustomerName, &o.CustomerPhone,
		&o.DeclaredTotal, &o.AmountPaid, &o.Balance, &o.PaymentState, &o.WorkflowState, &o.Version,
		&o.PrintedAt, &o.PackedAt, &o.ShippedAt, &o.CancelledAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func orderNotFound(orderNumber string, err error) error {
	return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Order '%s' not found", orderNumber), err)
}

// GetOrder retrieves an order by its order number.
func (d Datasource) GetOrder(ctx context.Context, orderNumber string) (*model.Order, error) {
	ctx, span := otel.Tracer("payrec.order").Start(ctx, "Fetching order from db")
	defer span.End()

	o, err := scanOrder(d.Conn.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM payrec.orders WHERE order_number = $1`, orderNumber))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, orderNotFound(orderNumber, nil)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to fetch order", err)
	}
	return o, nil
}

// EnsureOrder returns the order, creating an empty pending one on first touch.
func (d Datasource) EnsureOrder(ctx context.Context, orderNumber string) (*model.Order, error) {
	ctx, span := otel.Tracer("payrec.order").Start(ctx, "Ensuring order exists")
	defer span.End()

	o, err := scanOrder(d.Conn.QueryRowContext(ctx, `
		INSERT INTO payrec.orders (order_number, payment_state, workflow_state)
		VALUES ($1, $2, $3)
		ON CONFLICT (order_number) DO UPDATE SET order_number = EXCLUDED.order_number
		RETURNING `+orderColumns,
		orderNumber, model.PaymentPending, model.WorkflowPendingPayment))
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to ensure order", err)
	}
	return o, nil
}

// UpsertOrderMirror records the remote identity and customer of an order.
// Money and workflow fields are left to MutateOrder.
func (d Datasource) UpsertOrderMirror(ctx context.Context, mirror *model.Order) (*model.Order, error) {
	ctx, span := otel.Tracer("payrec.order").Start(ctx, "Upserting order mirror")
	defer span.End()

	o, err := scanOrder(d.Conn.QueryRowContext(ctx, `
		INSERT INTO payrec.orders (order_number, remote_id, store_id, customer_name, customer_phone, payment_state, workflow_state)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (order_number) DO UPDATE SET
			remote_id = COALESCE(EXCLUDED.remote_id, payrec.orders.remote_id),
			store_id = COALESCE(NULLIF(EXCLUDED.store_id, ''), payrec.orders.store_id),
			customer_name = COALESCE(NULLIF(EXCLUDED.customer_name, ''), payrec.orders.customer_name),
			customer_phone = COALESCE(NULLIF(EXCLUDED.customer_phone, ''), payrec.orders.customer_phone),
			updated_at = NOW()
		RETURNING `+orderColumns,
		mirror.OrderNumber, mirror.RemoteID, mirror.StoreID, mirror.CustomerName, mirror.CustomerPhone,
		model.PaymentPending, model.WorkflowPendingPayment))
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to upsert order mirror", err)
	}
	return o, nil
}

// MutateOrder is the single read-modify-write path for an order's money and
// workflow fields. The order row is locked for the whole transaction so a
// payment confirmation and a declared-total change can never overwrite each
// other. A workflow change is written to the audit trail in the same
// transaction.
func (d Datasource) MutateOrder(ctx context.Context, orderNumber, actor string, mutate OrderMutation) (*model.Order, error) {
	ctx, span := otel.Tracer("payrec.order").Start(ctx, "Mutating order under lock")
	defer span.End()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	current, err := scanOrder(tx.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM payrec.orders WHERE order_number = $1 FOR UPDATE`, orderNumber))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, orderNotFound(orderNumber, nil)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to lock order", err)
	}

	totals, err := paymentTotals(ctx, tx, orderNumber)
	if err != nil {
		return nil, err
	}

	update, err := mutate(*current, totals)
	if err != nil {
		return nil, err
	}

	updated, err := scanOrder(tx.QueryRowContext(ctx, `
		UPDATE payrec.orders
		SET declared_total = $2, amount_paid = $3, balance = $4, payment_state = $5, workflow_state = $6,
			printed_at = $7, packed_at = $8, shipped_at = $9, cancelled_at = $10,
			version = version + 1, updated_at = NOW()
		WHERE order_number = $1
		RETURNING `+orderColumns,
		orderNumber, update.DeclaredTotal, update.AmountPaid, update.Balance, update.PaymentState, update.WorkflowState,
		update.PrintedAt, update.PackedAt, update.ShippedAt, update.CancelledAt))
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update order", err)
	}

	if update.WorkflowState != current.WorkflowState {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO payrec.order_workflow_events (order_number, from_state, to_state, actor)
			VALUES ($1, $2, $3, $4)`,
			orderNumber, current.WorkflowState, update.WorkflowState, actor)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record workflow event", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return updated, nil
}

func paymentTotals(ctx context.Context, tx *sql.Tx, orderNumber string) (model.PaymentTotals, error) {
	var totals model.PaymentTotals
	err := tx.QueryRowContext(ctx, `
		SELECT
			COALESCE((SELECT SUM(confirmed_amount) FROM payrec.receipts WHERE order_number = $1 AND state = 'confirmed'), 0)
				+ COALESCE((SELECT SUM(amount) FROM payrec.cash_payments WHERE order_number = $1), 0),
			(SELECT COUNT(*) FROM payrec.receipts WHERE order_number = $1 AND state = 'confirmed'),
			(SELECT COUNT(*) FROM payrec.cash_payments WHERE order_number = $1),
			(SELECT COUNT(*) FROM payrec.receipts WHERE order_number = $1 AND state = 'awaiting_confirmation'),
			(SELECT COUNT(*) FROM payrec.receipts WHERE order_number = $1 AND state = 'rejected')
	`, orderNumber).Scan(&totals.Confirmed, &totals.ConfirmedCount, &totals.CashCount, &totals.PendingCount, &totals.RejectedCount)
	if err != nil {
		return totals, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read payment totals", err)
	}
	return totals, nil
}

// ListResyncOrders returns up to limit orders that are not cancelled. Orders
// not yet linked to the store come first, then the least recently updated.
func (d Datasource) ListResyncOrders(ctx context.Context, limit int) ([]model.Order, error) {
	ctx, span := otel.Tracer("payrec.order").Start(ctx, "Listing orders for resync")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+orderColumns+` FROM payrec.orders
		WHERE workflow_state <> 'cancelled'
		ORDER BY (remote_id IS NULL) DESC, updated_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to list orders", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan order", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

// MissingOrderNumbers returns the subset of orderNumbers with no local mirror.
func (d Datasource) MissingOrderNumbers(ctx context.Context, orderNumbers []string) ([]string, error) {
	ctx, span := otel.Tracer("payrec.order").Start(ctx, "Finding missing orders")
	defer span.End()

	if len(orderNumbers) == 0 {
		return nil, nil
	}

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT n FROM unnest($1::text[]) AS n
		WHERE NOT EXISTS (SELECT 1 FROM payrec.orders o WHERE o.order_number = n)`,
		pq.Array(orderNumbers))
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to look up orders", err)
	}
	defer rows.Close()

	var missing []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		missing = append(missing, n)
	}
	return missing, rows.Err()
}

// GetWorkflowEvents returns the workflow audit trail of an order, oldest first.
func (d Datasource) GetWorkflowEvents(ctx context.Context, orderNumber string) ([]model.WorkflowEvent, error) {
	ctx, span := otel.Tracer("payrec.order").Start(ctx, "Fetching workflow events")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT order_number, from_state, to_state, actor, created_at
		FROM payrec.order_workflow_events
		WHERE order_number = $1
		ORDER BY created_at ASC, id ASC`, orderNumber)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to fetch workflow events", err)
	}
	defer rows.Close()

	var events []model.WorkflowEvent
	for rows.Next() {
		var e model.WorkflowEvent
		if err := rows.Scan(&e.OrderNumber, &e.From, &e.To, &e.Actor, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

