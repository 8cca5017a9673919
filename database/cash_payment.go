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

	"github.com/blnkfinance/payrec/internal/apierror"
	"github.com/blnkfinance/payrec/model"
	"go.opentelemetry.io/otel"
)

// RecordCashPayment appends a cash payment. Cash payments are never updated.
func (d Datasource) RecordCashPayment(ctx context.Context, payment *model.CashPayment) error {
	ctx, span := otel.Tracer("payrec.cash").Start(ctx, "Saving cash payment to db")
	defer span.End()

	err := d.Conn.QueryRowContext(ctx, `
		INSERT INTO payrec.cash_payments (cash_payment_id, order_number, amount, recorded_by, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		payment.ID, payment.OrderNumber, payment.Amount, payment.RecordedBy, payment.Notes,
	).Scan(&payment.CreatedAt)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to save cash payment", err)
	}
	return nil
}

func (d Datasource) ListCashPayments(ctx context.Context, orderNumber string) ([]model.CashPayment, error) {
	ctx, span := otel.Tracer("payrec.cash").Start(ctx, "Listing cash payments of order")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT cash_payment_id, order_number, amount, recorded_by, notes, created_at
		FROM payrec.cash_payments
		WHERE order_number = $1
		ORDER BY created_at ASC`, orderNumber)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to list cash payments", err)
	}
	defer rows.Close()

	var payments []model.CashPayment
	for rows.Next() {
		var p model.CashPayment
		if err := rows.Scan(&p.ID, &p.OrderNumber, &p.Amount, &p.RecordedBy, &p.Notes, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
