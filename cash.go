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
	"strings"

	"github.com/blnkfinance/payrec/internal/apierror"
	"github.com/blnkfinance/payrec/internal/messaging"
	"github.com/blnkfinance/payrec/model"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

type CashPaymentRequest struct {
	OrderNumber string
	Amount      decimal.Decimal
	RecordedBy  string
	Notes       string
}

// RecordCashPayment appends a cash payment to an order and recomputes it.
// Cash payments count as confirmed the moment they are recorded.
func (p *Payrec) RecordCashPayment(ctx context.Context, req CashPaymentRequest) (*model.CashPayment, *model.Order, error) {
	ctx, span := otel.Tracer("payrec.cash").Start(ctx, "RecordCashPayment")
	defer span.End()

	req.OrderNumber = strings.TrimSpace(req.OrderNumber)
	if err := validOrderNumber(req.OrderNumber); err != nil {
		return nil, nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, nil, apierror.NewAPIError(apierror.ErrInvalidInput, "cash amount must be positive", nil)
	}
	if strings.TrimSpace(req.RecordedBy) == "" {
		return nil, nil, apierror.NewAPIError(apierror.ErrInvalidInput, "recorded_by is required", nil)
	}

	existing, err := p.datasource.EnsureOrder(ctx, req.OrderNumber)
	if err != nil {
		return nil, nil, err
	}
	p.linkOrder(ctx, existing)

	cash := &model.CashPayment{
		ID:          model.GenerateUUIDWithSuffix("cash"),
		OrderNumber: req.OrderNumber,
		Amount:      req.Amount,
		RecordedBy:  req.RecordedBy,
		Notes:       strings.TrimSpace(req.Notes),
	}
	if err := p.datasource.RecordCashPayment(ctx, cash); err != nil {
		span.RecordError(err)
		return nil, nil, err
	}

	order, err := p.RecomputeOrder(ctx, req.OrderNumber)
	if err != nil {
		return nil, nil, err
	}

	logrus.WithFields(logrus.Fields{
		"order_number":  req.OrderNumber,
		"cash_id":       cash.ID,
		"amount":        cash.Amount.String(),
		"payment_state": order.PaymentState,
	}).Info("cash payment recorded")

	p.notifyCustomer(ctx, order, messaging.TemplateCashRecorded, map[string]string{
		"order_number": order.OrderNumber,
		"amount":       cash.Amount.String(),
		"balance":      order.Balance.String(),
	})
	return cash, order, nil
}
