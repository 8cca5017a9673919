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
	"strings"

	"github.com/blnkfinance/payrec/internal/apierror"
	"github.com/blnkfinance/payrec/internal/payment"
	"github.com/blnkfinance/payrec/model"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

const actorSystem = "system"

// OrderDetail is an order with everything recorded against it.
type OrderDetail struct {
	Order           *model.Order          `json:"order"`
	LineItems       []model.OrderLineItem `json:"line_items"`
	Receipts        []model.Receipt       `json:"receipts"`
	CashPayments    []model.CashPayment   `json:"cash_payments"`
	WorkflowEvents  []model.WorkflowEvent `json:"workflow_events"`
	Inconsistencies []model.Inconsistency `json:"inconsistencies"`
}

func validOrderNumber(orderNumber string) error {
	if strings.TrimSpace(orderNumber) == "" {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "order number is required", nil)
	}
	return nil
}

// RecomputeOrder rederives amount paid, balance, payment state and the
// automatic workflow transition from the payments recorded against the
// order. The read and the write share one locked transaction.
func (p *Payrec) RecomputeOrder(ctx context.Context, orderNumber string) (*model.Order, error) {
	ctx, span := otel.Tracer("payrec.order").Start(ctx, "RecomputeOrder")
	defer span.End()

	tolerance := p.config.Tolerance()
	order, err := p.datasource.MutateOrder(ctx, orderNumber, actorSystem, func(order model.Order, totals model.PaymentTotals) (model.OrderUpdate, error) {
		return payment.Recompute(order, totals, tolerance), nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return order, nil
}

// UpdateDeclaredTotal replaces the declared total and recomputes the order in
// the same locked transaction, so a payment confirmed concurrently is never
// lost.
func (p *Payrec) UpdateDeclaredTotal(ctx context.Context, orderNumber string, total decimal.Decimal) (*model.Order, error) {
	ctx, span := otel.Tracer("payrec.order").Start(ctx, "UpdateDeclaredTotal")
	defer span.End()

	if total.IsNegative() {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "declared total cannot be negative", nil)
	}

	tolerance := p.config.Tolerance()
	return p.datasource.MutateOrder(ctx, orderNumber, actorSystem, func(order model.Order, totals model.PaymentTotals) (model.OrderUpdate, error) {
		order.DeclaredTotal = total
		return payment.Recompute(order, totals, tolerance), nil
	})
}

// ApplyWorkflowAction moves an order through its fulfilment workflow. The
// action is checked against the locked row, and a refused move is reported
// as a conflict.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - orderNumber string: The order to act on.
// - action payment.Action: One of print_label, pack, ship, mark_in_transit, mark_picked_up, cancel.
// - actor string: Who performed the action, kept in the workflow audit trail.
//
// Returns:
// - *model.Order: The updated order.
// - error: INVALID_INPUT, NOT_FOUND or CONFLICT.
func (p *Payrec) ApplyWorkflowAction(ctx context.Context, orderNumber string, action payment.Action, actor string) (*model.Order, error) {
	ctx, span := otel.Tracer("payrec.order").Start(ctx, "ApplyWorkflowAction")
	defer span.End()

	if err := validOrderNumber(orderNumber); err != nil {
		return nil, err
	}
	if !payment.ValidAction(action) {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "unknown workflow action "+string(action), nil)
	}
	if actor == "" {
		actor = actorSystem
	}

	now := p.now()
	order, err := p.datasource.MutateOrder(ctx, orderNumber, actor, func(order model.Order, _ model.PaymentTotals) (model.OrderUpdate, error) {
		return payment.ApplyAction(order, action, now)
	})
	if err != nil {
		var transitionErr *payment.TransitionError
		if errors.As(err, &transitionErr) {
			return nil, apierror.NewAPIError(apierror.ErrConflict, transitionErr.Error(), nil)
		}
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"order_number": orderNumber,
		"action":       action,
		"actor":        actor,
		"workflow":     order.WorkflowState,
	}).Info("workflow action applied")
	return order, nil
}

func (p *Payrec) GetOrder(ctx context.Context, orderNumber string) (*model.Order, error) {
	if err := validOrderNumber(orderNumber); err != nil {
		return nil, err
	}
	return p.datasource.GetOrder(ctx, orderNumber)
}

// GetOrderDetail loads an order with its line items, payments, workflow
// history and open inconsistencies.
func (p *Payrec) GetOrderDetail(ctx context.Context, orderNumber string) (*OrderDetail, error) {
	ctx, span := otel.Tracer("payrec.order").Start(ctx, "GetOrderDetail")
	defer span.End()

	order, err := p.GetOrder(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	detail := &OrderDetail{Order: order}

	if detail.LineItems, err = p.datasource.GetLineItems(ctx, orderNumber); err != nil {
		return nil, err
	}
	if detail.Receipts, err = p.datasource.ListReceipts(ctx, orderNumber); err != nil {
		return nil, err
	}
	if detail.CashPayments, err = p.datasource.ListCashPayments(ctx, orderNumber); err != nil {
		return nil, err
	}
	if detail.WorkflowEvents, err = p.datasource.GetWorkflowEvents(ctx, orderNumber); err != nil {
		return nil, err
	}
	if detail.Inconsistencies, err = p.datasource.ListOpenInconsistencies(ctx, orderNumber); err != nil {
		return nil, err
	}
	return detail, nil
}
