// Package payment derives the money and fulfilment state of an order from
// what has been paid against it.
package payment

import (
	"fmt"

	"github.com/blnkfinance/payrec/model"
	"github.com/shopspring/decimal"
)

type AccountState string

const (
	AccountOK     AccountState = "ok"
	AccountOwes   AccountState = "owes"
	AccountCredit AccountState = "credit"
)

// DefaultTolerance is the absolute band, in currency units, inside which an
// order counts as settled.
var DefaultTolerance = decimal.NewFromInt(1000)

// AccountStateOf compares paid against declared. The returned balance is
// round(declared - paid).
func AccountStateOf(paid, declared, tolerance decimal.Decimal) (AccountState, decimal.Decimal) {
	balance := declared.Sub(paid).Round(0)
	switch {
	case balance.GreaterThan(tolerance):
		return AccountOwes, balance
	case balance.LessThan(tolerance.Neg()):
		return AccountCredit, balance
	default:
		return AccountOK, balance
	}
}

// DerivePaymentState maps cumulative confirmed payments to a payment state.
func DerivePaymentState(declared decimal.Decimal, totals model.PaymentTotals, tolerance decimal.Decimal) model.PaymentState {
	if totals.ConfirmedCount+totals.CashCount == 0 || !totals.Confirmed.IsPositive() {
		if totals.RejectedCount > 0 && totals.PendingCount == 0 {
			return model.PaymentRejected
		}
		return model.PaymentPending
	}

	state, _ := AccountStateOf(totals.Confirmed, declared, tolerance)
	switch state {
	case AccountOwes:
		return model.PaymentPartiallyConfirmed
	case AccountCredit:
		return model.PaymentCredit
	default:
		return model.PaymentFullyConfirmed
	}
}

// NextWorkflowState is the automatic transition applied after every
// recompute. It only ever moves an order out of pending_payment.
func NextWorkflowState(current model.WorkflowState, ps model.PaymentState) model.WorkflowState {
	if current == model.WorkflowPendingPayment && ps.MoneyReceived() {
		return model.WorkflowReadyToPrint
	}
	return current
}

// Recompute produces the fields a locked recompute writes back to the order.
func Recompute(order model.Order, totals model.PaymentTotals, tolerance decimal.Decimal) model.OrderUpdate {
	ps := DerivePaymentState(order.DeclaredTotal, totals, tolerance)
	return model.OrderUpdate{
		DeclaredTotal: order.DeclaredTotal,
		AmountPaid:    totals.Confirmed,
		Balance:       order.DeclaredTotal.Sub(totals.Confirmed).Round(0),
		PaymentState:  ps,
		WorkflowState: NextWorkflowState(order.WorkflowState, ps),
		PrintedAt:     order.PrintedAt,
		PackedAt:      order.PackedAt,
		ShippedAt:     order.ShippedAt,
		CancelledAt:   order.CancelledAt,
	}
}

// TransitionError is returned when a workflow action is not allowed.
type TransitionError struct {
	Action  Action
	From    model.WorkflowState
	Payment model.PaymentState
	Reason  string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s order in state %s (payment %s): %s", e.Action, e.From, e.Payment, e.Reason)
}
