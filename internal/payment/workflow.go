package payment

import (
	"time"

	"github.com/blnkfinance/payrec/model"
)

type Action string

const (
	ActionPrintLabel    Action = "print_label"
	ActionPack          Action = "pack"
	ActionShip          Action = "ship"
	ActionMarkInTransit Action = "mark_in_transit"
	ActionMarkPickedUp  Action = "mark_picked_up"
	ActionCancel        Action = "cancel"
)

var workflowRank = map[model.WorkflowState]int{
	model.WorkflowPendingPayment: 0,
	model.WorkflowReadyToPrint:   1,
	model.WorkflowLabelPrinted:   2,
	model.WorkflowPacked:         3,
	model.WorkflowShipped:        4,
	model.WorkflowInTransit:      5,
	model.WorkflowPickedUp:       5,
}

type actionRule struct {
	target          model.WorkflowState
	requiresSettled bool
}

var actionRules = map[Action]actionRule{
	ActionPrintLabel:    {target: model.WorkflowLabelPrinted},
	ActionPack:          {target: model.WorkflowPacked},
	ActionShip:          {target: model.WorkflowShipped, requiresSettled: true},
	ActionMarkInTransit: {target: model.WorkflowInTransit, requiresSettled: true},
	ActionMarkPickedUp:  {target: model.WorkflowPickedUp, requiresSettled: true},
}

func ValidAction(a Action) bool {
	_, ok := actionRules[a]
	return ok || a == ActionCancel
}

// ApplyAction validates an explicit workflow action and returns the update
// with the matching timestamp stamped. Workflow state only moves forward;
// cancel is allowed from anything but cancelled.
func ApplyAction(order model.Order, action Action, now time.Time) (model.OrderUpdate, error) {
	update := model.OrderUpdate{
		DeclaredTotal: order.DeclaredTotal,
		AmountPaid:    order.AmountPaid,
		Balance:       order.Balance,
		PaymentState:  order.PaymentState,
		WorkflowState: order.WorkflowState,
		PrintedAt:     order.PrintedAt,
		PackedAt:      order.PackedAt,
		ShippedAt:     order.ShippedAt,
		CancelledAt:   order.CancelledAt,
	}
	fail := func(reason string) (model.OrderUpdate, error) {
		return update, &TransitionError{Action: action, From: order.WorkflowState, Payment: order.PaymentState, Reason: reason}
	}

	if order.WorkflowState == model.WorkflowCancelled {
		return fail("order is cancelled")
	}
	if action == ActionCancel {
		update.WorkflowState = model.WorkflowCancelled
		update.CancelledAt = &now
		return update, nil
	}

	rule, ok := actionRules[action]
	if !ok {
		return fail("unknown action")
	}
	if order.WorkflowState == model.WorkflowPendingPayment {
		return fail("no payment received yet")
	}
	if rule.requiresSettled && !order.PaymentState.Settled() {
		return fail("order is not fully paid")
	}
	if workflowRank[rule.target] <= workflowRank[order.WorkflowState] {
		return fail("workflow state cannot move backwards")
	}

	update.WorkflowState = rule.target
	switch rule.target {
	case model.WorkflowLabelPrinted:
		update.PrintedAt = &now
	case model.WorkflowPacked:
		update.PackedAt = &now
	default:
		if update.ShippedAt == nil {
			update.ShippedAt = &now
		}
	}
	return update, nil
}
