package payment

import (
	"errors"
	"testing"
	"time"

	"github.com/blnkfinance/payrec/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyActionHappyPath(t *testing.T) {
	now := time.Date(2024, 5, 12, 10, 0, 0, 0, time.UTC)
	order := model.Order{WorkflowState: model.WorkflowReadyToPrint, PaymentState: model.PaymentFullyConfirmed}

	steps := []struct {
		action Action
		want   model.WorkflowState
	}{
		{ActionPrintLabel, model.WorkflowLabelPrinted},
		{ActionPack, model.WorkflowPacked},
		{ActionShip, model.WorkflowShipped},
		{ActionMarkInTransit, model.WorkflowInTransit},
	}
	for _, step := range steps {
		update, err := ApplyAction(order, step.action, now)
		require.NoError(t, err, step.action)
		assert.Equal(t, step.want, update.WorkflowState)
		order.WorkflowState = update.WorkflowState
		order.PrintedAt, order.PackedAt, order.ShippedAt = update.PrintedAt, update.PackedAt, update.ShippedAt
	}

	require.NotNil(t, order.PrintedAt)
	require.NotNil(t, order.PackedAt)
	require.NotNil(t, order.ShippedAt)
	assert.Equal(t, now, *order.ShippedAt)
}

func TestApplyActionShippingRequiresSettledPayment(t *testing.T) {
	order := model.Order{WorkflowState: model.WorkflowPacked, PaymentState: model.PaymentPartiallyConfirmed}

	_, err := ApplyAction(order, ActionShip, time.Now())
	var te *TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "order is not fully paid", te.Reason)

	order.PaymentState = model.PaymentCredit
	update, err := ApplyAction(order, ActionMarkPickedUp, time.Now())
	require.NoError(t, err)
	assert.Equal(t, model.WorkflowPickedUp, update.WorkflowState)
}

func TestApplyActionRejectsInvalidMoves(t *testing.T) {
	_, err := ApplyAction(model.Order{WorkflowState: model.WorkflowPendingPayment, PaymentState: model.PaymentPending}, ActionPrintLabel, time.Now())
	assert.Error(t, err)

	_, err = ApplyAction(model.Order{WorkflowState: model.WorkflowPacked, PaymentState: model.PaymentFullyConfirmed}, ActionPrintLabel, time.Now())
	assert.Error(t, err)

	_, err = ApplyAction(model.Order{WorkflowState: model.WorkflowReadyToPrint}, Action("teleport"), time.Now())
	assert.Error(t, err)
}

func TestCancelIsTerminal(t *testing.T) {
	update, err := ApplyAction(model.Order{WorkflowState: model.WorkflowShipped, PaymentState: model.PaymentFullyConfirmed}, ActionCancel, time.Now())
	require.NoError(t, err)
	assert.Equal(t, model.WorkflowCancelled, update.WorkflowState)
	assert.NotNil(t, update.CancelledAt)

	_, err = ApplyAction(model.Order{WorkflowState: model.WorkflowCancelled}, ActionCancel, time.Now())
	assert.Error(t, err)

	_, err = ApplyAction(model.Order{WorkflowState: model.WorkflowCancelled, PaymentState: model.PaymentFullyConfirmed}, ActionShip, time.Now())
	assert.Error(t, err)
}

func TestValidAction(t *testing.T) {
	assert.True(t, ValidAction(ActionCancel))
	assert.True(t, ValidAction(ActionPack))
	assert.False(t, ValidAction("unknown"))
}
