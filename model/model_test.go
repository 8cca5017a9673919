package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateUUIDWithSuffix(t *testing.T) {
	id := GenerateUUIDWithSuffix("receipt")
	assert.Contains(t, id, "receipt_")
	assert.Len(t, id, len("receipt_")+36)
}

func TestContentHashIsExact(t *testing.T) {
	a := ContentHash("Transferencia $ 10.000,00")
	b := ContentHash("Transferencia $ 10.000,00")
	c := ContentHash("Transferencia $ 10.000,00 ")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestPaymentStatePredicates(t *testing.T) {
	assert.False(t, PaymentPending.MoneyReceived())
	assert.False(t, PaymentRejected.MoneyReceived())
	assert.True(t, PaymentPartiallyConfirmed.MoneyReceived())
	assert.False(t, PaymentPartiallyConfirmed.Settled())
	assert.True(t, PaymentFullyConfirmed.Settled())
	assert.True(t, PaymentCredit.Settled())
}

func TestLineItemKey(t *testing.T) {
	li := OrderLineItem{ProductID: "10", VariantID: "20"}
	assert.Equal(t, "10:20", li.Key())
}
