package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentState string

const (
	PaymentPending            PaymentState = "pending"
	PaymentPartiallyConfirmed PaymentState = "partially_confirmed"
	PaymentFullyConfirmed     PaymentState = "fully_confirmed"
	PaymentCredit             PaymentState = "credit"
	PaymentRejected           PaymentState = "rejected"
)

// MoneyReceived reports whether at least part of the order has been paid.
func (s PaymentState) MoneyReceived() bool {
	return s == PaymentPartiallyConfirmed || s == PaymentFullyConfirmed || s == PaymentCredit
}

// Settled reports whether the order is paid in full, which is required before dispatch.
func (s PaymentState) Settled() bool {
	return s == PaymentFullyConfirmed || s == PaymentCredit
}

type WorkflowState string

const (
	WorkflowPendingPayment WorkflowState = "pending_payment"
	WorkflowReadyToPrint   WorkflowState = "ready_to_print"
	WorkflowLabelPrinted   WorkflowState = "label_printed"
	WorkflowPacked         WorkflowState = "packed"
	WorkflowShipped        WorkflowState = "shipped"
	WorkflowInTransit      WorkflowState = "in_transit"
	WorkflowPickedUp       WorkflowState = "picked_up"
	WorkflowCancelled      WorkflowState = "cancelled"
)

// Order is the local mirror of a remote store order plus its reconciliation state.
type Order struct {
	ID            int64           `json:"-"`
	OrderNumber   string          `json:"order_number"`
	RemoteID      *string         `json:"remote_id,omitempty"`
	StoreID       string          `json:"store_id,omitempty"`
	CustomerName  string          `json:"customer_name,omitempty"`
	CustomerPhone string          `json:"customer_phone,omitempty"`
	DeclaredTotal decimal.Decimal `json:"declared_total"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	Balance       decimal.Decimal `json:"balance"`
	PaymentState  PaymentState    `json:"payment_state"`
	WorkflowState WorkflowState   `json:"workflow_state"`
	Version       int64           `json:"version"`
	PrintedAt     *time.Time      `json:"printed_at,omitempty"`
	PackedAt      *time.Time      `json:"packed_at,omitempty"`
	ShippedAt     *time.Time      `json:"shipped_at,omitempty"`
	CancelledAt   *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// OrderLineItem is one product line of an order, unique per (order, product, variant).
type OrderLineItem struct {
	OrderNumber string          `json:"order_number"`
	ProductID   string          `json:"product_id"`
	VariantID   string          `json:"variant_id"`
	Name        string          `json:"name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// Key identifies a line item inside its order.
func (li OrderLineItem) Key() string {
	return li.ProductID + ":" + li.VariantID
}

// PaymentTotals is the aggregate of everything recorded against an order,
// read inside the same transaction that rewrites the order row.
type PaymentTotals struct {
	Confirmed      decimal.Decimal
	ConfirmedCount int
	CashCount      int
	PendingCount   int
	RejectedCount  int
}

// OrderUpdate is what a locked recompute writes back.
type OrderUpdate struct {
	DeclaredTotal decimal.Decimal
	AmountPaid    decimal.Decimal
	Balance       decimal.Decimal
	PaymentState  PaymentState
	WorkflowState WorkflowState
	PrintedAt     *time.Time
	PackedAt      *time.Time
	ShippedAt     *time.Time
	CancelledAt   *time.Time
}

// WorkflowEvent is the audit row written for every workflow change.
type WorkflowEvent struct {
	OrderNumber string        `json:"order_number"`
	From        WorkflowState `json:"from"`
	To          WorkflowState `json:"to"`
	Actor       string        `json:"actor"`
	CreatedAt   time.Time     `json:"created_at"`
}
