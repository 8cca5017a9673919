// Package platform talks to the remote e-commerce store that owns the orders.
package platform

import (
	"context"
	"time"

	"github.com/blnkfinance/payrec/model"
	"github.com/shopspring/decimal"
)

// Client is what the sync engine needs from the store.
type Client interface {
	FetchOrder(ctx context.Context, remoteID string) (*RemoteOrder, error)
	SearchOrders(ctx context.Context, params SearchParams) ([]RemoteOrder, error)
}

type Customer struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// RemoteOrder is the authoritative view of an order.
type RemoteOrder struct {
	ID        string                `json:"id"`
	Number    string                `json:"number"`
	StoreID   string                `json:"store_id"`
	Status    string                `json:"status"`
	Total     decimal.Decimal       `json:"total"`
	Customer  Customer              `json:"customer"`
	LineItems []model.OrderLineItem `json:"line_items"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// Cancelled reports whether the store cancelled the order.
func (o RemoteOrder) Cancelled() bool {
	return o.Status == "cancelled"
}

// SearchParams narrows a search either by free text (an order number) or by
// last update time.
type SearchParams struct {
	Query        string
	UpdatedSince time.Time
	PerPage      int
	MaxPages     int
}
