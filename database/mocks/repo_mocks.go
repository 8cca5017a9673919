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
package mocks

import (
	"context"
	"time"

	"github.com/blnkfinance/payrec/database"
	"github.com/blnkfinance/payrec/model"
	"github.com/stretchr/testify/mock"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

var _ database.IDataSource = (*MockDataSource)(nil)

func orderOrNil(args mock.Arguments, i int) *model.Order {
	if o, ok := args.Get(i).(*model.Order); ok {
		return o
	}
	return nil
}

func receiptOrNil(args mock.Arguments, i int) *model.Receipt {
	if r, ok := args.Get(i).(*model.Receipt); ok {
		return r
	}
	return nil
}

// Order methods

func (m *MockDataSource) GetOrder(ctx context.Context, orderNumber string) (*model.Order, error) {
	args := m.Called(ctx, orderNumber)
	return orderOrNil(args, 0), args.Error(1)
}

func (m *MockDataSource) EnsureOrder(ctx context.Context, orderNumber string) (*model.Order, error) {
	args := m.Called(ctx, orderNumber)
	return orderOrNil(args, 0), args.Error(1)
}

func (m *MockDataSource) UpsertOrderMirror(ctx context.Context, mirror *model.Order) (*model.Order, error) {
	args := m.Called(ctx, mirror)
	return orderOrNil(args, 0), args.Error(1)
}

// MutateOrder runs mutate against the order and totals given to Return, so
// tests exercise the real transition logic.
func (m *MockDataSource) MutateOrder(ctx context.Context, orderNumber, actor string, mutate database.OrderMutation) (*model.Order, error) {
	args := m.Called(ctx, orderNumber, actor, mutate)
	if err := args.Error(2); err != nil {
		return nil, err
	}
	current := *orderOrNil(args, 0)
	totals, _ := args.Get(1).(model.PaymentTotals)

	update, err := mutate(current, totals)
	if err != nil {
		return nil, err
	}
	current.DeclaredTotal = update.DeclaredTotal
	current.AmountPaid = update.AmountPaid
	current.Balance = update.Balance
	current.PaymentState = update.PaymentState
	current.WorkflowState = update.WorkflowState
	current.PrintedAt = update.PrintedAt
	current.PackedAt = update.PackedAt
	current.ShippedAt = update.ShippedAt
	current.CancelledAt = update.CancelledAt
	current.Version++
	return &current, nil
}

func (m *MockDataSource) ListResyncOrders(ctx context.Context, limit int) ([]model.Order, error) {
	args := m.Called(ctx, limit)
	orders, _ := args.Get(0).([]model.Order)
	return orders, args.Error(1)
}

func (m *MockDataSource) MissingOrderNumbers(ctx context.Context, orderNumbers []string) ([]string, error) {
	args := m.Called(ctx, orderNumbers)
	missing, _ := args.Get(0).([]string)
	return missing, args.Error(1)
}

func (m *MockDataSource) GetWorkflowEvents(ctx context.Context, orderNumber string) ([]model.WorkflowEvent, error) {
	args := m.Called(ctx, orderNumber)
	events, _ := args.Get(0).([]model.WorkflowEvent)
	return events, args.Error(1)
}

// Line item methods

func (m *MockDataSource) ReplaceLineItems(ctx context.Context, orderNumber string, items []model.OrderLineItem) error {
	args := m.Called(ctx, orderNumber, items)
	return args.Error(0)
}

func (m *MockDataSource) GetLineItems(ctx context.Context, orderNumber string) ([]model.OrderLineItem, error) {
	args := m.Called(ctx, orderNumber)
	items, _ := args.Get(0).([]model.OrderLineItem)
	return items, args.Error(1)
}

// Receipt methods

func (m *MockDataSource) InsertReceipt(ctx context.Context, receipt *model.Receipt) error {
	args := m.Called(ctx, receipt)
	return args.Error(0)
}

func (m *MockDataSource) GetReceipt(ctx context.Context, id string) (*model.Receipt, error) {
	args := m.Called(ctx, id)
	return receiptOrNil(args, 0), args.Error(1)
}

func (m *MockDataSource) GetReceiptByHash(ctx context.Context, contentHash string) (*model.Receipt, error) {
	args := m.Called(ctx, contentHash)
	return receiptOrNil(args, 0), args.Error(1)
}

func (m *MockDataSource) ListReceipts(ctx context.Context, orderNumber string) ([]model.Receipt, error) {
	args := m.Called(ctx, orderNumber)
	receipts, _ := args.Get(0).([]model.Receipt)
	return receipts, args.Error(1)
}

func (m *MockDataSource) ReviewReceipt(ctx context.Context, review model.ReceiptReview) (*model.Receipt, error) {
	args := m.Called(ctx, review)
	return receiptOrNil(args, 0), args.Error(1)
}

func (m *MockDataSource) UpdateReceiptFileURL(ctx context.Context, id, fileURL string) error {
	args := m.Called(ctx, id, fileURL)
	return args.Error(0)
}

func (m *MockDataSource) RecordDuplicateAttempt(ctx context.Context, attempt model.DuplicateAttempt) error {
	args := m.Called(ctx, attempt)
	return args.Error(0)
}

// Cash payment methods

func (m *MockDataSource) RecordCashPayment(ctx context.Context, payment *model.CashPayment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockDataSource) ListCashPayments(ctx context.Context, orderNumber string) ([]model.CashPayment, error) {
	args := m.Called(ctx, orderNumber)
	payments, _ := args.Get(0).([]model.CashPayment)
	return payments, args.Error(1)
}

// Financial entity methods

func (m *MockDataSource) CreateFinancialEntity(ctx context.Context, entity *model.FinancialEntity) error {
	args := m.Called(ctx, entity)
	return args.Error(0)
}

func (m *MockDataSource) GetFinancialEntity(ctx context.Context, id string) (*model.FinancialEntity, error) {
	args := m.Called(ctx, id)
	e, _ := args.Get(0).(*model.FinancialEntity)
	return e, args.Error(1)
}

func (m *MockDataSource) ListActiveFinancialEntities(ctx context.Context) ([]model.FinancialEntity, error) {
	args := m.Called(ctx)
	entities, _ := args.Get(0).([]model.FinancialEntity)
	return entities, args.Error(1)
}

func (m *MockDataSource) SetDefaultFinancialEntity(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDataSource) DeactivateFinancialEntity(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// Inconsistency methods

func (m *MockDataSource) ReplaceInconsistencies(ctx context.Context, orderNumber string, items []model.Inconsistency, at time.Time) error {
	args := m.Called(ctx, orderNumber, items, at)
	return args.Error(0)
}

func (m *MockDataSource) ResolveInconsistencies(ctx context.Context, orderNumber string, at time.Time) (int64, error) {
	args := m.Called(ctx, orderNumber, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDataSource) ListOpenInconsistencies(ctx context.Context, orderNumber string) ([]model.Inconsistency, error) {
	args := m.Called(ctx, orderNumber)
	items, _ := args.Get(0).([]model.Inconsistency)
	return items, args.Error(1)
}

// Sync queue methods

func (m *MockDataSource) EnqueueSync(ctx context.Context, item *model.SyncQueueItem) (*model.SyncQueueItem, bool, error) {
	args := m.Called(ctx, item)
	stored, _ := args.Get(0).(*model.SyncQueueItem)
	return stored, args.Bool(1), args.Error(2)
}

func (m *MockDataSource) DequeueSync(ctx context.Context, now time.Time) (*model.SyncQueueItem, error) {
	args := m.Called(ctx, now)
	item, _ := args.Get(0).(*model.SyncQueueItem)
	return item, args.Error(1)
}

func (m *MockDataSource) CompleteSync(ctx context.Context, id int64, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockDataSource) FailSync(ctx context.Context, id int64, status model.SyncStatus, nextRetryAt time.Time, lastError string) error {
	args := m.Called(ctx, id, status, nextRetryAt, lastError)
	return args.Error(0)
}

func (m *MockDataSource) CleanupSync(ctx context.Context, completedBefore time.Time) (int64, error) {
	args := m.Called(ctx, completedBefore)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDataSource) RecoverStuckSync(ctx context.Context, processingBefore time.Time) (int64, error) {
	args := m.Called(ctx, processingBefore)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDataSource) SyncQueueStats(ctx context.Context, since time.Time) (*model.SyncQueueStats, error) {
	args := m.Called(ctx, since)
	stats, _ := args.Get(0).(*model.SyncQueueStats)
	return stats, args.Error(1)
}

func (m *MockDataSource) ListSyncItems(ctx context.Context, status model.SyncStatus, limit int) ([]model.SyncQueueItem, error) {
	args := m.Called(ctx, status, limit)
	items, _ := args.Get(0).([]model.SyncQueueItem)
	return items, args.Error(1)
}
