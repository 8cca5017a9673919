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
	"errors"
	"time"

	"github.com/blnkfinance/payrec/model"
)

// ErrQueueEmpty is returned by DequeueSync when no item is due.
var ErrQueueEmpty = errors.New("sync queue has no due items")

// OrderMutation computes the new state of an order from its locked row and
// the payment totals read in the same transaction.
type OrderMutation func(order model.Order, totals model.PaymentTotals) (model.OrderUpdate, error)

// IDataSource groups every persistence operation the service needs.
type IDataSource interface {
	order
	lineItem
	receipt
	cashPayment
	financialEntity
	inconsistency
	syncQueue
}

type order interface {
	GetOrder(ctx context.Context, orderNumber string) (*model.Order, error)
	EnsureOrder(ctx context.Context, orderNumber string) (*model.Order, error)
	UpsertOrderMirror(ctx context.Context, mirror *model.Order) (*model.Order, error)
	MutateOrder(ctx context.Context, orderNumber, actor string, mutate OrderMutation) (*model.Order, error)
	ListResyncOrders(ctx context.Context, limit int) ([]model.Order, error)
	MissingOrderNumbers(ctx context.Context, orderNumbers []string) ([]string, error)
	GetWorkflowEvents(ctx context.Context, orderNumber string) ([]model.WorkflowEvent, error)
}

type lineItem interface {
	ReplaceLineItems(ctx context.Context, orderNumber string, items []model.OrderLineItem) error
	GetLineItems(ctx context.Context, orderNumber string) ([]model.OrderLineItem, error)
}

type receipt interface {
	InsertReceipt(ctx context.Context, receipt *model.Receipt) error
	GetReceipt(ctx context.Context, id string) (*model.Receipt, error)
	GetReceiptByHash(ctx context.Context, contentHash string) (*model.Receipt, error)
	ListReceipts(ctx context.Context, orderNumber string) ([]model.Receipt, error)
	ReviewReceipt(ctx context.Context, review model.ReceiptReview) (*model.Receipt, error)
	UpdateReceiptFileURL(ctx context.Context, id, fileURL string) error
	RecordDuplicateAttempt(ctx context.Context, attempt model.DuplicateAttempt) error
}

type cashPayment interface {
	RecordCashPayment(ctx context.Context, payment *model.CashPayment) error
	ListCashPayments(ctx context.Context, orderNumber string) ([]model.CashPayment, error)
}

type financialEntity interface {
	CreateFinancialEntity(ctx context.Context, entity *model.FinancialEntity) error
	GetFinancialEntity(ctx context.Context, id string) (*model.FinancialEntity, error)
	ListActiveFinancialEntities(ctx context.Context) ([]model.FinancialEntity, error)
	SetDefaultFinancialEntity(ctx context.Context, id string) error
	DeactivateFinancialEntity(ctx context.Context, id string) error
}

type inconsistency interface {
	ReplaceInconsistencies(ctx context.Context, orderNumber string, items []model.Inconsistency, at time.Time) error
	ResolveInconsistencies(ctx context.Context, orderNumber string, at time.Time) (int64, error)
	ListOpenInconsistencies(ctx context.Context, orderNumber string) ([]model.Inconsistency, error)
}

type syncQueue interface {
	EnqueueSync(ctx context.Context, item *model.SyncQueueItem) (*model.SyncQueueItem, bool, error)
	DequeueSync(ctx context.Context, now time.Time) (*model.SyncQueueItem, error)
	CompleteSync(ctx context.Context, id int64, at time.Time) error
	FailSync(ctx context.Context, id int64, status model.SyncStatus, nextRetryAt time.Time, lastError string) error
	CleanupSync(ctx context.Context, completedBefore time.Time) (int64, error)
	RecoverStuckSync(ctx context.Context, processingBefore time.Time) (int64, error)
	SyncQueueStats(ctx context.Context, since time.Time) (*model.SyncQueueStats, error)
	ListSyncItems(ctx context.Context, status model.SyncStatus, limit int) ([]model.SyncQueueItem, error)
}
