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
	"testing"

	"github.com/blnkfinance/payrec/internal/apierror"
	"github.com/blnkfinance/payrec/internal/destination"
	"github.com/blnkfinance/payrec/model"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const receiptText = `Comprobante de transferencia
Fecha: 12/05/2024
Monto: $ 25.000,00
Origen
Carlos Gomez
CBU: 0170099220000012345678
Destinatario
María Fernanda López
CVU: 0000003100012345678901
Alias: maria.lopez.mp
Banco: Mercado Pago`

func pendingOrder(number string) *model.Order {
	remoteID := "remote-" + number
	return &model.Order{
		OrderNumber:   number,
		RemoteID:      &remoteID,
		DeclaredTotal: decimal.NewFromInt(25000),
		Balance:       decimal.NewFromInt(25000),
		PaymentState:  model.PaymentPending,
		WorkflowState: model.WorkflowPendingPayment,
		CustomerPhone: "+5491155556666",
	}
}

func expectUploadWrites(env *testEnv, number string) {
	env.ds.On("EnsureOrder", mock.Anything, number).Return(pendingOrder(number), nil)
	env.ds.On("InsertReceipt", mock.Anything, mock.AnythingOfType("*model.Receipt")).Return(nil)
	env.ds.On("MutateOrder", mock.Anything, number, actorSystem, mock.Anything).
		Return(pendingOrder(number), model.PaymentTotals{PendingCount: 1}, nil)
}

func TestUploadReceiptPermissiveWithoutEntities(t *testing.T) {
	env := newTestEnv(t, receiptText)
	number := gofakeit.DigitN(5)

	env.ds.On("ListActiveFinancialEntities", mock.Anything).Return([]model.FinancialEntity{}, nil)
	env.ds.On("GetReceiptByHash", mock.Anything, model.ContentHash(receiptText)).
		Return(nil, apierror.NewAPIError(apierror.ErrNotFound, "No receipt with this content", nil))
	expectUploadWrites(env, number)

	result, err := env.payrec.UploadReceipt(context.Background(), UploadReceiptRequest{
		OrderNumber: number,
		Image:       []byte("jpeg"),
		UploadedBy:  gofakeit.Username(),
	})
	require.NoError(t, err)

	assert.Equal(t, destination.StrategyPermissive, result.Validation.Strategy)
	assert.Equal(t, model.ReceiptAwaitingConfirmation, result.Receipt.State)
	require.NotNil(t, result.Receipt.DetectedAmount)
	assert.True(t, decimal.NewFromInt(25000).Equal(*result.Receipt.DetectedAmount))
	assert.True(t, decimal.NewFromInt(25000).Equal(result.Receipt.DeclaredTotalAtUpload))
	assert.Nil(t, result.Receipt.FinancialEntityID)
	require.Len(t, env.queue.messages, 1)
	assert.Equal(t, "+5491155556666", env.queue.messages[0].To)
	env.ds.AssertExpectations(t)
}

func TestUploadReceiptDuplicateOnSecondSubmission(t *testing.T) {
	env := newTestEnv(t, receiptText)
	hash := model.ContentHash(receiptText)

	env.ds.On("ListActiveFinancialEntities", mock.Anything).Return([]model.FinancialEntity{}, nil)
	env.ds.On("GetReceiptByHash", mock.Anything, hash).
		Return(nil, apierror.NewAPIError(apierror.ErrNotFound, "No receipt with this content", nil)).Once()
	expectUploadWrites(env, "1001")

	req := UploadReceiptRequest{OrderNumber: "1001", Image: []byte("jpeg"), UploadedBy: "ana"}
	first, err := env.payrec.UploadReceipt(context.Background(), req)
	require.NoError(t, err)

	env.ds.On("GetReceiptByHash", mock.Anything, hash).Return(first.Receipt, nil)
	env.ds.On("RecordDuplicateAttempt", mock.Anything, mock.MatchedBy(func(a model.DuplicateAttempt) bool {
		return a.OriginalReceiptID == first.Receipt.ID && a.ContentHash == hash && a.AttemptedBy == "ana"
	})).Return(nil)

	_, err = env.payrec.UploadReceipt(context.Background(), req)
	assert.True(t, apierror.Is(err, apierror.ErrDuplicate))
	env.ds.AssertNumberOfCalls(t, "InsertReceipt", 1)
	env.ds.AssertExpectations(t)
}

func TestUploadReceiptRejectsUnknownDestination(t *testing.T) {
	env := newTestEnv(t, receiptText)
	env.ds.On("ListActiveFinancialEntities", mock.Anything).Return([]model.FinancialEntity{{
		ID:            "fe_1",
		Name:          "Cuenta tienda",
		Alias:         "tienda.cobros.mp",
		AccountNumber: "0000003100099999999999",
		Active:        true,
	}}, nil)

	_, err := env.payrec.UploadReceipt(context.Background(), UploadReceiptRequest{OrderNumber: "1001", Image: []byte("jpeg")})
	require.Error(t, err)

	apiErr, ok := apierror.As(err)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrDestinationRejected, apiErr.Code)
	candidate, ok := apiErr.Details.(destination.Candidate)
	require.True(t, ok)
	assert.Equal(t, "maria.lopez.mp", candidate.Alias)

	env.ds.AssertNotCalled(t, "GetReceiptByHash", mock.Anything, mock.Anything)
	env.ds.AssertNotCalled(t, "InsertReceipt", mock.Anything, mock.Anything)
}

func TestUploadReceiptMatchesEntityByAlias(t *testing.T) {
	env := newTestEnv(t, receiptText)
	env.ds.On("ListActiveFinancialEntities", mock.Anything).Return([]model.FinancialEntity{
		{ID: "fe_kw", Name: "Keyword", Keywords: []string{"mercado pago"}, Active: true},
		{ID: "fe_alias", Name: "Alias", Alias: "maria.lopez.mp", Active: true},
	}, nil)
	env.ds.On("GetReceiptByHash", mock.Anything, mock.Anything).
		Return(nil, apierror.NewAPIError(apierror.ErrNotFound, "No receipt with this content", nil))
	expectUploadWrites(env, "1002")

	result, err := env.payrec.UploadReceipt(context.Background(), UploadReceiptRequest{OrderNumber: "1002", Image: []byte("jpeg")})
	require.NoError(t, err)
	require.NotNil(t, result.Receipt.FinancialEntityID)
	assert.Equal(t, "fe_alias", *result.Receipt.FinancialEntityID)
	assert.Equal(t, "alias", result.Receipt.MatchStrategy)
}

func TestUploadReceiptValidation(t *testing.T) {
	env := newTestEnv(t, receiptText)

	_, err := env.payrec.UploadReceipt(context.Background(), UploadReceiptRequest{Image: []byte("jpeg")})
	assert.True(t, apierror.Is(err, apierror.ErrInvalidInput))

	_, err = env.payrec.UploadReceipt(context.Background(), UploadReceiptRequest{OrderNumber: "1001"})
	assert.True(t, apierror.Is(err, apierror.ErrInvalidInput))
}

func TestConfirmReceiptUsesDetectedAmountAndDebounces(t *testing.T) {
	env := newTestEnv(t, "")
	detected := decimal.NewFromInt(25000)
	awaiting := &model.Receipt{ID: "rcpt_1", OrderNumber: "1001", State: model.ReceiptAwaitingConfirmation, DetectedAmount: &detected}
	confirmed := *awaiting
	confirmed.State = model.ReceiptConfirmed
	confirmed.ConfirmedAmount = &detected

	env.ds.On("GetReceipt", mock.Anything, "rcpt_1").Return(awaiting, nil)
	env.ds.On("ReviewReceipt", mock.Anything, mock.MatchedBy(func(r model.ReceiptReview) bool {
		return r.State == model.ReceiptConfirmed && r.ConfirmedAmount.Equal(detected) && r.ReviewedBy == "ops"
	})).Return(&confirmed, nil).Once()
	env.ds.On("MutateOrder", mock.Anything, "1001", actorSystem, mock.Anything).
		Return(pendingOrder("1001"), model.PaymentTotals{Confirmed: detected, ConfirmedCount: 1}, nil)

	receipt, order, err := env.payrec.ConfirmReceipt(context.Background(), "rcpt_1", ReviewRequest{ReviewedBy: "ops"})
	require.NoError(t, err)
	assert.Equal(t, model.ReceiptConfirmed, receipt.State)
	assert.Equal(t, model.PaymentFullyConfirmed, order.PaymentState)
	assert.Equal(t, model.WorkflowReadyToPrint, order.WorkflowState)
	assert.True(t, order.Balance.IsZero())

	_, _, err = env.payrec.ConfirmReceipt(context.Background(), "rcpt_1", ReviewRequest{ReviewedBy: "ops"})
	assert.True(t, apierror.Is(err, apierror.ErrDuplicate))
	apiErr, ok := apierror.As(err)
	require.True(t, ok)
	details, ok := apiErr.Details.(map[string]int64)
	require.True(t, ok)
	assert.Positive(t, details["retry_after_ms"])
	env.ds.AssertNumberOfCalls(t, "ReviewReceipt", 1)
}

func TestFailedReviewReleasesDebounce(t *testing.T) {
	env := newTestEnv(t, "")
	awaiting := &model.Receipt{ID: "rcpt_2", OrderNumber: "1001", State: model.ReceiptAwaitingConfirmation}
	env.ds.On("GetReceipt", mock.Anything, "rcpt_2").Return(awaiting, nil)

	for i := 0; i < 2; i++ {
		_, _, err := env.payrec.ConfirmReceipt(context.Background(), "rcpt_2", ReviewRequest{})
		assert.True(t, apierror.Is(err, apierror.ErrInvalidInput), "attempt %d", i)
	}
}

func TestRejectReceiptConflictsWhenAlreadyReviewed(t *testing.T) {
	env := newTestEnv(t, "")
	env.ds.On("GetReceipt", mock.Anything, "rcpt_3").
		Return(&model.Receipt{ID: "rcpt_3", OrderNumber: "1001", State: model.ReceiptConfirmed}, nil)

	_, _, err := env.payrec.RejectReceipt(context.Background(), "rcpt_3", ReviewRequest{Reason: "blurry"})
	assert.True(t, apierror.Is(err, apierror.ErrConflict))
	env.ds.AssertNotCalled(t, "ReviewReceipt", mock.Anything, mock.Anything)
}

func TestRecordCashPayment(t *testing.T) {
	env := newTestEnv(t, "")
	env.ds.On("EnsureOrder", mock.Anything, "1001").Return(pendingOrder("1001"), nil)
	env.ds.On("RecordCashPayment", mock.Anything, mock.MatchedBy(func(c *model.CashPayment) bool {
		return c.Amount.Equal(decimal.NewFromInt(10000)) && c.RecordedBy == "ops"
	})).Return(nil)
	env.ds.On("MutateOrder", mock.Anything, "1001", actorSystem, mock.Anything).
		Return(pendingOrder("1001"), model.PaymentTotals{Confirmed: decimal.NewFromInt(10000), CashCount: 1}, nil)

	cash, order, err := env.payrec.RecordCashPayment(context.Background(), CashPaymentRequest{
		OrderNumber: "1001",
		Amount:      decimal.NewFromInt(10000),
		RecordedBy:  "ops",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, cash.ID)
	assert.Equal(t, model.PaymentPartiallyConfirmed, order.PaymentState)
	assert.True(t, decimal.NewFromInt(15000).Equal(order.Balance))

	_, _, err = env.payrec.RecordCashPayment(context.Background(), CashPaymentRequest{OrderNumber: "1001", Amount: decimal.Zero, RecordedBy: "ops"})
	assert.True(t, apierror.Is(err, apierror.ErrInvalidInput))
	env.ds.AssertNotCalled(t, "EnqueueSync", mock.Anything, mock.Anything)
}

// unlinkedOrder is an order first created locally, before any store sync.
func unlinkedOrder(number string) *model.Order {
	return &model.Order{
		OrderNumber:   number,
		PaymentState:  model.PaymentPending,
		WorkflowState: model.WorkflowPendingPayment,
	}
}

func expectLinkSync(env *testEnv, number string) {
	env.ds.On("EnqueueSync", mock.Anything, mock.MatchedBy(func(item *model.SyncQueueItem) bool {
		return item.Type == model.SyncOrder &&
			item.ResourceID == numberResourcePrefix+number &&
			item.OrderNumber == number &&
			item.Status == model.SyncPending
	})).Return(&model.SyncQueueItem{ID: 9, Type: model.SyncOrder, ResourceID: numberResourcePrefix + number}, true, nil).Once()
}

func TestRecordCashPaymentQueuesSyncForUnlinkedOrder(t *testing.T) {
	env := newTestEnv(t, "")
	number := gofakeit.DigitN(5)
	env.ds.On("EnsureOrder", mock.Anything, number).Return(unlinkedOrder(number), nil)
	expectLinkSync(env, number)
	env.ds.On("RecordCashPayment", mock.Anything, mock.AnythingOfType("*model.CashPayment")).Return(nil)
	env.ds.On("MutateOrder", mock.Anything, number, actorSystem, mock.Anything).
		Return(unlinkedOrder(number), model.PaymentTotals{Confirmed: decimal.NewFromInt(15000), CashCount: 1}, nil)

	_, _, err := env.payrec.RecordCashPayment(context.Background(), CashPaymentRequest{
		OrderNumber: number,
		Amount:      decimal.NewFromInt(15000),
		RecordedBy:  "ops",
	})
	require.NoError(t, err)
	env.ds.AssertExpectations(t)
}

func TestUploadReceiptQueuesSyncForUnlinkedOrder(t *testing.T) {
	env := newTestEnv(t, receiptText)
	number := gofakeit.DigitN(5)

	env.ds.On("ListActiveFinancialEntities", mock.Anything).Return([]model.FinancialEntity{}, nil)
	env.ds.On("GetReceiptByHash", mock.Anything, model.ContentHash(receiptText)).
		Return(nil, apierror.NewAPIError(apierror.ErrNotFound, "No receipt with this content", nil))
	env.ds.On("EnsureOrder", mock.Anything, number).Return(unlinkedOrder(number), nil)
	expectLinkSync(env, number)
	env.ds.On("InsertReceipt", mock.Anything, mock.AnythingOfType("*model.Receipt")).Return(nil)
	env.ds.On("MutateOrder", mock.Anything, number, actorSystem, mock.Anything).
		Return(unlinkedOrder(number), model.PaymentTotals{PendingCount: 1}, nil)

	_, err := env.payrec.UploadReceipt(context.Background(), UploadReceiptRequest{
		OrderNumber: number,
		Image:       []byte("jpeg"),
		UploadedBy:  gofakeit.Username(),
	})
	require.NoError(t, err)
	env.ds.AssertExpectations(t)
}

func TestUploadReceiptSurvivesLinkSyncFailure(t *testing.T) {
	env := newTestEnv(t, receiptText)
	number := gofakeit.DigitN(5)

	env.ds.On("ListActiveFinancialEntities", mock.Anything).Return([]model.FinancialEntity{}, nil)
	env.ds.On("GetReceiptByHash", mock.Anything, model.ContentHash(receiptText)).
		Return(nil, apierror.NewAPIError(apierror.ErrNotFound, "No receipt with this content", nil))
	env.ds.On("EnsureOrder", mock.Anything, number).Return(unlinkedOrder(number), nil)
	env.ds.On("EnqueueSync", mock.Anything, mock.Anything).
		Return(nil, false, apierror.NewAPIError(apierror.ErrInternalServer, "queue down", nil))
	env.ds.On("InsertReceipt", mock.Anything, mock.AnythingOfType("*model.Receipt")).Return(nil)
	env.ds.On("MutateOrder", mock.Anything, number, actorSystem, mock.Anything).
		Return(unlinkedOrder(number), model.PaymentTotals{PendingCount: 1}, nil)

	result, err := env.payrec.UploadReceipt(context.Background(), UploadReceiptRequest{
		OrderNumber: number,
		Image:       []byte("jpeg"),
		UploadedBy:  gofakeit.Username(),
	})
	require.NoError(t, err)
	assert.Equal(t, model.ReceiptAwaitingConfirmation, result.Receipt.State)
}
