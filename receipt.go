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
	"fmt"
	"strings"

	"github.com/blnkfinance/payrec/internal/apierror"
	"github.com/blnkfinance/payrec/internal/destination"
	redlock "github.com/blnkfinance/payrec/internal/lock"
	"github.com/blnkfinance/payrec/internal/messaging"
	"github.com/blnkfinance/payrec/internal/ocrtext"
	"github.com/blnkfinance/payrec/internal/storage"
	"github.com/blnkfinance/payrec/model"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

// UploadReceiptRequest carries a receipt image submitted for an order.
type UploadReceiptRequest struct {
	OrderNumber string
	Image       []byte
	FileName    string
	ContentType string
	UploadedBy  string
}

// UploadReceiptResult is the persisted receipt with the order it was applied to.
type UploadReceiptResult struct {
	Receipt    *model.Receipt     `json:"receipt"`
	Order      *model.Order       `json:"order"`
	Validation destination.Result `json:"validation"`
}

// ReviewRequest confirms or rejects an awaiting receipt. Amount overrides
// the detected amount on confirmation.
type ReviewRequest struct {
	Amount     *decimal.Decimal
	Reason     string
	ReviewedBy string
}

// UploadReceipt interprets a receipt image and records it against its order
// as awaiting confirmation.
//
// The OCR text is normalized, the amount and destination account are
// extracted, and the destination must match an active financial entity. A
// receipt whose exact text was seen before is refused as a duplicate. The
// image upload is best effort and never blocks the receipt.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - req UploadReceiptRequest: The order number, image bytes and uploader.
//
// Returns:
// - *UploadReceiptResult: The stored receipt, the recomputed order and the destination match.
// - error: INVALID_INPUT, UPSTREAM_ERROR, DESTINATION_REJECTED or DUPLICATE.
func (p *Payrec) UploadReceipt(ctx context.Context, req UploadReceiptRequest) (*UploadReceiptResult, error) {
	ctx, span := otel.Tracer("payrec.receipt").Start(ctx, "UploadReceipt")
	defer span.End()

	req.OrderNumber = strings.TrimSpace(req.OrderNumber)
	if err := validOrderNumber(req.OrderNumber); err != nil {
		return nil, err
	}
	if len(req.Image) == 0 {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "receipt image is empty", nil)
	}

	rawText, err := p.ocr.ExtractText(ctx, req.Image)
	if err != nil {
		span.RecordError(err)
		if _, ok := apierror.As(err); ok {
			return nil, err
		}
		return nil, apierror.NewAPIError(apierror.ErrUpstream, "could not read the receipt image", err)
	}
	if strings.TrimSpace(rawText) == "" {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "no text could be read from the receipt", nil)
	}

	normalized := ocrtext.Normalize(rawText)
	amountOpts := ocrtext.DefaultAmountOptions()
	if p.config.Receipts.MinAmount > 0 {
		amountOpts.MinAmount = decimal.NewFromFloat(p.config.Receipts.MinAmount)
	}
	var detected *decimal.Decimal
	if amount, ok := ocrtext.ExtractAmount(normalized, amountOpts); ok {
		detected = &amount
	}

	entities, err := p.ActiveFinancialEntities(ctx)
	if err != nil {
		return nil, err
	}
	validation := destination.Validate(destination.Extract(rawText), normalized, entities)
	if !validation.Valid {
		logrus.WithFields(logrus.Fields{
			"order_number":  req.OrderNumber,
			"candidate":     validation.Candidate,
			"nearest_alias": validation.NearestAlias,
		}).Warn("receipt destination rejected")
		return nil, apierror.NewAPIError(apierror.ErrDestinationRejected, "receipt destination is not an accepted account", validation.Candidate)
	}

	contentHash := model.ContentHash(rawText)
	if err := p.checkDuplicate(ctx, req, contentHash); err != nil {
		return nil, err
	}

	order, err := p.datasource.EnsureOrder(ctx, req.OrderNumber)
	if err != nil {
		return nil, err
	}
	p.linkOrder(ctx, order)

	receipt := &model.Receipt{
		ID:                    model.GenerateUUIDWithSuffix("rcpt"),
		OrderNumber:           req.OrderNumber,
		ContentHash:           contentHash,
		RawText:               rawText,
		DetectedAmount:        detected,
		DeclaredTotalAtUpload: order.DeclaredTotal,
		State:                 model.ReceiptAwaitingConfirmation,
		MatchStrategy:         validation.Strategy,
		UploadedBy:            req.UploadedBy,
	}
	if validation.Entity != nil {
		entityID := validation.Entity.ID
		receipt.FinancialEntityID = &entityID
	}
	if err := p.datasource.InsertReceipt(ctx, receipt); err != nil {
		if apierror.Is(err, apierror.ErrDuplicate) {
			p.recordDuplicate(ctx, req, contentHash, "")
		}
		return nil, err
	}

	p.storeReceiptImage(ctx, receipt, req)

	if updated, err := p.RecomputeOrder(ctx, req.OrderNumber); err != nil {
		logrus.WithError(err).WithField("order_number", req.OrderNumber).Error("failed to recompute order after receipt upload")
	} else {
		order = updated
	}

	p.notifyCustomer(ctx, order, messaging.TemplateReceiptReceived, map[string]string{
		"order_number": order.OrderNumber,
	})

	logrus.WithFields(logrus.Fields{
		"order_number": req.OrderNumber,
		"receipt_id":   receipt.ID,
		"strategy":     validation.Strategy,
	}).Info("receipt uploaded")
	return &UploadReceiptResult{Receipt: receipt, Order: order, Validation: validation}, nil
}

func (p *Payrec) checkDuplicate(ctx context.Context, req UploadReceiptRequest, contentHash string) error {
	existing, err := p.datasource.GetReceiptByHash(ctx, contentHash)
	if apierror.Is(err, apierror.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	p.recordDuplicate(ctx, req, contentHash, existing.ID)
	return apierror.NewAPIError(apierror.ErrDuplicate, "this receipt was already submitted", map[string]string{
		"receipt_id":   existing.ID,
		"order_number": existing.OrderNumber,
	})
}

func (p *Payrec) recordDuplicate(ctx context.Context, req UploadReceiptRequest, contentHash, originalID string) {
	logrus.WithFields(logrus.Fields{
		"order_number":        req.OrderNumber,
		"original_receipt_id": originalID,
		"attempted_by":        req.UploadedBy,
	}).Warn("duplicate receipt submission")

	err := p.datasource.RecordDuplicateAttempt(ctx, model.DuplicateAttempt{
		OrderNumber:       req.OrderNumber,
		ContentHash:       contentHash,
		OriginalReceiptID: originalID,
		AttemptedBy:       req.UploadedBy,
		AttemptedAt:       p.now(),
	})
	if err != nil {
		logrus.WithError(err).Warn("failed to record duplicate receipt attempt")
	}
}

func (p *Payrec) storeReceiptImage(ctx context.Context, receipt *model.Receipt, req UploadReceiptRequest) {
	path := storage.ReceiptPath(receipt.OrderNumber, receipt.ID, req.FileName, p.now())
	url, err := p.storage.Upload(ctx, path, req.Image, req.ContentType)
	if errors.Is(err, storage.ErrDisabled) {
		return
	}
	logger := logrus.WithFields(logrus.Fields{"receipt_id": receipt.ID, "path": path})
	if err != nil {
		logger.WithError(err).Warn("receipt image upload failed")
		return
	}
	if err := p.datasource.UpdateReceiptFileURL(ctx, receipt.ID, url); err != nil {
		logger.WithError(err).Warn("failed to record receipt image url")
		return
	}
	receipt.FileURL = url
}

func (p *Payrec) GetReceipt(ctx context.Context, id string) (*model.Receipt, error) {
	return p.datasource.GetReceipt(ctx, id)
}

// ConfirmReceipt accepts an awaiting receipt with the given amount, or the
// detected one, and recomputes its order.
func (p *Payrec) ConfirmReceipt(ctx context.Context, id string, req ReviewRequest) (*model.Receipt, *model.Order, error) {
	ctx, span := otel.Tracer("payrec.receipt").Start(ctx, "ConfirmReceipt")
	defer span.End()

	return p.reviewReceipt(ctx, id, func(r *model.Receipt) (model.ReceiptReview, error) {
		amount := req.Amount
		if amount == nil {
			amount = r.DetectedAmount
		}
		if amount == nil || !amount.IsPositive() {
			return model.ReceiptReview{}, apierror.NewAPIError(apierror.ErrInvalidInput, "a positive amount is required to confirm this receipt", nil)
		}
		return model.ReceiptReview{
			ReceiptID:       r.ID,
			State:           model.ReceiptConfirmed,
			ConfirmedAmount: amount,
			ReviewedBy:      req.ReviewedBy,
		}, nil
	})
}

// RejectReceipt refuses an awaiting receipt and recomputes its order.
func (p *Payrec) RejectReceipt(ctx context.Context, id string, req ReviewRequest) (*model.Receipt, *model.Order, error) {
	ctx, span := otel.Tracer("payrec.receipt").Start(ctx, "RejectReceipt")
	defer span.End()

	return p.reviewReceipt(ctx, id, func(r *model.Receipt) (model.ReceiptReview, error) {
		return model.ReceiptReview{
			ReceiptID:       r.ID,
			State:           model.ReceiptRejected,
			ReviewedBy:      req.ReviewedBy,
			RejectionReason: strings.TrimSpace(req.Reason),
		}, nil
	})
}

// reviewReceipt runs a confirm or reject under the per receipt debounce. A
// second request inside the window is refused as a duplicate; a failed
// review frees the window so it can be retried.
func (p *Payrec) reviewReceipt(ctx context.Context, id string, build func(*model.Receipt) (model.ReceiptReview, error)) (*model.Receipt, *model.Order, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil, apierror.NewAPIError(apierror.ErrInvalidInput, "receipt id is required", nil)
	}

	release, err := p.debouncer.Claim(ctx, "receipt:"+id)
	switch {
	case errors.Is(err, redlock.ErrDebounced):
		var debounced *redlock.DebouncedError
		if errors.As(err, &debounced) {
			return nil, nil, apierror.NewAPIError(apierror.ErrDuplicate, "this receipt is already being reviewed", map[string]int64{
				"retry_after_ms": debounced.RetryAfter.Milliseconds(),
			})
		}
		return nil, nil, apierror.NewAPIError(apierror.ErrDuplicate, "this receipt is already being reviewed", nil)
	case err != nil:
		logrus.WithError(err).WithField("receipt_id", id).Warn("debounce unavailable, reviewing without it")
		release = func(context.Context) {}
	}

	receipt, order, err := p.applyReview(ctx, id, build)
	if err != nil {
		release(ctx)
		return nil, nil, err
	}
	return receipt, order, nil
}

func (p *Payrec) applyReview(ctx context.Context, id string, build func(*model.Receipt) (model.ReceiptReview, error)) (*model.Receipt, *model.Order, error) {
	current, err := p.datasource.GetReceipt(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if current.State != model.ReceiptAwaitingConfirmation {
		return nil, nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("receipt is already %s", current.State), nil)
	}

	review, err := build(current)
	if err != nil {
		return nil, nil, err
	}
	review.ReviewedAt = p.now()

	receipt, err := p.datasource.ReviewReceipt(ctx, review)
	if err != nil {
		return nil, nil, err
	}

	order, err := p.RecomputeOrder(ctx, receipt.OrderNumber)
	if err != nil {
		return nil, nil, err
	}

	logrus.WithFields(logrus.Fields{
		"receipt_id":    receipt.ID,
		"order_number":  receipt.OrderNumber,
		"state":         receipt.State,
		"payment_state": order.PaymentState,
	}).Info("receipt reviewed")

	template := messaging.TemplateReceiptConfirmed
	variables := map[string]string{"order_number": order.OrderNumber, "balance": order.Balance.String()}
	if receipt.State == model.ReceiptRejected {
		template = messaging.TemplateReceiptRejected
		variables["reason"] = receipt.RejectionReason
	} else if receipt.ConfirmedAmount != nil {
		variables["amount"] = receipt.ConfirmedAmount.String()
	}
	p.notifyCustomer(ctx, order, template, variables)
	return receipt, order, nil
}

// notifyCustomer queues a templated message for the order's customer. It is
// best effort; failures are logged.
func (p *Payrec) notifyCustomer(ctx context.Context, order *model.Order, template string, variables map[string]string) {
	if order == nil || order.CustomerPhone == "" || p.config.Messaging.Url == "" {
		return
	}
	err := p.queue.EnqueueMessage(ctx, messaging.Message{To: order.CustomerPhone, Template: template, Variables: variables})
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"order_number": order.OrderNumber,
			"template":     template,
		}).Warn("failed to queue customer message")
	}
}
