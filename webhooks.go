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
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"github.com/blnkfinance/payrec/internal/apierror"
	"github.com/blnkfinance/payrec/internal/signature"
	"github.com/blnkfinance/payrec/model"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

const SourceWebhook = "webhook"

// PlatformEvent is the body of a store webhook delivery.
type PlatformEvent struct {
	Event   string      `json:"event"`
	ID      json.Number `json:"id"`
	StoreID json.Number `json:"store_id"`
}

// WebhookAck is returned to the store once the event is durably recorded,
// or knowingly ignored.
type WebhookAck struct {
	Accepted   bool   `json:"accepted"`
	Event      string `json:"event"`
	SyncItemID int64  `json:"sync_item_id,omitempty"`
	Duplicate  bool   `json:"duplicate,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

var webhookEventTypes = map[string]model.SyncType{
	"order/created":   model.SyncOrder,
	"order/updated":   model.SyncOrder,
	"order/paid":      model.SyncOrder,
	"order/packed":    model.SyncOrder,
	"order/fulfilled": model.SyncOrder,
	"order/cancelled": model.SyncOrderCancel,
}

// HandlePlatformWebhook verifies a store webhook and records it in the sync
// queue. The signature is checked against the raw body before anything is
// written. Once the queue row exists the store gets its ack; the detached
// trigger only speeds processing up, the row is what guarantees it.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - body []byte: The raw request body, exactly as received.
// - providedSignature string: The hex HMAC from the signature header.
//
// Returns:
// - *WebhookAck: The acknowledgement to send back.
// - error: SIGNATURE_INVALID, INVALID_INPUT, or a storage error when the event could not be recorded.
func (p *Payrec) HandlePlatformWebhook(ctx context.Context, body []byte, providedSignature string) (*WebhookAck, error) {
	ctx, span := otel.Tracer("payrec.webhook").Start(ctx, "HandlePlatformWebhook")
	defer span.End()

	if err := signature.Verify(p.config.Platform.WebhookSecret, body, providedSignature); err != nil {
		logrus.WithError(err).Warn("webhook signature rejected")
		if errors.Is(err, signature.ErrNoSecret) {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "webhook secret is not configured", nil)
		}
		return nil, apierror.NewAPIError(apierror.ErrInvalidSignature, "invalid webhook signature", nil)
	}

	var event PlatformEvent
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(&event); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "webhook body is not valid JSON", nil)
	}
	if event.Event == "" || event.ID.String() == "" {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "webhook event and id are required", nil)
	}

	logger := logrus.WithFields(logrus.Fields{"event": event.Event, "remote_id": event.ID.String()})

	syncType, known := webhookEventTypes[event.Event]
	if !known {
		logger.Info("webhook event ignored")
		return &WebhookAck{Event: event.Event, Reason: "event not handled"}, nil
	}
	if storeID := p.config.Platform.StoreID; storeID != "" && event.StoreID.String() != "" && event.StoreID.String() != storeID {
		logger.WithField("store_id", event.StoreID.String()).Warn("webhook for another store ignored")
		return &WebhookAck{Event: event.Event, Reason: "store mismatch"}, nil
	}

	item, created, err := p.EnqueueSync(ctx, SyncRequest{
		Type:       syncType,
		ResourceID: event.ID.String(),
		Payload:    event,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if err := p.queue.EnqueueSyncTrigger(ctx, SourceWebhook); err != nil {
		logger.WithError(err).Warn("failed to queue sync trigger, the timer will pick the item up")
	}

	logger.WithFields(logrus.Fields{"sync_item_id": item.ID, "created": created}).Info("webhook recorded")
	return &WebhookAck{Accepted: true, Event: event.Event, SyncItemID: item.ID, Duplicate: !created}, nil
}
