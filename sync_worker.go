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

	"github.com/blnkfinance/payrec/database"
	"github.com/blnkfinance/payrec/internal/apierror"
	"github.com/blnkfinance/payrec/internal/payment"
	"github.com/blnkfinance/payrec/internal/platform"
	"github.com/blnkfinance/payrec/model"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

const actorSync = "sync"

func remoteResourceID(order *model.Order) string {
	if order.RemoteID != nil && *order.RemoteID != "" {
		return *order.RemoteID
	}
	return numberResourcePrefix + order.OrderNumber
}

// linkOrder queues an order_sync for a local order the store has not been
// matched to yet, so its declared total arrives without waiting on a webhook.
// A failure is logged; the caller's write already succeeded.
func (p *Payrec) linkOrder(ctx context.Context, order *model.Order) {
	if order == nil || (order.RemoteID != nil && *order.RemoteID != "") {
		return
	}
	_, _, err := p.EnqueueSync(ctx, SyncRequest{
		Type:        model.SyncOrder,
		ResourceID:  remoteResourceID(order),
		OrderNumber: order.OrderNumber,
	})
	if err != nil {
		logrus.WithError(err).WithField("order_number", order.OrderNumber).Warn("failed to queue sync for unlinked order")
	}
}

// fetchRemoteOrder loads an order from the store. A "number:" resource id is
// resolved by searching for the order number.
func (p *Payrec) fetchRemoteOrder(ctx context.Context, resourceID string) (*platform.RemoteOrder, error) {
	client, err := p.platformClient()
	if err != nil {
		return nil, err
	}

	number, byNumber := strings.CutPrefix(resourceID, numberResourcePrefix)
	if !byNumber {
		return client.FetchOrder(ctx, resourceID)
	}

	orders, err := client.SearchOrders(ctx, platform.SearchParams{Query: number, MaxPages: 1})
	if err != nil {
		return nil, err
	}
	for i := range orders {
		if orders[i].Number == number {
			return &orders[i], nil
		}
	}
	return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("order %s not found on platform", number), nil)
}

// processSyncItem applies one claimed queue item.
func (p *Payrec) processSyncItem(ctx context.Context, item *model.SyncQueueItem) error {
	ctx, span := otel.Tracer("payrec.sync").Start(ctx, "ProcessSyncItem")
	defer span.End()

	switch item.Type {
	case model.SyncOrder, model.SyncOrderCancel:
		_, err := p.SyncOrder(ctx, item.ResourceID, item.Type == model.SyncOrderCancel)
		if err != nil {
			span.RecordError(err)
		}
		return err
	}
	return apierror.NewAPIError(apierror.ErrInvalidInput, "unknown sync item type "+string(item.Type), nil)
}

// SyncOrder pulls one order from the store and aligns the local mirror with
// it: customer and remote id, declared total through the locked recompute,
// line items replaced as a whole, then a fresh consistency check. A cancelled
// remote order, or cancel set, also cancels the local one.
func (p *Payrec) SyncOrder(ctx context.Context, resourceID string, cancel bool) (*model.Order, error) {
	remote, err := p.fetchRemoteOrder(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(remote.Number) == "" {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "remote order "+remote.ID+" has no order number", nil)
	}
	remoteID := remote.ID

	order, err := p.datasource.UpsertOrderMirror(ctx, &model.Order{
		OrderNumber:   remote.Number,
		RemoteID:      &remoteID,
		StoreID:       remote.StoreID,
		CustomerName:  remote.Customer.Name,
		CustomerPhone: remote.Customer.Phone,
	})
	if err != nil {
		return nil, err
	}

	if !order.DeclaredTotal.Equal(remote.Total) {
		if order, err = p.UpdateDeclaredTotal(ctx, remote.Number, remote.Total); err != nil {
			return nil, err
		}
	}

	items := make([]model.OrderLineItem, 0, len(remote.LineItems))
	for _, li := range remote.LineItems {
		li.OrderNumber = remote.Number
		items = append(items, li)
	}
	if err := p.datasource.ReplaceLineItems(ctx, remote.Number, items); err != nil {
		return nil, err
	}
	if _, err := p.datasource.ResolveInconsistencies(ctx, remote.Number, p.now()); err != nil {
		return nil, err
	}
	p.VerifyOrderConsistency(ctx, remote.Number, items)

	if (cancel || remote.Cancelled()) && order.WorkflowState != model.WorkflowCancelled {
		if order, err = p.ApplyWorkflowAction(ctx, remote.Number, payment.ActionCancel, actorSync); err != nil {
			return nil, err
		}
	}

	logrus.WithFields(logrus.Fields{
		"order_number": remote.Number,
		"remote_id":    remote.ID,
		"line_items":   len(items),
	}).Info("order synced")
	return order, nil
}

// drainSyncQueue processes due items until the queue is empty or limit
// items were handled.
func (p *Payrec) drainSyncQueue(ctx context.Context, limit int, result *model.SyncResult) error {
	for result.Processed < limit {
		if err := ctx.Err(); err != nil {
			return err
		}

		item, err := p.datasource.DequeueSync(ctx, p.now())
		if errors.Is(err, database.ErrQueueEmpty) {
			return nil
		}
		if err != nil {
			return err
		}
		result.Processed++

		if procErr := p.processSyncItem(ctx, item); procErr != nil {
			result.Failed++
			if _, err := p.failSync(ctx, item, procErr); err != nil {
				return err
			}
			continue
		}
		result.Succeeded++
		if err := p.completeSync(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

// ResyncOrders enqueues an order_sync for up to limit local orders that are
// not cancelled. Orders with no remote id yet are resolved by order number.
// It returns how many new items were created.
func (p *Payrec) ResyncOrders(ctx context.Context, limit int) (int, error) {
	ctx, span := otel.Tracer("payrec.sync").Start(ctx, "ResyncOrders")
	defer span.End()

	if limit <= 0 || limit > p.config.Sync.ResyncLimit {
		limit = p.config.Sync.ResyncLimit
	}
	orders, err := p.datasource.ListResyncOrders(ctx, limit)
	if err != nil {
		return 0, err
	}

	created := 0
	for i := range orders {
		_, isNew, err := p.EnqueueSync(ctx, SyncRequest{
			Type:        model.SyncOrder,
			ResourceID:  remoteResourceID(&orders[i]),
			OrderNumber: orders[i].OrderNumber,
		})
		if err != nil {
			return created, err
		}
		if isNew {
			created++
		}
	}
	logrus.WithFields(logrus.Fields{"orders": len(orders), "enqueued": created}).Info("mass resync enqueued")
	return created, nil
}
