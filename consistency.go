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

	"github.com/blnkfinance/payrec/internal/consistency"
	"github.com/blnkfinance/payrec/model"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

// ConsistencyReport is the outcome of one line item verification. Degraded
// is set when the check could not run; the order is then reported consistent.
type ConsistencyReport struct {
	OrderNumber string                `json:"order_number"`
	Consistent  bool                  `json:"consistent"`
	Degraded    bool                  `json:"degraded,omitempty"`
	Findings    []consistency.Finding `json:"findings,omitempty"`
}

// VerifyOrderConsistency diffs the local line items of an order against the
// remote ones and replaces the order's open inconsistencies with the fresh
// findings. It never fails the caller.
func (p *Payrec) VerifyOrderConsistency(ctx context.Context, orderNumber string, remote []model.OrderLineItem) ConsistencyReport {
	ctx, span := otel.Tracer("payrec.consistency").Start(ctx, "VerifyOrderConsistency")
	defer span.End()

	degraded := func(err error) ConsistencyReport {
		span.RecordError(err)
		logrus.WithError(err).WithField("order_number", orderNumber).Warn("consistency check skipped")
		return ConsistencyReport{OrderNumber: orderNumber, Consistent: true, Degraded: true}
	}

	local, err := p.datasource.GetLineItems(ctx, orderNumber)
	if err != nil {
		return degraded(err)
	}

	findings := consistency.Diff(local, remote)
	if err := p.datasource.ReplaceInconsistencies(ctx, orderNumber, consistency.ToInconsistencies(orderNumber, findings), p.now()); err != nil {
		return degraded(err)
	}

	if len(findings) > 0 {
		logrus.WithFields(logrus.Fields{
			"order_number": orderNumber,
			"findings":     len(findings),
		}).Warn("order line items differ from the store")
	}
	return ConsistencyReport{OrderNumber: orderNumber, Consistent: len(findings) == 0, Findings: findings}
}

// VerifyRemoteOrder fetches the order from the store and diffs it against
// the local mirror without touching the recorded inconsistencies.
func (p *Payrec) VerifyRemoteOrder(ctx context.Context, orderNumber string) (ConsistencyReport, error) {
	order, err := p.GetOrder(ctx, orderNumber)
	if err != nil {
		return ConsistencyReport{}, err
	}
	remote, err := p.fetchRemoteOrder(ctx, remoteResourceID(order))
	if err != nil {
		return ConsistencyReport{}, err
	}
	local, err := p.datasource.GetLineItems(ctx, orderNumber)
	if err != nil {
		return ConsistencyReport{}, err
	}
	findings := consistency.Diff(local, remote.LineItems)
	return ConsistencyReport{OrderNumber: orderNumber, Consistent: len(findings) == 0, Findings: findings}, nil
}

func (p *Payrec) ListOpenInconsistencies(ctx context.Context, orderNumber string) ([]model.Inconsistency, error) {
	if err := validOrderNumber(orderNumber); err != nil {
		return nil, err
	}
	return p.datasource.ListOpenInconsistencies(ctx, orderNumber)
}
