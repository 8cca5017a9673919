// Package consistency compares the local line item mirror of an order with
// the authoritative remote line items.
package consistency

import (
	"fmt"
	"sort"

	"github.com/blnkfinance/payrec/model"
)

// Finding is one discrepancy between the two sides.
type Finding struct {
	Type      model.InconsistencyType `json:"type"`
	ProductID string                  `json:"product_id,omitempty"`
	VariantID string                  `json:"variant_id,omitempty"`
	Local     int                     `json:"local"`
	Remote    int                     `json:"remote"`
	Detail    string                  `json:"detail"`
}

// Diff keys both sides by (product, variant). Quantities of repeated keys are summed.
func Diff(local, remote []model.OrderLineItem) []Finding {
	localQty, localTotal := index(local)
	remoteQty, remoteTotal := index(remote)

	var findings []Finding
	for _, key := range sortedKeys(remoteQty) {
		r := remoteQty[key]
		l, ok := localQty[key]
		switch {
		case !ok:
			findings = append(findings, Finding{
				Type: model.InconsistencyMissing, ProductID: r.item.ProductID, VariantID: r.item.VariantID,
				Remote: r.qty,
				Detail: fmt.Sprintf("product %s variant %s (qty %d) missing locally", r.item.ProductID, r.item.VariantID, r.qty),
			})
		case l.qty != r.qty:
			findings = append(findings, Finding{
				Type: model.InconsistencyQuantityMismatch, ProductID: r.item.ProductID, VariantID: r.item.VariantID,
				Local: l.qty, Remote: r.qty,
				Detail: fmt.Sprintf("product %s variant %s quantity %d locally, %d remotely", r.item.ProductID, r.item.VariantID, l.qty, r.qty),
			})
		}
	}

	for _, key := range sortedKeys(localQty) {
		if _, ok := remoteQty[key]; ok {
			continue
		}
		l := localQty[key]
		findings = append(findings, Finding{
			Type: model.InconsistencyExtra, ProductID: l.item.ProductID, VariantID: l.item.VariantID,
			Local:  l.qty,
			Detail: fmt.Sprintf("product %s variant %s (qty %d) not present remotely", l.item.ProductID, l.item.VariantID, l.qty),
		})
	}

	if localTotal != remoteTotal {
		findings = append(findings, Finding{
			Type:  model.InconsistencyTotalMismatch,
			Local: localTotal, Remote: remoteTotal,
			Detail: fmt.Sprintf("total quantity %d locally, %d remotely", localTotal, remoteTotal),
		})
	}
	return findings
}

// ToInconsistencies turns findings into unresolved rows for an order.
func ToInconsistencies(orderNumber string, findings []Finding) []model.Inconsistency {
	out := make([]model.Inconsistency, 0, len(findings))
	for _, f := range findings {
		out = append(out, model.Inconsistency{
			OrderNumber: orderNumber,
			Type:        f.Type,
			ProductID:   f.ProductID,
			VariantID:   f.VariantID,
			Detail:      f.Detail,
		})
	}
	return out
}

type line struct {
	item model.OrderLineItem
	qty  int
}

func index(items []model.OrderLineItem) (map[string]line, int) {
	out := make(map[string]line, len(items))
	total := 0
	for _, it := range items {
		l := out[it.Key()]
		l.item = it
		l.qty += it.Quantity
		out[it.Key()] = l
		total += it.Quantity
	}
	return out, total
}

func sortedKeys(m map[string]line) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
