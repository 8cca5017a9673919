package model

import "time"

type InconsistencyType string

const (
	InconsistencyMissing          InconsistencyType = "missing"
	InconsistencyExtra            InconsistencyType = "extra"
	InconsistencyQuantityMismatch InconsistencyType = "quantity_mismatch"
	InconsistencyTotalMismatch    InconsistencyType = "total_mismatch"
)

// Inconsistency is a finding of the line item verifier. Only the latest
// verification's findings stay unresolved.
type Inconsistency struct {
	ID          int64             `json:"id"`
	OrderNumber string            `json:"order_number"`
	Type        InconsistencyType `json:"type"`
	ProductID   string            `json:"product_id,omitempty"`
	VariantID   string            `json:"variant_id,omitempty"`
	Detail      string            `json:"detail"`
	Resolved    bool              `json:"resolved"`
	DetectedAt  time.Time         `json:"detected_at"`
	ResolvedAt  *time.Time        `json:"resolved_at,omitempty"`
}
