package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReceiptState string

const (
	ReceiptAwaitingConfirmation ReceiptState = "awaiting_confirmation"
	ReceiptConfirmed            ReceiptState = "confirmed"
	ReceiptRejected             ReceiptState = "rejected"
)

// Receipt is an uploaded proof of transfer. Once it leaves awaiting_confirmation
// its state never changes again.
type Receipt struct {
	ID                    string           `json:"receipt_id"`
	OrderNumber           string           `json:"order_number"`
	ContentHash           string           `json:"content_hash"`
	RawText               string           `json:"raw_text,omitempty"`
	DetectedAmount        *decimal.Decimal `json:"detected_amount,omitempty"`
	ConfirmedAmount       *decimal.Decimal `json:"confirmed_amount,omitempty"`
	DeclaredTotalAtUpload decimal.Decimal  `json:"declared_total_at_upload"`
	State                 ReceiptState     `json:"state"`
	FinancialEntityID     *string          `json:"financial_entity_id,omitempty"`
	MatchStrategy         string           `json:"match_strategy,omitempty"`
	FileURL               string           `json:"file_url,omitempty"`
	UploadedBy            string           `json:"uploaded_by,omitempty"`
	ReviewedBy            string           `json:"reviewed_by,omitempty"`
	RejectionReason       string           `json:"rejection_reason,omitempty"`
	CreatedAt             time.Time        `json:"created_at"`
	ReviewedAt            *time.Time       `json:"reviewed_at,omitempty"`
}

// CashPayment is an append-only record of money taken in person.
type CashPayment struct {
	ID          string          `json:"cash_payment_id"`
	OrderNumber string          `json:"order_number"`
	Amount      decimal.Decimal `json:"amount"`
	RecordedBy  string          `json:"recorded_by"`
	Notes       string          `json:"notes,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// DuplicateAttempt is kept for audit when a receipt is refused as a duplicate.
type DuplicateAttempt struct {
	OrderNumber       string    `json:"order_number"`
	ContentHash       string    `json:"content_hash"`
	OriginalReceiptID string    `json:"original_receipt_id"`
	AttemptedBy       string    `json:"attempted_by"`
	AttemptedAt       time.Time `json:"attempted_at"`
}

// ReceiptReview moves an awaiting receipt to its final state.
type ReceiptReview struct {
	ReceiptID       string
	State           ReceiptState
	ConfirmedAmount *decimal.Decimal
	ReviewedBy      string
	RejectionReason string
	ReviewedAt      time.Time
}
