package model

import "time"

// FinancialEntity is an account the business accepts transfers into.
type FinancialEntity struct {
	ID                string    `json:"entity_id"`
	Name              string    `json:"name"`
	Alias             string    `json:"alias,omitempty"`
	AccountNumber     string    `json:"account_number,omitempty"`
	AccountHolderName string    `json:"account_holder_name,omitempty"`
	Keywords          []string  `json:"keywords,omitempty"`
	Active            bool      `json:"active"`
	IsDefault         bool      `json:"is_default"`
	CreatedAt         time.Time `json:"created_at"`
}
