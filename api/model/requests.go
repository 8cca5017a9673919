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
package model

import "github.com/shopspring/decimal"

type CreateFinancialEntity struct {
	Name              string   `json:"name"`
	Alias             string   `json:"alias"`
	AccountNumber     string   `json:"account_number"`
	AccountHolderName string   `json:"account_holder_name"`
	Keywords          []string `json:"keywords"`
}

type RecordCashPayment struct {
	Amount     decimal.Decimal `json:"amount"`
	RecordedBy string          `json:"recorded_by"`
	Notes      string          `json:"notes"`
}

type WorkflowAction struct {
	Action string `json:"action"`
	Actor  string `json:"actor"`
}

type UpdateDeclaredTotal struct {
	Total decimal.Decimal `json:"total"`
}

type ReviewReceipt struct {
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	Reason     string           `json:"reason"`
	ReviewedBy string           `json:"reviewed_by"`
}

type TriggerSync struct {
	Source string `json:"source"`
}

type Resync struct {
	Limit int `json:"limit"`
}
