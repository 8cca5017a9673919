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

import (
	"errors"
	"regexp"

	"github.com/blnkfinance/payrec/internal/payment"
	"github.com/blnkfinance/payrec/model"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
)

var accountNumberRule = validation.Match(regexp.MustCompile(`^[\d\s-]{22,30}$`)).Error("account number must hold 22 digits")

func positiveAmount(value interface{}) error {
	amount, ok := value.(decimal.Decimal)
	if !ok {
		return errors.New("invalid amount type")
	}
	if !amount.IsPositive() {
		return errors.New("amount must be greater than zero")
	}
	return nil
}

func (e *CreateFinancialEntity) ValidateCreateFinancialEntity() error {
	return validation.ValidateStruct(e,
		validation.Field(&e.Name, validation.Required),
		validation.Field(&e.AccountNumber, validation.When(e.AccountNumber != "", accountNumberRule)),
		validation.Field(&e.Alias, validation.By(func(value interface{}) error {
			if e.Alias == "" && e.AccountNumber == "" && e.AccountHolderName == "" && len(e.Keywords) == 0 {
				return errors.New("at least one of alias, account_number, account_holder_name or keywords is required")
			}
			return nil
		})),
	)
}

func (c *RecordCashPayment) ValidateRecordCashPayment() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Amount, validation.By(positiveAmount)),
		validation.Field(&c.RecordedBy, validation.Required),
	)
}

func (w *WorkflowAction) ValidateWorkflowAction() error {
	return validation.ValidateStruct(w,
		validation.Field(&w.Action, validation.Required, validation.By(func(value interface{}) error {
			action, _ := value.(string)
			if !payment.ValidAction(payment.Action(action)) {
				return errors.New("unknown workflow action")
			}
			return nil
		})),
	)
}

func (u *UpdateDeclaredTotal) ValidateUpdateDeclaredTotal() error {
	return validation.ValidateStruct(u,
		validation.Field(&u.Total, validation.By(func(value interface{}) error {
			total, _ := value.(decimal.Decimal)
			if total.IsNegative() {
				return errors.New("total cannot be negative")
			}
			return nil
		})),
	)
}

func (r *ReviewReceipt) ValidateConfirm() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Amount, validation.When(r.Amount != nil, validation.By(func(value interface{}) error {
			amount, ok := value.(*decimal.Decimal)
			if !ok || amount == nil {
				return nil
			}
			return positiveAmount(*amount)
		}))),
	)
}

func (r *ReviewReceipt) ValidateReject() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Reason, validation.Required, validation.Length(3, 500)),
	)
}

func (r *Resync) ValidateResync() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Limit, validation.Min(0)),
	)
}

func (e *CreateFinancialEntity) ToFinancialEntity() model.FinancialEntity {
	return model.FinancialEntity{
		Name:              e.Name,
		Alias:             e.Alias,
		AccountNumber:     e.AccountNumber,
		AccountHolderName: e.AccountHolderName,
		Keywords:          e.Keywords,
	}
}
