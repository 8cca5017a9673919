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

package api

import (
	"net/http"

	"github.com/blnkfinance/payrec"
	"github.com/blnkfinance/payrec/api/middleware"
	model2 "github.com/blnkfinance/payrec/api/model"
	"github.com/blnkfinance/payrec/internal/payment"
	"github.com/gin-gonic/gin"
)

func (a Api) GetOrder(c *gin.Context) {
	number, ok := requiredParam(c, "number")
	if !ok {
		return
	}

	resp, err := a.payrec.GetOrderDetail(c.Request.Context(), number)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) UpdateDeclaredTotal(c *gin.Context) {
	number, ok := requiredParam(c, "number")
	if !ok {
		return
	}

	var req model2.UpdateDeclaredTotal
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.ValidateUpdateDeclaredTotal(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.payrec.UpdateDeclaredTotal(c.Request.Context(), number, req.Total)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) RecordCashPayment(c *gin.Context) {
	number, ok := requiredParam(c, "number")
	if !ok {
		return
	}

	var req model2.RecordCashPayment
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.ValidateRecordCashPayment(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	cash, order, err := a.payrec.RecordCashPayment(c.Request.Context(), payrec.CashPaymentRequest{
		OrderNumber: number,
		Amount:      req.Amount,
		RecordedBy:  req.RecordedBy,
		Notes:       req.Notes,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"cash_payment": cash, "order": order})
}

func (a Api) ApplyWorkflowAction(c *gin.Context) {
	number, ok := requiredParam(c, "number")
	if !ok {
		return
	}

	var req model2.WorkflowAction
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.ValidateWorkflowAction(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.payrec.ApplyWorkflowAction(c.Request.Context(), number, payment.Action(req.Action), middleware.Operator(c, req.Actor))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) GetInconsistencies(c *gin.Context) {
	number, ok := requiredParam(c, "number")
	if !ok {
		return
	}

	resp, err := a.payrec.ListOpenInconsistencies(c.Request.Context(), number)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// VerifyOrder diffs the local mirror against the store without recording
// the findings.
func (a Api) VerifyOrder(c *gin.Context) {
	number, ok := requiredParam(c, "number")
	if !ok {
		return
	}

	resp, err := a.payrec.VerifyRemoteOrder(c.Request.Context(), number)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
