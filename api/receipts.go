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
	"errors"
	"io"
	"net/http"

	"github.com/blnkfinance/payrec"
	"github.com/blnkfinance/payrec/api/middleware"
	model2 "github.com/blnkfinance/payrec/api/model"
	"github.com/gin-gonic/gin"
)

const maxReceiptSize = 10 << 20

// UploadReceipt accepts a receipt image as multipart form data and runs it
// through extraction, destination validation and duplicate detection.
func (a Api) UploadReceipt(c *gin.Context) {
	orderNumber := c.PostForm("order_number")
	if orderNumber == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order_number is required"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File upload failed"})
		return
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, maxReceiptSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File upload failed"})
		return
	}
	if len(image) > maxReceiptSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "receipt image exceeds 10MB"})
		return
	}

	resp, err := a.payrec.UploadReceipt(c.Request.Context(), payrec.UploadReceiptRequest{
		OrderNumber: orderNumber,
		Image:       image,
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		UploadedBy:  middleware.Operator(c, c.PostForm("uploaded_by")),
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (a Api) GetReceipt(c *gin.Context) {
	id, ok := requiredParam(c, "id")
	if !ok {
		return
	}

	resp, err := a.payrec.GetReceipt(c.Request.Context(), id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) ConfirmReceipt(c *gin.Context) {
	id, ok := requiredParam(c, "id")
	if !ok {
		return
	}

	var req model2.ReviewReceipt
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.ValidateConfirm(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	receipt, order, err := a.payrec.ConfirmReceipt(c.Request.Context(), id, payrec.ReviewRequest{Amount: req.Amount, ReviewedBy: middleware.Operator(c, req.ReviewedBy)})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"receipt": receipt, "order": order})
}

func (a Api) RejectReceipt(c *gin.Context) {
	id, ok := requiredParam(c, "id")
	if !ok {
		return
	}

	var req model2.ReviewReceipt
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.ValidateReject(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	receipt, order, err := a.payrec.RejectReceipt(c.Request.Context(), id, payrec.ReviewRequest{Reason: req.Reason, ReviewedBy: middleware.Operator(c, req.ReviewedBy)})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"receipt": receipt, "order": order})
}
