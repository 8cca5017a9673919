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
	"io"
	"net/http"

	"github.com/blnkfinance/payrec/config"
	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 1 << 20

// PlatformWebhook receives order events from the store. The raw body is
// passed through untouched so the signature can be checked against it.
func (a Api) PlatformWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read request body"})
		return
	}

	header := a.config.Platform.SignatureHeader
	if header == "" {
		header = config.DEFAULT_WEBHOOK_SIGNATURE_HDR
	}

	ack, err := a.payrec.HandlePlatformWebhook(c.Request.Context(), body, c.GetHeader(header))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, ack)
}
