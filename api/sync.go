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
	"strconv"

	model2 "github.com/blnkfinance/payrec/api/model"
	"github.com/blnkfinance/payrec/model"
	"github.com/gin-gonic/gin"
)

func (a Api) GetSyncStatus(c *gin.Context) {
	resp, err := a.payrec.GetSyncStatus(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// TriggerSync starts a sync run, or queues a single rerun when one is
// already in progress.
func (a Api) TriggerSync(c *gin.Context) {
	var req model2.TriggerSync
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Source == "" {
		req.Source = "api"
	}

	resp := a.payrec.TriggerSync(req.Source)
	c.JSON(http.StatusAccepted, resp)
}

func (a Api) ResyncOrders(c *gin.Context) {
	var req model2.Resync
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.ValidateResync(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	enqueued, err := a.payrec.ResyncOrders(c.Request.Context(), req.Limit)
	if err != nil {
		respondWithError(c, err)
		return
	}

	trigger := a.payrec.TriggerSync("resync")
	c.JSON(http.StatusAccepted, gin.H{"enqueued": enqueued, "trigger": trigger})
}

func (a Api) ListSyncItems(c *gin.Context) {
	status := model.SyncStatus(c.DefaultQuery("status", string(model.SyncFailed)))
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a number"})
		return
	}

	resp, err := a.payrec.ListSyncItems(c.Request.Context(), status, limit)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
