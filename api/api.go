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
	"github.com/blnkfinance/payrec/config"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type Api struct {
	payrec *payrec.Payrec
	router *gin.Engine
	config *config.Configuration
}

func (a Api) Router() *gin.Engine {
	router := a.router

	// The store authenticates webhooks with its own signature.
	router.POST("/webhooks/platform", a.PlatformWebhook)

	protected := router.Group("/")
	if a.config.Server.Secure {
		protected.Use(middleware.SecretKeyAuthMiddleware(a.config.Server.SecretKey))
	}

	protected.GET("/sync/status", a.GetSyncStatus)
	protected.GET("/sync/items", a.ListSyncItems)
	protected.POST("/sync/trigger", a.TriggerSync)
	protected.POST("/sync/resync", a.ResyncOrders)

	protected.POST("/receipts", a.UploadReceipt)
	protected.GET("/receipts/:id", a.GetReceipt)
	protected.POST("/receipts/:id/confirm", a.ConfirmReceipt)
	protected.POST("/receipts/:id/reject", a.RejectReceipt)

	protected.GET("/orders/:number", a.GetOrder)
	protected.PUT("/orders/:number/total", a.UpdateDeclaredTotal)
	protected.POST("/orders/:number/cash-payments", a.RecordCashPayment)
	protected.POST("/orders/:number/workflow", a.ApplyWorkflowAction)
	protected.GET("/orders/:number/inconsistencies", a.GetInconsistencies)
	protected.POST("/orders/:number/verify", a.VerifyOrder)

	protected.GET("/financial-entities", a.GetFinancialEntities)
	protected.POST("/financial-entities", a.CreateFinancialEntity)
	protected.GET("/financial-entities/:id", a.GetFinancialEntity)
	protected.PUT("/financial-entities/:id/default", a.SetDefaultFinancialEntity)
	protected.DELETE("/financial-entities/:id", a.DeactivateFinancialEntity)

	return a.router
}

func NewAPI(p *payrec.Payrec) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(otelgin.Middleware(conf.ProjectName))
	r.Use(middleware.RateLimitMiddleware(conf, "/webhooks/"))

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, "server running...")
	})

	return &Api{payrec: p, router: r, config: conf}
}
