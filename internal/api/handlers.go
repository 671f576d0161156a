/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"deposit-reconciler-go/internal/models"
	"deposit-reconciler-go/internal/store"
	"deposit-reconciler-go/internal/webhook"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Sweeper is satisfied by *listener.DepositListener.
type Sweeper interface {
	SweepAll(ctx context.Context) (*models.SweepReport, error)
	SweepPair(ctx context.Context, pair models.WatchPair) models.PairResult
}

// WebhookIngestor is satisfied by *webhook.Ingestor.
type WebhookIngestor interface {
	Ingest(ctx context.Context, body []byte, signature string) ([]models.ReconcileResult, error)
}

type Handlers struct {
	deposits *DepositService
	ingestor WebhookIngestor
	sweeper  Sweeper
}

func NewHandlers(deposits *DepositService, ingestor WebhookIngestor, sweeper Sweeper) *Handlers {
	return &Handlers{deposits: deposits, ingestor: ingestor, sweeper: sweeper}
}

// Health handles GET /healthz
func (h *Handlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.deposits.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// DepositWebhook handles POST /api/v1/webhooks/deposit
func (h *Handlers) DepositWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondError(c, errors.Join(webhook.ErrMalformedPayload, err))
		return
	}

	results, err := h.ingestor.Ingest(c.Request.Context(), body, c.GetHeader(webhook.SignatureHeader))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Webhook processed successfully",
		"results": results,
	})
}

// MonitorPair handles POST /api/v1/deposits/monitor
func (h *Handlers) MonitorPair(c *gin.Context) {
	var req models.MonitorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	asset, err := models.ParseAsset(req.CryptoType)
	if err != nil {
		respondError(c, errors.Join(ErrInvalidRequest, err))
		return
	}

	zap.L().Info("Manual sweep requested",
		zap.String("address", req.WalletAddress),
		zap.String("asset", asset.String()),
		zap.String("user_id", req.UserId))

	result := h.sweeper.SweepPair(c.Request.Context(), models.WatchPair{
		Address: strings.TrimSpace(req.WalletAddress),
		Asset:   asset,
	})
	c.JSON(http.StatusOK, result)
}

// MonitorAll handles GET /api/v1/deposits/monitor (scheduler trigger)
func (h *Handlers) MonitorAll(c *gin.Context) {
	report, err := h.sweeper.SweepAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// DepositStatus handles POST /api/v1/deposits/status
func (h *Handlers) DepositStatus(c *gin.Context) {
	var req models.StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	view, err := h.deposits.DepositStatus(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// UserDeposits handles GET /api/v1/deposits/status?userId=
func (h *Handlers) UserDeposits(c *gin.Context) {
	deposits, err := h.deposits.UserDeposits(c.Request.Context(), c.Query("userId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deposits": deposits})
}

// ListOrphans handles GET /api/v1/admin/deposits/orphans
func (h *Handlers) ListOrphans(c *gin.Context) {
	orphans, err := h.deposits.ListOrphans(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deposits": orphans})
}

// AssignOrphan handles POST /api/v1/admin/deposits/:id/assign
func (h *Handlers) AssignOrphan(c *gin.Context) {
	var req models.AssignOrphanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	credit, err := h.deposits.AssignOrphan(c.Request.Context(), c.Param("id"), req.UserId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, credit)
}

// ApproveClaim handles POST /api/v1/admin/deposits/:id/approve
func (h *Handlers) ApproveClaim(c *gin.Context) {
	var req models.ApproveRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidation(c, err)
			return
		}
	}

	credit, err := h.deposits.ApproveClaim(c.Request.Context(), c.Param("id"), req.TxHash)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, credit)
}

// RejectClaim handles POST /api/v1/admin/deposits/:id/reject
func (h *Handlers) RejectClaim(c *gin.Context) {
	var req models.RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	deposit, err := h.deposits.RejectClaim(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, deposit)
}

// UserBalance handles GET /api/v1/admin/users/:id/balance
func (h *Handlers) UserBalance(c *gin.Context) {
	view, err := h.deposits.UserBalance(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func respondValidation(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			details[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "validation failed", Details: details})
		return
	}
	c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body"})
}

func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, webhook.ErrMalformedPayload):
		status = http.StatusBadRequest
	case errors.Is(err, webhook.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, store.ErrDepositNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrClaimNotPending),
		errors.Is(err, store.ErrNotOrphan),
		errors.Is(err, store.ErrDuplicateTransaction),
		errors.Is(err, store.ErrConcurrentModification):
		status = http.StatusConflict
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		zap.L().Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString("request_id")),
			zap.Error(err))
		message = "internal server error"
	}
	c.JSON(status, models.ErrorResponse{Error: message})
}
