package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mokanichokani/ledger-service/internal/ledger"
)

// AnalyticsReader derives aggregate views from the transaction log.
type AnalyticsReader interface {
	Summary() ledger.Summary
	ByType() ledger.TypeBreakdown
}

type AnalyticsHandler struct {
	analytics AnalyticsReader
}

func NewAnalyticsHandler(analytics AnalyticsReader) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

func (h *AnalyticsHandler) GetSummary(c *gin.Context) {
	c.JSON(http.StatusOK, h.analytics.Summary())
}

func (h *AnalyticsHandler) GetByType(c *gin.Context) {
	c.JSON(http.StatusOK, h.analytics.ByType())
}
