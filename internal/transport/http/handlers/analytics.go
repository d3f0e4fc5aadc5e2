package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/infra/mlclient"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/transport/http/middleware"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/usecase"
)

const maxProxyBodyBytes = 1 << 20

// AnalyticsHandler relays requests to the external prediction service. The
// upstream's JSON passes through untouched; only transport failures are
// rewritten into the local envelope.
type AnalyticsHandler struct {
	analytics *usecase.AnalyticsService
}

// NewAnalyticsHandler builds an analytics handler.
func NewAnalyticsHandler(analytics *usecase.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Predict forwards a price prediction request.
func (h *AnalyticsHandler) Predict(c *gin.Context) {
	body, ok := h.readBody(c)
	if !ok {
		return
	}

	userID, _ := middleware.GetAuthenticatedUserID(c)
	resp, err := h.analytics.Predict(c.Request.Context(), userID, body)
	h.relay(c, resp, err)
}

// MarketAnalysis forwards a market analysis request.
func (h *AnalyticsHandler) MarketAnalysis(c *gin.Context) {
	body, ok := h.readBody(c)
	if !ok {
		return
	}

	resp, err := h.analytics.MarketAnalysis(c.Request.Context(), body)
	h.relay(c, resp, err)
}

// HypeScore forwards a hype score request.
func (h *AnalyticsHandler) HypeScore(c *gin.Context) {
	body, ok := h.readBody(c)
	if !ok {
		return
	}

	resp, err := h.analytics.HypeScore(c.Request.Context(), body)
	h.relay(c, resp, err)
}

// GoogleTrends forwards a trends lookup.
func (h *AnalyticsHandler) GoogleTrends(c *gin.Context) {
	body, ok := h.readBody(c)
	if !ok {
		return
	}

	resp, err := h.analytics.GoogleTrends(c.Request.Context(), body)
	h.relay(c, resp, err)
}

// SmartSearch forwards a natural-language search request.
func (h *AnalyticsHandler) SmartSearch(c *gin.Context) {
	body, ok := h.readBody(c)
	if !ok {
		return
	}

	resp, err := h.analytics.SmartSearch(c.Request.Context(), body)
	h.relay(c, resp, err)
}

// SearchSneakers forwards a catalog search.
func (h *AnalyticsHandler) SearchSneakers(c *gin.Context) {
	userID, _ := middleware.GetAuthenticatedUserID(c)
	resp, err := h.analytics.SearchSneakers(c.Request.Context(), userID, c.Request.URL.Query())
	h.relay(c, resp, err)
}

// Brands forwards a brand list request.
func (h *AnalyticsHandler) Brands(c *gin.Context) {
	resp, err := h.analytics.Brands(c.Request.Context())
	h.relay(c, resp, err)
}

func (h *AnalyticsHandler) readBody(c *gin.Context) (json.RawMessage, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxProxyBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "could not read request body"))
		return nil, false
	}
	if len(body) > 0 && !json.Valid(body) {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "request body must be valid JSON"))
		return nil, false
	}
	return body, true
}

func (h *AnalyticsHandler) relay(c *gin.Context, resp *mlclient.Response, err error) {
	if err != nil {
		if errors.Is(err, mlclient.ErrUnavailable) {
			c.JSON(http.StatusBadGateway, NewErrorResponse(c, "analytics service is unavailable"))
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "analytics request failed"))
		return
	}

	c.Data(resp.StatusCode, "application/json", resp.Body)
}
