package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"callboard/internal/calls"
	"callboard/internal/dialer"
	"callboard/internal/reporting"
	"callboard/internal/vapi"
	"callboard/internal/webhook"
	"callboard/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal modules, return JSON.

type Handlers struct {
	Dialer     *dialer.Service
	Reconciler *webhook.Reconciler
	Store      calls.Store
	Reports    *reporting.Service
}

// --- Call initiation ---

type startCallRequest struct {
	PhoneNumber string `json:"phone_number"`
}

// StartCall places one outbound call and passes the provider's raw
// response through to the caller.
func (h Handlers) StartCall(c *gin.Context) {
	if h.Dialer == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "dialer not configured"})
		return
	}
	var req startCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	handle, err := h.Dialer.StartCall(c.Request.Context(), req.PhoneNumber)
	if err != nil {
		h.renderDialError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", handle.Raw)
}

type startBatchRequest struct {
	PhoneNumbers []string `json:"phone_numbers"`
}

// StartBatch fans out a rate-limited sequence of dials and reports the
// per-number outcomes.
func (h Handlers) StartBatch(c *gin.Context) {
	if h.Dialer == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "dialer not configured"})
		return
	}
	var req startBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	items, err := h.Dialer.StartBatch(c.Request.Context(), req.PhoneNumbers)
	if err != nil {
		if errors.Is(err, dialer.ErrInvalidArgument) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		// Partial results are still worth returning to the dashboard.
		c.JSON(http.StatusOK, gin.H{"results": items, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": items})
}

func (h Handlers) renderDialError(c *gin.Context, err error) {
	if errors.Is(err, dialer.ErrInvalidArgument) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "phone number required"})
		return
	}
	var upstream *vapi.UpstreamError
	if errors.As(err, &upstream) {
		logger.FromGin(c).Error("provider rejected call", "status", upstream.StatusCode, "err", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{
			"error":    "call failed",
			"provider": providerPayload(upstream.Body),
		})
		return
	}
	logger.FromGin(c).Error("call start failed", "err", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call failed"})
}

// providerPayload passes the provider's error body through as JSON when
// possible, falling back to a plain string.
func providerPayload(body string) any {
	if body == "" {
		return nil
	}
	if json.Valid([]byte(body)) {
		return json.RawMessage(body)
	}
	return body
}

// --- Webhook ingestion ---

// Webhook ingests a provider event. It acknowledges every delivery:
// malformed, duplicate, and unmatched events must not trigger the
// sender's retry policy.
func (h Handlers) Webhook(c *gin.Context) {
	var ev webhook.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		logger.FromGin(c).Warn("webhook payload not decodable", "err", err)
		c.Status(http.StatusOK)
		return
	}
	if h.Reconciler != nil {
		h.Reconciler.HandleEvent(c.Request.Context(), ev)
	}
	c.Status(http.StatusOK)
}

// --- Dashboard reads ---

// ListCalls returns the summary block plus every record in insertion
// order; the dashboard reverses client-side for newest-first display.
func (h Handlers) ListCalls(c *gin.Context) {
	if h.Store == nil || h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "store not configured"})
		return
	}
	summary, err := h.Reports.Summarize(c.Request.Context())
	if err != nil {
		logger.FromGin(c).Error("summary failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "summary failed"})
		return
	}

	records := make([]calls.Call, 0)
	for rec := range h.Store.All() {
		records = append(records, rec)
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary, "calls": records})
}

func (h Handlers) GetCall(c *gin.Context) {
	if h.Store == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "store not configured"})
		return
	}
	rec, err := h.Store.FindByID(c.Param("id"))
	if err != nil {
		if errors.Is(err, calls.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Call not found"})
			return
		}
		logger.FromGin(c).Error("call lookup failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, rec)
}
