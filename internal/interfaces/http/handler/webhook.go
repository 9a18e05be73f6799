package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/retailpulse/backend/internal/application/notifier"
	"github.com/retailpulse/backend/internal/infrastructure/logger"
	"github.com/retailpulse/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// Change notification headers set by the Drive push service.
const (
	HeaderChannelID     = "X-Goog-Channel-ID"
	HeaderResourceID    = "X-Goog-Resource-ID"
	HeaderResourceState = "X-Goog-Resource-State"
	HeaderMessageNumber = "X-Goog-Message-Number"
)

// ChangeHandler reacts to spreadsheet change callbacks.
type ChangeHandler interface {
	HandleChangeEvent(ctx context.Context, ev notifier.ChangeEvent) error
	HandleSheetUpdate(ctx context.Context, sheetID string) error
}

// WebhookHandler receives change callbacks. Its routes are unauthenticated.
type WebhookHandler struct {
	BaseHandler
	changes ChangeHandler
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(changes ChangeHandler) *WebhookHandler {
	return &WebhookHandler{changes: changes}
}

// SheetChange handles a push notification. Anything past header validation
// is acknowledged with 200 so the sender does not retry.
// POST /sheet-change-webhook
func (h *WebhookHandler) SheetChange(c *gin.Context) {
	ev := notifier.ChangeEvent{
		ChannelID:     c.GetHeader(HeaderChannelID),
		ResourceID:    c.GetHeader(HeaderResourceID),
		ResourceState: c.GetHeader(HeaderResourceState),
		MessageNumber: c.GetHeader(HeaderMessageNumber),
	}
	if ev.ChannelID == "" || ev.ResourceID == "" {
		h.BadRequest(c, "Missing channel headers")
		return
	}

	log := logger.L(c.Request.Context()).With(
		zap.String("channel_id", ev.ChannelID),
		zap.String("resource_state", ev.ResourceState))

	if err := h.changes.HandleChangeEvent(c.Request.Context(), ev); err != nil {
		if errors.Is(err, notifier.ErrUnknownChannel) {
			log.Warn("Change notification for unknown channel")
		} else {
			log.Error("Failed to process change notification", zap.Error(err))
		}
	}
	c.Status(http.StatusOK)
}

// SheetUpdate is the older callback that names the spreadsheet directly.
// POST /api/sheet-update
func (h *WebhookHandler) SheetUpdate(c *gin.Context) {
	var req dto.SheetUpdateRequest
	if c.Request.ContentLength != 0 {
		_ = c.ShouldBindJSON(&req)
	}
	sheetID := req.SheetID
	if sheetID == "" {
		sheetID = c.GetHeader(HeaderResourceID)
	}
	if sheetID == "" {
		h.BadRequest(c, "Missing sheetId")
		return
	}

	err := h.changes.HandleSheetUpdate(c.Request.Context(), sheetID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, dto.StatusResponse{Status: "ok"})
	case errors.Is(err, notifier.ErrUnknownChannel):
		h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, "No inventory linked to this sheet")
	default:
		h.HandleError(c, err)
	}
}
