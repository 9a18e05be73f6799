package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	insightsapp "github.com/retailpulse/backend/internal/application/insights"
	sourceapp "github.com/retailpulse/backend/internal/application/source"
	"github.com/retailpulse/backend/internal/domain/insights"
	"github.com/retailpulse/backend/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
)

// InsightsService serves reports and stock writes.
type InsightsService interface {
	GetReport(ctx context.Context, userID string) (*insights.InsightsReport, error)
	GetSummary(ctx context.Context, userID string) (insights.QuickSummary, error)
	PushSummary(ctx context.Context, userID string) (insights.QuickSummary, error)
	UpdateStock(ctx context.Context, userID, productName string, qty decimal.Decimal) (*insightsapp.UpdateStockResult, error)
}

// SourceService links and unlinks spreadsheets.
type SourceService interface {
	Connect(ctx context.Context, userID, sheetURL string) (*sourceapp.ConnectResponse, error)
	GetLinked(ctx context.Context, userID string) (*sourceapp.LinkedResponse, error)
	Disconnect(ctx context.Context, userID string) error
}

// InventoryHandler serves the /inventory routes
type InventoryHandler struct {
	BaseHandler
	insights InsightsService
	sources  SourceService
}

// NewInventoryHandler creates a new InventoryHandler
func NewInventoryHandler(insights InsightsService, sources SourceService) *InventoryHandler {
	return &InventoryHandler{insights: insights, sources: sources}
}

// GetInsights returns the full report.
// GET /api/v1/inventory/insights
func (h *InventoryHandler) GetInsights(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	report, err := h.insights.GetReport(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ReportResponse{Report: report})
}

// GetSummary returns stock totals and the top stocked products.
// GET /api/v1/inventory/summary
func (h *InventoryHandler) GetSummary(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	summary, err := h.insights.GetSummary(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// GetUpdates recomputes the report and pushes the summary to live sessions.
// GET /api/v1/inventory/updates
func (h *InventoryHandler) GetUpdates(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	summary, err := h.insights.PushSummary(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// Connect links a spreadsheet.
// POST /api/v1/inventory/connect
func (h *InventoryHandler) Connect(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req dto.ConnectRequest
	if !h.BindJSON(c, &req) {
		return
	}

	res, err := h.sources.Connect(c.Request.Context(), userID, req.SheetURL)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, res)
}

// GetLinked returns the linked spreadsheet URL.
// GET /api/v1/inventory/string
func (h *InventoryHandler) GetLinked(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	res, err := h.sources.GetLinked(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, res)
}

// Disconnect unlinks the spreadsheet.
// GET /api/v1/inventory/disconnect, DELETE /api/v1/inventory/connect
func (h *InventoryHandler) Disconnect(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	if err := h.sources.Disconnect(c.Request.Context(), userID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"message": "Inventory disconnected."})
}

// UpdateStock writes a new stock quantity to the products tab.
// POST /api/v1/inventory/update-stock
func (h *InventoryHandler) UpdateStock(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req dto.UpdateStockRequest
	if !h.BindJSON(c, &req) {
		return
	}

	res, err := h.insights.UpdateStock(c.Request.Context(), userID, req.ProductName, decimal.NewFromFloat(*req.NewStockQuantity))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, res)
}
