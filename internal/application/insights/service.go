// Package insights orchestrates report computation for a user's linked
// spreadsheet: cache, fetch, derive, side effects and real-time pushes.
package insights

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/retailpulse/backend/internal/domain/insights"
	"github.com/retailpulse/backend/internal/domain/notification"
	"github.com/retailpulse/backend/internal/domain/shared"
	"github.com/retailpulse/backend/internal/domain/source"
	"github.com/retailpulse/backend/internal/infrastructure/logger"
	"github.com/retailpulse/backend/internal/infrastructure/realtime"
	"github.com/retailpulse/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// SourceFinder resolves the spreadsheet linked by a user.
type SourceFinder interface {
	FindByUserID(ctx context.Context, userID string) (*source.LinkedSource, error)
}

// DatasetFetcher reads every tab of a spreadsheet.
type DatasetFetcher interface {
	FetchDataset(ctx context.Context, sheetID string) (*insights.Dataset, error)
}

// StockWriter writes a product's stock cell and returns the product name
// as spelled in the sheet.
type StockWriter interface {
	UpdateStock(ctx context.Context, sheetID, productName string, qty decimal.Decimal) (string, error)
}

// ReportCache holds the last computed report per user. Results are stored
// with the generation read before computing, so a report computed across an
// Invalidate is dropped.
type ReportCache interface {
	Get(userID string) (*insights.InsightsReport, bool)
	Generation(userID string) uint64
	PutIfCurrent(userID string, report *insights.InsightsReport, gen uint64) bool
	Invalidate(userID string)
}

// NotificationRecorder persists stock notifications.
type NotificationRecorder interface {
	RecordStockAlert(ctx context.Context, userID, productName string, stock decimal.Decimal) (*notification.Notification, error)
	RecordStockUpdate(ctx context.Context, userID, productName string, stock decimal.Decimal) (*notification.Notification, error)
}

// StockUpdateEvent is the payload of a stock-update event after a manual edit.
type StockUpdateEvent struct {
	ProductName   string  `json:"productName"`
	StockQuantity float64 `json:"stockQuantity"`
}

// UpdateStockResult is returned to the caller of UpdateStock.
type UpdateStockResult struct {
	Message string `json:"message"`
}

// Service computes and serves inventory insights.
type Service struct {
	sources       SourceFinder
	fetcher       DatasetFetcher
	writer        StockWriter
	cache         ReportCache
	notifications NotificationRecorder
	emitter       realtime.Emitter
	engine        *insights.Engine
	metrics       *telemetry.InsightsMetrics
	logger        *zap.Logger
	group         singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithEngine overrides the derivation engine, mainly to pin its clock.
func WithEngine(e *insights.Engine) Option {
	return func(s *Service) { s.engine = e }
}

// WithMetrics records cache and compute metrics.
func WithMetrics(m *telemetry.InsightsMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a new insights service
func NewService(
	sources SourceFinder,
	fetcher DatasetFetcher,
	writer StockWriter,
	cache ReportCache,
	notifications NotificationRecorder,
	emitter realtime.Emitter,
	opts ...Option,
) *Service {
	s := &Service{
		sources:       sources,
		fetcher:       fetcher,
		writer:        writer,
		cache:         cache,
		notifications: notifications,
		emitter:       emitter,
		engine:        insights.NewEngine(),
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetReport returns the cached report or computes a fresh one.
func (s *Service) GetReport(ctx context.Context, userID string) (*insights.InsightsReport, error) {
	if report, ok := s.cache.Get(userID); ok {
		s.metrics.CacheHit(ctx)
		return report, nil
	}
	s.metrics.CacheMiss(ctx)

	// Callers only share a computation started in the same generation.
	gen := s.cache.Generation(userID)
	v, err, _ := s.group.Do(userID+":"+strconv.FormatUint(gen, 10), func() (interface{}, error) {
		report, err := s.compute(ctx, userID)
		if err != nil {
			return nil, err
		}
		s.cache.PutIfCurrent(userID, report, gen)
		return report, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*insights.InsightsReport), nil
}

// GetSummary returns the quick summary of the current report.
func (s *Service) GetSummary(ctx context.Context, userID string) (insights.QuickSummary, error) {
	report, err := s.GetReport(ctx, userID)
	if err != nil {
		return insights.QuickSummary{}, err
	}
	return insights.Summary(report), nil
}

// Refresh recomputes without reading the cache, stores the result and
// pushes inventory-updated with the quick summary.
func (s *Service) Refresh(ctx context.Context, userID string) (*insights.InsightsReport, error) {
	gen := s.cache.Generation(userID)
	report, err := s.compute(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.cache.PutIfCurrent(userID, report, gen)
	s.emitter.Emit(ctx, userID, realtime.EventInventoryUpdated, insights.Summary(report))
	return report, nil
}

// PushSummary recomputes and pushes the summary as a stock-update event.
func (s *Service) PushSummary(ctx context.Context, userID string) (insights.QuickSummary, error) {
	gen := s.cache.Generation(userID)
	report, err := s.compute(ctx, userID)
	if err != nil {
		return insights.QuickSummary{}, err
	}
	s.cache.PutIfCurrent(userID, report, gen)
	summary := insights.Summary(report)
	s.emitter.Emit(ctx, userID, realtime.EventStockUpdate, summary)
	return summary, nil
}

// UpdateStock writes a product's stock to the linked sheet, records the
// notifications and pushes one stock-update event.
func (s *Service) UpdateStock(ctx context.Context, userID, productName string, qty decimal.Decimal) (*UpdateStockResult, error) {
	productName = strings.TrimSpace(productName)
	if productName == "" {
		return nil, shared.WithMessage(shared.ErrInvalidInput, "Product name and new stock quantity are required")
	}
	if qty.IsNegative() {
		return nil, shared.WithMessage(shared.ErrInvalidInput, "Stock quantity cannot be negative")
	}

	sheetID, err := s.resolveSheet(ctx, userID)
	if err != nil {
		return nil, err
	}
	// Notifications use the sheet's spelling so they dedupe with the
	// alerts recorded by the next computation.
	productName, err = s.writer.UpdateStock(ctx, sheetID, productName, qty)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(userID)

	log := logger.L(ctx)
	if _, err := s.notifications.RecordStockUpdate(ctx, userID, productName, qty); err != nil {
		log.Warn("Failed to record stock update notification", zap.String("product", productName), zap.Error(err))
	}
	if _, err := s.notifications.RecordStockAlert(ctx, userID, productName, qty); err != nil {
		log.Warn("Failed to record stock alert", zap.String("product", productName), zap.Error(err))
	}

	s.emitter.Emit(ctx, userID, realtime.EventStockUpdate, StockUpdateEvent{ProductName: productName, StockQuantity: qty.InexactFloat64()})

	return &UpdateStockResult{
		Message: fmt.Sprintf("Stock for '%s' updated to %s. Notification created.", productName, qty.String()),
	}, nil
}

// Invalidate drops the cached report of a user.
func (s *Service) Invalidate(userID string) {
	s.cache.Invalidate(userID)
}

func (s *Service) resolveSheet(ctx context.Context, userID string) (string, error) {
	src, err := s.sources.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return "", shared.ErrNoSourceLinked
		}
		return "", err
	}
	return src.ResolveSheetID()
}

// compute runs the uncached pipeline: resolve, fetch, derive, notify.
func (s *Service) compute(ctx context.Context, userID string) (report *insights.InsightsReport, err error) {
	ctx, span := telemetry.StartSpan(ctx, "insights.compute", attribute.String("user.id", userID))
	defer func() { telemetry.EndSpan(span, err) }()

	start := time.Now()
	sheetID, err := s.resolveSheet(ctx, userID)
	if err != nil {
		return nil, err
	}

	ds, err := s.fetcher.FetchDataset(ctx, sheetID)
	if err != nil {
		logger.L(ctx).Error("Failed to fetch spreadsheet", zap.String("sheet_id", sheetID), zap.Error(err))
		return nil, err
	}

	report, err = s.engine.Derive(ds)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveCompute(ctx, time.Since(start))

	s.recordAlerts(ctx, userID, ds.Products)
	return report, nil
}

// recordAlerts is best effort: failures are logged and never fail the report.
func (s *Service) recordAlerts(ctx context.Context, userID string, products []insights.ProductRecord) {
	for _, alert := range insights.StockAlerts(products) {
		if _, err := s.notifications.RecordStockAlert(ctx, userID, alert.ProductName, alert.Stock); err != nil {
			logger.L(ctx).Warn("Failed to record stock alert",
				zap.String("product", alert.ProductName),
				zap.Error(err))
		}
	}
}
