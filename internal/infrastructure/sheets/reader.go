package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/retailpulse/backend/internal/domain/insights"
	"github.com/retailpulse/backend/internal/domain/shared"
	"github.com/retailpulse/backend/internal/infrastructure/logger"
	"github.com/retailpulse/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/googleapi"
)

// Reader loads tabs of a spreadsheet as header-keyed rows.
type Reader struct {
	client  *Client
	metrics *telemetry.InsightsMetrics
}

// WithMetrics counts fetch failures on m.
func (r *Reader) WithMetrics(m *telemetry.InsightsMetrics) *Reader {
	r.metrics = m
	return r
}

func tabRange(tab string) string {
	return tab + "!A1:Z1000"
}

// isMissingTab reports whether err is the Sheets API rejecting a range
// whose tab does not exist.
func isMissingTab(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) || gerr.Code != http.StatusBadRequest {
		return false
	}
	return strings.Contains(strings.ToLower(gerr.Message+" "+gerr.Body), "unable to parse range")
}

// FetchTab reads one tab. A missing tab or a tab with no data rows yields
// an empty slice.
func (r *Reader) FetchTab(ctx context.Context, sheetID, tab string) ([]insights.Row, error) {
	ctx, cancel := context.WithTimeout(ctx, r.client.cfg.FetchTimeout)
	defer cancel()

	values, err := r.client.values.GetValues(ctx, sheetID, tabRange(tab))
	if isMissingTab(err) {
		logger.L(ctx).Debug("Sheet tab missing",
			zap.String("sheet_id", sheetID),
			zap.String("tab", tab))
		return []insights.Row{}, nil
	}
	if err != nil {
		r.metrics.SheetFetchError(ctx, tab)
		logger.L(ctx).Warn("Sheet fetch failed",
			zap.String("sheet_id", sheetID),
			zap.String("tab", tab),
			zap.Error(err))
		return nil, shared.Wrap(shared.ErrSourceUnavailable, fmt.Errorf("fetch %s: %w", tab, err))
	}
	return toRows(values), nil
}

// FetchDataset reads every report tab concurrently. The first failure
// cancels the remaining reads and fails the whole dataset.
func (r *Reader) FetchDataset(ctx context.Context, sheetID string) (ds *insights.Dataset, err error) {
	ctx, span := telemetry.StartSpan(ctx, "sheets.fetch_dataset", attribute.String("sheet_id", sheetID))
	defer func() { telemetry.EndSpan(span, err) }()

	var mu sync.Mutex
	tabs := make(map[string][]insights.Row, len(insights.Tabs))

	g, gctx := errgroup.WithContext(ctx)
	for _, tab := range insights.Tabs {
		g.Go(func() error {
			rows, err := r.FetchTab(gctx, sheetID, tab)
			if err != nil {
				return err
			}
			mu.Lock()
			tabs[tab] = rows
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return insights.NewDataset(tabs), nil
}

// ListTabs returns the spreadsheet's tab titles.
func (r *Reader) ListTabs(ctx context.Context, sheetID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.client.cfg.FetchTimeout)
	defer cancel()

	titles, err := r.client.values.TabTitles(ctx, sheetID)
	if err != nil {
		return nil, shared.Wrap(shared.ErrSourceUnavailable, fmt.Errorf("read spreadsheet metadata: %w", err))
	}
	return titles, nil
}

// toRows turns a value grid into rows keyed by the trimmed first-row
// headers. Short rows are padded with "".
func toRows(values [][]interface{}) []insights.Row {
	if len(values) < 2 {
		return []insights.Row{}
	}
	headers := make([]string, len(values[0]))
	for i, h := range values[0] {
		headers[i] = strings.TrimSpace(cellString(h))
	}

	rows := make([]insights.Row, 0, len(values)-1)
	for _, raw := range values[1:] {
		row := make(insights.Row, len(headers))
		for i, h := range headers {
			if h == "" {
				continue
			}
			if i < len(raw) {
				row[h] = cellString(raw[i])
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func cellString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
