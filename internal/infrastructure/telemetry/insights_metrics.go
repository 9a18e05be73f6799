package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	AttrTab    = attribute.Key("tab")
	AttrResult = attribute.Key("result")
	AttrEvent  = attribute.Key("event")
)

// InsightsMetrics records the pipeline's cache, fetch, renewal and
// real-time activity. A nil *InsightsMetrics records nothing.
type InsightsMetrics struct {
	cacheHits       *Counter
	cacheMisses     *Counter
	computeDuration *Histogram
	fetchErrors     *Counter
	renewals        *Counter
	realtimeEvents  *Counter
	realtimeClients *Gauge
}

// NewInsightsMetrics registers the instruments on meter.
func NewInsightsMetrics(meter metric.Meter) (*InsightsMetrics, error) {
	m := &InsightsMetrics{}
	var err error
	if m.cacheHits, err = NewCounter(meter, "rp_insights_cache_hits_total", "Insights reports served from cache", "{reports}"); err != nil {
		return nil, err
	}
	if m.cacheMisses, err = NewCounter(meter, "rp_insights_cache_misses_total", "Insights reports computed on demand", "{reports}"); err != nil {
		return nil, err
	}
	if m.computeDuration, err = NewHistogram(meter, "rp_insights_compute_duration_seconds",
		"Time to fetch the sheet and derive a report", "s", ComputeDurationBuckets...); err != nil {
		return nil, err
	}
	if m.fetchErrors, err = NewCounter(meter, "rp_sheet_fetch_errors_total", "Failed spreadsheet reads", "{errors}"); err != nil {
		return nil, err
	}
	if m.renewals, err = NewCounter(meter, "rp_watch_renewals_total", "Change-watch renewals by result", "{renewals}"); err != nil {
		return nil, err
	}
	if m.realtimeEvents, err = NewCounter(meter, "rp_realtime_events_total", "Events pushed to real-time sessions", "{events}"); err != nil {
		return nil, err
	}
	if m.realtimeClients, err = NewGauge(meter, "rp_realtime_clients", "Open real-time sessions", "{clients}"); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *InsightsMetrics) CacheHit(ctx context.Context) {
	if m != nil {
		m.cacheHits.Inc(ctx)
	}
}

func (m *InsightsMetrics) CacheMiss(ctx context.Context) {
	if m != nil {
		m.cacheMisses.Inc(ctx)
	}
}

func (m *InsightsMetrics) ObserveCompute(ctx context.Context, d time.Duration) {
	if m != nil {
		m.computeDuration.RecordDuration(ctx, d)
	}
}

func (m *InsightsMetrics) SheetFetchError(ctx context.Context, tab string) {
	if m != nil {
		m.fetchErrors.Inc(ctx, AttrTab.String(tab))
	}
}

// WatchRenewal counts one renewal attempt; result is "ok", "failed" or "discarded".
func (m *InsightsMetrics) WatchRenewal(ctx context.Context, result string) {
	if m != nil {
		m.renewals.Inc(ctx, AttrResult.String(result))
	}
}

func (m *InsightsMetrics) RealtimeEvent(ctx context.Context, event string) {
	if m != nil {
		m.realtimeEvents.Inc(ctx, AttrEvent.String(event))
	}
}

func (m *InsightsMetrics) RealtimeClients(ctx context.Context, n int) {
	if m != nil {
		m.realtimeClients.Record(ctx, int64(n))
	}
}
