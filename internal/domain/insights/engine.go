package insights

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/retailpulse/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Fixed thresholds and list sizes of the report.
const (
	LowStockThreshold      = 10
	ShortageCostMultiplier = 10
	TopMoversLimit         = 5
	TopRevenueLimit        = 2
	TopLeadProductsLimit   = 5
	TopStockoutLimit       = 5
	WeeklyWindowWeeks      = 4
	UnknownProductName     = "Unknown"
)

// EngagementPlatforms are the only platforms kept in the social engagement ranking.
var EngagementPlatforms = []string{"Facebook", "Twitter", "Instagram"}

var (
	hundred      = decimal.NewFromInt(100)
	lowStockMax  = decimal.NewFromInt(LowStockThreshold)
	shortageMult = decimal.NewFromInt(ShortageCostMultiplier)
	shareWeight  = decimal.NewFromInt(2)
	commentWeigh = decimal.NewFromInt(3)
)

// Engine derives InsightsReports. It holds no state besides its clock.
type Engine struct {
	now func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock sets the wall clock used for the fallback anchor, the lead
// conversion ages and GeneratedAt.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an Engine using time.Now unless overridden.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Derive computes the full report. It fails with shared.ErrInsufficientData
// when the products or sales list is empty and never returns a partial report.
func (e *Engine) Derive(ds *Dataset) (*InsightsReport, error) {
	if ds == nil || len(ds.Products) == 0 || len(ds.Sales) == 0 {
		return nil, shared.ErrInsufficientData
	}

	now := e.now()
	anchor := RecencyAnchor(ds.Sales, now)
	products := indexProducts(ds.Products)

	recent := salesAfter(ds.Sales, anchor.AddDate(0, -1, 0))
	revenue := rankTotals(revenueByProduct(recent))

	return &InsightsReport{
		StockSummary:              SummarizeStock(ds.Products),
		TopStockQuantityProducts:  topMovers(revenue, products),
		MonthlyEarnings:           sumRevenue(recent).InexactFloat64(),
		TopRevenueProducts:        topRevenue(revenue, products),
		GenderDistribution:        genderDistribution(ds.Clients),
		SocialEngagement:          socialEngagement(ds.SocialMetrics),
		WeeklySales:               weeklySales(ds.Sales, anchor),
		LeadBreakdown:             leadBreakdown(ds.Leads),
		TopLeadConvertedProducts:  leadConversionTimes(ds.Leads, ds.LeadProducts, products, now),
		TopStockoutRateProducts:   stockoutRates(ds.Products, ds.Sales),
		InventoryCostDistribution: costDistribution(ds.Products, ds.Procurements, products),
		GeneratedAt:               now,
		AnchorDate:                anchor,
	}, nil
}

// RecencyAnchor returns the latest parseable sale date, or now when no sale has one.
func RecencyAnchor(sales []SaleRecord, now time.Time) time.Time {
	var latest time.Time
	found := false
	for _, s := range sales {
		if !s.HasDate {
			continue
		}
		if !found || s.SaleDate.After(latest) {
			latest = s.SaleDate
			found = true
		}
	}
	if !found {
		return now
	}
	return latest
}

// SummarizeStock counts out-of-stock (exactly zero) and low-stock (1..10) products.
func SummarizeStock(products []ProductRecord) StockSummary {
	summary := StockSummary{TotalProducts: len(products)}
	for _, p := range products {
		switch {
		case IsOutOfStock(p.StockQuantity):
			summary.OutOfStock++
		case IsLowStock(p.StockQuantity):
			summary.LowStock++
		}
	}
	return summary
}

// IsOutOfStock reports whether qty is exactly zero.
func IsOutOfStock(qty decimal.Decimal) bool {
	return qty.IsZero()
}

// IsLowStock reports whether 0 < qty <= LowStockThreshold.
func IsLowStock(qty decimal.Decimal) bool {
	return qty.IsPositive() && qty.LessThanOrEqual(lowStockMax)
}

// StockAlert is a product whose stock level needs a notification.
type StockAlert struct {
	ProductID   string
	ProductName string
	Stock       decimal.Decimal
}

// StockAlerts returns every out-of-stock product followed by every low-stock product.
func StockAlerts(products []ProductRecord) []StockAlert {
	var out, low []StockAlert
	for _, p := range products {
		alert := StockAlert{ProductID: p.ProductID, ProductName: p.ProductName, Stock: p.StockQuantity}
		switch {
		case IsOutOfStock(p.StockQuantity):
			out = append(out, alert)
		case IsLowStock(p.StockQuantity):
			low = append(low, alert)
		}
	}
	return append(out, low...)
}

// productTotal is an accumulated amount for one product.
type productTotal struct {
	ProductID string
	Total     decimal.Decimal
}

// rankTotals sorts by total descending, then product id ascending.
func rankTotals(totals []productTotal) []productTotal {
	slices.SortFunc(totals, func(a, b productTotal) int {
		if c := b.Total.Cmp(a.Total); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	return totals
}

func indexProducts(products []ProductRecord) map[string]ProductRecord {
	idx := make(map[string]ProductRecord, len(products))
	for _, p := range products {
		if _, ok := idx[p.ProductID]; !ok {
			idx[p.ProductID] = p
		}
	}
	return idx
}

func productName(products map[string]ProductRecord, id string) string {
	if p, ok := products[id]; ok && p.ProductName != "" {
		return p.ProductName
	}
	return UnknownProductName
}

func salesAfter(sales []SaleRecord, cutoff time.Time) []SaleRecord {
	var out []SaleRecord
	for _, s := range sales {
		if s.HasDate && s.SaleDate.After(cutoff) {
			out = append(out, s)
		}
	}
	return out
}

func revenueByProduct(sales []SaleRecord) []productTotal {
	pos := make(map[string]int)
	var totals []productTotal
	for _, s := range sales {
		i, ok := pos[s.ProductID]
		if !ok {
			i = len(totals)
			pos[s.ProductID] = i
			totals = append(totals, productTotal{ProductID: s.ProductID})
		}
		totals[i].Total = totals[i].Total.Add(s.TotalPrice)
	}
	return totals
}

func sumRevenue(sales []SaleRecord) decimal.Decimal {
	sum := decimal.Zero
	for _, s := range sales {
		sum = sum.Add(s.TotalPrice)
	}
	return sum
}

func topMovers(ranked []productTotal, products map[string]ProductRecord) []StockMover {
	out := make([]StockMover, 0, TopMoversLimit)
	for _, t := range ranked[:min(len(ranked), TopMoversLimit)] {
		mover := StockMover{ProductID: t.ProductID, ProductName: productName(products, t.ProductID)}
		if p, ok := products[t.ProductID]; ok {
			mover.StockQuantity = p.StockQuantity.InexactFloat64()
		}
		out = append(out, mover)
	}
	return out
}

func topRevenue(ranked []productTotal, products map[string]ProductRecord) []RevenueProduct {
	out := make([]RevenueProduct, 0, TopRevenueLimit)
	for _, t := range ranked[:min(len(ranked), TopRevenueLimit)] {
		out = append(out, RevenueProduct{
			ProductID:        t.ProductID,
			ProductName:      productName(products, t.ProductID),
			RevenueGenerated: t.Total.InexactFloat64(),
		})
	}
	return out
}

func genderDistribution(clients []ClientRecord) []GenderShare {
	var order []string
	counts := make(map[string]int)
	for _, c := range clients {
		if _, ok := counts[c.Gender]; !ok {
			order = append(order, c.Gender)
		}
		counts[c.Gender]++
	}

	total := decimal.NewFromInt(int64(max(len(clients), 1)))
	out := make([]GenderShare, 0, len(order))
	for _, g := range order {
		pct := decimal.NewFromInt(int64(counts[g])).Div(total).Mul(hundred)
		out = append(out, GenderShare{Gender: g, Count: counts[g], Percentage: pct.StringFixed(2)})
	}
	return out
}

func socialEngagement(metrics []SocialMetricRecord) []PlatformEngagement {
	var order []string
	scores := make(map[string]decimal.Decimal)
	for _, m := range metrics {
		score := m.Likes.Add(m.Shares.Mul(shareWeight)).Add(m.Comments.Mul(commentWeigh))
		prev, ok := scores[m.Platform]
		if !ok {
			order = append(order, m.Platform)
		}
		scores[m.Platform] = prev.Add(score)
	}

	maxScore := decimal.NewFromInt(1)
	for _, s := range scores {
		maxScore = decimal.Max(maxScore, s)
	}

	type scored struct {
		PlatformEngagement
		scaled decimal.Decimal
	}
	var kept []scored
	for _, platform := range order {
		if !slices.Contains(EngagementPlatforms, platform) {
			continue
		}
		scaled := scores[platform].Div(maxScore).Mul(hundred).Round(2)
		kept = append(kept, scored{
			PlatformEngagement: PlatformEngagement{
				Platform:    platform,
				TotalScore:  scores[platform].InexactFloat64(),
				ScaledScore: scaled.StringFixed(2),
			},
			scaled: scaled,
		})
	}
	slices.SortStableFunc(kept, func(a, b scored) int {
		return b.scaled.Cmp(a.scaled)
	})

	out := make([]PlatformEngagement, 0, len(kept))
	for _, k := range kept {
		out = append(out, k.PlatformEngagement)
	}
	return out
}

type isoWeekKey struct {
	year, week int
}

func weeklySales(sales []SaleRecord, anchor time.Time) []WeeklySales {
	cutoff := anchor.AddDate(0, 0, -7*WeeklyWindowWeeks)
	type bucket struct {
		units, amount decimal.Decimal
	}
	buckets := make(map[isoWeekKey]*bucket)
	for _, s := range salesAfter(sales, cutoff) {
		year, week := s.SaleDate.ISOWeek()
		k := isoWeekKey{year, week}
		b, ok := buckets[k]
		if !ok {
			b = &bucket{}
			buckets[k] = b
		}
		b.units = b.units.Add(s.Quantity)
		b.amount = b.amount.Add(s.TotalPrice)
	}

	keys := make([]isoWeekKey, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b isoWeekKey) int {
		if c := cmp.Compare(a.year, b.year); c != 0 {
			return c
		}
		return cmp.Compare(a.week, b.week)
	})

	out := make([]WeeklySales, 0, len(keys))
	for _, k := range keys {
		b := buckets[k]
		out = append(out, WeeklySales{
			Week:             fmt.Sprintf("%d-W%02d", k.year, k.week),
			Year:             k.year,
			ISOWeek:          k.week,
			TotalUnitsSold:   b.units.InexactFloat64(),
			TotalSalesAmount: b.amount.InexactFloat64(),
		})
	}
	return out
}

// Lead conversion states of the "converted" column.
const (
	leadStateQualified = "0"
	leadStateConverted = "1"
)

func leadBreakdown(leads []LeadRecord) LeadBreakdown {
	var b LeadBreakdown
	for _, l := range leads {
		switch l.Converted {
		case leadStateQualified:
			b.Qualified++
		case leadStateConverted:
			b.Converted++
		default:
			b.Lead++
		}
	}
	return b
}

func leadConversionTimes(leads []LeadRecord, links []LeadProductRecord, products map[string]ProductRecord, now time.Time) []LeadConversion {
	pos := make(map[string]int)
	var counts []productTotal
	for _, lp := range links {
		i, ok := pos[lp.ProductID]
		if !ok {
			i = len(counts)
			pos[lp.ProductID] = i
			counts = append(counts, productTotal{ProductID: lp.ProductID})
		}
		counts[i].Total = counts[i].Total.Add(decimal.NewFromInt(1))
	}
	ranked := rankTotals(counts)
	top := ranked[:min(len(ranked), TopLeadProductsLimit)]

	converted := make(map[string]LeadRecord)
	for _, l := range leads {
		if l.Converted != leadStateConverted {
			continue
		}
		if _, ok := converted[l.LeadID]; !ok {
			converted[l.LeadID] = l
		}
	}

	type acc struct {
		days  float64
		count int
	}
	sums := make(map[string]*acc, len(top))
	for _, t := range top {
		sums[t.ProductID] = &acc{}
	}
	for _, lp := range links {
		a, inTop := sums[lp.ProductID]
		if !inTop {
			continue
		}
		lead, ok := converted[lp.LeadID]
		if !ok || !lead.HasCreatedAt {
			continue
		}
		a.days += math.Trunc(now.Sub(lead.CreatedAt).Hours() / 24)
		a.count++
	}

	out := make([]LeadConversion, 0, len(top))
	for _, t := range top {
		a := sums[t.ProductID]
		if a.count == 0 {
			continue
		}
		out = append(out, LeadConversion{
			ProductID:             t.ProductID,
			ProductName:           productName(products, t.ProductID),
			AvgConversionTimeDays: a.days / float64(a.count),
		})
	}
	return out
}

// stockoutRates divides a 0/1 out-of-stock flag by all-time units sold.
// The values are only percentages when a product sold at most one unit;
// dashboards already plot this scale, so the formula stays as is.
func stockoutRates(products []ProductRecord, sales []SaleRecord) []StockoutRate {
	sold := make(map[string]decimal.Decimal)
	for _, s := range sales {
		sold[s.ProductID] = sold[s.ProductID].Add(s.Quantity)
	}

	type rated struct {
		StockoutRate
		pct decimal.Decimal
	}
	all := make([]rated, 0, len(products))
	for _, p := range products {
		pct := decimal.Zero
		if units := sold[p.ProductID]; units.IsPositive() && IsOutOfStock(p.StockQuantity) {
			pct = decimal.NewFromInt(1).Div(units).Mul(hundred)
		}
		all = append(all, rated{
			StockoutRate: StockoutRate{
				ProductID:          p.ProductID,
				ProductName:        p.ProductName,
				StockoutPercentage: pct.InexactFloat64(),
			},
			pct: pct,
		})
	}
	slices.SortStableFunc(all, func(a, b rated) int {
		return b.pct.Cmp(a.pct)
	})

	n := min(len(all), TopStockoutLimit)
	out := make([]StockoutRate, 0, n)
	for _, r := range all[:n] {
		out = append(out, r.StockoutRate)
	}
	return out
}

func costDistribution(products []ProductRecord, procurements []ProcurementRecord, index map[string]ProductRecord) CostDistribution {
	holding, ordering, shortage := decimal.Zero, decimal.Zero, decimal.Zero
	for _, p := range products {
		holding = holding.Add(p.StockQuantity.Mul(p.CostPrice))
		if !p.StockQuantity.IsPositive() {
			shortage = shortage.Add(p.CostPrice.Mul(shortageMult))
		}
	}
	for _, po := range procurements {
		if p, ok := index[po.ProductID]; ok {
			ordering = ordering.Add(po.Quantity.Mul(p.CostPrice))
		}
	}
	return CostDistribution{
		HoldingCost:  holding.InexactFloat64(),
		OrderingCost: ordering.InexactFloat64(),
		ShortageCost: shortage.InexactFloat64(),
	}
}
