package insights

import "time"

// InsightsReport is the aggregate computed from a Dataset.
type InsightsReport struct {
	StockSummary              StockSummary         `json:"stockSummary"`
	TopStockQuantityProducts  []StockMover         `json:"topStockQuantityProducts"`
	MonthlyEarnings           float64              `json:"monthlyEarnings"`
	TopRevenueProducts        []RevenueProduct     `json:"topRevenueProducts"`
	GenderDistribution        []GenderShare        `json:"genderDistribution"`
	SocialEngagement          []PlatformEngagement `json:"socialEngagement"`
	WeeklySales               []WeeklySales        `json:"weeklySales"`
	LeadBreakdown             LeadBreakdown        `json:"leadBreakdown"`
	TopLeadConvertedProducts  []LeadConversion     `json:"topLeadConvertedProducts"`
	TopStockoutRateProducts   []StockoutRate       `json:"topStockoutRateProducts"`
	InventoryCostDistribution CostDistribution     `json:"inventoryCostDistribution"`
	GeneratedAt               time.Time            `json:"generatedAt"`
	AnchorDate                time.Time            `json:"anchorDate"`
}

// StockSummary counts products by stock level.
type StockSummary struct {
	TotalProducts int `json:"totalProducts"`
	OutOfStock    int `json:"outOfStock"`
	LowStock      int `json:"lowStock"`
}

// StockMover is a product ranked by recent revenue, shown with its current stock.
type StockMover struct {
	ProductID     string  `json:"product_id"`
	ProductName   string  `json:"product_name"`
	StockQuantity float64 `json:"stock_quantity"`
}

// RevenueProduct is a product ranked by recent revenue.
type RevenueProduct struct {
	ProductID        string  `json:"product_id"`
	ProductName      string  `json:"product_name"`
	RevenueGenerated float64 `json:"revenue_generated"`
}

// GenderShare is the share of clients reporting a gender. Percentage has two decimals.
type GenderShare struct {
	Gender     string `json:"gender"`
	Count      int    `json:"count"`
	Percentage string `json:"percentage"`
}

// PlatformEngagement is the weighted engagement of one social platform.
type PlatformEngagement struct {
	Platform    string  `json:"platform"`
	TotalScore  float64 `json:"total_score"`
	ScaledScore string  `json:"scaled_score"`
}

// WeeklySales is one ISO week bucket.
type WeeklySales struct {
	Week             string  `json:"week"`
	Year             int     `json:"year"`
	ISOWeek          int     `json:"iso_week"`
	TotalUnitsSold   float64 `json:"total_units_sold"`
	TotalSalesAmount float64 `json:"total_sales_amount"`
}

// LeadBreakdown is the lead funnel.
type LeadBreakdown struct {
	Lead      int `json:"lead"`
	Qualified int `json:"qualified"`
	Converted int `json:"converted"`
}

// LeadConversion is the average age in days of converted leads for a product.
type LeadConversion struct {
	ProductID             string  `json:"product_id"`
	ProductName           string  `json:"product_name"`
	AvgConversionTimeDays float64 `json:"avg_conversion_time_days"`
}

// StockoutRate is the stockout metric of one product.
type StockoutRate struct {
	ProductID          string  `json:"product_id"`
	ProductName        string  `json:"product_name"`
	StockoutPercentage float64 `json:"stockout_percentage"`
}

// CostDistribution holds raw currency magnitudes; they are not normalized.
type CostDistribution struct {
	HoldingCost  float64 `json:"holdingCost"`
	OrderingCost float64 `json:"orderingCost"`
	ShortageCost float64 `json:"shortageCost"`
}

// QuickSummary is the cheap subset pushed to real-time sessions and served for polling.
type QuickSummary struct {
	StockSummary     StockSummary `json:"stockSummary"`
	TopStockProducts []StockMover `json:"topStockProducts"`
}

// Summary extracts the quick summary from a full report.
func Summary(r *InsightsReport) QuickSummary {
	if r == nil {
		return QuickSummary{TopStockProducts: []StockMover{}}
	}
	movers := r.TopStockQuantityProducts
	if movers == nil {
		movers = []StockMover{}
	}
	return QuickSummary{
		StockSummary:     r.StockSummary,
		TopStockProducts: movers,
	}
}
