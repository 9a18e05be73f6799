// Package insights holds the raw spreadsheet records and the pure derivation
// of the inventory insights report from them.
package insights

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Tab names read from the linked spreadsheet.
const (
	TabProducts      = "products"
	TabSales         = "sales"
	TabClients       = "clients"
	TabSocialMetrics = "social_media_metrics"
	TabLeads         = "leads"
	TabLeadProducts  = "lead_products"
	TabProcurements  = "suppliers"
)

// Tabs lists every tab a report needs, in fetch order.
var Tabs = []string{
	TabProducts,
	TabSales,
	TabClients,
	TabSocialMetrics,
	TabLeads,
	TabLeadProducts,
	TabProcurements,
}

// Row is one data row keyed by its header cell. Missing cells are "".
type Row map[string]string

// Get returns the trimmed cell value for key.
func (r Row) Get(key string) string {
	return strings.TrimSpace(r[key])
}

// ProductRecord is a row of the products tab.
type ProductRecord struct {
	ProductID     string
	ProductName   string
	StockQuantity decimal.Decimal
	CostPrice     decimal.Decimal
}

// SaleRecord is a row of the sales tab. HasDate is false when sale_date
// could not be parsed; such sales are left out of every time window.
type SaleRecord struct {
	SaleID     string
	ProductID  string
	Quantity   decimal.Decimal
	TotalPrice decimal.Decimal
	SaleDate   time.Time
	HasDate    bool
}

// ClientRecord is a row of the clients tab.
type ClientRecord struct {
	Gender string
}

// SocialMetricRecord is a row of the social_media_metrics tab.
type SocialMetricRecord struct {
	Platform string
	Likes    decimal.Decimal
	Shares   decimal.Decimal
	Comments decimal.Decimal
}

// LeadRecord is a row of the leads tab.
type LeadRecord struct {
	LeadID       string
	Converted    string
	CreatedAt    time.Time
	HasCreatedAt bool
}

// LeadProductRecord joins leads to products.
type LeadProductRecord struct {
	LeadID    string
	ProductID string
}

// ProcurementRecord is a row of the suppliers tab.
type ProcurementRecord struct {
	ProductID string
	Quantity  decimal.Decimal
}

// Dataset is the full set of records a report is derived from.
type Dataset struct {
	Products      []ProductRecord
	Sales         []SaleRecord
	Clients       []ClientRecord
	SocialMetrics []SocialMetricRecord
	Leads         []LeadRecord
	LeadProducts  []LeadProductRecord
	Procurements  []ProcurementRecord
}

// NewDataset parses raw tab rows keyed by tab name. Absent tabs yield empty lists.
func NewDataset(tabs map[string][]Row) *Dataset {
	return &Dataset{
		Products:      ParseProducts(tabs[TabProducts]),
		Sales:         ParseSales(tabs[TabSales]),
		Clients:       ParseClients(tabs[TabClients]),
		SocialMetrics: ParseSocialMetrics(tabs[TabSocialMetrics]),
		Leads:         ParseLeads(tabs[TabLeads]),
		LeadProducts:  ParseLeadProducts(tabs[TabLeadProducts]),
		Procurements:  ParseProcurements(tabs[TabProcurements]),
	}
}

// ParseProducts converts product rows.
func ParseProducts(rows []Row) []ProductRecord {
	out := make([]ProductRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, ProductRecord{
			ProductID:     r.Get("product_id"),
			ProductName:   r.Get("product_name"),
			StockQuantity: ParseNumber(r["stock_quantity"]),
			CostPrice:     ParseNumber(r["cost_price"]),
		})
	}
	return out
}

// ParseSales converts sale rows.
func ParseSales(rows []Row) []SaleRecord {
	out := make([]SaleRecord, 0, len(rows))
	for _, r := range rows {
		date, ok := ParseDate(r["sale_date"])
		out = append(out, SaleRecord{
			SaleID:     r.Get("sale_id"),
			ProductID:  r.Get("product_id"),
			Quantity:   ParseNumber(r["quantity"]),
			TotalPrice: ParseNumber(r["total_price"]),
			SaleDate:   date,
			HasDate:    ok,
		})
	}
	return out
}

// ParseClients converts client rows.
func ParseClients(rows []Row) []ClientRecord {
	out := make([]ClientRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, ClientRecord{Gender: r.Get("gender")})
	}
	return out
}

// ParseSocialMetrics converts social metric rows.
func ParseSocialMetrics(rows []Row) []SocialMetricRecord {
	out := make([]SocialMetricRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, SocialMetricRecord{
			Platform: r.Get("platform"),
			Likes:    ParseNumber(r["likes"]),
			Shares:   ParseNumber(r["shares"]),
			Comments: ParseNumber(r["comments"]),
		})
	}
	return out
}

// ParseLeads converts lead rows.
func ParseLeads(rows []Row) []LeadRecord {
	out := make([]LeadRecord, 0, len(rows))
	for _, r := range rows {
		created, ok := ParseDate(r["created_at"])
		out = append(out, LeadRecord{
			LeadID:       r.Get("lead_id"),
			Converted:    r.Get("converted"),
			CreatedAt:    created,
			HasCreatedAt: ok,
		})
	}
	return out
}

// ParseLeadProducts converts lead-product rows.
func ParseLeadProducts(rows []Row) []LeadProductRecord {
	out := make([]LeadProductRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, LeadProductRecord{
			LeadID:    r.Get("lead_id"),
			ProductID: r.Get("product_id"),
		})
	}
	return out
}

// ParseProcurements converts procurement rows.
func ParseProcurements(rows []Row) []ProcurementRecord {
	out := make([]ProcurementRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, ProcurementRecord{
			ProductID: r.Get("product_id"),
			Quantity:  ParseNumber(r["quantity"]),
		})
	}
	return out
}

// ParseNumber reads a numeric cell. Anything that is not a number is zero.
func ParseNumber(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
}

// ParseDate reads a date cell in any of the layouts spreadsheets commonly
// produce. The second result is false when no layout matches.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
