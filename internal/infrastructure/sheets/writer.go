package sheets

import (
	"context"
	"fmt"
	"strings"

	"github.com/retailpulse/backend/internal/domain/insights"
	"github.com/retailpulse/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

var (
	productNameHeaders = []string{"product_name", "product"}
	stockHeaders       = []string{"stock_quantity", "stock"}
)

// Writer applies manual edits to the products tab.
type Writer struct {
	client *Client
}

// UpdateStock sets the stock cell of the product named productName
// (case-insensitive) to qty and returns the name as written in the sheet.
func (w *Writer) UpdateStock(ctx context.Context, sheetID, productName string, qty decimal.Decimal) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, w.client.cfg.FetchTimeout)
	defer cancel()

	values, err := w.client.values.GetValues(ctx, sheetID, tabRange(insights.TabProducts))
	if err != nil && !isMissingTab(err) {
		return "", shared.Wrap(shared.ErrSourceUnavailable, fmt.Errorf("read products: %w", err))
	}

	cell, name, err := locateStockCell(values, productName)
	if err != nil {
		return "", err
	}

	if err := w.client.values.UpdateValue(ctx, sheetID, cell, qty.String()); err != nil {
		return "", shared.Wrap(shared.ErrSourceUnavailable, fmt.Errorf("write %s: %w", cell, err))
	}
	return name, nil
}

// locateStockCell returns the A1 reference of productName's stock cell and
// the trimmed name found in the sheet.
func locateStockCell(values [][]interface{}, productName string) (string, string, error) {
	if len(values) == 0 {
		return "", "", shared.WithMessage(shared.ErrMalformedSheet, "products tab is empty")
	}
	headers := values[0]
	nameCol := findHeader(headers, productNameHeaders)
	stockCol := findHeader(headers, stockHeaders)
	if nameCol < 0 || stockCol < 0 {
		return "", "", shared.WithMessage(shared.ErrMalformedSheet, "products tab needs product_name and stock_quantity columns")
	}

	want := strings.ToLower(strings.TrimSpace(productName))
	for i, row := range values[1:] {
		if nameCol >= len(row) {
			continue
		}
		name := strings.TrimSpace(cellString(row[nameCol]))
		if strings.ToLower(name) == want {
			// +2: header row plus 1-based rows.
			return fmt.Sprintf("%s!%s%d", insights.TabProducts, columnLetter(stockCol), i+2), name, nil
		}
	}
	return "", "", shared.WithMessage(shared.ErrNotFound, fmt.Sprintf("product %q not found", productName))
}

func findHeader(headers []interface{}, names []string) int {
	for i, h := range headers {
		v := strings.ToLower(strings.TrimSpace(cellString(h)))
		for _, n := range names {
			if v == n {
				return i
			}
		}
	}
	return -1
}

// columnLetter converts a zero-based column index to A1 letters (0 -> A, 26 -> AA).
func columnLetter(idx int) string {
	var b []byte
	for n := idx + 1; n > 0; n = (n - 1) / 26 {
		b = append([]byte{byte('A' + (n-1)%26)}, b...)
	}
	return string(b)
}
