// Package notification models the alerts shown in the dashboard bell.
package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/retailpulse/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Kind groups notifications by origin.
type Kind string

const (
	KindStockAlert  Kind = "stock_alert"
	KindStockUpdate Kind = "stock_update"
	KindReport      Kind = "report"
)

// Severity ranks how urgent a notification is.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// UnreadLimit caps the unread list.
const UnreadLimit = 10

var lowStockMax = decimal.NewFromInt(10)

// Notification is one entry in a user's notification list.
type Notification struct {
	shared.BaseEntity
	UserID      string
	Kind        Kind
	ProductName string
	Stock       decimal.Decimal
	Message     string
	Severity    Severity
	Read        bool
}

// ClassifyStock applies the alert threshold rule: zero stock is high,
// 1..10 is medium, anything else raises nothing.
func ClassifyStock(productName string, stock decimal.Decimal) (Severity, string, bool) {
	switch {
	case stock.IsZero():
		return SeverityHigh, fmt.Sprintf("Out of stock alert: %q is now out of stock.", productName), true
	case stock.IsPositive() && stock.LessThanOrEqual(lowStockMax):
		return SeverityMedium, fmt.Sprintf("Low stock alert: %q has only %s left in stock.", productName, stock.String()), true
	default:
		return "", "", false
	}
}

// NewStockAlert builds an alert for productName, or returns nil when the level needs none.
func NewStockAlert(userID, productName string, stock decimal.Decimal) *Notification {
	severity, msg, ok := ClassifyStock(productName, stock)
	if !ok {
		return nil
	}
	return &Notification{
		BaseEntity:  shared.NewBaseEntity(),
		UserID:      userID,
		Kind:        KindStockAlert,
		ProductName: strings.TrimSpace(productName),
		Stock:       stock,
		Message:     msg,
		Severity:    severity,
	}
}

// NewStockUpdate records a manual stock change.
func NewStockUpdate(userID, productName string, stock decimal.Decimal) *Notification {
	return &Notification{
		BaseEntity:  shared.NewBaseEntity(),
		UserID:      userID,
		Kind:        KindStockUpdate,
		ProductName: strings.TrimSpace(productName),
		Stock:       stock,
		Message:     fmt.Sprintf("Stock updated for %s. New stock: %s", productName, stock.String()),
		Severity:    SeverityLow,
	}
}

// Repository persists notifications.
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	// CreateAlert stores a stock alert unless the user already has one for
	// the same product at exactly the same stock. It reports whether n was
	// stored.
	CreateAlert(ctx context.Context, n *Notification) (bool, error)
	ListUnread(ctx context.Context, userID string, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, userID string, id uuid.UUID) error
}
