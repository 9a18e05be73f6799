package models

import (
	"github.com/retailpulse/backend/internal/domain/notification"
	"github.com/shopspring/decimal"
)

// NotificationModel is the persistence model for a user notification.
type NotificationModel struct {
	RowMeta
	UserID      string  `gorm:"type:varchar(128);not null;index:idx_notifications_user_read,priority:1"`
	Kind        string  `gorm:"type:varchar(32);not null"`
	ProductName string  `gorm:"type:varchar(255)"`
	Stock       float64 `gorm:"not null"`
	Message     string  `gorm:"type:text;not null"`
	Severity    string  `gorm:"type:varchar(16);not null"`
	Read        bool    `gorm:"column:is_read;not null;index:idx_notifications_user_read,priority:2"`
}

func (NotificationModel) TableName() string {
	return "notifications"
}

func (m *NotificationModel) ToDomain() *notification.Notification {
	return &notification.Notification{
		BaseEntity:  m.RowMeta.entity(),
		UserID:      m.UserID,
		Kind:        notification.Kind(m.Kind),
		ProductName: m.ProductName,
		Stock:       decimal.NewFromFloat(m.Stock),
		Message:     m.Message,
		Severity:    notification.Severity(m.Severity),
		Read:        m.Read,
	}
}

func NotificationModelFromDomain(n *notification.Notification) *NotificationModel {
	return &NotificationModel{
		RowMeta:     rowMeta(n.BaseEntity),
		UserID:      n.UserID,
		Kind:        string(n.Kind),
		ProductName: n.ProductName,
		Stock:       n.Stock.InexactFloat64(),
		Message:     n.Message,
		Severity:    string(n.Severity),
		Read:        n.Read,
	}
}

// PartialIndexes are indexes gorm tags cannot express. AutoMigrate callers
// apply them after the tables exist.
var PartialIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_notifications_alert_unique
		ON notifications (user_id, kind, product_name, stock)
		WHERE kind = 'stock_alert'`,
}

// All lists every model, in dependency order, for AutoMigrate in tests and sqlite mode.
func All() []any {
	return []any{&LinkedSourceModel{}, &WatchSubscriptionModel{}, &NotificationModel{}}
}
