package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/retailpulse/backend/internal/domain/notification"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// NotificationResponse is the API view of a notification.
type NotificationResponse struct {
	ID          uuid.UUID `json:"id"`
	Type        string    `json:"type"`
	ProductName string    `json:"productName,omitempty"`
	Stock       float64   `json:"stock"`
	Message     string    `json:"message"`
	Severity    string    `json:"severity"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ToNotificationResponse converts a domain notification.
func ToNotificationResponse(n *notification.Notification) NotificationResponse {
	return NotificationResponse{
		ID:          n.ID,
		Type:        string(n.Kind),
		ProductName: n.ProductName,
		Stock:       n.Stock.InexactFloat64(),
		Message:     n.Message,
		Severity:    string(n.Severity),
		Read:        n.Read,
		CreatedAt:   n.CreatedAt,
	}
}

// Service records stock notifications and serves the unread list.
type Service struct {
	repo   notification.Repository
	logger *zap.Logger
}

// NewService creates a new notification service
func NewService(repo notification.Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, logger: logger}
}

// RecordStockAlert stores an alert when stock crosses a threshold. It returns
// nil without error when no alert applies or an identical one exists.
func (s *Service) RecordStockAlert(ctx context.Context, userID, productName string, stock decimal.Decimal) (*notification.Notification, error) {
	n := notification.NewStockAlert(userID, productName, stock)
	if n == nil {
		return nil, nil
	}

	created, err := s.repo.CreateAlert(ctx, n)
	if err != nil {
		return nil, err
	}
	if !created {
		s.logger.Debug("Stock alert already recorded",
			zap.String("user_id", userID),
			zap.String("product", productName))
		return nil, nil
	}
	s.logger.Info("Stock alert recorded",
		zap.String("user_id", userID),
		zap.String("product", productName),
		zap.String("severity", string(n.Severity)))
	return n, nil
}

// RecordStockUpdate stores an audit record of a manual stock change.
func (s *Service) RecordStockUpdate(ctx context.Context, userID, productName string, stock decimal.Decimal) (*notification.Notification, error) {
	n := notification.NewStockUpdate(userID, productName, stock)
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// ListUnread returns the newest unread notifications.
func (s *Service) ListUnread(ctx context.Context, userID string) ([]NotificationResponse, error) {
	items, err := s.repo.ListUnread(ctx, userID, notification.UnreadLimit)
	if err != nil {
		return nil, err
	}
	out := make([]NotificationResponse, 0, len(items))
	for i := range items {
		out = append(out, ToNotificationResponse(&items[i]))
	}
	return out, nil
}

// MarkRead flags one of the user's notifications as read.
func (s *Service) MarkRead(ctx context.Context, userID string, id uuid.UUID) error {
	return s.repo.MarkRead(ctx, userID, id)
}
