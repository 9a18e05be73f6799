package handler

import (
	"context"

	"github.com/google/uuid"
	insightsapp "github.com/retailpulse/backend/internal/application/insights"
	notificationapp "github.com/retailpulse/backend/internal/application/notification"
	"github.com/retailpulse/backend/internal/application/notifier"
	sourceapp "github.com/retailpulse/backend/internal/application/source"
	"github.com/retailpulse/backend/internal/domain/insights"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockInsightsService struct{ mock.Mock }

func (m *MockInsightsService) GetReport(ctx context.Context, userID string) (*insights.InsightsReport, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*insights.InsightsReport), args.Error(1)
}

func (m *MockInsightsService) GetSummary(ctx context.Context, userID string) (insights.QuickSummary, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(insights.QuickSummary), args.Error(1)
}

func (m *MockInsightsService) PushSummary(ctx context.Context, userID string) (insights.QuickSummary, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(insights.QuickSummary), args.Error(1)
}

func (m *MockInsightsService) UpdateStock(ctx context.Context, userID, productName string, qty decimal.Decimal) (*insightsapp.UpdateStockResult, error) {
	args := m.Called(ctx, userID, productName, qty)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*insightsapp.UpdateStockResult), args.Error(1)
}

type MockSourceService struct{ mock.Mock }

func (m *MockSourceService) Connect(ctx context.Context, userID, sheetURL string) (*sourceapp.ConnectResponse, error) {
	args := m.Called(ctx, userID, sheetURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sourceapp.ConnectResponse), args.Error(1)
}

func (m *MockSourceService) GetLinked(ctx context.Context, userID string) (*sourceapp.LinkedResponse, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sourceapp.LinkedResponse), args.Error(1)
}

func (m *MockSourceService) Disconnect(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type MockNotificationService struct{ mock.Mock }

func (m *MockNotificationService) ListUnread(ctx context.Context, userID string) ([]notificationapp.NotificationResponse, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]notificationapp.NotificationResponse), args.Error(1)
}

func (m *MockNotificationService) MarkRead(ctx context.Context, userID string, id uuid.UUID) error {
	return m.Called(ctx, userID, id).Error(0)
}

type MockChangeHandler struct{ mock.Mock }

func (m *MockChangeHandler) HandleChangeEvent(ctx context.Context, ev notifier.ChangeEvent) error {
	return m.Called(ctx, ev).Error(0)
}

func (m *MockChangeHandler) HandleSheetUpdate(ctx context.Context, sheetID string) error {
	return m.Called(ctx, sheetID).Error(0)
}
