package notifier

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/retailpulse/backend/internal/domain/insights"
	"github.com/retailpulse/backend/internal/domain/source"
	"github.com/stretchr/testify/mock"
)

type MockSourceRepository struct{ mock.Mock }

func (m *MockSourceRepository) result(args mock.Arguments) (*source.LinkedSource, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*source.LinkedSource), args.Error(1)
}

func (m *MockSourceRepository) FindByUserID(ctx context.Context, userID string) (*source.LinkedSource, error) {
	return m.result(m.Called(ctx, userID))
}

func (m *MockSourceRepository) FindByID(ctx context.Context, id uuid.UUID) (*source.LinkedSource, error) {
	return m.result(m.Called(ctx, id))
}

func (m *MockSourceRepository) FindBySheetID(ctx context.Context, sheetID string) (*source.LinkedSource, error) {
	return m.result(m.Called(ctx, sheetID))
}

func (m *MockSourceRepository) Replace(ctx context.Context, src *source.LinkedSource) error {
	return m.Called(ctx, src).Error(0)
}

func (m *MockSourceRepository) DeleteByUserID(ctx context.Context, userID string) (*source.LinkedSource, error) {
	return m.result(m.Called(ctx, userID))
}

type MockSubscriptionRepository struct{ mock.Mock }

func (m *MockSubscriptionRepository) result(args mock.Arguments) (*source.WatchSubscription, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*source.WatchSubscription), args.Error(1)
}

func (m *MockSubscriptionRepository) FindByChannelID(ctx context.Context, channelID string) (*source.WatchSubscription, error) {
	return m.result(m.Called(ctx, channelID))
}

func (m *MockSubscriptionRepository) FindBySourceID(ctx context.Context, sourceID uuid.UUID) (*source.WatchSubscription, error) {
	return m.result(m.Called(ctx, sourceID))
}

func (m *MockSubscriptionRepository) FindExpiringBefore(ctx context.Context, t time.Time) ([]source.WatchSubscription, error) {
	args := m.Called(ctx, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]source.WatchSubscription), args.Error(1)
}

func (m *MockSubscriptionRepository) Upsert(ctx context.Context, sub *source.WatchSubscription) error {
	return m.Called(ctx, sub).Error(0)
}

func (m *MockSubscriptionRepository) DeleteBySourceID(ctx context.Context, sourceID uuid.UUID) error {
	return m.Called(ctx, sourceID).Error(0)
}

type MockWatcher struct{ mock.Mock }

func (m *MockWatcher) Watch(ctx context.Context, sheetID, channelID, address string) (source.WatchResult, error) {
	args := m.Called(ctx, sheetID, channelID, address)
	return args.Get(0).(source.WatchResult), args.Error(1)
}

func (m *MockWatcher) Stop(ctx context.Context, channelID, resourceID string) error {
	return m.Called(ctx, channelID, resourceID).Error(0)
}

type MockRefresher struct{ mock.Mock }

func (m *MockRefresher) Refresh(ctx context.Context, userID string) (*insights.InsightsReport, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*insights.InsightsReport), args.Error(1)
}

type MockDeliveryStore struct{ mock.Mock }

func (m *MockDeliveryStore) MarkDelivered(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}
