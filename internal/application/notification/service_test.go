package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/retailpulse/backend/internal/domain/notification"
	"github.com/retailpulse/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRepository is a mock implementation of notification.Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, n *notification.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *MockRepository) CreateAlert(ctx context.Context, n *notification.Notification) (bool, error) {
	args := m.Called(ctx, n)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) ListUnread(ctx context.Context, userID string, limit int) ([]notification.Notification, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]notification.Notification), args.Error(1)
}

func (m *MockRepository) MarkRead(ctx context.Context, userID string, id uuid.UUID) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

func TestService_RecordStockAlert(t *testing.T) {
	ctx := context.Background()

	t.Run("records a new low stock alert", func(t *testing.T) {
		repo := new(MockRepository)
		stock := decimal.NewFromInt(4)
		repo.On("CreateAlert", ctx, mock.MatchedBy(func(n *notification.Notification) bool {
			return n.Kind == notification.KindStockAlert && n.ProductName == "Widget" && n.Stock.Equal(stock)
		})).Return(true, nil)

		n, err := NewService(repo, nil).RecordStockAlert(ctx, "user-1", "Widget", stock)
		require.NoError(t, err)
		require.NotNil(t, n)
		assert.Equal(t, notification.SeverityMedium, n.Severity)
		repo.AssertExpectations(t)
	})

	t.Run("skips duplicates", func(t *testing.T) {
		repo := new(MockRepository)
		stock := decimal.Zero
		repo.On("CreateAlert", ctx, mock.AnythingOfType("*notification.Notification")).Return(false, nil)

		n, err := NewService(repo, nil).RecordStockAlert(ctx, "user-1", "Widget", stock)
		require.NoError(t, err)
		assert.Nil(t, n)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("healthy stock needs no alert", func(t *testing.T) {
		repo := new(MockRepository)

		n, err := NewService(repo, nil).RecordStockAlert(ctx, "user-1", "Widget", decimal.NewFromInt(50))
		require.NoError(t, err)
		assert.Nil(t, n)
		repo.AssertNotCalled(t, "CreateAlert", mock.Anything, mock.Anything)
	})

	t.Run("propagates repository errors", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("CreateAlert", ctx, mock.AnythingOfType("*notification.Notification")).Return(false, errors.New("db down"))

		_, err := NewService(repo, nil).RecordStockAlert(ctx, "user-1", "Widget", decimal.Zero)
		assert.Error(t, err)
	})
}

func TestService_RecordStockUpdate(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)
	repo.On("Create", ctx, mock.MatchedBy(func(n *notification.Notification) bool {
		return n.Kind == notification.KindStockUpdate && n.Severity == notification.SeverityLow
	})).Return(nil)

	n, err := NewService(repo, nil).RecordStockUpdate(ctx, "user-1", "Widget", decimal.NewFromInt(40))
	require.NoError(t, err)
	assert.Equal(t, "Stock updated for Widget. New stock: 40", n.Message)
	repo.AssertExpectations(t)
}

func TestService_ListUnread(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)
	item := notification.NewStockAlert("user-1", "Widget", decimal.Zero)
	repo.On("ListUnread", ctx, "user-1", notification.UnreadLimit).Return([]notification.Notification{*item}, nil)

	list, err := NewService(repo, nil).ListUnread(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "stock_alert", list[0].Type)
	assert.Equal(t, "high", list[0].Severity)
	assert.False(t, list[0].Read)
}

func TestService_MarkRead(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)
	id := uuid.New()
	repo.On("MarkRead", ctx, "user-1", id).Return(shared.ErrNotFound)

	err := NewService(repo, nil).MarkRead(ctx, "user-1", id)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
