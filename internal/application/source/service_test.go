package source

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/retailpulse/backend/internal/domain/shared"
	"github.com/retailpulse/backend/internal/domain/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const sheetURL = "https://docs.google.com/spreadsheets/d/sheet123/edit#gid=0"

type MockRepository struct{ mock.Mock }

func (m *MockRepository) result(args mock.Arguments) (*source.LinkedSource, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*source.LinkedSource), args.Error(1)
}

func (m *MockRepository) FindByUserID(ctx context.Context, userID string) (*source.LinkedSource, error) {
	return m.result(m.Called(ctx, userID))
}

func (m *MockRepository) FindByID(ctx context.Context, id uuid.UUID) (*source.LinkedSource, error) {
	return m.result(m.Called(ctx, id))
}

func (m *MockRepository) FindBySheetID(ctx context.Context, sheetID string) (*source.LinkedSource, error) {
	return m.result(m.Called(ctx, sheetID))
}

func (m *MockRepository) Replace(ctx context.Context, src *source.LinkedSource) error {
	return m.Called(ctx, src).Error(0)
}

func (m *MockRepository) DeleteByUserID(ctx context.Context, userID string) (*source.LinkedSource, error) {
	return m.result(m.Called(ctx, userID))
}

type MockTabs struct{ mock.Mock }

func (m *MockTabs) ListTabs(ctx context.Context, sheetID string) ([]string, error) {
	args := m.Called(ctx, sheetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockSubscriber struct{ mock.Mock }

func (m *MockSubscriber) Subscribe(ctx context.Context, src *source.LinkedSource) (*source.WatchSubscription, error) {
	args := m.Called(ctx, src)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*source.WatchSubscription), args.Error(1)
}

func (m *MockSubscriber) Unsubscribe(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type fakeInvalidator struct{ users []string }

func (f *fakeInvalidator) Invalidate(userID string) { f.users = append(f.users, userID) }

type fixture struct {
	repo  *MockRepository
	tabs  *MockTabs
	subs  *MockSubscriber
	cache *fakeInvalidator
	svc   *Service
}

func newFixture() *fixture {
	f := &fixture{
		repo:  new(MockRepository),
		tabs:  new(MockTabs),
		subs:  new(MockSubscriber),
		cache: &fakeInvalidator{},
	}
	f.svc = NewService(f.repo, f.tabs, f.subs, f.cache, nil)
	return f
}

func TestService_Connect(t *testing.T) {
	ctx := context.Background()

	t.Run("links, subscribes and invalidates", func(t *testing.T) {
		f := newFixture()
		f.tabs.On("ListTabs", ctx, "sheet123").Return([]string{"products", "sales"}, nil)
		f.subs.On("Unsubscribe", ctx, "user-1").Return(nil)
		f.repo.On("Replace", ctx, mock.MatchedBy(func(s *source.LinkedSource) bool {
			return s.UserID == "user-1" && s.SheetID == "sheet123"
		})).Return(nil)
		f.subs.On("Subscribe", ctx, mock.Anything).Return(&source.WatchSubscription{}, nil)

		res, err := f.svc.Connect(ctx, "user-1", sheetURL)
		require.NoError(t, err)
		assert.Equal(t, sheetURL, res.SheetURL)
		assert.Equal(t, []string{"products", "sales"}, res.SheetsAvailable)
		assert.Equal(t, []string{"user-1"}, f.cache.users)
		f.repo.AssertExpectations(t)
	})

	t.Run("malformed url", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.Connect(ctx, "user-1", "https://example.com/sheet")
		assert.ErrorIs(t, err, shared.ErrMalformedSource)
		f.tabs.AssertNotCalled(t, "ListTabs", mock.Anything, mock.Anything)
	})

	t.Run("no tabs", func(t *testing.T) {
		f := newFixture()
		f.tabs.On("ListTabs", ctx, "sheet123").Return([]string{}, nil)

		_, err := f.svc.Connect(ctx, "user-1", sheetURL)
		assert.ErrorIs(t, err, shared.ErrNoTabs)
		f.repo.AssertNotCalled(t, "Replace", mock.Anything, mock.Anything)
	})

	t.Run("unreachable sheet", func(t *testing.T) {
		f := newFixture()
		f.tabs.On("ListTabs", ctx, "sheet123").Return(nil, shared.Wrap(shared.ErrSourceUnavailable, errors.New("403")))

		_, err := f.svc.Connect(ctx, "user-1", sheetURL)
		assert.ErrorIs(t, err, shared.ErrSourceUnavailable)
	})

	t.Run("subscription failure is reported", func(t *testing.T) {
		f := newFixture()
		f.tabs.On("ListTabs", ctx, "sheet123").Return([]string{"products"}, nil)
		f.subs.On("Unsubscribe", ctx, "user-1").Return(nil)
		f.repo.On("Replace", ctx, mock.Anything).Return(nil)
		f.subs.On("Subscribe", ctx, mock.Anything).Return(nil, shared.ErrSourceUnavailable)

		_, err := f.svc.Connect(ctx, "user-1", sheetURL)
		assert.ErrorIs(t, err, shared.ErrSourceUnavailable)
	})
}

func TestService_GetLinked(t *testing.T) {
	ctx := context.Background()

	t.Run("linked", func(t *testing.T) {
		f := newFixture()
		src, err := source.NewLinkedSource("user-1", sheetURL)
		require.NoError(t, err)
		f.repo.On("FindByUserID", ctx, "user-1").Return(src, nil)

		res, err := f.svc.GetLinked(ctx, "user-1")
		require.NoError(t, err)
		require.NotNil(t, res.SheetURL)
		assert.Equal(t, sheetURL, *res.SheetURL)
	})

	t.Run("not linked", func(t *testing.T) {
		f := newFixture()
		f.repo.On("FindByUserID", ctx, "user-1").Return(nil, shared.ErrNotFound)

		res, err := f.svc.GetLinked(ctx, "user-1")
		require.NoError(t, err)
		assert.Nil(t, res.SheetURL)
	})
}

func TestService_Disconnect(t *testing.T) {
	ctx := context.Background()

	t.Run("removes source", func(t *testing.T) {
		f := newFixture()
		f.subs.On("Unsubscribe", ctx, "user-1").Return(nil)
		f.repo.On("DeleteByUserID", ctx, "user-1").Return(&source.LinkedSource{}, nil)

		require.NoError(t, f.svc.Disconnect(ctx, "user-1"))
		assert.Equal(t, []string{"user-1"}, f.cache.users)
	})

	t.Run("nothing linked", func(t *testing.T) {
		f := newFixture()
		f.subs.On("Unsubscribe", ctx, "user-1").Return(nil)
		f.repo.On("DeleteByUserID", ctx, "user-1").Return(nil, shared.ErrNotFound)

		err := f.svc.Disconnect(ctx, "user-1")
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.Empty(t, f.cache.users)
	})
}
