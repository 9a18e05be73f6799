package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/retailpulse/backend/internal/domain/insights"
	"github.com/retailpulse/backend/internal/domain/shared"
	"github.com/retailpulse/backend/internal/domain/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const webhook = "https://api.example.com/sheet-change-webhook"

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	sources   *MockSourceRepository
	subs      *MockSubscriptionRepository
	watcher   *MockWatcher
	refresher *MockRefresher
	svc       *Service
}

func newFixture(address string) *fixture {
	f := &fixture{
		sources:   new(MockSourceRepository),
		subs:      new(MockSubscriptionRepository),
		watcher:   new(MockWatcher),
		refresher: new(MockRefresher),
	}
	f.svc = NewService(f.sources, f.subs, f.watcher, f.refresher, address,
		WithClock(func() time.Time { return now }))
	return f
}

func newSource(t *testing.T, userID, sheetID string) *source.LinkedSource {
	t.Helper()
	src, err := source.NewLinkedSource(userID, "https://docs.google.com/spreadsheets/d/"+sheetID+"/edit")
	require.NoError(t, err)
	return src
}

func TestService_Subscribe(t *testing.T) {
	ctx := context.Background()

	t.Run("watches and stores the subscription", func(t *testing.T) {
		f := newFixture(webhook)
		src := newSource(t, "user-1", "sheetA")
		exp := now.Add(24 * time.Hour)
		f.watcher.On("Watch", ctx, "sheetA", mock.AnythingOfType("string"), webhook).
			Return(source.WatchResult{ResourceID: "res-1", Expiration: exp}, nil)
		f.subs.On("Upsert", ctx, mock.AnythingOfType("*source.WatchSubscription")).Return(nil)

		sub, err := f.svc.Subscribe(ctx, src)
		require.NoError(t, err)
		assert.Equal(t, src.ID, sub.SourceID)
		assert.Equal(t, "res-1", sub.ResourceID)
		assert.Equal(t, exp, sub.Expiration)
		assert.Len(t, sub.ChannelID, 36)
	})

	t.Run("store failure stops the new channel", func(t *testing.T) {
		f := newFixture(webhook)
		src := newSource(t, "user-1", "sheetA")
		f.watcher.On("Watch", ctx, "sheetA", mock.Anything, webhook).
			Return(source.WatchResult{ResourceID: "res-1", Expiration: now}, nil)
		f.subs.On("Upsert", ctx, mock.Anything).Return(shared.ErrNotFound)
		f.watcher.On("Stop", ctx, mock.Anything, "res-1").Return(nil)

		_, err := f.svc.Subscribe(ctx, src)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		f.watcher.AssertCalled(t, "Stop", ctx, mock.Anything, "res-1")
	})

	t.Run("no webhook address skips", func(t *testing.T) {
		f := newFixture("")
		sub, err := f.svc.Subscribe(ctx, newSource(t, "user-1", "sheetA"))
		assert.NoError(t, err)
		assert.Nil(t, sub)
		f.watcher.AssertNotCalled(t, "Watch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestService_RenewExpiring(t *testing.T) {
	ctx := context.Background()

	t.Run("renews each due subscription and isolates failures", func(t *testing.T) {
		f := newFixture(webhook)
		srcA := newSource(t, "user-a", "sheetA")
		srcB := newSource(t, "user-b", "sheetB")
		subA := source.NewWatchSubscription(srcA, "old-a", "res-a", now.Add(30*time.Minute))
		subB := source.NewWatchSubscription(srcB, "old-b", "res-b", now.Add(10*time.Minute))

		f.subs.On("FindExpiringBefore", ctx, now.Add(time.Hour)).Return([]source.WatchSubscription{*subB, *subA}, nil)
		f.sources.On("FindByID", ctx, srcA.ID).Return(srcA, nil)
		f.sources.On("FindByID", ctx, srcB.ID).Return(srcB, nil)
		f.watcher.On("Watch", ctx, "sheetB", mock.Anything, webhook).Return(source.WatchResult{}, errors.New("quota"))
		f.watcher.On("Watch", ctx, "sheetA", mock.Anything, webhook).
			Return(source.WatchResult{ResourceID: "res-a2", Expiration: now.Add(24 * time.Hour)}, nil)
		f.subs.On("Upsert", ctx, mock.MatchedBy(func(s *source.WatchSubscription) bool {
			return s.SourceID == srcA.ID && s.ResourceID == "res-a2" && s.ChannelID != "old-a"
		})).Return(nil)
		f.watcher.On("Stop", ctx, "old-a", "res-a").Return(nil)

		res, err := f.svc.RenewExpiring(ctx)
		require.NoError(t, err)
		assert.Equal(t, RenewResult{Checked: 2, Renewed: 1, Failed: 1}, res)
		f.subs.AssertExpectations(t)
		f.watcher.AssertExpectations(t)
	})

	t.Run("source removed during renewal discards the new channel", func(t *testing.T) {
		f := newFixture(webhook)
		src := newSource(t, "user-a", "sheetA")
		sub := source.NewWatchSubscription(src, "old-a", "res-a", now)

		f.subs.On("FindExpiringBefore", ctx, mock.Anything).Return([]source.WatchSubscription{*sub}, nil)
		f.sources.On("FindByID", ctx, src.ID).Return(src, nil).Once()
		f.sources.On("FindByID", ctx, src.ID).Return(nil, shared.ErrNotFound).Once()
		f.watcher.On("Watch", ctx, "sheetA", mock.Anything, webhook).
			Return(source.WatchResult{ResourceID: "res-new", Expiration: now.Add(time.Hour)}, nil)
		f.watcher.On("Stop", ctx, mock.Anything, "res-new").Return(nil)

		res, err := f.svc.RenewExpiring(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Discarded)
		f.subs.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})

	t.Run("conditional store rejects a deleted source", func(t *testing.T) {
		f := newFixture(webhook)
		src := newSource(t, "user-a", "sheetA")
		sub := source.NewWatchSubscription(src, "old-a", "res-a", now)

		f.subs.On("FindExpiringBefore", ctx, mock.Anything).Return([]source.WatchSubscription{*sub}, nil)
		f.sources.On("FindByID", ctx, src.ID).Return(src, nil)
		f.watcher.On("Watch", ctx, "sheetA", mock.Anything, webhook).
			Return(source.WatchResult{ResourceID: "res-new", Expiration: now.Add(time.Hour)}, nil)
		f.subs.On("Upsert", ctx, mock.Anything).Return(shared.ErrNotFound)
		f.watcher.On("Stop", ctx, mock.Anything, "res-new").Return(nil)

		res, err := f.svc.RenewExpiring(ctx)
		require.NoError(t, err)
		assert.Equal(t, RenewResult{Checked: 1, Discarded: 1}, res)
	})

	t.Run("orphaned subscription is removed", func(t *testing.T) {
		f := newFixture(webhook)
		src := newSource(t, "user-a", "sheetA")
		sub := source.NewWatchSubscription(src, "old-a", "res-a", now)

		f.subs.On("FindExpiringBefore", ctx, mock.Anything).Return([]source.WatchSubscription{*sub}, nil)
		f.sources.On("FindByID", ctx, src.ID).Return(nil, shared.ErrNotFound)
		f.subs.On("DeleteBySourceID", ctx, src.ID).Return(nil)

		res, err := f.svc.RenewExpiring(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Discarded)
		f.watcher.AssertNotCalled(t, "Watch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("orphan cleanup failure is logged", func(t *testing.T) {
		f := newFixture(webhook)
		core, logs := observer.New(zap.WarnLevel)
		f.svc = NewService(f.sources, f.subs, f.watcher, f.refresher, webhook,
			WithClock(func() time.Time { return now }), WithLogger(zap.New(core)))
		src := newSource(t, "user-a", "sheetA")
		sub := source.NewWatchSubscription(src, "old-a", "res-a", now)

		f.subs.On("FindExpiringBefore", ctx, mock.Anything).Return([]source.WatchSubscription{*sub}, nil)
		f.sources.On("FindByID", ctx, src.ID).Return(nil, shared.ErrNotFound)
		f.subs.On("DeleteBySourceID", ctx, src.ID).Return(errors.New("db down"))

		res, err := f.svc.RenewExpiring(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Discarded)

		entries := logs.FilterMessage("Failed to delete orphaned subscription").All()
		require.Len(t, entries, 1)
		assert.Equal(t, "old-a", entries[0].ContextMap()["channel_id"])
		assert.Equal(t, "db down", entries[0].ContextMap()["error"])
	})

	t.Run("listing failure aborts", func(t *testing.T) {
		f := newFixture(webhook)
		f.subs.On("FindExpiringBefore", ctx, mock.Anything).Return(nil, errors.New("db down"))

		_, err := f.svc.RenewExpiring(ctx)
		assert.Error(t, err)
	})
}

func TestService_HandleChangeEvent(t *testing.T) {
	ctx := context.Background()
	src := newSource(t, "user-1", "sheetA")
	sub := source.NewWatchSubscription(src, "chan-1", "res-1", now)

	tests := []struct {
		name    string
		event   ChangeEvent
		setup   func(f *fixture)
		wantErr error
		refresh bool
	}{
		{
			name:  "sync handshake is ignored",
			event: ChangeEvent{ChannelID: "chan-1", ResourceID: "res-1", ResourceState: "sync"},
			setup: func(*fixture) {},
		},
		{
			name:  "unknown channel",
			event: ChangeEvent{ChannelID: "nope", ResourceID: "res-1", ResourceState: "update"},
			setup: func(f *fixture) {
				f.subs.On("FindByChannelID", ctx, "nope").Return(nil, shared.ErrNotFound)
			},
			wantErr: ErrUnknownChannel,
		},
		{
			name:  "resource mismatch",
			event: ChangeEvent{ChannelID: "chan-1", ResourceID: "other", ResourceState: "update"},
			setup: func(f *fixture) {
				f.subs.On("FindByChannelID", ctx, "chan-1").Return(sub, nil)
			},
			wantErr: ErrUnknownChannel,
		},
		{
			name:  "change refreshes the owner",
			event: ChangeEvent{ChannelID: "chan-1", ResourceID: "res-1", ResourceState: "update"},
			setup: func(f *fixture) {
				f.subs.On("FindByChannelID", ctx, "chan-1").Return(sub, nil)
				f.refresher.On("Refresh", ctx, "user-1").Return(&insights.InsightsReport{}, nil)
			},
			refresh: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(webhook)
			tt.setup(f)

			err := f.svc.HandleChangeEvent(ctx, tt.event)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			if tt.refresh {
				f.refresher.AssertCalled(t, "Refresh", ctx, "user-1")
			} else {
				f.refresher.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestService_HandleChangeEvent_Redelivery(t *testing.T) {
	ctx := context.Background()
	src := newSource(t, "user-1", "sheetA")
	sub := source.NewWatchSubscription(src, "chan-1", "res-1", now)
	ev := ChangeEvent{ChannelID: "chan-1", ResourceID: "res-1", ResourceState: "update", MessageNumber: "42"}

	tests := []struct {
		name    string
		first   bool
		err     error
		refresh bool
	}{
		{"first delivery refreshes", true, nil, true},
		{"redelivery is skipped", false, nil, false},
		{"store failure lets it through", false, errors.New("redis down"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(webhook)
			store := new(MockDeliveryStore)
			f.svc = NewService(f.sources, f.subs, f.watcher, f.refresher, webhook,
				WithClock(func() time.Time { return now }),
				WithDeliveryStore(store))

			f.subs.On("FindByChannelID", ctx, "chan-1").Return(sub, nil)
			store.On("MarkDelivered", ctx, "chan-1:42", deliveryTTL).Return(tt.first, tt.err)
			f.refresher.On("Refresh", ctx, "user-1").Return(&insights.InsightsReport{}, nil).Maybe()

			require.NoError(t, f.svc.HandleChangeEvent(ctx, ev))
			if tt.refresh {
				f.refresher.AssertCalled(t, "Refresh", ctx, "user-1")
			} else {
				f.refresher.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
			}
		})
	}

	t.Run("events without a message number skip the store", func(t *testing.T) {
		f := newFixture(webhook)
		store := new(MockDeliveryStore)
		f.svc = NewService(f.sources, f.subs, f.watcher, f.refresher, webhook, WithDeliveryStore(store))
		f.subs.On("FindByChannelID", ctx, "chan-1").Return(sub, nil)
		f.refresher.On("Refresh", ctx, "user-1").Return(&insights.InsightsReport{}, nil)

		plain := ev
		plain.MessageNumber = ""
		require.NoError(t, f.svc.HandleChangeEvent(ctx, plain))
		store.AssertNotCalled(t, "MarkDelivered", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestService_HandleSheetUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("refreshes the sheet owner", func(t *testing.T) {
		f := newFixture(webhook)
		f.sources.On("FindBySheetID", ctx, "sheetA").Return(newSource(t, "user-1", "sheetA"), nil)
		f.refresher.On("Refresh", ctx, "user-1").Return(&insights.InsightsReport{}, nil)

		assert.NoError(t, f.svc.HandleSheetUpdate(ctx, "sheetA"))
	})

	t.Run("unknown sheet", func(t *testing.T) {
		f := newFixture(webhook)
		f.sources.On("FindBySheetID", ctx, "nope").Return(nil, shared.ErrNotFound)

		assert.ErrorIs(t, f.svc.HandleSheetUpdate(ctx, "nope"), ErrUnknownChannel)
	})
}

func TestService_Unsubscribe(t *testing.T) {
	ctx := context.Background()

	t.Run("stops and deletes", func(t *testing.T) {
		f := newFixture(webhook)
		src := newSource(t, "user-1", "sheetA")
		sub := source.NewWatchSubscription(src, "chan-1", "res-1", now)
		f.sources.On("FindByUserID", ctx, "user-1").Return(src, nil)
		f.subs.On("FindBySourceID", ctx, src.ID).Return(sub, nil)
		f.watcher.On("Stop", ctx, "chan-1", "res-1").Return(errors.New("already expired"))
		f.subs.On("DeleteBySourceID", ctx, src.ID).Return(nil)

		assert.NoError(t, f.svc.Unsubscribe(ctx, "user-1"))
		f.subs.AssertExpectations(t)
	})

	t.Run("nothing linked", func(t *testing.T) {
		f := newFixture(webhook)
		f.sources.On("FindByUserID", ctx, "user-1").Return(nil, shared.ErrNotFound)

		assert.NoError(t, f.svc.Unsubscribe(ctx, "user-1"))
	})
}
