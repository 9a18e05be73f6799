package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/retailpulse/backend/internal/application/notifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRenewer struct {
	calls  atomic.Int32
	result notifier.RenewResult
	err    error
}

func (f *fakeRenewer) RenewExpiring(ctx context.Context) (notifier.RenewResult, error) {
	f.calls.Add(1)
	return f.result, f.err
}

func TestNewWatchRenewalScheduler_Defaults(t *testing.T) {
	s := NewWatchRenewalScheduler(&fakeRenewer{}, nil, WatchRenewalSchedulerConfig{Enabled: true})
	assert.Equal(t, time.Hour, s.config.Interval)
	assert.Equal(t, 10*time.Minute, s.config.SweepTimeout)
	assert.NotNil(t, s.logger)
}

func TestWatchRenewalScheduler_RunOnce(t *testing.T) {
	t.Run("returns sweep result", func(t *testing.T) {
		r := &fakeRenewer{result: notifier.RenewResult{Checked: 3, Renewed: 2, Failed: 1}}
		s := NewWatchRenewalScheduler(r, zap.NewNop(), DefaultWatchRenewalSchedulerConfig())

		res := s.RunOnce(context.Background())
		assert.Equal(t, 2, res.Renewed)
		assert.Equal(t, 1, res.Failed)
		assert.Equal(t, int32(1), r.calls.Load())
	})

	t.Run("logs and swallows errors", func(t *testing.T) {
		r := &fakeRenewer{err: errors.New("db down")}
		s := NewWatchRenewalScheduler(r, zap.NewNop(), DefaultWatchRenewalSchedulerConfig())

		assert.NotPanics(t, func() { s.RunOnce(context.Background()) })
	})
}

func TestWatchRenewalScheduler_StartStop(t *testing.T) {
	t.Run("runs immediately and on every tick", func(t *testing.T) {
		r := &fakeRenewer{}
		s := NewWatchRenewalScheduler(r, zap.NewNop(), WatchRenewalSchedulerConfig{
			Enabled:          true,
			Interval:         10 * time.Millisecond,
			RunOnImmediately: true,
		})

		require.NoError(t, s.Start(context.Background()))
		assert.True(t, s.IsRunning())
		require.NoError(t, s.Start(context.Background()))

		assert.Eventually(t, func() bool { return r.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, s.Stop(ctx))
		assert.False(t, s.IsRunning())
	})

	t.Run("disabled scheduler does not run", func(t *testing.T) {
		r := &fakeRenewer{}
		s := NewWatchRenewalScheduler(r, zap.NewNop(), WatchRenewalSchedulerConfig{Enabled: false, RunOnImmediately: true})

		require.NoError(t, s.Start(context.Background()))
		assert.False(t, s.IsRunning())
		assert.NoError(t, s.Stop(context.Background()))
		assert.Equal(t, int32(0), r.calls.Load())
	})
}

func TestWatchRenewalScheduler_Trigger(t *testing.T) {
	r := &fakeRenewer{}
	s := NewWatchRenewalScheduler(r, zap.NewNop(), WatchRenewalSchedulerConfig{Enabled: true, Interval: time.Hour})

	assert.ErrorIs(t, s.Trigger(context.Background()), ErrSchedulerNotRunning)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	require.NoError(t, s.Trigger(context.Background()))
	assert.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
}
