package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/retailpulse/backend/internal/application/notifier"
	"go.uber.org/zap"
)

// WatchRenewer re-subscribes change channels that are about to lapse.
type WatchRenewer interface {
	RenewExpiring(ctx context.Context) (notifier.RenewResult, error)
}

// WatchRenewalSchedulerConfig holds configuration for the renewal sweep
type WatchRenewalSchedulerConfig struct {
	// Enabled determines if the scheduler is active
	Enabled bool

	// Interval between sweeps
	Interval time.Duration

	// RunOnImmediately runs one sweep as soon as the scheduler starts
	RunOnImmediately bool

	// SweepTimeout bounds a single sweep
	SweepTimeout time.Duration
}

// DefaultWatchRenewalSchedulerConfig returns default configuration
func DefaultWatchRenewalSchedulerConfig() WatchRenewalSchedulerConfig {
	return WatchRenewalSchedulerConfig{
		Enabled:          true,
		Interval:         time.Hour,
		RunOnImmediately: false,
		SweepTimeout:     10 * time.Minute,
	}
}

// WatchRenewalScheduler periodically renews Drive watch subscriptions
type WatchRenewalScheduler struct {
	renewer   WatchRenewer
	logger    *zap.Logger
	config    WatchRenewalSchedulerConfig
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewWatchRenewalScheduler creates a new renewal scheduler
func NewWatchRenewalScheduler(renewer WatchRenewer, logger *zap.Logger, config WatchRenewalSchedulerConfig) *WatchRenewalScheduler {
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}
	if config.SweepTimeout <= 0 {
		config.SweepTimeout = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WatchRenewalScheduler{
		renewer: renewer,
		logger:  logger,
		config:  config,
	}
}

// Start starts the sweep loop
func (s *WatchRenewalScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Watch renewal scheduler is disabled")
		return nil
	}
	s.isRunning = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(ctx)

	s.logger.Info("Watch renewal scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Bool("run_on_start", s.config.RunOnImmediately),
	)
	return nil
}

// Stop gracefully stops the scheduler
func (s *WatchRenewalScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Watch renewal scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Watch renewal scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *WatchRenewalScheduler) run(ctx context.Context) {
	defer s.wg.Done()

	if s.config.RunOnImmediately {
		s.RunOnce(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Watch renewal loop stopping")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep and returns its outcome.
func (s *WatchRenewalScheduler) RunOnce(ctx context.Context) notifier.RenewResult {
	sweepCtx, cancel := context.WithTimeout(ctx, s.config.SweepTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.renewer.RenewExpiring(sweepCtx)
	duration := time.Since(start)

	if err != nil {
		s.logger.Error("Watch renewal sweep failed",
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return result
	}

	s.logger.Info("Watch renewal sweep completed",
		zap.Duration("duration", duration),
		zap.Int("checked", result.Checked),
		zap.Int("renewed", result.Renewed),
		zap.Int("failed", result.Failed),
		zap.Int("discarded", result.Discarded),
	)
	return result
}

// Trigger runs a sweep in the background outside the ticker schedule
func (s *WatchRenewalScheduler) Trigger(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("Triggering immediate watch renewal sweep")
	go func() {
		defer s.wg.Done()
		s.RunOnce(ctx)
	}()
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *WatchRenewalScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}
