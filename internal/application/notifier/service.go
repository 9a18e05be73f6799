// Package notifier keeps Drive change channels alive on every linked
// spreadsheet and turns change notifications into report refreshes.
package notifier

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/retailpulse/backend/internal/domain/insights"
	"github.com/retailpulse/backend/internal/domain/shared"
	"github.com/retailpulse/backend/internal/domain/source"
	"github.com/retailpulse/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Renewal outcomes recorded on rp_watch_renewals_total.
const (
	RenewalOK        = "ok"
	RenewalFailed    = "failed"
	RenewalDiscarded = "discarded"
)

// ResourceStateSync is the handshake Drive sends when a channel opens.
const ResourceStateSync = "sync"

// ErrUnknownChannel is returned for notifications that match no subscription.
var ErrUnknownChannel = errors.New("no subscription for channel")

// ChannelWatcher opens and closes Drive change channels.
type ChannelWatcher interface {
	Watch(ctx context.Context, sheetID, channelID, address string) (source.WatchResult, error)
	Stop(ctx context.Context, channelID, resourceID string) error
}

// Refresher recomputes a user's report and pushes it to live sessions.
type Refresher interface {
	Refresh(ctx context.Context, userID string) (*insights.InsightsReport, error)
}

// ChangeEvent is a Drive push notification, taken from its X-Goog-* headers.
type ChangeEvent struct {
	ChannelID     string
	ResourceID    string
	ResourceState string
	// MessageNumber increases per channel; redeliveries repeat it.
	MessageNumber string
}

// DeliveryStore remembers which notifications were already handled.
type DeliveryStore interface {
	MarkDelivered(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

const deliveryTTL = 15 * time.Minute

// RenewResult summarises one renewal sweep.
type RenewResult struct {
	Checked   int
	Renewed   int
	Failed    int
	Discarded int
}

// Service manages watch subscriptions.
type Service struct {
	sources   source.SourceRepository
	subs      source.SubscriptionRepository
	watcher   ChannelWatcher
	refresher Refresher
	address   string
	window    time.Duration
	now       func() time.Time
	metrics   *telemetry.InsightsMetrics
	logger    *zap.Logger

	deliveries DeliveryStore
}

// Option configures a Service.
type Option func(*Service)

// WithRenewWithin sets how close to expiry a subscription is renewed.
func WithRenewWithin(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.window = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithMetrics(m *telemetry.InsightsMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithDeliveryStore skips notifications whose channel and message number
// were already handled.
func WithDeliveryStore(d DeliveryStore) Option {
	return func(s *Service) { s.deliveries = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates the notifier. address is the public webhook URL; when
// empty, subscriptions are skipped and sources work without push updates.
func NewService(
	sources source.SourceRepository,
	subs source.SubscriptionRepository,
	watcher ChannelWatcher,
	refresher Refresher,
	address string,
	opts ...Option,
) *Service {
	s := &Service{
		sources:   sources,
		subs:      subs,
		watcher:   watcher,
		refresher: refresher,
		address:   address,
		window:    time.Hour,
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe opens a change channel on src and stores it as the source's
// subscription. It returns nil, nil when no webhook address is configured.
func (s *Service) Subscribe(ctx context.Context, src *source.LinkedSource) (*source.WatchSubscription, error) {
	if s.address == "" {
		s.logger.Warn("Webhook address not configured, skipping change subscription",
			zap.String("user_id", src.UserID))
		return nil, nil
	}

	channelID := uuid.NewString()
	res, err := s.watcher.Watch(ctx, src.SheetID, channelID, s.address)
	if err != nil {
		return nil, err
	}

	sub := source.NewWatchSubscription(src, channelID, res.ResourceID, res.Expiration)
	if err := s.subs.Upsert(ctx, sub); err != nil {
		s.stopQuietly(ctx, channelID, res.ResourceID)
		return nil, err
	}

	s.logger.Info("Subscribed to spreadsheet changes",
		zap.String("user_id", src.UserID),
		zap.String("sheet_id", src.SheetID),
		zap.String("channel_id", channelID),
		zap.Time("expiration", res.Expiration))
	return sub, nil
}

// Unsubscribe closes the user's change channel and removes its record.
// A user without a source or subscription is a no-op.
func (s *Service) Unsubscribe(ctx context.Context, userID string) error {
	src, err := s.sources.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		return err
	}
	sub, err := s.subs.FindBySourceID(ctx, src.ID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		return err
	}

	s.stopQuietly(ctx, sub.ChannelID, sub.ResourceID)
	return s.subs.DeleteBySourceID(ctx, src.ID)
}

// RenewExpiring re-subscribes every channel lapsing within the renewal
// window. Each subscription is handled on its own; a failure is counted
// and the sweep continues.
func (s *Service) RenewExpiring(ctx context.Context) (RenewResult, error) {
	var result RenewResult

	due, err := s.subs.FindExpiringBefore(ctx, s.now().Add(s.window))
	if err != nil {
		return result, err
	}

	for i := range due {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		result.Checked++
		outcome := s.renew(ctx, &due[i])
		s.metrics.WatchRenewal(ctx, outcome)
		switch outcome {
		case RenewalOK:
			result.Renewed++
		case RenewalDiscarded:
			result.Discarded++
		default:
			result.Failed++
		}
	}
	return result, nil
}

func (s *Service) renew(ctx context.Context, sub *source.WatchSubscription) string {
	log := s.logger.With(
		zap.String("user_id", sub.UserID),
		zap.String("channel_id", sub.ChannelID))

	src, err := s.sources.FindByID(ctx, sub.SourceID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			if err := s.subs.DeleteBySourceID(ctx, sub.SourceID); err != nil {
				log.Warn("Failed to delete orphaned subscription", zap.Error(err))
			}
			return RenewalDiscarded
		}
		log.Error("Failed to load source for renewal", zap.Error(err))
		return RenewalFailed
	}
	sheetID, err := src.ResolveSheetID()
	if err != nil {
		log.Error("Stored source has a malformed URL", zap.Error(err))
		return RenewalFailed
	}

	channelID := uuid.NewString()
	res, err := s.watcher.Watch(ctx, sheetID, channelID, s.address)
	if err != nil {
		log.Error("Failed to renew change channel", zap.Error(err))
		return RenewalFailed
	}

	// The user may have disconnected while Drive was answering.
	if _, err := s.sources.FindByID(ctx, sub.SourceID); err != nil {
		s.stopQuietly(ctx, channelID, res.ResourceID)
		if errors.Is(err, shared.ErrNotFound) {
			log.Info("Source removed during renewal, discarding new channel")
			return RenewalDiscarded
		}
		log.Error("Failed to re-check source after renewal", zap.Error(err))
		return RenewalFailed
	}

	oldChannel, oldResource := sub.ChannelID, sub.ResourceID
	sub.Supersede(channelID, res.ResourceID, res.Expiration, s.now())
	if err := s.subs.Upsert(ctx, sub); err != nil {
		s.stopQuietly(ctx, channelID, res.ResourceID)
		if errors.Is(err, shared.ErrNotFound) {
			log.Info("Source removed before renewal was stored, discarding new channel")
			return RenewalDiscarded
		}
		log.Error("Failed to store renewed subscription", zap.Error(err))
		return RenewalFailed
	}

	s.stopQuietly(ctx, oldChannel, oldResource)
	log.Info("Change channel renewed",
		zap.String("new_channel_id", channelID),
		zap.Time("expiration", res.Expiration))
	return RenewalOK
}

// HandleChangeEvent refreshes the report of the user owning the channel.
func (s *Service) HandleChangeEvent(ctx context.Context, ev ChangeEvent) error {
	if ev.ResourceState == ResourceStateSync {
		return nil
	}

	sub, err := s.subs.FindByChannelID(ctx, ev.ChannelID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return ErrUnknownChannel
		}
		return err
	}
	if ev.ResourceID != "" && sub.ResourceID != ev.ResourceID {
		return ErrUnknownChannel
	}
	if s.isRedelivery(ctx, ev) {
		s.logger.Debug("Skipping redelivered change notification",
			zap.String("channel_id", ev.ChannelID),
			zap.String("message_number", ev.MessageNumber))
		return nil
	}

	_, err = s.refresher.Refresh(ctx, sub.UserID)
	return err
}

// HandleSheetUpdate refreshes the owner of sheetID. It serves callers that
// identify the spreadsheet rather than a channel.
func (s *Service) HandleSheetUpdate(ctx context.Context, sheetID string) error {
	src, err := s.sources.FindBySheetID(ctx, sheetID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return ErrUnknownChannel
		}
		return err
	}
	_, err = s.refresher.Refresh(ctx, src.UserID)
	return err
}

// isRedelivery reports whether ev was seen before. A failing store lets the
// notification through.
func (s *Service) isRedelivery(ctx context.Context, ev ChangeEvent) bool {
	if s.deliveries == nil || ev.MessageNumber == "" {
		return false
	}
	first, err := s.deliveries.MarkDelivered(ctx, ev.ChannelID+":"+ev.MessageNumber, deliveryTTL)
	if err != nil {
		s.logger.Warn("Delivery store unavailable", zap.Error(err))
		return false
	}
	return !first
}

func (s *Service) stopQuietly(ctx context.Context, channelID, resourceID string) {
	if err := s.watcher.Stop(ctx, channelID, resourceID); err != nil {
		s.logger.Debug("Ignoring channel stop failure",
			zap.String("channel_id", channelID),
			zap.Error(err))
	}
}
