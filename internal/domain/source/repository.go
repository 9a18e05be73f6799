package source

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SourceRepository persists linked sources.
type SourceRepository interface {
	FindByUserID(ctx context.Context, userID string) (*LinkedSource, error)
	FindByID(ctx context.Context, id uuid.UUID) (*LinkedSource, error)
	FindBySheetID(ctx context.Context, sheetID string) (*LinkedSource, error)
	// Replace removes any source (and its subscription) the user had and stores src.
	Replace(ctx context.Context, src *LinkedSource) error
	// DeleteByUserID removes the user's source and its subscription.
	// It returns shared.ErrNotFound when nothing was linked.
	DeleteByUserID(ctx context.Context, userID string) (*LinkedSource, error)
}

// SubscriptionRepository persists watch subscriptions.
type SubscriptionRepository interface {
	FindByChannelID(ctx context.Context, channelID string) (*WatchSubscription, error)
	FindBySourceID(ctx context.Context, sourceID uuid.UUID) (*WatchSubscription, error)
	// FindExpiringBefore lists subscriptions whose expiration is not after t.
	FindExpiringBefore(ctx context.Context, t time.Time) ([]WatchSubscription, error)
	// Upsert stores sub, superseding any subscription for the same source.
	// It returns shared.ErrNotFound when the source no longer exists.
	Upsert(ctx context.Context, sub *WatchSubscription) error
	DeleteBySourceID(ctx context.Context, sourceID uuid.UUID) error
}
