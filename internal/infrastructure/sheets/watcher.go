package sheets

import (
	"context"
	"fmt"
	"time"

	"github.com/retailpulse/backend/internal/domain/shared"
	"github.com/retailpulse/backend/internal/domain/source"
	"go.uber.org/zap"
	"google.golang.org/api/drive/v3"
)

const defaultChannelTTL = 24 * time.Hour

// Watcher registers and stops Drive push-notification channels.
type Watcher struct {
	client *Client
}

// Watch asks Drive to post changes of sheetID to address on channelID.
func (w *Watcher) Watch(ctx context.Context, sheetID, channelID, address string) (source.WatchResult, error) {
	ch, err := w.client.channels.Watch(ctx, sheetID, &drive.Channel{
		Id:      channelID,
		Type:    "web_hook",
		Address: address,
	})
	if err != nil {
		return source.WatchResult{}, shared.Wrap(shared.ErrSourceUnavailable, fmt.Errorf("watch %s: %w", sheetID, err))
	}
	return source.WatchResult{
		ResourceID: ch.ResourceId,
		Expiration: channelExpiration(ch.Expiration, time.Now()),
	}, nil
}

// channelExpiration converts Drive's millisecond expiration. Zero means
// Drive did not report one, which gets its one-day default.
func channelExpiration(ms int64, now time.Time) time.Time {
	if ms <= 0 {
		return now.Add(defaultChannelTTL).UTC()
	}
	return time.UnixMilli(ms).UTC()
}

// Stop closes a channel. Drive may already have expired it, so callers
// treat failures as best effort.
func (w *Watcher) Stop(ctx context.Context, channelID, resourceID string) error {
	if err := w.client.channels.Stop(ctx, &drive.Channel{Id: channelID, ResourceId: resourceID}); err != nil {
		w.client.logger.Debug("Channel stop failed",
			zap.String("channel_id", channelID),
			zap.Error(err))
		return fmt.Errorf("stop channel %s: %w", channelID, err)
	}
	return nil
}
