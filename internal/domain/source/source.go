// Package source models the spreadsheet a user links as their data feed and
// the Drive change-watch subscription kept on it.
package source

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/retailpulse/backend/internal/domain/shared"
)

var sheetIDPattern = regexp.MustCompile(`/d/([a-zA-Z0-9-_]+)`)

// ParseSheetURL extracts the spreadsheet id from a Google Sheets link.
func ParseSheetURL(raw string) (string, error) {
	m := sheetIDPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return "", shared.ErrMalformedSource
	}
	return m[1], nil
}

// LinkedSource is the spreadsheet connected by a user. A user has at most one.
type LinkedSource struct {
	shared.BaseEntity
	UserID      string
	SheetURL    string
	SheetID     string
	ConnectedAt time.Time
}

// NewLinkedSource validates the URL and builds a source for userID.
func NewLinkedSource(userID, sheetURL string) (*LinkedSource, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, shared.WithMessage(shared.ErrInvalidInput, "user id is required")
	}
	sheetID, err := ParseSheetURL(sheetURL)
	if err != nil {
		return nil, err
	}
	base := shared.NewBaseEntity()
	return &LinkedSource{
		BaseEntity:  base,
		UserID:      userID,
		SheetURL:    strings.TrimSpace(sheetURL),
		SheetID:     sheetID,
		ConnectedAt: base.CreatedAt,
	}, nil
}

// ResolveSheetID re-derives the sheet id from the stored URL so a corrupted
// record surfaces as MalformedSource rather than a failed fetch.
func (s *LinkedSource) ResolveSheetID() (string, error) {
	return ParseSheetURL(s.SheetURL)
}

// WatchSubscription is a time-limited Drive files.watch registration.
type WatchSubscription struct {
	shared.BaseEntity
	SourceID   uuid.UUID
	UserID     string
	SheetID    string
	ChannelID  string
	ResourceID string
	Expiration time.Time
}

// NewWatchSubscription creates a subscription record for src.
func NewWatchSubscription(src *LinkedSource, channelID, resourceID string, expiration time.Time) *WatchSubscription {
	return &WatchSubscription{
		BaseEntity: shared.NewBaseEntity(),
		SourceID:   src.ID,
		UserID:     src.UserID,
		SheetID:    src.SheetID,
		ChannelID:  channelID,
		ResourceID: resourceID,
		Expiration: expiration,
	}
}

// ExpiresWithin reports whether the subscription lapses before now+window.
func (w *WatchSubscription) ExpiresWithin(now time.Time, window time.Duration) bool {
	return !w.Expiration.After(now.Add(window))
}

// Supersede replaces the channel data in place after a renewal.
func (w *WatchSubscription) Supersede(channelID, resourceID string, expiration time.Time, now time.Time) {
	w.ChannelID = channelID
	w.ResourceID = resourceID
	w.Expiration = expiration
	w.Touch(now)
}

// WatchResult describes a change channel the Drive API accepted.
type WatchResult struct {
	ResourceID string
	Expiration time.Time
}
