package source

import (
	"errors"
	"testing"
	"time"

	"github.com/retailpulse/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSheetURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{"edit link", "https://docs.google.com/spreadsheets/d/1AbC-d_9xYz/edit#gid=0", "1AbC-d_9xYz", false},
		{"bare path", "/d/abc123", "abc123", false},
		{"surrounding spaces", "  https://docs.google.com/spreadsheets/d/xyz/view ", "xyz", false},
		{"no id segment", "https://docs.google.com/spreadsheets/", "", true},
		{"empty", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSheetURL(tt.url)
			if tt.wantErr {
				assert.True(t, errors.Is(err, shared.ErrMalformedSource))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewLinkedSource(t *testing.T) {
	src, err := NewLinkedSource("user-1", "https://docs.google.com/spreadsheets/d/sheet42/edit")
	require.NoError(t, err)
	assert.Equal(t, "sheet42", src.SheetID)
	assert.Equal(t, "user-1", src.UserID)
	assert.False(t, src.ConnectedAt.IsZero())

	_, err = NewLinkedSource("", "https://docs.google.com/spreadsheets/d/sheet42/edit")
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))

	_, err = NewLinkedSource("user-1", "https://example.com/sheet")
	assert.True(t, errors.Is(err, shared.ErrMalformedSource))
}

func TestWatchSubscription_ExpiresWithin(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	src, err := NewLinkedSource("user-1", "https://docs.google.com/spreadsheets/d/s1/edit")
	require.NoError(t, err)

	sub := NewWatchSubscription(src, "ch-1", "res-1", now.Add(30*time.Minute))
	assert.True(t, sub.ExpiresWithin(now, time.Hour))

	sub.Supersede("ch-2", "res-2", now.Add(7*24*time.Hour), now)
	assert.False(t, sub.ExpiresWithin(now, time.Hour))
	assert.Equal(t, "ch-2", sub.ChannelID)
	assert.Equal(t, now, sub.UpdatedAt)
}
