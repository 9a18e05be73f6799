package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/retailpulse/backend/internal/domain/source"
)

// LinkedSourceModel is the persistence model for a user's linked spreadsheet.
type LinkedSourceModel struct {
	RowMeta
	UserID      string    `gorm:"type:varchar(128);not null;uniqueIndex"`
	SheetURL    string    `gorm:"type:text;not null"`
	SheetID     string    `gorm:"type:varchar(128);not null;index"`
	ConnectedAt time.Time `gorm:"not null"`
}

func (LinkedSourceModel) TableName() string {
	return "linked_sources"
}

func (m *LinkedSourceModel) ToDomain() *source.LinkedSource {
	return &source.LinkedSource{
		BaseEntity:  m.RowMeta.entity(),
		UserID:      m.UserID,
		SheetURL:    m.SheetURL,
		SheetID:     m.SheetID,
		ConnectedAt: m.ConnectedAt,
	}
}

func LinkedSourceModelFromDomain(s *source.LinkedSource) *LinkedSourceModel {
	return &LinkedSourceModel{
		RowMeta:     rowMeta(s.BaseEntity),
		UserID:      s.UserID,
		SheetURL:    s.SheetURL,
		SheetID:     s.SheetID,
		ConnectedAt: s.ConnectedAt,
	}
}

// WatchSubscriptionModel is the persistence model for a Drive change channel.
type WatchSubscriptionModel struct {
	RowMeta
	SourceID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	UserID     string    `gorm:"type:varchar(128);not null;index"`
	SheetID    string    `gorm:"type:varchar(128);not null"`
	ChannelID  string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	ResourceID string    `gorm:"type:varchar(128);not null"`
	Expiration time.Time `gorm:"not null;index"`
}

func (WatchSubscriptionModel) TableName() string {
	return "watch_subscriptions"
}

func (m *WatchSubscriptionModel) ToDomain() *source.WatchSubscription {
	return &source.WatchSubscription{
		BaseEntity: m.RowMeta.entity(),
		SourceID:   m.SourceID,
		UserID:     m.UserID,
		SheetID:    m.SheetID,
		ChannelID:  m.ChannelID,
		ResourceID: m.ResourceID,
		Expiration: m.Expiration,
	}
}

func WatchSubscriptionModelFromDomain(w *source.WatchSubscription) *WatchSubscriptionModel {
	return &WatchSubscriptionModel{
		RowMeta:    rowMeta(w.BaseEntity),
		SourceID:   w.SourceID,
		UserID:     w.UserID,
		SheetID:    w.SheetID,
		ChannelID:  w.ChannelID,
		ResourceID: w.ResourceID,
		Expiration: w.Expiration,
	}
}
