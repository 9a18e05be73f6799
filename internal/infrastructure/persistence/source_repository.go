package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/retailpulse/backend/internal/domain/shared"
	"github.com/retailpulse/backend/internal/domain/source"
	"github.com/retailpulse/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSourceRepository implements source.SourceRepository using GORM
type GormSourceRepository struct {
	db *gorm.DB
}

// NewGormSourceRepository creates a new GormSourceRepository
func NewGormSourceRepository(db *gorm.DB) *GormSourceRepository {
	return &GormSourceRepository{db: db}
}

func (r *GormSourceRepository) findOne(ctx context.Context, query string, arg any) (*source.LinkedSource, error) {
	var model models.LinkedSourceModel
	err := r.db.WithContext(ctx).Where(query, arg).Order("updated_at DESC").First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByUserID returns the user's linked source
func (r *GormSourceRepository) FindByUserID(ctx context.Context, userID string) (*source.LinkedSource, error) {
	return r.findOne(ctx, "user_id = ?", userID)
}

// FindByID returns the source with id
func (r *GormSourceRepository) FindByID(ctx context.Context, id uuid.UUID) (*source.LinkedSource, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindBySheetID returns the most recently linked source for a spreadsheet
func (r *GormSourceRepository) FindBySheetID(ctx context.Context, sheetID string) (*source.LinkedSource, error) {
	return r.findOne(ctx, "sheet_id = ?", sheetID)
}

// Replace swaps the user's source for src in one transaction
func (r *GormSourceRepository) Replace(ctx context.Context, src *source.LinkedSource) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := deleteUserSource(tx, src.UserID); err != nil && !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		return tx.Create(models.LinkedSourceModelFromDomain(src)).Error
	})
}

// DeleteByUserID removes the user's source and its subscription
func (r *GormSourceRepository) DeleteByUserID(ctx context.Context, userID string) (*source.LinkedSource, error) {
	var removed *source.LinkedSource
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		removed, err = deleteUserSource(tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func deleteUserSource(tx *gorm.DB, userID string) (*source.LinkedSource, error) {
	var model models.LinkedSourceModel
	if err := tx.Where("user_id = ?", userID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if err := tx.Where("source_id = ?", model.ID).Delete(&models.WatchSubscriptionModel{}).Error; err != nil {
		return nil, err
	}
	if err := tx.Delete(&models.LinkedSourceModel{}, "id = ?", model.ID).Error; err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// GormSubscriptionRepository implements source.SubscriptionRepository using GORM
type GormSubscriptionRepository struct {
	db *gorm.DB
}

// NewGormSubscriptionRepository creates a new GormSubscriptionRepository
func NewGormSubscriptionRepository(db *gorm.DB) *GormSubscriptionRepository {
	return &GormSubscriptionRepository{db: db}
}

func (r *GormSubscriptionRepository) findOne(ctx context.Context, query string, arg any) (*source.WatchSubscription, error) {
	var model models.WatchSubscriptionModel
	if err := r.db.WithContext(ctx).Where(query, arg).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByChannelID resolves a webhook channel to its subscription
func (r *GormSubscriptionRepository) FindByChannelID(ctx context.Context, channelID string) (*source.WatchSubscription, error) {
	return r.findOne(ctx, "channel_id = ?", channelID)
}

// FindBySourceID returns the subscription kept on a source
func (r *GormSubscriptionRepository) FindBySourceID(ctx context.Context, sourceID uuid.UUID) (*source.WatchSubscription, error) {
	return r.findOne(ctx, "source_id = ?", sourceID)
}

// FindExpiringBefore lists subscriptions lapsing at or before t, soonest first
func (r *GormSubscriptionRepository) FindExpiringBefore(ctx context.Context, t time.Time) ([]source.WatchSubscription, error) {
	var rows []models.WatchSubscriptionModel
	if err := r.db.WithContext(ctx).Where("expiration <= ?", t).Order("expiration ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	subs := make([]source.WatchSubscription, 0, len(rows))
	for i := range rows {
		subs = append(subs, *rows[i].ToDomain())
	}
	return subs, nil
}

// Upsert stores sub as the single subscription of its source. The write
// only happens while the source row exists.
func (r *GormSubscriptionRepository) Upsert(ctx context.Context, sub *source.WatchSubscription) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.LinkedSourceModel{}).
			Where("id = ?", sub.SourceID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return shared.ErrNotFound
		}

		model := models.WatchSubscriptionModelFromDomain(sub)
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"channel_id", "resource_id", "expiration", "updated_at"}),
		}).Create(model).Error
		if err != nil {
			return err
		}

		var stored models.WatchSubscriptionModel
		if err := tx.Where("source_id = ?", sub.SourceID).First(&stored).Error; err != nil {
			return err
		}
		sub.ID = stored.ID
		sub.CreatedAt = stored.CreatedAt
		return nil
	})
}

// DeleteBySourceID removes the subscription kept on a source
func (r *GormSubscriptionRepository) DeleteBySourceID(ctx context.Context, sourceID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("source_id = ?", sourceID).Delete(&models.WatchSubscriptionModel{}).Error
}

var (
	_ source.SourceRepository       = (*GormSourceRepository)(nil)
	_ source.SubscriptionRepository = (*GormSubscriptionRepository)(nil)
)
