package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/retailpulse/backend/internal/domain/shared"
)

// RowMeta is embedded by every table row. Column names match the
// migrations in /migrations.
type RowMeta struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (m RowMeta) entity() shared.BaseEntity {
	return shared.BaseEntity{ID: m.ID, CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()}
}

func rowMeta(e shared.BaseEntity) RowMeta {
	return RowMeta{ID: e.ID, CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt}
}
