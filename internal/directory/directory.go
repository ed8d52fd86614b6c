package directory

import (
	"context"
	"errors"
	"strings"

	"github.com/parley-chat/parley/internal/apperr"
	"github.com/parley-chat/parley/internal/entity"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Directory maps a room slug to its record and governs creation. A room's
// password digest never changes after Create.
type Directory interface {
	Exists(ctx context.Context, slug string) (bool, *apperr.AppError)
	Read(ctx context.Context, slug string) (*entity.Room, *apperr.AppError)
	Create(ctx context.Context, slug, passwordDigest string) *apperr.AppError
}

// NormalizeSlug lowercases and strips every character outside [a-z0-9-].
// Idempotent: normalizing an already-normal slug is a no-op.
func NormalizeSlug(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

type GormDirectory struct {
	DB *gorm.DB
}

func NewDirectory(db *gorm.DB) Directory {
	return &GormDirectory{DB: db}
}

func (d *GormDirectory) Exists(ctx context.Context, slug string) (bool, *apperr.AppError) {
	var count int64
	if err := d.DB.WithContext(ctx).Model(&entity.Room{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		log.Error().Err(err).Str("slug", slug).Msg("directory: exists query failed")
		return false, apperr.Transient("failed to query room")
	}
	return count > 0, nil
}

func (d *GormDirectory) Read(ctx context.Context, slug string) (*entity.Room, *apperr.AppError) {
	var room entity.Room
	if err := d.DB.WithContext(ctx).Where("slug = ?", slug).First(&room).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("room not found")
		}
		log.Error().Err(err).Str("slug", slug).Msg("directory: read failed")
		return nil, apperr.Transient("failed to fetch room")
	}
	return &room, nil
}

func (d *GormDirectory) Create(ctx context.Context, slug, passwordDigest string) *apperr.AppError {
	room := entity.Room{Slug: slug, PasswordDigest: passwordDigest}
	// Conditional insert: a concurrent create of the same slug must surface
	// as a conflict, never overwrite the stored digest.
	res := d.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&room)
	if res.Error != nil {
		log.Error().Err(res.Error).Str("slug", slug).Msg("directory: create failed")
		return apperr.Transient("failed to create room")
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict("slug", "room already exists")
	}
	return nil
}
