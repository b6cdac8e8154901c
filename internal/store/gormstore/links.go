package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/mx-space/notes/internal/models"
	"github.com/mx-space/notes/internal/store"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *Store) CreatePublicLink(ctx context.Context, l *models.PublicLink) error {
	return translate(s.conn(ctx).Create(l).Error)
}

func (s *Store) GetPublicLink(ctx context.Context, id string) (*models.PublicLink, error) {
	return first[models.PublicLink](s.conn(ctx), "id = ?", id)
}

func (s *Store) GetPublicLinkByToken(ctx context.Context, token string) (*models.PublicLink, error) {
	return first[models.PublicLink](s.conn(ctx), "token = ?", token)
}

func (s *Store) ListPublicLinksByNote(ctx context.Context, noteID string) ([]models.PublicLink, error) {
	links := make([]models.PublicLink, 0)
	err := s.conn(ctx).Where("note_id = ?", noteID).Order("created_at DESC, id DESC").Find(&links).Error
	return links, err
}

func (s *Store) UpdatePublicLink(ctx context.Context, l *models.PublicLink) error {
	db := s.conn(ctx)
	if err := db.Model(&models.PublicLink{}).Where("id = ?", l.ID).Updates(map[string]any{
		"expires_at":       l.ExpiresAt,
		"max_access_count": l.MaxAccessCount,
		"active":           l.Active,
		"password_hash":    l.PasswordHash,
		"description":      l.Description,
		"updated_at":       time.Now(),
	}).Error; err != nil {
		return err
	}
	current, err := first[models.PublicLink](db, "id = ?", l.ID)
	if err != nil {
		return err
	}
	if current == nil {
		return store.ErrNotFound
	}
	*l = *current
	return nil
}

// ConsumePublicLink holds a row lock between the usability check and the
// counter increment so concurrent resolvers cannot overshoot max_access_count.
func (s *Store) ConsumePublicLink(ctx context.Context, id string, now time.Time) (*models.PublicLink, bool, error) {
	var (
		link     *models.PublicLink
		admitted bool
	)
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var l models.PublicLink
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&l).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		link = &l
		if l.State(now) != models.LinkUsable {
			return nil
		}
		if err := tx.Model(&models.PublicLink{}).Where("id = ?", id).UpdateColumns(map[string]any{
			"access_count":     gorm.Expr("access_count + 1"),
			"last_accessed_at": now,
		}).Error; err != nil {
			return err
		}
		l.AccessCount++
		l.LastAccessedAt = &now
		admitted = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return link, admitted, nil
}

func (s *Store) DeletePublicLink(ctx context.Context, id string) (bool, error) {
	res := s.conn(ctx).Where("id = ?", id).Delete(&models.PublicLink{})
	return res.RowsAffected > 0, res.Error
}

func (s *Store) DeletePublicLinksExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.conn(ctx).Where("expires_at IS NOT NULL AND expires_at < ?", cutoff).Delete(&models.PublicLink{})
	return res.RowsAffected, res.Error
}

const (
	linkNotExpired  = "(expires_at IS NULL OR expires_at > ?)"
	linkNotCapped   = "(max_access_count IS NULL OR access_count < max_access_count)"
	linkCapReached  = "max_access_count IS NOT NULL AND access_count >= max_access_count"
	linkExpiredCond = "expires_at IS NOT NULL AND expires_at <= ?"
)

func (s *Store) PublicLinkStats(ctx context.Context, now time.Time) (store.LinkStats, error) {
	db := s.conn(ctx)
	var (
		stats store.LinkStats
		err   error
	)
	if stats.Total, err = count(db, &models.PublicLink{}, ""); err != nil {
		return stats, err
	}
	if stats.Active, err = count(db, &models.PublicLink{},
		"active = ? AND "+linkNotExpired+" AND "+linkNotCapped, true, now); err != nil {
		return stats, err
	}
	if stats.Expired, err = count(db, &models.PublicLink{},
		"active = ? AND "+linkExpiredCond, true, now); err != nil {
		return stats, err
	}
	stats.Exhausted, err = count(db, &models.PublicLink{},
		"active = ? AND "+linkNotExpired+" AND "+linkCapReached, true, now)
	return stats, err
}
