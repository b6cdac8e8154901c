package gormstore

import (
	"context"
	"time"

	"github.com/mx-space/notes/internal/models"
	"github.com/mx-space/notes/internal/pkg/pagination"
	"github.com/mx-space/notes/internal/store"
)

func (s *Store) CreateShare(ctx context.Context, sh *models.Share) error {
	return translate(s.conn(ctx).Create(sh).Error)
}

func (s *Store) GetShare(ctx context.Context, id string) (*models.Share, error) {
	return first[models.Share](s.conn(ctx), "id = ?", id)
}

func (s *Store) FindActiveShare(ctx context.Context, noteID, userID string) (*models.Share, error) {
	return first[models.Share](s.conn(ctx).Order("created_at DESC"),
		"note_id = ? AND shared_with_id = ? AND active = ?", noteID, userID, true)
}

func (s *Store) ListSharesByNote(ctx context.Context, noteID string) ([]models.Share, error) {
	shares := make([]models.Share, 0)
	err := s.conn(ctx).Where("note_id = ?", noteID).Order("created_at DESC, id DESC").Find(&shares).Error
	return shares, err
}

func (s *Store) ListSharesReceived(ctx context.Context, userID string, now time.Time, q pagination.Query) ([]models.Share, int64, error) {
	tx := s.conn(ctx).Model(&models.Share{}).
		Where("shared_with_id = ? AND active = ? AND (expires_at IS NULL OR expires_at > ?)", userID, true, now).
		Order("created_at DESC, id DESC")
	var shares []models.Share
	total, err := pagination.Paginate(tx, q, &shares)
	return shares, total, err
}

func (s *Store) UpdateShare(ctx context.Context, sh *models.Share) error {
	db := s.conn(ctx)
	if err := db.Model(&models.Share{}).Where("id = ?", sh.ID).Updates(map[string]any{
		"permission": sh.Permission,
		"expires_at": sh.ExpiresAt,
		"updated_at": time.Now(),
	}).Error; err != nil {
		return err
	}
	current, err := first[models.Share](db, "id = ?", sh.ID)
	if err != nil {
		return err
	}
	if current == nil {
		return store.ErrNotFound
	}
	*sh = *current
	return nil
}

func (s *Store) DeactivateShare(ctx context.Context, id string, at time.Time) (bool, error) {
	res := s.conn(ctx).Model(&models.Share{}).Where("id = ? AND active = ?", id, true).
		Updates(map[string]any{"active": false, "revoked_at": at, "updated_at": at})
	return res.RowsAffected > 0, res.Error
}

func (s *Store) DeactivateNoteShares(ctx context.Context, noteID string, at time.Time) (int64, error) {
	res := s.conn(ctx).Model(&models.Share{}).Where("note_id = ? AND active = ?", noteID, true).
		Updates(map[string]any{"active": false, "revoked_at": at, "updated_at": at})
	return res.RowsAffected, res.Error
}

func (s *Store) DeleteShare(ctx context.Context, id string) (bool, error) {
	res := s.conn(ctx).Where("id = ?", id).Delete(&models.Share{})
	return res.RowsAffected > 0, res.Error
}

func (s *Store) DeleteSharesExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.conn(ctx).Where("expires_at IS NOT NULL AND expires_at < ?", cutoff).Delete(&models.Share{})
	return res.RowsAffected, res.Error
}
