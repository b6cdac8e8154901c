package gormstore

import (
	"context"
	"strings"
	"time"

	"github.com/mx-space/notes/internal/models"
	"github.com/mx-space/notes/internal/store"
)

func (s *Store) CreateRefreshToken(ctx context.Context, t *models.RefreshToken) error {
	return translate(s.conn(ctx).Create(t).Error)
}

func (s *Store) GetRefreshToken(ctx context.Context, id string) (*models.RefreshToken, error) {
	return first[models.RefreshToken](s.conn(ctx), "id = ?", id)
}

func (s *Store) GetRefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	return first[models.RefreshToken](s.conn(ctx), "token_hash = ?", hash)
}

// RevokeRefreshToken only matches unrevoked rows, so of two concurrent
// callers exactly one observes an affected row.
func (s *Store) RevokeRefreshToken(ctx context.Context, id, reason string, replacedBy *string, at time.Time) (bool, error) {
	res := s.conn(ctx).Model(&models.RefreshToken{}).Where("id = ? AND revoked = ?", id, false).
		Updates(map[string]any{
			"revoked":        true,
			"revoked_at":     at,
			"revoked_reason": reason,
			"replaced_by_id": replacedBy,
			"updated_at":     at,
		})
	return res.RowsAffected > 0, res.Error
}

func (s *Store) RevokeUserRefreshTokens(ctx context.Context, userID, reason string, at time.Time) (int64, error) {
	res := s.conn(ctx).Model(&models.RefreshToken{}).Where("user_id = ? AND revoked = ?", userID, false).
		Updates(map[string]any{
			"revoked":        true,
			"revoked_at":     at,
			"revoked_reason": reason,
			"updated_at":     at,
		})
	return res.RowsAffected, res.Error
}

func (s *Store) ListActiveRefreshTokens(ctx context.Context, userID string, now time.Time) ([]models.RefreshToken, error) {
	tokens := make([]models.RefreshToken, 0)
	err := s.conn(ctx).Where("user_id = ? AND revoked = ? AND expires_at > ?", userID, false, now).
		Order("created_at DESC").Find(&tokens).Error
	return tokens, err
}

func (s *Store) DeleteRefreshTokens(ctx context.Context, p store.TokenPurge) (int64, error) {
	var (
		conds []string
		args  []any
	)
	if !p.ExpiredBefore.IsZero() {
		conds = append(conds, "expires_at < ?")
		args = append(args, p.ExpiredBefore)
	}
	if !p.RevokedBefore.IsZero() {
		conds = append(conds, "(revoked = ? AND revoked_at < ?)")
		args = append(args, true, p.RevokedBefore)
	}
	if !p.CreatedBefore.IsZero() {
		conds = append(conds, "created_at < ?")
		args = append(args, p.CreatedBefore)
	}
	if len(conds) == 0 {
		return 0, nil
	}
	res := s.conn(ctx).Where(strings.Join(conds, " OR "), args...).Delete(&models.RefreshToken{})
	return res.RowsAffected, res.Error
}

func (s *Store) RefreshTokenStats(ctx context.Context, now time.Time) (store.TokenStats, error) {
	db := s.conn(ctx)
	var (
		stats store.TokenStats
		err   error
	)
	if stats.Total, err = count(db, &models.RefreshToken{}, ""); err != nil {
		return stats, err
	}
	if stats.Revoked, err = count(db, &models.RefreshToken{}, "revoked = ?", true); err != nil {
		return stats, err
	}
	if stats.Expired, err = count(db, &models.RefreshToken{}, "revoked = ? AND expires_at <= ?", false, now); err != nil {
		return stats, err
	}
	stats.Active, err = count(db, &models.RefreshToken{}, "revoked = ? AND expires_at > ?", false, now)
	return stats, err
}
