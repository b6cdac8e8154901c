package memory

import (
	"context"
	"sort"
	"time"

	"github.com/mx-space/notes/internal/models"
	"github.com/mx-space/notes/internal/store"
)

func (s *Store) CreateRefreshToken(ctx context.Context, t *models.RefreshToken) error {
	defer s.lock()()
	for _, existing := range s.st.tokens {
		if existing.TokenHash == t.TokenHash {
			return store.ErrDuplicate
		}
	}
	stamp(&t.Base, time.Now())
	s.st.tokens[t.ID] = *t
	return nil
}

func (s *Store) GetRefreshToken(ctx context.Context, id string) (*models.RefreshToken, error) {
	defer s.lock()()
	if t, ok := s.st.tokens[id]; ok {
		return &t, nil
	}
	return nil, nil
}

func (s *Store) GetRefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	defer s.lock()()
	for _, t := range s.st.tokens {
		if t.TokenHash == hash {
			return ptr(t), nil
		}
	}
	return nil, nil
}

func (s *Store) RevokeRefreshToken(ctx context.Context, id, reason string, replacedBy *string, at time.Time) (bool, error) {
	defer s.lock()()
	t, ok := s.st.tokens[id]
	if !ok || t.Revoked {
		return false, nil
	}
	revoke(&t, reason, at)
	t.ReplacedByID = replacedBy
	s.st.tokens[id] = t
	return true, nil
}

func (s *Store) RevokeUserRefreshTokens(ctx context.Context, userID, reason string, at time.Time) (int64, error) {
	defer s.lock()()
	var n int64
	for id, t := range s.st.tokens {
		if t.UserID == userID && !t.Revoked {
			revoke(&t, reason, at)
			s.st.tokens[id] = t
			n++
		}
	}
	return n, nil
}

func (s *Store) ListActiveRefreshTokens(ctx context.Context, userID string, now time.Time) ([]models.RefreshToken, error) {
	defer s.lock()()
	out := make([]models.RefreshToken, 0)
	for _, t := range s.st.tokens {
		if t.UserID == userID && t.Valid(now) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DeleteRefreshTokens(ctx context.Context, p store.TokenPurge) (int64, error) {
	defer s.lock()()
	var n int64
	for id, t := range s.st.tokens {
		if purgeable(t, p) {
			delete(s.st.tokens, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) RefreshTokenStats(ctx context.Context, now time.Time) (store.TokenStats, error) {
	defer s.lock()()
	var stats store.TokenStats
	for _, t := range s.st.tokens {
		stats.Total++
		switch {
		case t.Revoked:
			stats.Revoked++
		case t.Expired(now):
			stats.Expired++
		default:
			stats.Active++
		}
	}
	return stats, nil
}

func revoke(t *models.RefreshToken, reason string, at time.Time) {
	t.Revoked = true
	t.RevokedAt = &at
	t.RevokedReason = reason
	t.UpdatedAt = at
}

func purgeable(t models.RefreshToken, p store.TokenPurge) bool {
	if !p.ExpiredBefore.IsZero() && t.ExpiresAt.Before(p.ExpiredBefore) {
		return true
	}
	if !p.RevokedBefore.IsZero() && t.Revoked && t.RevokedAt != nil && t.RevokedAt.Before(p.RevokedBefore) {
		return true
	}
	return !p.CreatedBefore.IsZero() && t.CreatedAt.Before(p.CreatedBefore)
}
