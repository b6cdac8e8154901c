package memory

import (
	"context"
	"sort"
	"time"

	"github.com/mx-space/notes/internal/models"
	"github.com/mx-space/notes/internal/pkg/pagination"
	"github.com/mx-space/notes/internal/store"
)

func (s *Store) CreateShare(ctx context.Context, sh *models.Share) error {
	defer s.lock()()
	stamp(&sh.Base, time.Now())
	s.st.shares[sh.ID] = *sh
	return nil
}

func (s *Store) GetShare(ctx context.Context, id string) (*models.Share, error) {
	defer s.lock()()
	if sh, ok := s.st.shares[id]; ok {
		return &sh, nil
	}
	return nil, nil
}

func (s *Store) FindActiveShare(ctx context.Context, noteID, userID string) (*models.Share, error) {
	defer s.lock()()
	for _, sh := range s.st.shares {
		if sh.NoteID == noteID && sh.SharedWithID == userID && sh.Active {
			return ptr(sh), nil
		}
	}
	return nil, nil
}

func (s *Store) ListSharesByNote(ctx context.Context, noteID string) ([]models.Share, error) {
	defer s.lock()()
	out := make([]models.Share, 0)
	for _, sh := range s.st.shares {
		if sh.NoteID == noteID {
			out = append(out, sh)
		}
	}
	sortShares(out)
	return out, nil
}

func (s *Store) ListSharesReceived(ctx context.Context, userID string, now time.Time, q pagination.Query) ([]models.Share, int64, error) {
	defer s.lock()()
	out := make([]models.Share, 0)
	for _, sh := range s.st.shares {
		if sh.SharedWithID == userID && sh.Usable(now) {
			out = append(out, sh)
		}
	}
	sortShares(out)
	start, end := pagination.Window(q, len(out))
	return out[start:end], int64(len(out)), nil
}

func (s *Store) UpdateShare(ctx context.Context, sh *models.Share) error {
	defer s.lock()()
	current, ok := s.st.shares[sh.ID]
	if !ok {
		return store.ErrNotFound
	}
	current.Permission = sh.Permission
	current.ExpiresAt = sh.ExpiresAt
	current.UpdatedAt = time.Now()
	s.st.shares[sh.ID] = current
	*sh = current
	return nil
}

func (s *Store) DeactivateShare(ctx context.Context, id string, at time.Time) (bool, error) {
	defer s.lock()()
	sh, ok := s.st.shares[id]
	if !ok || !sh.Active {
		return false, nil
	}
	sh.Active = false
	sh.RevokedAt = &at
	sh.UpdatedAt = at
	s.st.shares[id] = sh
	return true, nil
}

func (s *Store) DeactivateNoteShares(ctx context.Context, noteID string, at time.Time) (int64, error) {
	defer s.lock()()
	var n int64
	for id, sh := range s.st.shares {
		if sh.NoteID == noteID && sh.Active {
			sh.Active = false
			sh.RevokedAt = &at
			sh.UpdatedAt = at
			s.st.shares[id] = sh
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteShare(ctx context.Context, id string) (bool, error) {
	defer s.lock()()
	if _, ok := s.st.shares[id]; !ok {
		return false, nil
	}
	delete(s.st.shares, id)
	return true, nil
}

func (s *Store) DeleteSharesExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	defer s.lock()()
	var n int64
	for id, sh := range s.st.shares {
		if sh.ExpiresAt != nil && sh.ExpiresAt.Before(cutoff) {
			delete(s.st.shares, id)
			n++
		}
	}
	return n, nil
}

func sortShares(shares []models.Share) {
	sort.Slice(shares, func(i, j int) bool {
		if !shares[i].CreatedAt.Equal(shares[j].CreatedAt) {
			return shares[i].CreatedAt.After(shares[j].CreatedAt)
		}
		return shares[i].ID > shares[j].ID
	})
}
