package memory

import (
	"context"
	"sort"
	"time"

	"github.com/mx-space/notes/internal/models"
	"github.com/mx-space/notes/internal/store"
)

func (s *Store) CreatePublicLink(ctx context.Context, l *models.PublicLink) error {
	defer s.lock()()
	for _, existing := range s.st.links {
		if existing.Token == l.Token {
			return store.ErrDuplicate
		}
	}
	stamp(&l.Base, time.Now())
	s.st.links[l.ID] = *l
	return nil
}

func (s *Store) GetPublicLink(ctx context.Context, id string) (*models.PublicLink, error) {
	defer s.lock()()
	if l, ok := s.st.links[id]; ok {
		return &l, nil
	}
	return nil, nil
}

func (s *Store) GetPublicLinkByToken(ctx context.Context, token string) (*models.PublicLink, error) {
	defer s.lock()()
	for _, l := range s.st.links {
		if l.Token == token {
			return ptr(l), nil
		}
	}
	return nil, nil
}

func (s *Store) ListPublicLinksByNote(ctx context.Context, noteID string) ([]models.PublicLink, error) {
	defer s.lock()()
	out := make([]models.PublicLink, 0)
	for _, l := range s.st.links {
		if l.NoteID == noteID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) UpdatePublicLink(ctx context.Context, l *models.PublicLink) error {
	defer s.lock()()
	current, ok := s.st.links[l.ID]
	if !ok {
		return store.ErrNotFound
	}
	current.ExpiresAt = l.ExpiresAt
	current.MaxAccessCount = l.MaxAccessCount
	current.Active = l.Active
	current.PasswordHash = l.PasswordHash
	current.Description = l.Description
	current.UpdatedAt = time.Now()
	s.st.links[l.ID] = current
	*l = current
	return nil
}

func (s *Store) ConsumePublicLink(ctx context.Context, id string, now time.Time) (*models.PublicLink, bool, error) {
	defer s.lock()()
	l, ok := s.st.links[id]
	if !ok {
		return nil, false, nil
	}
	if l.State(now) != models.LinkUsable {
		return &l, false, nil
	}
	l.AccessCount++
	l.LastAccessedAt = &now
	s.st.links[id] = l
	return ptr(l), true, nil
}

func (s *Store) DeletePublicLink(ctx context.Context, id string) (bool, error) {
	defer s.lock()()
	if _, ok := s.st.links[id]; !ok {
		return false, nil
	}
	delete(s.st.links, id)
	return true, nil
}

func (s *Store) DeletePublicLinksExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	defer s.lock()()
	var n int64
	for id, l := range s.st.links {
		if l.ExpiresAt != nil && l.ExpiresAt.Before(cutoff) {
			delete(s.st.links, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) PublicLinkStats(ctx context.Context, now time.Time) (store.LinkStats, error) {
	defer s.lock()()
	var stats store.LinkStats
	for _, l := range s.st.links {
		stats.Total++
		switch l.State(now) {
		case models.LinkUsable:
			stats.Active++
		case models.LinkExpired:
			stats.Expired++
		case models.LinkExhausted:
			stats.Exhausted++
		}
	}
	return stats, nil
}
