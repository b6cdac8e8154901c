package memory

import (
	"context"
	"time"

	"github.com/mx-space/notes/internal/models"
	"github.com/mx-space/notes/internal/store"
)

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	defer s.lock()()
	for _, existing := range s.st.users {
		if existing.Email == u.Email {
			return store.ErrDuplicate
		}
	}
	stamp(&u.Base, time.Now())
	s.st.users[u.ID] = *u
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	defer s.lock()()
	if u, ok := s.st.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	defer s.lock()()
	for _, u := range s.st.users {
		if u.Email == email {
			return ptr(u), nil
		}
	}
	return nil, nil
}

func (s *Store) ExistsUserByEmail(ctx context.Context, email string) (bool, error) {
	u, err := s.GetUserByEmail(ctx, email)
	return u != nil, err
}

func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	defer s.lock()()
	out := make(map[string]*models.User, len(ids))
	for _, id := range ids {
		if u, ok := s.st.users[id]; ok {
			out[id] = ptr(u)
		}
	}
	return out, nil
}

func (s *Store) TouchUserLogin(ctx context.Context, id string, at time.Time) error {
	defer s.lock()()
	u, ok := s.st.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.LastLoginAt = &at
	u.UpdatedAt = at
	s.st.users[id] = u
	return nil
}

// LockUser is a no-op: WithTx already excludes every other transaction.
func (s *Store) LockUser(ctx context.Context, id string) error { return nil }
