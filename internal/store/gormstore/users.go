package gormstore

import (
	"context"
	"time"

	"github.com/mx-space/notes/internal/models"
	"github.com/mx-space/notes/internal/store"
	"gorm.io/gorm/clause"
)

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	return translate(s.conn(ctx).Create(u).Error)
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	return first[models.User](s.conn(ctx), "id = ?", id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return first[models.User](s.conn(ctx), "email = ?", email)
}

func (s *Store) ExistsUserByEmail(ctx context.Context, email string) (bool, error) {
	n, err := count(s.conn(ctx), &models.User{}, "email = ?", email)
	return n > 0, err
}

func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	out := make(map[string]*models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []models.User
	if err := s.conn(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for i := range users {
		out[users[i].ID] = &users[i]
	}
	return out, nil
}

func (s *Store) TouchUserLogin(ctx context.Context, id string, at time.Time) error {
	res := s.conn(ctx).Model(&models.User{}).Where("id = ?", id).
		UpdateColumns(map[string]any{"last_login_at": at, "updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) LockUser(ctx context.Context, id string) error {
	var ids []string
	return s.conn(ctx).Model(&models.User{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Pluck("id", &ids).Error
}
