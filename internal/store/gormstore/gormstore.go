// Package gormstore implements store.Store on GORM for MySQL and PostgreSQL.
package gormstore

import (
	"context"
	"errors"
	"fmt"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/mx-space/notes/internal/store"
	"gorm.io/gorm"
)

// Store wraps a *gorm.DB, either the pool or an open transaction.
type Store struct {
	db   *gorm.DB
	inTx bool
}

var _ store.Store = (*Store)(nil)

func New(db *gorm.DB) *Store { return &Store{db: db} }

// DB exposes the underlying handle for migrations and health checks.
func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) conn(ctx context.Context) *gorm.DB { return s.db.WithContext(ctx) }

// WithTx opens a transaction, or a savepoint when s is already inside one.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Store) error) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, inTx: true})
	})
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	if s.inTx {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// translate maps driver unique violations onto store.ErrDuplicate.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var myErr *mysqlDriver.MySQLError
	if errors.Is(err, gorm.ErrDuplicatedKey) || (errors.As(err, &myErr) && myErr.Number == 1062) {
		return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
	}
	return err
}

func first[T any](db *gorm.DB, query string, args ...any) (*T, error) {
	var v T
	if err := db.Where(query, args...).First(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}

func count(db *gorm.DB, model any, query string, args ...any) (int64, error) {
	var n int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	return n, q.Count(&n).Error
}

func likePattern(s string) string {
	return "%" + s + "%"
}
