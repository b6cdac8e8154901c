// Package tag resolves free-form labels to shared tag rows.
package tag

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mx-space/notes/internal/models"
	"github.com/mx-space/notes/internal/pkg/apperr"
	"github.com/mx-space/notes/internal/store"
	"go.uber.org/zap"
)

const (
	MaxLabelLength = 50
	MaxPerNote     = 20
	DefaultLimit   = 50
	MaxLimit       = 200
)

var (
	ErrLabelTooLong = apperr.Validation("tag_too_long", fmt.Sprintf("tags must be at most %d characters", MaxLabelLength))
	ErrTooManyTags  = apperr.Validation("too_many_tags", fmt.Sprintf("a note can carry at most %d tags", MaxPerNote))
)

type Service struct {
	store  store.Store
	logger *zap.Logger
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l.Named("TagService") }
}

func NewService(s store.Store, opts ...Option) *Service {
	svc := &Service{store: s, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Normalize trims and dedupes labels, dropping empty ones. Order is kept.
func Normalize(labels []string) ([]string, error) {
	out := make([]string, 0, len(labels))
	seen := make(map[string]struct{}, len(labels))
	for _, raw := range labels {
		label := strings.Join(strings.Fields(raw), " ")
		if label == "" {
			continue
		}
		if utf8.RuneCountInString(label) > MaxLabelLength {
			return nil, ErrLabelTooLong
		}
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	if len(out) > MaxPerNote {
		return nil, ErrTooManyTags
	}
	return out, nil
}

// Resolve returns the tag for every label, creating missing ones. It uses
// the store it is given so callers can run it inside their transaction.
func Resolve(ctx context.Context, s store.Tags, labels []string) ([]models.Tag, error) {
	labels, err := Normalize(labels)
	if err != nil {
		return nil, err
	}
	tags := make([]models.Tag, 0, len(labels))
	for _, label := range labels {
		t, err := s.GetOrCreateTag(ctx, label)
		if err != nil {
			return nil, fmt.Errorf("resolve tag %q: %w", label, err)
		}
		tags = append(tags, *t)
	}
	return tags, nil
}

func (s *Service) Resolve(ctx context.Context, labels []string) ([]models.Tag, error) {
	tags, err := Resolve(ctx, s.store, labels)
	if err != nil {
		return nil, wrap("resolve tags", err)
	}
	return tags, nil
}

// List returns tags matching query, most used first.
func (s *Service) List(ctx context.Context, query string, limit int) ([]models.Tag, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	tags, err := s.store.ListTags(ctx, strings.TrimSpace(query), limit)
	if err != nil {
		return nil, apperr.Internal("list tags", err)
	}
	return tags, nil
}

// Prune deletes tags no note uses.
func (s *Service) Prune(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteUnusedTags(ctx)
	if err != nil {
		return 0, apperr.Internal("prune tags", err)
	}
	if n > 0 {
		s.logger.Info("pruned unused tags", zap.Int64("count", n))
	}
	return n, nil
}

// IDs returns the ids of tags in order.
func IDs(tags []models.Tag) []string {
	ids := make([]string, len(tags))
	for i, t := range tags {
		ids[i] = t.ID
	}
	return ids
}

// Labels returns the labels of tags in order.
func Labels(tags []models.Tag) []string {
	labels := make([]string, len(tags))
	for i, t := range tags {
		labels[i] = t.Label
	}
	return labels
}

func wrap(op string, err error) error {
	if apperr.KindOf(err) != apperr.KindInternal {
		return err
	}
	return apperr.Internal(op, err)
}
