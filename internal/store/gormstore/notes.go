package gormstore

import (
	"context"
	"strings"
	"time"

	"github.com/mx-space/notes/internal/models"
	"github.com/mx-space/notes/internal/pkg/pagination"
	"github.com/mx-space/notes/internal/store"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *Store) CreateNote(ctx context.Context, n *models.Note) error {
	return translate(s.conn(ctx).Create(n).Error)
}

func (s *Store) GetNote(ctx context.Context, id string) (*models.Note, error) {
	return first[models.Note](s.conn(ctx), "id = ?", id)
}

func (s *Store) LockNote(ctx context.Context, id string) (*models.Note, error) {
	return first[models.Note](s.conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), "id = ?", id)
}

func (s *Store) UpdateNote(ctx context.Context, n *models.Note) error {
	db := s.conn(ctx)
	if err := db.Model(&models.Note{}).Where("id = ?", n.ID).Updates(map[string]any{
		"title":      n.Title,
		"content_md": n.ContentMD,
		"visibility": n.Visibility,
		"favorite":   n.Favorite,
		"updated_at": time.Now(),
	}).Error; err != nil {
		return err
	}
	current, err := first[models.Note](db, "id = ?", n.ID)
	if err != nil {
		return err
	}
	if current == nil {
		return store.ErrNotFound
	}
	*n = *current
	return nil
}

func (s *Store) DeleteNote(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("note_id = ?", id).Delete(&models.Share{}).Error; err != nil {
			return err
		}
		if err := tx.Where("note_id = ?", id).Delete(&models.PublicLink{}).Error; err != nil {
			return err
		}
		if err := replaceNoteTags(tx, id, nil); err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Note{})
		deleted = res.RowsAffected > 0
		return res.Error
	})
	return deleted, err
}

func (s *Store) IncrementNoteViews(ctx context.Context, id string) (int64, error) {
	db := s.conn(ctx)
	res := db.Model(&models.Note{}).Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, store.ErrNotFound
	}
	var views int64
	err := db.Model(&models.Note{}).Where("id = ?", id).Select("view_count").Scan(&views).Error
	return views, err
}

func (s *Store) ListNotes(ctx context.Context, f store.NoteFilter, q pagination.Query) ([]models.Note, int64, error) {
	db := s.conn(ctx)
	tx := db.Model(&models.Note{}).Order("updated_at DESC, id DESC")

	switch {
	case f.AccessibleBy != "":
		tx = tx.Where("owner_id = ? OR visibility = ? OR id IN (?)",
			f.AccessibleBy, models.VisibilityPublic, usableShareNotes(db, f.AccessibleBy, f.Now))
	case f.OwnerID != "":
		tx = tx.Where("owner_id = ?", f.OwnerID)
	}
	if f.SharedWith != "" {
		tx = tx.Where("id IN (?)", usableShareNotes(db, f.SharedWith, f.Now))
	}
	if f.Visibility != "" {
		tx = tx.Where("visibility = ?", f.Visibility)
	}
	if f.Favorite {
		tx = tx.Where("favorite = ?", true)
	}
	if f.Query != "" {
		needle := likePattern(strings.ToLower(f.Query))
		tx = tx.Where("LOWER(title) LIKE ? OR LOWER(content_md) LIKE ?", needle, needle)
	}
	if f.TagLabel != "" {
		tx = tx.Where("id IN (?)", db.Table("note_tags").Select("note_tags.note_id").
			Joins("JOIN tags ON tags.id = note_tags.tag_id").
			Where("tags.label = ?", f.TagLabel))
	}

	var notes []models.Note
	total, err := pagination.Paginate(tx, q, &notes)
	return notes, total, err
}

func usableShareNotes(db *gorm.DB, userID string, now time.Time) *gorm.DB {
	return db.Model(&models.Share{}).Select("note_id").
		Where("shared_with_id = ? AND active = ? AND (expires_at IS NULL OR expires_at > ?)", userID, true, now)
}
