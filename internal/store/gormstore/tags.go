package gormstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/mx-space/notes/internal/models"
	"github.com/mx-space/notes/internal/store"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *Store) GetOrCreateTag(ctx context.Context, label string) (*models.Tag, error) {
	db := s.conn(ctx)
	existing, err := first[models.Tag](db, "label = ?", label)
	if err != nil || existing != nil {
		return existing, err
	}
	t := &models.Tag{Label: label}
	// Savepoint, so a unique violation leaves the caller's transaction usable.
	err = db.Transaction(func(tx *gorm.DB) error { return tx.Create(t).Error })
	if err := translate(err); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// Lost the insert race; the winner's row is the tag. A locking
			// read sees it even under a REPEATABLE READ snapshot.
			return first[models.Tag](db.Clauses(clause.Locking{Strength: "SHARE"}), "label = ?", label)
		}
		return nil, err
	}
	return t, nil
}

func (s *Store) ListNoteTags(ctx context.Context, noteID string) ([]models.Tag, error) {
	tags := make([]models.Tag, 0)
	err := s.conn(ctx).
		Joins("JOIN note_tags ON note_tags.tag_id = tags.id").
		Where("note_tags.note_id = ?", noteID).
		Order("tags.label ASC").
		Find(&tags).Error
	return tags, err
}

func (s *Store) ListTagsForNotes(ctx context.Context, noteIDs []string) (map[string][]models.Tag, error) {
	out := make(map[string][]models.Tag, len(noteIDs))
	if len(noteIDs) == 0 {
		return out, nil
	}
	db := s.conn(ctx)
	var links []models.NoteTag
	if err := db.Where("note_id IN ?", noteIDs).Find(&links).Error; err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return out, nil
	}
	tagIDs := make([]string, 0, len(links))
	for _, l := range links {
		tagIDs = append(tagIDs, l.TagID)
	}
	var tags []models.Tag
	if err := db.Where("id IN ?", tagIDs).Find(&tags).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]models.Tag, len(tags))
	for _, t := range tags {
		byID[t.ID] = t
	}
	for _, l := range links {
		if t, ok := byID[l.TagID]; ok {
			out[l.NoteID] = append(out[l.NoteID], t)
		}
	}
	for id := range out {
		sortByLabel(out[id])
	}
	return out, nil
}

func (s *Store) SetNoteTags(ctx context.Context, noteID string, tagIDs []string) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		note, err := first[models.Note](tx, "id = ?", noteID)
		if err != nil {
			return err
		}
		if note == nil {
			return store.ErrNotFound
		}
		wanted := dedupe(tagIDs)
		if len(wanted) > 0 {
			n, err := count(tx, &models.Tag{}, "id IN ?", wanted)
			if err != nil {
				return err
			}
			if n != int64(len(wanted)) {
				return store.ErrNotFound
			}
		}
		return replaceNoteTags(tx, noteID, wanted)
	})
}

// replaceNoteTags rewrites the note's tag links and moves usage counters by the difference.
func replaceNoteTags(tx *gorm.DB, noteID string, wanted []string) error {
	var current []string
	if err := tx.Model(&models.NoteTag{}).Where("note_id = ?", noteID).Pluck("tag_id", &current).Error; err != nil {
		return err
	}
	keep := make(map[string]bool, len(wanted))
	for _, id := range wanted {
		keep[id] = true
	}
	have := make(map[string]bool, len(current))
	var removed []string
	for _, id := range current {
		have[id] = true
		if !keep[id] {
			removed = append(removed, id)
		}
	}
	var added []models.NoteTag
	var addedIDs []string
	now := time.Now()
	for _, id := range wanted {
		if !have[id] {
			added = append(added, models.NoteTag{NoteID: noteID, TagID: id, CreatedAt: now})
			addedIDs = append(addedIDs, id)
		}
	}

	if len(removed) > 0 {
		if err := tx.Where("note_id = ? AND tag_id IN ?", noteID, removed).Delete(&models.NoteTag{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Tag{}).Where("id IN ? AND usage_count > 0", removed).
			UpdateColumn("usage_count", gorm.Expr("usage_count - 1")).Error; err != nil {
			return err
		}
	}
	if len(added) > 0 {
		if err := tx.Create(&added).Error; err != nil {
			return translate(err)
		}
		if err := tx.Model(&models.Tag{}).Where("id IN ?", addedIDs).
			UpdateColumn("usage_count", gorm.Expr("usage_count + 1")).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ListTags(ctx context.Context, query string, limit int) ([]models.Tag, error) {
	tx := s.conn(ctx).Order("usage_count DESC, label ASC")
	if needle := strings.ToLower(strings.TrimSpace(query)); needle != "" {
		tx = tx.Where("LOWER(label) LIKE ?", likePattern(needle))
	}
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	tags := make([]models.Tag, 0)
	return tags, tx.Find(&tags).Error
}

func (s *Store) DeleteUnusedTags(ctx context.Context) (int64, error) {
	res := s.conn(ctx).Where("usage_count <= 0").Delete(&models.Tag{})
	return res.RowsAffected, res.Error
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func sortByLabel(tags []models.Tag) {
	sort.Slice(tags, func(i, j int) bool { return tags[i].Label < tags[j].Label })
}
