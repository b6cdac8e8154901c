package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/mx-space/notes/internal/models"
	"github.com/mx-space/notes/internal/store"
)

func (s *Store) GetOrCreateTag(ctx context.Context, label string) (*models.Tag, error) {
	defer s.lock()()
	for _, t := range s.st.tags {
		if t.Label == label {
			return ptr(t), nil
		}
	}
	t := models.Tag{Label: label}
	stamp(&t.Base, time.Now())
	s.st.tags[t.ID] = t
	return &t, nil
}

func (s *Store) ListNoteTags(ctx context.Context, noteID string) ([]models.Tag, error) {
	defer s.lock()()
	return s.st.noteTagList(noteID), nil
}

func (s *Store) ListTagsForNotes(ctx context.Context, noteIDs []string) (map[string][]models.Tag, error) {
	defer s.lock()()
	out := make(map[string][]models.Tag, len(noteIDs))
	for _, id := range noteIDs {
		if tags := s.st.noteTagList(id); len(tags) > 0 {
			out[id] = tags
		}
	}
	return out, nil
}

func (s *Store) SetNoteTags(ctx context.Context, noteID string, tagIDs []string) error {
	defer s.lock()()
	if _, ok := s.st.notes[noteID]; !ok {
		return store.ErrNotFound
	}
	for _, id := range tagIDs {
		if _, ok := s.st.tags[id]; !ok {
			return store.ErrNotFound
		}
	}
	s.st.setNoteTags(noteID, tagIDs)
	return nil
}

func (s *Store) ListTags(ctx context.Context, query string, limit int) ([]models.Tag, error) {
	defer s.lock()()
	needle := strings.ToLower(strings.TrimSpace(query))
	out := make([]models.Tag, 0)
	for _, t := range s.st.tags {
		if needle == "" || strings.Contains(strings.ToLower(t.Label), needle) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UsageCount != out[j].UsageCount {
			return out[i].UsageCount > out[j].UsageCount
		}
		return out[i].Label < out[j].Label
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) DeleteUnusedTags(ctx context.Context) (int64, error) {
	defer s.lock()()
	var n int64
	for id, t := range s.st.tags {
		if t.UsageCount <= 0 {
			delete(s.st.tags, id)
			n++
		}
	}
	return n, nil
}

func (st *state) noteTagList(noteID string) []models.Tag {
	out := make([]models.Tag, 0, len(st.noteTags[noteID]))
	for tagID := range st.noteTags[noteID] {
		if t, ok := st.tags[tagID]; ok {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// setNoteTags replaces the links of a note and moves usage counters by the difference.
func (st *state) setNoteTags(noteID string, tagIDs []string) {
	now := time.Now()
	current := st.noteTags[noteID]
	next := make(map[string]time.Time, len(tagIDs))
	for _, id := range tagIDs {
		if _, seen := next[id]; seen {
			continue
		}
		if created, ok := current[id]; ok {
			next[id] = created
			continue
		}
		next[id] = now
		if t, ok := st.tags[id]; ok {
			t.UsageCount++
			st.tags[id] = t
		}
	}
	for id := range current {
		if _, keep := next[id]; keep {
			continue
		}
		if t, ok := st.tags[id]; ok && t.UsageCount > 0 {
			t.UsageCount--
			st.tags[id] = t
		}
	}
	st.noteTags[noteID] = next
}
