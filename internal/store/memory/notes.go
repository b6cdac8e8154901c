package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/mx-space/notes/internal/models"
	"github.com/mx-space/notes/internal/pkg/pagination"
	"github.com/mx-space/notes/internal/store"
)

func (s *Store) CreateNote(ctx context.Context, n *models.Note) error {
	defer s.lock()()
	stamp(&n.Base, time.Now())
	s.st.notes[n.ID] = *n
	return nil
}

func (s *Store) GetNote(ctx context.Context, id string) (*models.Note, error) {
	defer s.lock()()
	if n, ok := s.st.notes[id]; ok {
		return &n, nil
	}
	return nil, nil
}

// LockNote reads the note; WithTx already excludes every other transaction.
func (s *Store) LockNote(ctx context.Context, id string) (*models.Note, error) {
	return s.GetNote(ctx, id)
}

func (s *Store) UpdateNote(ctx context.Context, n *models.Note) error {
	defer s.lock()()
	current, ok := s.st.notes[n.ID]
	if !ok {
		return store.ErrNotFound
	}
	current.Title = n.Title
	current.ContentMD = n.ContentMD
	current.Visibility = n.Visibility
	current.Favorite = n.Favorite
	current.UpdatedAt = time.Now()
	s.st.notes[n.ID] = current
	*n = current
	return nil
}

func (s *Store) DeleteNote(ctx context.Context, id string) (bool, error) {
	defer s.lock()()
	if _, ok := s.st.notes[id]; !ok {
		return false, nil
	}
	delete(s.st.notes, id)
	for sid, sh := range s.st.shares {
		if sh.NoteID == id {
			delete(s.st.shares, sid)
		}
	}
	for lid, l := range s.st.links {
		if l.NoteID == id {
			delete(s.st.links, lid)
		}
	}
	s.st.setNoteTags(id, nil)
	delete(s.st.noteTags, id)
	return true, nil
}

func (s *Store) IncrementNoteViews(ctx context.Context, id string) (int64, error) {
	defer s.lock()()
	n, ok := s.st.notes[id]
	if !ok {
		return 0, store.ErrNotFound
	}
	n.ViewCount++
	s.st.notes[id] = n
	return n.ViewCount, nil
}

func (s *Store) ListNotes(ctx context.Context, f store.NoteFilter, q pagination.Query) ([]models.Note, int64, error) {
	defer s.lock()()
	matched := make([]models.Note, 0)
	for _, n := range s.st.notes {
		if s.st.matchNote(n, f) {
			matched = append(matched, n)
		}
	}
	sortNotes(matched)
	start, end := pagination.Window(q, len(matched))
	return matched[start:end], int64(len(matched)), nil
}

func (st *state) matchNote(n models.Note, f store.NoteFilter) bool {
	switch {
	case f.AccessibleBy != "":
		if n.OwnerID != f.AccessibleBy && n.Visibility != models.VisibilityPublic && !st.sharedWith(n.ID, f.AccessibleBy, f.Now) {
			return false
		}
	case f.OwnerID != "":
		if n.OwnerID != f.OwnerID {
			return false
		}
	}
	if f.SharedWith != "" && !st.sharedWith(n.ID, f.SharedWith, f.Now) {
		return false
	}
	if f.Visibility != "" && n.Visibility != f.Visibility {
		return false
	}
	if f.Favorite && !n.Favorite {
		return false
	}
	if f.Query != "" {
		needle := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(n.Title), needle) && !strings.Contains(strings.ToLower(n.ContentMD), needle) {
			return false
		}
	}
	if f.TagLabel != "" && !st.hasTagLabel(n.ID, f.TagLabel) {
		return false
	}
	return true
}

func (st *state) sharedWith(noteID, userID string, now time.Time) bool {
	for _, sh := range st.shares {
		if sh.NoteID == noteID && sh.SharedWithID == userID && sh.Usable(now) {
			return true
		}
	}
	return false
}

func (st *state) hasTagLabel(noteID, label string) bool {
	for tagID := range st.noteTags[noteID] {
		if t, ok := st.tags[tagID]; ok && t.Label == label {
			return true
		}
	}
	return false
}

func sortNotes(notes []models.Note) {
	sort.Slice(notes, func(i, j int) bool {
		if !notes[i].UpdatedAt.Equal(notes[j].UpdatedAt) {
			return notes[i].UpdatedAt.After(notes[j].UpdatedAt)
		}
		return notes[i].ID > notes[j].ID
	})
}
