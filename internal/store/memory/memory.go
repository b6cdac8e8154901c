// Package memory is a process-local store.Store. Transactions are serialized
// and roll back by restoring a snapshot, so data never outlives the process.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/mx-space/notes/internal/models"
	"github.com/mx-space/notes/internal/store"
)

type state struct {
	// txMu is held exclusively by a running transaction and shared by
	// every standalone call.
	txMu sync.RWMutex
	mu   sync.Mutex

	users    map[string]models.User
	notes    map[string]models.Note
	shares   map[string]models.Share
	links    map[string]models.PublicLink
	tokens   map[string]models.RefreshToken
	tags     map[string]models.Tag
	noteTags map[string]map[string]time.Time
}

type snapshot struct {
	users    map[string]models.User
	notes    map[string]models.Note
	shares   map[string]models.Share
	links    map[string]models.PublicLink
	tokens   map[string]models.RefreshToken
	tags     map[string]models.Tag
	noteTags map[string]map[string]time.Time
}

// Store implements store.Store on maps guarded by a mutex.
type Store struct {
	st   *state
	inTx bool
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{st: &state{
		users:    make(map[string]models.User),
		notes:    make(map[string]models.Note),
		shares:   make(map[string]models.Share),
		links:    make(map[string]models.PublicLink),
		tokens:   make(map[string]models.RefreshToken),
		tags:     make(map[string]models.Tag),
		noteTags: make(map[string]map[string]time.Time),
	}}
}

func (s *Store) lock() func() {
	if !s.inTx {
		s.st.txMu.RLock()
	}
	s.st.mu.Lock()
	return func() {
		s.st.mu.Unlock()
		if !s.inTx {
			s.st.txMu.RUnlock()
		}
	}
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st.txMu.Lock()
	defer s.st.txMu.Unlock()

	s.st.mu.Lock()
	snap := s.st.snapshot()
	s.st.mu.Unlock()

	if err := fn(&Store{st: s.st, inTx: true}); err != nil {
		s.st.mu.Lock()
		s.st.restore(snap)
		s.st.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }

func (st *state) snapshot() snapshot {
	nt := make(map[string]map[string]time.Time, len(st.noteTags))
	for k, v := range st.noteTags {
		nt[k] = maps.Clone(v)
	}
	return snapshot{
		users:    maps.Clone(st.users),
		notes:    maps.Clone(st.notes),
		shares:   maps.Clone(st.shares),
		links:    maps.Clone(st.links),
		tokens:   maps.Clone(st.tokens),
		tags:     maps.Clone(st.tags),
		noteTags: nt,
	}
}

func (st *state) restore(snap snapshot) {
	st.users = snap.users
	st.notes = snap.notes
	st.shares = snap.shares
	st.links = snap.links
	st.tokens = snap.tokens
	st.tags = snap.tags
	st.noteTags = snap.noteTags
}

func stamp(b *models.Base, now time.Time) {
	b.EnsureID()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

func ptr[T any](v T) *T { return &v }
