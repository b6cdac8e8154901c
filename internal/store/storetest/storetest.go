// Package storetest is a behavioural suite every store.Store implementation must pass.
package storetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mx-space/notes/internal/models"
	"github.com/mx-space/notes/internal/pkg/pagination"
	"github.com/mx-space/notes/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store for one subtest.
type Factory func(t *testing.T) store.Store

// Run executes the suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("Notes", func(t *testing.T) { testNotes(t, newStore(t)) })
	t.Run("NoteFilters", func(t *testing.T) { testNoteFilters(t, newStore(t)) })
	t.Run("DeleteNoteCascades", func(t *testing.T) { testDeleteNoteCascades(t, newStore(t)) })
	t.Run("Shares", func(t *testing.T) { testShares(t, newStore(t)) })
	t.Run("PublicLinks", func(t *testing.T) { testPublicLinks(t, newStore(t)) })
	t.Run("ConsumeIsAtomic", func(t *testing.T) { testConsumeIsAtomic(t, newStore(t)) })
	t.Run("RefreshTokens", func(t *testing.T) { testRefreshTokens(t, newStore(t)) })
	t.Run("RevokeIsAtomic", func(t *testing.T) { testRevokeIsAtomic(t, newStore(t)) })
	t.Run("LockUserSerializesChains", func(t *testing.T) { testLockUserSerializesChains(t, newStore(t)) })
	t.Run("LockNoteSerializesShares", func(t *testing.T) { testLockNoteSerializesShares(t, newStore(t)) })
	t.Run("Tags", func(t *testing.T) { testTags(t, newStore(t)) })
	t.Run("TagRaceInsideTx", func(t *testing.T) { testTagRaceInsideTx(t, newStore(t)) })
	t.Run("TxRollback", func(t *testing.T) { testTxRollback(t, newStore(t)) })
}

func mustUser(t *testing.T, s store.Store, email string) *models.User {
	t.Helper()
	u := &models.User{Email: email, PasswordHash: "x", Active: true}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func mustNote(t *testing.T, s store.Store, owner string, title string, vis models.Visibility) *models.Note {
	t.Helper()
	n := &models.Note{OwnerID: owner, Title: title, ContentMD: "body of " + title, Visibility: vis}
	require.NoError(t, s.CreateNote(context.Background(), n))
	return n
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "a@example.com")
	assert.NotEmpty(t, u.ID)

	err := s.CreateUser(ctx, &models.User{Email: "a@example.com", PasswordHash: "y", Active: true})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	got, err := s.GetUserByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)

	missing, err := s.GetUser(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, missing)

	exists, err := s.ExistsUserByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, exists)

	at := time.Now().Truncate(time.Second)
	require.NoError(t, s.TouchUserLogin(ctx, u.ID, at))
	got, err = s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastLoginAt)
	assert.WithinDuration(t, at, *got.LastLoginAt, time.Second)

	byID, err := s.GetUsersByIDs(ctx, []string{u.ID, uuid.NewString()})
	require.NoError(t, err)
	assert.Len(t, byID, 1)
}

func testNotes(t *testing.T, s store.Store) {
	ctx := context.Background()
	owner := mustUser(t, s, "owner@example.com")
	n := mustNote(t, s, owner.ID, "first", models.VisibilityPrivate)

	n.Title = "renamed"
	n.Visibility = models.VisibilityPublic
	n.Favorite = true
	require.NoError(t, s.UpdateNote(ctx, n))

	got, err := s.GetNote(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)
	assert.Equal(t, models.VisibilityPublic, got.Visibility)
	assert.True(t, got.Favorite)

	for i := 1; i <= 3; i++ {
		count, err := s.IncrementNoteViews(ctx, n.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(i), count)
	}

	_, err = s.IncrementNoteViews(ctx, uuid.NewString())
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.UpdateNote(ctx, &models.Note{Base: models.Base{ID: uuid.NewString()}}), store.ErrNotFound)
}

func testNoteFilters(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Now()
	alice := mustUser(t, s, "alice@example.com")
	bob := mustUser(t, s, "bob@example.com")

	private := mustNote(t, s, alice.ID, "Groceries", models.VisibilityPrivate)
	shared := mustNote(t, s, alice.ID, "Trip plan", models.VisibilityShared)
	public := mustNote(t, s, alice.ID, "Public recipe", models.VisibilityPublic)
	expired := mustNote(t, s, alice.ID, "Old share", models.VisibilityShared)
	bobs := mustNote(t, s, bob.ID, "Bob diary", models.VisibilityPrivate)

	require.NoError(t, s.CreateShare(ctx, &models.Share{NoteID: shared.ID, SharedWithID: bob.ID, SharedByID: alice.ID, Permission: models.PermissionRead, Active: true}))
	past := now.Add(-time.Hour)
	require.NoError(t, s.CreateShare(ctx, &models.Share{NoteID: expired.ID, SharedWithID: bob.ID, SharedByID: alice.ID, Permission: models.PermissionRead, Active: true, ExpiresAt: &past}))

	tag, err := s.GetOrCreateTag(ctx, "travel")
	require.NoError(t, err)
	require.NoError(t, s.SetNoteTags(ctx, shared.ID, []string{tag.ID}))

	private.Favorite = true
	require.NoError(t, s.UpdateNote(ctx, private))

	ids := func(f store.NoteFilter) []string {
		t.Helper()
		f.Now = now
		notes, total, err := s.ListNotes(ctx, f, pagination.Query{Page: 1, Size: 50})
		require.NoError(t, err)
		assert.Equal(t, int64(len(notes)), total)
		out := make([]string, 0, len(notes))
		for _, n := range notes {
			out = append(out, n.ID)
		}
		return out
	}

	assert.ElementsMatch(t, []string{private.ID, shared.ID, public.ID, expired.ID}, ids(store.NoteFilter{OwnerID: alice.ID}))
	assert.ElementsMatch(t, []string{bobs.ID, shared.ID, public.ID}, ids(store.NoteFilter{AccessibleBy: bob.ID}))
	assert.ElementsMatch(t, []string{shared.ID}, ids(store.NoteFilter{SharedWith: bob.ID}))
	assert.ElementsMatch(t, []string{public.ID}, ids(store.NoteFilter{Visibility: models.VisibilityPublic}))
	assert.ElementsMatch(t, []string{private.ID}, ids(store.NoteFilter{OwnerID: alice.ID, Favorite: true}))
	assert.ElementsMatch(t, []string{shared.ID}, ids(store.NoteFilter{OwnerID: alice.ID, TagLabel: "travel"}))
	assert.ElementsMatch(t, []string{public.ID}, ids(store.NoteFilter{Visibility: models.VisibilityPublic, Query: "RECIPE"}))
	assert.ElementsMatch(t, []string{private.ID}, ids(store.NoteFilter{OwnerID: alice.ID, Query: "body of groc"}))

	page, total, err := s.ListNotes(ctx, store.NoteFilter{OwnerID: alice.ID, Now: now}, pagination.Query{Page: 2, Size: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, page, 1)
}

func testDeleteNoteCascades(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := mustUser(t, s, "alice@example.com")
	bob := mustUser(t, s, "bob@example.com")
	n := mustNote(t, s, alice.ID, "doomed", models.VisibilityShared)

	sh := &models.Share{NoteID: n.ID, SharedWithID: bob.ID, SharedByID: alice.ID, Permission: models.PermissionWrite, Active: true}
	require.NoError(t, s.CreateShare(ctx, sh))
	l := &models.PublicLink{NoteID: n.ID, CreatedByID: alice.ID, Token: "tok-" + uuid.NewString(), Active: true}
	require.NoError(t, s.CreatePublicLink(ctx, l))
	tag, err := s.GetOrCreateTag(ctx, "doomed")
	require.NoError(t, err)
	require.NoError(t, s.SetNoteTags(ctx, n.ID, []string{tag.ID}))

	ok, err := s.DeleteNote(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	gotShare, err := s.GetShare(ctx, sh.ID)
	require.NoError(t, err)
	assert.Nil(t, gotShare)
	gotLink, err := s.GetPublicLink(ctx, l.ID)
	require.NoError(t, err)
	assert.Nil(t, gotLink)

	tags, err := s.ListTags(ctx, "doomed", 10)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, int64(0), tags[0].UsageCount)

	ok, err = s.DeleteNote(ctx, n.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func testShares(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Now()
	alice := mustUser(t, s, "alice@example.com")
	bob := mustUser(t, s, "bob@example.com")
	n := mustNote(t, s, alice.ID, "shared", models.VisibilityShared)

	sh := &models.Share{NoteID: n.ID, SharedWithID: bob.ID, SharedByID: alice.ID, Permission: models.PermissionRead, Active: true}
	require.NoError(t, s.CreateShare(ctx, sh))

	active, err := s.FindActiveShare(ctx, n.ID, bob.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, sh.ID, active.ID)

	future := now.Add(time.Hour)
	sh.Permission = models.PermissionWrite
	sh.ExpiresAt = &future
	require.NoError(t, s.UpdateShare(ctx, sh))
	got, err := s.GetShare(ctx, sh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PermissionWrite, got.Permission)
	require.NotNil(t, got.ExpiresAt)

	received, total, err := s.ListSharesReceived(ctx, bob.ID, now, pagination.Query{Page: 1, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, received, 1)

	ok, err := s.DeactivateShare(ctx, sh.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.DeactivateShare(ctx, sh.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)

	active, err = s.FindActiveShare(ctx, n.ID, bob.ID)
	require.NoError(t, err)
	assert.Nil(t, active)

	byNote, err := s.ListSharesByNote(ctx, n.ID)
	require.NoError(t, err)
	require.Len(t, byNote, 1)
	assert.False(t, byNote[0].Active)
	assert.NotNil(t, byNote[0].RevokedAt)

	carol := mustUser(t, s, "carol@example.com")
	for _, u := range []string{bob.ID, carol.ID} {
		require.NoError(t, s.CreateShare(ctx, &models.Share{NoteID: n.ID, SharedWithID: u, SharedByID: alice.ID, Permission: models.PermissionRead, Active: true}))
	}
	count, err := s.DeactivateNoteShares(ctx, n.ID, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	past := now.Add(-48 * time.Hour)
	old := &models.Share{NoteID: n.ID, SharedWithID: carol.ID, SharedByID: alice.ID, Permission: models.PermissionRead, Active: false, ExpiresAt: &past}
	require.NoError(t, s.CreateShare(ctx, old))
	deleted, err := s.DeleteSharesExpiredBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	ok, err = s.DeleteShare(ctx, sh.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func testPublicLinks(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Now()
	alice := mustUser(t, s, "alice@example.com")
	n := mustNote(t, s, alice.ID, "linked", models.VisibilityPrivate)

	max := int64(2)
	l := &models.PublicLink{NoteID: n.ID, CreatedByID: alice.ID, Token: "token-one", Active: true, MaxAccessCount: &max}
	require.NoError(t, s.CreatePublicLink(ctx, l))
	assert.ErrorIs(t, s.CreatePublicLink(ctx, &models.PublicLink{NoteID: n.ID, CreatedByID: alice.ID, Token: "token-one", Active: true}), store.ErrDuplicate)

	byToken, err := s.GetPublicLinkByToken(ctx, "token-one")
	require.NoError(t, err)
	require.NotNil(t, byToken)
	assert.Equal(t, l.ID, byToken.ID)

	for want := int64(1); want <= 2; want++ {
		got, ok, err := s.ConsumePublicLink(ctx, l.ID, now)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, want, got.AccessCount)
		assert.NotNil(t, got.LastAccessedAt)
	}
	got, ok, err := s.ConsumePublicLink(ctx, l.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, models.LinkExhausted, got.State(now))

	missing, ok, err := s.ConsumePublicLink(ctx, uuid.NewString(), now)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, missing)

	l.Active = false
	l.Description = "off"
	require.NoError(t, s.UpdatePublicLink(ctx, l))
	assert.Equal(t, int64(2), l.AccessCount)
	_, ok, err = s.ConsumePublicLink(ctx, l.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)

	past := now.Add(-72 * time.Hour)
	expired := &models.PublicLink{NoteID: n.ID, CreatedByID: alice.ID, Token: "token-two", Active: true, ExpiresAt: &past}
	require.NoError(t, s.CreatePublicLink(ctx, expired))
	fresh := &models.PublicLink{NoteID: n.ID, CreatedByID: alice.ID, Token: "token-three", Active: true}
	require.NoError(t, s.CreatePublicLink(ctx, fresh))

	stats, err := s.PublicLinkStats(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, store.LinkStats{Total: 3, Active: 1, Expired: 1, Exhausted: 0}, stats)

	links, err := s.ListPublicLinksByNote(ctx, n.ID)
	require.NoError(t, err)
	assert.Len(t, links, 3)

	deleted, err := s.DeletePublicLinksExpiredBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	ok, err = s.DeletePublicLink(ctx, fresh.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func testConsumeIsAtomic(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := mustUser(t, s, "alice@example.com")
	n := mustNote(t, s, alice.ID, "race", models.VisibilityPrivate)
	max := int64(3)
	l := &models.PublicLink{NoteID: n.ID, CreatedByID: alice.ID, Token: "race-token", Active: true, MaxAccessCount: &max}
	require.NoError(t, s.CreatePublicLink(ctx, l))

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := s.ConsumePublicLink(ctx, l.ID, time.Now())
			assert.NoError(t, err)
			if ok {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(3), admitted.Load())
	got, err := s.GetPublicLink(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.AccessCount)
}

func testRefreshTokens(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Now()
	alice := mustUser(t, s, "alice@example.com")

	newToken := func(hash string, expires time.Time) *models.RefreshToken {
		tok := &models.RefreshToken{UserID: alice.ID, TokenHash: hash, ExpiresAt: expires}
		require.NoError(t, s.CreateRefreshToken(ctx, tok))
		return tok
	}
	t1 := newToken("hash-1", now.Add(time.Hour))
	t2 := newToken("hash-2", now.Add(time.Hour))
	stale := newToken("hash-3", now.Add(-48*time.Hour))

	assert.ErrorIs(t, s.CreateRefreshToken(ctx, &models.RefreshToken{UserID: alice.ID, TokenHash: "hash-1", ExpiresAt: now}), store.ErrDuplicate)

	got, err := s.GetRefreshTokenByHash(ctx, "hash-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, t1.ID, got.ID)

	active, err := s.ListActiveRefreshTokens(ctx, alice.ID, now)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	ok, err := s.RevokeRefreshToken(ctx, t1.ID, "rotation", &t2.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.RevokeRefreshToken(ctx, t1.ID, "logout", nil, now)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err = s.GetRefreshToken(ctx, t1.ID)
	require.NoError(t, err)
	assert.True(t, got.Revoked)
	assert.Equal(t, "rotation", got.RevokedReason)
	require.NotNil(t, got.ReplacedByID)
	assert.Equal(t, t2.ID, *got.ReplacedByID)

	stats, err := s.RefreshTokenStats(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, store.TokenStats{Total: 3, Active: 1, Revoked: 1, Expired: 1}, stats)

	n, err := s.RevokeUserRefreshTokens(ctx, alice.ID, "logout_all", now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	deleted, err := s.DeleteRefreshTokens(ctx, store.TokenPurge{ExpiredBefore: now.Add(-24 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	gone, err := s.GetRefreshToken(ctx, stale.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	deleted, err = s.DeleteRefreshTokens(ctx, store.TokenPurge{RevokedBefore: now.Add(time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
}

func testRevokeIsAtomic(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := mustUser(t, s, "alice@example.com")
	tok := &models.RefreshToken{UserID: alice.ID, TokenHash: "contended", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, s.CreateRefreshToken(ctx, tok))

	var winners atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.RevokeRefreshToken(ctx, tok.ID, "rotation", nil, time.Now())
			assert.NoError(t, err)
			if ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), winners.Load())
}

// Racing chain replacements for one user must leave exactly one live token.
func testLockUserSerializesChains(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := mustUser(t, s, "alice@example.com")
	require.NoError(t, s.CreateRefreshToken(ctx, &models.RefreshToken{UserID: alice.ID, TokenHash: "seed", ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, s.LockUser(ctx, uuid.NewString()))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithTx(ctx, func(tx store.Store) error {
				if err := tx.LockUser(ctx, alice.ID); err != nil {
					return err
				}
				now := time.Now()
				if _, err := tx.RevokeUserRefreshTokens(ctx, alice.ID, "rotation", now); err != nil {
					return err
				}
				return tx.CreateRefreshToken(ctx, &models.RefreshToken{UserID: alice.ID, TokenHash: uuid.NewString(), ExpiresAt: now.Add(time.Hour)})
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	active, err := s.ListActiveRefreshTokens(ctx, alice.ID, time.Now())
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

// Racing check-then-insert share creations for one (note, user) must create one share.
func testLockNoteSerializesShares(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := mustUser(t, s, "alice@example.com")
	bob := mustUser(t, s, "bob@example.com")
	n := mustNote(t, s, alice.ID, "contended", models.VisibilityShared)

	missing, err := s.LockNote(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, missing)

	var created atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithTx(ctx, func(tx store.Store) error {
				note, err := tx.LockNote(ctx, n.ID)
				if err != nil || note == nil {
					return err
				}
				existing, err := tx.FindActiveShare(ctx, note.ID, bob.ID)
				if err != nil || existing != nil {
					return err
				}
				if err := tx.CreateShare(ctx, &models.Share{NoteID: note.ID, SharedWithID: bob.ID, SharedByID: alice.ID, Permission: models.PermissionRead, Active: true}); err != nil {
					return err
				}
				created.Add(1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), created.Load())
	shares, err := s.ListSharesByNote(ctx, n.ID)
	require.NoError(t, err)
	assert.Len(t, shares, 1)
}

// Losing the insert race for a label must not poison the surrounding transaction.
func testTagRaceInsideTx(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := mustUser(t, s, "alice@example.com")

	const workers = 8
	notes := make([]*models.Note, workers)
	for i := range notes {
		notes[i] = mustNote(t, s, alice.ID, "tagged", models.VisibilityPrivate)
	}
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i, n := range notes {
		wg.Add(1)
		go func(i int, n *models.Note) {
			defer wg.Done()
			err := s.WithTx(ctx, func(tx store.Store) error {
				tag, err := tx.GetOrCreateTag(ctx, "contended")
				if err != nil {
					return err
				}
				ids[i] = tag.ID
				return tx.SetNoteTags(ctx, n.ID, []string{tag.ID})
			})
			assert.NoError(t, err)
		}(i, n)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	tags, err := s.ListTags(ctx, "contended", 10)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, int64(workers), tags[0].UsageCount)
}

func testTags(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := mustUser(t, s, "alice@example.com")
	n1 := mustNote(t, s, alice.ID, "one", models.VisibilityPrivate)
	n2 := mustNote(t, s, alice.ID, "two", models.VisibilityPrivate)

	golang, err := s.GetOrCreateTag(ctx, "golang")
	require.NoError(t, err)
	again, err := s.GetOrCreateTag(ctx, "golang")
	require.NoError(t, err)
	assert.Equal(t, golang.ID, again.ID)
	sql, err := s.GetOrCreateTag(ctx, "sql")
	require.NoError(t, err)
	_, err = s.GetOrCreateTag(ctx, "unused")
	require.NoError(t, err)

	require.NoError(t, s.SetNoteTags(ctx, n1.ID, []string{golang.ID, sql.ID}))
	require.NoError(t, s.SetNoteTags(ctx, n2.ID, []string{golang.ID, golang.ID}))

	tags, err := s.ListTags(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, tags, 3)
	assert.Equal(t, "golang", tags[0].Label)
	assert.Equal(t, int64(2), tags[0].UsageCount)

	require.NoError(t, s.SetNoteTags(ctx, n1.ID, []string{sql.ID}))
	noteTags, err := s.ListNoteTags(ctx, n1.ID)
	require.NoError(t, err)
	require.Len(t, noteTags, 1)
	assert.Equal(t, "sql", noteTags[0].Label)

	byNote, err := s.ListTagsForNotes(ctx, []string{n1.ID, n2.ID})
	require.NoError(t, err)
	assert.Len(t, byNote[n2.ID], 1)

	tags, err = s.ListTags(ctx, "gol", 10)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, int64(1), tags[0].UsageCount)

	deleted, err := s.DeleteUnusedTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func testTxRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := mustUser(t, s, "alice@example.com")
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx store.Store) error {
		if err := tx.CreateNote(ctx, &models.Note{OwnerID: alice.ID, Title: "ghost", Visibility: models.VisibilityPrivate}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	notes, total, err := s.ListNotes(ctx, store.NoteFilter{OwnerID: alice.ID, Now: time.Now()}, pagination.Query{Page: 1, Size: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, notes)

	err = s.WithTx(ctx, func(tx store.Store) error {
		return tx.CreateNote(ctx, &models.Note{OwnerID: alice.ID, Title: "kept", Visibility: models.VisibilityPrivate})
	})
	require.NoError(t, err)
	_, total, err = s.ListNotes(ctx, store.NoteFilter{OwnerID: alice.ID, Now: time.Now()}, pagination.Query{Page: 1, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}
