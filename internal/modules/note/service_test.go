package note

import (
	"context"
	"testing"
	"time"

	"github.com/mx-space/notes/internal/models"
	"github.com/mx-space/notes/internal/modules/note/tag"
	"github.com/mx-space/notes/internal/pkg/access"
	"github.com/mx-space/notes/internal/pkg/pagination"
	"github.com/mx-space/notes/internal/store"
	"github.com/mx-space/notes/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var firstPage = pagination.Query{Page: 1, Size: 20}

type fixture struct {
	store *memory.Store
	svc   *Service
	now   time.Time
	alice *models.User
	bob   *models.User
	carol *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{store: memory.New(), now: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return f.now }

	f.alice = &models.User{Email: "alice@example.com", PasswordHash: "x", Active: true}
	f.bob = &models.User{Email: "bob@example.com", PasswordHash: "x", Active: true}
	f.carol = &models.User{Email: "carol@example.com", PasswordHash: "x", Active: true}
	for _, u := range []*models.User{f.alice, f.bob, f.carol} {
		require.NoError(t, f.store.CreateUser(ctx, u))
	}

	engine := access.NewEngine(f.store).WithClock(clock)
	f.svc = NewService(f.store, engine, WithClock(clock))
	return f
}

func (f *fixture) create(t *testing.T, owner *models.User, dto CreateDTO) *View {
	t.Helper()
	view, err := f.svc.Create(context.Background(), owner.ID, dto)
	require.NoError(t, err)
	return view
}

func (f *fixture) share(t *testing.T, noteID string, with *models.User, perm models.Permission, expires *time.Time) {
	t.Helper()
	sh := &models.Share{
		NoteID:       noteID,
		SharedWithID: with.ID,
		SharedByID:   f.alice.ID,
		Permission:   perm,
		ExpiresAt:    expires,
		Active:       true,
	}
	require.NoError(t, f.store.CreateShare(context.Background(), sh))
}

func titles(items []ListItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Title
	}
	return out
}

func ptrTo[T any](v T) *T { return &v }

func TestCreate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	view := f.create(t, f.alice, CreateDTO{Title: "  Trip  ", ContentMD: "# Day 1", Tags: []string{"travel", " travel ", "2025"}})
	assert.Equal(t, "Trip", view.Title)
	assert.Equal(t, models.VisibilityPrivate, view.Visibility)
	assert.Equal(t, []string{"travel", "2025"}, view.Tags)
	assert.Equal(t, "alice@example.com", view.OwnerEmail)
	assert.Equal(t, "ADMIN", view.Permission)
	assert.Zero(t, view.ViewCount)

	tags, err := f.store.ListTags(ctx, "travel", 10)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, int64(1), tags[0].UsageCount)

	cases := []struct {
		name string
		dto  CreateDTO
		want error
	}{
		{"blank title", CreateDTO{Title: "   "}, ErrTitleRequired},
		{"long title", CreateDTO{Title: string(make([]rune, MaxTitleLength+1))}, ErrTitleTooLong},
		{"bad visibility", CreateDTO{Title: "x", Visibility: "FRIENDS"}, ErrInvalidVisibility},
		{"too many tags", CreateDTO{Title: "x", Tags: manyTags(tag.MaxPerNote + 1)}, tag.ErrTooManyTags},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, f.alice.ID, tc.dto)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	_, total, err := f.store.ListNotes(ctx, store.NoteFilter{OwnerID: f.alice.ID}, firstPage)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func manyTags(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = string(rune('a'+i%26)) + string(rune('a'+i/26))
	}
	return out
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	view := f.create(t, f.alice, CreateDTO{Title: "Plan", Tags: []string{"work"}})

	_, err := f.svc.Get(ctx, view.ID, f.bob.ID)
	assert.ErrorIs(t, err, access.ErrDenied)
	_, err = f.svc.Get(ctx, view.ID, "")
	assert.ErrorIs(t, err, access.ErrDenied)
	_, err = f.svc.Get(ctx, "missing", f.alice.ID)
	assert.ErrorIs(t, err, access.ErrNoteNotFound)

	got, err := f.svc.Get(ctx, view.ID, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ViewCount)
	assert.Equal(t, []string{"work"}, got.Tags)
	assert.Empty(t, got.Shares)

	f.share(t, view.ID, f.bob, models.PermissionWrite, nil)
	got, err = f.svc.Get(ctx, view.ID, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ViewCount)
	assert.Equal(t, "WRITE", got.Permission)
	assert.Nil(t, got.Shares, "only the owner sees shares")

	got, err = f.svc.Get(ctx, view.ID, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.ViewCount)
	require.Len(t, got.Shares, 1)
	assert.Equal(t, "bob@example.com", got.Shares[0].UserEmail)
}

func TestGetPublicAndOwnerLinks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	view := f.create(t, f.alice, CreateDTO{Title: "Recipe", Visibility: models.VisibilityPublic})

	got, err := f.svc.Get(ctx, view.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "READ", got.Permission)
	assert.Equal(t, int64(1), got.ViewCount)

	link := &models.PublicLink{NoteID: view.ID, CreatedByID: f.alice.ID, Token: "tok", Active: true, MaxAccessCount: ptrTo(int64(1)), AccessCount: 1}
	require.NoError(t, f.store.CreatePublicLink(ctx, link))

	got, err = f.svc.Get(ctx, view.ID, f.alice.ID)
	require.NoError(t, err)
	require.Len(t, got.PublicLinks, 1)
	assert.Equal(t, "tok", got.PublicLinks[0].Token)
	assert.False(t, got.PublicLinks[0].IsValid)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	view := f.create(t, f.alice, CreateDTO{Title: "Draft", ContentMD: "v1", Tags: []string{"a", "b"}})
	f.share(t, view.ID, f.bob, models.PermissionWrite, nil)
	f.share(t, view.ID, f.carol, models.PermissionRead, nil)

	_, err := f.svc.Update(ctx, view.ID, f.carol.ID, UpdateDTO{Title: ptrTo("Mine now")})
	assert.ErrorIs(t, err, access.ErrDenied)

	got, err := f.svc.Update(ctx, view.ID, f.bob.ID, UpdateDTO{ContentMD: ptrTo("v2")})
	require.NoError(t, err)
	assert.Equal(t, "Draft", got.Title)
	assert.Equal(t, "v2", got.ContentMD)
	assert.ElementsMatch(t, []string{"a", "b"}, got.Tags)
	assert.Equal(t, "WRITE", got.Permission)

	_, err = f.svc.Update(ctx, view.ID, f.bob.ID, UpdateDTO{Visibility: ptrTo(models.VisibilityPublic)})
	assert.ErrorIs(t, err, access.ErrNotOwner)

	_, err = f.svc.Update(ctx, view.ID, f.bob.ID, UpdateDTO{Title: ptrTo(" ")})
	assert.ErrorIs(t, err, ErrTitleRequired)

	got, err = f.svc.Update(ctx, view.ID, f.alice.ID, UpdateDTO{
		Title:      ptrTo("Final"),
		Visibility: ptrTo(models.VisibilityPublic),
		Tags:       []string{},
	})
	require.NoError(t, err)
	assert.Equal(t, "Final", got.Title)
	assert.Equal(t, models.VisibilityPublic, got.Visibility)
	assert.Empty(t, got.Tags)

	pruned, err := f.store.DeleteUnusedTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pruned)

	_, err = f.svc.Update(ctx, view.ID, f.alice.ID, UpdateDTO{Visibility: ptrTo(models.Visibility("NOPE"))})
	assert.ErrorIs(t, err, ErrInvalidVisibility)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	view := f.create(t, f.alice, CreateDTO{Title: "Old", Tags: []string{"archive"}})
	f.share(t, view.ID, f.bob, models.PermissionAdmin, nil)

	assert.ErrorIs(t, f.svc.Delete(ctx, view.ID, f.bob.ID), access.ErrNotOwner)
	require.NoError(t, f.svc.Delete(ctx, view.ID, f.alice.ID))
	assert.ErrorIs(t, f.svc.Delete(ctx, view.ID, f.alice.ID), access.ErrNoteNotFound)

	shares, err := f.store.ListSharesByNote(ctx, view.ID)
	require.NoError(t, err)
	assert.Empty(t, shares)

	tags, err := f.store.ListTags(ctx, "archive", 10)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Zero(t, tags[0].UsageCount)
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.create(t, f.alice, CreateDTO{Title: "Go tips", ContentMD: "**Use** `gofmt`.", Visibility: models.VisibilityPublic})
	f.create(t, f.alice, CreateDTO{Title: "Shopping", ContentMD: "eggs", Tags: []string{"home"}})
	f.create(t, f.carol, CreateDTO{Title: "Go public", Visibility: models.VisibilityPublic})
	secret := f.create(t, f.carol, CreateDTO{Title: "Carol's go notes"})
	f.create(t, f.carol, CreateDTO{Title: "Hidden"})
	f.share(t, secret.ID, f.alice, models.PermissionRead, nil)

	cases := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"own notes by query", Filter{Query: "GO"}, []string{"Go tips"}},
		{"public notes by query", Filter{Query: "go", Visibility: models.VisibilityPublic}, []string{"Go tips", "Go public"}},
		{"own notes by tag", Filter{Tag: " home "}, []string{"Shopping"}},
		{"all public notes", Filter{Visibility: models.VisibilityPublic}, []string{"Go tips", "Go public"}},
		{"own private notes", Filter{Visibility: models.VisibilityPrivate}, []string{"Shopping"}},
		{"everything readable", Filter{}, []string{"Go tips", "Shopping", "Go public", "Carol's go notes"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			items, total, err := f.svc.Search(ctx, f.alice.ID, tc.filter, firstPage)
			require.NoError(t, err)
			assert.Equal(t, int64(len(tc.want)), total)
			assert.ElementsMatch(t, tc.want, titles(items))
		})
	}

	items, _, err := f.svc.Search(ctx, f.alice.ID, Filter{Query: "tips"}, firstPage)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Use gofmt.", items[0].Excerpt)
	assert.Equal(t, "alice@example.com", items[0].OwnerEmail)

	_, _, err = f.svc.Search(ctx, f.alice.ID, Filter{Visibility: "ALL"}, firstPage)
	assert.ErrorIs(t, err, ErrInvalidVisibility)
}

func TestFavorites(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	view := f.create(t, f.alice, CreateDTO{Title: "Keep"})
	f.create(t, f.alice, CreateDTO{Title: "Other"})
	f.share(t, view.ID, f.bob, models.PermissionAdmin, nil)

	_, err := f.svc.ToggleFavorite(ctx, view.ID, f.bob.ID)
	assert.ErrorIs(t, err, access.ErrNotOwner)

	got, err := f.svc.ToggleFavorite(ctx, view.ID, f.alice.ID)
	require.NoError(t, err)
	assert.True(t, got.Favorite)

	items, total, err := f.svc.Favorites(ctx, f.alice.ID, firstPage)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, []string{"Keep"}, titles(items))

	got, err = f.svc.ToggleFavorite(ctx, view.ID, f.alice.ID)
	require.NoError(t, err)
	assert.False(t, got.Favorite)

	_, total, err = f.svc.Favorites(ctx, f.alice.ID, firstPage)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestSharedWithMeAndPublic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	lasting := f.create(t, f.alice, CreateDTO{Title: "Lasting"})
	brief := f.create(t, f.alice, CreateDTO{Title: "Brief", Visibility: models.VisibilityPublic})
	f.share(t, lasting.ID, f.bob, models.PermissionRead, nil)
	f.share(t, brief.ID, f.bob, models.PermissionRead, ptrTo(f.now.Add(time.Hour)))

	items, total, err := f.svc.SharedWithMe(ctx, f.bob.ID, firstPage)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.ElementsMatch(t, []string{"Lasting", "Brief"}, titles(items))

	f.now = f.now.Add(2 * time.Hour)
	items, total, err = f.svc.SharedWithMe(ctx, f.bob.ID, firstPage)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, []string{"Lasting"}, titles(items))

	items, total, err = f.svc.Public(ctx, firstPage)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, []string{"Brief"}, titles(items))
}
