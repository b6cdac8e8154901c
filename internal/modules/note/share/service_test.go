package share

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mx-space/notes/internal/models"
	"github.com/mx-space/notes/internal/pkg/access"
	"github.com/mx-space/notes/internal/pkg/apperr"
	"github.com/mx-space/notes/internal/pkg/pagination"
	"github.com/mx-space/notes/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store  *memory.Store
	engine *access.Engine
	svc    *Service
	now    time.Time
	alice  *models.User
	bob    *models.User
	carol  *models.User
	note   *models.Note
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{store: memory.New(), now: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return f.now }

	for _, u := range []**models.User{&f.alice, &f.bob, &f.carol} {
		*u = &models.User{PasswordHash: "x", Active: true}
	}
	f.alice.Email, f.bob.Email, f.carol.Email = "alice@example.com", "bob@example.com", "carol@example.com"
	for _, u := range []*models.User{f.alice, f.bob, f.carol} {
		require.NoError(t, f.store.CreateUser(ctx, u))
	}
	f.note = &models.Note{OwnerID: f.alice.ID, Title: "Plan", Visibility: models.VisibilityPrivate}
	require.NoError(t, f.store.CreateNote(ctx, f.note))

	f.engine = access.NewEngine(f.store).WithClock(clock)
	f.svc = NewService(f.store, f.engine, WithClock(clock), WithRetention(24*time.Hour))
	return f
}

func (f *fixture) share(t *testing.T, email string, perm models.Permission, expires *time.Time) *View {
	t.Helper()
	view, err := f.svc.Create(context.Background(), f.note.ID, f.alice.ID, CreateDTO{UserEmail: email, Permission: perm, ExpiresAt: expires})
	require.NoError(t, err)
	return view
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.engine.Authorize(ctx, f.note.ID, f.bob.ID, access.Read)
	require.ErrorIs(t, err, access.ErrDenied)

	view := f.share(t, " BOB@example.com ", models.PermissionWrite, nil)
	assert.Equal(t, f.bob.ID, view.SharedWith.ID)
	assert.Equal(t, "bob@example.com", view.SharedWith.Email)
	assert.Equal(t, "alice@example.com", view.SharedBy.Email)
	assert.True(t, view.Active)

	note, err := f.store.GetNote(ctx, f.note.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VisibilityShared, note.Visibility)

	_, err = f.engine.Authorize(ctx, f.note.ID, f.bob.ID, access.Write)
	assert.NoError(t, err)
	_, err = f.engine.Authorize(ctx, f.note.ID, f.bob.ID, access.Admin)
	assert.ErrorIs(t, err, access.ErrDenied)

	cases := []struct {
		name      string
		principal string
		dto       CreateDTO
		want      error
	}{
		{"duplicate", f.alice.ID, CreateDTO{UserEmail: "bob@example.com", Permission: models.PermissionRead}, ErrAlreadyShared},
		{"self", f.alice.ID, CreateDTO{UserEmail: "alice@example.com", Permission: models.PermissionRead}, ErrSelfShare},
		{"unknown user", f.alice.ID, CreateDTO{UserEmail: "dave@example.com", Permission: models.PermissionRead}, ErrUserNotFound},
		{"bad permission", f.alice.ID, CreateDTO{UserEmail: "carol@example.com", Permission: "OWNER"}, ErrInvalidPermission},
		{"past expiry", f.alice.ID, CreateDTO{UserEmail: "carol@example.com", Permission: models.PermissionRead, ExpiresAt: ptrTo(f.now.Add(-time.Minute))}, ErrExpiryInPast},
		{"not owner", f.bob.ID, CreateDTO{UserEmail: "carol@example.com", Permission: models.PermissionRead}, access.ErrNotOwner},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, f.note.ID, tc.principal, tc.dto)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	_, err = f.svc.Create(ctx, "missing", f.alice.ID, CreateDTO{UserEmail: "carol@example.com", Permission: models.PermissionRead})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func ptrTo[T any](v T) *T { return &v }

func TestConcurrentCreateHasOneWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var created, conflicts atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(ctx, f.note.ID, f.alice.ID, CreateDTO{UserEmail: "bob@example.com", Permission: models.PermissionRead})
			switch {
			case err == nil:
				created.Add(1)
			case assert.ErrorIs(t, err, ErrAlreadyShared):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), created.Load())
	assert.Equal(t, int64(7), conflicts.Load())
	shares, err := f.store.ListSharesByNote(ctx, f.note.ID)
	require.NoError(t, err)
	assert.Len(t, shares, 1)
}

func TestAdminShareDoesNotGrantOwnership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.share(t, "bob@example.com", models.PermissionAdmin, nil)

	_, err := f.svc.Create(ctx, f.note.ID, f.bob.ID, CreateDTO{UserEmail: "carol@example.com", Permission: models.PermissionRead})
	assert.ErrorIs(t, err, access.ErrNotOwner)
	_, err = f.svc.ListForNote(ctx, f.note.ID, f.bob.ID)
	assert.ErrorIs(t, err, access.ErrNotOwner)
}

func TestExpiredShareIsReplaced(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first := f.share(t, "bob@example.com", models.PermissionRead, ptrTo(f.now.Add(time.Hour)))

	f.now = f.now.Add(2 * time.Hour)
	_, err := f.engine.Authorize(ctx, f.note.ID, f.bob.ID, access.Read)
	require.ErrorIs(t, err, access.ErrDenied)

	second := f.share(t, "bob@example.com", models.PermissionWrite, nil)
	assert.NotEqual(t, first.ID, second.ID)

	old, err := f.store.GetShare(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, old.Active)
	require.NotNil(t, old.RevokedAt)

	all, err := f.svc.ListForNote(ctx, f.note.ID, f.alice.ID)
	require.NoError(t, err)
	active := 0
	for _, v := range all {
		if v.Active {
			active++
		}
	}
	assert.Len(t, all, 2)
	assert.Equal(t, 1, active)

	_, err = f.engine.Authorize(ctx, f.note.ID, f.bob.ID, access.Write)
	assert.NoError(t, err)
}

func TestReceived(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.share(t, "bob@example.com", models.PermissionRead, nil)

	other := &models.Note{OwnerID: f.carol.ID, Title: "Carol's", Visibility: models.VisibilityPrivate}
	require.NoError(t, f.store.CreateNote(ctx, other))
	_, err := f.svc.Create(ctx, other.ID, f.carol.ID, CreateDTO{UserEmail: "bob@example.com", Permission: models.PermissionRead, ExpiresAt: ptrTo(f.now.Add(time.Hour))})
	require.NoError(t, err)

	views, total, err := f.svc.Received(ctx, f.bob.ID, pagination.Query{Page: 1, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	titles := []string{views[0].NoteTitle, views[1].NoteTitle}
	assert.ElementsMatch(t, []string{"Plan", "Carol's"}, titles)

	f.now = f.now.Add(2 * time.Hour)
	views, total, err = f.svc.Received(ctx, f.bob.ID, pagination.Query{Page: 1, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Plan", views[0].NoteTitle)

	views, total, err = f.svc.Received(ctx, f.alice.ID, pagination.Query{Page: 1, Size: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, views)
}

func TestUpdateRevokeDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	view := f.share(t, "bob@example.com", models.PermissionRead, nil)

	_, err := f.svc.Update(ctx, view.ID, f.bob.ID, UpdateDTO{Permission: models.PermissionAdmin})
	assert.ErrorIs(t, err, access.ErrNotOwner)

	updated, err := f.svc.Update(ctx, view.ID, f.alice.ID, UpdateDTO{Permission: models.PermissionWrite, ExpiresAt: ptrTo(f.now.Add(time.Hour))})
	require.NoError(t, err)
	assert.Equal(t, models.PermissionWrite, updated.Permission)
	require.NotNil(t, updated.ExpiresAt)
	_, err = f.engine.Authorize(ctx, f.note.ID, f.bob.ID, access.Write)
	assert.NoError(t, err)

	_, err = f.svc.Update(ctx, "missing", f.alice.ID, UpdateDTO{Permission: models.PermissionRead})
	assert.ErrorIs(t, err, ErrShareNotFound)

	require.NoError(t, f.svc.Revoke(ctx, view.ID, f.alice.ID))
	require.NoError(t, f.svc.Revoke(ctx, view.ID, f.alice.ID))
	_, err = f.engine.Authorize(ctx, f.note.ID, f.bob.ID, access.Read)
	assert.ErrorIs(t, err, access.ErrDenied)

	assert.ErrorIs(t, f.svc.Delete(ctx, view.ID, f.bob.ID), access.ErrNotOwner)
	require.NoError(t, f.svc.Delete(ctx, view.ID, f.alice.ID))
	assert.ErrorIs(t, f.svc.Delete(ctx, view.ID, f.alice.ID), ErrShareNotFound)
}

func TestRevokeAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.share(t, "bob@example.com", models.PermissionRead, nil)
	f.share(t, "carol@example.com", models.PermissionWrite, nil)

	_, err := f.svc.RevokeAll(ctx, f.note.ID, f.bob.ID)
	assert.ErrorIs(t, err, access.ErrNotOwner)

	n, err := f.svc.RevokeAll(ctx, f.note.ID, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	for _, u := range []*models.User{f.bob, f.carol} {
		_, err := f.engine.Authorize(ctx, f.note.ID, u.ID, access.Read)
		assert.ErrorIs(t, err, access.ErrDenied)
	}
}

func TestCleanup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.share(t, "bob@example.com", models.PermissionRead, ptrTo(f.now.Add(time.Hour)))
	f.share(t, "carol@example.com", models.PermissionRead, nil)

	f.now = f.now.Add(12 * time.Hour)
	n, err := f.svc.Cleanup(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.now = f.now.Add(24 * time.Hour)
	n, err = f.svc.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	all, err := f.svc.ListForNote(ctx, f.note.ID, f.alice.ID)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "carol@example.com", all[0].SharedWith.Email)
}
