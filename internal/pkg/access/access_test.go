package access

import (
	"context"
	"testing"
	"time"

	"github.com/mx-space/notes/internal/models"
	"github.com/mx-space/notes/internal/pkg/apperr"
	"github.com/mx-space/notes/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func note(vis models.Visibility) *models.Note {
	return &models.Note{Base: models.Base{ID: "note-1"}, OwnerID: "owner", Visibility: vis}
}

func share(perm models.Permission, mutate ...func(*models.Share)) *models.Share {
	s := &models.Share{NoteID: "note-1", SharedWithID: "bob", SharedByID: "owner", Permission: perm, Active: true}
	for _, m := range mutate {
		m(s)
	}
	return s
}

func TestDecide(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	cases := []struct {
		name      string
		note      *models.Note
		principal string
		required  Capability
		share     *models.Share
		allowed   bool
		rule      string
	}{
		{"owner admin on private", note(models.VisibilityPrivate), "owner", Admin, nil, true, RuleOwner},
		{"owner ignores foreign share", note(models.VisibilityPrivate), "owner", Write, share(models.PermissionRead), true, RuleOwner},
		{"public read anonymous", note(models.VisibilityPublic), "", Read, nil, true, RulePublic},
		{"public write anonymous", note(models.VisibilityPublic), "", Write, nil, false, ""},
		{"public write stranger", note(models.VisibilityPublic), "eve", Write, nil, false, ""},
		{"shared note without share", note(models.VisibilityShared), "eve", Read, nil, false, ""},
		{"private anonymous", note(models.VisibilityPrivate), "", Read, nil, false, ""},
		{"anonymous never uses share", note(models.VisibilityShared), "", Read, share(models.PermissionAdmin), false, ""},
		{"read share grants read", note(models.VisibilityShared), "bob", Read, share(models.PermissionRead), true, RuleShare},
		{"read share denies write", note(models.VisibilityShared), "bob", Write, share(models.PermissionRead), false, ""},
		{"write share grants read", note(models.VisibilityShared), "bob", Read, share(models.PermissionWrite), true, RuleShare},
		{"write share grants write", note(models.VisibilityShared), "bob", Write, share(models.PermissionWrite), true, RuleShare},
		{"write share denies admin", note(models.VisibilityShared), "bob", Admin, share(models.PermissionWrite), false, ""},
		{"admin share grants admin", note(models.VisibilityShared), "bob", Admin, share(models.PermissionAdmin), true, RuleShare},
		{"share applies to private note", note(models.VisibilityPrivate), "bob", Read, share(models.PermissionRead), true, RuleShare},
		{"public read beats share", note(models.VisibilityPublic), "bob", Read, share(models.PermissionRead), true, RulePublic},
		{"public note write via share", note(models.VisibilityPublic), "bob", Write, share(models.PermissionWrite), true, RuleShare},
		{"expired share", note(models.VisibilityShared), "bob", Read, share(models.PermissionAdmin, func(s *models.Share) { s.ExpiresAt = &past }), false, ""},
		{"share expiring later", note(models.VisibilityShared), "bob", Read, share(models.PermissionRead, func(s *models.Share) { s.ExpiresAt = &future }), true, RuleShare},
		{"inactive share", note(models.VisibilityShared), "bob", Read, share(models.PermissionAdmin, func(s *models.Share) { s.Active = false }), false, ""},
		{"share for another user", note(models.VisibilityShared), "eve", Read, share(models.PermissionAdmin), false, ""},
		{"share for another note", note(models.VisibilityShared), "bob", Read, share(models.PermissionAdmin, func(s *models.Share) { s.NoteID = "note-2" }), false, ""},
		{"nothing required", note(models.VisibilityPublic), "owner", None, nil, false, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Decide(tc.note, tc.principal, tc.required, tc.share, now)
			assert.Equal(t, tc.allowed, d.Allowed)
			assert.Equal(t, tc.rule, d.Rule)
			if !d.Allowed {
				assert.Equal(t, "unauthorized", d.Reason)
			}
		})
	}
}

func TestDecideIsMonotone(t *testing.T) {
	now := time.Now()
	perms := []models.Permission{models.PermissionRead, models.PermissionWrite, models.PermissionAdmin}
	caps := []Capability{Read, Write, Admin}
	for _, vis := range []models.Visibility{models.VisibilityPrivate, models.VisibilityShared, models.VisibilityPublic} {
		for _, p := range perms {
			for i, required := range caps {
				if !Decide(note(vis), "bob", required, share(p), now).Allowed {
					continue
				}
				for _, weaker := range caps[:i] {
					assert.True(t, Decide(note(vis), "bob", weaker, share(p), now).Allowed,
						"%s share on %s note grants %s but not %s", p, vis, required, weaker)
				}
			}
		}
	}
}

func TestEffective(t *testing.T) {
	now := time.Now()
	assert.Equal(t, Admin, Effective(note(models.VisibilityPrivate), "owner", nil, now))
	assert.Equal(t, Write, Effective(note(models.VisibilityShared), "bob", share(models.PermissionWrite), now))
	assert.Equal(t, Read, Effective(note(models.VisibilityPublic), "eve", nil, now))
	assert.Equal(t, None, Effective(note(models.VisibilityPrivate), "eve", nil, now))
	assert.Equal(t, None, Effective(note(models.VisibilityShared), "", nil, now))
}

func TestEngine(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	alice := &models.User{Email: "alice@example.com", Active: true}
	bob := &models.User{Email: "bob@example.com", Active: true}
	require.NoError(t, s.CreateUser(ctx, alice))
	require.NoError(t, s.CreateUser(ctx, bob))
	n := &models.Note{OwnerID: alice.ID, Title: "plan", Visibility: models.VisibilityShared}
	require.NoError(t, s.CreateNote(ctx, n))
	require.NoError(t, s.CreateShare(ctx, &models.Share{NoteID: n.ID, SharedWithID: bob.ID, SharedByID: alice.ID, Permission: models.PermissionAdmin, Active: true}))

	e := NewEngine(s)

	got, err := e.Authorize(ctx, n.ID, bob.ID, Write)
	require.NoError(t, err)
	assert.Equal(t, n.ID, got.ID)

	_, err = e.Authorize(ctx, n.ID, "", Read)
	assert.ErrorIs(t, err, ErrDenied)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = e.Authorize(ctx, "missing", alice.ID, Read)
	assert.ErrorIs(t, err, ErrNoteNotFound)

	_, err = e.RequireOwner(ctx, n.ID, alice.ID)
	assert.NoError(t, err)
	_, err = e.RequireOwner(ctx, n.ID, bob.ID)
	assert.ErrorIs(t, err, ErrNotOwner)

	c, err := e.Effective(ctx, n, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, Admin, c)

	later := e.WithClock(func() time.Time { return time.Now().Add(time.Hour) })
	_, err = later.Authorize(ctx, n.ID, bob.ID, Read)
	assert.NoError(t, err)
}
