// Package access decides what a principal may do with a note.
//
// The decision is a pure function of the note, the principal, the principal's
// share on the note (if any) and the current time. Rules are tried in order:
// ownership, public read, then an active unexpired share whose permission
// covers the requested capability. An empty principal is anonymous and can
// only ever match public read.
package access

import (
	"context"
	"time"

	"github.com/mx-space/notes/internal/models"
	"github.com/mx-space/notes/internal/pkg/apperr"
	"github.com/mx-space/notes/internal/store"
)

// Capability is an ordered access level: Read < Write < Admin.
type Capability uint8

const (
	None Capability = iota
	Read
	Write
	Admin
)

func (c Capability) String() string {
	switch c {
	case Read:
		return string(models.PermissionRead)
	case Write:
		return string(models.PermissionWrite)
	case Admin:
		return string(models.PermissionAdmin)
	}
	return ""
}

// Covers reports whether c includes required.
func (c Capability) Covers(required Capability) bool { return c >= required }

// FromPermission maps a share permission onto the capability lattice.
func FromPermission(p models.Permission) Capability {
	switch p {
	case models.PermissionRead:
		return Read
	case models.PermissionWrite:
		return Write
	case models.PermissionAdmin:
		return Admin
	}
	return None
}

// Rules that can grant access.
const (
	RuleOwner  = "owner"
	RulePublic = "public"
	RuleShare  = "share"
)

// Decision is the outcome of Decide. Rule is set when Allowed.
type Decision struct {
	Allowed bool
	Rule    string
	Reason  string
}

var deny = Decision{Reason: "unauthorized"}

// Decide evaluates the rules for principal on note. share is the principal's
// share on the note, or nil.
func Decide(note *models.Note, principal string, required Capability, share *models.Share, now time.Time) Decision {
	if note == nil || required == None {
		return deny
	}
	if principal != "" && principal == note.OwnerID {
		return Decision{Allowed: true, Rule: RuleOwner}
	}
	if note.Visibility == models.VisibilityPublic && required == Read {
		return Decision{Allowed: true, Rule: RulePublic}
	}
	if principal == "" || share == nil {
		return deny
	}
	if share.NoteID != note.ID || share.SharedWithID != principal || !share.Usable(now) {
		return deny
	}
	if FromPermission(share.Permission).Covers(required) {
		return Decision{Allowed: true, Rule: RuleShare}
	}
	return deny
}

// Effective returns the highest capability principal holds on note.
func Effective(note *models.Note, principal string, share *models.Share, now time.Time) Capability {
	for _, c := range []Capability{Admin, Write, Read} {
		if Decide(note, principal, c, share, now).Allowed {
			return c
		}
	}
	return None
}

var (
	ErrNoteNotFound = apperr.NotFound("note not found")
	ErrDenied       = apperr.Forbidden("you do not have access to this note")
	ErrNotOwner     = apperr.New(apperr.KindForbidden, "not_owner", "only the owner can do this")
)

// Engine loads notes and shares from the store and applies Decide.
type Engine struct {
	store store.Store
	now   func() time.Time
}

func NewEngine(s store.Store) *Engine {
	return &Engine{store: s, now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	cp := *e
	cp.now = now
	return &cp
}

// Authorize returns the note when principal holds required on it.
func (e *Engine) Authorize(ctx context.Context, noteID, principal string, required Capability) (*models.Note, error) {
	note, err := e.load(ctx, noteID)
	if err != nil {
		return nil, err
	}
	share, err := e.shareFor(ctx, note, principal, required)
	if err != nil {
		return nil, err
	}
	if !Decide(note, principal, required, share, e.now()).Allowed {
		return nil, ErrDenied
	}
	return note, nil
}

// RequireOwner returns the note when principal owns it. Admin shares do not pass.
func (e *Engine) RequireOwner(ctx context.Context, noteID, principal string) (*models.Note, error) {
	note, err := e.load(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if principal == "" || note.OwnerID != principal {
		return nil, ErrNotOwner
	}
	return note, nil
}

// Effective returns the principal's capability on an already loaded note.
func (e *Engine) Effective(ctx context.Context, note *models.Note, principal string) (Capability, error) {
	share, err := e.shareFor(ctx, note, principal, Admin)
	if err != nil {
		return None, err
	}
	return Effective(note, principal, share, e.now()), nil
}

func (e *Engine) load(ctx context.Context, noteID string) (*models.Note, error) {
	note, err := e.store.GetNote(ctx, noteID)
	if err != nil {
		return nil, apperr.Internal("load note", err)
	}
	if note == nil {
		return nil, ErrNoteNotFound
	}
	return note, nil
}

// shareFor fetches the principal's active share only when a share could decide the outcome.
func (e *Engine) shareFor(ctx context.Context, note *models.Note, principal string, required Capability) (*models.Share, error) {
	if principal == "" || principal == note.OwnerID {
		return nil, nil
	}
	if note.Visibility == models.VisibilityPublic && required == Read {
		return nil, nil
	}
	share, err := e.store.FindActiveShare(ctx, note.ID, principal)
	if err != nil {
		return nil, apperr.Internal("load share", err)
	}
	return share, nil
}
