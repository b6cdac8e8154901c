package tag

import (
	"context"
	"strings"
	"testing"

	"github.com/mx-space/notes/internal/models"
	"github.com/mx-space/notes/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	labels, err := Normalize([]string{"  go ", "", "web  dev", "go", "\t"})
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "web dev"}, labels)

	_, err = Normalize([]string{strings.Repeat("é", MaxLabelLength+1)})
	assert.ErrorIs(t, err, ErrLabelTooLong)

	labels, err = Normalize([]string{strings.Repeat("é", MaxLabelLength)})
	require.NoError(t, err)
	assert.Len(t, labels, 1)

	many := make([]string, MaxPerNote+1)
	for i := range many {
		many[i] = strings.Repeat("x", i+1)
	}
	_, err = Normalize(many)
	assert.ErrorIs(t, err, ErrTooManyTags)
}

func TestResolveListPrune(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	svc := NewService(s)

	tags, err := svc.Resolve(ctx, []string{"go", "db", "go"})
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, []string{"go", "db"}, Labels(tags))

	again, err := svc.Resolve(ctx, []string{"go"})
	require.NoError(t, err)
	assert.Equal(t, tags[0].ID, again[0].ID)

	note := &models.Note{OwnerID: "u1", Title: "t", Visibility: models.VisibilityPrivate}
	require.NoError(t, s.CreateNote(ctx, note))
	require.NoError(t, s.SetNoteTags(ctx, note.ID, IDs(tags[:1])))

	listed, err := svc.List(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "go", listed[0].Label)
	assert.Equal(t, int64(1), listed[0].UsageCount)

	listed, err = svc.List(ctx, "D", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"db"}, Labels(listed))

	n, err := svc.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	listed, err = svc.List(ctx, "", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"go"}, Labels(listed))
}
