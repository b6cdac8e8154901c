package tokengen

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandom(t *testing.T) {
	gen := New(0)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok, err := gen.Generate()
		require.NoError(t, err)
		assert.Len(t, tok, 43)
		assert.NotContains(t, tok, "=")

		raw, err := base64.RawURLEncoding.DecodeString(tok)
		require.NoError(t, err)
		assert.Len(t, raw, DefaultBytes)

		assert.False(t, seen[tok])
		seen[tok] = true
	}
}

func TestFunc(t *testing.T) {
	var g Generator = Func(func() (string, error) { return "fixed", nil })
	tok, err := g.Generate()
	require.NoError(t, err)
	assert.Equal(t, "fixed", tok)
}
