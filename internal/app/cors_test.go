package app

import (
	"testing"

	"github.com/mx-space/notes/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestOriginHost(t *testing.T) {
	assert.Equal(t, "notes.example.com", originHost("https://Notes.Example.com"))
	assert.Equal(t, "localhost:5173", originHost("http://localhost:5173"))
	assert.Equal(t, "bare.host", originHost("bare.host/"))
}

func TestOriginAllowlist(t *testing.T) {
	allow := newOriginAllowlist([]string{" Notes.example.com ", "*.example.org", "localhost:*", ""})
	cases := []struct {
		origin string
		want   bool
	}{
		{"https://notes.example.com", true},
		{"http://notes.example.com", true},
		{"https://app.example.org", true},
		{"https://example.org", false},
		{"http://localhost:5173", true},
		{"http://127.0.0.1:5173", false},
		{"https://evil.com", false},
		{"", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, allow.Allow(tc.origin), tc.origin)
	}
}

func TestCORSConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Env = "production"
	cfg.AllowedOrigins = []string{"notes.example.com"}
	c := corsConfig(&cfg)
	assert.True(t, c.AllowOriginFunc("https://notes.example.com"))
	assert.False(t, c.AllowOriginFunc("https://other.example.com"))

	cfg.Env = "development"
	c = corsConfig(&cfg)
	assert.True(t, c.AllowOriginFunc("https://other.example.com"))
}
