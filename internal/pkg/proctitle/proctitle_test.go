package proctitle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestName(t *testing.T) {
	assert.Equal(t, "notes-server", Name(""))
	assert.Equal(t, "notes-server", Name("Production"))
	assert.Equal(t, "notes-development", Name(" development "))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "", Format("   "))
	assert.Equal(t, "notes-api-eu", Format(" notes  api\teu "))
}
