package memory_test

import (
	"testing"

	"github.com/mx-space/notes/internal/store"
	"github.com/mx-space/notes/internal/store/memory"
	"github.com/mx-space/notes/internal/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return memory.New() })
}
