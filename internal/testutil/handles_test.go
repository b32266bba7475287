package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/mapsync/internal/mapengine"
)

func TestDeterministicHandles_Sequence(t *testing.T) {
	gen := NewDeterministicHandles("pin")

	assert.Equal(t, mapengine.Handle("pin-1"), gen.Generate())
	assert.Equal(t, mapengine.Handle("pin-2"), gen.Generate())
	assert.Equal(t, 2, gen.Issued())
}

func TestDeterministicHandles_EmptyPrefixDefault(t *testing.T) {
	gen := NewDeterministicHandles("")
	assert.Equal(t, mapengine.Handle("h-1"), gen.Generate())
}

func TestDeterministicHandles_Reset(t *testing.T) {
	gen := NewDeterministicHandles("h")
	gen.Generate()
	gen.Generate()

	gen.Reset()
	assert.Equal(t, 0, gen.Issued())
	assert.Equal(t, mapengine.Handle("h-1"), gen.Generate())
}

func TestDeterministicHandles_DrivesMemoryEngine(t *testing.T) {
	gen := NewDeterministicHandles("m")
	e := mapengine.NewMemory(gen)

	h, err := e.AddMarker(t.Context(), mapengine.MarkerOptions{Title: "pin"})
	assert.NoError(t, err)
	assert.Equal(t, mapengine.Handle("m-1"), h)
}

func TestDeterministicHandles_ThreadSafe(t *testing.T) {
	gen := NewDeterministicHandles("h")
	var wg sync.WaitGroup
	seen := sync.Map{}

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, dup := seen.LoadOrStore(gen.Generate(), true)
				assert.False(t, dup)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1000, gen.Issued())
}
