package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luiza-sangalli/segment/internal/models"
)

func entry(i int) models.Entry {
	return models.Entry{
		ID:         fmt.Sprintf("e%d", i),
		ReceivedAt: time.Unix(int64(i), 0).UTC(),
		Payload:    models.Document{"n": float64(i)},
	}
}

func TestRing_AppendAndSnapshot(t *testing.T) {
	r := NewRing(3)
	assert.Empty(t, r.Snapshot())
	assert.Equal(t, 3, r.Capacity())

	r.Append(entry(1))
	r.Append(entry(2))

	snap := r.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "e1", snap[0].ID)
	assert.Equal(t, "e2", snap[1].ID)
}

func TestRing_EvictsOldest(t *testing.T) {
	r := NewRing(DefaultCapacity)
	for i := 1; i <= 51; i++ {
		r.Append(entry(i))
	}

	snap := r.Snapshot()
	require.Len(t, snap, 50)
	assert.Equal(t, "e2", snap[0].ID)
	assert.Equal(t, "e51", snap[49].ID)
	assert.Equal(t, 50, r.Len())

	for i := 52; i <= 175; i++ {
		r.Append(entry(i))
	}
	snap = r.Snapshot()
	require.Len(t, snap, 50)
	for i, e := range snap {
		assert.Equal(t, fmt.Sprintf("e%d", 126+i), e.ID)
	}
}

func TestRing_SnapshotIsACopy(t *testing.T) {
	r := NewRing(2)
	r.Append(entry(1))

	snap := r.Snapshot()
	snap[0].ID = "changed"
	r.Append(entry(2))
	r.Append(entry(3))

	assert.Equal(t, "changed", snap[0].ID)
	assert.Equal(t, "e2", r.Snapshot()[0].ID)
}

func TestRing_DefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, NewRing(0).Capacity())
	assert.Equal(t, DefaultCapacity, NewRing(-4).Capacity())
}

func TestRing_ConcurrentAppend(t *testing.T) {
	r := NewRing(10)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			r.Append(entry(i))
		}(i)
		go func() {
			defer wg.Done()
			assert.LessOrEqual(t, len(r.Snapshot()), 10)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, r.Len())
}
