package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ukydev/gaadi-fleet/internal/models"
)

func TestCollection_SetAndSnapshot(t *testing.T) {
	c := NewCollection[models.Load]()
	assert.Empty(t, c.Snapshot())

	c.Set([]models.Load{{ID: "l1"}, {ID: "l2"}})
	assert.Len(t, c.Snapshot(), 2)

	c.Set(nil)
	assert.NotNil(t, c.Snapshot())
	assert.Empty(t, c.Snapshot())
}

func TestCollection_SnapshotIsStable(t *testing.T) {
	c := NewCollection[models.BookingRequest]()
	c.Set([]models.BookingRequest{{ID: "b1", Status: models.BookingPending}})

	before := c.Snapshot()
	c.Update(func(prev []models.BookingRequest) []models.BookingRequest {
		next := make([]models.BookingRequest, len(prev))
		copy(next, prev)
		next[0].Status = models.BookingAccepted
		return next
	})

	// the snapshot taken before the update must still show the old value
	assert.Equal(t, models.BookingPending, before[0].Status)
	assert.Equal(t, models.BookingAccepted, c.Snapshot()[0].Status)
}

func TestCollection_WatchCoalesces(t *testing.T) {
	c := NewCollection[models.Vehicle]()
	ch := c.Watch()

	c.Set([]models.Vehicle{{ID: "v1"}})
	c.Set([]models.Vehicle{{ID: "v2"}})
	c.Set([]models.Vehicle{{ID: "v3"}})

	// rapid writes coalesce into at least one pending signal
	select {
	case <-ch:
	default:
		t.Fatal("expected a change signal")
	}
	assert.Equal(t, "v3", c.Snapshot()[0].ID)
}

func TestCollection_ConcurrentUpdates(t *testing.T) {
	c := NewCollection[models.Load]()
	c.Set([]models.Load{})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Update(func(prev []models.Load) []models.Load {
				next := make([]models.Load, len(prev), len(prev)+1)
				copy(next, prev)
				return append(next, models.Load{ID: "l"})
			})
		}()
	}
	wg.Wait()

	assert.Len(t, c.Snapshot(), 50)
}
