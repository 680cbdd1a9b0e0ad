// Package store holds the live in-memory state read by every dashboard
// view. Each entity type lives in one Collection; every write installs a
// fresh slice, so a snapshot handed to a reader is never mutated behind
// its back.
package store

import (
	"sync"

	"github.com/ukydev/gaadi-fleet/internal/models"
)

// Collection is an observable copy-on-write container for one entity type.
type Collection[T any] struct {
	mu       sync.RWMutex
	items    []T
	watchers []chan struct{}
}

// NewCollection creates an empty collection.
func NewCollection[T any]() *Collection[T] {
	return &Collection[T]{items: []T{}}
}

// Snapshot returns the current collection value. The returned slice is
// immutable by convention: writers always replace it, never modify it.
func (c *Collection[T]) Snapshot() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.items
}

// Set replaces the entire collection, used after a bulk fetch.
func (c *Collection[T]) Set(items []T) {
	if items == nil {
		items = []T{}
	}
	c.mu.Lock()
	c.items = items
	c.mu.Unlock()
	c.notify()
}

// Update applies a pure transform to the current collection. The transform
// must treat its argument as read-only and return a new slice.
func (c *Collection[T]) Update(fn func([]T) []T) {
	c.mu.Lock()
	next := fn(c.items)
	if next == nil {
		next = []T{}
	}
	c.items = next
	c.mu.Unlock()
	c.notify()
}

// Watch returns a channel that receives a coalesced signal after each
// change. Slow consumers miss intermediate signals, never the latest one.
func (c *Collection[T]) Watch() <-chan struct{} {
	ch := make(chan struct{}, 1)
	c.mu.Lock()
	c.watchers = append(c.watchers, ch)
	c.mu.Unlock()
	return ch
}

func (c *Collection[T]) notify() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ch := range c.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Store aggregates the live collections owned by the sync agent.
type Store struct {
	Vehicles    *Collection[models.Vehicle]
	Bookings    *Collection[models.BookingRequest]
	Emergencies *Collection[models.EmergencyRequest]
	Loads       *Collection[models.Load]
}

// New creates a Store with empty collections.
func New() *Store {
	return &Store{
		Vehicles:    NewCollection[models.Vehicle](),
		Bookings:    NewCollection[models.BookingRequest](),
		Emergencies: NewCollection[models.EmergencyRequest](),
		Loads:       NewCollection[models.Load](),
	}
}
