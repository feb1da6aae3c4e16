// Package events is the in-process event bus that replaces global
// listener registries: one bus per Application, subscribers registered at
// construction.
package events

import (
	"sync"
)

// Event is a typed notification published on the bus.
type Event any

// ProfileChanged fires after the active profile switches.
type ProfileChanged struct {
	ProfileID string
}

// ConfigChanged fires after the fuzzy-search configuration changes.
type ConfigChanged struct{}

// CatalogMutated fires after any track insert, update or delete.
type CatalogMutated struct{}

// Bus fans events out to subscribers. Handlers run synchronously on the
// publisher's goroutine and must not block.
type Bus struct {
	mu   sync.RWMutex
	subs []func(Event)
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn for all events.
func (b *Bus) Subscribe(fn func(Event)) {
	b.mu.Lock()
	b.subs = append(b.subs, fn)
	b.mu.Unlock()
}

// Publish delivers ev to every subscriber.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}
}
