package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusFansOutToAllSubscribers(t *testing.T) {
	bus := NewBus()

	var first, second []Event
	bus.Subscribe(func(ev Event) { first = append(first, ev) })
	bus.Subscribe(func(ev Event) { second = append(second, ev) })

	bus.Publish(ProfileChanged{ProfileID: "p1"})
	bus.Publish(CatalogMutated{})

	assert.Equal(t, []Event{ProfileChanged{ProfileID: "p1"}, CatalogMutated{}}, first)
	assert.Equal(t, first, second)
}

func TestBusPublishWithoutSubscribers(t *testing.T) {
	bus := NewBus()
	assert.NotPanics(t, func() { bus.Publish(ConfigChanged{}) })
}

func TestBusTypeSwitch(t *testing.T) {
	bus := NewBus()

	profiles := 0
	bus.Subscribe(func(ev Event) {
		if _, ok := ev.(ProfileChanged); ok {
			profiles++
		}
	})

	bus.Publish(ProfileChanged{ProfileID: "a"})
	bus.Publish(ConfigChanged{})
	assert.Equal(t, 1, profiles)
}
