package realtime

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeSubscriber struct {
	id       string
	userID   string
	payloads [][]byte
	fail     bool
}

func (f *fakeSubscriber) ID() string     { return f.id }
func (f *fakeSubscriber) UserID() string { return f.userID }

func (f *fakeSubscriber) Send(payload []byte) error {
	if f.fail {
		return errors.New("closed")
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

func TestPublishReachesRoomMembers(t *testing.T) {
	bus := NewBus()
	alice := &fakeSubscriber{id: "c1", userID: "alice"}
	bob := &fakeSubscriber{id: "c2", userID: "bob"}

	bus.Subscribe(alice, "conv-1")
	bus.Subscribe(bob, "conv-1")

	delivered := bus.Publish("conv-1", []byte("hello"), "")
	assert.Equal(t, 2, delivered)
	assert.Len(t, alice.payloads, 1)
	assert.Len(t, bob.payloads, 1)
}

func TestPublishExcludesUser(t *testing.T) {
	bus := NewBus()
	alice := &fakeSubscriber{id: "c1", userID: "alice"}
	bob := &fakeSubscriber{id: "c2", userID: "bob"}

	bus.Subscribe(alice, "conv-1")
	bus.Subscribe(bob, "conv-1")

	delivered := bus.Publish("conv-1", []byte("typing"), "alice")
	assert.Equal(t, 1, delivered)
	assert.Empty(t, alice.payloads)
	assert.Len(t, bob.payloads, 1)
}

func TestPublishEmptyRoom(t *testing.T) {
	bus := NewBus()
	assert.Equal(t, 0, bus.Publish("conv-none", []byte("x"), ""))
}

func TestSubscribedTracksMembership(t *testing.T) {
	bus := NewBus()
	alice := &fakeSubscriber{id: "c1", userID: "alice"}

	assert.False(t, bus.Subscribed(alice, "conv-1"))

	bus.Subscribe(alice, "conv-1")
	assert.True(t, bus.Subscribed(alice, "conv-1"))
	assert.False(t, bus.Subscribed(alice, "conv-2"))

	bus.Unsubscribe(alice, "conv-1")
	assert.False(t, bus.Subscribed(alice, "conv-1"))
}

func TestPublishCountsOnlyAcceptedDeliveries(t *testing.T) {
	bus := NewBus()
	ok := &fakeSubscriber{id: "c1", userID: "alice"}
	broken := &fakeSubscriber{id: "c2", userID: "bob", fail: true}

	bus.Subscribe(ok, "conv-1")
	bus.Subscribe(broken, "conv-1")

	assert.Equal(t, 1, bus.Publish("conv-1", []byte("x"), ""))
}

func TestSubscribeIsIdempotent(t *testing.T) {
	bus := NewBus()
	alice := &fakeSubscriber{id: "c1", userID: "alice"}

	bus.Subscribe(alice, "conv-1")
	bus.Subscribe(alice, "conv-1")

	assert.Equal(t, 1, bus.Publish("conv-1", []byte("x"), ""))
	assert.Len(t, alice.payloads, 1)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()
	alice := &fakeSubscriber{id: "c1", userID: "alice"}

	bus.Subscribe(alice, "conv-1")
	bus.Unsubscribe(alice, "conv-1")
	bus.Unsubscribe(alice, "conv-1")

	assert.Equal(t, 0, bus.Publish("conv-1", []byte("x"), ""))
}

func TestDisconnectLeavesAllRooms(t *testing.T) {
	bus := NewBus()
	alice := &fakeSubscriber{id: "c1", userID: "alice"}

	bus.Subscribe(alice, "conv-1")
	bus.Subscribe(alice, "conv-2")
	assert.Equal(t, 1, bus.Subscribers())

	bus.Disconnect(alice)
	bus.Disconnect(alice)

	assert.Equal(t, 0, bus.Publish("conv-1", []byte("x"), ""))
	assert.Equal(t, 0, bus.Publish("conv-2", []byte("x"), ""))
	assert.Equal(t, 0, bus.Subscribers())
}
