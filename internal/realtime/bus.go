package realtime

import "sync"

// Subscriber is one live endpoint of the fan-out bus. Connection implements it;
// tests substitute fakes.
type Subscriber interface {
	ID() string
	UserID() string
	Send(payload []byte) error
}

// Bus maintains which live subscribers follow which conversation and fans
// events out to them. It is constructed once per process and passed to
// handlers explicitly. Delivery is best effort: a subscriber that fails to
// accept a payload loses only its own copy.
type Bus struct {
	mu          sync.RWMutex
	rooms       map[string]map[string]Subscriber // conversationID -> subscriberID -> subscriber
	memberships map[string]map[string]struct{}   // subscriberID -> set of conversationIDs
	subscribers map[string]Subscriber            // subscriberID -> subscriber
}

// NewBus constructs an empty Bus.
func NewBus() *Bus {
	return &Bus{
		rooms:       make(map[string]map[string]Subscriber),
		memberships: make(map[string]map[string]struct{}),
		subscribers: make(map[string]Subscriber),
	}
}

// Subscribe adds sub to the conversation's room. Subscribing an already
// subscribed pair is a no-op.
func (b *Bus) Subscribe(sub Subscriber, conversationID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribers[sub.ID()] = sub

	room := b.rooms[conversationID]
	if room == nil {
		room = make(map[string]Subscriber)
		b.rooms[conversationID] = room
	}
	room[sub.ID()] = sub

	members := b.memberships[sub.ID()]
	if members == nil {
		members = make(map[string]struct{})
		b.memberships[sub.ID()] = members
	}
	members[conversationID] = struct{}{}
}

// Unsubscribe removes sub from the conversation's room. Unsubscribing an
// unsubscribed pair is a no-op.
func (b *Bus) Unsubscribe(sub Subscriber, conversationID string) {
	b.mu.Lock()
	b.leaveLocked(conversationID, sub.ID())
	b.mu.Unlock()
}

// Publish delivers payload to every subscriber of the conversation at the
// moment of the call, skipping excludeUserID when non-empty. Returns how many
// subscribers accepted the payload. Zero subscribers is not an error.
func (b *Bus) Publish(conversationID string, payload []byte, excludeUserID string) int {
	b.mu.RLock()
	room := b.rooms[conversationID]
	if len(room) == 0 {
		b.mu.RUnlock()
		return 0
	}

	delivered := 0
	for _, sub := range room {
		if excludeUserID != "" && sub.UserID() == excludeUserID {
			continue
		}
		if err := sub.Send(payload); err == nil {
			delivered++
		}
	}
	b.mu.RUnlock()
	return delivered
}

// Subscribed reports whether sub currently belongs to the conversation's room.
func (b *Bus) Subscribed(sub Subscriber, conversationID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.memberships[sub.ID()][conversationID]
	return ok
}

// Disconnect removes sub from every room it joined; idempotent.
func (b *Bus) Disconnect(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for conversationID := range b.memberships[sub.ID()] {
		b.leaveLocked(conversationID, sub.ID())
	}
	delete(b.memberships, sub.ID())
	delete(b.subscribers, sub.ID())
}

// Subscribers reports how many live subscribers the bus tracks.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

func (b *Bus) leaveLocked(conversationID, subscriberID string) {
	room := b.rooms[conversationID]
	if room == nil {
		return
	}
	delete(room, subscriberID)
	if len(room) == 0 {
		delete(b.rooms, conversationID)
	}
	if members, ok := b.memberships[subscriberID]; ok {
		delete(members, conversationID)
		if len(members) == 0 {
			delete(b.memberships, subscriberID)
		}
	}
}
