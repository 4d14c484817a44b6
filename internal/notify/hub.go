package notify

import (
	"sync"
)

const subscriberBuffer = 16

// Publisher is the write side of change notifications. Services publish
// through it after every committed store mutation.
type Publisher interface {
	Publish(ev Event) error
}

// Hub is an in-process fan-out of change events by topic. Delivery is
// best effort: a subscriber that stops draining loses events rather
// than blocking publishers. Subscribers tolerate that because every
// event only means "re-fetch", and the polling fallback re-fetches
// anyway.
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]chan Event
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[int]chan Event),
	}
}

// Subscribe registers interest in one topic. The returned cancel
// function removes the subscription and closes the channel; it is safe
// to call more than once.
func (h *Hub) Subscribe(topic string) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID

	ch := make(chan Event, subscriberBuffer)
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[int]chan Event)
	}
	h.subs[topic][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if subs, ok := h.subs[topic]; ok {
				if c, ok := subs[id]; ok {
					delete(subs, id)
					close(c)
				}
				if len(subs) == 0 {
					delete(h.subs, topic)
				}
			}
		})
	}

	return ch, cancel
}

// Publish fans the event out to the topic's current subscribers
// without blocking.
func (h *Hub) Publish(ev Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs[ev.Topic] {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

// Subscribers reports how many subscriptions a topic currently has.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topic])
}
