// Package events fans user-scoped change notifications out to open
// sessions. Delivery is best effort: a slow subscriber loses events rather
// than holding up the tracker.
package events

import (
	"sync"

	"github.com/starpath-app/starpath/internal/domain"
	"github.com/starpath-app/starpath/internal/infra/metrics"
)

// Hub is a publisher that sessions can subscribe to.
type Hub interface {
	domain.EventPublisher
	// Subscribe returns a channel of the user's events and a cancel func
	// that closes it.
	Subscribe(userID string) (<-chan domain.Event, func())
}

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 32

type subscriber struct {
	ch chan domain.Event
}

// Memory is an in-process Hub.
type Memory struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]*subscriber
	nextID uint64
	buffer int
}

// NewMemory creates a hub whose subscribers each queue up to buffer events.
func NewMemory(buffer int) *Memory {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Memory{subs: make(map[string]map[uint64]*subscriber), buffer: buffer}
}

// Publish delivers ev to every subscriber of ev.UserID without blocking.
func (m *Memory) Publish(ev domain.Event) {
	metrics.EventsPublished.WithLabelValues(string(ev.Type)).Inc()
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.subs[ev.UserID] {
		select {
		case s.ch <- ev:
		default:
			metrics.EventsDropped.Inc()
		}
	}
}

// Subscribe registers a session for userID.
func (m *Memory) Subscribe(userID string) (<-chan domain.Event, func()) {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	s := &subscriber{ch: make(chan domain.Event, m.buffer)}
	if m.subs[userID] == nil {
		m.subs[userID] = make(map[uint64]*subscriber)
	}
	m.subs[userID][id] = s
	m.mu.Unlock()
	metrics.Subscribers.Inc()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs[userID], id)
			if len(m.subs[userID]) == 0 {
				delete(m.subs, userID)
			}
			close(s.ch)
			m.mu.Unlock()
			metrics.Subscribers.Dec()
		})
	}
	return s.ch, cancel
}

// SubscriberCount returns the number of open subscriptions.
func (m *Memory) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, set := range m.subs {
		n += len(set)
	}
	return n
}
