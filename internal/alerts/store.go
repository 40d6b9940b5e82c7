// Package alerts implements the shared grid-incident broadcast store:
// sessions subscribe to receive alerts, and the grid signal adapter
// is the sole production caller of BroadcastErr/BroadcastResolved.
package alerts

import (
	"sync"
)

// EventKind tags a pub/sub event delivered to a session's receiver.
type EventKind int

const (
	// EventPowerGridError carries a newly raised grid incident.
	EventPowerGridError EventKind = iota
	// EventPowerGridErrorResolved signals the standing incident cleared.
	EventPowerGridErrorResolved
)

// Alert is a grid-incident notification.
type Alert struct {
	Error string `json:"error"`
}

// Event is one message delivered on a session's receiver channel.
type Event struct {
	Kind  EventKind
	Alert Alert
}

// receiverCapacity is the per-subscriber buffer depth (C >= 2 in
// spec.md §3). A subscriber that cannot keep up with that much
// buffering is lagging and its channel is closed so the session
// observes a non-ok receive and terminates, per spec.md §4.C.
const receiverCapacity = 2

// MetricsHooks lets a caller observe store activity without the
// store importing a metrics backend directly, following
// pkg/cache.MetricsHooks.
type MetricsHooks struct {
	OnSubscriberCountChanged func(count int)
	OnBroadcast              func()
}

// Store tracks the set of subscribed session ids, the current
// unresolved grid incident (if any), and fans broadcasts out to every
// subscriber's own buffered channel.
//
// Grounded on api_realtime/internal/websocket/hub.go's Hub: a
// map of registered clients guarded by a single RWMutex, generalized
// from a hub-wide broadcast channel to one channel per subscriber so
// that a lagging subscriber can be detected and dropped individually.
type Store struct {
	mu           sync.RWMutex
	subscribers  map[string]chan Event
	currentAlert *Alert
	metrics      MetricsHooks
}

// New builds an empty alert store with no metrics observation.
func New() *Store {
	return NewWithMetrics(MetricsHooks{})
}

// NewWithMetrics builds an empty alert store reporting through hooks.
func NewWithMetrics(hooks MetricsHooks) *Store {
	return &Store{subscribers: make(map[string]chan Event), metrics: hooks}
}

func (s *Store) reportSubscriberCount() {
	if s.metrics.OnSubscriberCountChanged != nil {
		s.metrics.OnSubscriberCountChanged(len(s.subscribers))
	}
}

// Subscribe registers cid as an active session. It returns the
// currently-standing unresolved alert (nil if none) for immediate
// replay, and a receiver channel for future broadcasts. If cid is
// already subscribed, ok is false and the other return values are
// zero.
func (s *Store) Subscribe(cid string) (replay *Alert, receiver <-chan Event, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.subscribers[cid]; exists {
		return nil, nil, false
	}
	ch := make(chan Event, receiverCapacity)
	s.subscribers[cid] = ch
	s.reportSubscriberCount()
	return s.currentAlert, ch, true
}

// Unsubscribe removes cid from the active set. Idempotent.
func (s *Store) Unsubscribe(cid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, exists := s.subscribers[cid]; exists {
		delete(s.subscribers, cid)
		close(ch)
		s.reportSubscriberCount()
	}
}

// BroadcastErr publishes a new grid incident to every subscriber and
// records it as the current unresolved alert.
func (s *Store) BroadcastErr(msg string) {
	alert := Alert{Error: msg}
	s.publish(&alert, Event{Kind: EventPowerGridError, Alert: alert})
}

// BroadcastResolved clears the current unresolved alert and notifies
// every subscriber.
func (s *Store) BroadcastResolved() {
	s.publish(nil, Event{Kind: EventPowerGridErrorResolved})
}

// publish records current as the new standing alert and fans ev out to
// every current subscriber, all under one lock acquisition so a
// concurrent Subscribe can never observe the updated standing alert and
// then also receive ev as a second, duplicate delivery of the same
// incident. A subscriber whose buffer is full is lagging: its channel
// is closed and it is dropped from the active set, rather than blocking
// the broadcaster on a slow reader.
func (s *Store) publish(current *Alert, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentAlert = current
	lagged := false
	for cid, ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			delete(s.subscribers, cid)
			close(ch)
			lagged = true
		}
	}
	if lagged {
		s.reportSubscriberCount()
	}
	if s.metrics.OnBroadcast != nil {
		s.metrics.OnBroadcast()
	}
}

// ActiveSubscribers reports the number of currently subscribed sessions.
func (s *Store) ActiveSubscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}
