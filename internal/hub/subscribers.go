package hub

import (
	"sync"

	"github.com/google/uuid"
)

// Subscribers is a fan-out set of callbacks, removable by the handle
// returned from Add.
//
// Notification is synchronous: Notify invokes every live subscriber before
// returning. Ordering across subscribers is unspecified, but all subscribers
// observe the same value for a given notification.
type Subscribers[T any] struct {
	mu  sync.RWMutex
	fns map[string]func(T)
}

// NewSubscribers creates an empty subscriber set.
func NewSubscribers[T any]() *Subscribers[T] {
	return &Subscribers[T]{
		fns: make(map[string]func(T)),
	}
}

// Add registers fn and returns its removal handle. Replay of current state
// to a new subscriber is the owning component's responsibility, before or
// after Add as its contract requires.
func (s *Subscribers[T]) Add(fn func(T)) string {
	id := uuid.NewString()
	s.mu.Lock()
	s.fns[id] = fn
	s.mu.Unlock()
	return id
}

// Remove deletes the subscriber registered under id. Unknown ids are
// ignored.
func (s *Subscribers[T]) Remove(id string) {
	s.mu.Lock()
	delete(s.fns, id)
	s.mu.Unlock()
}

// Notify synchronously invokes every subscriber with v. The subscriber list
// is snapshotted under the lock, then callbacks run outside it so they may
// add or remove subscribers.
func (s *Subscribers[T]) Notify(v T) {
	s.mu.RLock()
	fns := make([]func(T), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Len returns the number of registered subscribers.
func (s *Subscribers[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.fns)
}
