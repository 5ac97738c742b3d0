// Package session provides an in-memory, TTL-bounded store of open page sessions.
package session

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Closer is implemented by page controllers. Close marks the page torn down.
type Closer interface {
	Close()
}

type entry[T Closer] struct {
	page     T
	lastSeen time.Time
}

// Store holds pages keyed by ULID. Idle sessions expire after ttl.
type Store[T Closer] struct {
	mu    sync.RWMutex
	pages map[string]*entry[T]
	ttl   time.Duration
	now   func() time.Time
}

// New initializes a Store. A non-positive ttl disables expiry.
func New[T Closer](ttl time.Duration) *Store[T] {
	return &Store[T]{
		pages: make(map[string]*entry[T]),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Create stores page under a fresh id and returns the id.
func (s *Store[T]) Create(page T) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	id := ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
	s.pages[id] = &entry[T]{page: page, lastSeen: now}
	return id
}

// Get returns the page for id and refreshes its idle timer.
func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.pages[id]
	if !ok || s.expired(e) {
		var zero T
		return zero, false
	}
	e.lastSeen = s.now()
	return e.page, true
}

// Delete closes and removes the page. It reports whether the id existed.
func (s *Store[T]) Delete(id string) bool {
	s.mu.Lock()
	e, ok := s.pages[id]
	delete(s.pages, id)
	s.mu.Unlock()
	if ok {
		e.page.Close()
	}
	return ok
}

// Sweep closes and removes every expired page and returns how many were removed.
func (s *Store[T]) Sweep() int {
	var stale []T
	s.mu.Lock()
	for id, e := range s.pages {
		if s.expired(e) {
			stale = append(stale, e.page)
			delete(s.pages, id)
		}
	}
	s.mu.Unlock()
	for _, p := range stale {
		p.Close()
	}
	return len(stale)
}

// CloseAll closes and removes every page.
func (s *Store[T]) CloseAll() {
	s.mu.Lock()
	pages := s.pages
	s.pages = make(map[string]*entry[T])
	s.mu.Unlock()
	for _, e := range pages {
		e.page.Close()
	}
}

// Len returns the number of stored pages, including expired ones not yet swept.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pages)
}

// caller must hold s.mu
func (s *Store[T]) expired(e *entry[T]) bool {
	return s.ttl > 0 && s.now().Sub(e.lastSeen) > s.ttl
}
