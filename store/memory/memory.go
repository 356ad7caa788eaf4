// Package memory provides an in-process session storage driver.
// Entries live as long as the process and expire after the configured ttl.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/infodancer/session"
	"github.com/infodancer/session/store"
)

type entry struct {
	attrs   session.Attributes
	expires time.Time
}

// Store is an expiring in-memory SessionStorage.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// New creates a Store whose entries expire ttl after they were saved.
// A zero ttl keeps entries until they are deleted.
func New(ttl time.Duration) *Store {
	return &Store{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Load returns the attributes saved for id, or nil, nil if there are none
// or they have expired.
func (s *Store) Load(ctx context.Context, id string) (*session.Attributes, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.Failure("load", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, nil
	}
	if s.expired(e) {
		delete(s.entries, id)
		return nil, nil
	}
	attrs := e.attrs
	return &attrs, nil
}

// Save stores a copy of attrs for id, replacing any earlier entry.
func (s *Store) Save(ctx context.Context, id string, attrs *session.Attributes) error {
	if err := ctx.Err(); err != nil {
		return store.Failure("save", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := entry{attrs: *attrs}
	if s.ttl > 0 {
		e.expires = s.now().Add(s.ttl)
	}
	s.entries[id] = e
	return nil
}

// Delete removes the entry for id.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return store.Failure("delete", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

// Purge drops all expired entries and returns how many were removed.
func (s *Store) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	for id, e := range s.entries {
		if s.expired(e) {
			delete(s.entries, id)
			n++
		}
	}
	return n
}

// Close drops all entries.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]entry)
	return nil
}

func (s *Store) expired(e entry) bool {
	return !e.expires.IsZero() && !s.now().Before(e.expires)
}

func init() {
	session.RegisterStore("memory", func(cfg session.StoreConfig) (session.SessionStorage, error) {
		settings, err := store.ParseSettings(cfg.Options)
		if err != nil {
			return nil, err
		}
		return New(settings.TTL), nil
	})
}
