package session

import (
	"context"
	"sync"
	"time"

	sessionerrors "github.com/infodancer/session/errors"
)

// stubDirectory implements Directory for testing.
type stubDirectory struct {
	mu        sync.Mutex
	entries   map[string]*Attributes
	passwords map[string]string
	lookups   int
	lookupErr error
	lookupNil bool
	authErr   error
}

func newStubDirectory() *stubDirectory {
	return &stubDirectory{
		entries: map[string]*Attributes{
			"alice": {
				Mail:           "alice@example.com",
				UID:            "uid-alice",
				Name:           "Alice Example",
				ImapServer:     "imap.example.com",
				FreebusyServer: "fb.example.com",
				Version:        "1",
			},
			"bob": {
				Mail:           "bob@example.com",
				UID:            "uid-bob",
				Name:           "Bob Example",
				ImapServer:     "imap2.example.com",
				FreebusyServer: "fb.example.com",
				Version:        "1",
			},
			"anonymous": {
				Mail:           "anonymous@example.com",
				UID:            "uid-anonymous",
				Name:           "Anonymous",
				ImapServer:     "imap.example.com",
				FreebusyServer: "fb.example.com",
				Version:        "1",
			},
		},
		passwords: map[string]string{
			"alice":     "secret",
			"bob":       "hunter2",
			"anonymous": "pass",
		},
	}
}

func (d *stubDirectory) Lookup(_ context.Context, id string) (*Attributes, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lookups++
	if d.lookupErr != nil {
		return nil, d.lookupErr
	}
	if d.lookupNil {
		return nil, nil
	}
	a, ok := d.entries[id]
	if !ok {
		return nil, sessionerrors.ErrUserNotFound
	}
	cp := *a
	return &cp, nil
}

func (d *stubDirectory) Authenticate(_ context.Context, id, password string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.authErr != nil {
		return d.authErr
	}
	if pw, ok := d.passwords[id]; !ok || pw != password {
		return sessionerrors.ErrAuthenticationFailed
	}
	return nil
}

func (d *stubDirectory) Close() error {
	return nil
}

func (d *stubDirectory) lookupCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lookups
}

// stubStorage implements SessionStorage for testing.
type stubStorage struct {
	mu      sync.Mutex
	data    map[string]*Attributes
	loadErr error
	saveErr error
	saves   int
}

func newStubStorage() *stubStorage {
	return &stubStorage{data: make(map[string]*Attributes)}
}

func (s *stubStorage) Load(_ context.Context, id string) (*Attributes, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	a, ok := s.data[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (s *stubStorage) Save(_ context.Context, id string, attrs *Attributes) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	cp := *attrs
	s.data[id] = &cp
	return nil
}

func (s *stubStorage) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

func (s *stubStorage) Close() error {
	return nil
}

func (s *stubStorage) get(id string) *Attributes {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[id]
}

// cachedAlice is an attribute set that differs from what the stub directory
// resolves for alice, so tests can tell restored sessions from fresh ones.
func cachedAlice() *Attributes {
	return &Attributes{
		Mail:           "alice@example.com",
		UID:            "uid-alice",
		Name:           "Alice (cached)",
		ImapServer:     "imap-old.example.com",
		FreebusyServer: "fb-old.example.com",
		Version:        "0",
		ResolvedAt:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

var (
	alwaysValid   = ValidatorFunc(func(context.Context, Session, Auth) bool { return true })
	alwaysInvalid = ValidatorFunc(func(context.Context, Session, Auth) bool { return false })
)

var timeZero time.Time
