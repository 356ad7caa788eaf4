// Package session builds per-request groupware user sessions.
//
// A Session authenticates a user against a Directory once, caches the
// resolved identity attributes (mail address, uid, display name, IMAP and
// free/busy hosts) and hands out a handle to the user's storage backend.
// Sessions are produced by a Factory, which either restores a cached
// attribute set from SessionStorage or connects a fresh session. Factory and
// Session decorators add optional behaviour (anonymous fallback, validator
// override, logging, metrics) without changing the contract callers see.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/infodancer/session/errors"
)

// Session holds one user's resolved identity for the duration of a request.
//
// A Session is not safe for concurrent use; Connect is a one-shot operation
// that callers must serialize.
type Session interface {
	// Connect authenticates against the directory and resolves the identity
	// attributes. With nil credentials the Auth collaborator's credentials are
	// used. Connecting again with identical credentials is a no-op.
	Connect(ctx context.Context, creds *Credentials) error

	// ID returns the user id used for connecting the session.
	ID() string

	// SetID sets the user id to connect with.
	SetID(id string)

	// Mail returns the user's mail address.
	Mail() (string, error)

	// UID returns the user's unique directory id.
	UID() (string, error)

	// Name returns the user's display name.
	Name() (string, error)

	// ImapServer returns the IMAP host for the user.
	ImapServer() (string, error)

	// FreebusyServer returns the free/busy host for the user.
	FreebusyServer() (string, error)

	// Storage returns a handle to the user's storage backend.
	Storage() (*StorageHandle, error)

	// Credentials returns the identity the session authenticates with when
	// it talks to other services.
	Credentials() Credentials

	// Attributes returns a copy of the resolved attribute set.
	Attributes() (*Attributes, error)

	// Connected reports whether the attributes have been resolved.
	Connected() bool
}

// Error is returned by session and factory operations. Err carries one of
// the sentinel errors of the errors package, possibly wrapped.
type Error struct {
	Op  string
	ID  string
	Err error
}

func (e *Error) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("session: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("session: %s %s: %v", e.Op, e.ID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// baseSession is the Session backed directly by a Directory.
type baseSession struct {
	directory Directory
	auth      Auth
	config    Config

	id    string
	creds Credentials
	attrs *Attributes
}

// New returns an unconnected session. The user id may be set with SetID
// before connecting; otherwise the id of the connect credentials is used.
func New(dir Directory, auth Auth, cfg Config) Session {
	return &baseSession{directory: dir, auth: auth, config: cfg}
}

// Restore returns a session that is already connected with attrs, typically
// read back from SessionStorage. The session authenticates with the Auth
// collaborator's current credentials.
func Restore(dir Directory, auth Auth, cfg Config, id string, attrs *Attributes) Session {
	s := &baseSession{directory: dir, auth: auth, config: cfg, id: id}
	if auth != nil {
		s.creds = auth.Credentials()
	}
	if attrs != nil {
		cp := *attrs
		s.attrs = &cp
	}
	return s
}

func (s *baseSession) Connect(ctx context.Context, creds *Credentials) error {
	var c Credentials
	switch {
	case creds != nil:
		c = *creds
	case s.auth != nil:
		c = s.auth.Credentials()
	}

	id := s.id
	if id == "" {
		id = c.ID
	}
	if id == "" {
		return &Error{Op: "connect", Err: fmt.Errorf("%w: no user id", errors.ErrAuthenticationFailed)}
	}
	c.ID = id

	if s.attrs != nil && s.creds.equal(c) {
		return nil
	}

	if err := s.directory.Authenticate(ctx, id, c.Password); err != nil {
		return &Error{Op: "connect", ID: id, Err: directoryError(ctx, err)}
	}
	attrs, err := s.directory.Lookup(ctx, id)
	if err != nil {
		return &Error{Op: "connect", ID: id, Err: directoryError(ctx, err)}
	}
	if attrs == nil {
		return &Error{Op: "connect", ID: id, Err: fmt.Errorf("%w: empty directory entry", errors.ErrUserNotFound)}
	}

	if s.attrs != nil && attrs.UID != s.attrs.UID {
		return &Error{Op: "connect", ID: id, Err: fmt.Errorf("%w: directory resolved uid %q, session holds %q",
			errors.ErrValidationFailed, attrs.UID, s.attrs.UID)}
	}

	resolved := *attrs
	if resolved.ResolvedAt.IsZero() {
		resolved.ResolvedAt = time.Now()
	}
	s.id = id
	s.creds = c
	s.attrs = &resolved
	return nil
}

// directoryError maps context expiry to ErrDirectoryUnavailable so callers
// can select on the kind.
func directoryError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", errors.ErrDirectoryUnavailable, err)
	}
	return err
}

func (s *baseSession) ID() string {
	return s.id
}

func (s *baseSession) SetID(id string) {
	s.id = id
}

func (s *baseSession) get(field func(*Attributes) string) (string, error) {
	if s.attrs == nil {
		return "", &Error{Op: "get", ID: s.id, Err: errors.ErrNotConnected}
	}
	return field(s.attrs), nil
}

func (s *baseSession) Mail() (string, error) {
	return s.get(func(a *Attributes) string { return a.Mail })
}

func (s *baseSession) UID() (string, error) {
	return s.get(func(a *Attributes) string { return a.UID })
}

func (s *baseSession) Name() (string, error) {
	return s.get(func(a *Attributes) string { return a.Name })
}

func (s *baseSession) ImapServer() (string, error) {
	return s.get(func(a *Attributes) string { return a.ImapServer })
}

func (s *baseSession) FreebusyServer() (string, error) {
	return s.get(func(a *Attributes) string { return a.FreebusyServer })
}

func (s *baseSession) Storage() (*StorageHandle, error) {
	if s.attrs == nil {
		return nil, &Error{Op: "storage", ID: s.id, Err: errors.ErrNotConnected}
	}
	return &StorageHandle{
		driver: s.config.Get(ConfigStorageDriver, DefaultStorageDriver),
		host:   s.attrs.ImapServer,
		creds:  s.creds,
		config: s.config,
	}, nil
}

func (s *baseSession) Credentials() Credentials {
	return s.creds
}

func (s *baseSession) Attributes() (*Attributes, error) {
	if s.attrs == nil {
		return nil, &Error{Op: "attributes", ID: s.id, Err: errors.ErrNotConnected}
	}
	cp := *s.attrs
	return &cp, nil
}

func (s *baseSession) Connected() bool {
	return s.attrs != nil
}
