package session

import "context"

// AnonymousSession decorates a Session so that it authenticates towards other
// services as a fixed anonymous identity. Identity accessors still report the
// wrapped session's values.
type AnonymousSession struct {
	Session
	id       string
	password string
}

// NewAnonymousSession wraps s with the anonymous identity id and password.
func NewAnonymousSession(s Session, id, password string) *AnonymousSession {
	return &AnonymousSession{Session: s, id: id, password: password}
}

// Connect connects the wrapped session. A session without a user id that is
// connected without explicit credentials connects as the anonymous user.
func (s *AnonymousSession) Connect(ctx context.Context, creds *Credentials) error {
	if creds == nil && s.Session.ID() == "" {
		s.Session.SetID(s.id)
		return s.Session.Connect(ctx, &Credentials{ID: s.id, Password: s.password})
	}
	return s.Session.Connect(ctx, creds)
}

// Credentials returns the anonymous identity.
func (s *AnonymousSession) Credentials() Credentials {
	return Credentials{ID: s.id, Password: s.password}
}

// Storage returns the wrapped session's storage handle, logging in as the
// anonymous identity.
func (s *AnonymousSession) Storage() (*StorageHandle, error) {
	h, err := s.Session.Storage()
	if err != nil {
		return nil, err
	}
	return h.WithCredentials(s.Credentials()), nil
}

// Anonymous is a Factory decorator that adds an anonymous user to the
// sessions it creates.
//
// Only CreateSession is affected. GetSession is passed through to the inner
// factory, so sessions restored from session storage are not wrapped.
type Anonymous struct {
	factory  Factory
	id       string
	password string
}

// NewAnonymous wraps f with the anonymous identity id and password.
func NewAnonymous(f Factory, id, password string) *Anonymous {
	return &Anonymous{factory: f, id: id, password: password}
}

func (d *Anonymous) Server() Directory {
	return d.factory.Server()
}

func (d *Anonymous) SessionAuth() Auth {
	return d.factory.SessionAuth()
}

func (d *Anonymous) SessionConfiguration() Config {
	return d.factory.SessionConfiguration()
}

func (d *Anonymous) SessionStorage() SessionStorage {
	return d.factory.SessionStorage()
}

func (d *Anonymous) SessionValidator(s Session, auth Auth) Validator {
	return d.factory.SessionValidator(s, auth)
}

func (d *Anonymous) Validate(ctx context.Context, s Session) bool {
	return d.factory.Validate(ctx, s)
}

// CreateSession creates a session through the inner factory and wraps it in
// an AnonymousSession. When nobody is logged in the inner factory cannot
// connect a session; the session is then built from the inner factory's
// collaborators and connected as the anonymous user. Decorators inside
// Anonymous do not see that session; decorators outside it do.
func (d *Anonymous) CreateSession(ctx context.Context) (Session, error) {
	s, err := d.factory.CreateSession(ctx)
	if err == nil {
		return NewAnonymousSession(s, d.id, d.password), nil
	}
	if auth := d.factory.SessionAuth(); auth != nil && auth.Credentials().ID != "" {
		return nil, err
	}

	guest := NewAnonymousSession(New(d.factory.Server(), d.factory.SessionAuth(), d.factory.SessionConfiguration()), d.id, d.password)
	if err := guest.Connect(ctx, nil); err != nil {
		return nil, err
	}
	return guest, nil
}

func (d *Anonymous) GetSession(ctx context.Context) (Session, error) {
	return d.factory.GetSession(ctx)
}
