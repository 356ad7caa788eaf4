package session

import (
	"context"
	"log/slog"
)

// Factory produces sessions from a directory, a credential handler, a
// configuration and a session storage. The base Constructor and every
// decorator implement it, so callers never depend on which variant they hold.
//
// Factories are shared across requests and must tolerate concurrent calls.
type Factory interface {
	// Server returns the directory connection.
	Server() Directory

	// SessionAuth returns the credential handler.
	SessionAuth() Auth

	// SessionConfiguration returns the session configuration parameters.
	SessionConfiguration() Config

	// SessionStorage returns the storage for resolved attribute sets.
	// May be nil when sessions are not cached.
	SessionStorage() SessionStorage

	// SessionValidator returns the validator to use for s and auth.
	SessionValidator(s Session, auth Auth) Validator

	// Validate reports whether s can still be trusted.
	Validate(ctx context.Context, s Session) bool

	// CreateSession connects a new session for the current user with a fresh
	// directory lookup. Session storage is never consulted.
	CreateSession(ctx context.Context) (Session, error)

	// GetSession returns a restored session if one is stored and still valid,
	// otherwise a newly created one, which is then stored.
	GetSession(ctx context.Context) (Session, error)
}

// Constructor is the base Factory. It receives all collaborators when it is
// constructed.
type Constructor struct {
	server    Directory
	auth      Auth
	config    Config
	storage   SessionStorage
	validator Validator
	logger    *slog.Logger
	metrics   *Metrics
}

// NewConstructor creates a base factory. storage may be nil to disable
// session caching. Restored sessions are checked with DefaultValidator unless
// WithValidator sets another validator.
func NewConstructor(server Directory, auth Auth, config Config, storage SessionStorage) *Constructor {
	return &Constructor{
		server:    server,
		auth:      auth,
		config:    config,
		storage:   storage,
		validator: DefaultValidator(server),
		logger:    slog.Default(),
	}
}

// WithValidator sets the validator for restored sessions.
// Returns the factory to allow chaining.
func (f *Constructor) WithValidator(v Validator) *Constructor {
	f.validator = v
	return f
}

// WithLogger sets the logger used for recovered storage and validation failures.
func (f *Constructor) WithLogger(logger *slog.Logger) *Constructor {
	if logger == nil {
		logger = slog.Default()
	}
	f.logger = logger
	return f
}

// WithMetrics records restore and store outcomes in m.
func (f *Constructor) WithMetrics(m *Metrics) *Constructor {
	f.metrics = m
	return f
}

func (f *Constructor) Server() Directory {
	return f.server
}

func (f *Constructor) SessionAuth() Auth {
	return f.auth
}

func (f *Constructor) SessionConfiguration() Config {
	return f.config
}

func (f *Constructor) SessionStorage() SessionStorage {
	return f.storage
}

func (f *Constructor) SessionValidator(_ Session, _ Auth) Validator {
	return f.validator
}

func (f *Constructor) Validate(ctx context.Context, s Session) bool {
	return f.SessionValidator(s, f.auth).IsValid(ctx, s, f.auth)
}

func (f *Constructor) CreateSession(ctx context.Context) (Session, error) {
	s := New(f.server, f.auth, f.config)
	if err := s.Connect(ctx, nil); err != nil {
		return nil, err
	}
	return s, nil
}

func (f *Constructor) GetSession(ctx context.Context) (Session, error) {
	return restorer{logger: f.logger, metrics: f.metrics}.getSession(ctx, f)
}

// restorer implements the restore-before-create policy shared by the base
// factory and the decorators that override GetSession.
type restorer struct {
	logger  *slog.Logger
	metrics *Metrics
}

// getSession restores the current user's session from f's storage if it is
// present and f validates it. Otherwise it creates a session through f and
// stores its attributes. Storage and validation failures are logged and
// never returned.
func (r restorer) getSession(ctx context.Context, f Factory) (Session, error) {
	logger := r.logger
	if logger == nil {
		logger = slog.Default()
	}

	var id string
	if auth := f.SessionAuth(); auth != nil {
		id = auth.Credentials().ID
	}
	storage := f.SessionStorage()

	if storage != nil && id != "" {
		if s := r.restore(ctx, f, storage, id, logger); s != nil {
			return s, nil
		}
	}

	s, err := f.CreateSession(ctx)
	if err != nil {
		return nil, err
	}

	if storage == nil {
		return s, nil
	}
	if id == "" {
		id = s.ID()
	}
	attrs, err := s.Attributes()
	if err != nil {
		return s, nil
	}
	if err := storage.Save(ctx, id, attrs); err != nil {
		r.metrics.observeStore(false)
		logger.Warn("failed to store session",
			slog.String("user", id),
			slog.String("error", err.Error()))
		return s, nil
	}
	r.metrics.observeStore(true)
	return s, nil
}

func (r restorer) restore(ctx context.Context, f Factory, storage SessionStorage, id string, logger *slog.Logger) Session {
	attrs, err := storage.Load(ctx, id)
	if err != nil {
		r.metrics.observeRestore(RestoreError)
		logger.Warn("failed to load stored session",
			slog.String("user", id),
			slog.String("error", err.Error()))
		return nil
	}
	if attrs == nil {
		r.metrics.observeRestore(RestoreMiss)
		return nil
	}

	s := Restore(f.Server(), f.SessionAuth(), f.SessionConfiguration(), id, attrs)
	if !f.Validate(ctx, s) {
		r.metrics.observeRestore(RestoreInvalid)
		logger.Debug("stored session failed validation", slog.String("user", id))
		return nil
	}
	r.metrics.observeRestore(RestoreHit)
	return s
}
