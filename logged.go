package session

import (
	"context"
	"log/slog"
)

// LoggedSession decorates a Session with logging of connect attempts.
type LoggedSession struct {
	Session
	logger *slog.Logger
}

// NewLoggedSession wraps s. A nil logger uses slog.Default().
func NewLoggedSession(s Session, logger *slog.Logger) *LoggedSession {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggedSession{Session: s, logger: logger}
}

// Connect connects the wrapped session and logs the outcome.
func (s *LoggedSession) Connect(ctx context.Context, creds *Credentials) error {
	if err := s.Session.Connect(ctx, creds); err != nil {
		s.logger.Warn("session connect failed",
			slog.String("user", s.Session.ID()),
			slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("session connected", slog.String("user", s.Session.ID()))
	return nil
}

// Logged is a Factory decorator that logs session creation and retrieval,
// and wraps the sessions it returns in LoggedSession.
//
// Restore decisions are made by whichever factory owns GetSession, so Logged
// does not see them. Wrap the validator with NewLoggedValidator to log them.
type Logged struct {
	factory Factory
	logger  *slog.Logger
}

// NewLogged wraps f. A nil logger uses slog.Default().
func NewLogged(f Factory, logger *slog.Logger) *Logged {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logged{factory: f, logger: logger}
}

func (d *Logged) Server() Directory {
	return d.factory.Server()
}

func (d *Logged) SessionAuth() Auth {
	return d.factory.SessionAuth()
}

func (d *Logged) SessionConfiguration() Config {
	return d.factory.SessionConfiguration()
}

func (d *Logged) SessionStorage() SessionStorage {
	return d.factory.SessionStorage()
}

func (d *Logged) SessionValidator(s Session, auth Auth) Validator {
	return d.factory.SessionValidator(s, auth)
}

func (d *Logged) Validate(ctx context.Context, s Session) bool {
	return d.factory.Validate(ctx, s)
}

func (d *Logged) CreateSession(ctx context.Context) (Session, error) {
	s, err := d.factory.CreateSession(ctx)
	if err != nil {
		d.logger.Warn("failed to create session",
			slog.String("user", d.currentUser()),
			slog.String("error", err.Error()))
		return nil, err
	}
	d.logger.Info("created session", slog.String("user", s.ID()))
	return NewLoggedSession(s, d.logger), nil
}

func (d *Logged) GetSession(ctx context.Context) (Session, error) {
	s, err := d.factory.GetSession(ctx)
	if err != nil {
		d.logger.Warn("failed to get session",
			slog.String("user", d.currentUser()),
			slog.String("error", err.Error()))
		return nil, err
	}
	d.logger.Debug("got session", slog.String("user", s.ID()))
	return NewLoggedSession(s, d.logger), nil
}

func (d *Logged) currentUser() string {
	if auth := d.factory.SessionAuth(); auth != nil {
		return auth.Credentials().ID
	}
	return ""
}

// loggedValidator logs the decisions of a Validator.
type loggedValidator struct {
	validator Validator
	logger    *slog.Logger
}

// NewLoggedValidator wraps v so that every decision is logged at debug level
// and rejections at info level. A nil logger uses slog.Default().
func NewLoggedValidator(v Validator, logger *slog.Logger) Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return loggedValidator{validator: v, logger: logger}
}

func (v loggedValidator) IsValid(ctx context.Context, s Session, auth Auth) bool {
	valid := v.validator.IsValid(ctx, s, auth)
	v.logger.Debug("session validator decision",
		slog.String("user", s.ID()),
		slog.Bool("valid", valid))
	if !valid {
		v.logger.Info("session invalid", slog.String("user", s.ID()))
	}
	return valid
}
