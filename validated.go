package session

import (
	"context"
	"log/slog"
)

// Validated is a Factory decorator that replaces the validator of the inner
// factory. Its GetSession applies the restore-before-create policy with the
// replacement validator and creates sessions through the inner factory.
type Validated struct {
	factory   Factory
	validator Validator
	logger    *slog.Logger
	metrics   *Metrics
}

// NewValidated wraps f so that restored sessions are checked with v.
func NewValidated(f Factory, v Validator) *Validated {
	return &Validated{factory: f, validator: v, logger: slog.Default()}
}

// WithLogger sets the logger for recovered storage and validation failures.
func (d *Validated) WithLogger(logger *slog.Logger) *Validated {
	if logger != nil {
		d.logger = logger
	}
	return d
}

// WithMetrics records restore outcomes in m.
func (d *Validated) WithMetrics(m *Metrics) *Validated {
	d.metrics = m
	return d
}

func (d *Validated) Server() Directory {
	return d.factory.Server()
}

func (d *Validated) SessionAuth() Auth {
	return d.factory.SessionAuth()
}

func (d *Validated) SessionConfiguration() Config {
	return d.factory.SessionConfiguration()
}

func (d *Validated) SessionStorage() SessionStorage {
	return d.factory.SessionStorage()
}

// SessionValidator returns the replacement validator.
func (d *Validated) SessionValidator(_ Session, _ Auth) Validator {
	return d.validator
}

// Validate checks s with the replacement validator.
func (d *Validated) Validate(ctx context.Context, s Session) bool {
	auth := d.factory.SessionAuth()
	return d.SessionValidator(s, auth).IsValid(ctx, s, auth)
}

func (d *Validated) CreateSession(ctx context.Context) (Session, error) {
	return d.factory.CreateSession(ctx)
}

// GetSession restores a stored session that passes the replacement validator
// or creates and stores a new one.
func (d *Validated) GetSession(ctx context.Context) (Session, error) {
	return restorer{logger: d.logger, metrics: d.metrics}.getSession(ctx, d)
}
