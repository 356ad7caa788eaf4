package config

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/infodancer/session"

	// Drivers selectable from the configuration file.
	_ "github.com/infodancer/session/imapstore"
	_ "github.com/infodancer/session/ldap"
	_ "github.com/infodancer/session/passwd"
	_ "github.com/infodancer/session/store/badger"
	_ "github.com/infodancer/session/store/memory"
	_ "github.com/infodancer/session/store/redis"
)

// Stack is a factory chain built from a Config together with the
// collaborators it owns.
type Stack struct {
	Factory   session.Factory
	Directory session.Directory
	Storage   session.SessionStorage // nil when caching is disabled
	Metrics   *session.Metrics       // nil when metrics are disabled
}

// Open opens the configured directory and session storage and wraps a base
// factory for auth in the configured decorators. From the inside out:
//
//	Constructor → Validated → Anonymous → Logged → Instrumented
//
// registry receives the metrics when they are enabled; it may be nil.
// The caller must Close the returned Stack.
func Open(cfg *Config, auth session.Auth, logger *slog.Logger, registry prometheus.Registerer) (*Stack, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dir, err := session.OpenDirectory(session.DirectoryConfig{
		Type:    cfg.Directory.Type,
		Backend: cfg.Directory.Backend,
		Options: cfg.Directory.Options,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open directory: %w", err)
	}

	st := &Stack{Directory: dir}
	if cfg.Store.Type != "" && cfg.Store.Type != "none" {
		st.Storage, err = session.OpenStore(session.StoreConfig{
			Type:    cfg.Store.Type,
			Backend: cfg.Store.Backend,
			Options: cfg.Store.storeOptions(),
			Logger:  logger,
		})
		if err != nil {
			_ = dir.Close()
			return nil, fmt.Errorf("open session store: %w", err)
		}
	}

	if cfg.Metrics.Enabled {
		st.Metrics = session.NewMetrics(registry)
	}

	base := session.NewConstructor(dir, auth, session.Config(cfg.Session), st.Storage).
		WithValidator(session.NewLoggedValidator(session.DefaultValidator(dir), logger)).
		WithLogger(logger).
		WithMetrics(st.Metrics)
	var f session.Factory = base

	if v := cfg.validator(dir); v != nil {
		f = session.NewValidated(f, session.NewLoggedValidator(v, logger)).
			WithLogger(logger).
			WithMetrics(st.Metrics)
	}
	if cfg.Anonymous.ID != "" {
		f = session.NewAnonymous(f, cfg.Anonymous.ID, cfg.Anonymous.Password)
	}
	f = session.NewLogged(f, logger)
	if st.Metrics != nil {
		f = session.NewInstrumented(f, st.Metrics)
	}
	st.Factory = f

	logger.Debug("session factory ready",
		slog.String("directory", cfg.Directory.Type),
		slog.String("store", cfg.Store.Type),
		slog.Bool("anonymous", cfg.Anonymous.ID != ""),
		slog.Bool("metrics", st.Metrics != nil))

	return st, nil
}

// validator returns the validator for restored sessions, or nil when the
// base factory's DefaultValidator is all that is configured.
func (c *Config) validator(dir session.Directory) session.Validator {
	maxAge, _ := c.maxAge()
	if maxAge == 0 && !c.Validation.Directory {
		return nil
	}
	validators := []session.Validator{session.DefaultValidator(dir)}
	if maxAge > 0 {
		validators = append(validators, session.MaxAgeValidator{MaxAge: maxAge})
	}
	if c.Validation.Directory {
		validators = append(validators, session.DirectoryValidator{Directory: dir})
	}
	return session.AllOf(validators...)
}

// Close releases the session storage and the directory.
func (s *Stack) Close() error {
	var errs []error
	if s.Storage != nil {
		if err := s.Storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close session store: %w", err))
		}
	}
	if s.Directory != nil {
		if err := s.Directory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close directory: %w", err))
		}
	}
	return errors.Join(errs...)
}
