package session

import (
	"context"
	"time"
)

// Validator decides whether a session's cached attributes can still be
// trusted. Implementations must not modify the session and must be safe for
// concurrent use.
type Validator interface {
	IsValid(ctx context.Context, s Session, auth Auth) bool
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(ctx context.Context, s Session, auth Auth) bool

// IsValid implements Validator.
func (f ValidatorFunc) IsValid(ctx context.Context, s Session, auth Auth) bool {
	return f(ctx, s, auth)
}

// IdentityValidator accepts a session only if the user currently logged in
// with auth is the user the session belongs to: the login must equal the
// session id, its mail address or its uid.
type IdentityValidator struct{}

// IsValid implements Validator.
func (IdentityValidator) IsValid(_ context.Context, s Session, auth Auth) bool {
	if auth == nil || !s.Connected() {
		return false
	}
	login := auth.Credentials().ID
	if login == "" {
		return false
	}
	if login == s.ID() {
		return true
	}
	if mail, err := s.Mail(); err == nil && login == mail {
		return true
	}
	uid, err := s.UID()
	return err == nil && login == uid
}

// CredentialValidator accepts a session only if the directory accepts the
// credentials currently presented with auth. It authenticates without a
// lookup, so restored attributes are still served from session storage.
// A directory error rejects the session.
type CredentialValidator struct {
	Directory Directory
}

// IsValid implements Validator.
func (v CredentialValidator) IsValid(ctx context.Context, _ Session, auth Auth) bool {
	if auth == nil || v.Directory == nil {
		return false
	}
	creds := auth.Credentials()
	if creds.ID == "" {
		return false
	}
	return v.Directory.Authenticate(ctx, creds.ID, creds.Password) == nil
}

// DefaultValidator returns the validator factories use unless told
// otherwise: the session must belong to the logged in user and the user's
// current credentials must be accepted by dir.
func DefaultValidator(dir Directory) Validator {
	return AllOf(IdentityValidator{}, CredentialValidator{Directory: dir})
}

// MaxAgeValidator rejects attributes resolved longer than MaxAge ago.
type MaxAgeValidator struct {
	MaxAge time.Duration

	// Now returns the current time; time.Now when nil.
	Now func() time.Time
}

// IsValid implements Validator.
func (v MaxAgeValidator) IsValid(_ context.Context, s Session, _ Auth) bool {
	attrs, err := s.Attributes()
	if err != nil {
		return false
	}
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	return now().Sub(attrs.ResolvedAt) <= v.MaxAge
}

// DirectoryValidator looks the session's user up again and rejects the
// session if the entry now resolves to a different uid or version.
// A directory error also rejects the session.
type DirectoryValidator struct {
	Directory Directory
}

// IsValid implements Validator.
func (v DirectoryValidator) IsValid(ctx context.Context, s Session, _ Auth) bool {
	cached, err := s.Attributes()
	if err != nil {
		return false
	}
	current, err := v.Directory.Lookup(ctx, s.ID())
	if err != nil {
		return false
	}
	return current.UID == cached.UID && current.Version == cached.Version
}

// AllOf returns a Validator that accepts a session only if every validator does.
func AllOf(validators ...Validator) Validator {
	return ValidatorFunc(func(ctx context.Context, s Session, auth Auth) bool {
		for _, v := range validators {
			if !v.IsValid(ctx, s, auth) {
				return false
			}
		}
		return true
	})
}
