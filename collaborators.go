package session

import "context"

// Directory resolves user ids to identity attributes and checks credentials.
// Used by sessions on connect and by validators that detect stale entries.
// Implementations must be safe for concurrent use.
type Directory interface {
	// Lookup returns the attributes for id.
	// Returns errors.ErrUserNotFound if no entry matches.
	// Returns errors.ErrDirectoryUnavailable if the directory cannot be reached.
	Lookup(ctx context.Context, id string) (*Attributes, error)

	// Authenticate checks password for id.
	// Returns errors.ErrAuthenticationFailed if the credentials are rejected.
	Authenticate(ctx context.Context, id, password string) error

	// Close releases any resources held by the directory.
	Close() error
}

// Auth supplies the credentials of the user driving the current request.
type Auth interface {
	// Credentials returns the current credentials. An empty ID means that no
	// user is logged in.
	Credentials() Credentials
}

// StaticAuth is an Auth that always returns the same credentials.
type StaticAuth Credentials

// Credentials implements Auth.
func (a StaticAuth) Credentials() Credentials {
	return Credentials(a)
}

// SessionStorage persists resolved attribute sets keyed by user id so that
// later requests can skip the directory lookup.
// Implementations must be safe for concurrent use.
type SessionStorage interface {
	// Load returns the attributes stored for id, or nil, nil if there are none.
	Load(ctx context.Context, id string) (*Attributes, error)

	// Save stores attrs for id. The last write wins.
	Save(ctx context.Context, id string, attrs *Attributes) error

	// Delete removes any attributes stored for id.
	Delete(ctx context.Context, id string) error

	// Close releases any resources held by the storage.
	Close() error
}
