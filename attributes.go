package session

import "time"

// Credentials identify and authenticate a user against the directory.
type Credentials struct {
	// ID is the login the user presents (uid, mail address or alias).
	ID string

	// Password is the secret checked by the directory.
	Password string

	// Extra carries backend-specific credential fields.
	Extra map[string]string
}

// equal reports whether c and o authenticate the same way.
func (c Credentials) equal(o Credentials) bool {
	return c.ID == o.ID && c.Password == o.Password
}

// Attributes is the identity attribute set resolved by a directory lookup.
// It is what session storage persists between requests.
type Attributes struct {
	// Mail is the primary mail address of the user.
	Mail string `json:"mail"`

	// UID is the unique directory id of the user.
	UID string `json:"uid"`

	// Name is the display name.
	Name string `json:"name"`

	// ImapServer is the host serving the user's mailboxes.
	ImapServer string `json:"imap_server"`

	// FreebusyServer is the host serving the user's free/busy data.
	FreebusyServer string `json:"freebusy_server"`

	// Version identifies the state of the directory entry the attributes were
	// read from. Directories change it whenever the entry changes.
	Version string `json:"version,omitempty"`

	// ResolvedAt is when the directory lookup happened.
	ResolvedAt time.Time `json:"resolved_at"`
}

// Config holds session configuration parameters. Keys are not interpreted by
// factories; sessions and storage drivers read the ones they recognise.
type Config map[string]string

// Get returns the value for key, or def when the key is absent or empty.
func (c Config) Get(key, def string) string {
	if v, ok := c[key]; ok && v != "" {
		return v
	}
	return def
}

// Recognised configuration keys.
const (
	// ConfigStorageDriver names the storage driver opened by Session.Storage.
	ConfigStorageDriver = "storage.driver"

	// ConfigStoragePort overrides the storage backend port.
	ConfigStoragePort = "storage.port"

	// ConfigStorageTLS enables implicit TLS towards the storage backend.
	ConfigStorageTLS = "storage.tls"

	// ConfigStorageAuth selects the storage login mechanism ("login" or "plain").
	ConfigStorageAuth = "storage.auth"
)
