package session

import (
	"context"
	"fmt"

	"github.com/infodancer/session/errors"
)

// DefaultStorageDriver is used when the session configuration names none.
const DefaultStorageDriver = "imap"

// Storage is an opened connection to a user's groupware storage backend.
type Storage interface {
	// Folders lists the folders visible to the authenticated identity.
	Folders(ctx context.Context) ([]string, error)

	// Close releases the connection.
	Close() error
}

// StorageTarget describes what a storage driver should connect to.
type StorageTarget struct {
	// Host is the backend host, usually the user's IMAP server.
	Host string

	// Credentials authenticate against the backend.
	Credentials Credentials

	// Config is the session configuration; drivers read their own keys.
	Config Config
}

// StorageDriver opens a Storage for a target.
type StorageDriver func(ctx context.Context, target StorageTarget) (Storage, error)

// StorageHandle refers to a user's storage backend without connecting to it.
// Sessions hand out handles; Open dials the backend.
type StorageHandle struct {
	driver string
	host   string
	creds  Credentials
	config Config
}

// Driver returns the name of the storage driver the handle opens.
func (h *StorageHandle) Driver() string {
	return h.driver
}

// Host returns the backend host.
func (h *StorageHandle) Host() string {
	return h.host
}

// Credentials returns the identity used to log in to the backend.
func (h *StorageHandle) Credentials() Credentials {
	return h.creds
}

// WithCredentials returns a copy of the handle that logs in as creds.
func (h *StorageHandle) WithCredentials(creds Credentials) *StorageHandle {
	cp := *h
	cp.creds = creds
	return &cp
}

// Open connects to the storage backend.
// Returns errors.ErrDriverNotRegistered if the driver is unknown and
// errors.ErrStorageUnavailable if the backend cannot be opened.
func (h *StorageHandle) Open(ctx context.Context) (Storage, error) {
	drv, err := storageDriver(h.driver)
	if err != nil {
		return nil, err
	}
	st, err := drv(ctx, StorageTarget{Host: h.host, Credentials: h.creds, Config: h.config})
	if err != nil {
		return nil, fmt.Errorf("%w: %s on %s: %w", errors.ErrStorageUnavailable, h.driver, h.host, err)
	}
	return st, nil
}
