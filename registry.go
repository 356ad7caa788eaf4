package session

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/infodancer/session/errors"
)

// DirectoryConfig selects and configures a directory driver.
type DirectoryConfig struct {
	// Type is the driver name (e.g., "passwd", "ldap").
	Type string

	// Backend is the driver's primary location: a path or a URL.
	Backend string

	// Options contains driver-specific settings.
	Options map[string]string

	// Logger is passed to the driver; nil means slog.Default().
	Logger *slog.Logger
}

// StoreConfig selects and configures a session storage driver.
type StoreConfig struct {
	// Type is the driver name (e.g., "memory", "badger", "redis").
	Type string

	// Backend is the driver's primary location: a path or an address.
	Backend string

	// Options contains driver-specific settings.
	Options map[string]string

	// Logger is passed to the driver; nil means slog.Default().
	Logger *slog.Logger
}

// DirectoryFactory opens a Directory from its configuration.
type DirectoryFactory func(cfg DirectoryConfig) (Directory, error)

// StoreFactory opens a SessionStorage from its configuration.
type StoreFactory func(cfg StoreConfig) (SessionStorage, error)

var (
	registryMu     sync.RWMutex
	directories    = make(map[string]DirectoryFactory)
	stores         = make(map[string]StoreFactory)
	storageDrivers = make(map[string]StorageDriver)
)

// RegisterDirectory makes a directory driver available under name.
// Drivers call it from init; registering a name twice panics.
func RegisterDirectory(name string, f DirectoryFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := directories[name]; dup {
		panic("session: directory driver registered twice: " + name)
	}
	directories[name] = f
}

// OpenDirectory opens the directory driver named by cfg.Type.
func OpenDirectory(cfg DirectoryConfig) (Directory, error) {
	registryMu.RLock()
	f, ok := directories[cfg.Type]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: directory %q", errors.ErrDriverNotRegistered, cfg.Type)
	}
	return f(cfg)
}

// RegisterStore makes a session storage driver available under name.
func RegisterStore(name string, f StoreFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := stores[name]; dup {
		panic("session: store driver registered twice: " + name)
	}
	stores[name] = f
}

// OpenStore opens the session storage driver named by cfg.Type.
func OpenStore(cfg StoreConfig) (SessionStorage, error) {
	registryMu.RLock()
	f, ok := stores[cfg.Type]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: store %q", errors.ErrDriverNotRegistered, cfg.Type)
	}
	return f(cfg)
}

// RegisterStorageDriver makes a groupware storage driver available under name.
func RegisterStorageDriver(name string, d StorageDriver) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := storageDrivers[name]; dup {
		panic("session: storage driver registered twice: " + name)
	}
	storageDrivers[name] = d
}

func storageDriver(name string) (StorageDriver, error) {
	registryMu.RLock()
	d, ok := storageDrivers[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: storage %q", errors.ErrDriverNotRegistered, name)
	}
	return d, nil
}
