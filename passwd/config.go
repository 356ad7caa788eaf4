package passwd

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// DomainConfig is the optional per-domain config.toml of a passwd directory.
// It supplies attribute defaults for entries that leave them empty.
type DomainConfig struct {
	// ImapServer is the IMAP host of users without their own.
	ImapServer string `toml:"imap_server"`

	// FreebusyServer is the free/busy host of users without their own.
	FreebusyServer string `toml:"freebusy_server"`

	// Aliases holds additional login aliases for the domain.
	Aliases map[string]string `toml:"aliases"`
}

// mergeConfig returns a new DomainConfig with base values overridden by
// non-zero values from override. Fields absent in override retain the base value.
func mergeConfig(base, override DomainConfig) DomainConfig {
	result := base
	if override.ImapServer != "" {
		result.ImapServer = override.ImapServer
	}
	if override.FreebusyServer != "" {
		result.FreebusyServer = override.FreebusyServer
	}
	if len(override.Aliases) > 0 {
		result.Aliases = override.Aliases
	}
	return result
}

// LoadDomainConfig reads and parses a domain configuration file.
func LoadDomainConfig(path string) (*DomainConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg DomainConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}
