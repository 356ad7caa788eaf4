package ldap

import (
	"fmt"
	"time"

	"github.com/infodancer/session"
	"github.com/infodancer/session/errors"
)

func init() {
	session.RegisterDirectory("ldap", func(cfg session.DirectoryConfig) (session.Directory, error) {
		if cfg.Backend == "" {
			return nil, fmt.Errorf("%w: ldap directory needs a server URL", errors.ErrDriverConfigInvalid)
		}
		if cfg.Options["base_dn"] == "" {
			return nil, fmt.Errorf("%w: ldap directory needs base_dn", errors.ErrDriverConfigInvalid)
		}
		var timeout time.Duration
		if v := cfg.Options["timeout"]; v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("%w: timeout: %w", errors.ErrDriverConfigInvalid, err)
			}
			timeout = d
		}
		return New(Options{
			URL:          cfg.Backend,
			BaseDN:       cfg.Options["base_dn"],
			BindDN:       cfg.Options["bind_dn"],
			BindPassword: cfg.Options["bind_password"],
			Filter:       cfg.Options["filter"],
			Timeout:      timeout,
			Logger:       cfg.Logger,
		}), nil
	})
}
