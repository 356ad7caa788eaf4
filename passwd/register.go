package passwd

import (
	"fmt"

	"github.com/infodancer/session"
	"github.com/infodancer/session/errors"
)

func init() {
	session.RegisterDirectory("passwd", func(cfg session.DirectoryConfig) (session.Directory, error) {
		if cfg.Backend == "" {
			return nil, fmt.Errorf("%w: passwd directory needs a base path", errors.ErrDriverConfigInvalid)
		}
		return New(cfg.Backend, Options{
			DefaultDomain: cfg.Options["default_domain"],
			Defaults: DomainConfig{
				ImapServer:     cfg.Options["imap_server"],
				FreebusyServer: cfg.Options["freebusy_server"],
			},
			Logger: cfg.Logger,
		}), nil
	})
}
