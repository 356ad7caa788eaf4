// Package imapstore opens a session's storage handle on the user's IMAP
// server. It registers itself as the "imap" storage driver:
//
//	import _ "github.com/infodancer/session/imapstore"
//
// Recognised session configuration keys:
//
//	storage.port  server port (143, or 993 with TLS)
//	storage.tls   "true" for implicit TLS
//	storage.auth  "login" (default) or "plain" for SASL PLAIN
package imapstore

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-sasl"

	"github.com/infodancer/session"
)

// Default ports.
const (
	DefaultPort    = "143"
	DefaultTLSPort = "993"
)

// dialTimeout bounds connection setup when the context has no deadline.
const dialTimeout = 30 * time.Second

// Store is an authenticated IMAP connection.
type Store struct {
	conn   net.Conn
	client *imapclient.Client
	user   string
	logger *slog.Logger
}

func init() {
	session.RegisterStorageDriver(session.DefaultStorageDriver, func(ctx context.Context, target session.StorageTarget) (session.Storage, error) {
		s, err := Open(ctx, target, nil)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

// Open connects to target.Host and logs in with target.Credentials.
// A nil logger uses slog.Default().
func Open(ctx context.Context, target session.StorageTarget, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if target.Host == "" {
		return nil, fmt.Errorf("imap: no server for %s", target.Credentials.ID)
	}

	useTLS, err := strconv.ParseBool(target.Config.Get(session.ConfigStorageTLS, "false"))
	if err != nil {
		return nil, fmt.Errorf("imap: %s: %w", session.ConfigStorageTLS, err)
	}
	port := DefaultPort
	if useTLS {
		port = DefaultTLSPort
	}
	port = target.Config.Get(session.ConfigStoragePort, port)
	addr := net.JoinHostPort(target.Host, port)

	conn, err := dial(ctx, addr, target.Host, useTLS)
	if err != nil {
		return nil, fmt.Errorf("imap: dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	s := &Store{
		conn:   conn,
		client: imapclient.New(conn, nil),
		user:   target.Credentials.ID,
		logger: logger,
	}

	if err := s.login(target); err != nil {
		_ = s.client.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})

	logger.Debug("opened storage",
		slog.String("server", addr),
		slog.String("user", s.user))
	return s, nil
}

func dial(ctx context.Context, addr, host string, useTLS bool) (net.Conn, error) {
	d := &net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if !useTLS {
		return conn, nil
	}
	tlsConn := tls.Client(conn, &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12})
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return tlsConn, nil
}

func (s *Store) login(target session.StorageTarget) error {
	creds := target.Credentials
	switch mech := target.Config.Get(session.ConfigStorageAuth, "login"); mech {
	case "login":
		if err := s.client.Login(creds.ID, creds.Password).Wait(); err != nil {
			return fmt.Errorf("imap: login as %s: %w", creds.ID, err)
		}
	case "plain":
		if err := s.client.Authenticate(sasl.NewPlainClient("", creds.ID, creds.Password)); err != nil {
			return fmt.Errorf("imap: authenticate as %s: %w", creds.ID, err)
		}
	default:
		return fmt.Errorf("imap: unknown %s %q", session.ConfigStorageAuth, mech)
	}
	return nil
}

// Folders lists all mailboxes visible to the logged in user.
func (s *Store) Folders(ctx context.Context) ([]string, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetDeadline(deadline)
		defer func() { _ = s.conn.SetDeadline(time.Time{}) }()
	}

	list, err := s.client.List("", "*", nil).Collect()
	if err != nil {
		return nil, fmt.Errorf("imap: list folders of %s: %w", s.user, err)
	}
	folders := make([]string, 0, len(list))
	for _, data := range list {
		folders = append(folders, data.Mailbox)
	}
	return folders, nil
}

// Close logs out and closes the connection.
func (s *Store) Close() error {
	if err := s.client.Logout().Wait(); err != nil {
		s.logger.Debug("logout failed",
			slog.String("user", s.user),
			slog.String("error", err.Error()))
	}
	return s.client.Close()
}
