// Package ldap provides a session.Directory backed by a Kolab LDAP tree.
//
// Users are found with a subtree search below the base DN and authenticated
// by binding as the entry that search returns.
package ldap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	goldap "github.com/go-ldap/ldap/v3"

	"github.com/infodancer/session"
	sessionerrors "github.com/infodancer/session/errors"
)

// DefaultFilter matches Kolab users by uid, primary mail address or alias.
// %[1]s is replaced with the escaped login.
const DefaultFilter = "(&(objectClass=kolabInetOrgPerson)(|(uid=%[1]s)(mail=%[1]s)(alias=%[1]s)))"

// Attribute names of the Kolab schema.
const (
	attrMail           = "mail"
	attrUID            = "uid"
	attrName           = "cn"
	attrImapServer     = "kolabHomeServer"
	attrFreebusyServer = "kolabFreeBusyServer"
	attrModified       = "modifyTimestamp"
)

var searchAttributes = []string{attrMail, attrUID, attrName, attrImapServer, attrFreebusyServer, attrModified}

// Conn is the subset of an LDAP connection the directory uses.
type Conn interface {
	Bind(username, password string) error
	Search(req *goldap.SearchRequest) (*goldap.SearchResult, error)
	Close() error
}

// Dialer opens a connection to the LDAP server.
type Dialer func(ctx context.Context) (Conn, error)

// Options configures a Directory.
type Options struct {
	// URL of the server, e.g. "ldaps://ldap.example.com".
	URL string

	// BaseDN is the search base for users.
	BaseDN string

	// BindDN and BindPassword authenticate the searches. Searches are
	// anonymous when BindDN is empty.
	BindDN       string
	BindPassword string

	// Filter is the user search filter; DefaultFilter when empty.
	Filter string

	// Timeout bounds dialing; 10 seconds when zero.
	Timeout time.Duration

	// Dial replaces the network dialer, mainly for tests.
	Dial Dialer

	Logger *slog.Logger
}

// Directory resolves users from LDAP. Every call uses its own connection.
type Directory struct {
	opts   Options
	dial   Dialer
	logger *slog.Logger
}

// New creates a Directory.
func New(opts Options) *Directory {
	if opts.Filter == "" {
		opts.Filter = DefaultFilter
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	d := &Directory{opts: opts, dial: opts.Dial, logger: logger}
	if d.dial == nil {
		d.dial = d.dialURL
	}
	return d
}

func (d *Directory) dialURL(ctx context.Context) (Conn, error) {
	dialer := &net.Dialer{Timeout: d.opts.Timeout}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}
	c, err := goldap.DialURL(d.opts.URL, goldap.DialWithDialer(dialer))
	if err != nil {
		return nil, err
	}
	return conn{c}, nil
}

// conn adapts *goldap.Conn to Conn.
type conn struct {
	*goldap.Conn
}

func (c conn) Close() error {
	c.Conn.Close()
	return nil
}

// Lookup resolves the attributes of id.
func (d *Directory) Lookup(ctx context.Context, id string) (*session.Attributes, error) {
	c, err := d.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = c.Close() }()

	entry, err := d.find(ctx, c, id)
	if err != nil {
		return nil, err
	}
	return attributesOf(entry), nil
}

// Authenticate binds as the entry of id with password.
func (d *Directory) Authenticate(ctx context.Context, id, password string) error {
	if password == "" {
		// An empty password would be an unauthenticated bind, which servers accept.
		return fmt.Errorf("%w: empty password", sessionerrors.ErrAuthenticationFailed)
	}

	c, err := d.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	entry, err := d.find(ctx, c, id)
	if err != nil {
		if errors.Is(err, sessionerrors.ErrUserNotFound) {
			return fmt.Errorf("%w: %s", sessionerrors.ErrAuthenticationFailed, id)
		}
		return err
	}

	if err := c.Bind(entry.DN, password); err != nil {
		if goldap.IsErrorWithCode(err, goldap.LDAPResultInvalidCredentials) {
			return fmt.Errorf("%w: %s", sessionerrors.ErrAuthenticationFailed, id)
		}
		return d.unavailable(ctx, "bind", err)
	}
	return nil
}

// Close is a no-op; connections are not pooled.
func (d *Directory) Close() error {
	return nil
}

// connect dials the server and performs the service bind.
func (d *Directory) connect(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", sessionerrors.ErrDirectoryUnavailable, err)
	}
	c, err := d.dial(ctx)
	if err != nil {
		return nil, d.unavailable(ctx, "dial", err)
	}
	if d.opts.BindDN != "" {
		if err := c.Bind(d.opts.BindDN, d.opts.BindPassword); err != nil {
			_ = c.Close()
			return nil, d.unavailable(ctx, "service bind", err)
		}
	}
	return c, nil
}

// find returns the single entry matching id.
func (d *Directory) find(ctx context.Context, c Conn, id string) (*goldap.Entry, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", sessionerrors.ErrUserNotFound)
	}

	req := goldap.NewSearchRequest(
		d.opts.BaseDN,
		goldap.ScopeWholeSubtree,
		goldap.NeverDerefAliases,
		2, // more than one match is an error
		int(d.opts.Timeout.Seconds()),
		false,
		fmt.Sprintf(d.opts.Filter, goldap.EscapeFilter(id)),
		searchAttributes,
		nil,
	)
	res, err := c.Search(req)
	if err != nil && !goldap.IsErrorWithCode(err, goldap.LDAPResultSizeLimitExceeded) {
		return nil, d.unavailable(ctx, "search", err)
	}
	switch {
	case res == nil || len(res.Entries) == 0:
		return nil, fmt.Errorf("%w: %s", sessionerrors.ErrUserNotFound, id)
	case len(res.Entries) > 1:
		d.logger.Warn("ambiguous directory entry",
			slog.String("user", id),
			slog.Int("matches", len(res.Entries)))
		return nil, fmt.Errorf("%w: %s matches more than one entry", sessionerrors.ErrUserNotFound, id)
	}
	return res.Entries[0], nil
}

func (d *Directory) unavailable(ctx context.Context, op string, err error) error {
	d.logger.Warn("ldap operation failed",
		slog.String("op", op),
		slog.String("url", d.opts.URL),
		slog.String("error", err.Error()))
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	return fmt.Errorf("%w: %s: %w", sessionerrors.ErrDirectoryUnavailable, op, err)
}

func attributesOf(e *goldap.Entry) *session.Attributes {
	a := &session.Attributes{
		Mail:           e.GetAttributeValue(attrMail),
		UID:            e.GetAttributeValue(attrUID),
		Name:           e.GetAttributeValue(attrName),
		ImapServer:     e.GetAttributeValue(attrImapServer),
		FreebusyServer: e.GetAttributeValue(attrFreebusyServer),
		Version:        e.GetAttributeValue(attrModified),
	}
	if a.UID == "" {
		a.UID = e.DN
	}
	return a
}
