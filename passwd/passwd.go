// Package passwd provides a file-based session.Directory.
//
// Users are kept in one passwd file per mail domain:
//
//	/etc/groupware/domains/
//	├── aliases             (optional, applies to every domain)
//	├── example.com/
//	│   ├── passwd
//	│   ├── aliases         (optional)
//	│   └── config.toml     (optional attribute defaults)
//	├── other.org/
//	│   └── passwd
//
// Logins take the form "user@domain" or "user+ext@domain"; bare usernames
// are looked up in the default domain.
package passwd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/infodancer/session"
	sessionerrors "github.com/infodancer/session/errors"
)

// Options configures a Directory.
type Options struct {
	// DefaultDomain is used for logins without a domain part.
	DefaultDomain string

	// Defaults are attribute defaults for every domain; a domain's
	// config.toml overrides them.
	Defaults DomainConfig

	Logger *slog.Logger
}

// Directory resolves and authenticates users from passwd files.
// Domains are loaded on first use and reloaded when their files change.
type Directory struct {
	basePath string
	opts     Options
	logger   *slog.Logger

	mu    sync.RWMutex
	cache map[string]*domainState
}

// domainState is the parsed content of a domain directory.
type domainState struct {
	stamp   string
	users   map[string]Entry
	aliases *AliasMap
	config  DomainConfig
}

// New creates a Directory rooted at basePath.
func New(basePath string, opts Options) *Directory {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{
		basePath: basePath,
		opts:     opts,
		logger:   logger,
		cache:    make(map[string]*domainState),
	}
}

// Lookup resolves the attributes of id.
func (d *Directory) Lookup(ctx context.Context, id string) (*session.Attributes, error) {
	e, domainName, st, err := d.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	return attributesOf(e, domainName, st.config), nil
}

// Authenticate checks password against the entry of id.
// Unknown users fail like wrong passwords.
func (d *Directory) Authenticate(ctx context.Context, id, password string) error {
	e, _, _, err := d.resolve(ctx, id)
	if err != nil {
		if errors.Is(err, sessionerrors.ErrUserNotFound) {
			return fmt.Errorf("%w: %s", sessionerrors.ErrAuthenticationFailed, id)
		}
		return err
	}
	if !verifyPassword(password, e.hash) {
		return fmt.Errorf("%w: %s", sessionerrors.ErrAuthenticationFailed, id)
	}
	return nil
}

// Close drops all loaded domains.
func (d *Directory) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache = make(map[string]*domainState)
	return nil
}

// Domains returns the names of all domain directories that contain a passwd file.
func (d *Directory) Domains() []string {
	entries, err := os.ReadDir(d.basePath)
	if err != nil {
		d.logger.Debug("failed to read domains directory",
			slog.String("path", d.basePath),
			slog.String("error", err.Error()))
		return nil
	}

	var domains []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(PasswdPath(d.basePath, entry.Name())); err == nil {
			domains = append(domains, entry.Name())
		}
	}
	return domains
}

// resolve finds the entry for id, following one alias hop.
func (d *Directory) resolve(ctx context.Context, id string) (Entry, string, *domainState, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, "", nil, fmt.Errorf("%w: %w", sessionerrors.ErrDirectoryUnavailable, err)
	}

	localPart, domainName := SplitUsername(strings.ToLower(id))
	base, _ := ParseLocalPart(localPart)
	if domainName == "" {
		domainName = strings.ToLower(d.opts.DefaultDomain)
	}

	st, err := d.domain(domainName)
	if err != nil {
		return Entry{}, "", nil, err
	}
	if st == nil {
		return Entry{}, "", nil, fmt.Errorf("%w: %s", sessionerrors.ErrUserNotFound, id)
	}
	if e, ok := st.users[base]; ok {
		return e, domainName, st, nil
	}

	target, ok := st.aliases.Resolve(base)
	if !ok {
		return Entry{}, "", nil, fmt.Errorf("%w: %s", sessionerrors.ErrUserNotFound, id)
	}
	targetUser, targetDomain := SplitUsername(target)
	if targetDomain == "" {
		targetDomain = domainName
	}
	tst, err := d.domain(targetDomain)
	if err != nil {
		return Entry{}, "", nil, err
	}
	if tst != nil {
		if e, ok := tst.users[targetUser]; ok {
			return e, targetDomain, tst, nil
		}
	}
	return Entry{}, "", nil, fmt.Errorf("%w: %s (alias of %s)", sessionerrors.ErrUserNotFound, id, target)
}

// domain returns the current state of domainName, reloading it when any of
// its files changed. Returns nil, nil if the domain has no passwd file.
func (d *Directory) domain(domainName string) (*domainState, error) {
	if !validDomainName(domainName) {
		return nil, nil
	}

	domainPath := filepath.Join(d.basePath, domainName)
	passwdPath := filepath.Join(domainPath, "passwd")
	if _, err := os.Stat(passwdPath); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", sessionerrors.ErrDirectoryUnavailable, err)
	}

	stamp := fileStamp(
		passwdPath,
		filepath.Join(domainPath, "aliases"),
		filepath.Join(domainPath, "config.toml"),
		filepath.Join(d.basePath, "aliases"),
	)

	d.mu.RLock()
	st, ok := d.cache[domainName]
	d.mu.RUnlock()
	if ok && st.stamp == stamp {
		return st, nil
	}

	st, err := d.loadDomain(domainName, domainPath)
	if err != nil {
		d.logger.Error("failed to load domain",
			slog.String("domain", domainName),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %w", sessionerrors.ErrDirectoryUnavailable, err)
	}
	st.stamp = stamp

	d.mu.Lock()
	d.cache[domainName] = st
	d.mu.Unlock()

	return st, nil
}

func (d *Directory) loadDomain(domainName, domainPath string) (*domainState, error) {
	cfg := d.opts.Defaults
	configPath := filepath.Join(domainPath, "config.toml")
	if _, err := os.Stat(configPath); err == nil {
		override, err := LoadDomainConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = mergeConfig(cfg, *override)
	}

	entries, err := parsePasswd(filepath.Join(domainPath, "passwd"))
	if err != nil {
		return nil, err
	}
	users := make(map[string]Entry, len(entries))
	for _, e := range entries {
		users[strings.ToLower(e.Username)] = e
	}

	// Resolution order: domain aliases file, config.toml aliases, system default.
	defaultAliases, err := LoadAliases(filepath.Join(d.basePath, "aliases"))
	if err != nil {
		return nil, fmt.Errorf("load default aliases: %w", err)
	}
	domainAliases, err := LoadAliases(filepath.Join(domainPath, "aliases"))
	if err != nil {
		return nil, fmt.Errorf("load domain aliases: %w", err)
	}
	aliases := defaultAliases.merge(AliasesFromMap(cfg.Aliases)).merge(domainAliases)

	d.logger.Debug("loaded domain",
		slog.String("domain", domainName),
		slog.Int("users", len(users)))

	return &domainState{users: users, aliases: aliases, config: cfg}, nil
}

// fileStamp summarises the modification state of paths. Missing files
// contribute a fixed marker so that creating one changes the stamp.
func fileStamp(paths ...string) string {
	var b strings.Builder
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			b.WriteString("-;")
			continue
		}
		fmt.Fprintf(&b, "%d/%d;", fi.ModTime().UnixNano(), fi.Size())
	}
	return b.String()
}

func attributesOf(e Entry, domainName string, cfg DomainConfig) *session.Attributes {
	address := e.Username + "@" + domainName
	a := &session.Attributes{
		Mail:           e.Mail,
		UID:            e.UID,
		Name:           e.Name,
		ImapServer:     e.ImapServer,
		FreebusyServer: e.FreebusyServer,
		Version:        e.version,
	}
	if a.Mail == "" {
		a.Mail = address
	}
	if a.UID == "" {
		a.UID = address
	}
	if a.Name == "" {
		a.Name = e.Username
	}
	if a.ImapServer == "" {
		a.ImapServer = cfg.ImapServer
	}
	if a.FreebusyServer == "" {
		a.FreebusyServer = cfg.FreebusyServer
	}
	return a
}
