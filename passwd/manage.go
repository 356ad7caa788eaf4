package passwd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Entry is one user of a passwd file.
//
// Line format:
//
//	username:hash[:uid[:mail[:name[:imap_server[:freebusy_server]]]]]
//
// Empty trailing fields fall back to domain defaults at lookup time.
type Entry struct {
	Username       string
	UID            string
	Mail           string
	Name           string
	ImapServer     string
	FreebusyServer string

	hash    string
	version string
}

// PasswdPath returns the passwd file of domainName below basePath.
func PasswdPath(basePath, domainName string) string {
	return filepath.Join(basePath, domainName, "passwd")
}

// AddUser appends a new user entry to the passwd file at passwdPath.
// Returns an error if the username already exists.
func AddUser(passwdPath string, e Entry, password string) error {
	if err := checkFields(e); err != nil {
		return err
	}

	users, err := parsePasswd(passwdPath)
	if err != nil {
		return err
	}

	for _, u := range users {
		if strings.EqualFold(u.Username, e.Username) {
			return fmt.Errorf("user %q already exists", e.Username)
		}
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(passwdPath), 0o750); err != nil {
		return fmt.Errorf("create domain directory: %w", err)
	}

	f, err := os.OpenFile(passwdPath, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o640)
	if err != nil {
		return fmt.Errorf("open passwd file: %w", err)
	}
	defer func() { _ = f.Close() }()

	_, err = fmt.Fprintln(f, formatEntry(e, hash))
	return err
}

// SetPassword replaces the password hash of the named user.
func SetPassword(passwdPath, username, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	var found bool
	lines, err := rewritePasswd(passwdPath, func(e *Entry) (string, bool) {
		if !strings.EqualFold(e.Username, username) {
			return "", false
		}
		found = true
		return formatEntry(*e, hash), true
	})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("user %q not found", username)
	}
	return writePasswd(passwdPath, lines)
}

// DeleteUser removes the named user from the passwd file.
// Returns an error if the user does not exist.
func DeleteUser(passwdPath, username string) error {
	var found bool
	lines, err := rewritePasswd(passwdPath, func(e *Entry) (string, bool) {
		if !strings.EqualFold(e.Username, username) {
			return "", false
		}
		found = true
		return "", true
	})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("user %q not found", username)
	}
	return writePasswd(passwdPath, lines)
}

// ListUsers returns all user entries from the passwd file.
func ListUsers(passwdPath string) ([]Entry, error) {
	return parsePasswd(passwdPath)
}

// parseEntry parses one non-comment passwd line.
func parseEntry(line string) (Entry, bool) {
	parts := strings.Split(line, ":")
	if len(parts) < 2 || parts[0] == "" {
		return Entry{}, false
	}
	for len(parts) < 7 {
		parts = append(parts, "")
	}
	return Entry{
		Username:       parts[0],
		hash:           parts[1],
		UID:            parts[2],
		Mail:           parts[3],
		Name:           parts[4],
		ImapServer:     parts[5],
		FreebusyServer: parts[6],
		version:        entryVersion(line),
	}, true
}

func formatEntry(e Entry, hash string) string {
	fields := []string{e.Username, hash, e.UID, e.Mail, e.Name, e.ImapServer, e.FreebusyServer}
	for len(fields) > 2 && fields[len(fields)-1] == "" {
		fields = fields[:len(fields)-1]
	}
	return strings.Join(fields, ":")
}

func checkFields(e Entry) error {
	if e.Username == "" {
		return errors.New("username is required")
	}
	for _, v := range []string{e.Username, e.UID, e.Mail, e.Name, e.ImapServer, e.FreebusyServer} {
		if strings.ContainsAny(v, ":\r\n") {
			return fmt.Errorf("field %q contains a reserved character", v)
		}
	}
	if strings.ContainsAny(e.Username, "@+") {
		return fmt.Errorf("username %q must be a bare local part", e.Username)
	}
	return nil
}

// parsePasswd reads the passwd file and returns all user entries.
// Returns an empty slice if the file does not exist.
func parsePasswd(passwdPath string) ([]Entry, error) {
	f, err := os.Open(passwdPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open passwd file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var users []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if e, ok := parseEntry(line); ok {
			users = append(users, e)
		}
	}

	return users, scanner.Err()
}

// rewritePasswd reads all lines from the passwd file and passes every entry
// to edit. When edit reports a match, the line is replaced by the returned
// text, or dropped if that is empty.
func rewritePasswd(passwdPath string, edit func(*Entry) (string, bool)) ([]string, error) {
	f, err := os.Open(passwdPath)
	if err != nil {
		return nil, fmt.Errorf("open passwd file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			lines = append(lines, line)
			continue
		}
		e, ok := parseEntry(trimmed)
		if !ok {
			lines = append(lines, line)
			continue
		}
		if repl, matched := edit(&e); matched {
			if repl != "" {
				lines = append(lines, repl)
			}
			continue
		}
		lines = append(lines, line)
	}

	return lines, scanner.Err()
}

// writePasswd atomically replaces the passwd file with the given lines.
func writePasswd(passwdPath string, lines []string) error {
	tmpPath := passwdPath + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("create temp passwd file: %w", err)
	}

	w := bufio.NewWriter(f)
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			_ = f.Close()
			_ = os.Remove(tmpPath)
			return err
		}
	}

	if err := w.Flush(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return err
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, passwdPath)
}
