package passwd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// AliasMap maps login aliases to the user they stand for.
//
// File format (one alias per line):
//
//	sales:alice
//	postmaster:admin@example.com
//	# comment lines and blank lines are ignored
//
// A target without a domain refers to a user of the same domain.
type AliasMap struct {
	exact map[string]string // alias → target user
}

// LoadAliases reads alias rules from path.
// A missing file is treated as empty (no aliases), not an error.
func LoadAliases(path string) (*AliasMap, error) {
	m := &AliasMap{exact: make(map[string]string)}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("open aliases file: %w", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue // malformed line, skip silently
		}
		m.add(key, value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read aliases file: %w", err)
	}

	return m, nil
}

// AliasesFromMap constructs an AliasMap from alias → target pairs, as found
// in the [aliases] table of a domain config.toml. A nil map produces an
// empty AliasMap.
func AliasesFromMap(m map[string]string) *AliasMap {
	am := &AliasMap{exact: make(map[string]string)}
	for k, v := range m {
		am.add(k, v)
	}
	return am
}

func (m *AliasMap) add(alias, target string) {
	alias = strings.TrimSpace(strings.ToLower(alias))
	target = strings.TrimSpace(strings.ToLower(target))
	if alias == "" || target == "" {
		return
	}
	m.exact[alias] = target
}

// merge returns a map holding the rules of m and other; rules of other win.
func (m *AliasMap) merge(other *AliasMap) *AliasMap {
	out := &AliasMap{exact: make(map[string]string)}
	for _, src := range []*AliasMap{m, other} {
		if src == nil {
			continue
		}
		for k, v := range src.exact {
			out.exact[k] = v
		}
	}
	return out
}

// Resolve returns the target for alias.
// Returns ("", false) if alias is not defined.
func (m *AliasMap) Resolve(alias string) (string, bool) {
	if m == nil {
		return "", false
	}
	target, ok := m.exact[strings.ToLower(alias)]
	return target, ok
}

// Empty reports whether the map has no aliases at all.
func (m *AliasMap) Empty() bool {
	return m == nil || len(m.exact) == 0
}
