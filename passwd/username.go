package passwd

import "strings"

// ParseLocalPart splits a local part on the first '+' into base and extension.
// "user+folder" → ("user", "folder")
// "user"        → ("user", "")
// "user+"       → ("user", "")
// "user+a+b"   → ("user", "a+b")
func ParseLocalPart(localPart string) (base, extension string) {
	if b, ext, ok := strings.Cut(localPart, "+"); ok {
		return b, ext
	}
	return localPart, ""
}

// SplitUsername splits "user@domain" into local part and domain.
// Returns the full username and empty domain if no @ is present.
func SplitUsername(username string) (localPart, domainName string) {
	if idx := strings.LastIndex(username, "@"); idx >= 0 {
		return username[:idx], username[idx+1:]
	}
	return username, ""
}

// validDomainName reports whether name can safely be used as a directory name.
func validDomainName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}
