package session

import (
	"context"
	"testing"
	"time"

	sessionerrors "github.com/infodancer/session/errors"
)

func TestIdentityValidator(t *testing.T) {
	dir := newStubDirectory()
	restored := Restore(dir, nil, nil, "alice", dir.entries["alice"])

	tests := []struct {
		name    string
		session Session
		auth    Auth
		want    bool
	}{
		{"same id", restored, StaticAuth{ID: "alice"}, true},
		{"login by mail", restored, StaticAuth{ID: "alice@example.com"}, true},
		{"login by uid", restored, StaticAuth{ID: "uid-alice"}, true},
		{"other user", restored, StaticAuth{ID: "bob"}, false},
		{"nobody logged in", restored, StaticAuth{}, false},
		{"nil auth", restored, nil, false},
		{"unconnected session", New(dir, nil, nil), StaticAuth{ID: "alice"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (IdentityValidator{}).IsValid(context.Background(), tt.session, tt.auth); got != tt.want {
				t.Errorf("IsValid = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCredentialValidator(t *testing.T) {
	dir := newStubDirectory()
	restored := Restore(dir, nil, nil, "alice", dir.entries["alice"])
	down := newStubDirectory()
	down.authErr = sessionerrors.ErrDirectoryUnavailable

	tests := []struct {
		name string
		dir  Directory
		auth Auth
		want bool
	}{
		{"right password", dir, StaticAuth{ID: "alice", Password: "secret"}, true},
		{"wrong password", dir, StaticAuth{ID: "alice", Password: "wrong"}, false},
		{"empty password", dir, StaticAuth{ID: "alice"}, false},
		{"nobody logged in", dir, StaticAuth{}, false},
		{"nil auth", dir, nil, false},
		{"directory down", down, StaticAuth{ID: "alice", Password: "secret"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := CredentialValidator{Directory: tt.dir}
			if got := v.IsValid(context.Background(), restored, tt.auth); got != tt.want {
				t.Errorf("IsValid = %v, want %v", got, tt.want)
			}
		})
	}
	if dir.lookupCount() != 0 {
		t.Errorf("lookups = %d, want 0", dir.lookupCount())
	}
}

func TestMaxAgeValidator(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	v := MaxAgeValidator{MaxAge: time.Hour, Now: func() time.Time { return now }}

	tests := []struct {
		name       string
		resolvedAt time.Time
		want       bool
	}{
		{"fresh", now.Add(-time.Minute), true},
		{"exactly max age", now.Add(-time.Hour), true},
		{"stale", now.Add(-2 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := cachedAlice()
			attrs.ResolvedAt = tt.resolvedAt
			s := Restore(newStubDirectory(), nil, nil, "alice", attrs)
			if got := v.IsValid(context.Background(), s, nil); got != tt.want {
				t.Errorf("IsValid = %v, want %v", got, tt.want)
			}
		})
	}

	if v.IsValid(context.Background(), New(newStubDirectory(), nil, nil), nil) {
		t.Error("unconnected session accepted")
	}
}

func TestDirectoryValidator(t *testing.T) {
	dir := newStubDirectory()
	v := DirectoryValidator{Directory: dir}
	ctx := context.Background()

	current := Restore(dir, nil, nil, "alice", dir.entries["alice"])
	if !v.IsValid(ctx, current, nil) {
		t.Error("session matching the directory rejected")
	}

	stale := Restore(dir, nil, nil, "alice", cachedAlice())
	if v.IsValid(ctx, stale, nil) {
		t.Error("session with outdated version accepted")
	}

	moved := *dir.entries["alice"]
	moved.UID = "uid-other"
	if v.IsValid(ctx, Restore(dir, nil, nil, "alice", &moved), nil) {
		t.Error("session with different uid accepted")
	}

	gone := Restore(dir, nil, nil, "carol", dir.entries["alice"])
	if v.IsValid(ctx, gone, nil) {
		t.Error("session of deleted user accepted")
	}
}

func TestAllOf(t *testing.T) {
	s := Restore(newStubDirectory(), nil, nil, "alice", cachedAlice())
	ctx := context.Background()

	if !AllOf().IsValid(ctx, s, nil) {
		t.Error("empty AllOf rejected")
	}
	if !AllOf(alwaysValid, alwaysValid).IsValid(ctx, s, nil) {
		t.Error("AllOf of valid validators rejected")
	}
	if AllOf(alwaysValid, alwaysInvalid).IsValid(ctx, s, nil) {
		t.Error("AllOf with an invalid validator accepted")
	}
}
