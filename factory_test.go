package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	sessionerrors "github.com/infodancer/session/errors"
)

func newAliceFactory(dir *stubDirectory, storage SessionStorage) *Constructor {
	return NewConstructor(dir, StaticAuth{ID: "alice", Password: "secret"}, Config{"storage.driver": "imap"}, storage)
}

func TestConstructor_Collaborators(t *testing.T) {
	dir := newStubDirectory()
	storage := newStubStorage()
	auth := StaticAuth{ID: "alice", Password: "secret"}
	cfg := Config{"a": "b"}

	f := NewConstructor(dir, auth, cfg, storage)

	if f.Server() != Directory(dir) {
		t.Error("Server() does not return the directory")
	}
	if f.SessionAuth().Credentials().ID != "alice" {
		t.Error("SessionAuth() does not return the auth handler")
	}
	if f.SessionConfiguration()["a"] != "b" {
		t.Error("SessionConfiguration() does not return the configuration")
	}
	if f.SessionStorage() != SessionStorage(storage) {
		t.Error("SessionStorage() does not return the storage")
	}

	ctx := context.Background()
	restored := Restore(dir, auth, nil, "alice", cachedAlice())
	if !f.Validate(ctx, restored) {
		t.Error("default validator rejects the logged in user")
	}
	wrong := StaticAuth{ID: "alice", Password: "wrong"}
	if f.SessionValidator(restored, wrong).IsValid(ctx, restored, wrong) {
		t.Error("default validator accepts a wrong password")
	}
	if dir.lookupCount() != 0 {
		t.Errorf("default validator looked up the directory %d times", dir.lookupCount())
	}
}

func TestConstructor_CreateSession(t *testing.T) {
	dir := newStubDirectory()
	storage := newStubStorage()
	storage.data["alice"] = cachedAlice()
	f := newAliceFactory(dir, storage).WithValidator(alwaysValid)

	s, err := f.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if s.ID() != "alice" {
		t.Errorf("ID = %q, want alice", s.ID())
	}
	if name, _ := s.Name(); name != "Alice Example" {
		t.Errorf("Name = %q, want directory value (cache must not be consulted)", name)
	}
	if dir.lookupCount() != 1 {
		t.Errorf("lookups = %d, want 1", dir.lookupCount())
	}
	if storage.saves != 0 {
		t.Errorf("CreateSession wrote to storage %d times", storage.saves)
	}
}

func TestConstructor_GetSessionRestores(t *testing.T) {
	dir := newStubDirectory()
	storage := newStubStorage()
	storage.data["alice"] = cachedAlice()
	f := newAliceFactory(dir, storage).WithValidator(alwaysValid)

	s, err := f.GetSession(context.Background())
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if dir.lookupCount() != 0 {
		t.Errorf("directory looked up %d times on restore", dir.lookupCount())
	}
	attrs, err := s.Attributes()
	if err != nil {
		t.Fatalf("Attributes: %v", err)
	}
	if *attrs != *cachedAlice() {
		t.Errorf("restored attributes = %+v, want cached", attrs)
	}
	if s.ID() != "alice" {
		t.Errorf("ID = %q, want alice", s.ID())
	}
}

func TestConstructor_GetSessionFallsBackWhenInvalid(t *testing.T) {
	dir := newStubDirectory()
	storage := newStubStorage()
	storage.data["alice"] = cachedAlice()
	f := newAliceFactory(dir, storage).WithValidator(alwaysInvalid)

	s, err := f.GetSession(context.Background())
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if dir.lookupCount() != 1 {
		t.Errorf("lookups = %d, want 1", dir.lookupCount())
	}
	if name, _ := s.Name(); name != "Alice Example" {
		t.Errorf("Name = %q, want fresh directory value", name)
	}
	stored := storage.get("alice")
	if stored == nil || stored.Name != "Alice Example" {
		t.Errorf("storage entry not overwritten: %+v", stored)
	}
}

func TestConstructor_GetSessionMissStoresFresh(t *testing.T) {
	dir := newStubDirectory()
	storage := newStubStorage()
	f := newAliceFactory(dir, storage)

	if _, err := f.GetSession(context.Background()); err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if storage.get("alice") == nil {
		t.Fatal("fresh session not stored")
	}

	// The second call restores what the first stored.
	if _, err := f.GetSession(context.Background()); err != nil {
		t.Fatalf("second GetSession: %v", err)
	}
	if dir.lookupCount() != 1 {
		t.Errorf("lookups = %d, want 1", dir.lookupCount())
	}
}

func TestConstructor_GetSessionStorageFailures(t *testing.T) {
	tests := []struct {
		name    string
		loadErr error
		saveErr error
	}{
		{name: "load fails", loadErr: fmt.Errorf("%w: connection refused", sessionerrors.ErrStorageFailure)},
		{name: "save fails", saveErr: fmt.Errorf("%w: disk full", sessionerrors.ErrStorageFailure)},
		{name: "both fail", loadErr: sessionerrors.ErrStorageFailure, saveErr: sessionerrors.ErrStorageFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			storage := newStubStorage()
			storage.loadErr = tt.loadErr
			storage.saveErr = tt.saveErr
			f := newAliceFactory(newStubDirectory(), storage).
				WithLogger(slog.New(slog.NewTextHandler(&logs, nil)))

			s, err := f.GetSession(context.Background())
			if err != nil {
				t.Fatalf("GetSession: %v", err)
			}
			if !s.Connected() {
				t.Fatal("returned session is not connected")
			}
			if !strings.Contains(logs.String(), "session storage failure") {
				t.Errorf("storage failure not logged: %s", logs.String())
			}
		})
	}
}

func TestConstructor_GetSessionPropagatesCreateFailure(t *testing.T) {
	tests := []struct {
		name    string
		auth    StaticAuth
		setup   func(d *stubDirectory)
		wantErr error
	}{
		{
			name:    "bad password",
			auth:    StaticAuth{ID: "alice", Password: "wrong"},
			wantErr: sessionerrors.ErrAuthenticationFailed,
		},
		{
			name:    "nobody logged in",
			wantErr: sessionerrors.ErrAuthenticationFailed,
		},
		{
			name: "directory down",
			auth: StaticAuth{ID: "alice", Password: "secret"},
			setup: func(d *stubDirectory) {
				d.authErr = fmt.Errorf("%w: dial tcp: connection refused", sessionerrors.ErrDirectoryUnavailable)
			},
			wantErr: sessionerrors.ErrDirectoryUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := newStubDirectory()
			if tt.setup != nil {
				tt.setup(dir)
			}
			storage := newStubStorage()
			storage.data["alice"] = cachedAlice()
			f := NewConstructor(dir, tt.auth, nil, storage).WithValidator(alwaysInvalid)

			s, err := f.GetSession(context.Background())
			if s != nil {
				t.Error("expected nil session on failure")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("GetSession error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConstructor_GetSessionWithoutStorage(t *testing.T) {
	dir := newStubDirectory()
	f := newAliceFactory(dir, nil)

	for i := 0; i < 2; i++ {
		if _, err := f.GetSession(context.Background()); err != nil {
			t.Fatalf("GetSession: %v", err)
		}
	}
	if dir.lookupCount() != 2 {
		t.Errorf("lookups = %d, want 2 without storage", dir.lookupCount())
	}
}

func TestConstructor_ConcurrentGetSession(t *testing.T) {
	dir := newStubDirectory()
	storage := newStubStorage()
	users := []StaticAuth{
		{ID: "alice", Password: "secret"},
		{ID: "bob", Password: "hunter2"},
	}

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		auth := users[i%2]
		wg.Add(1)
		go func() {
			defer wg.Done()
			f := NewConstructor(dir, auth, nil, storage)
			s, err := f.GetSession(context.Background())
			if err != nil {
				errs <- err
				return
			}
			if s.ID() != auth.ID {
				errs <- fmt.Errorf("session for %s has id %s", auth.ID, s.ID())
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestConstructor_GetSessionRechecksPassword(t *testing.T) {
	dir := newStubDirectory()
	storage := newStubStorage()
	ctx := context.Background()

	if _, err := newAliceFactory(dir, storage).GetSession(ctx); err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if storage.get("alice") == nil {
		t.Fatal("session not stored")
	}

	f := NewConstructor(dir, StaticAuth{ID: "alice", Password: "wrong"}, nil, storage)
	s, err := f.GetSession(ctx)
	if s != nil {
		t.Errorf("restored session for a wrong password: %+v", s.Credentials())
	}
	if !errors.Is(err, sessionerrors.ErrAuthenticationFailed) {
		t.Errorf("GetSession error = %v, want ErrAuthenticationFailed", err)
	}
}
