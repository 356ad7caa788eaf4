package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infodancer/session"
	sessionerrors "github.com/infodancer/session/errors"
)

func alice() *session.Attributes {
	return &session.Attributes{
		Mail:       "alice@example.com",
		UID:        "alice",
		Name:       "Alice Example",
		ImapServer: "imap.example.com",
		Version:    "1",
		ResolvedAt: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestStore_SaveLoadDelete(t *testing.T) {
	ctx := context.Background()
	s := New(time.Hour)

	got, err := s.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, got, "missing entry must load as nil")

	require.NoError(t, s.Save(ctx, "alice", alice()))
	got, err = s.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice(), got)

	// Saved and loaded values are copies.
	got.Name = "changed"
	again, err := s.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice Example", again.Name)

	updated := alice()
	updated.Version = "2"
	require.NoError(t, s.Save(ctx, "alice", updated))
	got, err = s.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "2", got.Version, "last write wins")

	require.NoError(t, s.Delete(ctx, "alice"))
	got, err = s.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New(time.Minute)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Save(ctx, "alice", alice()))
	require.NoError(t, s.Save(ctx, "bob", alice()))

	now = now.Add(30 * time.Second)
	got, err := s.Load(ctx, "alice")
	require.NoError(t, err)
	assert.NotNil(t, got)

	now = now.Add(time.Minute)
	got, err = s.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, got, "expired entry must load as nil")

	assert.Equal(t, 1, s.Purge(), "bob expired too")
	assert.Equal(t, 0, s.Purge())
}

func TestStore_NoTTL(t *testing.T) {
	s := New(0)
	s.now = func() time.Time { return time.Date(2999, 1, 1, 0, 0, 0, 0, time.UTC) }

	require.NoError(t, s.Save(context.Background(), "alice", alice()))
	got, err := s.Load(context.Background(), "alice")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := New(time.Hour)

	_, err := s.Load(ctx, "alice")
	assert.True(t, errors.Is(err, sessionerrors.ErrStorageFailure))
	assert.True(t, errors.Is(s.Save(ctx, "alice", alice()), sessionerrors.ErrStorageFailure))
}

func TestStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := New(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Save(ctx, "alice", alice())
			_, _ = s.Load(ctx, "alice")
		}()
	}
	wg.Wait()

	got, err := s.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice(), got)
}

func TestRegisteredDriver(t *testing.T) {
	st, err := session.OpenStore(session.StoreConfig{Type: "memory", Options: map[string]string{"ttl": "10m"}})
	require.NoError(t, err)
	defer func() { _ = st.Close() }()
	assert.Equal(t, 10*time.Minute, st.(*Store).ttl)

	_, err = session.OpenStore(session.StoreConfig{Type: "memory", Options: map[string]string{"ttl": "forever"}})
	assert.True(t, errors.Is(err, sessionerrors.ErrDriverConfigInvalid))
}
