package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infodancer/session"
	sessionerrors "github.com/infodancer/session/errors"
	"github.com/infodancer/session/store"
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

func newTestStore(t *testing.T, codec store.Codec) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := New(Options{Address: mr.Addr(), Prefix: "groupware/", TTL: time.Hour, Codec: codec})
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestStore_SaveLoadDelete(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t, nil)

	got, err := s.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, got, "missing entry must load as nil")

	require.NoError(t, s.Save(ctx, "alice", alice()))
	assert.True(t, mr.Exists("groupware/session:alice"))
	assert.Equal(t, time.Hour, mr.TTL("groupware/session:alice"))

	got, err = s.Load(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Alice Example", got.Name)
	assert.True(t, alice().ResolvedAt.Equal(got.ResolvedAt))

	require.NoError(t, s.Delete(ctx, "alice"))
	got, err = s.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_ExpiresInRedis(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t, nil)

	require.NoError(t, s.Save(ctx, "alice", alice()))
	mr.FastForward(2 * time.Hour)

	got, err := s.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_ExpiredToken(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	codec := &store.TokenCodec{Key: []byte("s3cret"), Now: func() time.Time { return now }}
	s, mr := newTestStore(t, codec)

	require.NoError(t, s.Save(ctx, "alice", alice()))
	require.True(t, mr.Exists("groupware/session:alice"))

	// Redis still holds the key but the token inside has expired.
	now = now.Add(2 * time.Hour)

	got, err := s.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, mr.Exists("groupware/session:alice"), "expired record must be removed")
}

func TestStore_TamperedToken(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t, &store.TokenCodec{Key: []byte("s3cret")})

	forged, err := (&store.TokenCodec{Key: []byte("other key")}).Encode("alice", alice(), time.Hour)
	require.NoError(t, err)
	require.NoError(t, mr.Set("groupware/session:alice", string(forged)))

	_, err = s.Load(ctx, "alice")
	assert.True(t, errors.Is(err, sessionerrors.ErrStorageFailure), "got %v", err)
}

func TestStore_ServerDown(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t, nil)
	mr.Close()

	_, err := s.Load(ctx, "alice")
	assert.True(t, errors.Is(err, sessionerrors.ErrStorageFailure), "got %v", err)
	assert.True(t, errors.Is(s.Save(ctx, "alice", alice()), sessionerrors.ErrStorageFailure))
}

func TestStore_BacksFactory(t *testing.T) {
	s, _ := newTestStore(t, nil)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "alice", alice()))

	// With the identity check alone a restored session never reaches the directory.
	f := session.NewConstructor(nil, session.StaticAuth{ID: "alice", Password: "secret"}, nil, s).
		WithValidator(session.IdentityValidator{})
	sess, err := f.GetSession(ctx)
	require.NoError(t, err)
	mail, err := sess.Mail()
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", mail)
}

func TestRegisteredDriver(t *testing.T) {
	mr := miniredis.RunT(t)

	st, err := session.OpenStore(session.StoreConfig{
		Type:    "redis",
		Backend: mr.Addr(),
		Options: map[string]string{"prefix": "test/", "ttl": "30m"},
	})
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	require.NoError(t, st.Save(context.Background(), "bob", alice()))
	assert.True(t, mr.Exists("test/session:bob"))
	assert.Equal(t, 30*time.Minute, mr.TTL("test/session:bob"))

	_, err = session.OpenStore(session.StoreConfig{Type: "redis"})
	assert.True(t, errors.Is(err, sessionerrors.ErrDriverConfigInvalid))
	_, err = session.OpenStore(session.StoreConfig{Type: "redis", Backend: mr.Addr(), Options: map[string]string{"codec": "token"}})
	assert.True(t, errors.Is(err, sessionerrors.ErrDriverConfigInvalid))
}
