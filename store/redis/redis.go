// Package redis provides a Redis-backed session storage driver.
//
// Sessions are stored with SET ... EX so Redis ages them out; keys are
// Prefix + "session:" + id.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/infodancer/session"
	sessionerrors "github.com/infodancer/session/errors"
	"github.com/infodancer/session/store"
)

// Options configures a Store.
type Options struct {
	// Address is the Redis server, "host:port". Ignored when Pool is set.
	Address string

	// Password authenticates against Redis, if set.
	Password string

	// Database selects the Redis database number.
	Database int

	// Pool supplies connections; one is built from Address when nil.
	Pool *redis.Pool

	// Prefix is prepended to every key. It is recommended that this end in "/".
	Prefix string

	// TTL is the lifetime of saved sessions; zero keeps them forever.
	TTL time.Duration

	// Codec encodes saved attributes; JSONCodec when nil.
	Codec store.Codec

	Logger *slog.Logger
}

// Store is a SessionStorage on Redis.
type Store struct {
	pool   *redis.Pool
	prefix string
	ttl    time.Duration
	codec  store.Codec
	logger *slog.Logger
}

// New creates a Store. Connections are made lazily.
func New(opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	codec := opts.Codec
	if codec == nil {
		codec = store.JSONCodec{}
	}
	pool := opts.Pool
	if pool == nil {
		pool = newPool(opts)
	}
	return &Store{pool: pool, prefix: opts.Prefix, ttl: opts.TTL, codec: codec, logger: logger}
}

func newPool(opts Options) *redis.Pool {
	dialOpts := []redis.DialOption{
		redis.DialDatabase(opts.Database),
		redis.DialConnectTimeout(5 * time.Second),
	}
	if opts.Password != "" {
		dialOpts = append(dialOpts, redis.DialPassword(opts.Password))
	}
	return &redis.Pool{
		MaxIdle:     4,
		IdleTimeout: 4 * time.Minute,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialContext(ctx, "tcp", opts.Address, dialOpts...)
		},
	}
}

func (s *Store) key(id string) string {
	return s.prefix + store.KeyPrefix + id
}

// Load returns the attributes saved for id, or nil, nil if there are none.
func (s *Store) Load(ctx context.Context, id string) (*session.Attributes, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, store.Failure("load", id, err)
	}
	defer func() { _ = conn.Close() }()

	data, err := redis.Bytes(redis.DoContext(conn, ctx, "GET", s.key(id)))
	if errors.Is(err, redis.ErrNil) {
		return nil, nil
	}
	if err != nil {
		return nil, store.Failure("load", id, err)
	}

	attrs, err := s.codec.Decode(id, data)
	if err != nil {
		return nil, store.Failure("load", id, err)
	}
	if attrs == nil {
		// Expired in the codec before Redis aged it out.
		if _, err := redis.DoContext(conn, ctx, "DEL", s.key(id)); err != nil {
			s.logger.Debug("failed to delete expired session",
				slog.String("user", id),
				slog.String("error", err.Error()))
		}
	}
	return attrs, nil
}

// Save stores attrs for id, replacing any earlier entry.
func (s *Store) Save(ctx context.Context, id string, attrs *session.Attributes) error {
	data, err := s.codec.Encode(id, attrs, s.ttl)
	if err != nil {
		return store.Failure("save", id, err)
	}

	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return store.Failure("save", id, err)
	}
	defer func() { _ = conn.Close() }()

	args := redis.Args{}.Add(s.key(id), data)
	if secs := int(s.ttl.Seconds()); secs > 0 {
		args = args.Add("EX", secs)
	}
	if _, err := redis.DoContext(conn, ctx, "SET", args...); err != nil {
		return store.Failure("save", id, err)
	}
	return nil
}

// Delete removes the entry for id.
func (s *Store) Delete(ctx context.Context, id string) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return store.Failure("delete", id, err)
	}
	defer func() { _ = conn.Close() }()

	if _, err := redis.DoContext(conn, ctx, "DEL", s.key(id)); err != nil {
		return store.Failure("delete", id, err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

func init() {
	session.RegisterStore("redis", func(cfg session.StoreConfig) (session.SessionStorage, error) {
		if cfg.Backend == "" {
			return nil, fmt.Errorf("%w: redis store needs an address", sessionerrors.ErrDriverConfigInvalid)
		}
		settings, err := store.ParseSettings(cfg.Options)
		if err != nil {
			return nil, err
		}
		var db int
		if v := cfg.Options["database"]; v != "" {
			if _, err := fmt.Sscanf(v, "%d", &db); err != nil {
				return nil, fmt.Errorf("%w: database: %w", sessionerrors.ErrDriverConfigInvalid, err)
			}
		}
		return New(Options{
			Address:  cfg.Backend,
			Password: cfg.Options["password"],
			Database: db,
			Prefix:   cfg.Options["prefix"],
			TTL:      settings.TTL,
			Codec:    settings.Codec,
			Logger:   cfg.Logger,
		}), nil
	})
}
