// Package badger provides a session storage driver on an embedded BadgerDB.
//
// Storage model:
//   - session:{id} -> Codec(attributes), with the store ttl as entry TTL
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/infodancer/session"
	sessionerrors "github.com/infodancer/session/errors"
	"github.com/infodancer/session/store"
)

// Options configures a Store.
type Options struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps the database in memory only.
	InMemory bool

	// TTL is the lifetime of saved sessions; zero keeps them forever.
	TTL time.Duration

	// Codec encodes saved attributes; JSONCodec when nil.
	Codec store.Codec

	Logger *slog.Logger
}

// Store is a SessionStorage backed by BadgerDB.
//
// Thread Safety:
// All operations use BadgerDB transactions.
type Store struct {
	db     *badgerdb.DB
	ttl    time.Duration
	codec  store.Codec
	logger *slog.Logger
}

// Open opens (or creates) the database described by opts.
func Open(opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	codec := opts.Codec
	if codec == nil {
		codec = store.JSONCodec{}
	}

	dbOpts := badgerdb.DefaultOptions(opts.Path).
		WithInMemory(opts.InMemory).
		WithLogger(nil)
	if opts.InMemory {
		dbOpts = dbOpts.WithDir("").WithValueDir("")
	}

	db, err := badgerdb.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: open badger at %q: %w", sessionerrors.ErrStorageUnavailable, opts.Path, err)
	}

	logger.Debug("opened session store",
		slog.String("driver", "badger"),
		slog.String("path", opts.Path),
		slog.Bool("in_memory", opts.InMemory))

	return &Store{db: db, ttl: opts.TTL, codec: codec, logger: logger}, nil
}

func key(id string) []byte {
	return []byte(store.KeyPrefix + id)
}

// Load returns the attributes saved for id, or nil, nil if there are none.
func (s *Store) Load(ctx context.Context, id string) (*session.Attributes, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.Failure("load", id, err)
	}

	var data []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(key(id))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, store.Failure("load", id, err)
	}

	attrs, err := s.codec.Decode(id, data)
	if err != nil {
		return nil, store.Failure("load", id, err)
	}
	return attrs, nil
}

// Save stores attrs for id, replacing any earlier entry.
func (s *Store) Save(ctx context.Context, id string, attrs *session.Attributes) error {
	if err := ctx.Err(); err != nil {
		return store.Failure("save", id, err)
	}

	data, err := s.codec.Encode(id, attrs, s.ttl)
	if err != nil {
		return store.Failure("save", id, err)
	}

	err = s.db.Update(func(txn *badgerdb.Txn) error {
		e := badgerdb.NewEntry(key(id), data)
		if s.ttl > 0 {
			e = e.WithTTL(s.ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return store.Failure("save", id, err)
	}
	return nil
}

// Delete removes the entry for id.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return store.Failure("delete", id, err)
	}

	err := s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(key(id))
	})
	if err != nil {
		return store.Failure("delete", id, err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func init() {
	session.RegisterStore("badger", func(cfg session.StoreConfig) (session.SessionStorage, error) {
		settings, err := store.ParseSettings(cfg.Options)
		if err != nil {
			return nil, err
		}
		inMemory, err := store.ParseBool(cfg.Options, "in_memory")
		if err != nil {
			return nil, err
		}
		if cfg.Backend == "" && !inMemory {
			return nil, fmt.Errorf("%w: badger store needs a path", sessionerrors.ErrDriverConfigInvalid)
		}
		return Open(Options{
			Path:     cfg.Backend,
			InMemory: inMemory,
			TTL:      settings.TTL,
			Codec:    settings.Codec,
			Logger:   cfg.Logger,
		})
	})
}
