// Package store holds what the session storage drivers share: the codecs
// that turn cached attributes into bytes and the parsing of driver options.
//
// Drivers live in the subpackages and register themselves with
// session.RegisterStore:
//
//	import _ "github.com/infodancer/session/store/badger"
package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/infodancer/session"
	"github.com/infodancer/session/errors"
)

// DefaultTTL is how long a cached session is kept when the config names no ttl.
const DefaultTTL = 4 * time.Hour

// KeyPrefix is prepended to session ids in key-value backends.
const KeyPrefix = "session:"

// Codec encodes cached attributes for a key-value backend.
type Codec interface {
	// Encode serialises attrs stored under id. ttl is the lifetime the
	// backend will apply; codecs may embed it.
	Encode(id string, attrs *session.Attributes, ttl time.Duration) ([]byte, error)

	// Decode restores the attributes stored under id. It returns nil, nil
	// if the data has expired.
	Decode(id string, data []byte) (*session.Attributes, error)
}

// record is the JSON form of a cached session.
type record struct {
	ID         string             `json:"id"`
	Attributes session.Attributes `json:"attributes"`
}

// JSONCodec stores attributes as plain JSON.
type JSONCodec struct{}

// Encode implements Codec.
func (JSONCodec) Encode(id string, attrs *session.Attributes, _ time.Duration) ([]byte, error) {
	return json.Marshal(record{ID: id, Attributes: *attrs})
}

// Decode implements Codec.
func (JSONCodec) Decode(id string, data []byte) (*session.Attributes, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if r.ID != id {
		return nil, fmt.Errorf("decode session: stored for %q, requested %q", r.ID, id)
	}
	return &r.Attributes, nil
}

// Settings are the options every driver understands.
type Settings struct {
	TTL   time.Duration
	Codec Codec
}

// ParseSettings reads the common driver options:
//
//	ttl    = "4h"              lifetime of cached sessions
//	codec  = "json" | "token"  encoding of cached sessions
//	secret = "..."             HMAC key, required by the token codec
//	issuer = "..."             token issuer, optional
func ParseSettings(opts map[string]string) (Settings, error) {
	s := Settings{TTL: DefaultTTL, Codec: JSONCodec{}}

	if v := opts["ttl"]; v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return s, fmt.Errorf("%w: ttl: %w", errors.ErrDriverConfigInvalid, err)
		}
		s.TTL = ttl
	}

	switch opts["codec"] {
	case "", "json":
	case "token":
		if opts["secret"] == "" {
			return s, fmt.Errorf("%w: token codec needs a secret", errors.ErrDriverConfigInvalid)
		}
		s.Codec = &TokenCodec{Key: []byte(opts["secret"]), Issuer: opts["issuer"]}
	default:
		return s, fmt.Errorf("%w: unknown codec %q", errors.ErrDriverConfigInvalid, opts["codec"])
	}

	return s, nil
}

// ParseBool reads a boolean option; absent means false.
func ParseBool(opts map[string]string, key string) (bool, error) {
	v := opts[key]
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %w", errors.ErrDriverConfigInvalid, key, err)
	}
	return b, nil
}

// Failure wraps err as a session storage failure of op on id.
func Failure(op, id string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", errors.ErrStorageFailure, op, id, err)
}
