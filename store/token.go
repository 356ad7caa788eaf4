package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/infodancer/session"
)

// attributesClaim is the private claim holding the cached attributes.
const attributesClaim = "groupware_session"

// TokenCodec stores attributes as an HS256-signed JWT. The subject is the
// session id and the expiry is the storage ttl, so tampered, misplaced or
// stale records are rejected even if the backend keeps them.
type TokenCodec struct {
	// Key is the HMAC signing key.
	Key []byte

	// Issuer is set as the iss claim and required when decoding, if non-empty.
	Issuer string

	// Now returns the current time; time.Now when nil.
	Now func() time.Time
}

func (c *TokenCodec) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Encode implements Codec.
func (c *TokenCodec) Encode(id string, attrs *session.Attributes, ttl time.Duration) ([]byte, error) {
	now := c.now()
	b := jwt.NewBuilder().
		Subject(id).
		IssuedAt(now).
		Claim(attributesClaim, attrs)
	if ttl > 0 {
		b = b.Expiration(now.Add(ttl))
	}
	if c.Issuer != "" {
		b = b.Issuer(c.Issuer)
	}

	tok, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build token: %w", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, c.Key))
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Decode implements Codec. An expired token decodes to nil, nil.
func (c *TokenCodec) Decode(id string, data []byte) (*session.Attributes, error) {
	opts := []jwt.ParseOption{
		jwt.WithKey(jwa.HS256, c.Key),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(c.now)),
		jwt.WithSubject(id),
	}
	if c.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.Issuer))
	}

	tok, err := jwt.Parse(data, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired()) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse token: %w", err)
	}

	raw, ok := tok.Get(attributesClaim)
	if !ok {
		return nil, fmt.Errorf("parse token: missing %s claim", attributesClaim)
	}
	// Private claims come back as generic JSON values.
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	var attrs session.Attributes
	if err := json.Unmarshal(buf, &attrs); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return &attrs, nil
}
