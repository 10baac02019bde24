package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidClaims is returned by Encode for unusable claim sets or TTLs.
	ErrInvalidClaims = errors.New("invalid claims")
	// ErrInvalidToken is the uniform Decode failure: forged, malformed and
	// expired tokens are deliberately indistinguishable to callers.
	ErrInvalidToken = errors.New("invalid token")
)

// Codec signs and verifies expiring claim sets with a process-wide HS256 secret.
// Access and refresh tokens share one codec so signature and expiry handling
// live in a single place.
type Codec struct {
	secret     []byte
	defaultTTL time.Duration
}

// NewCodec returns a codec signing with secret. defaultTTL is applied when
// Encode is called with a zero TTL (the short access-token lifetime).
func NewCodec(secret []byte, defaultTTL time.Duration) *Codec {
	return &Codec{secret: secret, defaultTTL: defaultTTL}
}

// Encode signs claims with an absolute expiry of now+ttl. claims must be
// non-empty and must not carry an "exp" key already; ttl zero means the
// configured default, negative TTLs are rejected.
func (c *Codec) Encode(claims map[string]any, ttl time.Duration) (string, error) {
	if len(claims) == 0 {
		return "", fmt.Errorf("%w: claims must not be empty", ErrInvalidClaims)
	}
	if _, ok := claims["exp"]; ok {
		return "", fmt.Errorf("%w: claims must not contain exp", ErrInvalidClaims)
	}
	if ttl < 0 {
		return "", fmt.Errorf("%w: ttl must not be negative", ErrInvalidClaims)
	}
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	mc := jwt.MapClaims{}
	for k, v := range claims {
		mc[k] = v
	}
	mc["exp"] = jwt.NewNumericDate(time.Now().UTC().Add(ttl))
	return jwt.NewWithClaims(jwt.SigningMethodHS256, mc).SignedString(c.secret)
}

// Decode verifies signature and expiry and returns the claims. Any failure
// surfaces as ErrInvalidToken so callers have a single unauthenticated branch.
func (c *Codec) Decode(tok string) (map[string]any, error) {
	parsed, err := jwt.Parse(tok, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrInvalidKeyType
		}
		return c.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
