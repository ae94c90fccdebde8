package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType distinguishes access tokens from refresh tokens inside claims.
// A token of one type is never accepted where the other is required.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

const adminMode = "admin"

// Claims is the claim set carried by every Together token.
type Claims struct {
	Kind      Kind      `json:"kind"`
	TokenType TokenType `json:"typ"`
	Mode      string    `json:"mode,omitempty"`
	jwt.RegisteredClaims
}

// AdminMode reports whether the token carries the elevated admin marker.
func (c *Claims) AdminMode() bool { return c.Mode == adminMode }

// Codec signs and validates bearer tokens with a process-wide HS256 secret.
// It is constructed once at startup, holds no mutable state, and is safe for
// concurrent use.
type Codec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewCodec constructs a Codec. The secret is required; issuer defaults to
// "together-api".
func NewCodec(secret []byte, issuer string) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: signing secret is required")
	}
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		issuer = "together-api"
	}
	return &Codec{secret: secret, issuer: issuer, now: time.Now}, nil
}

// Issue mints a signed token for the principal. The jti is a fresh UUID; for
// refresh tokens it is the rotation identifier whose hash the store keeps.
// Admin principals get the mode claim checked by admin-only gates.
func (c *Codec) Issue(p Principal, typ TokenType, ttl time.Duration) (string, *Claims, error) {
	if ttl <= 0 {
		return "", nil, errors.New("auth: ttl must be positive")
	}
	now := c.now().UTC()
	claims := &Claims{
		Kind:      p.Kind,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	if p.Kind == KindAdmin {
		claims.Mode = adminMode
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Decode validates signature, expiry and claim shape, and rejects tokens
// whose type does not match want. All failures are typed sentinels; no input
// can make it panic.
func (c *Codec) Decode(token string, want TokenType) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMalformedToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return c.now().UTC() }))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrMalformedToken
		default:
			return nil, ErrInvalidToken
		}
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if err := c.validate(claims, want); err != nil {
		return nil, err
	}
	return claims, nil
}

func (c *Codec) validate(claims *Claims, want TokenType) error {
	if claims.Issuer != c.issuer {
		return ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" || claims.ID == "" {
		return ErrMalformedToken
	}
	if !claims.Kind.Valid() {
		return ErrMalformedToken
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return ErrMalformedToken
	}
	if claims.TokenType != want {
		return ErrInvalidToken
	}
	return nil
}
