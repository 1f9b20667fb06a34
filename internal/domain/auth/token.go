// Package auth issues and verifies the gateway's bearer tokens and hashes
// user passwords.
package auth

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
)

// Token verification errors. Callers map them to 401 responses.
var (
	ErrTokenExpired = errors.New("token expired")
	ErrBadToken     = errors.New("bad token")
)

// Claims identifies the user a token was issued to.
type Claims struct {
	UserID int64
	Login  string
}

type tokenClaims struct {
	ID int64 `json:"id"`
	jwt.RegisteredClaims
}

// TokenConfig configures token signing.
type TokenConfig struct {
	Secret    string
	Algorithm string
	Lifetime  time.Duration
	Issuer    string
}

// Tokens signs and verifies HMAC JWT access tokens.
type Tokens struct {
	secret   []byte
	method   jwt.SigningMethod
	lifetime time.Duration
	issuer   string
	now      func() time.Time
}

// NewTokens validates cfg and returns a Tokens. Only HS256, HS384 and HS512
// are accepted.
func NewTokens(cfg TokenConfig) (*Tokens, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token secret is required")
	}
	var method jwt.SigningMethod
	switch cfg.Algorithm {
	case "", "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, errors.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}
	if cfg.Lifetime <= 0 {
		return nil, errors.Errorf("token lifetime must be positive, got %s", cfg.Lifetime)
	}
	return &Tokens{
		secret:   []byte(cfg.Secret),
		method:   method,
		lifetime: cfg.Lifetime,
		issuer:   cfg.Issuer,
		now:      time.Now,
	}, nil
}

// Issue returns a signed access token for the user.
func (t *Tokens) Issue(userID int64, login string) (string, error) {
	now := t.now()
	claims := tokenClaims{
		ID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   login,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.lifetime)),
		},
	}
	signed, err := jwt.NewWithClaims(t.method, claims).SignedString(t.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}

// Verify parses a token and returns its claims. The signing algorithm is
// pinned to the configured one.
func (t *Tokens) Verify(raw string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{t.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}

	var claims tokenClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, opts...)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case err != nil:
		return nil, errors.Wrap(ErrBadToken, err.Error())
	}

	if claims.Subject == "" {
		return nil, errors.Wrap(ErrBadToken, "missing subject")
	}
	return &Claims{UserID: claims.ID, Login: claims.Subject}, nil
}

type claimsKey struct{}

// WithClaims stores verified claims in ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFrom returns the claims stored by WithClaims.
func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok && c != nil
}
