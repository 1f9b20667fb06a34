package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokens(t *testing.T, cfg TokenConfig) *Tokens {
	t.Helper()
	if cfg.Secret == "" {
		cfg.Secret = "test-secret"
	}
	if cfg.Lifetime == 0 {
		cfg.Lifetime = 30 * time.Minute
	}
	tokens, err := NewTokens(cfg)
	require.NoError(t, err)
	return tokens
}

func TestNewTokens_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     TokenConfig
		wantErr string
	}{
		{name: "missing secret", cfg: TokenConfig{Lifetime: time.Minute}, wantErr: "secret is required"},
		{name: "bad algorithm", cfg: TokenConfig{Secret: "s", Algorithm: "RS256", Lifetime: time.Minute}, wantErr: "unsupported signing algorithm"},
		{name: "zero lifetime", cfg: TokenConfig{Secret: "s"}, wantErr: "lifetime must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTokens(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTokens_RoundTrip(t *testing.T) {
	for _, alg := range []string{"HS256", "HS384", "HS512"} {
		t.Run(alg, func(t *testing.T) {
			tokens := newTestTokens(t, TokenConfig{Algorithm: alg, Issuer: "flight-gateway"})

			raw, err := tokens.Issue(7, "testuser")
			require.NoError(t, err)

			claims, err := tokens.Verify(raw)
			require.NoError(t, err)
			assert.Equal(t, int64(7), claims.UserID)
			assert.Equal(t, "testuser", claims.Login)
		})
	}
}

func TestTokens_Expired(t *testing.T) {
	tokens := newTestTokens(t, TokenConfig{Lifetime: time.Minute})
	issued := time.Now().Add(-time.Hour)
	tokens.now = func() time.Time { return issued }

	raw, err := tokens.Issue(1, "testuser")
	require.NoError(t, err)

	tokens.now = time.Now
	_, err = tokens.Verify(raw)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokens_BadTokens(t *testing.T) {
	tokens := newTestTokens(t, TokenConfig{Issuer: "flight-gateway"})
	other := newTestTokens(t, TokenConfig{Secret: "other-secret", Issuer: "flight-gateway"})
	foreignIssuer := newTestTokens(t, TokenConfig{Issuer: "someone-else"})
	hs512 := newTestTokens(t, TokenConfig{Algorithm: "HS512", Issuer: "flight-gateway"})

	wrongSecret, err := other.Issue(1, "testuser")
	require.NoError(t, err)
	wrongIssuer, err := foreignIssuer.Issue(1, "testuser")
	require.NoError(t, err)
	wrongAlg, err := hs512.Issue(1, "testuser")
	require.NoError(t, err)
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
		"iss": "flight-gateway",
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "testuser",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": wrongSecret,
		"wrong issuer": wrongIssuer,
		"wrong alg":    wrongAlg,
		"no subject":   noSubject,
		"none alg":     noneAlg,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := tokens.Verify(raw)
			require.ErrorIs(t, err, ErrBadToken)
		})
	}
}

func TestClaimsContext(t *testing.T) {
	_, ok := ClaimsFrom(context.Background())
	assert.False(t, ok)

	ctx := WithClaims(context.Background(), &Claims{UserID: 3, Login: "traveler"})
	c, ok := ClaimsFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "traveler", c.Login)
}

func TestBcryptHasher(t *testing.T) {
	h := BcryptHasher{Cost: 4}

	hash, err := h.Hash("testpassword")
	require.NoError(t, err)
	assert.NotEqual(t, "testpassword", hash)

	require.NoError(t, h.Compare(hash, "testpassword"))
	require.ErrorIs(t, h.Compare(hash, "wrong"), ErrPasswordMismatch)
	require.Error(t, h.Compare("not-a-hash", "testpassword"))
}
