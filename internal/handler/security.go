package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/flight-gateway/internal/domain/auth"
	"github.com/xenking/flight-gateway/internal/domain/user"
)

// Authentication failures. Each renders as a 401 with a Bearer challenge.
var (
	errNotAuthenticated = errors.New("not authenticated")
	errBadCredentials   = errors.New("could not validate credentials")
)

type userKey struct{}

// userFrom returns the account resolved by requireAuth.
func userFrom(ctx context.Context) *user.User {
	u, _ := ctx.Value(userKey{}).(*user.User)
	return u
}

// requireAuth verifies the bearer token, resolves its subject and stores the
// account and claims in the request context.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		raw, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeError(ctx, w, errNotAuthenticated)
			return
		}
		claims, err := h.tokens.Verify(raw)
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		u, err := h.users.Lookup(ctx, claims.Login)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				err = errBadCredentials
			}
			writeError(ctx, w, err)
			return
		}
		if u.ID != claims.UserID {
			writeError(ctx, w, errBadCredentials)
			return
		}

		ctx = auth.WithClaims(ctx, claims)
		ctx = context.WithValue(ctx, userKey{}, u)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
