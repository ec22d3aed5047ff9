package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/projectplus/apiserver/types"
	"github.com/rs/zerolog/hlog"
)

type contextKey string

const contextClaimsKey contextKey = "claims"

// TokenParser validates session tokens.
type TokenParser interface {
	Parse(token string) (types.Claims, error)
}

// RequireAuth enforces JWT authentication and injects the claims into context.
func RequireAuth(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized, sign in again")
				return
			}

			claims, err := tokens.Parse(tokenString)
			if err != nil {
				hlog.FromRequest(r).Debug().Err(err).Msg("rejected token")
				writeError(w, http.StatusUnauthorized, "unauthorized, sign in again")
				return
			}

			ctx := context.WithValue(r.Context(), contextClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func claimsFromContext(ctx context.Context) (types.Claims, bool) {
	claims, ok := ctx.Value(contextClaimsKey).(types.Claims)
	return claims, ok && claims.UserID > 0
}

// userID returns the caller's ID. It writes a 401 and returns false when the
// route was not wrapped by RequireAuth.
func userID(w http.ResponseWriter, r *http.Request) (int, bool) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return 0, false
	}
	return claims.UserID, true
}

// bearerToken accepts "Bearer <token>" and a bare token.
func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) == 1 {
		if strings.EqualFold(parts[0], "Bearer") {
			return "", errors.New("invalid authorization")
		}
		return parts[0], nil
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
