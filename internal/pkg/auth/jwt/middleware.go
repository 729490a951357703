package jwt

import (
	"context"
	"net/http"
	"strings"

	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/resp"
)

type contextKey string

// contextIdentityKey stores the parsed Identity in the request context.
const contextIdentityKey contextKey = "auth_identity"

// RequireAuth validates the Bearer token on every request and injects the
// Identity into the context. Requests without a valid token get HTTP 401;
// there is no anonymous surface behind this middleware.
func RequireAuth(secretKey string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}

			identity, err := ParseToken(parts[1], secretKey)
			if err != nil {
				logx.Warn("Rejected request with invalid or expired JWT", "error", err)
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}

			ctx := context.WithValue(r.Context(), contextIdentityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext extracts the authenticated Identity. Behind RequireAuth
// it never returns nil.
func IdentityFromContext(r *http.Request) *Identity {
	identity, ok := r.Context().Value(contextIdentityKey).(*Identity)
	if !ok {
		return nil
	}
	return identity
}
