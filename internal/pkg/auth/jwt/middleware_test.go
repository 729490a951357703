package jwt

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func protectedEndpoint(t *testing.T, captured **Identity) http.Handler {
	t.Helper()
	return RequireAuth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = IdentityFromContext(r)
		w.WriteHeader(http.StatusNoContent)
	}))
}

func TestRequireAuthAcceptsValidBearer(t *testing.T) {
	r := require.New(t)

	tokenString, err := GenerateToken(&Identity{UserID: 12, Username: "alice"}, testSecret, time.Hour)
	r.NoError(err)

	var captured *Identity
	h := protectedEndpoint(t, &captured)

	req := httptest.NewRequest("GET", "/api/stats", nil)
	req.Header.Set("Authorization", "Bearer "+tokenString)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	r.Equal(http.StatusNoContent, w.Code)
	r.NotNil(captured)
	r.Equal(int64(12), captured.UserID)
	r.Equal("alice", captured.Username)
}

func TestRequireAuthRejectsMissingOrMalformedHeader(t *testing.T) {
	r := require.New(t)

	var captured *Identity
	h := protectedEndpoint(t, &captured)

	for _, header := range []string{"", "Bearer", "Basic dXNlcjpwYXNz", "Bearer not.a.token"} {
		req := httptest.NewRequest("GET", "/api/stats", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		r.Equal(http.StatusUnauthorized, w.Code, "header %q must be rejected", header)
		r.Nil(captured)
	}
}

func TestIdentityFromContextWithoutMiddleware(t *testing.T) {
	require.Nil(t, IdentityFromContext(httptest.NewRequest("GET", "/", nil)))
}
