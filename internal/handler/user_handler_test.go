package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"chatrelay/internal/pkg/errs"
)

func TestGetMeReturnsOwnAccount(t *testing.T) {
	r := require.New(t)
	env := newTestEnv(t)

	env.users.addUser(1, "alice")

	status, envelope := env.do(t, http.MethodGet, "/api/users/me", 1, "alice", nil)
	r.Equal(http.StatusOK, status)
	r.Zero(envelope.Code)

	data := dataMap(t, envelope)
	account, ok := data["user"].(map[string]any)
	r.True(ok)
	r.EqualValues(1, account["id"])
	r.Equal("alice", account["username"])
	r.NotContains(account, "passwordHash")
}

func TestGetMeUnknownAccount(t *testing.T) {
	r := require.New(t)
	env := newTestEnv(t)

	_, envelope := env.do(t, http.MethodGet, "/api/users/me", 7, "ghost", nil)
	r.Equal(errs.ErrUserNotFound, envelope.Code)
}

func TestSearchUsersByPrefix(t *testing.T) {
	r := require.New(t)
	env := newTestEnv(t)

	env.users.addUser(1, "alice")
	env.users.addUser(2, "albert")
	env.users.addUser(3, "bob")

	status, envelope := env.do(t, http.MethodGet, "/api/users/search?q=al", 3, "bob", nil)
	r.Equal(http.StatusOK, status)
	r.Zero(envelope.Code)

	data := dataMap(t, envelope)
	users, ok := data["users"].([]any)
	r.True(ok)
	r.Len(users, 2)

	first, ok := users[0].(map[string]any)
	r.True(ok)
	r.Equal("albert", first["username"])
}

func TestSearchUsersRejectsBadQuery(t *testing.T) {
	r := require.New(t)
	env := newTestEnv(t)

	env.users.addUser(1, "alice")

	for _, q := range []string{
		"",
		"UPPER",
		"has+space",
		"wild%25card", // encoded %, would otherwise reach the LIKE pattern
		"a_very_long_query_over_limit",
	} {
		_, envelope := env.do(t, http.MethodGet, "/api/users/search?q="+q, 1, "alice", nil)
		r.Equal(errs.ErrInvalidParams, envelope.Code, "query %q must be rejected", q)
	}
}
