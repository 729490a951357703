package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatsReportsCallerSessions(t *testing.T) {
	r := require.New(t)
	env := newTestEnv(t)

	status, envelope := env.do(t, http.MethodGet, "/api/stats", 1, "alice", nil)
	r.Equal(http.StatusOK, status)
	r.Zero(envelope.Code)

	data := dataMap(t, envelope)
	r.EqualValues(0, data["connections"])
	r.EqualValues(16, data["maxConnections"])

	you, ok := data["you"].(map[string]any)
	r.True(ok)
	r.EqualValues(1, you["userId"])
	r.Equal("alice", you["username"])
	r.Equal(false, you["online"])

	// No live connection, so the session list is present but empty.
	sessions, ok := you["sessions"].([]any)
	r.True(ok)
	r.Empty(sessions)
}
