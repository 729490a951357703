package handler

import (
	"net/http"

	"chatrelay/internal/pkg/auth/jwt"
	"chatrelay/internal/pkg/resp"
)

// HandleStats reports live connection counts from the registry.
func HandleStats(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.IdentityFromContext(r)

		own := deps.Hub.Registry.ConnectionsOf(identity.UserID)
		sessions := make([]map[string]any, 0, len(own))
		for _, c := range own {
			sessions = append(sessions, map[string]any{
				"connectedAt":  c.ConnectedAt(),
				"lastActiveAt": c.LastActiveAt(),
			})
		}

		resp.RespondSuccess(w, r, map[string]any{
			"connections":    deps.Hub.Registry.ConnectionCount(),
			"onlineUsers":    deps.Hub.Registry.OnlineUserCount(),
			"maxConnections": deps.Config.MaxConnections,
			"you": map[string]any{
				"userId":   identity.UserID,
				"username": identity.Username,
				"online":   deps.Hub.Registry.IsUserOnline(identity.UserID),
				"sessions": sessions,
			},
		})
	}
}
