/*
Package handler: the WebSocket entry point. Authenticates the token, rate
limits by client IP, upgrades the connection, and hands it to the hub for
its lifetime.
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"chatrelay/internal/pkg/auth/jwt"
	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/limiter"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/resp"
)

// HandleWebSocket processes WebSocket connection requests on /ws. The token
// travels as a query parameter because browser WebSocket clients cannot set
// an Authorization header on the upgrade request.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := limiter.ClientIP(r)

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		tokenString := r.URL.Query().Get("token")
		if tokenString == "" {
			logx.Warn("WebSocket request rejected: Missing token query parameter")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		identity, err := jwt.ParseToken(tokenString, deps.Config.JWTSecret)
		if err != nil {
			logx.Warn("WebSocket request rejected: Invalid token", "error", err)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		logx.Info("WebSocket connection established", "user_id", identity.UserID, "username", identity.Username)

		if customErr := deps.Hub.HandleConnection(conn, identity.UserID, identity.Username); customErr != nil {
			// Registration failed after the upgrade; close with a
			// try-again-later code so well-behaved clients back off.
			closeMsg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, customErr.Message)
			if err := conn.WriteMessage(websocket.CloseMessage, closeMsg); err != nil {
				logx.Warn("Failed to write close message to rejected connection", "error", err)
			}
			conn.Close()
		}
	}
}
