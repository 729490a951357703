/*
Package handler provides the HTTP handlers and routing setup for the chat
relay service.

This file defines the main Router, applying middleware like logging, CORS,
and IP-based rate limiting before delegating requests to specific handlers
(REST API and the WebSocket endpoint).
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"chatrelay/internal/pkg/auth/jwt"
	"chatrelay/internal/pkg/limiter"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/resp"
)

const (
	AuthRate  = 0.2
	AuthBurst = 5

	ConnectRate  = 1
	ConnectBurst = 10
)

// Router sets up the HTTP routing table. It configures CORS from the allowed
// origins, applies global middleware, rate-limits the unauthenticated auth
// endpoints, and puts the rest of the API behind JWT validation.
func Router(deps *AppDeps) http.Handler {
	authLimiter := limiter.NewIPRateLimiter(rate.Limit(AuthRate), AuthBurst)
	connectLimiter := limiter.NewIPRateLimiter(rate.Limit(ConnectRate), ConnectBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	var wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.Environment == "development" {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.Environment == "development" {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, map[string]string{
			"status":  "ok",
			"service": "chatrelay",
		})
	})

	r.Route("/api", func(api chi.Router) {
		api.Route("/auth", func(auth chi.Router) {
			auth.Use(authLimiter.Middleware)
			auth.Post("/register", HandleRegister(deps))
			auth.Post("/login", HandleLogin(deps))
		})

		api.Group(func(private chi.Router) {
			private.Use(jwt.RequireAuth(deps.Config.JWTSecret))

			private.Route("/chats", func(chats chi.Router) {
				chats.Post("/", HandleCreateChat(deps))
				chats.Get("/", HandleListChats(deps))

				chats.Route("/{chatID}", func(one chi.Router) {
					one.Get("/", HandleGetChat(deps))
					one.Delete("/", HandleDeleteChat(deps))
					one.Get("/participants", HandleChatParticipants(deps))
					one.Post("/participants", HandleAddParticipants(deps))
					one.Delete("/participants/{userID}", HandleRemoveParticipant(deps))
					one.Get("/online", HandleOnlineUsers(deps))
					one.Post("/messages", HandleSendMessage(deps))
					one.Get("/messages", HandleMessageHistory(deps))
				})
			})

			private.Route("/users", func(users chi.Router) {
				users.Get("/me", HandleGetMe(deps))
				users.Get("/search", HandleSearchUsers(deps))
			})

			private.Patch("/messages/{messageID}", HandleEditMessage(deps))
			private.Delete("/messages/{messageID}", HandleDeleteMessage(deps))

			private.Get("/stats", HandleStats(deps))
		})
	})

	r.Get("/ws", HandleWebSocket(wsUpgrader, connectLimiter, deps))

	return r
}
