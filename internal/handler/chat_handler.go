/*
Package handler: HTTP handler functions for chat creation and membership
administration.
*/
package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"chatrelay/internal/app/db"
	"chatrelay/internal/pkg/auth/jwt"
	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/req"
	"chatrelay/internal/pkg/resp"
)

// chatIDParam parses the {chatID} URL parameter.
func chatIDParam(r *http.Request) (int64, *errs.CustomError) {
	chatID, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
	if err != nil || chatID <= 0 {
		return 0, errs.NewError(errs.ErrInvalidParams)
	}
	return chatID, nil
}

type CreateChatInput struct {
	ChatType       string  `json:"chatType"`
	Name           string  `json:"name"`
	ParticipantIDs []int64 `json:"participantIds"`
}

// HandleCreateChat creates a direct or group chat with the caller as its
// first admin.
func HandleCreateChat(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.IdentityFromContext(r)

		var input CreateChatInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		created, customErr := deps.Membership.CreateChat(r.Context(), identity.UserID, input.ChatType, input.Name, input.ParticipantIDs)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		logx.Info("Chat created", "chat_id", created.ID, "chat_type", created.ChatType, "creator_id", identity.UserID)
		resp.RespondSuccess(w, r, map[string]any{"chat": created})
	}
}

// HandleGetChat returns one chat's details. Member only.
func HandleGetChat(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.IdentityFromContext(r)

		chatID, customErr := chatIDParam(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		isMember, err := deps.Membership.IsMember(r.Context(), identity.UserID, chatID)
		if err != nil || !isMember {
			resp.RespondError(w, r, errs.NewError(errs.ErrNotAMember))
			return
		}

		found, err := deps.Membership.GetChat(r.Context(), chatID)
		if err != nil {
			if db.IsNoRows(err) {
				resp.RespondError(w, r, errs.NewError(errs.ErrChatNotFound))
				return
			}
			logx.Error(err, "failed to fetch chat", "chat_id", chatID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"chat": found})
	}
}

// HandleDeleteChat soft-deletes a chat. Admin only; history stays readable
// but new sends are rejected.
func HandleDeleteChat(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.IdentityFromContext(r)

		chatID, customErr := chatIDParam(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := deps.Membership.DeactivateChat(r.Context(), chatID, identity.UserID); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, nil)
	}
}

// HandleChatParticipants returns the chat's current member ids. Member only.
func HandleChatParticipants(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.IdentityFromContext(r)

		chatID, customErr := chatIDParam(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		isMember, err := deps.Membership.IsMember(r.Context(), identity.UserID, chatID)
		if err != nil || !isMember {
			resp.RespondError(w, r, errs.NewError(errs.ErrNotAMember))
			return
		}

		members, err := deps.Membership.MembersOf(r.Context(), chatID)
		if err != nil {
			logx.Error(err, "failed to list participants", "chat_id", chatID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"userIds": members})
	}
}

// HandleListChats returns the caller's chats, most recently active first.
func HandleListChats(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.IdentityFromContext(r)

		limit := queryInt32(r, "limit", 50)
		if limit <= 0 || limit > 200 {
			limit = 50
		}
		offset := queryInt32(r, "offset", 0)
		if offset < 0 {
			offset = 0
		}

		chats, err := deps.Membership.ListUserChats(r.Context(), identity.UserID, limit, offset)
		if err != nil {
			logx.Error(err, "failed to list chats", "user_id", identity.UserID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"chats": chats})
	}
}

type AddParticipantsInput struct {
	UserIDs []int64 `json:"userIds"`
}

// HandleAddParticipants adds users to a group chat. Admin only.
func HandleAddParticipants(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.IdentityFromContext(r)

		chatID, customErr := chatIDParam(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var input AddParticipantsInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := deps.Membership.AddParticipants(r.Context(), chatID, identity.UserID, input.UserIDs); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, nil)
	}
}

// HandleRemoveParticipant removes a user from a chat. Admins may remove
// anyone; every member may remove themselves.
func HandleRemoveParticipant(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.IdentityFromContext(r)

		chatID, customErr := chatIDParam(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
		if err != nil || userID <= 0 {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if customErr := deps.Membership.RemoveParticipant(r.Context(), chatID, identity.UserID, userID); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, nil)
	}
}

// HandleOnlineUsers returns the chat members with a live connection
// subscribed to it right now. Member only.
func HandleOnlineUsers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.IdentityFromContext(r)

		chatID, customErr := chatIDParam(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		isMember, err := deps.Membership.IsMember(r.Context(), identity.UserID, chatID)
		if err != nil || !isMember {
			resp.RespondError(w, r, errs.NewError(errs.ErrNotAMember))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"userIds": deps.Hub.Registry.OnlineUsersIn(chatID),
		})
	}
}

// queryInt32 parses an int32 query parameter with a fallback.
func queryInt32(r *http.Request, key string, fallback int32) int32 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return fallback
	}
	return int32(v)
}
