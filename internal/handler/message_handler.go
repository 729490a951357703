/*
Package handler: HTTP handler functions for sending, paging, editing, and
deleting chat messages over REST. The same pipeline backs the WebSocket
frames, so both surfaces share validation, persistence order, and fan-out.
*/
package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"chatrelay/internal/pkg/auth/jwt"
	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/randx"
	"chatrelay/internal/pkg/req"
	"chatrelay/internal/pkg/resp"
)

// messageIDParam parses and sanity-checks the {messageID} URL parameter.
func messageIDParam(r *http.Request) (string, *errs.CustomError) {
	messageID := chi.URLParam(r, "messageID")
	if !randx.IsValidMessageID(messageID) {
		return "", errs.NewError(errs.ErrInvalidParams)
	}
	return messageID, nil
}

type SendMessageInput struct {
	Content string `json:"content"`
}

// HandleSendMessage runs one message through the pipeline on behalf of
// clients without a live WebSocket.
func HandleSendMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.IdentityFromContext(r)

		chatID, customErr := chatIDParam(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var input SendMessageInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		msg, customErr := deps.Hub.Pipeline.Send(r.Context(), chatID, identity.UserID, input.Content)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"message": msg})
	}
}

// HandleMessageHistory pages a chat's messages newest first. The "before"
// query parameter carries the sequence cursor from the previous page.
func HandleMessageHistory(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.IdentityFromContext(r)

		chatID, customErr := chatIDParam(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var beforeSeq int64
		if raw := r.URL.Query().Get("before"); raw != "" {
			v, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
				return
			}
			beforeSeq = v
		}

		limit := queryInt32(r, "limit", 0)

		messages, customErr := deps.Hub.Pipeline.History(r.Context(), chatID, identity.UserID, beforeSeq, limit)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var nextBefore int64
		if len(messages) > 0 {
			nextBefore = messages[len(messages)-1].Seq
		}

		resp.RespondSuccess(w, r, map[string]any{
			"messages":   messages,
			"nextBefore": nextBefore,
		})
	}
}

type EditMessageInput struct {
	Content string `json:"content"`
}

// HandleEditMessage replaces a message's content. Sender only.
func HandleEditMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.IdentityFromContext(r)

		messageID, customErr := messageIDParam(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var input EditMessageInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		msg, customErr := deps.Hub.Pipeline.Edit(r.Context(), messageID, identity.UserID, input.Content)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"message": msg})
	}
}

// HandleDeleteMessage tombstones a message. Sender or chat admin.
func HandleDeleteMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.IdentityFromContext(r)

		messageID, customErr := messageIDParam(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := deps.Hub.Pipeline.Delete(r.Context(), messageID, identity.UserID); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, nil)
	}
}
