/*
Package handler: HTTP handler functions for the user read surface: the
caller's own profile and username prefix search.
*/
package handler

import (
	"net/http"
	"regexp"

	"chatrelay/internal/app/db"
	"chatrelay/internal/pkg/auth/jwt"
	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/resp"
)

// searchPrefixRegex bounds search input to username characters, so the
// prefix feeds the LIKE pattern without wildcard characters.
var searchPrefixRegex = regexp.MustCompile(`^[a-z0-9_]{1,20}$`)

const searchResultLimit = 20

// HandleGetMe returns the authenticated caller's own account.
func HandleGetMe(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.IdentityFromContext(r)

		account, err := deps.Users.GetByID(r.Context(), identity.UserID)
		if err != nil {
			if db.IsNoRows(err) {
				resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
				return
			}
			logx.Error(err, "failed to fetch own profile", "user_id", identity.UserID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"user": account})
	}
}

// HandleSearchUsers finds active accounts by username prefix.
func HandleSearchUsers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("q")
		if !searchPrefixRegex.MatchString(prefix) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		users, err := deps.Users.SearchByUsername(r.Context(), prefix, searchResultLimit)
		if err != nil {
			logx.Error(err, "user search failed", "prefix", prefix)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"users": users})
	}
}
