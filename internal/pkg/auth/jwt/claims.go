package jwt

import "github.com/golang-jwt/jwt"

// Identity defines the JWT claims carried by a signed-in user's token.
// The websocket open and every REST call resolve to one of these.
type Identity struct {
	// StandardClaims embeds the standard JWT fields (Exp, Iat, Iss) used for
	// validity checks.
	jwt.StandardClaims `json:"standard_claims"`

	// UserID is the numeric identifier of the authenticated user.
	UserID int64 `json:"uid"`

	// Username is the unique login name, carried so the live channel can
	// label events without a user lookup per frame.
	Username string `json:"username"`
}
