package domain

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is the client's view of who is logged in. An empty Token means
// logged out; a Token with a nil User means the profile has not been
// fetched yet.
type Session struct {
	Token string `json:"-"`
	User  *User  `json:"user,omitempty"`
}

// LoggedIn reports whether a token is present.
func (s Session) LoggedIn() bool { return s.Token != "" }

// Clone deep-copies the session.
func (s Session) Clone() Session {
	return Session{Token: s.Token, User: s.User.Clone()}
}

// TokenExpiry reads the "exp" claim of a JWT-shaped token without
// verifying it. Tokens are opaque to the client, so this is only a display
// hint; ok is false for anything that is not a JWT with an expiry.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
