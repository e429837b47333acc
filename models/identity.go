package models

// Identity is a snapshot of the authenticated principal.
type Identity struct {
	// UserID is the owner id change feeds are filtered on. Empty when
	// not authenticated.
	UserID string `json:"user_id"`

	// Authenticated reports whether a user is logged in.
	Authenticated bool `json:"authenticated"`
}

// LoginRequest is the body accepted by the session login endpoint when the
// token is not passed in the Authorization header.
type LoginRequest struct {
	Token string `json:"token"`
}
