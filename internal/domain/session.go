package domain

import "time"

// Session is an opaque server-side token binding a browser to a user.
// Tokens are random, revocable and expire by inactivity.
type Session struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	LastUsed  time.Time `json:"last_used"`
}

// LoginToken is a short-lived handshake token for the deep-link login
// flow: the site issues it, the user sends it to the bot via /start,
// and the browser polls until the bot confirms it.
type LoginToken struct {
	Token     string    `json:"token"`
	Confirmed bool      `json:"confirmed"`
	UserID    int64     `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
