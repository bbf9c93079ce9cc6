package domain

import "time"

// View is the page a client reports from its heartbeat, e.g. "kanban"
// or "ticket:42".
type View string

// MaskedIdentity is a user's public face after privacy masking. The
// Real* fields are populated only for admin viewers and omitted from
// everyone else's payloads.
type MaskedIdentity struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Username  string `json:"username,omitempty"`
	PhotoURL  string `json:"photo_url,omitempty"`
	IsAdmin   bool   `json:"is_admin"`
	IsMasked  bool   `json:"is_masked,omitempty"`
	IsHidden  bool   `json:"is_hidden,omitempty"`

	RealName     *string `json:"real_name,omitempty"`
	RealUsername *string `json:"real_username,omitempty"`
	RealPhotoURL *string `json:"real_photo_url,omitempty"`
}

// OnlineUser is one entry in the online list. The ticket fields are
// only set while the user reports being inside a ticket, and are
// withheld from non-admins when the user hides activity.
type OnlineUser struct {
	MaskedIdentity
	View        View      `json:"view,omitempty"`
	TicketID    *int64    `json:"ticket_id,omitempty"`
	TicketTitle string    `json:"ticket_title,omitempty"`
	LastSeen    time.Time `json:"last_seen"`
}

// PresenceSnapshot is what presence broadcasts and the online endpoint
// return.
type PresenceSnapshot struct {
	Users []OnlineUser `json:"users"`
	Count int          `json:"count"`
}

// TypingUser is one entry in a ticket's typing list, masked for the
// viewer like any other exposed identity.
type TypingUser struct {
	MaskedIdentity
}
