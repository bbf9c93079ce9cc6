package domain

import "time"

// Message is a ticket comment. System messages record status and title
// changes and carry no author identity in rendered output.
type Message struct {
	ID        int64     `json:"id"`
	TicketID  int64     `json:"ticket_id"`
	AuthorID  int64     `json:"author_id"`
	Content   string    `json:"content"`
	IsSystem  bool      `json:"is_system"`
	CreatedAt time.Time `json:"created_at"`

	Author      *MaskedIdentity `json:"author,omitempty"`
	Attachments []Attachment    `json:"attachments,omitempty"`
	Reactions   []Reaction      `json:"reactions,omitempty"`
}

type Attachment struct {
	ID           int64     `json:"id"`
	TicketID     *int64    `json:"ticket_id,omitempty"`
	MessageID    *int64    `json:"message_id,omitempty"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"original_name"`
	MimeType     *string   `json:"mime_type,omitempty"`
	SizeBytes    *int64    `json:"size_bytes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Reaction is an aggregated emoji row: one emoji on one message with
// the ids of everyone who set it.
type Reaction struct {
	Emoji   string  `json:"emoji"`
	UserIDs []int64 `json:"user_ids"`
	Count   int     `json:"count"`
}
