package events

import (
	"time"

	"github.com/zapret-labs/tracker/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketTitleChanged  EventType = "ticket_title_changed"
	EventTicketMessageAdded  EventType = "ticket_message_added"
)

// Event represents a domain event emitted by services. ActorID is the
// user who performed the action; fan-out never notifies them back.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  int64       `json:"ticket_id"`
	ActorID   int64       `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title     string                `json:"title"`
	Type      domain.TicketType     `json:"type"`
	Priority  domain.TicketPriority `json:"priority"`
	IsPrivate bool                  `json:"is_private"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	Title     string              `json:"title"`
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketTitleChangedPayload payload.
type TicketTitleChangedPayload struct {
	OldTitle string `json:"old_title"`
	NewTitle string `json:"new_title"`
}

// TicketMessageAddedPayload payload.
type TicketMessageAddedPayload struct {
	MessageID   int64  `json:"message_id"`
	TicketTitle string `json:"ticket_title"`
	AuthorName  string `json:"author_name"`
	BodyPreview string `json:"body_preview"`
}
