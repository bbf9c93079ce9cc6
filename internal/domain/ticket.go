package domain

import "time"

type TicketType string

const (
	TicketTypeBug         TicketType = "bug"
	TicketTypeIdea        TicketType = "idea"
	TicketTypeFeature     TicketType = "feature"
	TicketTypeImprovement TicketType = "improvement"
)

func (t TicketType) Valid() bool {
	switch t {
	case TicketTypeBug, TicketTypeIdea, TicketTypeFeature, TicketTypeImprovement:
		return true
	}
	return false
}

type TicketStatus string

const (
	StatusOpen       TicketStatus = "open"
	StatusInProgress TicketStatus = "in_progress"
	StatusReview     TicketStatus = "review"
	StatusTesting    TicketStatus = "testing"
	StatusClosed     TicketStatus = "closed"
	StatusRejected   TicketStatus = "rejected"
	StatusDuplicate  TicketStatus = "duplicate"
)

func (s TicketStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusReview, StatusTesting,
		StatusClosed, StatusRejected, StatusDuplicate:
		return true
	}
	return false
}

// Archived reports whether the status is terminal. Archived tickets
// drop out of the kanban board and the default listing.
func (s TicketStatus) Archived() bool {
	return s == StatusClosed || s == StatusRejected || s == StatusDuplicate
}

type TicketPriority string

const (
	PriorityLow      TicketPriority = "low"
	PriorityMedium   TicketPriority = "medium"
	PriorityHigh     TicketPriority = "high"
	PriorityCritical TicketPriority = "critical"
)

func (p TicketPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

type Ticket struct {
	ID          int64          `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Type        TicketType     `json:"type"`
	Status      TicketStatus   `json:"status"`
	Priority    TicketPriority `json:"priority"`
	IsPrivate   bool           `json:"is_private"`
	AuthorID    int64          `json:"author_id"`
	AssignedTo  *int64         `json:"assigned_to,omitempty"`
	VotesCount  int            `json:"votes_count"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	ClosedAt    *time.Time     `json:"closed_at,omitempty"`

	// Denormalized for listings, filled by joined queries.
	Author      *MaskedIdentity `json:"author,omitempty"`
	Tags        []Tag           `json:"tags,omitempty"`
	Attachments []Attachment    `json:"attachments,omitempty"`
}

// TicketStats is the aggregate counters block for the stats endpoint.
type TicketStats struct {
	Total      int                    `json:"total"`
	ByStatus   map[TicketStatus]int   `json:"by_status"`
	ByType     map[TicketType]int     `json:"by_type"`
	ByPriority map[TicketPriority]int `json:"by_priority"`
	OpenCount  int                    `json:"open_count"`
	Users      int                    `json:"users"`
}
