package service

import (
	"sync"
	"time"

	"github.com/zapret-labs/tracker/internal/domain"
)

type typingEntry struct {
	user      domain.User
	expiresAt time.Time
}

// TypingService tracks who is composing a message in which ticket.
// Entries expire on their own a few seconds after the last keystroke
// signal, so there is no explicit "stopped typing" call.
type TypingService struct {
	mu      sync.Mutex
	tickets map[int64]map[int64]typingEntry
	timeout time.Duration
	now     func() time.Time
}

// NewTypingService constructs the tracker with the given expiry
// window.
func NewTypingService(timeout time.Duration) *TypingService {
	return &TypingService{
		tickets: make(map[int64]map[int64]typingEntry),
		timeout: timeout,
		now:     time.Now,
	}
}

// RecordTyping refreshes the user's typing signal for a ticket.
func (s *TypingService) RecordTyping(ticketID int64, user *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users, ok := s.tickets[ticketID]
	if !ok {
		users = make(map[int64]typingEntry)
		s.tickets[ticketID] = users
	}
	users[user.ID] = typingEntry{
		user:      *user,
		expiresAt: s.now().Add(s.timeout),
	}
}

// ListTyping returns everyone currently typing in the ticket except
// the asking user, masked for the viewer. Typers with any privacy flag
// set are withheld from non-admins entirely. Expired entries are
// pruned on the way, and a ticket with nobody left typing drops out of
// the map.
func (s *TypingService) ListTyping(ticketID, excludeUserID int64, viewerIsAdmin bool) []domain.TypingUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	users, ok := s.tickets[ticketID]
	if !ok {
		return nil
	}
	now := s.now()
	var result []domain.TypingUser
	for userID, entry := range users {
		if !entry.expiresAt.After(now) {
			delete(users, userID)
			continue
		}
		if userID == excludeUserID {
			continue
		}
		if !viewerIsAdmin && (entry.user.PrivacyHidden || entry.user.PrivacyHideOnline || entry.user.PrivacyHideActivity) {
			continue
		}
		result = append(result, domain.TypingUser{
			MaskedIdentity: MaskIdentity(&entry.user, viewerIsAdmin),
		})
	}
	if len(users) == 0 {
		delete(s.tickets, ticketID)
	}
	return result
}
