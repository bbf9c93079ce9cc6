package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestTyping(t *testing.T) (*TypingService, *time.Time) {
	t.Helper()
	svc := NewTypingService(4 * time.Second)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	return svc, &now
}

func TestTypingExpiry(t *testing.T) {
	t.Parallel()
	svc, now := newTestTyping(t)

	svc.RecordTyping(10, testUser(1, "Ann"))
	require.Len(t, svc.ListTyping(10, 0, false), 1)

	*now = now.Add(3 * time.Second)
	require.Len(t, svc.ListTyping(10, 0, false), 1)

	// Re-signaling extends the window.
	svc.RecordTyping(10, testUser(1, "Ann"))
	*now = now.Add(3 * time.Second)
	require.Len(t, svc.ListTyping(10, 0, false), 1)

	*now = now.Add(2 * time.Second)
	require.Empty(t, svc.ListTyping(10, 0, false))
}

func TestTypingExcludesAsker(t *testing.T) {
	t.Parallel()
	svc, _ := newTestTyping(t)

	svc.RecordTyping(10, testUser(1, "Ann"))
	svc.RecordTyping(10, testUser(2, "Bob"))

	typing := svc.ListTyping(10, 1, false)
	require.Len(t, typing, 1)
	require.Equal(t, int64(2), typing[0].ID)
}

func TestTypingMasksForViewer(t *testing.T) {
	t.Parallel()
	svc, _ := newTestTyping(t)

	user := testUser(1, "Ann")
	user.DisplayName = strPtr("Night Owl")
	svc.RecordTyping(10, user)

	typing := svc.ListTyping(10, 0, false)
	require.Len(t, typing, 1)
	require.Equal(t, "Night Owl", typing[0].Name)
	require.Nil(t, typing[0].RealName)

	adminView := svc.ListTyping(10, 0, true)
	require.Len(t, adminView, 1)
	require.NotNil(t, adminView[0].RealName)
	require.Equal(t, "Ann", *adminView[0].RealName)
}

func TestTypingHidesPrivacyFlaggedUsers(t *testing.T) {
	t.Parallel()
	svc, _ := newTestTyping(t)

	hidden := testUser(1, "Ann")
	hidden.PrivacyHideActivity = true
	svc.RecordTyping(10, hidden)
	svc.RecordTyping(10, testUser(2, "Bob"))

	typing := svc.ListTyping(10, 0, false)
	require.Len(t, typing, 1)
	require.Equal(t, int64(2), typing[0].ID)

	adminView := svc.ListTyping(10, 0, true)
	require.Len(t, adminView, 2)
}

func TestTypingPrunesEmptyTickets(t *testing.T) {
	t.Parallel()
	svc, now := newTestTyping(t)

	svc.RecordTyping(10, testUser(1, "Ann"))
	*now = now.Add(5 * time.Second)
	require.Empty(t, svc.ListTyping(10, 0, false))

	svc.mu.Lock()
	_, exists := svc.tickets[10]
	svc.mu.Unlock()
	require.False(t, exists)
}

func TestTypingIsPerTicket(t *testing.T) {
	t.Parallel()
	svc, _ := newTestTyping(t)

	svc.RecordTyping(10, testUser(1, "Ann"))
	require.Empty(t, svc.ListTyping(11, 0, false))
	require.Len(t, svc.ListTyping(10, 0, false), 1)
}
