package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zapret-labs/tracker/internal/domain"
	"github.com/zapret-labs/tracker/internal/observability"
)

func newTestPresence(t *testing.T) (*PresenceService, *time.Time) {
	t.Helper()
	svc := NewPresenceService(60*time.Second, 120*time.Second, 10*time.Second,
		zap.NewNop(), observability.NewMetrics())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	return svc, &now
}

func testUser(id int64, name string) *domain.User {
	return &domain.User{ID: id, FirstName: name}
}

func int64Ptr(v int64) *int64 { return &v }

func TestPresenceLiveness(t *testing.T) {
	t.Parallel()
	svc, now := newTestPresence(t)

	svc.RecordHeartbeat(testUser(1, "Ann"), "sess-1", "kanban", nil, "")
	require.Equal(t, 1, svc.ListOnline(false).Count)

	// Inside the online window the user stays listed.
	*now = now.Add(59 * time.Second)
	require.Equal(t, 1, svc.ListOnline(false).Count)

	// Past it, the entry is invisible but not yet purged.
	*now = now.Add(2 * time.Second)
	require.Equal(t, 0, svc.ListOnline(false).Count)
	require.Equal(t, 0, svc.PurgeStale())

	// Past the purge timeout the entry is removed for good.
	*now = now.Add(60 * time.Second)
	require.Equal(t, 1, svc.PurgeStale())
}

func TestPresenceDeduplicatesSessions(t *testing.T) {
	t.Parallel()
	svc, now := newTestPresence(t)

	svc.RecordHeartbeat(testUser(1, "Ann"), "sess-old", "kanban", nil, "")
	*now = now.Add(10 * time.Second)
	svc.RecordHeartbeat(testUser(1, "Ann"), "sess-new", "ticket", int64Ptr(5), "Broken router")

	snapshot := svc.ListOnline(false)
	require.Equal(t, 1, snapshot.Count)
	require.Equal(t, domain.View("ticket"), snapshot.Users[0].View)
	require.Equal(t, int64(5), *snapshot.Users[0].TicketID)
	require.Equal(t, "Broken router", snapshot.Users[0].TicketTitle)
	require.Equal(t, *now, snapshot.Users[0].LastSeen)
}

func TestPresencePrivacyFlags(t *testing.T) {
	t.Parallel()

	t.Run("hidden user leaves the public list entirely", func(t *testing.T) {
		t.Parallel()
		svc, _ := newTestPresence(t)
		hidden := testUser(1, "Ann")
		hidden.PrivacyHidden = true
		svc.RecordHeartbeat(hidden, "sess-1", "kanban", nil, "")
		svc.RecordHeartbeat(testUser(2, "Bob"), "sess-2", "kanban", nil, "")

		public := svc.ListOnline(false)
		require.Equal(t, 1, public.Count)
		require.Equal(t, int64(2), public.Users[0].ID)

		admin := svc.ListOnline(true)
		require.Equal(t, 2, admin.Count)
	})

	t.Run("hide online removes user from public list", func(t *testing.T) {
		t.Parallel()
		svc, _ := newTestPresence(t)
		hidden := testUser(1, "Ann")
		hidden.PrivacyHideOnline = true
		svc.RecordHeartbeat(hidden, "sess-1", "kanban", nil, "")
		svc.RecordHeartbeat(testUser(2, "Bob"), "sess-2", "kanban", nil, "")

		public := svc.ListOnline(false)
		require.Equal(t, 1, public.Count)
		require.Equal(t, int64(2), public.Users[0].ID)

		admin := svc.ListOnline(true)
		require.Equal(t, 2, admin.Count)
	})

	t.Run("hide activity blanks view and ticket for non-admins", func(t *testing.T) {
		t.Parallel()
		svc, _ := newTestPresence(t)
		user := testUser(1, "Ann")
		user.PrivacyHideActivity = true
		svc.RecordHeartbeat(user, "sess-1", "ticket", int64Ptr(9), "Slow network")

		public := svc.ListOnline(false)
		require.Empty(t, public.Users[0].View)
		require.Nil(t, public.Users[0].TicketID)
		require.Empty(t, public.Users[0].TicketTitle)

		admin := svc.ListOnline(true)
		require.Equal(t, domain.View("ticket"), admin.Users[0].View)
		require.Equal(t, int64(9), *admin.Users[0].TicketID)
		require.Equal(t, "Slow network", admin.Users[0].TicketTitle)
	})

	t.Run("masked identity flows into the list", func(t *testing.T) {
		t.Parallel()
		svc, _ := newTestPresence(t)
		user := testUser(1, "Ann")
		user.DisplayName = strPtr("Night Owl")
		svc.RecordHeartbeat(user, "sess-1", "kanban", nil, "")

		public := svc.ListOnline(false)
		require.Equal(t, "Night Owl", public.Users[0].Name)
		require.Nil(t, public.Users[0].RealName)

		admin := svc.ListOnline(true)
		require.NotNil(t, admin.Users[0].RealName)
		require.Equal(t, "Ann", *admin.Users[0].RealName)
	})
}

func TestPresenceForget(t *testing.T) {
	t.Parallel()
	svc, _ := newTestPresence(t)
	svc.RecordHeartbeat(testUser(1, "Ann"), "sess-1", "kanban", nil, "")
	svc.Forget("sess-1")
	require.Equal(t, 0, svc.ListOnline(false).Count)

	// Logout broadcasts right after forgetting, so stream watchers see
	// the departure without waiting for the ticker.
	ch, cancel := svc.Subscribe()
	defer cancel()
	svc.Broadcast()
	select {
	case snapshot := <-ch:
		require.Equal(t, 0, snapshot.Count)
	default:
		t.Fatal("expected a broadcast snapshot")
	}
}

func TestPresenceHeartbeatBroadcasts(t *testing.T) {
	t.Parallel()
	svc, _ := newTestPresence(t)

	ch, cancel := svc.Subscribe()
	defer cancel()

	user := testUser(1, "Ann")
	user.DisplayName = strPtr("Night Owl")
	svc.RecordHeartbeat(user, "sess-1", "kanban", nil, "")

	select {
	case snapshot := <-ch:
		require.Equal(t, 1, snapshot.Count)
		// Broadcasts always carry the public view.
		require.Equal(t, "Night Owl", snapshot.Users[0].Name)
		require.Nil(t, snapshot.Users[0].RealName)
	default:
		t.Fatal("expected a broadcast snapshot")
	}
}

func TestPresenceBroadcastOmitsHiddenUsers(t *testing.T) {
	t.Parallel()
	svc, _ := newTestPresence(t)

	user := testUser(1, "Ann")
	user.PrivacyHidden = true
	svc.RecordHeartbeat(user, "sess-1", "kanban", nil, "")

	ch, cancel := svc.Subscribe()
	defer cancel()
	svc.Broadcast()

	select {
	case snapshot := <-ch:
		require.Equal(t, 0, snapshot.Count)
	default:
		t.Fatal("expected a broadcast snapshot")
	}
}

func TestPresenceBroadcastDuringCancelDoesNotPanic(t *testing.T) {
	t.Parallel()
	svc, _ := newTestPresence(t)
	svc.RecordHeartbeat(testUser(1, "Ann"), "sess-1", "kanban", nil, "")

	// Subscribers disconnecting mid-broadcast must never see a send on
	// a closed channel.
	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				svc.Broadcast()
			}
		}
	}()
	for i := 0; i < 50; i++ {
		ch, cancel := svc.Subscribe()
		// Drain a snapshot or two before dropping the subscription.
		select {
		case <-ch:
		default:
		}
		cancel()
	}
	close(stop)
	wg.Wait()
}

func TestPresenceSlowSubscriberDoesNotBlock(t *testing.T) {
	t.Parallel()
	svc, _ := newTestPresence(t)

	_, cancel := svc.Subscribe()
	defer cancel()

	svc.RecordHeartbeat(testUser(1, "Ann"), "sess-1", "kanban", nil, "")
	// Fill the buffer well past capacity; Broadcast must never block.
	for i := 0; i < 20; i++ {
		svc.Broadcast()
	}
}
