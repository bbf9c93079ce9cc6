package service

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zapret-labs/tracker/internal/domain"
	"github.com/zapret-labs/tracker/internal/observability"
)

// presenceEntry is one heartbeat record, keyed by session token so a
// user with two open tabs holds two entries.
type presenceEntry struct {
	user        domain.User
	view        domain.View
	ticketID    *int64
	ticketTitle string
	lastSeen    time.Time
}

// PresenceService tracks who is on the site right now. State is
// strictly in-memory: a restart forgets everyone and the next round of
// heartbeats rebuilds the picture within seconds.
type PresenceService struct {
	mu        sync.Mutex
	entries   map[string]presenceEntry
	listeners map[int64]chan domain.PresenceSnapshot
	nextID    int64

	onlineTimeout     time.Duration
	purgeTimeout      time.Duration
	broadcastInterval time.Duration

	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewPresenceService constructs the tracker. onlineTimeout bounds how
// stale a heartbeat may be and still count as online; purgeTimeout is
// when the entry is dropped entirely.
func NewPresenceService(onlineTimeout, purgeTimeout, broadcastInterval time.Duration, logger *zap.Logger, metrics *observability.Metrics) *PresenceService {
	return &PresenceService{
		entries:           make(map[string]presenceEntry),
		listeners:         make(map[int64]chan domain.PresenceSnapshot),
		onlineTimeout:     onlineTimeout,
		purgeTimeout:      purgeTimeout,
		broadcastInterval: broadcastInterval,
		logger:            logger,
		metrics:           metrics,
		now:               time.Now,
		stopCh:            make(chan struct{}),
		doneCh:            make(chan struct{}),
	}
}

// RecordHeartbeat stores or refreshes the caller's presence under
// their session token. Every heartbeat also pushes a fresh snapshot to
// the stream listeners, so the online list reacts without waiting for
// the next ticker round.
func (s *PresenceService) RecordHeartbeat(user *domain.User, sessionToken string, view domain.View, ticketID *int64, ticketTitle string) {
	s.mu.Lock()
	s.entries[sessionToken] = presenceEntry{
		user:        *user,
		view:        view,
		ticketID:    ticketID,
		ticketTitle: ticketTitle,
		lastSeen:    s.now(),
	}
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.RecordHeartbeat()
	}
	s.Broadcast()
}

// Forget drops any presence entry tied to the session token. Logout
// calls this so a revoked session disappears immediately instead of
// aging out.
func (s *PresenceService) Forget(sessionToken string) {
	s.mu.Lock()
	delete(s.entries, sessionToken)
	s.mu.Unlock()
}

// ListOnline returns the current online list as the given viewer is
// allowed to see it. Multiple sessions of one user collapse to a
// single row carrying the freshest heartbeat.
func (s *PresenceService) ListOnline(viewerIsAdmin bool) domain.PresenceSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(viewerIsAdmin)
}

func (s *PresenceService) snapshotLocked(viewerIsAdmin bool) domain.PresenceSnapshot {
	now := s.now()
	best := make(map[int64]presenceEntry)
	for _, entry := range s.entries {
		if now.Sub(entry.lastSeen) > s.onlineTimeout {
			continue
		}
		if current, ok := best[entry.user.ID]; !ok || entry.lastSeen.After(current.lastSeen) {
			best[entry.user.ID] = entry
		}
	}

	users := make([]domain.OnlineUser, 0, len(best))
	for _, entry := range best {
		if (entry.user.PrivacyHidden || entry.user.PrivacyHideOnline) && !viewerIsAdmin {
			continue
		}
		online := domain.OnlineUser{
			MaskedIdentity: MaskIdentity(&entry.user, viewerIsAdmin),
			LastSeen:       entry.lastSeen,
		}
		if !entry.user.PrivacyHideActivity || viewerIsAdmin {
			online.View = entry.view
			online.TicketID = entry.ticketID
			online.TicketTitle = entry.ticketTitle
		}
		users = append(users, online)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].LastSeen.After(users[j].LastSeen)
	})
	return domain.PresenceSnapshot{Users: users, Count: len(users)}
}

// OnlineIDs reports which user ids currently count as online, honoring
// the hide-online flag for non-admin viewers. The users directory uses
// this for its presence dots.
func (s *PresenceService) OnlineIDs(viewerIsAdmin bool) map[int64]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	result := make(map[int64]bool)
	for _, entry := range s.entries {
		if now.Sub(entry.lastSeen) > s.onlineTimeout {
			continue
		}
		if (entry.user.PrivacyHidden || entry.user.PrivacyHideOnline) && !viewerIsAdmin {
			continue
		}
		result[entry.user.ID] = true
	}
	return result
}

// PurgeStale drops entries whose last heartbeat is older than the
// purge timeout and reports how many were removed.
func (s *PresenceService) PurgeStale() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for token, entry := range s.entries {
		if now.Sub(entry.lastSeen) > s.purgeTimeout {
			delete(s.entries, token)
			removed++
		}
	}
	return removed
}

// Subscribe registers a listener for presence broadcasts. The returned
// cancel function must be called when the consumer goes away. Slow
// consumers miss snapshots rather than block the broadcaster.
func (s *PresenceService) Subscribe() (<-chan domain.PresenceSnapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	ch := make(chan domain.PresenceSnapshot, 4)
	s.listeners[id] = ch
	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if existing, ok := s.listeners[id]; ok {
			delete(s.listeners, id)
			close(existing)
		}
	}
	return ch, cancel
}

// Broadcast pushes the public (non-admin) snapshot to every listener.
func (s *PresenceService) Broadcast() {
	s.mu.Lock()
	snapshot := s.snapshotLocked(false)
	// Sends happen under the mutex so a concurrent cancel cannot close
	// a channel mid-send. They are non-blocking, so holding the lock
	// here never stalls.
	for _, ch := range s.listeners {
		select {
		case ch <- snapshot:
		default:
		}
	}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordBroadcast()
	}
}

// Start launches the periodic purge-and-broadcast loop.
func (s *PresenceService) Start() {
	go func() {
		defer close(s.doneCh)
		ticker := time.NewTicker(s.broadcastInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if removed := s.PurgeStale(); removed > 0 {
					s.logger.Debug("purged stale presence entries", zap.Int("removed", removed))
				}
				s.Broadcast()
			case <-s.stopCh:
				return
			}
		}
	}()
}

// Stop halts the loop and waits for it to exit.
func (s *PresenceService) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}
