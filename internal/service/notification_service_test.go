package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zapret-labs/tracker/internal/domain"
	"github.com/zapret-labs/tracker/internal/observability"
	"github.com/zapret-labs/tracker/internal/repository"
	"github.com/zapret-labs/tracker/internal/telegram"
)

type fakeSender struct {
	sent    []int64
	failFor map[int64]bool
}

func (f *fakeSender) SendMessage(_ context.Context, chatID int64, _ string, _ *telegram.InlineKeyboardMarkup) error {
	if f.failFor[chatID] {
		return errors.New("chat blocked")
	}
	f.sent = append(f.sent, chatID)
	return nil
}

type stubTicketRepo struct {
	repository.TicketRepository
	record *repository.TicketRecord
}

func (s *stubTicketRepo) GetByID(context.Context, int64) (*repository.TicketRecord, error) {
	return s.record, nil
}

type stubSubscriptionRepo struct {
	repository.SubscriptionRepository
	subscribers []domain.User
}

func (s *stubSubscriptionRepo) ListSubscribers(context.Context, int64) ([]domain.User, error) {
	return s.subscribers, nil
}

func chatUser(id, chatID int64) domain.User {
	return domain.User{
		ID:               id,
		ChatID:           &chatID,
		FirstName:        "User",
		NotifyOwn:        true,
		NotifySubscribed: true,
	}
}

func newTestNotifications(sender *fakeSender, authorID int64, subscribers []domain.User) *NotificationService {
	tickets := &stubTicketRepo{record: &repository.TicketRecord{
		Ticket: domain.Ticket{ID: 1, AuthorID: authorID, Title: "Broken build"},
	}}
	subs := &stubSubscriptionRepo{subscribers: subscribers}
	return NewNotificationService(sender, tickets, subs,
		zap.NewNop(), observability.NewMetrics(), "https://tracker.test", false, 0)
}

func TestNotifySubscribersSkipsActor(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{}
	svc := newTestNotifications(sender, 1, []domain.User{chatUser(1, 101), chatUser(2, 102)})

	err := svc.NotifySubscribers(context.Background(), 1, 1, "hello")
	require.NoError(t, err)
	require.Equal(t, []int64{102}, sender.sent)
}

func TestNotifySubscribersSkipsUsersWithoutChat(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{}
	noChat := domain.User{ID: 2, FirstName: "User", NotifySubscribed: true}
	svc := newTestNotifications(sender, 1, []domain.User{noChat, chatUser(3, 103)})

	err := svc.NotifySubscribers(context.Background(), 1, 99, "hello")
	require.NoError(t, err)
	require.Equal(t, []int64{103}, sender.sent)
}

func TestNotifySubscribersFaultIsolation(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{failFor: map[int64]bool{102: true}}
	svc := newTestNotifications(sender, 1, []domain.User{
		chatUser(2, 102), chatUser(3, 103), chatUser(4, 104),
	})

	err := svc.NotifySubscribers(context.Background(), 1, 99, "hello")
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{103, 104}, sender.sent)
}

func TestNotifySubscribersHonorsPreferences(t *testing.T) {
	t.Parallel()

	t.Run("author gated by notify_own", func(t *testing.T) {
		t.Parallel()
		sender := &fakeSender{}
		author := chatUser(1, 101)
		author.NotifyOwn = false
		svc := newTestNotifications(sender, 1, []domain.User{author, chatUser(2, 102)})

		err := svc.NotifySubscribers(context.Background(), 1, 99, "hello")
		require.NoError(t, err)
		require.Equal(t, []int64{102}, sender.sent)
	})

	t.Run("subscriber gated by notify_subscribed", func(t *testing.T) {
		t.Parallel()
		sender := &fakeSender{}
		muted := chatUser(2, 102)
		muted.NotifySubscribed = false
		svc := newTestNotifications(sender, 1, []domain.User{chatUser(1, 101), muted})

		err := svc.NotifySubscribers(context.Background(), 1, 99, "hello")
		require.NoError(t, err)
		require.Equal(t, []int64{101}, sender.sent)
	})
}

func TestNotifyAdminDisabledWithoutID(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{}
	svc := newTestNotifications(sender, 1, nil)
	svc.NotifyAdmin(context.Background(), "ping", 1)
	require.Empty(t, sender.sent)
}
