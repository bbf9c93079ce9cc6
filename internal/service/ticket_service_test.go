package service

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zapret-labs/tracker/internal/domain"
	"github.com/zapret-labs/tracker/internal/events"
	"github.com/zapret-labs/tracker/internal/repository"
)

type memTicketRepo struct {
	repository.TicketRepository
	nextID  int64
	tickets map[int64]*repository.TicketRecord
}

func newMemTicketRepo() *memTicketRepo {
	return &memTicketRepo{nextID: 1, tickets: map[int64]*repository.TicketRecord{}}
}

func (m *memTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	ticket.ID = m.nextID
	m.nextID++
	copied := *ticket
	m.tickets[ticket.ID] = &repository.TicketRecord{
		Ticket: copied,
		Author: domain.User{ID: ticket.AuthorID, FirstName: "Author"},
	}
	return nil
}

func (m *memTicketRepo) GetByID(_ context.Context, id int64) (*repository.TicketRecord, error) {
	record, ok := m.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *record
	return &copied, nil
}

func (m *memTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	record, ok := m.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	record.Ticket = *ticket
	return nil
}

type memMessageRepo struct {
	repository.MessageRepository
	created []domain.Message
}

func (m *memMessageRepo) Create(_ context.Context, message *domain.Message) error {
	message.ID = int64(len(m.created) + 1)
	m.created = append(m.created, *message)
	return nil
}

type memSubscriptionRepo struct {
	repository.SubscriptionRepository
	subscribed map[[2]int64]bool
}

func newMemSubscriptionRepo() *memSubscriptionRepo {
	return &memSubscriptionRepo{subscribed: map[[2]int64]bool{}}
}

func (m *memSubscriptionRepo) Subscribe(_ context.Context, userID, ticketID int64) error {
	m.subscribed[[2]int64{userID, ticketID}] = true
	return nil
}

func (m *memSubscriptionRepo) Unsubscribe(_ context.Context, userID, ticketID int64) error {
	delete(m.subscribed, [2]int64{userID, ticketID})
	return nil
}

type recordingDispatcher struct {
	published []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.published = append(d.published, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

type ticketServiceFixture struct {
	svc        *TicketService
	tickets    *memTicketRepo
	messages   *memMessageRepo
	subs       *memSubscriptionRepo
	dispatcher *recordingDispatcher
}

func newTicketServiceFixture(t *testing.T) *ticketServiceFixture {
	t.Helper()
	tickets := newMemTicketRepo()
	messages := &memMessageRepo{}
	subs := newMemSubscriptionRepo()
	dispatcher := &recordingDispatcher{}
	svc := NewTicketService(tickets, messages, nil, nil, nil, subs, nil, dispatcher, zap.NewNop())
	return &ticketServiceFixture{svc: svc, tickets: tickets, messages: messages, subs: subs, dispatcher: dispatcher}
}

func TestTicketCreate(t *testing.T) {
	t.Parallel()
	fx := newTicketServiceFixture(t)
	author := testUser(1, "Ann")

	ticket, err := fx.svc.Create(context.Background(), author, CreateTicketInput{
		Title: "  Crash on start  ",
		Type:  domain.TicketTypeBug,
	})
	require.NoError(t, err)
	require.Equal(t, "Crash on start", ticket.Title)
	require.Equal(t, domain.StatusOpen, ticket.Status)
	require.Equal(t, domain.PriorityMedium, ticket.Priority)
	require.True(t, fx.subs.subscribed[[2]int64{1, ticket.ID}], "author must be auto-subscribed")
	require.Len(t, fx.dispatcher.published, 1)
	require.Equal(t, events.EventTicketCreated, fx.dispatcher.published[0].Type)
}

func TestTicketCreateValidation(t *testing.T) {
	t.Parallel()
	fx := newTicketServiceFixture(t)
	author := testUser(1, "Ann")

	_, err := fx.svc.Create(context.Background(), author, CreateTicketInput{Title: "  ", Type: domain.TicketTypeBug})
	require.Error(t, err)

	_, err = fx.svc.Create(context.Background(), author, CreateTicketInput{Title: "x", Type: "wishlist"})
	require.Error(t, err)
}

func TestTicketPrivateAccess(t *testing.T) {
	t.Parallel()
	fx := newTicketServiceFixture(t)
	author := testUser(1, "Ann")
	stranger := testUser(2, "Bob")
	admin := testUser(3, "Root")
	admin.IsAdmin = true

	ticket, err := fx.svc.Create(context.Background(), author, CreateTicketInput{
		Title: "secret", Type: domain.TicketTypeIdea, IsPrivate: true,
	})
	require.NoError(t, err)

	_, err = fx.svc.Get(context.Background(), stranger, ticket.ID)
	require.Error(t, err, "private tickets must 404 for strangers")

	_, err = fx.svc.Get(context.Background(), author, ticket.ID)
	require.NoError(t, err)

	_, err = fx.svc.Get(context.Background(), admin, ticket.ID)
	require.NoError(t, err)
}

func TestTicketStatusChange(t *testing.T) {
	t.Parallel()
	fx := newTicketServiceFixture(t)
	author := testUser(1, "Ann")
	admin := testUser(3, "Root")
	admin.IsAdmin = true

	ticket, err := fx.svc.Create(context.Background(), author, CreateTicketInput{
		Title: "Crash", Type: domain.TicketTypeBug,
	})
	require.NoError(t, err)
	fx.dispatcher.published = nil

	status := domain.StatusInProgress
	_, err = fx.svc.Update(context.Background(), admin, ticket.ID, UpdateTicketInput{Status: &status})
	require.NoError(t, err)

	require.Len(t, fx.messages.created, 1, "status change records a system message")
	require.True(t, fx.messages.created[0].IsSystem)
	require.Len(t, fx.dispatcher.published, 1)
	require.Equal(t, events.EventTicketStatusChanged, fx.dispatcher.published[0].Type)

	// Non-admins cannot move the workflow.
	closed := domain.StatusClosed
	_, err = fx.svc.Update(context.Background(), author, ticket.ID, UpdateTicketInput{Status: &closed})
	require.Error(t, err)
}

func TestTicketArchivedSetsClosedAt(t *testing.T) {
	t.Parallel()
	fx := newTicketServiceFixture(t)
	admin := testUser(3, "Root")
	admin.IsAdmin = true

	ticket, err := fx.svc.Create(context.Background(), admin, CreateTicketInput{
		Title: "Old", Type: domain.TicketTypeBug,
	})
	require.NoError(t, err)

	closed := domain.StatusClosed
	updated, err := fx.svc.Update(context.Background(), admin, ticket.ID, UpdateTicketInput{Status: &closed})
	require.NoError(t, err)
	require.NotNil(t, updated.ClosedAt)

	reopened := domain.StatusOpen
	updated, err = fx.svc.Update(context.Background(), admin, ticket.ID, UpdateTicketInput{Status: &reopened})
	require.NoError(t, err)
	require.Nil(t, updated.ClosedAt)
}

func TestTicketSubscribeToggle(t *testing.T) {
	t.Parallel()
	fx := newTicketServiceFixture(t)
	author := testUser(1, "Ann")
	watcher := testUser(2, "Bob")

	ticket, err := fx.svc.Create(context.Background(), author, CreateTicketInput{
		Title: "Flaky wifi", Type: domain.TicketTypeBug,
	})
	require.NoError(t, err)

	// A successful subscribe must come back as a plain nil, not a
	// wrapped nil that still reads as an error.
	err = fx.svc.Subscribe(context.Background(), watcher, ticket.ID)
	require.True(t, err == nil, "Subscribe returned %#v, want nil", err)
	require.True(t, fx.subs.subscribed[[2]int64{2, ticket.ID}])

	err = fx.svc.Unsubscribe(context.Background(), watcher, ticket.ID)
	require.True(t, err == nil, "Unsubscribe returned %#v, want nil", err)
	require.False(t, fx.subs.subscribed[[2]int64{2, ticket.ID}])
}

func TestTicketEditPermissions(t *testing.T) {
	t.Parallel()
	fx := newTicketServiceFixture(t)
	author := testUser(1, "Ann")
	stranger := testUser(2, "Bob")

	ticket, err := fx.svc.Create(context.Background(), author, CreateTicketInput{
		Title: "Mine", Type: domain.TicketTypeIdea,
	})
	require.NoError(t, err)

	title := "Still mine"
	_, err = fx.svc.Update(context.Background(), stranger, ticket.ID, UpdateTicketInput{Title: &title})
	require.Error(t, err)

	_, err = fx.svc.Update(context.Background(), author, ticket.ID, UpdateTicketInput{Title: &title})
	require.NoError(t, err)
}
