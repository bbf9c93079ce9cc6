package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zapret-labs/tracker/internal/domain"
	"github.com/zapret-labs/tracker/internal/events"
	"github.com/zapret-labs/tracker/internal/repository"
	apperrors "github.com/zapret-labs/tracker/pkg/util"
)

const maxTitleLength = 200

// CreateTicketInput carries everything needed to open a ticket.
type CreateTicketInput struct {
	Title       string
	Description string
	Type        domain.TicketType
	Priority    domain.TicketPriority
	IsPrivate   bool
	TagIDs      []int64
}

// UpdateTicketInput carries a partial ticket edit; nil fields stay
// untouched.
type UpdateTicketInput struct {
	Title       *string
	Description *string
	Type        *domain.TicketType
	Status      *domain.TicketStatus
	Priority    *domain.TicketPriority
	IsPrivate   *bool
	TagIDs      []int64
}

// TicketListQuery mirrors the listing endpoint's query surface.
type TicketListQuery struct {
	Statuses        []domain.TicketStatus
	Types           []domain.TicketType
	Priorities      []domain.TicketPriority
	TagID           *int64
	AuthorID        *int64
	Search          string
	IncludeArchived bool
	Limit           int
	Offset          int
}

// TicketService implements ticket lifecycle, voting, subscriptions and
// the kanban/stats views.
type TicketService struct {
	tickets       repository.TicketRepository
	messages      repository.MessageRepository
	attachments   repository.AttachmentRepository
	tags          repository.TagRepository
	votes         repository.VoteRepository
	subscriptions repository.SubscriptionRepository
	users         repository.UserRepository
	dispatcher    events.Dispatcher
	logger        *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(
	tickets repository.TicketRepository,
	messages repository.MessageRepository,
	attachments repository.AttachmentRepository,
	tags repository.TagRepository,
	votes repository.VoteRepository,
	subscriptions repository.SubscriptionRepository,
	users repository.UserRepository,
	dispatcher events.Dispatcher,
	logger *zap.Logger,
) *TicketService {
	return &TicketService{
		tickets:       tickets,
		messages:      messages,
		attachments:   attachments,
		tags:          tags,
		votes:         votes,
		subscriptions: subscriptions,
		users:         users,
		dispatcher:    dispatcher,
		logger:        logger,
	}
}

// Create opens a ticket and auto-subscribes its author.
func (s *TicketService) Create(ctx context.Context, author *domain.User, input CreateTicketInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title is required", nil)
	}
	if len([]rune(title)) > maxTitleLength {
		return nil, apperrors.NewValidationError("title too long", map[string]any{"max": maxTitleLength})
	}
	if !input.Type.Valid() {
		return nil, apperrors.NewValidationError("unknown ticket type", map[string]any{"type": input.Type})
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": priority})
	}

	ticket := &domain.Ticket{
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Type:        input.Type,
		Status:      domain.StatusOpen,
		Priority:    priority,
		IsPrivate:   input.IsPrivate,
		AuthorID:    author.ID,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(input.TagIDs) > 0 {
		if err := s.tags.SetTicketTags(ctx, ticket.ID, input.TagIDs); err != nil {
			s.logger.Warn("failed to set ticket tags", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
		}
	}
	if err := s.subscriptions.Subscribe(ctx, author.ID, ticket.ID); err != nil {
		s.logger.Warn("failed to auto-subscribe author", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
	}

	s.publish(ctx, events.EventTicketCreated, ticket.ID, author.ID, events.TicketCreatedPayload{
		Title:     ticket.Title,
		Type:      ticket.Type,
		Priority:  ticket.Priority,
		IsPrivate: ticket.IsPrivate,
	})

	masked := MaskIdentity(author, author.IsAdmin)
	ticket.Author = &masked
	return ticket, nil
}

// Get loads one ticket with its author masked for the viewer. Private
// tickets are invisible to everyone but their author and admins.
func (s *TicketService) Get(ctx context.Context, viewer *domain.User, id int64) (*domain.Ticket, error) {
	record, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := checkTicketAccess(&record.Ticket, viewer); err != nil {
		return nil, err
	}
	ticket := record.Ticket
	masked := MaskIdentity(&record.Author, viewer.IsAdmin)
	ticket.Author = &masked
	if s.attachments != nil {
		attachments, err := s.attachments.ListByTicket(ctx, id)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		ticket.Attachments = attachments
	}
	return &ticket, nil
}

// List returns tickets visible to the viewer with masked authors.
func (s *TicketService) List(ctx context.Context, viewer *domain.User, query TicketListQuery) ([]domain.Ticket, error) {
	filter := repository.TicketFilter{
		Statuses:        query.Statuses,
		Types:           query.Types,
		Priorities:      query.Priorities,
		TagID:           query.TagID,
		AuthorID:        query.AuthorID,
		IncludeArchived: query.IncludeArchived,
		ViewerID:        viewer.ID,
		ViewerIsAdmin:   viewer.IsAdmin,
		Limit:           query.Limit,
		Offset:          query.Offset,
	}
	if search := strings.TrimSpace(query.Search); search != "" {
		filter.SearchTerm = &search
	}
	records, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return s.maskRecords(records, viewer), nil
}

// Kanban groups active tickets by status.
func (s *TicketService) Kanban(ctx context.Context, viewer *domain.User) (map[domain.TicketStatus][]domain.Ticket, error) {
	tickets, err := s.List(ctx, viewer, TicketListQuery{Limit: 500})
	if err != nil {
		return nil, err
	}
	board := map[domain.TicketStatus][]domain.Ticket{
		domain.StatusOpen:       {},
		domain.StatusInProgress: {},
		domain.StatusReview:     {},
		domain.StatusTesting:    {},
	}
	for _, ticket := range tickets {
		if ticket.Status.Archived() {
			continue
		}
		board[ticket.Status] = append(board[ticket.Status], ticket)
	}
	return board, nil
}

// Update applies a partial edit. Authors may edit their own tickets;
// everything else needs admin rights. Status and title changes leave a
// system message in the thread and fan out to subscribers.
func (s *TicketService) Update(ctx context.Context, actor *domain.User, id int64, input UpdateTicketInput) (*domain.Ticket, error) {
	record, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	ticket := record.Ticket
	if ticket.AuthorID != actor.ID && !actor.IsAdmin {
		return nil, apperrors.NewForbidden("only the author or an admin can edit a ticket")
	}

	oldStatus := ticket.Status
	oldTitle := ticket.Title

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, apperrors.NewValidationError("title is required", nil)
		}
		if len([]rune(title)) > maxTitleLength {
			return nil, apperrors.NewValidationError("title too long", map[string]any{"max": maxTitleLength})
		}
		ticket.Title = title
	}
	if input.Description != nil {
		ticket.Description = strings.TrimSpace(*input.Description)
	}
	if input.Type != nil {
		if !input.Type.Valid() {
			return nil, apperrors.NewValidationError("unknown ticket type", map[string]any{"type": *input.Type})
		}
		ticket.Type = *input.Type
	}
	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": *input.Status})
		}
		// Only admins move tickets through the workflow.
		if *input.Status != oldStatus && !actor.IsAdmin {
			return nil, apperrors.NewForbidden("only admins can change ticket status")
		}
		ticket.Status = *input.Status
	}
	if input.Priority != nil {
		if !input.Priority.Valid() {
			return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": *input.Priority})
		}
		ticket.Priority = *input.Priority
	}
	if input.IsPrivate != nil {
		ticket.IsPrivate = *input.IsPrivate
	}

	if ticket.Status.Archived() && ticket.ClosedAt == nil {
		now := time.Now().UTC()
		ticket.ClosedAt = &now
	}
	if !ticket.Status.Archived() {
		ticket.ClosedAt = nil
	}

	if err := s.tickets.Update(ctx, &ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	if input.TagIDs != nil {
		if err := s.tags.SetTicketTags(ctx, ticket.ID, input.TagIDs); err != nil {
			s.logger.Warn("failed to set ticket tags", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
		}
	}

	if ticket.Status != oldStatus {
		s.addSystemMessage(ctx, ticket.ID, actor.ID,
			fmt.Sprintf("Status changed: %s → %s", oldStatus, ticket.Status))
		s.publish(ctx, events.EventTicketStatusChanged, ticket.ID, actor.ID, events.TicketStatusChangedPayload{
			Title:     ticket.Title,
			OldStatus: oldStatus,
			NewStatus: ticket.Status,
		})
	}
	if ticket.Title != oldTitle {
		s.addSystemMessage(ctx, ticket.ID, actor.ID,
			fmt.Sprintf("Title changed: %q → %q", oldTitle, ticket.Title))
		s.publish(ctx, events.EventTicketTitleChanged, ticket.ID, actor.ID, events.TicketTitleChangedPayload{
			OldTitle: oldTitle,
			NewTitle: ticket.Title,
		})
	}

	return s.Get(ctx, actor, ticket.ID)
}

// Delete removes a ticket entirely. Admin only.
func (s *TicketService) Delete(ctx context.Context, actor *domain.User, id int64) error {
	if !actor.IsAdmin {
		return apperrors.NewForbidden("only admins can delete tickets")
	}
	if err := s.tickets.Delete(ctx, id); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// ToggleVote flips the caller's vote and returns the new state.
func (s *TicketService) ToggleVote(ctx context.Context, actor *domain.User, ticketID int64) (bool, int, error) {
	record, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return false, 0, apperrors.MapError(err)
	}
	if err := checkTicketAccess(&record.Ticket, actor); err != nil {
		return false, 0, err
	}
	voted, total, err := s.votes.Toggle(ctx, actor.ID, ticketID)
	if err != nil {
		return false, 0, apperrors.MapError(err)
	}
	return voted, total, nil
}

// ListUserVotes returns the ids of tickets the user has voted for.
func (s *TicketService) ListUserVotes(ctx context.Context, userID int64) ([]int64, error) {
	votes, err := s.votes.ListUserVotes(ctx, userID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return votes, nil
}

// ListUserSubscriptions returns the ids of tickets the user follows.
func (s *TicketService) ListUserSubscriptions(ctx context.Context, userID int64) ([]int64, error) {
	subscriptions, err := s.subscriptions.ListUserSubscriptions(ctx, userID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return subscriptions, nil
}

// Subscribe adds the caller to a ticket's notification list.
func (s *TicketService) Subscribe(ctx context.Context, actor *domain.User, ticketID int64) error {
	record, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if err := checkTicketAccess(&record.Ticket, actor); err != nil {
		return err
	}
	return apperrors.MapError(s.subscriptions.Subscribe(ctx, actor.ID, ticketID))
}

// Unsubscribe removes the caller from a ticket's notification list.
func (s *TicketService) Unsubscribe(ctx context.Context, actor *domain.User, ticketID int64) error {
	return apperrors.MapError(s.subscriptions.Unsubscribe(ctx, actor.ID, ticketID))
}

// IsSubscribed reports the caller's subscription state.
func (s *TicketService) IsSubscribed(ctx context.Context, userID, ticketID int64) (bool, error) {
	subscribed, err := s.subscriptions.IsSubscribed(ctx, userID, ticketID)
	if err != nil {
		return false, apperrors.MapError(err)
	}
	return subscribed, nil
}

// Stats aggregates counters for the dashboard.
func (s *TicketService) Stats(ctx context.Context) (*domain.TicketStats, error) {
	stats, err := s.tickets.Stats(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	userCount, err := s.users.Count(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	stats.Users = userCount
	return stats, nil
}

func (s *TicketService) maskRecords(records []repository.TicketRecord, viewer *domain.User) []domain.Ticket {
	result := make([]domain.Ticket, 0, len(records))
	for _, record := range records {
		ticket := record.Ticket
		masked := MaskIdentity(&record.Author, viewer.IsAdmin)
		ticket.Author = &masked
		result = append(result, ticket)
	}
	return result
}

func (s *TicketService) addSystemMessage(ctx context.Context, ticketID, actorID int64, content string) {
	message := &domain.Message{
		TicketID: ticketID,
		AuthorID: actorID,
		Content:  content,
		IsSystem: true,
	}
	if err := s.messages.Create(ctx, message); err != nil {
		s.logger.Warn("failed to record system message",
			zap.Int64("ticket_id", ticketID), zap.Error(err))
	}
}

func (s *TicketService) publish(ctx context.Context, eventType events.EventType, ticketID, actorID int64, payload any) {
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		ActorID:   actorID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed", zap.String("type", string(eventType)), zap.Error(err))
	}
}

func checkTicketAccess(ticket *domain.Ticket, viewer *domain.User) error {
	if !ticket.IsPrivate {
		return nil
	}
	if viewer != nil && (viewer.IsAdmin || viewer.ID == ticket.AuthorID) {
		return nil
	}
	return apperrors.NewNotFound("ticket", map[string]any{"id": ticket.ID})
}
