package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zapret-labs/tracker/internal/domain"
	"github.com/zapret-labs/tracker/internal/events"
	"github.com/zapret-labs/tracker/internal/repository"
	apperrors "github.com/zapret-labs/tracker/pkg/util"
)

const (
	maxMessageLength     = 4000
	messagePreviewLength = 100
)

// MessageService implements the ticket discussion thread: comments,
// edits, reactions and the incremental polling endpoint.
type MessageService struct {
	messages      repository.MessageRepository
	attachments   repository.AttachmentRepository
	reactions     repository.ReactionRepository
	tickets       repository.TicketRepository
	subscriptions repository.SubscriptionRepository
	dispatcher    events.Dispatcher
	logger        *zap.Logger
}

// NewMessageService constructs the service.
func NewMessageService(
	messages repository.MessageRepository,
	attachments repository.AttachmentRepository,
	reactions repository.ReactionRepository,
	tickets repository.TicketRepository,
	subscriptions repository.SubscriptionRepository,
	dispatcher events.Dispatcher,
	logger *zap.Logger,
) *MessageService {
	return &MessageService{
		messages:      messages,
		attachments:   attachments,
		reactions:     reactions,
		tickets:       tickets,
		subscriptions: subscriptions,
		dispatcher:    dispatcher,
		logger:        logger,
	}
}

// Add posts a comment. Commenting subscribes the author to the ticket,
// mirroring how people expect threads to behave.
func (s *MessageService) Add(ctx context.Context, actor *domain.User, ticketID int64, content string) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewValidationError("message is empty", nil)
	}
	if len([]rune(content)) > maxMessageLength {
		return nil, apperrors.NewValidationError("message too long", map[string]any{"max": maxMessageLength})
	}

	record, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := checkTicketAccess(&record.Ticket, actor); err != nil {
		return nil, err
	}
	// Archived tickets take no new messages, except from admins.
	if record.Ticket.Status.Archived() && !actor.IsAdmin {
		return nil, apperrors.NewForbidden("ticket is archived")
	}

	message := &domain.Message{
		TicketID: ticketID,
		AuthorID: actor.ID,
		Content:  content,
	}
	if err := s.messages.Create(ctx, message); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.subscriptions.Subscribe(ctx, actor.ID, ticketID); err != nil {
		s.logger.Warn("failed to subscribe commenter", zap.Int64("ticket_id", ticketID), zap.Error(err))
	}

	masked := MaskIdentity(actor, actor.IsAdmin)
	message.Author = &masked

	event := events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventTicketMessageAdded,
		TicketID:  ticketID,
		ActorID:   actor.ID,
		Timestamp: time.Now().UTC(),
		Payload: events.TicketMessageAddedPayload{
			MessageID:   message.ID,
			TicketTitle: record.Ticket.Title,
			AuthorName:  MaskIdentity(actor, false).Name,
			BodyPreview: preview(content),
		},
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed", zap.Error(err))
	}
	return message, nil
}

// List returns the full thread with authors masked for the viewer and
// attachments and reactions attached.
func (s *MessageService) List(ctx context.Context, viewer *domain.User, ticketID int64) ([]domain.Message, error) {
	ticketRecord, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := checkTicketAccess(&ticketRecord.Ticket, viewer); err != nil {
		return nil, err
	}
	records, err := s.messages.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return s.hydrate(ctx, records, viewer)
}

// ListSince returns only messages newer than sinceID; the web client
// polls this to keep an open thread fresh.
func (s *MessageService) ListSince(ctx context.Context, viewer *domain.User, ticketID, sinceID int64) ([]domain.Message, error) {
	ticketRecord, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := checkTicketAccess(&ticketRecord.Ticket, viewer); err != nil {
		return nil, err
	}
	records, err := s.messages.ListSince(ctx, ticketID, sinceID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return s.hydrate(ctx, records, viewer)
}

// Edit rewrites a comment's text. Only the author or an admin may, and
// system messages are immutable.
func (s *MessageService) Edit(ctx context.Context, actor *domain.User, messageID int64, content string) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewValidationError("message is empty", nil)
	}
	record, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if record.Message.IsSystem {
		return nil, apperrors.NewForbidden("system messages cannot be edited")
	}
	if record.Message.AuthorID != actor.ID && !actor.IsAdmin {
		return nil, apperrors.NewForbidden("only the author or an admin can edit a message")
	}
	if err := s.messages.UpdateContent(ctx, messageID, content); err != nil {
		return nil, apperrors.MapError(err)
	}
	record.Message.Content = content
	masked := MaskIdentity(&record.Author, actor.IsAdmin)
	record.Message.Author = &masked
	return &record.Message, nil
}

// Delete removes a comment, same permissions as Edit.
func (s *MessageService) Delete(ctx context.Context, actor *domain.User, messageID int64) error {
	record, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if record.Message.AuthorID != actor.ID && !actor.IsAdmin {
		return apperrors.NewForbidden("only the author or an admin can delete a message")
	}
	return apperrors.MapError(s.messages.Delete(ctx, messageID))
}

// ToggleReaction flips an emoji reaction on a message.
func (s *MessageService) ToggleReaction(ctx context.Context, actor *domain.User, messageID int64, emoji string) (bool, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" || len([]rune(emoji)) > 8 {
		return false, apperrors.NewValidationError("invalid emoji", nil)
	}
	record, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return false, apperrors.MapError(err)
	}
	ticketRecord, err := s.tickets.GetByID(ctx, record.Message.TicketID)
	if err != nil {
		return false, apperrors.MapError(err)
	}
	if err := checkTicketAccess(&ticketRecord.Ticket, actor); err != nil {
		return false, err
	}
	added, err := s.reactions.Toggle(ctx, messageID, actor.ID, emoji)
	if err != nil {
		return false, apperrors.MapError(err)
	}
	return added, nil
}

func (s *MessageService) hydrate(ctx context.Context, records []repository.MessageRecord, viewer *domain.User) ([]domain.Message, error) {
	messageIDs := make([]int64, len(records))
	for i, record := range records {
		messageIDs[i] = record.Message.ID
	}
	attachments, err := s.attachments.ListByMessages(ctx, messageIDs)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	reactions, err := s.reactions.ListByMessages(ctx, messageIDs)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	result := make([]domain.Message, 0, len(records))
	for _, record := range records {
		message := record.Message
		masked := MaskIdentity(&record.Author, viewer.IsAdmin)
		message.Author = &masked
		message.Attachments = attachments[message.ID]
		message.Reactions = reactions[message.ID]
		result = append(result, message)
	}
	return result, nil
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= messagePreviewLength {
		return content
	}
	return string(runes[:messagePreviewLength]) + "…"
}
