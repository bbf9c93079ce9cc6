package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/zapret-labs/tracker/internal/domain"
	"github.com/zapret-labs/tracker/internal/events"
	"github.com/zapret-labs/tracker/internal/observability"
	"github.com/zapret-labs/tracker/internal/repository"
	"github.com/zapret-labs/tracker/internal/telegram"
)

// Sender delivers a single Telegram message. *telegram.Client is the
// production implementation; tests substitute a recorder.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) error
}

// NotificationService fans ticket events out to Telegram. One failed
// recipient never stops delivery to the rest.
type NotificationService struct {
	sender        Sender
	tickets       repository.TicketRepository
	subscriptions repository.SubscriptionRepository
	logger        *zap.Logger
	metrics       *observability.Metrics

	siteURL         string
	webAppButtons   bool
	adminTelegramID int64
}

// NewNotificationService constructs the fan-out layer. adminTelegramID
// may be zero, in which case admin pings are disabled.
func NewNotificationService(
	sender Sender,
	tickets repository.TicketRepository,
	subscriptions repository.SubscriptionRepository,
	logger *zap.Logger,
	metrics *observability.Metrics,
	siteURL string,
	webAppButtons bool,
	adminTelegramID int64,
) *NotificationService {
	return &NotificationService{
		sender:          sender,
		tickets:         tickets,
		subscriptions:   subscriptions,
		logger:          logger,
		metrics:         metrics,
		siteURL:         siteURL,
		webAppButtons:   webAppButtons,
		adminTelegramID: adminTelegramID,
	}
}

// RegisterHandlers wires the service into the event dispatcher.
func (s *NotificationService) RegisterHandlers(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventTicketCreated, s.onTicketCreated)
	dispatcher.Subscribe(events.EventTicketStatusChanged, s.onTicketStatusChanged)
	dispatcher.Subscribe(events.EventTicketTitleChanged, s.onTicketTitleChanged)
	dispatcher.Subscribe(events.EventTicketMessageAdded, s.onTicketMessageAdded)
}

func (s *NotificationService) onTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type for %s", event.Type)
	}
	if payload.IsPrivate {
		// Private tickets ping the admin only.
		text := fmt.Sprintf("🔒 New private ticket #%d\n<b>%s</b>",
			event.TicketID, telegram.EscapeHTML(payload.Title))
		s.NotifyAdmin(ctx, text, event.TicketID)
		return nil
	}
	text := fmt.Sprintf("🆕 New %s #%d\n<b>%s</b>",
		payload.Type, event.TicketID, telegram.EscapeHTML(payload.Title))
	s.NotifyAdmin(ctx, text, event.TicketID)
	return nil
}

func (s *NotificationService) onTicketStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type for %s", event.Type)
	}
	text := fmt.Sprintf("🔄 Ticket #%d <b>%s</b>\nStatus: %s → <b>%s</b>",
		event.TicketID, telegram.EscapeHTML(payload.Title), payload.OldStatus, payload.NewStatus)
	return s.NotifySubscribers(ctx, event.TicketID, event.ActorID, text)
}

func (s *NotificationService) onTicketTitleChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketTitleChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type for %s", event.Type)
	}
	text := fmt.Sprintf("✏️ Ticket #%d renamed\n<s>%s</s>\n<b>%s</b>",
		event.TicketID, telegram.EscapeHTML(payload.OldTitle), telegram.EscapeHTML(payload.NewTitle))
	return s.NotifySubscribers(ctx, event.TicketID, event.ActorID, text)
}

func (s *NotificationService) onTicketMessageAdded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketMessageAddedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type for %s", event.Type)
	}
	text := fmt.Sprintf("💬 <b>%s</b> in ticket #%d <b>%s</b>:\n%s",
		telegram.EscapeHTML(payload.AuthorName), event.TicketID,
		telegram.EscapeHTML(payload.TicketTitle), telegram.EscapeHTML(payload.BodyPreview))
	return s.NotifySubscribers(ctx, event.TicketID, event.ActorID, text)
}

// NotifySubscribers delivers text to every subscriber of the ticket
// except the actor, honoring per-user notification preferences. Users
// who never opened the bot chat have no chat id and are skipped.
func (s *NotificationService) NotifySubscribers(ctx context.Context, ticketID, actorID int64, text string) error {
	record, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return err
	}
	subscribers, err := s.subscriptions.ListSubscribers(ctx, ticketID)
	if err != nil {
		return err
	}

	markup := s.ticketButton(ticketID)
	for _, subscriber := range subscribers {
		if subscriber.ID == actorID {
			continue
		}
		if subscriber.ChatID == nil {
			continue
		}
		if !wantsNotification(&subscriber, record.Ticket.AuthorID) {
			continue
		}
		if err := s.sender.SendMessage(ctx, *subscriber.ChatID, text, markup); err != nil {
			s.logger.Warn("notification delivery failed",
				zap.Int64("ticket_id", ticketID),
				zap.Int64("user_id", subscriber.ID),
				zap.Error(err))
			if s.metrics != nil {
				s.metrics.RecordNotification(false)
			}
			continue
		}
		if s.metrics != nil {
			s.metrics.RecordNotification(true)
		}
	}
	return nil
}

// wantsNotification applies the user's preference toggles: the ticket
// author is governed by notify_own, everyone else by
// notify_subscribed.
func wantsNotification(user *domain.User, authorID int64) bool {
	if user.ID == authorID {
		return user.NotifyOwn
	}
	return user.NotifySubscribed
}

// NotifyAdmin sends a direct ping to the configured admin account.
func (s *NotificationService) NotifyAdmin(ctx context.Context, text string, ticketID int64) {
	if s.adminTelegramID == 0 {
		return
	}
	if err := s.sender.SendMessage(ctx, s.adminTelegramID, text, s.ticketButton(ticketID)); err != nil {
		s.logger.Warn("admin notification failed", zap.Error(err))
		if s.metrics != nil {
			s.metrics.RecordNotification(false)
		}
		return
	}
	if s.metrics != nil {
		s.metrics.RecordNotification(true)
	}
}

func (s *NotificationService) ticketButton(ticketID int64) *telegram.InlineKeyboardMarkup {
	if s.siteURL == "" {
		return nil
	}
	url := fmt.Sprintf("%s/ticket/%d", s.siteURL, ticketID)
	button := telegram.InlineKeyboardButton{Text: "Open ticket"}
	if s.webAppButtons {
		button.WebApp = &telegram.WebAppInfo{URL: url}
	} else {
		button.URL = url
	}
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{{button}}}
}
