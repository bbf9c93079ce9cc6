package telegram

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Authenticator is implemented by the auth layer. ConfirmLoginToken
// binds a pending deep-link token to the Telegram account that sent
// /start; RegisterChat records the private chat id so notifications
// can reach the user later.
type Authenticator interface {
	ConfirmLoginToken(ctx context.Context, token string, from User, chatID int64) error
	RegisterChat(ctx context.Context, from User, chatID int64) error
}

// Poller runs the getUpdates long-poll loop and reacts to bot
// commands.
type Poller struct {
	client     *Client
	auth       Authenticator
	logger     *zap.Logger
	siteURL    string
	webAppSite bool
	timeoutSec int

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewPoller builds the update loop. webAppSite controls whether reply
// buttons open the site as a Mini App (requires HTTPS) or a plain URL.
func NewPoller(client *Client, auth Authenticator, logger *zap.Logger, siteURL string, webAppSite bool, timeoutSec int) *Poller {
	if timeoutSec <= 0 {
		timeoutSec = 50
	}
	return &Poller{
		client:     client,
		auth:       auth,
		logger:     logger,
		siteURL:    siteURL,
		webAppSite: webAppSite,
		timeoutSec: timeoutSec,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start launches the polling loop in its own goroutine.
func (p *Poller) Start() {
	go p.run()
}

// Stop requests shutdown and waits for the loop to exit.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	<-p.doneCh
}

func (p *Poller) run() {
	defer close(p.doneCh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-p.stopCh
		cancel()
	}()

	if me, err := p.client.GetMe(ctx); err != nil {
		p.logger.Warn("getMe failed, token may be invalid", zap.Error(err))
	} else {
		p.logger.Info("bot connected", zap.String("username", me.Username))
	}
	if err := p.client.SetMyCommands(ctx); err != nil {
		p.logger.Warn("failed to register bot commands", zap.Error(err))
	}

	var offset int64
	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		updates, err := p.client.GetUpdates(ctx, offset, p.timeoutSec)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("getUpdates failed, backing off", zap.Error(err))
			select {
			case <-time.After(5 * time.Second):
			case <-p.stopCh:
				return
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			p.handleUpdate(ctx, update)
		}
	}
}

func (p *Poller) handleUpdate(ctx context.Context, update Update) {
	message := update.Message
	if message == nil || message.From == nil || message.From.IsBot {
		return
	}
	from := *message.From
	chatID := message.Chat.ID

	// Any inbound message refreshes the stored chat id, so users who
	// blocked and re-added the bot become reachable again.
	if err := p.auth.RegisterChat(ctx, from, chatID); err != nil {
		p.logger.Warn("failed to register chat",
			zap.Int64("telegram_id", from.ID), zap.Error(err))
	}

	text := strings.TrimSpace(message.Text)
	switch {
	case strings.HasPrefix(text, "/start"):
		p.handleStart(ctx, from, chatID, strings.TrimSpace(strings.TrimPrefix(text, "/start")))
	case strings.HasPrefix(text, "/help"):
		p.reply(ctx, chatID, helpText, nil)
	}
}

const helpText = `<b>Tracker bot</b>

I link your Telegram account to the issue tracker and deliver updates on tickets you follow.

/start — link your account
/help — this message

Notification preferences live in the tracker's settings page.`

func (p *Poller) handleStart(ctx context.Context, from User, chatID int64, token string) {
	if token != "" {
		if err := p.auth.ConfirmLoginToken(ctx, token, from, chatID); err != nil {
			p.logger.Info("login token confirmation failed",
				zap.Int64("telegram_id", from.ID), zap.Error(err))
			p.reply(ctx, chatID,
				"This login link has expired. Go back to the site and try again.", nil)
			return
		}
		p.reply(ctx, chatID,
			"You are signed in. Return to the browser tab, it will pick up the session on its own.",
			p.siteButton("Open tracker"))
		return
	}
	p.reply(ctx, chatID,
		"Hi, <b>"+EscapeHTML(from.FirstName)+"</b>! I am the issue tracker bot. Open the tracker below, or use /help.",
		p.siteButton("Open tracker"))
}

func (p *Poller) siteButton(label string) *InlineKeyboardMarkup {
	if p.siteURL == "" {
		return nil
	}
	button := InlineKeyboardButton{Text: label}
	if p.webAppSite {
		button.WebApp = &WebAppInfo{URL: p.siteURL}
	} else {
		button.URL = p.siteURL
	}
	return &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{{button}}}
}

func (p *Poller) reply(ctx context.Context, chatID int64, text string, markup *InlineKeyboardMarkup) {
	if err := p.client.SendMessage(ctx, chatID, text, markup); err != nil {
		p.logger.Warn("failed to send reply", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// EscapeHTML escapes the characters Telegram's HTML parse mode treats
// specially. User-provided text must pass through this before being
// embedded in notification texts.
func EscapeHTML(s string) string {
	replacer := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return replacer.Replace(s)
}
