package dto

// WebAppLoginRequest carries Telegram Mini App init data.
type WebAppLoginRequest struct {
	InitData string `json:"init_data"`
}

// CheckLoginRequest polls a deep-link handshake token.
type CheckLoginRequest struct {
	Token string `json:"token"`
}

// DevLoginRequest signs in without Telegram. Only honored while the
// bot token is unset.
type DevLoginRequest struct {
	TelegramID int64  `json:"telegram_id"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
}

// CreateTicketRequest opens a ticket.
type CreateTicketRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Type        string  `json:"type"`
	Priority    string  `json:"priority"`
	IsPrivate   bool    `json:"is_private"`
	TagIDs      []int64 `json:"tag_ids"`
}

// UpdateTicketRequest edits a ticket; omitted fields stay untouched.
type UpdateTicketRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Type        *string `json:"type"`
	Status      *string `json:"status"`
	Priority    *string `json:"priority"`
	IsPrivate   *bool   `json:"is_private"`
	TagIDs      []int64 `json:"tag_ids"`
}

// AddMessageRequest posts a comment.
type AddMessageRequest struct {
	Content string `json:"content"`
}

// EditMessageRequest rewrites a comment.
type EditMessageRequest struct {
	Content string `json:"content"`
}

// ReactionRequest toggles an emoji on a message.
type ReactionRequest struct {
	Emoji string `json:"emoji"`
}

// HeartbeatRequest reports the caller's current page and, when they
// are inside a ticket, which one.
type HeartbeatRequest struct {
	View        string `json:"view"`
	TicketID    *int64 `json:"ticket_id"`
	TicketTitle string `json:"ticket_title"`
}

// TypingRequest signals the caller is composing a message.
type TypingRequest struct {
	TicketID int64 `json:"ticket_id"`
}

// SettingsRequest updates privacy, masking and notification
// preferences; omitted fields stay untouched.
type SettingsRequest struct {
	PrivacyHidden       *bool   `json:"privacy_hidden"`
	PrivacyHideOnline   *bool   `json:"privacy_hide_online"`
	PrivacyHideActivity *bool   `json:"privacy_hide_activity"`
	DisplayName         *string `json:"display_name"`
	DisplayAvatar       *string `json:"display_avatar"`
	NotifyOwn           *bool   `json:"notify_own"`
	NotifySubscribed    *bool   `json:"notify_subscribed"`
}

// CreateTagRequest adds a tag to the shared palette.
type CreateTagRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}
