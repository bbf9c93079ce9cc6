package domain

import "time"

// User is a registered account. Registration happens implicitly through
// Telegram auth, so there are no passwords anywhere in the model.
type User struct {
	ID                  int64      `json:"id"`
	TelegramID          int64      `json:"telegram_id"`
	ChatID              *int64     `json:"chat_id,omitempty"`
	Username            *string    `json:"username,omitempty"`
	FirstName           string     `json:"first_name"`
	LastName            *string    `json:"last_name,omitempty"`
	PhotoURL            *string    `json:"photo_url,omitempty"`
	IsAdmin             bool       `json:"is_admin"`
	PrivacyHidden       bool       `json:"privacy_hidden"`
	PrivacyHideOnline   bool       `json:"privacy_hide_online"`
	PrivacyHideActivity bool       `json:"privacy_hide_activity"`
	DisplayName         *string    `json:"display_name,omitempty"`
	DisplayAvatar       *string    `json:"display_avatar,omitempty"`
	NotifyOwn           bool       `json:"notify_own"`
	NotifySubscribed    bool       `json:"notify_subscribed"`
	CreatedAt           time.Time  `json:"created_at"`
	LastLogin           time.Time  `json:"last_login"`
}

// HiddenSentinel is the display_avatar value meaning "show no avatar at
// all", as opposed to empty which means "no override, fall back".
const HiddenSentinel = "hidden"

// FullName joins first and last name for display.
func (u *User) FullName() string {
	if u.LastName != nil && *u.LastName != "" {
		return u.FirstName + " " + *u.LastName
	}
	return u.FirstName
}
