package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/zapret-labs/tracker/internal/api/dto"
	"github.com/zapret-labs/tracker/internal/auth"
	"github.com/zapret-labs/tracker/internal/service"
)

// UsersHandler exposes the user directory, settings and avatar
// refresh.
type UsersHandler struct {
	users   *service.UserService
	profile *service.ProfileService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(users *service.UserService, profile *service.ProfileService) *UsersHandler {
	return &UsersHandler{users: users, profile: profile}
}

// Directory handles GET /users.
func (h *UsersHandler) Directory(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	entries, err := h.users.Directory(c.UserContext(), principal.User)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": entries})
}

// UpdateSettings handles PATCH /users/settings.
func (h *UsersHandler) UpdateSettings(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	var req dto.SettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	user, err := h.users.UpdateSettings(c.UserContext(), principal.User, service.SettingsInput{
		PrivacyHidden:       req.PrivacyHidden,
		PrivacyHideOnline:   req.PrivacyHideOnline,
		PrivacyHideActivity: req.PrivacyHideActivity,
		DisplayName:         req.DisplayName,
		DisplayAvatar:       req.DisplayAvatar,
		NotifyOwn:           req.NotifyOwn,
		NotifySubscribed:    req.NotifySubscribed,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"privacy_hidden":        user.PrivacyHidden,
		"privacy_hide_online":   user.PrivacyHideOnline,
		"privacy_hide_activity": user.PrivacyHideActivity,
		"display_name":          user.DisplayName,
		"display_avatar":        user.DisplayAvatar,
		"notify_own":            user.NotifyOwn,
		"notify_subscribed":     user.NotifySubscribed,
	}})
}

// RefreshAvatar handles POST /users/avatar/refresh. It pulls the
// caller's current Telegram photo; a recent refresh is a silent no-op.
func (h *UsersHandler) RefreshAvatar(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	path, err := h.profile.Refresh(c.UserContext(), principal.User.ID, principal.User.TelegramID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"photo_url": path}})
}
