package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/zapret-labs/tracker/internal/api/dto"
	"github.com/zapret-labs/tracker/internal/auth"
	"github.com/zapret-labs/tracker/internal/service"
)

// AuthHandler exposes both login flows and logout.
type AuthHandler struct {
	auth     *service.AuthService
	presence *service.PresenceService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, presence *service.PresenceService) *AuthHandler {
	return &AuthHandler{auth: authService, presence: presence}
}

// WebAppLogin handles POST /auth/webapp.
func (h *AuthHandler) WebAppLogin(c *fiber.Ctx) error {
	var req dto.WebAppLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.InitData == "" {
		return fiber.NewError(http.StatusBadRequest, "init_data required")
	}

	user, token, err := h.auth.WebAppLogin(c.UserContext(), req.InitData)
	if err != nil {
		return err
	}
	masked := service.MaskIdentity(user, user.IsAdmin)
	return c.JSON(fiber.Map{"data": fiber.Map{
		"token": token,
		"user":  masked,
	}})
}

// DevLogin handles POST /auth/dev. Refused with 403 while the bot is
// configured.
func (h *AuthHandler) DevLogin(c *fiber.Ctx) error {
	var req dto.DevLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	user, token, err := h.auth.DevLogin(c.UserContext(), req.TelegramID, req.Username, req.FirstName)
	if err != nil {
		return err
	}
	masked := service.MaskIdentity(user, user.IsAdmin)
	return c.JSON(fiber.Map{"data": fiber.Map{
		"token": token,
		"user":  masked,
	}})
}

// RequestLogin handles POST /auth/request. It returns the handshake
// token plus the t.me deep link the browser should open.
func (h *AuthHandler) RequestLogin(c *fiber.Ctx) error {
	token, deepLink, err := h.auth.RequestLogin(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"token": token,
		"link":  deepLink,
	}})
}

// CheckLogin handles POST /auth/check. The browser polls it until the
// bot confirms the token.
func (h *AuthHandler) CheckLogin(c *fiber.Ctx) error {
	var req dto.CheckLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Token == "" {
		return fiber.NewError(http.StatusBadRequest, "token required")
	}

	user, sessionToken, err := h.auth.CheckLogin(c.UserContext(), req.Token)
	if err != nil {
		return err
	}
	if sessionToken == "" {
		return c.JSON(fiber.Map{"data": fiber.Map{"confirmed": false}})
	}
	masked := service.MaskIdentity(user, user.IsAdmin)
	return c.JSON(fiber.Map{"data": fiber.Map{
		"confirmed": true,
		"token":     sessionToken,
		"user":      masked,
	}})
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	masked := service.MaskIdentity(principal.User, principal.IsAdmin())
	return c.JSON(fiber.Map{"data": fiber.Map{
		"user": masked,
		"settings": fiber.Map{
			"privacy_hidden":        principal.User.PrivacyHidden,
			"privacy_hide_online":   principal.User.PrivacyHideOnline,
			"privacy_hide_activity": principal.User.PrivacyHideActivity,
			"display_name":          principal.User.DisplayName,
			"display_avatar":        principal.User.DisplayAvatar,
			"notify_own":            principal.User.NotifyOwn,
			"notify_subscribed":     principal.User.NotifySubscribed,
		},
	}})
}

// Logout handles POST /auth/logout. The session dies server-side and
// its presence entry is forgotten immediately.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	if err := h.auth.Logout(c.UserContext(), principal.SessionToken); err != nil {
		return err
	}
	h.presence.Forget(principal.SessionToken)
	// Push the change to stream watchers instead of waiting for the
	// next tick.
	h.presence.Broadcast()
	return c.JSON(fiber.Map{"data": fiber.Map{"ok": true}})
}
