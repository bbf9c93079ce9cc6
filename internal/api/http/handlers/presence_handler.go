package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/zapret-labs/tracker/internal/api/dto"
	"github.com/zapret-labs/tracker/internal/auth"
	"github.com/zapret-labs/tracker/internal/domain"
	"github.com/zapret-labs/tracker/internal/service"
)

// PresenceHandler exposes heartbeats, the online list and the SSE
// stream of presence broadcasts.
type PresenceHandler struct {
	presence *service.PresenceService
	profile  *service.ProfileService
}

// NewPresenceHandler constructs handler.
func NewPresenceHandler(presence *service.PresenceService, profile *service.ProfileService) *PresenceHandler {
	return &PresenceHandler{presence: presence, profile: profile}
}

// Heartbeat handles POST /presence/heartbeat. Each heartbeat also
// kicks off a best-effort avatar refresh; the profile service's
// cooldown makes that a no-op most of the time.
func (h *PresenceHandler) Heartbeat(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	var req dto.HeartbeatRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	h.presence.RecordHeartbeat(principal.User, principal.SessionToken, domain.View(req.View), req.TicketID, req.TicketTitle)

	userID, telegramID := principal.User.ID, principal.User.TelegramID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_, _ = h.profile.Refresh(ctx, userID, telegramID)
	}()
	return c.JSON(fiber.Map{"data": fiber.Map{"ok": true}})
}

// Online handles GET /presence/online.
func (h *PresenceHandler) Online(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	snapshot := h.presence.ListOnline(principal.IsAdmin())
	return c.JSON(fiber.Map{"data": snapshot})
}

// Stream handles GET /presence/stream as Server-Sent Events. An
// initial snapshot goes out immediately, then every broadcast until
// the client disconnects.
func (h *PresenceHandler) Stream(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	viewerIsAdmin := principal.IsAdmin()

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	updates, cancel := h.presence.Subscribe()
	initial := h.presence.ListOnline(viewerIsAdmin)

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()

		if !writeSSE(w, initial) {
			return
		}
		for snapshot := range updates {
			if viewerIsAdmin {
				// Broadcasts carry the public view; admins get their
				// own snapshot with the real-identity side channel.
				snapshot = h.presence.ListOnline(true)
			}
			if !writeSSE(w, snapshot) {
				return
			}
		}
	}))
	return nil
}

func writeSSE(w *bufio.Writer, snapshot domain.PresenceSnapshot) bool {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return false
	}
	if _, err := w.WriteString("data: "); err != nil {
		return false
	}
	if _, err := w.Write(payload); err != nil {
		return false
	}
	if _, err := w.WriteString("\n\n"); err != nil {
		return false
	}
	// Flush fails once the client goes away, which ends the stream.
	return w.Flush() == nil
}
