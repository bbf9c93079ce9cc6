package auth

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/zapret-labs/tracker/internal/domain"
	"github.com/zapret-labs/tracker/internal/repository"
	apperrors "github.com/zapret-labs/tracker/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	User         *domain.User
	SessionToken string
}

// IsAdmin reports whether the caller has admin rights.
func (p *Principal) IsAdmin() bool {
	return p.User != nil && p.User.IsAdmin
}

// AuthMiddleware validates opaque session tokens and loads principals.
type AuthMiddleware struct {
	sessions   repository.SessionRepository
	users      repository.UserRepository
	sessionTTL time.Duration
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(sessions repository.SessionRepository, users repository.UserRepository, sessionTTL time.Duration) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions, users: users, sessionTTL: sessionTTL}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	token := extractToken(c)
	if token == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	session, err := m.sessions.Get(c.UserContext(), token)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.NewUnauthorized("invalid session")
		}
		return apperrors.MapError(err)
	}
	if m.sessionTTL > 0 && time.Since(session.LastUsed) > m.sessionTTL {
		_ = m.sessions.Delete(c.UserContext(), token)
		return apperrors.NewUnauthorized("session expired")
	}

	user, err := m.users.GetByID(c.UserContext(), session.UserID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.NewUnauthorized("user not found")
		}
		return apperrors.MapError(err)
	}

	// Sliding expiry: reads refresh last_used. A failure here is not
	// worth rejecting the request over.
	_ = m.sessions.Touch(c.UserContext(), token)

	c.Locals(principalKey, &Principal{User: user, SessionToken: token})
	return c.Next()
}

func extractToken(c *fiber.Ctx) string {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
