package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// RequireAuthenticated ensures a caller is signed in.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		return c.Next()
	}
}

// RequireAdmin ensures the caller has admin rights.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		if !principal.IsAdmin() {
			return fiber.NewError(http.StatusForbidden, "admin required")
		}
		return c.Next()
	}
}
