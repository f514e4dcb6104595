package middleware

import (
	"github.com/gofiber/fiber/v2"

	icuser "coachfit/internal/pkg/usercontext"
)

// RequireAuth ensures a logged-in web session; redirects to /login if missing.
func RequireAuth(c *fiber.Ctx) error {
	if !icuser.IsLoggedIn(c) {
		return c.Redirect("/login", fiber.StatusSeeOther)
	}
	return c.Next()
}

// RequireCoach ensures a logged-in coach; redirects otherwise.
func RequireCoach(c *fiber.Ctx) error {
	if !icuser.IsLoggedIn(c) {
		return c.Redirect("/login", fiber.StatusSeeOther)
	}
	if !icuser.IsCoach(c) {
		return c.Redirect("/", fiber.StatusSeeOther)
	}
	return c.Next()
}

// RequireStudent ensures a logged-in student; redirects otherwise.
func RequireStudent(c *fiber.Ctx) error {
	if !icuser.IsLoggedIn(c) {
		return c.Redirect("/login", fiber.StatusSeeOther)
	}
	if icuser.GetUserContext(c).Role != "student" {
		return c.Redirect("/", fiber.StatusSeeOther)
	}
	return c.Next()
}
