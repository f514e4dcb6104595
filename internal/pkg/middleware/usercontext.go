package middleware

import (
	"github.com/gofiber/fiber/v2"

	"coachfit/internal/pkg/session"
	"coachfit/internal/pkg/usercontext"
)

// UserContextMiddleware sets up the complete user context for every request.
// This centralizes session handling so controllers only read the context.
func UserContextMiddleware(c *fiber.Ctx) error {
	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		c.Locals(usercontext.KeyUserContext, usercontext.UserContext{IsLoggedIn: false})
		c.Locals(usercontext.KeyFromProtected, false)
		return c.Next()
	}

	userID := sess.Get(usercontext.KeyUserID)
	if userID == nil {
		// Anonymous user - no session data
		c.Locals(usercontext.KeyUserContext, usercontext.UserContext{IsLoggedIn: false})
		c.Locals(usercontext.KeyFromProtected, false)
		return c.Next()
	}

	username, _ := sess.Get(usercontext.KeyUserName).(string)
	role, _ := sess.Get(usercontext.KeyUserRole).(string)

	userCtx := usercontext.UserContext{
		UserID:     userID.(uint),
		Username:   username,
		Role:       role,
		IsLoggedIn: true,
	}
	c.Locals(usercontext.KeyUserContext, userCtx)
	c.Locals(usercontext.KeyFromProtected, true)

	return c.Next()
}
