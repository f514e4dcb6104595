package middleware

import (
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"coachfit/internal/pkg/database"
	"coachfit/internal/pkg/payments"
	icuser "coachfit/internal/pkg/usercontext"
)

// Paths a coach may reach without an active seat: the seat purchase flow
// itself, its return page, and logout.
var coachSeatExemptPrefixes = []string{
	"/coach/billing",
	"/logout",
}

// CoachSeatGate blocks coaches without an active platform seat subscription
// and sends them to the seat purchase flow.
func CoachSeatGate(c *fiber.Ctx) error {
	userCtx := icuser.GetUserContext(c)
	if !userCtx.IsLoggedIn || userCtx.Role != "coach" {
		return c.Next()
	}
	for _, prefix := range coachSeatExemptPrefixes {
		if strings.HasPrefix(c.Path(), prefix) {
			return c.Next()
		}
	}

	gate := payments.NewAccessGate(payments.NewRepository(database.GetDB()))
	ok, err := gate.CoachHasActiveSeat(userCtx.UserID)
	if err != nil {
		log.Printf("coach seat gate for user %d: %v", userCtx.UserID, err)
		return c.Next()
	}
	if !ok {
		return c.Redirect("/coach/billing", fiber.StatusSeeOther)
	}
	return c.Next()
}

// StudentBillingGate blocks students whose billing is not current (past the
// grace window, or who never had a subscription) and sends them to the
// payment recovery page.
func StudentBillingGate(c *fiber.Ctx) error {
	userCtx := icuser.GetUserContext(c)
	if !userCtx.IsLoggedIn || userCtx.Role != "student" {
		return c.Next()
	}
	if strings.HasPrefix(c.Path(), "/aluno/pagamento-pendente") || strings.HasPrefix(c.Path(), "/logout") {
		return c.Next()
	}

	gate := payments.NewAccessGate(payments.NewRepository(database.GetDB()))
	state, err := gate.StudentAccess(userCtx.UserID, time.Now())
	if err != nil {
		log.Printf("student billing gate for user %d: %v", userCtx.UserID, err)
		return c.Next()
	}
	if state.Blocked {
		return c.Redirect("/aluno/pagamento-pendente", fiber.StatusSeeOther)
	}
	return c.Next()
}
