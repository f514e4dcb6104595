package router

import (
	"coachfit/app/controllers"
	"coachfit/internal/pkg/middleware"

	"github.com/gofiber/fiber/v2"
)

func (h HttpRouter) registerCoachRoutes(app *fiber.App) {
	coach := app.Group("/coach", middleware.RequireCoach, middleware.CoachSeatGate)

	// Payment profile and seat subscription
	coach.Get("/billing", controllers.HandleCoachBilling)
	coach.Post("/billing/onboarding", controllers.HandleCoachOnboarding)
	coach.Get("/billing/onboarding", controllers.HandleCoachOnboarding)
	coach.Get("/billing/onboarding/retorno", controllers.HandleCoachOnboardingReturn)
	coach.Post("/billing/capacidades", controllers.HandleCoachCapabilitiesResync)
	coach.Post("/billing/seat", controllers.HandleCoachSeatCheckout)
	coach.Get("/billing/seat/sucesso", controllers.HandleCoachSeatSuccess)
	coach.Post("/billing/resync", controllers.HandleCoachBillingResync)

	// Student invitations
	coach.Get("/convites", controllers.HandleCoachInvitations)
	coach.Post("/convites", controllers.HandleCoachInvitationCreate)
	coach.Post("/convites/:token/cancelar", controllers.HandleCoachInvitationCancel)

	// Students, subscriptions and payouts
	coach.Get("/alunos", controllers.HandleCoachStudents)
	coach.Post("/assinaturas/:id/cancelar", controllers.HandleCoachSubscriptionCancel)
	coach.Get("/pagamentos", controllers.HandleCoachPayouts)
}
