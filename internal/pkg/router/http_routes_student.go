package router

import (
	"coachfit/app/controllers"
	"coachfit/internal/pkg/middleware"

	"github.com/gofiber/fiber/v2"
)

func (h HttpRouter) registerStudentRoutes(app *fiber.App) {
	aluno := app.Group("/aluno", middleware.RequireStudent, middleware.StudentBillingGate)

	aluno.Get("/pagamento-pendente", controllers.HandleStudentPaymentPending)
}
