package router

import (
	"coachfit/app/controllers"
	"coachfit/internal/pkg/middleware"

	"github.com/gofiber/fiber/v2"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	app.Get("/", controllers.HandleIndex)

	// Auth
	app.Get("/login", controllers.HandleLoginPage)
	app.Post("/login", controllers.HandleAuthLogin)
	app.Post("/registro", controllers.HandleAuthRegister)
	app.Post("/logout", middleware.RequireAuth, controllers.HandleAuthLogout)

	// Public payment links. No login required: the student pays as a guest
	// through the token alone.
	app.Get("/pagamento/:token", controllers.HandlePaymentLink)
	app.Post("/pagamento/:token/checkout", controllers.HandlePaymentCheckout)
	app.Get("/pagamento/:token/sucesso", controllers.HandlePaymentSuccess)

	// Billing provider webhooks (no CSRF, signature-verified in controller)
	app.Post("/webhooks/stripe", controllers.HandleStripeWebhook)
}
