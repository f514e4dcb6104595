package router

import (
	"coachfit/app/controllers"
	"coachfit/internal/pkg/middleware"
	"coachfit/internal/pkg/session"

	"github.com/gofiber/fiber/v2"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware)

	// Initialize coach controller with repositories
	controllers.InitializeCoachController()

	h.registerPublicRoutes(app)
	h.registerCoachRoutes(app)
	h.registerStudentRoutes(app)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
