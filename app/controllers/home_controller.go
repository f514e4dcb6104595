package controllers

import (
	"github.com/gofiber/fiber/v2"

	"coachfit/app/models"
	"coachfit/internal/pkg/usercontext"
)

// HandleIndex routes logged-in users to their role's landing page.
func HandleIndex(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	if !uc.IsLoggedIn {
		return c.Redirect("/login", fiber.StatusSeeOther)
	}
	if uc.Role == models.ROLE_COACH {
		return c.Redirect("/coach/convites", fiber.StatusSeeOther)
	}
	return c.Render("home", fiber.Map{
		"UserName": uc.Username,
	})
}
