package controllers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"
	"gorm.io/gorm"

	"coachfit/app/models"
	"coachfit/app/repository"
	"coachfit/internal/pkg/database"
	"coachfit/internal/pkg/session"
	"coachfit/internal/pkg/usercontext"
)

func HandleLoginPage(c *fiber.Ctx) error {
	if usercontext.IsLoggedIn(c) {
		return c.Redirect("/", fiber.StatusSeeOther)
	}
	return c.Render("login", fiber.Map{
		"Flash": flash.Get(c),
	})
}

func HandleAuthLogin(c *fiber.Ctx) error {
	email := strings.ToLower(strings.TrimSpace(c.FormValue("email")))
	password := c.FormValue("password")

	repo := repository.NewUserRepository(database.GetDB())
	user, err := repo.GetByEmail(email)
	if err != nil || !user.CheckPassword(password) {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "E-mail ou senha inválidos"}).Redirect("/login")
	}
	if !user.IsActive() {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Conta inativa"}).Redirect("/login")
	}

	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Sessão indisponível"}).Redirect("/login")
	}
	sess.Set(usercontext.KeyUserID, user.ID)
	sess.Set(usercontext.KeyUserName, user.Name)
	sess.Set(usercontext.KeyUserRole, user.Role)
	if err := sess.Save(); err != nil {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Sessão indisponível"}).Redirect("/login")
	}

	now := time.Now()
	user.LastLoginAt = &now
	_ = repo.Update(user)

	if user.IsCoach() {
		return c.Redirect("/coach/convites", fiber.StatusSeeOther)
	}
	return c.Redirect("/", fiber.StatusSeeOther)
}

func HandleAuthLogout(c *fiber.Ctx) error {
	sess, err := session.GetSessionStore().Get(c)
	if err == nil {
		_ = sess.Destroy()
	}
	return c.Redirect("/login", fiber.StatusSeeOther)
}

// HandleAuthRegister creates a coach user plus its payment profile. The
// coach account row exists from signup on; only its provider fields start
// empty.
func HandleAuthRegister(c *fiber.Ctx) error {
	name := strings.TrimSpace(c.FormValue("name"))
	email := strings.ToLower(strings.TrimSpace(c.FormValue("email")))
	password := c.FormValue("password")

	user, err := models.CreateUser(name, email, password, models.ROLE_COACH)
	if err != nil {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Cadastro inválido: " + err.Error()}).Redirect("/login")
	}
	user.Status = models.STATUS_ACTIVE

	db := database.GetDB()
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		return tx.Create(&models.CoachAccount{UserID: user.ID}).Error
	})
	if err != nil {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Não foi possível criar a conta"}).Redirect("/login")
	}

	return flash.WithSuccess(c, fiber.Map{"type": "success", "message": "Conta criada, faça login"}).Redirect("/login")
}
