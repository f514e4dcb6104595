package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"coachfit/app/models"
	"coachfit/app/repository"
	"coachfit/internal/pkg/database"
	"coachfit/internal/pkg/usercontext"
)

var coachRepos *repository.Repositories

// InitializeCoachController wires the coach pages to their repositories.
// Called once during router installation.
func InitializeCoachController() {
	coachRepos = repository.NewFactory(database.GetDB()).GetRepositories()
}

type coachStudentRow struct {
	StudentID      uint
	Name           string
	Email          string
	LinkStatus     string
	SubscriptionID uint
	Status         string
	Amount         string
	DueDay         int
	CancelPending  bool
}

// HandleCoachStudents lists the coach's students with their subscription
// state, the page the cancel actions hang off.
func HandleCoachStudents(c *fiber.Ctx) error {
	coachID := usercontext.GetUserID(c)

	links, err := coachRepos.CoachStudent.ListByCoach(coachID)
	if err != nil {
		return redirectWithPaymentError(c, err, "/coach/convites")
	}
	subs, err := coachRepos.Subscription.ListByCoach(coachID)
	if err != nil {
		return redirectWithPaymentError(c, err, "/coach/convites")
	}

	// Latest subscription per student; the list is already newest first.
	latest := make(map[uint]models.Subscription)
	for _, sub := range subs {
		if sub.StudentID == nil {
			continue
		}
		if _, seen := latest[*sub.StudentID]; !seen {
			latest[*sub.StudentID] = sub
		}
	}

	rows := make([]coachStudentRow, 0, len(links))
	for _, link := range links {
		row := coachStudentRow{StudentID: link.StudentID, LinkStatus: link.Status}
		if user, err := coachRepos.User.GetByID(link.StudentID); err == nil {
			row.Name = user.Name
			row.Email = user.Email
		}
		if sub, ok := latest[link.StudentID]; ok {
			row.SubscriptionID = sub.ID
			row.Status = sub.Status
			row.Amount = formatAmount(sub.AmountCents)
			row.DueDay = sub.DueDay()
			row.CancelPending = sub.CancelAtPeriodEnd
		}
		rows = append(rows, row)
	}

	return c.Render("coach_students", fiber.Map{
		"Flash":    flash.Get(c),
		"Students": rows,
	})
}
