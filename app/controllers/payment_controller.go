package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"coachfit/internal/pkg/database"
	"coachfit/internal/pkg/payments"
)

// HandlePaymentLink resolves the public payment link /pagamento/:token.
// Unknown tokens render 404; expired/used/canceled invitations render 410
// with a clear "no longer valid" page instead of a generic error.
func HandlePaymentLink(c *fiber.Ctx) error {
	token := strings.TrimSpace(c.Params("token"))
	svc := payments.NewFromDB(database.GetDB())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	inv, err := svc.Invitations.Resolve(ctx, token)
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrNotFound):
			return c.Status(fiber.StatusNotFound).Render("payment_invalid", fiber.Map{
				"Message": "Link de pagamento não encontrado",
			})
		case errors.Is(err, payments.ErrGone):
			return c.Status(fiber.StatusGone).Render("payment_invalid", fiber.Map{
				"Message": "Este link de pagamento não é mais válido",
			})
		default:
			return redirectWithPaymentError(c, err, "/")
		}
	}

	return c.Render("payment", fiber.Map{
		"Token":       inv.Token,
		"StudentName": inv.StudentName,
		"Amount":      formatAmount(inv.AmountCents),
		"Interval":    inv.BillingInterval,
		"TrialDays":   inv.TrialDays,
		"ExpiresAt":   inv.ExpiresAt.Format("02/01/2006 15:04"),
	})
}

// HandlePaymentCheckout starts the guest checkout for an invitation and
// redirects the visitor to the provider-hosted page.
func HandlePaymentCheckout(c *fiber.Ctx) error {
	token := strings.TrimSpace(c.Params("token"))
	svc := payments.NewFromDB(database.GetDB())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	sess, err := svc.Checkout.GuestCheckout(ctx, token)
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrNotFound), errors.Is(err, payments.ErrGone):
			return c.Status(fiber.StatusGone).Render("payment_invalid", fiber.Map{
				"Message": "Este link de pagamento não é mais válido",
			})
		default:
			return redirectWithPaymentError(c, err, "/pagamento/"+token)
		}
	}

	return c.Redirect(sess.URL, fiber.StatusSeeOther)
}

// HandlePaymentSuccess is the post-checkout return page. It syncs the
// resulting subscription immediately so the flow does not depend on webhook
// timing.
func HandlePaymentSuccess(c *fiber.Ctx) error {
	token := strings.TrimSpace(c.Params("token"))
	sessionID := strings.TrimSpace(c.Query("session_id"))
	svc := payments.NewFromDB(database.GetDB())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	inv, err := svc.Repo.GetInvitationByToken(token)
	if err != nil {
		return c.Status(fiber.StatusNotFound).Render("payment_invalid", fiber.Map{
			"Message": "Link de pagamento não encontrado",
		})
	}

	if sessionID != "" {
		account, err := svc.Repo.GetCoachAccountByUserID(inv.CoachID)
		if err == nil {
			if _, err := svc.Sync.SyncFromCheckoutSession(ctx, account.SubMerchantAccountID, sessionID); err != nil {
				// The webhook will finish the job; the page still renders.
				logPaymentSyncFailure(sessionID, err)
			}
		}
	}

	return c.Render("payment_success", fiber.Map{
		"StudentName": inv.StudentName,
	})
}

// HandleStudentPaymentPending renders the payment recovery page students are
// redirected to when their billing is blocked.
func HandleStudentPaymentPending(c *fiber.Ctx) error {
	return c.Render("student_payment_pending", fiber.Map{})
}
