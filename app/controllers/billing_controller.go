package controllers

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"coachfit/internal/pkg/cache"
	"coachfit/internal/pkg/database"
	"coachfit/internal/pkg/payments"
	"coachfit/internal/pkg/usercontext"
)

const coachBillingRoute = "/coach/billing"

// HandleCoachBilling renders the coach billing overview: onboarding state,
// seat status and student subscriptions.
func HandleCoachBilling(c *fiber.Ctx) error {
	coachID := usercontext.GetUserID(c)
	svc := payments.NewFromDB(database.GetDB())

	account, err := svc.Repo.GetCoachAccountByUserID(coachID)
	if err != nil {
		return redirectWithPaymentError(c, err, "/")
	}

	return c.Render("coach_billing", fiber.Map{
		"Flash":            flash.Get(c),
		"ChargesEnabled":   account.ChargesEnabled,
		"PayoutsEnabled":   account.PayoutsEnabled,
		"DetailsSubmitted": account.DetailsSubmitted,
		"HasSubAccount":    account.SubMerchantAccountID != "",
		"SeatStatus":       account.PlatformSubscriptionStatus,
		"HasActiveSeat":    account.HasActiveSeat(),
	})
}

// HandleCoachOnboarding ensures the sub-merchant account exists and sends
// the coach to the provider's onboarding flow.
func HandleCoachOnboarding(c *fiber.Ctx) error {
	coachID := usercontext.GetUserID(c)
	svc := payments.NewFromDB(database.GetDB())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	url, err := svc.SubAccounts.CreateOnboardingLink(ctx, coachID)
	if err != nil {
		return redirectWithPaymentError(c, err, coachBillingRoute)
	}
	return c.Redirect(url, fiber.StatusSeeOther)
}

// HandleCoachOnboardingReturn is the provider's return page; it refreshes
// the cached capability flags from provider truth.
func HandleCoachOnboardingReturn(c *fiber.Ctx) error {
	coachID := usercontext.GetUserID(c)
	svc := payments.NewFromDB(database.GetDB())

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	account, err := svc.SubAccounts.SyncCapabilities(ctx, coachID)
	if err != nil {
		return redirectWithPaymentError(c, err, coachBillingRoute)
	}

	msg := "Cadastro de pagamentos atualizado"
	if !account.ChargesEnabled {
		msg = "Cadastro recebido; o provedor ainda está validando seus dados"
	}
	return flash.WithSuccess(c, fiber.Map{"type": "success", "message": msg}).Redirect(coachBillingRoute)
}

// HandleCoachCapabilitiesResync re-reads capability flags on demand.
func HandleCoachCapabilitiesResync(c *fiber.Ctx) error {
	coachID := usercontext.GetUserID(c)
	svc := payments.NewFromDB(database.GetDB())

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if _, err := svc.SubAccounts.SyncCapabilities(ctx, coachID); err != nil {
		return redirectWithPaymentError(c, err, coachBillingRoute)
	}
	return flash.WithSuccess(c, fiber.Map{"type": "success", "message": "Status de pagamento atualizado"}).Redirect(coachBillingRoute)
}

// HandleCoachSeatCheckout begins the platform seat purchase.
func HandleCoachSeatCheckout(c *fiber.Ctx) error {
	coachID := usercontext.GetUserID(c)
	svc := payments.NewFromDB(database.GetDB())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	sess, err := svc.Checkout.SeatCheckout(ctx, coachID)
	if err != nil {
		return redirectWithPaymentError(c, err, coachBillingRoute)
	}
	return c.Redirect(sess.URL, fiber.StatusSeeOther)
}

// HandleCoachSeatSuccess is the seat purchase return page; it syncs the new
// seat subscription immediately.
func HandleCoachSeatSuccess(c *fiber.Ctx) error {
	sessionID := strings.TrimSpace(c.Query("session_id"))
	svc := payments.NewFromDB(database.GetDB())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if sessionID != "" {
		if _, err := svc.Sync.SyncFromCheckoutSession(ctx, "", sessionID); err != nil {
			logPaymentSyncFailure(sessionID, err)
		}
	}
	return flash.WithSuccess(c, fiber.Map{"type": "success", "message": "Assinatura da plataforma ativada"}).Redirect(coachBillingRoute)
}

// HandleCoachBillingResync force-resyncs all of the coach's provider state,
// the manual recovery path for missed webhooks.
func HandleCoachBillingResync(c *fiber.Ctx) error {
	coachID := usercontext.GetUserID(c)
	svc := payments.NewFromDB(database.GetDB())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := svc.Sync.SyncAllForCoach(ctx, coachID); err != nil {
		return redirectWithPaymentError(c, err, coachBillingRoute)
	}
	return flash.WithSuccess(c, fiber.Map{"type": "success", "message": "Assinaturas sincronizadas"}).Redirect(coachBillingRoute)
}

// HandleCoachInvitations lists the coach's payment invitations.
func HandleCoachInvitations(c *fiber.Ctx) error {
	coachID := usercontext.GetUserID(c)
	svc := payments.NewFromDB(database.GetDB())

	invs, err := svc.Invitations.ListByCoach(c.Context(), coachID)
	if err != nil {
		return redirectWithPaymentError(c, err, "/")
	}
	return c.Render("coach_invites", fiber.Map{
		"Flash":       flash.Get(c),
		"Invitations": invs,
	})
}

// HandleCoachInvitationCreate issues a new payment invitation.
func HandleCoachInvitationCreate(c *fiber.Ctx) error {
	coachID := usercontext.GetUserID(c)
	svc := payments.NewFromDB(database.GetDB())

	amount, _ := strconv.ParseInt(strings.TrimSpace(c.FormValue("amount_cents")), 10, 64)
	trialDays, _ := strconv.Atoi(c.FormValue("trial_days", "0"))
	input := payments.CreateInvitationInput{
		StudentName:     c.FormValue("student_name"),
		StudentEmail:    c.FormValue("student_email"),
		AmountCents:     amount,
		BillingInterval: c.FormValue("billing_interval", "month"),
		TrialDays:       trialDays,
	}
	if raw := strings.TrimSpace(c.FormValue("due_day")); raw != "" {
		if day, err := strconv.Atoi(raw); err == nil {
			input.DueDay = &day
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	inv, err := svc.Invitations.Create(ctx, coachID, input)
	if err != nil {
		return redirectWithPaymentError(c, err, "/coach/convites")
	}

	msg := "Convite criado: " + svc.Config.PublicBaseURL + "/pagamento/" + inv.Token
	return flash.WithSuccess(c, fiber.Map{"type": "success", "message": msg}).Redirect("/coach/convites")
}

// HandleCoachInvitationCancel voids a pending invitation.
func HandleCoachInvitationCancel(c *fiber.Ctx) error {
	coachID := usercontext.GetUserID(c)
	token := strings.TrimSpace(c.Params("token"))
	svc := payments.NewFromDB(database.GetDB())

	if err := svc.Invitations.Cancel(c.Context(), coachID, token); err != nil {
		return redirectWithPaymentError(c, err, "/coach/convites")
	}
	return flash.WithSuccess(c, fiber.Map{"type": "success", "message": "Convite cancelado"}).Redirect("/coach/convites")
}

// HandleCoachSubscriptionCancel cancels a student subscription, immediately
// or at period end.
func HandleCoachSubscriptionCancel(c *fiber.Ctx) error {
	coachID := usercontext.GetUserID(c)
	svc := payments.NewFromDB(database.GetDB())

	subID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return redirectWithPaymentError(c, payments.ErrNotFound, coachBillingRoute)
	}
	immediate := c.FormValue("imediato") == "true"
	reason := strings.TrimSpace(c.FormValue("motivo"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	result, err := svc.Cancellation.Cancel(ctx, coachID, uint(subID), immediate, reason)
	if err != nil {
		return redirectWithPaymentError(c, err, coachBillingRoute)
	}

	msg := "Assinatura será encerrada ao fim do período"
	if result.Immediate {
		msg = "Assinatura cancelada imediatamente"
	}
	return flash.WithSuccess(c, fiber.Map{"type": "success", "message": msg}).Redirect(coachBillingRoute)
}

// HandleCoachPayouts shows the coach's provider balance and recent payouts.
func HandleCoachPayouts(c *fiber.Ctx) error {
	coachID := usercontext.GetUserID(c)
	svc := payments.NewFromDB(database.GetDB())

	account, err := svc.Repo.GetCoachAccountByUserID(coachID)
	if err != nil {
		return redirectWithPaymentError(c, err, "/")
	}
	if account.SubMerchantAccountID == "" {
		return redirectWithPaymentError(c, &payments.PreconditionError{
			Reason: "no sub-merchant account",
			Hint:   "finalize o cadastro de pagamentos primeiro",
		}, coachBillingRoute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	balance, err := cachedBalance(ctx, svc, account.SubMerchantAccountID)
	if err != nil {
		return redirectWithPaymentError(c, err, coachBillingRoute)
	}
	payouts, err := svc.Gateway.ListPayouts(ctx, account.SubMerchantAccountID, 20)
	if err != nil {
		return redirectWithPaymentError(c, err, coachBillingRoute)
	}

	return c.Render("coach_payouts", fiber.Map{
		"Balance": balance,
		"Payouts": payouts,
	})
}

// cachedBalance returns the provider balance for a sub-merchant account,
// served from Redis for a short window so refreshing the payouts page does
// not hit the provider on every request.
func cachedBalance(ctx context.Context, svc *payments.Services, subAccountID string) (*payments.Balance, error) {
	key := "balance:" + subAccountID

	if raw, err := cache.Get(key); err == nil {
		var balance payments.Balance
		if err := json.Unmarshal([]byte(raw), &balance); err == nil {
			return &balance, nil
		}
	}

	balance, err := svc.Gateway.GetBalance(ctx, subAccountID)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(balance); err == nil {
		if err := cache.Set(key, raw, time.Minute); err != nil {
			log.Printf("Failed to cache balance for %s: %v", subAccountID, err)
		}
	}
	return balance, nil
}
