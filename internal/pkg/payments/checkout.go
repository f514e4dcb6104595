package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"
)

// Metadata keys embedded in checkout sessions for later reconciliation.
const (
	MetadataInvitationToken = "invitation_token"
	MetadataCoachID         = "coach_id"
	MetadataSeat            = "platform_seat"
)

// CheckoutOrchestrator turns an invitation (guest flow) or a coach's seat
// purchase (authenticated flow) into a provider checkout session.
type CheckoutOrchestrator struct {
	repo        Repository
	gw          Gateway
	cfg         Config
	invitations *InvitationService
}

func NewCheckoutOrchestrator(repo Repository, gw Gateway, cfg Config, invitations *InvitationService) *CheckoutOrchestrator {
	return &CheckoutOrchestrator{repo: repo, gw: gw, cfg: cfg, invitations: invitations}
}

// SeatCheckout opens a subscription-mode checkout for the coach's own
// platform seat. A provider customer is created on first use and persisted
// before the session is requested.
func (o *CheckoutOrchestrator) SeatCheckout(ctx context.Context, coachID uint) (*CheckoutSession, error) {
	if o.cfg.SeatPriceID == "" {
		return nil, errors.New("STRIPE_SEAT_PRICE_ID is not configured")
	}

	account, err := o.repo.GetCoachAccountByUserID(coachID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: coach account %d", ErrNotFound, coachID)
		}
		return nil, err
	}

	if account.ProviderCustomerID == "" {
		user, err := o.repo.GetUserByID(coachID)
		if err != nil {
			return nil, err
		}
		customer, err := o.gw.CreateCustomer(ctx, user.Email, user.Name)
		if err != nil {
			return nil, err
		}
		account.ProviderCustomerID = customer.ID
		if err := o.repo.SaveCoachAccount(account); err != nil {
			return nil, fmt.Errorf("persisting customer %s for coach %d: %w", customer.ID, coachID, err)
		}
	}

	return o.gw.CreateCheckoutSession(ctx, "", CheckoutSessionParams{
		Mode:       "subscription",
		Customer:   account.ProviderCustomerID,
		PriceID:    o.cfg.SeatPriceID,
		TrialDays:  o.cfg.SeatTrialDays,
		SuccessURL: o.cfg.PublicBaseURL + "/coach/billing/seat/sucesso?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  o.cfg.PublicBaseURL + "/coach/billing",
		Metadata: map[string]string{
			MetadataSeat:    "true",
			MetadataCoachID: strconv.FormatUint(uint64(coachID), 10),
		},
	})
}

// GuestCheckout opens a checkout session on the coach's sub-merchant account
// for the student named by the invitation. Each invitation gets its own
// product and price so a later amount change can never retroactively alter
// an in-flight checkout. A provider failure here is surfaced, never retried:
// the caller restarts from invitation resolution, which bounds duplicate
// priced products to one per legitimate retry.
func (o *CheckoutOrchestrator) GuestCheckout(ctx context.Context, token string) (*CheckoutSession, error) {
	inv, err := o.invitations.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	account, err := o.repo.GetCoachAccountByUserID(inv.CoachID)
	if err != nil {
		return nil, err
	}
	if !account.CanCharge() {
		return nil, &PreconditionError{
			Reason: "coach cannot accept charges yet",
			Hint:   "this coach has not finished payment setup",
		}
	}
	subAccount := account.SubMerchantAccountID

	metadata := map[string]string{
		MetadataInvitationToken: inv.Token,
		MetadataCoachID:         strconv.FormatUint(uint64(inv.CoachID), 10),
	}

	product, err := o.gw.CreateProduct(ctx, subAccount, "Acompanhamento - "+inv.StudentName, metadata)
	if err != nil {
		return nil, err
	}
	price, err := o.gw.CreatePrice(ctx, subAccount, product.ID, o.cfg.Currency, inv.AmountCents, inv.BillingInterval)
	if err != nil {
		return nil, err
	}

	// No local subscription row is created here; it appears only when the
	// sync engine observes the resulting provider subscription.
	return o.gw.CreateCheckoutSession(ctx, subAccount, CheckoutSessionParams{
		Mode:                  "subscription",
		CustomerEmail:         inv.StudentEmail,
		PriceID:               price.ID,
		TrialDays:             inv.TrialDays,
		ApplicationFeePercent: o.cfg.ApplicationFeePercent,
		SuccessURL:            o.cfg.PublicBaseURL + "/pagamento/" + inv.Token + "/sucesso?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:             o.cfg.PublicBaseURL + "/pagamento/" + inv.Token,
		Metadata:              metadata,
	})
}
