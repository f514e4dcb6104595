package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"gorm.io/gorm"

	"coachfit/app/models"
)

// SyncEngine pulls authoritative subscription state from the provider and
// merges it into the ledger. It is idempotent under arbitrary replay:
// everything is an upsert keyed on the unique provider subscription id, and
// provider state always wins. The ledger mirrors, it never derives.
type SyncEngine struct {
	repo Repository
	gw   Gateway
}

func NewSyncEngine(repo Repository, gw Gateway) *SyncEngine {
	return &SyncEngine{repo: repo, gw: gw}
}

// SyncOne fetches one subscription from the provider and upserts its state.
// subAccount scopes the fetch to a coach's sub-merchant account; empty means
// the platform's own account. Out-of-order or duplicate triggers are safe:
// each call re-fetches current truth instead of trusting any event snapshot.
func (e *SyncEngine) SyncOne(ctx context.Context, subAccount, providerSubscriptionID string) (*models.Subscription, error) {
	remote, err := e.gw.GetSubscription(ctx, subAccount, providerSubscriptionID)
	if err != nil {
		return nil, err
	}
	return e.apply(ctx, remote)
}

// SyncAllForCustomer lists every subscription of a provider customer and
// syncs each. This is the manual "force resync" path for missed webhooks.
func (e *SyncEngine) SyncAllForCustomer(ctx context.Context, subAccount, providerCustomerID string) error {
	remotes, err := e.gw.ListSubscriptionsByCustomer(ctx, subAccount, providerCustomerID)
	if err != nil {
		return err
	}
	var firstErr error
	for i := range remotes {
		if _, err := e.apply(ctx, &remotes[i]); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SyncAllForCoach re-syncs both sides of a coach's provider state: the seat
// subscription under the coach's platform customer and every student
// subscription on the coach's sub-merchant account.
func (e *SyncEngine) SyncAllForCoach(ctx context.Context, coachID uint) error {
	account, err := e.repo.GetCoachAccountByUserID(coachID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: coach account %d", ErrNotFound, coachID)
		}
		return err
	}

	var firstErr error
	if account.ProviderCustomerID != "" {
		if err := e.SyncAllForCustomer(ctx, "", account.ProviderCustomerID); err != nil {
			firstErr = err
		}
	}
	if account.SubMerchantAccountID != "" {
		remotes, err := e.gw.ListSubscriptions(ctx, account.SubMerchantAccountID)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else {
			for i := range remotes {
				if _, err := e.apply(ctx, &remotes[i]); err != nil && firstErr == nil {
					firstErr = err
				}
			}
		}
	}
	return firstErr
}

// SyncFromCheckoutSession resolves a finished checkout session to its
// subscription and syncs it. The post-redirect success path uses this to
// make guest checkout observable without waiting for the webhook.
func (e *SyncEngine) SyncFromCheckoutSession(ctx context.Context, subAccount, sessionID string) (*models.Subscription, error) {
	sess, err := e.gw.GetCheckoutSession(ctx, subAccount, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Subscription == "" {
		return nil, fmt.Errorf("%w: checkout session %s has no subscription yet", ErrNotFound, sessionID)
	}
	return e.SyncOne(ctx, subAccount, sess.Subscription)
}

// apply maps a fetched provider subscription into the local shape and
// upserts it, then runs the reconciliation side effects (invitation
// completion, student linkage, seat mirroring). Untyped provider fields
// never leak past this point.
func (e *SyncEngine) apply(ctx context.Context, remote *ProviderSubscription) (*models.Subscription, error) {
	invitationToken := remote.Metadata[MetadataInvitationToken]

	coachID, err := e.resolveCoach(remote, invitationToken)
	if err != nil {
		return nil, err
	}

	sub := &models.Subscription{
		ProviderSubscriptionID: remote.ID,
		ProviderCustomerID:     remote.Customer,
		CoachID:                coachID,
		InvitationToken:        invitationToken,
		Status:                 mapProviderStatus(remote.Status),
		CurrentPeriodStart:     epochToTime(remote.CurrentPeriodStart),
		CurrentPeriodEnd:       epochToTime(remote.CurrentPeriodEnd),
		CancelAtPeriodEnd:      remote.CancelAtPeriodEnd,
		CanceledAt:             epochToTime(remote.CanceledAt),
		TrialStart:             epochToTime(remote.TrialStart),
		TrialEnd:               epochToTime(remote.TrialEnd),
	}
	if len(remote.Items.Data) > 0 {
		price := remote.Items.Data[0].Price
		sub.AmountCents = price.UnitAmount
		if price.Recurring != nil && price.Recurring.Interval != "" {
			sub.BillingInterval = price.Recurring.Interval
		}
	}
	if raw, err := json.Marshal(remote); err == nil {
		sub.RawPayloadJSON = string(raw)
	}

	sub.StudentID = e.resolveStudent(invitationToken)

	if err := e.repo.UpsertSubscription(sub); err != nil {
		// The provider-side state is already final; the next sync self-heals
		// the ledger, so the id must be in the log.
		log.Printf("ERROR: ledger write for provider subscription %s failed: %v", remote.ID, err)
		return nil, err
	}

	e.reconcileSideEffects(sub, remote)
	return sub, nil
}

// resolveCoach attributes a provider subscription to a coach: session
// metadata first, then an existing ledger row, then the invitation, then the
// platform customer.
func (e *SyncEngine) resolveCoach(remote *ProviderSubscription, invitationToken string) (uint, error) {
	if raw := remote.Metadata[MetadataCoachID]; raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil && id > 0 {
			return uint(id), nil
		}
	}
	if existing, err := e.repo.GetSubscriptionByProviderID(remote.ID); err == nil {
		return existing.CoachID, nil
	}
	if invitationToken != "" {
		if inv, err := e.repo.GetInvitationByToken(invitationToken); err == nil {
			return inv.CoachID, nil
		}
	}
	if remote.Customer != "" {
		if account, err := e.repo.GetCoachAccountByCustomerID(remote.Customer); err == nil {
			return account.UserID, nil
		}
	}
	return 0, fmt.Errorf("cannot attribute provider subscription %s to a coach", remote.ID)
}

// resolveStudent links the subscription to a student account when one exists
// for the invitation's email; nil until the student signs up.
func (e *SyncEngine) resolveStudent(invitationToken string) *uint {
	if invitationToken == "" {
		return nil
	}
	inv, err := e.repo.GetInvitationByToken(invitationToken)
	if err != nil {
		return nil
	}
	user, err := e.repo.GetUserByEmail(inv.StudentEmail)
	if err != nil || user.Role != models.ROLE_STUDENT {
		return nil
	}
	id := user.ID
	return &id
}

// reconcileSideEffects performs the secondary writes that follow a sync.
// They are best-effort: a failure is logged, never propagated, because the
// subscription mirror is the operation of record.
func (e *SyncEngine) reconcileSideEffects(sub *models.Subscription, remote *ProviderSubscription) {
	now := time.Now()

	if sub.InvitationToken != "" {
		switch sub.Status {
		case models.SubscriptionStatusTrialing, models.SubscriptionStatusActive:
			if err := e.repo.CompleteInvitation(sub.InvitationToken, now); err != nil {
				log.Printf("completing invitation %s after sync of %s failed: %v",
					sub.InvitationToken, sub.ProviderSubscriptionID, err)
			}
		}
		if sub.StudentID != nil {
			status := models.CoachStudentActive
			if sub.IsCanceled() {
				status = models.CoachStudentInactive
			}
			if err := e.repo.UpsertCoachStudent(sub.CoachID, *sub.StudentID, status); err != nil {
				log.Printf("linking student %d to coach %d failed: %v", *sub.StudentID, sub.CoachID, err)
			}
		}
		return
	}

	// Seat subscription: mirror status onto the coach account so the coach
	// gate reads local state.
	if remote.Metadata[MetadataSeat] == "true" || remote.Customer != "" {
		account, err := e.repo.GetCoachAccountByUserID(sub.CoachID)
		if err != nil {
			return
		}
		if account.ProviderCustomerID != remote.Customer && remote.Metadata[MetadataSeat] != "true" {
			return
		}
		account.PlatformSubscriptionID = sub.ProviderSubscriptionID
		account.PlatformSubscriptionStatus = sub.Status
		if err := e.repo.SaveCoachAccount(account); err != nil {
			log.Printf("mirroring seat status for coach %d failed: %v", sub.CoachID, err)
		}
	}
}

// mapProviderStatus clamps provider statuses onto the local enum. Unknown or
// pre-activation provider states map to past_due so the grace window, not a
// new enum value, decides access.
func mapProviderStatus(status string) string {
	switch status {
	case models.SubscriptionStatusTrialing,
		models.SubscriptionStatusActive,
		models.SubscriptionStatusPastDue,
		models.SubscriptionStatusUnpaid,
		models.SubscriptionStatusCanceled:
		return status
	case "incomplete_expired":
		return models.SubscriptionStatusCanceled
	case "paused":
		return models.SubscriptionStatusUnpaid
	default:
		return models.SubscriptionStatusPastDue
	}
}
