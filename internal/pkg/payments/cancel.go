package payments

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"coachfit/app/models"
)

// CancellationResult reports what the provider actually did.
type CancellationResult struct {
	Subscription *models.Subscription
	Immediate    bool
	EffectiveAt  *time.Time
}

// CancellationService cancels a subscription on the provider and mirrors the
// provider's answer into the ledger.
type CancellationService struct {
	repo Repository
	gw   Gateway
	sync *SyncEngine
}

func NewCancellationService(repo Repository, gw Gateway, sync *SyncEngine) *CancellationService {
	return &CancellationService{repo: repo, gw: gw, sync: sync}
}

// Cancel cancels the subscription now or at period end. The requesting coach
// must own the subscription; the client-supplied id is never trusted for
// authorization. The local row is written from the provider's response, not
// assumed: immediate cancellation lands status=canceled with canceled_at
// set, deferred cancellation only flips cancel_at_period_end and leaves the
// status to a future sync.
func (s *CancellationService) Cancel(ctx context.Context, coachID, subscriptionID uint, immediate bool, reason string) (*CancellationResult, error) {
	sub, err := s.repo.GetSubscriptionByID(subscriptionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: subscription %d", ErrNotFound, subscriptionID)
		}
		return nil, err
	}
	if sub.CoachID != coachID {
		return nil, &ConflictError{
			CoachID:  coachID,
			OwnerID:  sub.CoachID,
			Resource: fmt.Sprintf("subscription %d", subscriptionID),
		}
	}
	if sub.IsCanceled() {
		return nil, ErrAlreadyCanceled
	}

	subAccount, err := s.providerScope(sub)
	if err != nil {
		return nil, err
	}

	var remote *ProviderSubscription
	if immediate {
		remote, err = s.gw.CancelSubscription(ctx, subAccount, sub.ProviderSubscriptionID)
	} else {
		remote, err = s.gw.SetCancelAtPeriodEnd(ctx, subAccount, sub.ProviderSubscriptionID, true)
	}
	if err != nil {
		return nil, err
	}
	if reason != "" {
		log.Printf("subscription %s canceled by coach %d (immediate=%t): %s",
			sub.ProviderSubscriptionID, coachID, immediate, reason)
	}

	updated, err := s.sync.apply(ctx, remote)
	if err != nil {
		// Provider already canceled; the next SyncOne heals the ledger.
		log.Printf("ERROR: ledger write after cancellation of %s failed, resync required: %v",
			sub.ProviderSubscriptionID, err)
		return nil, err
	}

	if immediate && updated.StudentID != nil {
		// Secondary cascade; never fails the cancellation of record.
		if err := s.repo.SetCoachStudentStatus(updated.CoachID, *updated.StudentID, models.CoachStudentInactive); err != nil {
			log.Printf("deactivating coach-student link (%d,%d) failed: %v", updated.CoachID, *updated.StudentID, err)
		}
	}

	result := &CancellationResult{Subscription: updated, Immediate: immediate}
	if immediate {
		result.EffectiveAt = updated.CanceledAt
	} else {
		result.EffectiveAt = updated.CurrentPeriodEnd
	}
	return result, nil
}

// providerScope resolves which provider account the subscription lives on: a
// coach's seat lives on the platform account, a student subscription on the
// coach's sub-merchant account.
func (s *CancellationService) providerScope(sub *models.Subscription) (string, error) {
	account, err := s.repo.GetCoachAccountByUserID(sub.CoachID)
	if err != nil {
		return "", err
	}
	if sub.ProviderSubscriptionID == account.PlatformSubscriptionID ||
		(sub.InvitationToken == "" && sub.ProviderCustomerID == account.ProviderCustomerID) {
		return "", nil
	}
	return account.SubMerchantAccountID, nil
}
