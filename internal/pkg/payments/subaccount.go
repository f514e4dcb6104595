package payments

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"coachfit/app/models"
)

// SubAccountManager creates and tracks per-coach sub-merchant accounts.
type SubAccountManager struct {
	repo Repository
	gw   Gateway
	cfg  Config
}

func NewSubAccountManager(repo Repository, gw Gateway, cfg Config) *SubAccountManager {
	return &SubAccountManager{repo: repo, gw: gw, cfg: cfg}
}

// EnsureSubAccount returns the coach's sub-merchant account id, creating the
// provider account on first use. The id is persisted before it is returned
// so a provider account can never exist unknown to the ledger. If creation
// fails the coach simply has no id yet and the next call retries; there is
// no partial side effect to roll back.
func (m *SubAccountManager) EnsureSubAccount(ctx context.Context, coachID uint) (string, error) {
	account, err := m.repo.GetCoachAccountByUserID(coachID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: coach account %d", ErrNotFound, coachID)
		}
		return "", err
	}
	if account.SubMerchantAccountID != "" {
		return account.SubMerchantAccountID, nil
	}

	user, err := m.repo.GetUserByID(coachID)
	if err != nil {
		return "", err
	}

	created, err := m.gw.CreateAccount(ctx, CreateAccountParams{
		Country:      m.cfg.AccountCountry,
		Email:        user.Email,
		BusinessType: "individual",
	})
	if err != nil {
		return "", err
	}

	account.SubMerchantAccountID = created.ID
	account.ChargesEnabled = created.ChargesEnabled
	account.PayoutsEnabled = created.PayoutsEnabled
	account.DetailsSubmitted = created.DetailsSubmitted
	if err := m.repo.SaveCoachAccount(account); err != nil {
		return "", fmt.Errorf("persisting sub account %s for coach %d: %w", created.ID, coachID, err)
	}
	return created.ID, nil
}

// CreateOnboardingLink returns a single-use, short-lived provider onboarding
// URL for the coach's sub-merchant account, creating the account first when
// needed.
func (m *SubAccountManager) CreateOnboardingLink(ctx context.Context, coachID uint) (string, error) {
	accountID, err := m.EnsureSubAccount(ctx, coachID)
	if err != nil {
		return "", err
	}

	returnURL := m.cfg.PublicBaseURL + "/coach/billing/onboarding/retorno"
	refreshURL := m.cfg.PublicBaseURL + "/coach/billing/onboarding"
	link, err := m.gw.CreateAccountLink(ctx, accountID, refreshURL, returnURL)
	if err != nil {
		return "", err
	}
	return link.URL, nil
}

// SyncCapabilities fetches current capability flags from the provider and
// overwrites the ledger's cached flags. Provider-wins, never merged.
func (m *SubAccountManager) SyncCapabilities(ctx context.Context, coachID uint) (*models.CoachAccount, error) {
	account, err := m.repo.GetCoachAccountByUserID(coachID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: coach account %d", ErrNotFound, coachID)
		}
		return nil, err
	}
	if account.SubMerchantAccountID == "" {
		return nil, &PreconditionError{
			Reason: "no sub-merchant account",
			Hint:   "start payment onboarding first",
		}
	}

	remote, err := m.gw.GetAccount(ctx, account.SubMerchantAccountID)
	if err != nil {
		return nil, err
	}

	account.ChargesEnabled = remote.ChargesEnabled
	account.PayoutsEnabled = remote.PayoutsEnabled
	account.DetailsSubmitted = remote.DetailsSubmitted
	if err := m.repo.SaveCoachAccount(account); err != nil {
		return nil, err
	}
	return account, nil
}
