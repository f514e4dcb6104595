package payments

import (
	"gorm.io/gorm"

	"coachfit/internal/pkg/mail"
)

// Services bundles the payment components over one repository and one
// gateway client, wired explicitly from configuration.
type Services struct {
	Config       Config
	Repo         Repository
	Gateway      Gateway
	SubAccounts  *SubAccountManager
	Invitations  *InvitationService
	Checkout     *CheckoutOrchestrator
	Sync         *SyncEngine
	Cancellation *CancellationService
	Gate         *AccessGate
	Webhooks     *WebhookService
}

// New wires all components from an injected repository and gateway.
func New(repo Repository, gw Gateway, cfg Config) *Services {
	invitations := NewInvitationService(repo, cfg)
	invitations.SendPaymentLink = mail.SendPaymentLink
	syncEngine := NewSyncEngine(repo, gw)

	return &Services{
		Config:       cfg,
		Repo:         repo,
		Gateway:      gw,
		SubAccounts:  NewSubAccountManager(repo, gw, cfg),
		Invitations:  invitations,
		Checkout:     NewCheckoutOrchestrator(repo, gw, cfg, invitations),
		Sync:         syncEngine,
		Cancellation: NewCancellationService(repo, gw, syncEngine),
		Gate:         NewAccessGate(repo),
		Webhooks:     NewWebhookService(repo, syncEngine, cfg.WebhookSecret),
	}
}

// NewFromDB wires all components from a GORM handle and the environment.
func NewFromDB(db *gorm.DB) *Services {
	cfg := NewConfigFromEnv()
	return New(NewRepository(db), NewStripeClient(cfg), cfg)
}
