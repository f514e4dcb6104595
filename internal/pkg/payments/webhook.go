package payments

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"coachfit/app/models"
)

// WebhookOutcome classifies a webhook delivery after it has been recorded,
// so the HTTP layer can answer with the status code that steers provider
// redelivery.
type WebhookOutcome int

const (
	WebhookProcessed WebhookOutcome = iota
	WebhookDuplicate
	WebhookIgnored
	WebhookInvalidSignature
	WebhookMalformed
)

// WebhookService persists every delivery before touching it and feeds the
// subscription-relevant ones into the sync engine.
type WebhookService struct {
	repo   Repository
	engine *SyncEngine
	secret string
}

func NewWebhookService(repo Repository, engine *SyncEngine, secret string) *WebhookService {
	return &WebhookService{repo: repo, engine: engine, secret: secret}
}

// webhookDedupID returns the dedup key for a delivery. Payloads without a
// parseable event id get a content hash so distinct broken payloads never
// collapse onto one row.
func webhookDedupID(eventID string, payload []byte) string {
	if eventID != "" {
		return eventID
	}
	sum := sha256.Sum256(payload)
	return "hash:" + hex.EncodeToString(sum[:])
}

// Process handles one webhook delivery end to end. A non-nil error means
// processing failed after the event was recorded; the caller answers 5xx so
// the provider redelivers. A redelivered event short-circuits as duplicate
// only when its stored row finished cleanly; a delivery that previously
// failed is processed again.
func (s *WebhookService) Process(ctx context.Context, payload []byte, signatureHeader string, now time.Time) (WebhookOutcome, error) {
	signatureValid := VerifyStripeWebhookSignature(payload, signatureHeader, s.secret, now)

	event, parseErr := ParseEvent(payload)
	eventID := ""
	eventType := ""
	if parseErr == nil {
		eventID = event.ID
		eventType = event.Type
	}

	created, stored, err := s.repo.CreateWebhookEventIfNotExists(&models.WebhookEvent{
		Provider:        models.PaymentProviderStripe,
		ProviderEventID: webhookDedupID(eventID, payload),
		EventType:       eventType,
		PayloadJSON:     string(payload),
		SignatureValid:  signatureValid,
	})
	if err != nil {
		return 0, err
	}
	if !created && stored.ProcessedAt != nil && stored.ProcessingError == "" {
		return WebhookDuplicate, nil
	}

	if !signatureValid {
		_ = s.repo.MarkWebhookProcessed(stored.ID, "invalid webhook signature")
		return WebhookInvalidSignature, nil
	}
	if parseErr != nil {
		_ = s.repo.MarkWebhookProcessed(stored.ID, parseErr.Error())
		return WebhookMalformed, nil
	}

	if !event.IsSubscriptionEvent() && !event.IsCheckoutCompleted() {
		_ = s.repo.MarkWebhookProcessed(stored.ID, "")
		return WebhookIgnored, nil
	}
	subscriptionID := event.SubscriptionID()
	if subscriptionID == "" {
		_ = s.repo.MarkWebhookProcessed(stored.ID, "")
		return WebhookIgnored, nil
	}

	if _, syncErr := s.engine.SyncOne(ctx, event.Account, subscriptionID); syncErr != nil {
		if errors.Is(syncErr, ErrNotFound) {
			// The subscription vanished provider-side; nothing to retry.
			_ = s.repo.MarkWebhookProcessed(stored.ID, "")
			return WebhookIgnored, nil
		}
		_ = s.repo.MarkWebhookProcessed(stored.ID, syncErr.Error())
		return 0, syncErr
	}

	_ = s.repo.MarkWebhookProcessed(stored.ID, "")
	return WebhookProcessed, nil
}
