package controllers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"coachfit/internal/pkg/database"
	"coachfit/internal/pkg/payments"
)

// HandleStripeWebhook receives provider events. The payload is persisted
// idempotently before processing; only deliveries that already finished
// cleanly are acknowledged without work, so a failed sync stays retryable
// through provider redelivery. Unverified payloads are recorded but
// rejected before any sync runs.
func HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("Stripe-Signature"))

	svc := payments.NewFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	outcome, err := svc.Webhooks.Process(ctx, rawBody, signature, time.Now())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_processing_failed"})
	}

	switch outcome {
	case payments.WebhookDuplicate:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	case payments.WebhookInvalidSignature:
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	case payments.WebhookMalformed:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	case payments.WebhookIgnored:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	default:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	}
}
