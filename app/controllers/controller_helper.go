package controllers

import (
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"coachfit/internal/pkg/payments"
)

// formatAmount renders minor units as a Brazilian currency string.
func formatAmount(cents int64) string {
	return fmt.Sprintf("R$ %d,%02d", cents/100, cents%100)
}

// paymentErrorMessage translates a payments error into a user-facing
// Portuguese message. Provider errors are never shown raw.
func paymentErrorMessage(err error) string {
	var precondition *payments.PreconditionError
	var validation *payments.ValidationError

	switch {
	case errors.Is(err, payments.ErrNotFound):
		return "Registro não encontrado"
	case errors.Is(err, payments.ErrGone):
		return "Este link não é mais válido"
	case errors.Is(err, payments.ErrAlreadyCanceled):
		return "Esta assinatura já foi cancelada"
	case errors.Is(err, payments.ErrProviderUnavailable):
		return "O provedor de pagamentos está indisponível, tente novamente"
	case errors.As(err, &precondition):
		return "Pré-condição não atendida: " + precondition.Hint
	case errors.As(err, &validation):
		return "Dados inválidos: " + validation.Message
	default:
		return "Ocorreu um erro ao processar o pagamento"
	}
}

// redirectWithPaymentError logs the error and sends the user back with a flash.
func redirectWithPaymentError(c *fiber.Ctx, err error, target string) error {
	log.Printf("%s %s: %v", c.Method(), c.Path(), err)
	return flash.WithError(c, fiber.Map{
		"type":    "error",
		"message": paymentErrorMessage(err),
	}).Redirect(target)
}

func logPaymentSyncFailure(sessionID string, err error) {
	log.Printf("sync from checkout session %s failed: %v", sessionID, err)
}
