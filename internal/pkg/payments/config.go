package payments

import (
	"strconv"
	"strings"
	"time"

	"coachfit/internal/pkg/env"
)

// Config carries everything the payment components need. It is built once
// from the environment and passed into each component explicitly; there is
// no ambient provider singleton.
type Config struct {
	SecretKey     string
	WebhookSecret string
	PublicBaseURL string

	// Platform seat billing for coaches.
	SeatPriceID   string
	SeatTrialDays int

	// Student billing through coach sub-merchant accounts.
	ApplicationFeePercent float64
	MinInvoiceAmountCents int64
	Currency              string
	AccountCountry        string

	InviteExpiry time.Duration
}

// NewConfigFromEnv reads the recognized environment options.
func NewConfigFromEnv() Config {
	feePercent, _ := strconv.ParseFloat(env.GetEnv("STRIPE_APPLICATION_FEE_PERCENT", "10"), 64)
	minAmount, _ := strconv.ParseInt(env.GetEnv("MIN_INVOICE_AMOUNT_CENTS", "500"), 10, 64)
	trialDays, _ := strconv.Atoi(env.GetEnv("SEAT_TRIAL_DAYS", "7"))
	expiryHours, _ := strconv.Atoi(env.GetEnv("INVITE_EXPIRY_HOURS", "72"))
	if expiryHours <= 0 {
		expiryHours = 72
	}

	return Config{
		SecretKey:             env.GetEnv("STRIPE_SECRET_KEY", ""),
		WebhookSecret:         env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		PublicBaseURL:         strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", "http://localhost:4000"), "/"),
		SeatPriceID:           env.GetEnv("STRIPE_SEAT_PRICE_ID", ""),
		SeatTrialDays:         trialDays,
		ApplicationFeePercent: feePercent,
		MinInvoiceAmountCents: minAmount,
		Currency:              env.GetEnv("PAYMENT_CURRENCY", "brl"),
		AccountCountry:        env.GetEnv("PAYMENT_ACCOUNT_COUNTRY", "BR"),
		InviteExpiry:          time.Duration(expiryHours) * time.Hour,
	}
}
