package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// DefaultSignatureTolerance bounds how old a signed webhook timestamp may be.
const DefaultSignatureTolerance = 5 * time.Minute

// VerifyStripeWebhookSignature checks a Stripe-Signature header against the
// shared webhook secret. The header carries `t=<unix>,v1=<hex>` pairs; the
// signed payload is "<t>.<body>" and the scheme is HMAC-SHA256. Any valid v1
// signature within the tolerance window passes.
func VerifyStripeWebhookSignature(payload []byte, signatureHeader, webhookSecret string, now time.Time) bool {
	header := strings.TrimSpace(signatureHeader)
	secret := strings.TrimSpace(webhookSecret)
	if header == "" || secret == "" {
		return false
	}

	var timestamp int64
	var candidates [][]byte
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return false
			}
			timestamp = ts
		case "v1":
			sig, err := hex.DecodeString(strings.ToLower(kv[1]))
			if err == nil {
				candidates = append(candidates, sig)
			}
		}
	}
	if timestamp == 0 || len(candidates) == 0 {
		return false
	}

	age := now.Sub(time.Unix(timestamp, 0))
	if age > DefaultSignatureTolerance || age < -DefaultSignatureTolerance {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, sig := range candidates {
		if hmac.Equal(expected, sig) {
			return true
		}
	}
	return false
}
