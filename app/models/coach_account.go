package models

import "time"

// Payment provider constants used across payment-related models.
const (
	PaymentProviderStripe = "stripe"
)

// CoachAccount stores a coach's payment profile: the sub-merchant account
// through which the coach bills students, and the coach's own platform seat
// subscription. One row per coach, created at signup, never deleted.
type CoachAccount struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"not null;uniqueIndex" json:"user_id"`

	// Sub-merchant (connected account) state. Capability flags are a cache of
	// provider truth and are overwritten wholesale on every capability sync.
	SubMerchantAccountID string `gorm:"type:varchar(191);default:'';index" json:"sub_merchant_account_id"`
	ChargesEnabled       bool   `gorm:"default:false" json:"charges_enabled"`
	PayoutsEnabled       bool   `gorm:"default:false" json:"payouts_enabled"`
	DetailsSubmitted     bool   `gorm:"default:false" json:"details_submitted"`

	// Platform seat: the coach's own subscription with us.
	ProviderCustomerID         string `gorm:"type:varchar(191);default:'';index" json:"provider_customer_id"`
	PlatformSubscriptionID     string `gorm:"type:varchar(191);default:''" json:"platform_subscription_id"`
	PlatformSubscriptionStatus string `gorm:"type:varchar(32);default:''" json:"platform_subscription_status"`

	Active    bool      `gorm:"default:true" json:"active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// CanCharge reports whether the coach's sub-merchant account may currently
// accept student payments.
func (ca *CoachAccount) CanCharge() bool {
	return ca.SubMerchantAccountID != "" && ca.ChargesEnabled
}

// HasActiveSeat reports whether the coach's platform seat subscription grants
// access (trialing counts).
func (ca *CoachAccount) HasActiveSeat() bool {
	switch ca.PlatformSubscriptionStatus {
	case SubscriptionStatusActive, SubscriptionStatusTrialing:
		return true
	default:
		return false
	}
}
