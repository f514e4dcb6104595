package models

import "time"

const (
	SubscriptionStatusTrialing = "trialing"
	SubscriptionStatusActive   = "active"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusUnpaid   = "unpaid"
	SubscriptionStatusCanceled = "canceled"
)

// StudentAccessGraceWindow is how long a past_due/unpaid subscription keeps
// granting access before the student is blocked.
const StudentAccessGraceWindow = 24 * time.Hour

// Subscription is the local mirror of one provider subscription. Provider
// state always wins: every field below is overwritten on sync, keyed on
// ProviderSubscriptionID. Rows are never deleted; canceled subscriptions
// remain as history.
type Subscription struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	ProviderSubscriptionID string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"provider_subscription_id"`
	ProviderCustomerID     string     `gorm:"type:varchar(191);default:'';index" json:"provider_customer_id"`
	CoachID                uint       `gorm:"not null;index" json:"coach_id"`
	StudentID              *uint      `gorm:"default:null;index" json:"student_id,omitempty"`
	InvitationToken        string     `gorm:"type:varchar(64);default:'';index" json:"invitation_token"`
	AmountCents            int64      `gorm:"not null;default:0" json:"amount_cents"`
	BillingInterval        string     `gorm:"type:varchar(10);not null;default:'month'" json:"billing_interval"`
	Status                 string     `gorm:"type:varchar(32);not null;index" json:"status"`
	CurrentPeriodStart     *time.Time `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd       *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd      bool       `gorm:"default:false" json:"cancel_at_period_end"`
	CanceledAt             *time.Time `gorm:"type:timestamp;default:null" json:"canceled_at,omitempty"`
	TrialStart             *time.Time `gorm:"type:timestamp;default:null" json:"trial_start,omitempty"`
	TrialEnd               *time.Time `gorm:"type:timestamp;default:null" json:"trial_end,omitempty"`
	RawPayloadJSON         string     `gorm:"type:longtext" json:"raw_payload_json"`
	CreatedAt              time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsCanceled reports whether the subscription reached its terminal state.
func (s *Subscription) IsCanceled() bool {
	return s.Status == SubscriptionStatusCanceled
}

// DueDay derives the billing due day from the current period end. It is not
// tracked independently; the provider's period boundary is the truth.
func (s *Subscription) DueDay() int {
	if s.CurrentPeriodEnd == nil {
		return 0
	}
	return s.CurrentPeriodEnd.Day()
}

// StudentAccessState is derived at read time from the most recent
// subscription row; it is intentionally never persisted so a missed write
// cannot leave a stale block flag.
type StudentAccessState struct {
	Blocked bool
	Reason  string
}

// AccessStateForSubscription computes the student access state. A student
// with no subscription row at all is blocked (no access without billing).
func AccessStateForSubscription(sub *Subscription, now time.Time) StudentAccessState {
	if sub == nil {
		return StudentAccessState{Blocked: true, Reason: "no_subscription"}
	}
	switch sub.Status {
	case SubscriptionStatusPastDue, SubscriptionStatusUnpaid:
		if now.Sub(sub.UpdatedAt) >= StudentAccessGraceWindow {
			return StudentAccessState{Blocked: true, Reason: sub.Status}
		}
	}
	return StudentAccessState{}
}
