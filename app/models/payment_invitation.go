package models

import (
	"fmt"
	"time"
)

const (
	InvitationStatusPending   = "pending"
	InvitationStatusCompleted = "completed"
	InvitationStatusExpired   = "expired"
	InvitationStatusCanceled  = "canceled"
)

const (
	BillingIntervalDay   = "day"
	BillingIntervalWeek  = "week"
	BillingIntervalMonth = "month"
	BillingIntervalYear  = "year"
)

// PaymentInvitation is a time-boxed, single-use payment offer for a named
// student who may not have an account yet. The token is the only lookup key
// exposed publicly.
//
// PendingKey is "<coachID>:<email>" while status is pending and NULL
// otherwise. MySQL exempts NULLs from unique indexes, so the unique index on
// it enforces at most one pending invitation per (coach, student email) even
// under concurrent creation.
type PaymentInvitation struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Token           string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"token"`
	CoachID         uint       `gorm:"not null;index" json:"coach_id"`
	StudentName     string     `gorm:"type:varchar(150);not null" json:"student_name" validate:"required,min=2,max=150"`
	StudentEmail    string     `gorm:"type:varchar(200);not null;index" json:"student_email" validate:"required,email"`
	AmountCents     int64      `gorm:"not null" json:"amount_cents" validate:"gt=0"`
	BillingInterval string     `gorm:"type:varchar(10);not null;default:'month'" json:"billing_interval" validate:"oneof=day week month year"`
	DueDay          *int       `gorm:"default:null" json:"due_day,omitempty"`
	TrialDays       int        `gorm:"not null;default:0" json:"trial_days" validate:"gte=0"`
	Status          string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	PendingKey      *string    `gorm:"type:varchar(220);uniqueIndex" json:"-"`
	ExpiresAt       time.Time  `gorm:"not null" json:"expires_at"`
	CompletedAt     *time.Time `gorm:"type:timestamp;default:null" json:"completed_at,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// InvitationPendingKey builds the uniqueness key for a pending invitation.
func InvitationPendingKey(coachID uint, studentEmail string) string {
	return fmt.Sprintf("%d:%s", coachID, studentEmail)
}

// IsExpired reports whether the invitation's expiry window has passed.
// It does not consult Status; expiry is enforced lazily at read time.
func (pi *PaymentInvitation) IsExpired(now time.Time) bool {
	return now.After(pi.ExpiresAt)
}
