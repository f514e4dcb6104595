package payments

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"coachfit/app/models"
)

// AccessGate answers the per-request billing predicates. It only reads; the
// sole side effect on any read path is the documented lazy invitation
// expiry, which lives in InvitationService.
type AccessGate struct {
	repo Repository
}

func NewAccessGate(repo Repository) *AccessGate {
	return &AccessGate{repo: repo}
}

// CoachHasActiveSeat reports whether the coach's platform seat subscription
// is active or trialing. A coach without a coach account has no seat.
func (g *AccessGate) CoachHasActiveSeat(coachID uint) (bool, error) {
	account, err := g.repo.GetCoachAccountByUserID(coachID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return account.HasActiveSeat(), nil
}

// StudentAccess derives the student's access state from their most recent
// subscription row. No row at all means blocked: no access without billing.
func (g *AccessGate) StudentAccess(studentID uint, now time.Time) (models.StudentAccessState, error) {
	sub, err := g.repo.LatestSubscriptionForStudent(studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.AccessStateForSubscription(nil, now), nil
		}
		return models.StudentAccessState{}, err
	}
	return models.AccessStateForSubscription(sub, now), nil
}
