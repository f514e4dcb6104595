package payments

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"coachfit/app/models"
)

// CreateInvitationInput is the coach-supplied payload for a new payment
// invitation.
type CreateInvitationInput struct {
	StudentName     string `validate:"required,min=2,max=150"`
	StudentEmail    string `validate:"required,email,max=200"`
	AmountCents     int64  `validate:"gt=0"`
	BillingInterval string `validate:"oneof=day week month year"`
	DueDay          *int
	TrialDays       int `validate:"gte=0,lte=90"`
}

// InvitationService issues and resolves time-boxed, single-use payment
// invitations for prospective students.
type InvitationService struct {
	repo Repository
	cfg  Config

	// SendPaymentLink delivers the public link; replaced in tests.
	SendPaymentLink func(to, studentName, coachName, link string) error
}

func NewInvitationService(repo Repository, cfg Config) *InvitationService {
	return &InvitationService{repo: repo, cfg: cfg}
}

// Create issues a pending invitation for (coach, student email). If a
// pending one already exists it is returned unchanged; the duplicate-create
// race is settled by the database, not the application.
func (s *InvitationService) Create(ctx context.Context, coachID uint, in CreateInvitationInput) (*models.PaymentInvitation, error) {
	in.StudentEmail = strings.ToLower(strings.TrimSpace(in.StudentEmail))
	in.StudentName = strings.TrimSpace(in.StudentName)
	if in.BillingInterval == "" {
		in.BillingInterval = models.BillingIntervalMonth
	}

	if err := validator.New().Struct(in); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	if in.AmountCents < s.cfg.MinInvoiceAmountCents {
		return nil, &ValidationError{
			Field:   "amount_cents",
			Message: fmt.Sprintf("below the configured minimum of %d", s.cfg.MinInvoiceAmountCents),
		}
	}
	if in.DueDay != nil && (*in.DueDay < 1 || *in.DueDay > 28) {
		return nil, &ValidationError{Field: "due_day", Message: "must be between 1 and 28"}
	}

	account, err := s.repo.GetCoachAccountByUserID(coachID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: coach account %d", ErrNotFound, coachID)
		}
		return nil, err
	}
	if !account.CanCharge() {
		return nil, &PreconditionError{
			Reason: "sub-merchant account cannot accept charges",
			Hint:   "finish payment onboarding before inviting students",
		}
	}

	pendingKey := models.InvitationPendingKey(coachID, in.StudentEmail)
	inv := &models.PaymentInvitation{
		Token:           uuid.NewString(),
		CoachID:         coachID,
		StudentName:     in.StudentName,
		StudentEmail:    in.StudentEmail,
		AmountCents:     in.AmountCents,
		BillingInterval: in.BillingInterval,
		DueDay:          in.DueDay,
		TrialDays:       in.TrialDays,
		Status:          models.InvitationStatusPending,
		PendingKey:      &pendingKey,
		ExpiresAt:       time.Now().Add(s.cfg.InviteExpiry),
	}

	created, stored, err := s.repo.CreatePendingInvitation(inv)
	if err != nil {
		return nil, err
	}
	if !created {
		return stored, nil
	}

	if s.SendPaymentLink != nil {
		coach, err := s.repo.GetUserByID(coachID)
		coachName := ""
		if err == nil {
			coachName = coach.Name
		}
		link := s.cfg.PublicBaseURL + "/pagamento/" + stored.Token
		if err := s.SendPaymentLink(stored.StudentEmail, stored.StudentName, coachName, link); err != nil {
			log.Printf("payment link email for invitation %s failed: %v", stored.Token, err)
		}
	}
	return stored, nil
}

// Resolve looks up an invitation by its public token. A pending invitation
// past its expiry window is flipped to expired on this read (no background
// sweep) and reported as gone, exactly as an already-used or canceled one.
func (s *InvitationService) Resolve(ctx context.Context, token string) (*models.PaymentInvitation, error) {
	inv, err := s.repo.GetInvitationByToken(strings.TrimSpace(token))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: invitation", ErrNotFound)
		}
		return nil, err
	}

	if inv.Status != models.InvitationStatusPending {
		return nil, fmt.Errorf("%w: invitation is %s", ErrGone, inv.Status)
	}

	now := time.Now()
	if inv.IsExpired(now) {
		// Whoever loses the race still observes the invitation as gone.
		if _, err := s.repo.ExpireInvitationIfDue(inv.Token, now); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: invitation expired", ErrGone)
	}
	return inv, nil
}

// Cancel voids a pending invitation by explicit coach action.
func (s *InvitationService) Cancel(ctx context.Context, coachID uint, token string) error {
	inv, err := s.repo.GetInvitationByToken(strings.TrimSpace(token))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: invitation", ErrNotFound)
		}
		return err
	}
	if inv.CoachID != coachID {
		return &ConflictError{CoachID: coachID, OwnerID: inv.CoachID, Resource: "invitation " + inv.Token}
	}

	canceled, err := s.repo.CancelInvitation(coachID, inv.Token)
	if err != nil {
		return err
	}
	if !canceled {
		return fmt.Errorf("%w: invitation is not pending", ErrGone)
	}
	return nil
}

// ListByCoach returns the coach's invitations, newest first.
func (s *InvitationService) ListByCoach(ctx context.Context, coachID uint) ([]models.PaymentInvitation, error) {
	return s.repo.ListInvitationsByCoach(coachID)
}
