package payments

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"coachfit/app/models"
)

// Repository provides DB operations used by the payment components.
type Repository interface {
	GetUserByID(id uint) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)

	GetCoachAccountByUserID(coachID uint) (*models.CoachAccount, error)
	GetCoachAccountByCustomerID(customerID string) (*models.CoachAccount, error)
	SaveCoachAccount(account *models.CoachAccount) error
	ListCoachAccountsForResync() ([]models.CoachAccount, error)

	CreatePendingInvitation(inv *models.PaymentInvitation) (bool, *models.PaymentInvitation, error)
	GetInvitationByToken(token string) (*models.PaymentInvitation, error)
	ExpireInvitationIfDue(token string, now time.Time) (bool, error)
	CompleteInvitation(token string, at time.Time) error
	CancelInvitation(coachID uint, token string) (bool, error)
	ListInvitationsByCoach(coachID uint) ([]models.PaymentInvitation, error)

	UpsertSubscription(sub *models.Subscription) error
	GetSubscriptionByID(id uint) (*models.Subscription, error)
	GetSubscriptionByProviderID(providerSubscriptionID string) (*models.Subscription, error)
	LatestSubscriptionForStudent(studentID uint) (*models.Subscription, error)

	UpsertCoachStudent(coachID, studentID uint, status string) error
	SetCoachStudentStatus(coachID, studentID uint, status string) error

	CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a payments repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) GetCoachAccountByUserID(coachID uint) (*models.CoachAccount, error) {
	var account models.CoachAccount
	if err := r.db.Where("user_id = ?", coachID).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *gormRepository) GetCoachAccountByCustomerID(customerID string) (*models.CoachAccount, error) {
	var account models.CoachAccount
	if err := r.db.Where("provider_customer_id = ?", customerID).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *gormRepository) SaveCoachAccount(account *models.CoachAccount) error {
	return r.db.Save(account).Error
}

// ListCoachAccountsForResync returns coach accounts with any provider-side
// identity worth re-syncing (a customer or a sub-merchant account).
func (r *gormRepository) ListCoachAccountsForResync() ([]models.CoachAccount, error) {
	var accounts []models.CoachAccount
	err := r.db.
		Where("provider_customer_id <> '' OR sub_merchant_account_id <> ''").
		Find(&accounts).Error
	return accounts, err
}

// CreatePendingInvitation inserts a pending invitation unless one already
// exists for the same (coach, student email). The unique index on
// pending_key arbitrates concurrent creations; the loser gets the stored
// winner back with created=false.
func (r *gormRepository) CreatePendingInvitation(inv *models.PaymentInvitation) (bool, *models.PaymentInvitation, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "pending_key"}},
		DoNothing: true,
	}).Create(inv)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.PaymentInvitation
	if err := r.db.Where("pending_key = ?", inv.PendingKey).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) GetInvitationByToken(token string) (*models.PaymentInvitation, error) {
	var inv models.PaymentInvitation
	if err := r.db.Where("token = ?", token).First(&inv).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

// ExpireInvitationIfDue flips a pending invitation past its expiry window to
// expired. The conditional UPDATE is a single atomic statement, so exactly
// one of any concurrent readers observes the transition.
func (r *gormRepository) ExpireInvitationIfDue(token string, now time.Time) (bool, error) {
	tx := r.db.Model(&models.PaymentInvitation{}).
		Where("token = ? AND status = ? AND expires_at <= ?", token, models.InvitationStatusPending, now).
		Updates(map[string]interface{}{
			"status":      models.InvitationStatusExpired,
			"pending_key": nil,
		})
	return tx.RowsAffected > 0, tx.Error
}

func (r *gormRepository) CompleteInvitation(token string, at time.Time) error {
	return r.db.Model(&models.PaymentInvitation{}).
		Where("token = ? AND status = ?", token, models.InvitationStatusPending).
		Updates(map[string]interface{}{
			"status":       models.InvitationStatusCompleted,
			"pending_key":  nil,
			"completed_at": &at,
		}).Error
}

func (r *gormRepository) CancelInvitation(coachID uint, token string) (bool, error) {
	tx := r.db.Model(&models.PaymentInvitation{}).
		Where("token = ? AND coach_id = ? AND status = ?", token, coachID, models.InvitationStatusPending).
		Updates(map[string]interface{}{
			"status":      models.InvitationStatusCanceled,
			"pending_key": nil,
		})
	return tx.RowsAffected > 0, tx.Error
}

func (r *gormRepository) ListInvitationsByCoach(coachID uint) ([]models.PaymentInvitation, error) {
	var invs []models.PaymentInvitation
	err := r.db.Where("coach_id = ?", coachID).Order("created_at DESC").Find(&invs).Error
	return invs, err
}

// UpsertSubscription writes provider subscription state keyed on the unique
// provider_subscription_id. All mutable fields are overwritten; last writer
// wins, which is safe because every writer fetched from the provider.
func (r *gormRepository) UpsertSubscription(sub *models.Subscription) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider_subscription_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"provider_customer_id",
			"coach_id",
			"student_id",
			"invitation_token",
			"amount_cents",
			"billing_interval",
			"status",
			"current_period_start",
			"current_period_end",
			"cancel_at_period_end",
			"canceled_at",
			"trial_start",
			"trial_end",
			"raw_payload_json",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("provider_subscription_id = ?", sub.ProviderSubscriptionID).
		First(sub).Error
}

func (r *gormRepository) GetSubscriptionByID(id uint) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.First(&sub, id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) GetSubscriptionByProviderID(providerSubscriptionID string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.Where("provider_subscription_id = ?", providerSubscriptionID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) LatestSubscriptionForStudent(studentID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("student_id = ?", studentID).Order("updated_at DESC").First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) UpsertCoachStudent(coachID, studentID uint, status string) error {
	rel := &models.CoachStudent{CoachID: coachID, StudentID: studentID, Status: status}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "coach_id"},
			{Name: "student_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
	}).Create(rel).Error
}

func (r *gormRepository) SetCoachStudentStatus(coachID, studentID uint, status string) error {
	return r.db.Model(&models.CoachStudent{}).
		Where("coach_id = ? AND student_id = ?", coachID, studentID).
		Update("status", status).Error
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
