package repository

import (
	"coachfit/app/models"

	"gorm.io/gorm"
)

// subscriptionRepository implements the SubscriptionRepository interface
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

// ListByCoach returns a coach's subscription mirror rows, newest first
func (r *subscriptionRepository) ListByCoach(coachID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("coach_id = ?", coachID).Order("updated_at DESC").Find(&subs).Error
	return subs, err
}

// ListByStudent returns a student's subscription mirror rows, newest first
func (r *subscriptionRepository) ListByStudent(studentID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("student_id = ?", studentID).Order("updated_at DESC").Find(&subs).Error
	return subs, err
}
