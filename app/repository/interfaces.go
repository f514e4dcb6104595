package repository

import (
	"coachfit/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByActivationToken(token string) (*models.User, error)
	Update(user *models.User) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
}

// CoachAccountRepository defines the interface for coach payment profiles
type CoachAccountRepository interface {
	Create(account *models.CoachAccount) error
	GetByUserID(userID uint) (*models.CoachAccount, error)
	Update(account *models.CoachAccount) error
}

// CoachStudentRepository defines the interface for coach-student links
type CoachStudentRepository interface {
	ListByCoach(coachID uint) ([]models.CoachStudent, error)
	ListByStudent(studentID uint) ([]models.CoachStudent, error)
	GetPair(coachID, studentID uint) (*models.CoachStudent, error)
}

// SubscriptionRepository defines the read interface for subscription rows
type SubscriptionRepository interface {
	ListByCoach(coachID uint) ([]models.Subscription, error)
	ListByStudent(studentID uint) ([]models.Subscription, error)
}
