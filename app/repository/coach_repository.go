package repository

import (
	"coachfit/app/models"

	"gorm.io/gorm"
)

// coachAccountRepository implements the CoachAccountRepository interface
type coachAccountRepository struct {
	db *gorm.DB
}

// NewCoachAccountRepository creates a new coach account repository instance
func NewCoachAccountRepository(db *gorm.DB) CoachAccountRepository {
	return &coachAccountRepository{db: db}
}

// Create creates a coach payment profile
func (r *coachAccountRepository) Create(account *models.CoachAccount) error {
	return r.db.Create(account).Error
}

// GetByUserID retrieves a coach account by the owning user id
func (r *coachAccountRepository) GetByUserID(userID uint) (*models.CoachAccount, error) {
	var account models.CoachAccount
	err := r.db.Where("user_id = ?", userID).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// Update saves changes to a coach account
func (r *coachAccountRepository) Update(account *models.CoachAccount) error {
	return r.db.Save(account).Error
}

// coachStudentRepository implements the CoachStudentRepository interface
type coachStudentRepository struct {
	db *gorm.DB
}

// NewCoachStudentRepository creates a new coach-student repository instance
func NewCoachStudentRepository(db *gorm.DB) CoachStudentRepository {
	return &coachStudentRepository{db: db}
}

// ListByCoach returns all links for a coach
func (r *coachStudentRepository) ListByCoach(coachID uint) ([]models.CoachStudent, error) {
	var links []models.CoachStudent
	err := r.db.Where("coach_id = ?", coachID).Find(&links).Error
	return links, err
}

// ListByStudent returns all links for a student
func (r *coachStudentRepository) ListByStudent(studentID uint) ([]models.CoachStudent, error) {
	var links []models.CoachStudent
	err := r.db.Where("student_id = ?", studentID).Find(&links).Error
	return links, err
}

// GetPair returns the link between a coach and a student
func (r *coachStudentRepository) GetPair(coachID, studentID uint) (*models.CoachStudent, error) {
	var link models.CoachStudent
	err := r.db.Where("coach_id = ? AND student_id = ?", coachID, studentID).First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}
