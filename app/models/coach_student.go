package models

import "time"

const (
	CoachStudentActive   = "active"
	CoachStudentInactive = "inactive"
)

// CoachStudent links a coach to one of their students. The status is flipped
// to inactive when the student's subscription is canceled immediately.
type CoachStudent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CoachID   uint      `gorm:"not null;index:ux_coach_students_pair,unique,priority:1" json:"coach_id"`
	StudentID uint      `gorm:"not null;index:ux_coach_students_pair,unique,priority:2" json:"student_id"`
	Status    string    `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
