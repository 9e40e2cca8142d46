package models

import "time"

// MarkingTutor marks a host user as an eligible tutor. Tutors are distinct
// from platform administrators; at most one row exists per user.
type MarkingTutor struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	User      User      `gorm:"constraint:OnDelete:CASCADE" json:"user"`
}

// TutorAssignment links a student to the tutor responsible for marking their
// work. A (student, tutor) pair appears at most once.
type TutorAssignment struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"not null;uniqueIndex:uq_marking_assignments_user_tutor" json:"user_id"`
	TutorID    uint       `gorm:"not null;uniqueIndex:uq_marking_assignments_user_tutor" json:"tutor_id"`
	AssignedAt *time.Time `json:"assigned_at"`
	User       User       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user"`
	Tutor      User       `gorm:"foreignKey:TutorID;constraint:OnDelete:CASCADE" json:"tutor"`
}
