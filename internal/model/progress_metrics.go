package model

import "time"

// ProgressMetrics is the running accuracy for one user in one subject area.
// TotalAttempts counts section scoring events, not test attempts.
type ProgressMetrics struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	UserID        uint      `json:"user_id" gorm:"not null;uniqueIndex:idx_progress_user_subject"`
	User          User      `json:"-" gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	SubjectArea   string    `json:"subject_area" gorm:"size:255;not null;uniqueIndex:idx_progress_user_subject"`
	AccuracyRate  float64   `json:"accuracy_rate" gorm:"not null;default:0"`
	TotalAttempts int       `json:"total_attempts" gorm:"not null;default:0"`
	LastUpdated   time.Time `json:"last_updated"`
}

func (ProgressMetrics) TableName() string {
	return "progress_metrics"
}
