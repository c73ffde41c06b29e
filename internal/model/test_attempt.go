package model

import (
	"time"

	"gorm.io/datatypes"
)

// TestAttempt is the immutable record of one scored submission.
type TestAttempt struct {
	ID             uint                                  `gorm:"primarykey" json:"id"`
	UserID         uint                                  `json:"user_id" gorm:"not null;index"`
	User           User                                  `json:"-" gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	TestID         uint                                  `json:"test_id" gorm:"not null;index"`
	Test           Test                                  `json:"test,omitempty" gorm:"foreignKey:TestID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Score          float64                               `json:"score" gorm:"not null;default:0"`
	TotalQuestions int                                   `json:"total_questions" gorm:"not null"`
	TimeTaken      int                                   `json:"time_taken"` // seconds
	Answers        datatypes.JSONType[map[string]string] `json:"answers"`
	StartedAt      time.Time                             `json:"started_at" gorm:"index"`
	CompletedAt    *time.Time                            `json:"completed_at,omitempty"`
	CreatedAt      time.Time                             `json:"created_at"`
}

// Percentage is score over total questions, 0 when the attempt has no questions.
func (a *TestAttempt) Percentage() float64 {
	if a.TotalQuestions <= 0 {
		return 0
	}
	return a.Score / float64(a.TotalQuestions) * 100
}
