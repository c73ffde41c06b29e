package model

import (
	"time"

	"gorm.io/datatypes"
)

// Question is a single multiple-choice item. Options hold the four labelled
// choices ("A) ...") and CorrectAnswer one of the labels A to D.
type Question struct {
	ID            uint                        `gorm:"primarykey" json:"id"`
	TestID        uint                        `json:"test_id" gorm:"not null;index"`
	Section       string                      `json:"section" gorm:"size:255;not null;index"`
	QuestionText  string                      `json:"question_text" gorm:"type:text;not null"`
	Options       datatypes.JSONSlice[string] `json:"options" gorm:"not null"`
	CorrectAnswer string                      `json:"correct_answer" gorm:"size:1;not null"`
	Explanation   string                      `json:"explanation" gorm:"type:text"`
	Difficulty    string                      `json:"difficulty" gorm:"size:10;not null"`
	Topic         string                      `json:"topic,omitempty" gorm:"size:255"`
	CreatedAt     time.Time                   `json:"created_at"`
}
