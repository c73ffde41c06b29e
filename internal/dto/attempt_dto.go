package dto

import "time"

// QuestionResult is the per-question outcome of a scored submission.
type QuestionResult struct {
	QuestionID    uint     `json:"question_id"`
	Section       string   `json:"section"`
	QuestionText  string   `json:"question_text"`
	Options       []string `json:"options"`
	UserAnswer    string   `json:"user_answer"`
	CorrectAnswer string   `json:"correct_answer"`
	IsCorrect     bool     `json:"is_correct"`
	Explanation   string   `json:"explanation"`
}

type SectionScore struct {
	Score      int     `json:"score"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

type ScoringResult struct {
	AttemptID      uint                    `json:"attempt_id"`
	TestID         uint                    `json:"test_id"`
	Score          float64                 `json:"score"`
	TotalQuestions int                     `json:"total_questions"`
	Percentage     float64                 `json:"percentage"`
	TimeTaken      int                     `json:"time_taken"`
	StartedAt      time.Time               `json:"started_at"`
	CompletedAt    *time.Time              `json:"completed_at,omitempty"`
	Results        []QuestionResult        `json:"results"`
	SectionScores  map[string]SectionScore `json:"section_scores"`
}

// TestAttemptSummaryDTO is for listing a user's attempts on a test.
type TestAttemptSummaryDTO struct {
	ID             uint       `json:"id"`
	TestID         uint       `json:"test_id"`
	Score          float64    `json:"score"`
	TotalQuestions int        `json:"total_questions"`
	Percentage     float64    `json:"percentage"`
	TimeTaken      int        `json:"time_taken"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}
