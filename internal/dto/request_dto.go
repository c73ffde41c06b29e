package dto

import "time"

// GenerateTestRequest asks for a company test. Zero values fall back to the
// service defaults (20 questions, year 2025).
type GenerateTestRequest struct {
	Company         string `json:"company"`
	NumQuestions    int    `json:"num_questions"`
	Year            int    `json:"year"`
	ForceRegenerate bool   `json:"force_regenerate"`
}

// SubmitTestRequest maps question id (as a string) to the chosen label.
type SubmitTestRequest struct {
	Answers   map[string]string `json:"answers"`
	TimeTaken int               `json:"time_taken" binding:"gte=0"`
	StartedAt *time.Time        `json:"started_at"`
}

// GetTestQuery holds the get_test query string.
type GetTestQuery struct {
	IncludeAnswers bool   `form:"include_answers"`
	Randomize      *bool  `form:"randomize"`
	Section        string `form:"section"`
}

// LeaderboardQuery holds pagination and the optional filters.
type LeaderboardQuery struct {
	Limit   int    `form:"limit"`
	Page    int    `form:"page"`
	Company string `form:"company"`
	Year    *int   `form:"year"`
	Branch  string `form:"branch"`
}
