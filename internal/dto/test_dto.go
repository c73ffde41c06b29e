package dto

import "time"

// TestGenerationResult describes a generated or cached test.
type TestGenerationResult struct {
	TestID                 uint      `json:"test_id"`
	Company                string    `json:"company"`
	Year                   int       `json:"year"`
	NumQuestions           int       `json:"num_questions"`
	CreatedAt              time.Time `json:"created_at"`
	FromCache              bool      `json:"from_cache"`
	GenerationTime         *float64  `json:"generation_time,omitempty"`
	ResearchTime           *float64  `json:"research_time,omitempty"`
	QuestionGenerationTime *float64  `json:"question_generation_time,omitempty"`
	Sections               []string  `json:"sections"`
}

// CompanyGenerationResult is one company's outcome inside a batch.
type CompanyGenerationResult struct {
	Success bool                  `json:"success"`
	Result  *TestGenerationResult `json:"result,omitempty"`
	Error   string                `json:"error,omitempty"`
	Code    string                `json:"code,omitempty"`
}

type BatchGenerationResult struct {
	TotalCompanies int                                `json:"total_companies"`
	Successful     int                                `json:"successful"`
	Failed         int                                `json:"failed"`
	Results        map[string]CompanyGenerationResult `json:"results"`
}

// QuestionView is a question as served to a test taker. CorrectAnswer and
// Explanation are only filled for privileged callers.
type QuestionView struct {
	ID            uint     `json:"id"`
	QuestionText  string   `json:"question_text"`
	Options       []string `json:"options"`
	Difficulty    string   `json:"difficulty"`
	Topic         string   `json:"topic,omitempty"`
	CorrectAnswer string   `json:"correct_answer,omitempty"`
	Explanation   string   `json:"explanation,omitempty"`
}

type SectionView struct {
	SectionName string         `json:"section_name"`
	Questions   []QuestionView `json:"questions"`
}

type TestMetadata struct {
	CreatedAt    time.Time `json:"created_at"`
	UserAttempts int64     `json:"user_attempts"`
	PatternData  string    `json:"pattern_data,omitempty"`
}

type TestDetailResponse struct {
	TestID           uint          `json:"test_id"`
	Company          string        `json:"company"`
	Year             int           `json:"year"`
	TotalQuestions   int           `json:"total_questions"`
	TimeLimitMinutes int           `json:"time_limit_minutes"`
	Sections         []SectionView `json:"sections"`
	Metadata         TestMetadata  `json:"metadata"`
}

// TestSummaryDTO is used for listing tests.
type TestSummaryDTO struct {
	ID               uint      `json:"id"`
	Company          string    `json:"company"`
	Year             int       `json:"year"`
	TimeLimitMinutes int       `json:"time_limit_minutes"`
	QuestionCount    int       `json:"question_count"`
	CreatedAt        time.Time `json:"created_at"`
}

type CompanyInfo struct {
	Name           string `json:"name"`
	Supported      bool   `json:"supported"`
	GeneratedTests int    `json:"generated_tests"`
}
