package dto

// BatchGenerateRequest is the admin body for multi-company generation.
type BatchGenerateRequest struct {
	Companies    []string `json:"companies" binding:"required,min=1,dive,required"`
	NumQuestions int      `json:"num_questions"`
	Year         int      `json:"year"`
}

// GenerationStatistics summarises generated content.
type GenerationStatistics struct {
	TotalTests       int64    `json:"total_tests"`
	TotalQuestions   int64    `json:"total_questions"`
	CompaniesCovered int      `json:"companies_covered"`
	Companies        []string `json:"companies"`
	RecentTests24h   int64    `json:"recent_tests_24h"`
}
