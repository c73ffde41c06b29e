package dto

import "time"

type SubjectPerformance struct {
	AccuracyRate  float64   `json:"accuracy_rate"`
	TotalAttempts int       `json:"total_attempts"`
	LastUpdated   time.Time `json:"last_updated"`
}

type RecentPerformance struct {
	Date      time.Time `json:"date"`
	Score     float64   `json:"score"`
	Company   string    `json:"company"`
	TimeTaken int       `json:"time_taken"`
}

type SubjectScore struct {
	Subject      string  `json:"subject"`
	AccuracyRate float64 `json:"accuracy_rate"`
}

type UserProgress struct {
	TotalTests         int                           `json:"total_tests"`
	AverageScore       float64                       `json:"average_score"`
	TotalTimeSpent     int                           `json:"total_time_spent"`
	ImprovementTrend   float64                       `json:"improvement_trend"`
	SubjectPerformance map[string]SubjectPerformance `json:"subject_performance"`
	RecentPerformance  []RecentPerformance           `json:"recent_performance"`
	Strengths          []SubjectScore                `json:"strengths"`
	Weaknesses         []SubjectScore                `json:"weaknesses"`
	LastUpdated        *time.Time                    `json:"last_updated,omitempty"`
}

type WeakArea struct {
	Subject               string  `json:"subject"`
	AccuracyRate          float64 `json:"accuracy_rate"`
	AttemptsCount         int     `json:"attempts_count"`
	ImprovementSuggestion string  `json:"improvement_suggestion"`
}

type Recommendations struct {
	PriorityAreas       []WeakArea     `json:"priority_areas"`
	PracticeSuggestions []string       `json:"practice_suggestions"`
	TimeAllocation      map[string]int `json:"time_allocation"` // minutes per day
	NextSteps           []string       `json:"next_steps"`
}
