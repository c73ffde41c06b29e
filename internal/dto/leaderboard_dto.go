package dto

type LeaderboardEntry struct {
	Rank           int     `json:"rank"`
	UserID         *uint   `json:"user_id,omitempty"`
	Name           string  `json:"name"`
	Year           int     `json:"year"`
	Branch         string  `json:"branch"`
	TotalTests     int     `json:"total_tests"`
	AverageScore   float64 `json:"average_score"`
	TotalTimeHours float64 `json:"total_time_hours"`
	IsCurrentUser  bool    `json:"is_current_user,omitempty"`
}

type Pagination struct {
	CurrentPage int  `json:"current_page"`
	TotalPages  int  `json:"total_pages"`
	TotalCount  int  `json:"total_count"`
	HasNext     bool `json:"has_next"`
	HasPrev     bool `json:"has_prev"`
	PerPage     int  `json:"per_page"`
}

type LeaderboardFilters struct {
	Company string `json:"company,omitempty"`
	Year    *int   `json:"year,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

type LeaderboardResponse struct {
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
	Pagination  Pagination         `json:"pagination"`
	Filters     LeaderboardFilters `json:"filters"`
}

type UserPositionResponse struct {
	UserPosition      *int               `json:"user_position"`
	UserEntry         *LeaderboardEntry  `json:"user_entry,omitempty"`
	NearbyCompetitors []LeaderboardEntry `json:"nearby_competitors"`
	TotalParticipants int                `json:"total_participants"`
	Message           string             `json:"message,omitempty"`
}

type LeaderboardFilterOptions struct {
	Companies []string `json:"companies"`
	Years     []int    `json:"years"`
	Branches  []string `json:"branches"`
}

type LeaderboardStats struct {
	TotalParticipants int     `json:"total_participants"`
	TotalTestsTaken   int64   `json:"total_tests_taken"`
	PlatformAverage   float64 `json:"platform_average"`
	HighestScore      float64 `json:"highest_score"`
	TopPerformer      string  `json:"top_performer,omitempty"`
}
