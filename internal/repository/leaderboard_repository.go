package repository

import (
	"context"

	"github.com/lshigami/PlacementPrep/internal/model"
	"gorm.io/gorm"
)

// LeaderboardFilter narrows the attempts that count toward a ranking.
// Company matches the test's company, Year and Branch match the student.
type LeaderboardFilter struct {
	Company string
	Year    *int
	Branch  string
}

// UserAggregate is one user's totals over the filtered attempts.
type UserAggregate struct {
	UserID         uint
	Name           string
	Year           int
	Branch         string
	TotalTests     int64
	TotalScore     float64
	TotalQuestions int64
	TotalTime      int64
}

type LeaderboardRepository interface {
	AggregateByUser(ctx context.Context, filter LeaderboardFilter, minAttempts int) ([]UserAggregate, error)
	DistinctCompanies(ctx context.Context) ([]string, error)
	DistinctYears(ctx context.Context) ([]int, error)
	DistinctBranches(ctx context.Context) ([]string, error)
}

type leaderboardRepository struct {
	db *gorm.DB
}

func NewLeaderboardRepository(db *gorm.DB) LeaderboardRepository {
	return &leaderboardRepository{db: db}
}

func (r *leaderboardRepository) AggregateByUser(ctx context.Context, filter LeaderboardFilter, minAttempts int) ([]UserAggregate, error) {
	q := r.db.WithContext(ctx).Model(&model.TestAttempt{}).
		Select("users.id AS user_id, users.name AS name, users.year AS year, users.branch AS branch, " +
			"COUNT(test_attempts.id) AS total_tests, " +
			"COALESCE(SUM(test_attempts.score), 0) AS total_score, " +
			"COALESCE(SUM(test_attempts.total_questions), 0) AS total_questions, " +
			"COALESCE(SUM(test_attempts.time_taken), 0) AS total_time").
		Joins("JOIN users ON users.id = test_attempts.user_id").
		Joins("JOIN tests ON tests.id = test_attempts.test_id")

	if filter.Company != "" {
		q = q.Where("LOWER(tests.company) = LOWER(?)", filter.Company)
	}
	if filter.Year != nil {
		q = q.Where("users.year = ?", *filter.Year)
	}
	if filter.Branch != "" {
		q = q.Where("LOWER(users.branch) = LOWER(?)", filter.Branch)
	}

	q = q.Group("users.id, users.name, users.year, users.branch")
	if minAttempts > 0 {
		q = q.Having("COUNT(test_attempts.id) >= ?", minAttempts)
	}

	var rows []UserAggregate
	err := q.Scan(&rows).Error
	return rows, err
}

func (r *leaderboardRepository) DistinctCompanies(ctx context.Context) ([]string, error) {
	var out []string
	err := r.db.WithContext(ctx).Model(&model.Test{}).
		Distinct().
		Order("company ASC").
		Pluck("company", &out).Error
	return out, err
}

func (r *leaderboardRepository) DistinctYears(ctx context.Context) ([]int, error) {
	var out []int
	err := r.db.WithContext(ctx).Model(&model.User{}).
		Where("year IS NOT NULL AND year > 0").
		Distinct().
		Order("year ASC").
		Pluck("year", &out).Error
	return out, err
}

func (r *leaderboardRepository) DistinctBranches(ctx context.Context) ([]string, error) {
	var out []string
	err := r.db.WithContext(ctx).Model(&model.User{}).
		Where("branch IS NOT NULL AND branch <> ''").
		Distinct().
		Order("branch ASC").
		Pluck("branch", &out).Error
	return out, err
}
