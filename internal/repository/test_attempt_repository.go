package repository

import (
	"context"

	"github.com/lshigami/PlacementPrep/internal/model"
	"gorm.io/gorm"
)

type TestAttemptRepository interface {
	WithTx(tx *gorm.DB) TestAttemptRepository
	Create(ctx context.Context, attempt *model.TestAttempt) error
	FindOwned(ctx context.Context, attemptID, testID, userID uint) (*model.TestAttempt, error)
	FindAllByTestAndUser(ctx context.Context, testID, userID uint) ([]model.TestAttempt, error)
	FindAllByUser(ctx context.Context, userID uint) ([]model.TestAttempt, error)
	CountByTestAndUser(ctx context.Context, testID, userID uint) (int64, error)
	Count(ctx context.Context) (int64, error)
	SumScores(ctx context.Context) (score float64, totalQuestions int64, err error)
	MaxPercentage(ctx context.Context) (float64, error)
}

type testAttemptRepository struct {
	db *gorm.DB
}

func NewTestAttemptRepository(db *gorm.DB) TestAttemptRepository {
	return &testAttemptRepository{db: db}
}

func (r *testAttemptRepository) WithTx(tx *gorm.DB) TestAttemptRepository {
	return &testAttemptRepository{db: tx}
}

func (r *testAttemptRepository) Create(ctx context.Context, attempt *model.TestAttempt) error {
	return r.db.WithContext(ctx).Omit("User", "Test").Create(attempt).Error
}

// FindOwned matches on attempt, test and owner together so another user's
// attempt is reported exactly like a missing one.
func (r *testAttemptRepository) FindOwned(ctx context.Context, attemptID, testID, userID uint) (*model.TestAttempt, error) {
	var attempt model.TestAttempt
	err := r.db.WithContext(ctx).
		Where("id = ? AND test_id = ? AND user_id = ?", attemptID, testID, userID).
		First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *testAttemptRepository) FindAllByTestAndUser(ctx context.Context, testID, userID uint) ([]model.TestAttempt, error) {
	var attempts []model.TestAttempt
	err := r.db.WithContext(ctx).
		Where("test_id = ? AND user_id = ?", testID, userID).
		Order("started_at DESC").
		Find(&attempts).Error
	return attempts, err
}

// FindAllByUser returns the user's attempts oldest first with the test preloaded.
func (r *testAttemptRepository) FindAllByUser(ctx context.Context, userID uint) ([]model.TestAttempt, error) {
	var attempts []model.TestAttempt
	err := r.db.WithContext(ctx).
		Preload("Test").
		Where("user_id = ?", userID).
		Order("started_at ASC").
		Order("id ASC").
		Find(&attempts).Error
	return attempts, err
}

func (r *testAttemptRepository) CountByTestAndUser(ctx context.Context, testID, userID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.TestAttempt{}).
		Where("test_id = ? AND user_id = ?", testID, userID).
		Count(&n).Error
	return n, err
}

func (r *testAttemptRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.TestAttempt{}).Count(&n).Error
	return n, err
}

func (r *testAttemptRepository) SumScores(ctx context.Context) (float64, int64, error) {
	var row struct {
		Score          float64
		TotalQuestions int64
	}
	err := r.db.WithContext(ctx).Model(&model.TestAttempt{}).
		Select("COALESCE(SUM(score), 0) AS score, COALESCE(SUM(total_questions), 0) AS total_questions").
		Scan(&row).Error
	return row.Score, row.TotalQuestions, err
}

// MaxPercentage is the best single-attempt percentage on the platform.
func (r *testAttemptRepository) MaxPercentage(ctx context.Context) (float64, error) {
	var best float64
	err := r.db.WithContext(ctx).Model(&model.TestAttempt{}).
		Where("total_questions > 0").
		Select("COALESCE(MAX(score * 100.0 / total_questions), 0)").
		Scan(&best).Error
	return best, err
}
