package repository

import (
	"context"
	"strings"
	"time"

	"github.com/lshigami/PlacementPrep/internal/model"
	"gorm.io/gorm"
)

// TestSummary is a test row with its question count.
type TestSummary struct {
	model.Test
	QuestionCount int
}

// CompanyTestCount is the number of generated tests per company.
type CompanyTestCount struct {
	Company   string
	TestCount int
}

type TestRepository interface {
	WithTx(tx *gorm.DB) TestRepository
	Create(ctx context.Context, test *model.Test) error
	FindByIDWithQuestions(ctx context.Context, id uint) (*model.Test, error)
	FindRecentWithQuestions(ctx context.Context, company string, year int, since time.Time) (*model.Test, error)
	FindAllWithQuestionCount(ctx context.Context) ([]TestSummary, error)
	CountByCompany(ctx context.Context) ([]CompanyTestCount, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int64, error)
	Count(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id uint) (int64, error)
}

type testRepository struct {
	db *gorm.DB
}

func NewTestRepository(db *gorm.DB) TestRepository {
	return &testRepository{db: db}
}

func (r *testRepository) WithTx(tx *gorm.DB) TestRepository {
	return &testRepository{db: tx}
}

// Create inserts the test together with its Questions slice.
func (r *testRepository) Create(ctx context.Context, test *model.Test) error {
	return r.db.WithContext(ctx).Create(test).Error
}

// FindByIDWithQuestions loads the test with questions in insertion order.
func (r *testRepository) FindByIDWithQuestions(ctx context.Context, id uint) (*model.Test, error) {
	var test model.Test
	err := r.db.WithContext(ctx).Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("questions.id ASC")
	}).First(&test, id).Error
	if err != nil {
		return nil, err
	}
	return &test, nil
}

// FindRecentWithQuestions returns the newest test for the company and year
// created at or after since that already has at least one question. The
// company match is a case-insensitive substring match.
func (r *testRepository) FindRecentWithQuestions(ctx context.Context, company string, year int, since time.Time) (*model.Test, error) {
	var test model.Test
	err := r.db.WithContext(ctx).
		Where("LOWER(company) LIKE ?", "%"+strings.ToLower(strings.TrimSpace(company))+"%").
		Where("year = ? AND created_at >= ?", year, since).
		Where("EXISTS (SELECT 1 FROM questions WHERE questions.test_id = tests.id)").
		Order("created_at DESC").
		Order("id DESC").
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.id ASC")
		}).
		First(&test).Error
	if err != nil {
		return nil, err
	}
	return &test, nil
}

func (r *testRepository) FindAllWithQuestionCount(ctx context.Context) ([]TestSummary, error) {
	var results []TestSummary
	err := r.db.WithContext(ctx).Model(&model.Test{}).
		Select("tests.*, (SELECT COUNT(*) FROM questions WHERE questions.test_id = tests.id) AS question_count").
		Order("tests.created_at DESC").
		Scan(&results).Error
	return results, err
}

func (r *testRepository) CountByCompany(ctx context.Context) ([]CompanyTestCount, error) {
	var rows []CompanyTestCount
	err := r.db.WithContext(ctx).Model(&model.Test{}).
		Select("company, COUNT(*) AS test_count").
		Group("company").
		Order("company ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *testRepository) CountCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Test{}).Where("created_at >= ?", since).Count(&n).Error
	return n, err
}

func (r *testRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Test{}).Count(&n).Error
	return n, err
}

// Delete removes the test; questions and attempts go with it through the
// foreign key cascade.
func (r *testRepository) Delete(ctx context.Context, id uint) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&model.Test{}, id)
	return res.RowsAffected, res.Error
}
