package repository

import (
	"context"

	"github.com/lshigami/PlacementPrep/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProgressMetricsRepository interface {
	WithTx(tx *gorm.DB) ProgressMetricsRepository
	FindByUserAndSubject(ctx context.Context, userID uint, subject string) (*model.ProgressMetrics, error)
	FindAllByUser(ctx context.Context, userID uint) ([]model.ProgressMetrics, error)
	LockForUpdate(ctx context.Context, userID uint, subject string) (*model.ProgressMetrics, error)
	Save(ctx context.Context, metrics *model.ProgressMetrics) error
}

type progressMetricsRepository struct {
	db *gorm.DB
}

func NewProgressMetricsRepository(db *gorm.DB) ProgressMetricsRepository {
	return &progressMetricsRepository{db: db}
}

func (r *progressMetricsRepository) WithTx(tx *gorm.DB) ProgressMetricsRepository {
	return &progressMetricsRepository{db: tx}
}

func (r *progressMetricsRepository) FindByUserAndSubject(ctx context.Context, userID uint, subject string) (*model.ProgressMetrics, error) {
	var m model.ProgressMetrics
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND subject_area = ?", userID, subject).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// FindAllByUser orders by subject name so callers see a stable listing.
func (r *progressMetricsRepository) FindAllByUser(ctx context.Context, userID uint) ([]model.ProgressMetrics, error) {
	var rows []model.ProgressMetrics
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("subject_area ASC").
		Find(&rows).Error
	return rows, err
}

// LockForUpdate makes sure a row exists for the user and subject, then reads
// it with a row lock held until the surrounding transaction ends. A fresh row
// has zero attempts. Concurrent first submissions for the same subject
// serialize on the lock instead of racing on the unique index.
func (r *progressMetricsRepository) LockForUpdate(ctx context.Context, userID uint, subject string) (*model.ProgressMetrics, error) {
	seed := &model.ProgressMetrics{UserID: userID, SubjectArea: subject}
	err := r.db.WithContext(ctx).
		Omit("User").
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(seed).Error
	if err != nil {
		return nil, err
	}

	var m model.ProgressMetrics
	err = r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND subject_area = ?", userID, subject).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Save inserts a new row or updates an existing one by primary key.
func (r *progressMetricsRepository) Save(ctx context.Context, metrics *model.ProgressMetrics) error {
	return r.db.WithContext(ctx).Omit("User").Save(metrics).Error
}
