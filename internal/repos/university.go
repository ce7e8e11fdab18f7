package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/scholarport/backend/internal/pkg/logger"
	"github.com/scholarport/backend/internal/types"
)

type UniversityRepo interface {
	ListAll(ctx context.Context, tx *gorm.DB) ([]*types.University, error)
	Count(ctx context.Context, tx *gorm.DB) (int64, error)
	UpsertByName(ctx context.Context, tx *gorm.DB, u *types.University) error
}

type universityRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUniversityRepo(db *gorm.DB, baseLog *logger.Logger) UniversityRepo {
	repoLog := baseLog.With("repo", "UniversityRepo")
	return &universityRepo{db: db, log: repoLog}
}

func (ur *universityRepo) ListAll(ctx context.Context, tx *gorm.DB) ([]*types.University, error) {
	transaction := tx
	if transaction == nil {
		transaction = ur.db
	}

	var results []*types.University
	if err := transaction.WithContext(ctx).
		Order("university_name ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (ur *universityRepo) Count(ctx context.Context, tx *gorm.DB) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = ur.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.University{}).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (ur *universityRepo) UpsertByName(ctx context.Context, tx *gorm.DB, u *types.University) error {
	transaction := tx
	if transaction == nil {
		transaction = ur.db
	}

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}

	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "university_name"}},
			UpdateAll: true,
		}).
		Create(u).Error
}
