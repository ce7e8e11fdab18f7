package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scholarport/backend/internal/pkg/logger"
	"github.com/scholarport/backend/internal/types"
)

var ErrProfileNotFound = errors.New("student profile not found")

type CountryCount struct {
	Country string `json:"country"`
	Count   int64  `json:"count"`
}

type TestTypeCount struct {
	TestType string `json:"test_type"`
	Count    int64  `json:"count"`
}

type StudentProfileRepo interface {
	GetByConversationID(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID) (*types.StudentProfile, error)
	Save(ctx context.Context, tx *gorm.DB, profile *types.StudentProfile) error
	List(ctx context.Context, tx *gorm.DB, limit, offset int) ([]*types.StudentProfile, error)
	Count(ctx context.Context, tx *gorm.DB) (int64, error)
	AverageBudget(ctx context.Context, tx *gorm.DB) (float64, error)
	TopCountries(ctx context.Context, tx *gorm.DB, limit int) ([]CountryCount, error)
	TestTypeDistribution(ctx context.Context, tx *gorm.DB) ([]TestTypeCount, error)
	CountCreatedSince(ctx context.Context, tx *gorm.DB, since time.Time) (int64, error)
}

type studentProfileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStudentProfileRepo(db *gorm.DB, baseLog *logger.Logger) StudentProfileRepo {
	repoLog := baseLog.With("repo", "StudentProfileRepo")
	return &studentProfileRepo{db: db, log: repoLog}
}

func (pr *studentProfileRepo) GetByConversationID(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID) (*types.StudentProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}

	var result types.StudentProfile
	if err := transaction.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &result, nil
}

func (pr *studentProfileRepo) Save(ctx context.Context, tx *gorm.DB, profile *types.StudentProfile) error {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}

	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	return transaction.WithContext(ctx).Save(profile).Error
}

func (pr *studentProfileRepo) List(ctx context.Context, tx *gorm.DB, limit, offset int) ([]*types.StudentProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}

	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var results []*types.StudentProfile
	if err := transaction.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (pr *studentProfileRepo) Count(ctx context.Context, tx *gorm.DB) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.StudentProfile{}).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (pr *studentProfileRepo) AverageBudget(ctx context.Context, tx *gorm.DB) (float64, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}

	var avg *float64
	if err := transaction.WithContext(ctx).
		Model(&types.StudentProfile{}).
		Select("AVG(budget_amount)").
		Scan(&avg).Error; err != nil {
		return 0, err
	}
	if avg == nil {
		return 0, nil
	}
	return *avg, nil
}

func (pr *studentProfileRepo) TopCountries(ctx context.Context, tx *gorm.DB, limit int) ([]CountryCount, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}

	if limit <= 0 {
		limit = 5
	}

	var results []CountryCount
	if err := transaction.WithContext(ctx).
		Model(&types.StudentProfile{}).
		Select("preferred_country AS country, COUNT(*) AS count").
		Group("preferred_country").
		Order("count DESC").
		Limit(limit).
		Scan(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (pr *studentProfileRepo) TestTypeDistribution(ctx context.Context, tx *gorm.DB) ([]TestTypeCount, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}

	var results []TestTypeCount
	if err := transaction.WithContext(ctx).
		Model(&types.StudentProfile{}).
		Select("test_type, COUNT(*) AS count").
		Group("test_type").
		Order("count DESC").
		Scan(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (pr *studentProfileRepo) CountCreatedSince(ctx context.Context, tx *gorm.DB, since time.Time) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.StudentProfile{}).
		Where("created_at >= ?", since).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
