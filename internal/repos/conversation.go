package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scholarport/backend/internal/pkg/logger"
	"github.com/scholarport/backend/internal/types"
)

var ErrConversationNotFound = errors.New("conversation not found")

type ConversationRepo interface {
	Create(ctx context.Context, tx *gorm.DB, conv *types.ConversationSession) (*types.ConversationSession, error)
	GetBySessionID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*types.ConversationSession, error)
	Save(ctx context.Context, tx *gorm.DB, conv *types.ConversationSession) error
	SaveAtStep(ctx context.Context, tx *gorm.DB, conv *types.ConversationSession, expectedStep int) (bool, error)
}

type conversationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConversationRepo(db *gorm.DB, baseLog *logger.Logger) ConversationRepo {
	repoLog := baseLog.With("repo", "ConversationRepo")
	return &conversationRepo{db: db, log: repoLog}
}

func (cr *conversationRepo) Create(ctx context.Context, tx *gorm.DB, conv *types.ConversationSession) (*types.ConversationSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}

	if conv.ID == uuid.Nil {
		conv.ID = uuid.New()
	}
	if conv.SessionID == uuid.Nil {
		conv.SessionID = uuid.New()
	}
	if conv.CurrentStep == 0 {
		conv.CurrentStep = 1
	}

	if err := transaction.WithContext(ctx).Create(conv).Error; err != nil {
		return nil, err
	}
	return conv, nil
}

func (cr *conversationRepo) GetBySessionID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*types.ConversationSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}

	var result types.ConversationSession
	if err := transaction.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return &result, nil
}

func (cr *conversationRepo) Save(ctx context.Context, tx *gorm.DB, conv *types.ConversationSession) error {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	return transaction.WithContext(ctx).Save(conv).Error
}

// SaveAtStep writes the full row only if the stored current_step still
// matches expectedStep. Returns false when another turn got there first.
func (cr *conversationRepo) SaveAtStep(ctx context.Context, tx *gorm.DB, conv *types.ConversationSession, expectedStep int) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}

	res := transaction.WithContext(ctx).
		Model(&types.ConversationSession{}).
		Where("id = ? AND current_step = ?", conv.ID, expectedStep).
		Select("*").
		Omit("id", "session_id", "created_at").
		Updates(conv)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
