package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	SenderBot  = "bot"
	SenderUser = "user"
)

// ChatMessage is an append-only transcript entry. Messages are never
// mutated after creation.
type ChatMessage struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID `gorm:"type:uuid;index;not null;column:conversation_id" json:"conversation_id"`
	Sender         string    `gorm:"not null;column:sender" json:"sender"`
	MessageText    string    `gorm:"not null;column:message_text" json:"message_text"`
	StepNumber     int       `gorm:"not null;column:step_number" json:"step_number"`
	Timestamp      time.Time `gorm:"not null;index;column:timestamp" json:"timestamp"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
