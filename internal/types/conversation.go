package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ConversationSession holds one guided chat session. The seven answer
// slots store the verbatim user text next to the normalized value so the
// raw input is never lost.
type ConversationSession struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID   uuid.UUID `gorm:"type:uuid;uniqueIndex;not null;column:session_id" json:"session_id"`
	CurrentStep int       `gorm:"not null;default:1;column:current_step" json:"current_step"`
	IsCompleted bool      `gorm:"not null;default:false;column:is_completed" json:"is_completed"`

	NameResponse       *string `gorm:"column:name_response" json:"name_response,omitempty"`
	ProcessedName      string  `gorm:"column:processed_name" json:"processed_name,omitempty"`
	EducationResponse  *string `gorm:"column:education_response" json:"education_response,omitempty"`
	ProcessedEducation string  `gorm:"column:processed_education" json:"processed_education,omitempty"`
	TestScoreResponse  *string `gorm:"column:test_score_response" json:"test_score_response,omitempty"`
	ProcessedTestScore string  `gorm:"column:processed_test_score" json:"processed_test_score,omitempty"`
	BudgetResponse     *string `gorm:"column:budget_response" json:"budget_response,omitempty"`
	ProcessedBudget    string  `gorm:"column:processed_budget" json:"processed_budget,omitempty"`
	CountryResponse    *string `gorm:"column:country_response" json:"country_response,omitempty"`
	ProcessedCountry   string  `gorm:"column:processed_country" json:"processed_country,omitempty"`
	EmailResponse      *string `gorm:"column:email_response" json:"email_response,omitempty"`
	ProcessedEmail     string  `gorm:"column:processed_email" json:"processed_email,omitempty"`
	PhoneResponse      *string `gorm:"column:phone_response" json:"phone_response,omitempty"`
	ProcessedPhone     string  `gorm:"column:processed_phone" json:"processed_phone,omitempty"`

	SuggestedUniversities datatypes.JSON `gorm:"column:suggested_universities" json:"suggested_universities,omitempty"`
	DataSaveConsent       bool           `gorm:"not null;default:false;column:data_save_consent" json:"data_save_consent"`
	CounselorContacted    bool           `gorm:"not null;default:false;column:counselor_contacted" json:"counselor_contacted"`

	CreatedAt   time.Time  `gorm:"not null;column:created_at" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;column:updated_at" json:"updated_at"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
}

func (ConversationSession) TableName() string {
	return "chat_conversations"
}

// RawFor returns the verbatim answer recorded for a step, or "" when the
// step has not been answered yet.
func (c *ConversationSession) RawFor(step int) string {
	var p *string
	switch step {
	case 1:
		p = c.NameResponse
	case 2:
		p = c.EducationResponse
	case 3:
		p = c.TestScoreResponse
	case 4:
		p = c.BudgetResponse
	case 5:
		p = c.CountryResponse
	case 6:
		p = c.EmailResponse
	case 7:
		p = c.PhoneResponse
	}
	if p == nil {
		return ""
	}
	return *p
}

// ProcessedFor returns the normalized answer recorded for a step.
func (c *ConversationSession) ProcessedFor(step int) string {
	switch step {
	case 1:
		return c.ProcessedName
	case 2:
		return c.ProcessedEducation
	case 3:
		return c.ProcessedTestScore
	case 4:
		return c.ProcessedBudget
	case 5:
		return c.ProcessedCountry
	case 6:
		return c.ProcessedEmail
	case 7:
		return c.ProcessedPhone
	}
	return ""
}

// SetAnswer records the (raw, normalized) pair for a step.
func (c *ConversationSession) SetAnswer(step int, raw, processed string) {
	r := raw
	switch step {
	case 1:
		c.NameResponse = &r
		c.ProcessedName = processed
	case 2:
		c.EducationResponse = &r
		c.ProcessedEducation = processed
	case 3:
		c.TestScoreResponse = &r
		c.ProcessedTestScore = processed
	case 4:
		c.BudgetResponse = &r
		c.ProcessedBudget = processed
	case 5:
		c.CountryResponse = &r
		c.ProcessedCountry = processed
	case 6:
		c.EmailResponse = &r
		c.ProcessedEmail = processed
	case 7:
		c.PhoneResponse = &r
		c.ProcessedPhone = processed
	}
}
