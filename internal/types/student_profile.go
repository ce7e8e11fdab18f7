package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	CurrencyUSD = "USD"
	CurrencyGBP = "GBP"
	CurrencyEUR = "EUR"
	CurrencyCAD = "CAD"
	CurrencyAUD = "AUD"
	CurrencySGD = "SGD"
	CurrencyCHF = "CHF"
)

const (
	TestTypeIELTS = "IELTS"
	TestTypeTOEFL = "TOEFL"
)

// StudentProfile is the structured record derived from a completed
// conversation that received consent. One per conversation; re-saving
// updates in place.
type StudentProfile struct {
	ID                      uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID          uuid.UUID      `gorm:"type:uuid;uniqueIndex;not null;column:conversation_id" json:"conversation_id"`
	SessionID               uuid.UUID      `gorm:"type:uuid;index;not null;column:session_id" json:"session_id"`
	Name                    string         `gorm:"not null;column:name" json:"name"`
	Email                   string         `gorm:"column:email" json:"email"`
	Phone                   string         `gorm:"column:phone" json:"phone"`
	EducationLevel          string         `gorm:"column:education_level" json:"education_level"`
	BudgetAmount            int            `gorm:"not null;column:budget_amount" json:"budget_amount"`
	BudgetCurrency          string         `gorm:"not null;column:budget_currency" json:"budget_currency"`
	TestType                string         `gorm:"not null;column:test_type" json:"test_type"`
	TestScore               float64        `gorm:"not null;column:test_score" json:"test_score"`
	PreferredCountry        string         `gorm:"not null;column:preferred_country" json:"preferred_country"`
	RecommendedUniversities datatypes.JSON `gorm:"column:recommended_universities" json:"recommended_universities"`
	SyncedToSink            bool           `gorm:"not null;default:false;column:synced_to_sink" json:"synced_to_sink"`
	CreatedAt               time.Time      `gorm:"not null;column:created_at" json:"created_at"`
	UpdatedAt               time.Time      `gorm:"not null;column:updated_at" json:"updated_at"`
}

func (StudentProfile) TableName() string {
	return "student_profiles"
}
