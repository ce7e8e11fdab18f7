package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// University is one catalog record. The catalog is loaded once from the
// dataset file and read-only afterwards; tuition keeps its source string
// form ("18000 GBP") and is parsed at match time.
type University struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UniversityName    string         `gorm:"uniqueIndex;not null;column:university_name" json:"university_name"`
	Country           string         `gorm:"index;not null;column:country" json:"country"`
	City              string         `gorm:"column:city" json:"city"`
	Tuition           string         `gorm:"column:tuition" json:"tuition"`
	IELTSRequirement  *float64       `gorm:"column:ielts_requirement" json:"ielts_requirement,omitempty"`
	TOEFLRequirement  *int           `gorm:"column:toefl_requirement" json:"toefl_requirement,omitempty"`
	Ranking           string         `gorm:"column:ranking" json:"ranking"`
	Programs          datatypes.JSON `gorm:"column:programs" json:"programs"`
	Notes             string         `gorm:"column:notes" json:"notes"`
	Affordability     string         `gorm:"column:affordability" json:"affordability"`
	Region            string         `gorm:"column:region" json:"region"`
	NameVariations    datatypes.JSON `gorm:"column:name_variations" json:"name_variations,omitempty"`
	ProgramCategories datatypes.JSON `gorm:"column:program_categories" json:"program_categories,omitempty"`
	SearchableText    string         `gorm:"column:searchable_text" json:"searchable_text,omitempty"`
	CreatedAt         time.Time      `gorm:"not null;column:created_at" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"not null;column:updated_at" json:"updated_at"`
}

func (University) TableName() string {
	return "universities"
}

// UniversityMatch is the denormalized snapshot stored on a completed
// conversation and on the student profile. It is a copy, not a live
// reference to the catalog row.
type UniversityMatch struct {
	Name             string   `json:"name"`
	Country          string   `json:"country"`
	City             string   `json:"city"`
	Tuition          string   `json:"tuition"`
	Programs         []string `json:"programs"`
	IELTSRequirement *float64 `json:"ielts_requirement,omitempty"`
	TOEFLRequirement *int     `json:"toefl_requirement,omitempty"`
	Ranking          string   `json:"ranking"`
	Notes            string   `json:"notes,omitempty"`
	Affordability    string   `json:"affordability,omitempty"`
	Region           string   `json:"region,omitempty"`
	WhySelected      string   `json:"why_selected"`
}
