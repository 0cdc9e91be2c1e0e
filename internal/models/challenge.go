package models

import (
	"time"

	"github.com/lib/pq"
)

// Challenge is the coding problem issued during a session. It is embedded
// by value into the session record and into every submission made against it.
type Challenge struct {
	Title       string `bson:"title" json:"title"`
	Language    string `bson:"language" json:"language"`
	Description string `bson:"description" json:"description"`
	StarterCode string `bson:"starter_code,omitempty" json:"starter_code,omitempty"`
	Difficulty  string `bson:"difficulty,omitempty" json:"difficulty,omitempty"`
}

type CodeSubmission struct {
	Language  string     `bson:"language" json:"language"`
	Code      string     `bson:"code" json:"code"`
	Timestamp time.Time  `bson:"timestamp" json:"timestamp"`
	Challenge *Challenge `bson:"challenge" json:"challenge"`
}

// CatalogChallenge is a row of the Postgres challenge catalog.
type CatalogChallenge struct {
	ID          string         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Language    string         `gorm:"column:language;type:text;index" json:"language"`
	Difficulty  string         `gorm:"column:difficulty;type:text" json:"difficulty"`
	Title       string         `gorm:"column:title;type:text" json:"title"`
	Description string         `gorm:"column:description;type:text" json:"description"`
	StarterCode string         `gorm:"column:starter_code;type:text" json:"starter_code"`
	Tags        pq.StringArray `gorm:"column:tags;type:text[]" json:"tags"`
	CreatedAt   time.Time      `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (CatalogChallenge) TableName() string { return "challenges" }

func (c CatalogChallenge) Challenge() Challenge {
	return Challenge{
		Title:       c.Title,
		Language:    c.Language,
		Description: c.Description,
		StarterCode: c.StarterCode,
		Difficulty:  c.Difficulty,
	}
}
