package model

import (
	"time"

	"gorm.io/gorm"
)

// Test is the record created once at generation time and read-only during
// evaluation. Students and questions are stored as JSON documents: they are
// only ever read back as a whole per test.
type Test struct {
	ID             uint           `gorm:"primarykey" json:"id"`
	TestID         string         `json:"test_id" gorm:"not null;uniqueIndex"`
	NumOfQuestions int            `json:"num_of_questions" gorm:"not null"`
	GCMode         bool           `json:"gc_mode"`
	Students       []Student      `json:"students" gorm:"serializer:json;type:jsonb"`
	Questions      []Question     `json:"questions" gorm:"serializer:json;type:jsonb"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}
