package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	DifficultyBeginner     = "beginner"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"
)

func ValidDifficulty(d string) bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	}
	return false
}

// Scenario is a static roleplay definition. Rows are seeded at boot and never
// mutated afterwards.
type Scenario struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string    `gorm:"not null;column:title" json:"title"`
	Description string    `gorm:"type:text;column:description" json:"description"`
	// Context is the prose prompt fed to the oracle as the situation setup.
	Context       string `gorm:"type:text;not null;column:context" json:"context"`
	CharacterName string `gorm:"column:character_name" json:"character_name"`
	// CharacterRole describes who the oracle plays, e.g. "an anxious resident
	// refusing their morning medication".
	CharacterRole      string         `gorm:"type:text;column:character_role" json:"character_role"`
	Category           string         `gorm:"index;column:category" json:"category"`
	Difficulty         string         `gorm:"not null;default:'beginner';column:difficulty" json:"difficulty"`
	EstimatedTime      int            `gorm:"column:estimated_time;not null;default:0" json:"estimated_time"`
	LearningObjectives datatypes.JSON `gorm:"type:jsonb;column:learning_objectives" json:"learning_objectives"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Scenario) TableName() string {
	return "scenario"
}

func (s *Scenario) Objectives() ([]string, error) {
	if len(s.LearningObjectives) == 0 {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal(s.LearningObjectives, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Scenario) SetObjectives(objectives []string) error {
	raw, err := json.Marshal(objectives)
	if err != nil {
		return err
	}
	s.LearningObjectives = datatypes.JSON(raw)
	return nil
}
