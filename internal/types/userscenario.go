package types

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	SessionStatusNotStarted = "not_started"
	SessionStatusInProgress = "in_progress"
	SessionStatusCompleted  = "completed"
)

const (
	SentimentPositive   = "positive"
	SentimentNeutral    = "neutral"
	SentimentNegative   = "negative"
	SentimentDistressed = "distressed"
)

func ValidSentiment(s string) bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative, SentimentDistressed:
		return true
	}
	return false
}

// TurnFeedback is the per-turn rubric produced by the oracle. Axis values are
// clamped to 0..100 before persistence.
type TurnFeedback struct {
	Empathy        int      `json:"empathy"`
	Tone           int      `json:"tone"`
	Clarity        int      `json:"clarity"`
	DecisionMaking int      `json:"decision_making"`
	OverallScore   int      `json:"overall_score"`
	Summary        string   `json:"summary"`
	Suggestions    []string `json:"suggestions,omitempty"`
}

func clampAxis(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func (f *TurnFeedback) Clamp() {
	f.Empathy = clampAxis(f.Empathy)
	f.Tone = clampAxis(f.Tone)
	f.Clarity = clampAxis(f.Clarity)
	f.DecisionMaking = clampAxis(f.DecisionMaking)
	f.OverallScore = clampAxis(f.OverallScore)
}

// AxisMean averages the four rubric axes for one turn.
func (f TurnFeedback) AxisMean() float64 {
	return float64(f.Empathy+f.Tone+f.Clarity+f.DecisionMaking) / 4.0
}

// TurnRecord is one user-utterance/oracle-reply pair. Append-only, never
// mutated after append.
type TurnRecord struct {
	UserResponse string       `json:"user_response"`
	AIResponse   string       `json:"ai_response"`
	Sentiment    string       `json:"sentiment"`
	Feedback     TurnFeedback `json:"feedback"`
	Timestamp    time.Time    `json:"timestamp"`
}

// UserScenario is the session record for one user's progress through one
// scenario. The turn list and rubric list are mutated exclusively by turn
// appends; status, score and completed_at exclusively by completion.
type UserScenario struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index:idx_user_scenario,unique" json:"user_id"`
	User       *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	ScenarioID uuid.UUID `gorm:"type:uuid;not null;index:idx_user_scenario,unique" json:"scenario_id"`
	Scenario   *Scenario `gorm:"constraint:OnDelete:CASCADE;foreignKey:ScenarioID;references:ID" json:"scenario,omitempty"`

	Status      string         `gorm:"column:status;not null;default:'not_started'" json:"status"`
	Progress    int            `gorm:"column:progress;not null;default:0" json:"progress"`
	Responses   datatypes.JSON `gorm:"type:jsonb;column:responses" json:"responses"`
	Feedback    datatypes.JSON `gorm:"type:jsonb;column:feedback" json:"feedback"`
	TotalTime   int            `gorm:"column:total_time;not null;default:0" json:"total_time"`
	Score       int            `gorm:"column:score;not null;default:0" json:"score"`
	CompletedAt *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`

	// LockVersion guards the turn read-modify-write across processes. Bumped
	// on every write; a stale update affects zero rows.
	LockVersion int `gorm:"column:lock_version;not null;default:0" json:"-"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (UserScenario) TableName() string {
	return "user_scenario"
}

func (us *UserScenario) Turns() ([]TurnRecord, error) {
	if len(us.Responses) == 0 {
		return nil, nil
	}
	var out []TurnRecord
	if err := json.Unmarshal(us.Responses, &out); err != nil {
		return nil, fmt.Errorf("decode responses: %w", err)
	}
	return out, nil
}

func (us *UserScenario) SetTurns(turns []TurnRecord) error {
	raw, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("encode responses: %w", err)
	}
	us.Responses = datatypes.JSON(raw)
	return nil
}

func (us *UserScenario) Rubrics() ([]TurnFeedback, error) {
	if len(us.Feedback) == 0 {
		return nil, nil
	}
	var out []TurnFeedback
	if err := json.Unmarshal(us.Feedback, &out); err != nil {
		return nil, fmt.Errorf("decode feedback: %w", err)
	}
	return out, nil
}

func (us *UserScenario) SetRubrics(rubrics []TurnFeedback) error {
	raw, err := json.Marshal(rubrics)
	if err != nil {
		return fmt.Errorf("encode feedback: %w", err)
	}
	us.Feedback = datatypes.JSON(raw)
	return nil
}

// DeriveProgress computes the percentage for turnCount turns out of a
// turnTarget-turn session: min(round(turnCount/turnTarget*100), 100).
func DeriveProgress(turnCount, turnTarget int) int {
	if turnTarget <= 0 {
		return 0
	}
	p := int(math.Round(float64(turnCount) / float64(turnTarget) * 100))
	if p > 100 {
		return 100
	}
	if p < 0 {
		return 0
	}
	return p
}

// ScoreFromRubrics reproduces the session score from the stored rubric list
// alone: the four axes of each turn collapse to one mean, and the session
// score is the rounded mean across turns. Deterministic so the persisted
// score can be re-derived for auditing.
func ScoreFromRubrics(rubrics []TurnFeedback) int {
	if len(rubrics) == 0 {
		return 0
	}
	var sum float64
	for _, r := range rubrics {
		sum += r.AxisMean()
	}
	return int(math.Round(sum / float64(len(rubrics))))
}
