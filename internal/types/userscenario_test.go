package types

import (
	"testing"
	"time"
)

func TestDeriveProgress(t *testing.T) {
	cases := []struct {
		turns  int
		target int
		want   int
	}{
		{0, 3, 0},
		{1, 3, 33},
		{2, 3, 67},
		{3, 3, 100},
		{4, 3, 100},
		{1, 5, 20},
		{2, 5, 40},
		{5, 5, 100},
		{7, 5, 100},
		{1, 1, 100},
		{0, 0, 0},
		{3, -1, 0},
	}
	for _, tc := range cases {
		if got := DeriveProgress(tc.turns, tc.target); got != tc.want {
			t.Fatalf("DeriveProgress(%d, %d) = %d, want %d", tc.turns, tc.target, got, tc.want)
		}
	}
}

func TestScoreFromRubrics(t *testing.T) {
	cases := []struct {
		name    string
		rubrics []TurnFeedback
		want    int
	}{
		{"empty", nil, 0},
		{"single turn", []TurnFeedback{
			{Empathy: 80, Tone: 60, Clarity: 100, DecisionMaking: 40},
		}, 70},
		{"two turns", []TurnFeedback{
			{Empathy: 80, Tone: 60, Clarity: 100, DecisionMaking: 40},
			{Empathy: 90, Tone: 70, Clarity: 90, DecisionMaking: 70},
		}, 75},
		{"rounding", []TurnFeedback{
			{Empathy: 50, Tone: 50, Clarity: 50, DecisionMaking: 51},
			{Empathy: 50, Tone: 50, Clarity: 50, DecisionMaking: 50},
		}, 50},
		{"all zero", []TurnFeedback{{}}, 0},
		{"all max", []TurnFeedback{
			{Empathy: 100, Tone: 100, Clarity: 100, DecisionMaking: 100},
		}, 100},
	}
	for _, tc := range cases {
		if got := ScoreFromRubrics(tc.rubrics); got != tc.want {
			t.Fatalf("%s: ScoreFromRubrics = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestScoreFromRubrics_IgnoresOverallScore(t *testing.T) {
	// The session score is derived from the four axes only; the oracle's own
	// overall_score is display data.
	rubrics := []TurnFeedback{
		{Empathy: 40, Tone: 40, Clarity: 40, DecisionMaking: 40, OverallScore: 99},
	}
	if got := ScoreFromRubrics(rubrics); got != 40 {
		t.Fatalf("expected 40 got %d", got)
	}
}

func TestTurnFeedbackClamp(t *testing.T) {
	fb := TurnFeedback{Empathy: -5, Tone: 150, Clarity: 100, DecisionMaking: 0, OverallScore: 101}
	fb.Clamp()
	if fb.Empathy != 0 || fb.Tone != 100 || fb.Clarity != 100 || fb.DecisionMaking != 0 || fb.OverallScore != 100 {
		t.Fatalf("unexpected clamp result %+v", fb)
	}
}

func TestTurnsRoundTrip(t *testing.T) {
	us := &UserScenario{}
	in := []TurnRecord{
		{
			UserResponse: "Good morning.",
			AIResponse:   "Who are you?",
			Sentiment:    SentimentNeutral,
			Feedback:     TurnFeedback{Empathy: 70, Summary: "Warm opener."},
			Timestamp:    time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
		},
	}
	if err := us.SetTurns(in); err != nil {
		t.Fatalf("SetTurns: %v", err)
	}
	out, err := us.Turns()
	if err != nil {
		t.Fatalf("Turns: %v", err)
	}
	if len(out) != 1 || out[0].UserResponse != "Good morning." || out[0].Feedback.Empathy != 70 {
		t.Fatalf("round trip mismatch: %+v", out)
	}
	if !out[0].Timestamp.Equal(in[0].Timestamp) {
		t.Fatalf("timestamp mismatch: %v vs %v", out[0].Timestamp, in[0].Timestamp)
	}
}

func TestTurnsEmptyColumn(t *testing.T) {
	us := &UserScenario{}
	turns, err := us.Turns()
	if err != nil {
		t.Fatalf("Turns on empty column: %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("expected no turns got %d", len(turns))
	}
}

func TestValidSentiment(t *testing.T) {
	for _, s := range []string{SentimentPositive, SentimentNeutral, SentimentNegative, SentimentDistressed} {
		if !ValidSentiment(s) {
			t.Fatalf("expected %q valid", s)
		}
	}
	for _, s := range []string{"", "happy", "POSITIVE", "angry"} {
		if ValidSentiment(s) {
			t.Fatalf("expected %q invalid", s)
		}
	}
}
