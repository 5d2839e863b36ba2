package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/carefully-app/carefully-backend/internal/apperr"
	"github.com/carefully-app/carefully-backend/internal/logger"
	"github.com/carefully-app/carefully-backend/internal/repos"
	"github.com/carefully-app/carefully-backend/internal/types"
)

// TurnMessage is one entry of the conversation history as submitted by the
// client: role is "user" (the trainee) or "character" (the oracle persona).
type TurnMessage struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

type ReplyResult struct {
	Message        string
	Sentiment      string
	ShouldContinue bool
}

// RoleplayService is the facade over the text-generation oracle. It owns
// prompt construction and strict validation of oracle output; anything the
// oracle returns that does not match the contract is an oracle error, never
// a best-effort guess.
type RoleplayService interface {
	OpeningLine(ctx context.Context, scenario *types.Scenario) (string, error)
	Reply(ctx context.Context, scenario *types.Scenario, history []TurnMessage, utterance string) (*ReplyResult, error)
	Feedback(ctx context.Context, scenario *types.Scenario, history []TurnMessage, utterance string) (*types.TurnFeedback, error)
}

type roleplayService struct {
	log         *logger.Logger
	client      OpenAIClient
	callLogRepo repos.AICallLogRepo
}

func NewRoleplayService(baseLog *logger.Logger, client OpenAIClient, callLogRepo repos.AICallLogRepo) RoleplayService {
	return &roleplayService{
		log:         baseLog.With("service", "RoleplayService"),
		client:      client,
		callLogRepo: callLogRepo,
	}
}

func (s *roleplayService) OpeningLine(ctx context.Context, scenario *types.Scenario) (string, error) {
	system := replySystemPrompt(scenario)
	user := "Open the scenario with your first line, in character. Keep it to a few sentences."

	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{"type": "string"},
		},
		"required":             []string{"message"},
		"additionalProperties": false,
	}

	obj, err := s.generate(ctx, scenario, "opening_line", system, user, schema)
	if err != nil {
		return "", err
	}

	message, ok := stringField(obj, "message")
	if !ok || strings.TrimSpace(message) == "" {
		return "", apperr.Oracle("oracle_bad_output", fmt.Errorf("opening line missing message"))
	}
	return message, nil
}

func (s *roleplayService) Reply(ctx context.Context, scenario *types.Scenario, history []TurnMessage, utterance string) (*ReplyResult, error) {
	system := replySystemPrompt(scenario)
	user := transcript(history) + "\nCare worker: " + utterance + "\n\nReply in character. Classify the care worker's message sentiment as one of: positive, neutral, negative, distressed. Set should_continue to false only if the conversation has reached a natural end."

	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message":         map[string]any{"type": "string"},
			"sentiment":       map[string]any{"type": "string", "enum": []string{types.SentimentPositive, types.SentimentNeutral, types.SentimentNegative, types.SentimentDistressed}},
			"should_continue": map[string]any{"type": "boolean"},
		},
		"required":             []string{"message", "sentiment", "should_continue"},
		"additionalProperties": false,
	}

	obj, err := s.generate(ctx, scenario, "roleplay_reply", system, user, schema)
	if err != nil {
		return nil, err
	}

	message, ok := stringField(obj, "message")
	if !ok || strings.TrimSpace(message) == "" {
		return nil, apperr.Oracle("oracle_bad_output", fmt.Errorf("reply missing message"))
	}
	sentiment, ok := stringField(obj, "sentiment")
	if !ok || !types.ValidSentiment(sentiment) {
		return nil, apperr.Oracle("oracle_bad_output", fmt.Errorf("reply has unknown sentiment %q", sentiment))
	}
	shouldContinue, ok := boolField(obj, "should_continue")
	if !ok {
		return nil, apperr.Oracle("oracle_bad_output", fmt.Errorf("reply missing should_continue"))
	}

	return &ReplyResult{
		Message:        message,
		Sentiment:      sentiment,
		ShouldContinue: shouldContinue,
	}, nil
}

func (s *roleplayService) Feedback(ctx context.Context, scenario *types.Scenario, history []TurnMessage, utterance string) (*types.TurnFeedback, error) {
	objectives, _ := scenario.Objectives()
	system := feedbackSystemPrompt(scenario, objectives)
	user := transcript(history) + "\nCare worker: " + utterance + "\n\nScore the care worker's latest message on each axis from 0 to 100. Be specific in the summary and suggestions."

	axis := map[string]any{"type": "integer", "minimum": 0, "maximum": 100}
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"empathy":         axis,
			"tone":            axis,
			"clarity":         axis,
			"decision_making": axis,
			"overall_score":   axis,
			"summary":         map[string]any{"type": "string"},
			"suggestions":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required":             []string{"empathy", "tone", "clarity", "decision_making", "overall_score", "summary", "suggestions"},
		"additionalProperties": false,
	}

	obj, err := s.generate(ctx, scenario, "roleplay_feedback", system, user, schema)
	if err != nil {
		return nil, err
	}

	fb := &types.TurnFeedback{}
	for key, dst := range map[string]*int{
		"empathy":         &fb.Empathy,
		"tone":            &fb.Tone,
		"clarity":         &fb.Clarity,
		"decision_making": &fb.DecisionMaking,
		"overall_score":   &fb.OverallScore,
	} {
		v, ok := intField(obj, key)
		if !ok {
			return nil, apperr.Oracle("oracle_bad_output", fmt.Errorf("feedback missing %s", key))
		}
		*dst = v
	}
	fb.Summary, _ = stringField(obj, "summary")
	if raw, ok := obj["suggestions"].([]any); ok {
		for _, item := range raw {
			if s, ok := item.(string); ok && s != "" {
				fb.Suggestions = append(fb.Suggestions, s)
			}
		}
	}
	fb.Clamp()
	return fb, nil
}

// generate runs one oracle call, classifies failures, and writes the audit
// row. The audit write is best effort.
func (s *roleplayService) generate(ctx context.Context, scenario *types.Scenario, callType, system, user string, schema map[string]any) (map[string]any, error) {
	res, err := s.client.GenerateJSON(ctx, system, user, callType, schema)
	s.logCall(ctx, scenario, callType, system+"\n\n"+user, res, err)
	if err != nil {
		if isTimeout(err) {
			return nil, apperr.OracleTimeout("oracle_timeout", err)
		}
		return nil, apperr.Oracle("oracle_unreachable", err)
	}
	return res.Object, nil
}

func (s *roleplayService) logCall(ctx context.Context, scenario *types.Scenario, callType, prompt string, res *GenerateResult, callErr error) {
	if s.callLogRepo == nil {
		return
	}

	row := &types.AICallLog{
		ID:       uuid.New(),
		CallType: callType,
		Model:    s.client.Model(),
		Prompt:   prompt,
		Success:  callErr == nil,
	}
	if scenario != nil {
		id := scenario.ID
		row.ScenarioID = &id
	}
	if callErr != nil {
		row.Error = callErr.Error()
	} else if res != nil {
		if raw, err := json.Marshal(res.Object); err == nil {
			row.Response = string(raw)
		}
		if len(res.Usage) > 0 {
			row.Usage = datatypes.JSON(res.Usage)
		}
	}

	if err := s.callLogRepo.Create(ctx, nil, row); err != nil {
		s.log.Warn("AI call log write failed (ignored)", "call_type", callType, "error", err)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func replySystemPrompt(scenario *types.Scenario) string {
	var b strings.Builder
	b.WriteString("You are roleplaying in a training simulation for care workers.\n")
	if scenario.CharacterName != "" || scenario.CharacterRole != "" {
		fmt.Fprintf(&b, "You play %s, %s.\n", scenario.CharacterName, scenario.CharacterRole)
	}
	b.WriteString("Stay in character at all times. Never break the fourth wall or mention that this is a simulation.\n\n")
	b.WriteString("Scenario: ")
	b.WriteString(scenario.Context)
	return b.String()
}

func feedbackSystemPrompt(scenario *types.Scenario, objectives []string) string {
	var b strings.Builder
	b.WriteString("You are an experienced care-work trainer reviewing a trainee's roleplay performance.\n\n")
	b.WriteString("Scenario: ")
	b.WriteString(scenario.Context)
	if len(objectives) > 0 {
		b.WriteString("\n\nLearning objectives:\n")
		for _, o := range objectives {
			b.WriteString("- ")
			b.WriteString(o)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func transcript(history []TurnMessage) string {
	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	if len(history) == 0 {
		b.WriteString("(none)\n")
	}
	for _, m := range history {
		speaker := "Character"
		if m.Role == "user" {
			speaker = "Care worker"
		}
		b.WriteString(speaker)
		b.WriteString(": ")
		b.WriteString(m.Message)
		b.WriteString("\n")
	}
	return b.String()
}

func stringField(obj map[string]any, key string) (string, bool) {
	v, ok := obj[key].(string)
	return v, ok
}

func boolField(obj map[string]any, key string) (bool, bool) {
	v, ok := obj[key].(bool)
	return v, ok
}

func intField(obj map[string]any, key string) (int, bool) {
	switch v := obj[key].(type) {
	case float64:
		return int(v), true
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	}
	return 0, false
}
