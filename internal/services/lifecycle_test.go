package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/carefully-app/carefully-backend/internal/apperr"
	"github.com/carefully-app/carefully-backend/internal/types"
)

// Full session lifecycle against fakes: start, three turns, complete, then
// verify the terminal state holds.
func TestSessionLifecycle(t *testing.T) {
	scenario := testScenario()
	userID := uuid.New()
	log := newTestLogger(t)
	locks := NewSessionLocks()

	scenarioSvc := newFakeScenarioService(scenario)
	sessionRepo := newFakeSessionRepo()
	userRepo := &fakeUserRepo{}
	roleplay := &fakeRoleplay{
		openingLine: "Who are you? I did not ask for anyone.",
		reply:       &ReplyResult{Message: "Hmph.", Sentiment: types.SentimentNeutral, ShouldContinue: true},
		feedback:    goodFeedback(),
	}

	sessions := NewSessionService(nil, log, scenarioSvc, sessionRepo, roleplay, locks)
	conversations := NewConversationService(nil, log, scenarioSvc, sessionRepo, roleplay, locks, 3)
	completions := &completionService{
		log:         log.With("service", "CompletionService"),
		sessionRepo: sessionRepo,
		userRepo:    userRepo,
		locks:       locks,
	}

	ctx := context.Background()

	// Start.
	started, err := sessions.Start(ctx, userID, scenario.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if started.OpeningLine == "" {
		t.Fatalf("expected opening line")
	}

	// Three turns to the target.
	var history []TurnMessage
	messages := []string{"Good morning, Margaret.", "These help with your blood pressure.", "Would you like water or juice with them?"}
	for i, msg := range messages {
		result, err := conversations.SubmitTurn(ctx, userID, scenario.ID, msg, history)
		if err != nil {
			t.Fatalf("turn %d: %v", i+1, err)
		}
		history = append(history,
			TurnMessage{Role: "user", Message: msg},
			TurnMessage{Role: "character", Message: result.AIResponse},
		)
		if i == len(messages)-1 && result.ShouldContinue {
			t.Fatalf("expected should_continue=false at the turn target")
		}
	}

	// Complete.
	done, err := completions.completeLocked(ctx, nil, userID, scenario.ID, 14)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != types.SessionStatusCompleted || done.Progress != 100 {
		t.Fatalf("unexpected final state status=%q progress=%d", done.Status, done.Progress)
	}
	// goodFeedback axes: (80+70+90+60)/4 = 75 per turn.
	if done.Score != 75 {
		t.Fatalf("expected score 75 got %d", done.Score)
	}
	if done.TotalTime != 14 {
		t.Fatalf("expected total_time 14 got %d", done.TotalTime)
	}
	if userRepo.rollupScenarios != 1 || userRepo.rollupMinutes != 14 {
		t.Fatalf("unexpected rollup scenarios=%d minutes=%d", userRepo.rollupScenarios, userRepo.rollupMinutes)
	}

	// Terminal: no further turns, start is a no-op, re-complete does not
	// double count.
	if _, err := conversations.SubmitTurn(ctx, userID, scenario.ID, "One more thing.", history); !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("expected conflict on turn after completion got %v", err)
	}
	restarted, err := sessions.Start(ctx, userID, scenario.ID)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if restarted.Session.Status != types.SessionStatusCompleted || restarted.OpeningLine != "" {
		t.Fatalf("expected completed session returned read-only")
	}
	if _, err := completions.completeLocked(ctx, nil, userID, scenario.ID, 99); err != nil {
		t.Fatalf("re-complete: %v", err)
	}
	if userRepo.rollupCalls != 1 {
		t.Fatalf("expected rollup untouched by re-complete, calls=%d", userRepo.rollupCalls)
	}

	// The stored record still reproduces its own score.
	stored, _ := sessionRepo.GetByUserAndScenario(ctx, nil, userID, scenario.ID)
	rubrics, err := stored.Rubrics()
	if err != nil {
		t.Fatalf("Rubrics: %v", err)
	}
	if types.ScoreFromRubrics(rubrics) != stored.Score {
		t.Fatalf("stored score %d does not match rubric recomputation %d", stored.Score, types.ScoreFromRubrics(rubrics))
	}
}
