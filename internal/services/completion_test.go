package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/carefully-app/carefully-backend/internal/apperr"
	"github.com/carefully-app/carefully-backend/internal/types"
)

func newCompletionFixture(t *testing.T, session *types.UserScenario) (*fakeSessionRepo, *fakeUserRepo, *completionService) {
	t.Helper()
	sessionRepo := newFakeSessionRepo(session)
	userRepo := &fakeUserRepo{}
	svc := &completionService{
		log:         newTestLogger(t).With("service", "CompletionService"),
		sessionRepo: sessionRepo,
		userRepo:    userRepo,
		locks:       NewSessionLocks(),
	}
	return sessionRepo, userRepo, svc
}

func sessionWithRubrics(userID, scenarioID uuid.UUID, rubrics []types.TurnFeedback) *types.UserScenario {
	s := emptySession(userID, scenarioID)
	if err := s.SetRubrics(rubrics); err != nil {
		panic(err)
	}
	return s
}

func TestComplete_FinalizesSessionAndRollsUp(t *testing.T) {
	userID := uuid.New()
	scenarioID := uuid.New()
	session := sessionWithRubrics(userID, scenarioID, []types.TurnFeedback{
		{Empathy: 80, Tone: 60, Clarity: 100, DecisionMaking: 40},
		{Empathy: 90, Tone: 70, Clarity: 90, DecisionMaking: 70},
	})
	session.TotalTime = 12
	sessionRepo, userRepo, svc := newCompletionFixture(t, session)

	out, err := svc.completeLocked(context.Background(), nil, userID, scenarioID, 0)
	if err != nil {
		t.Fatalf("completeLocked: %v", err)
	}
	if out.Status != types.SessionStatusCompleted {
		t.Fatalf("expected completed got %q", out.Status)
	}
	if out.Progress != 100 {
		t.Fatalf("expected progress 100 got %d", out.Progress)
	}
	if out.CompletedAt == nil {
		t.Fatalf("expected completed_at to be set")
	}
	// (80+60+100+40)/4 = 70, (90+70+90+70)/4 = 80, mean = 75
	if out.Score != 75 {
		t.Fatalf("expected score 75 got %d", out.Score)
	}

	stored, _ := sessionRepo.GetByUserAndScenario(context.Background(), nil, userID, scenarioID)
	if stored.Status != types.SessionStatusCompleted || stored.Score != 75 {
		t.Fatalf("expected persisted completion, got status=%q score=%d", stored.Status, stored.Score)
	}

	if userRepo.rollupCalls != 1 {
		t.Fatalf("expected 1 rollup increment got %d", userRepo.rollupCalls)
	}
	if userRepo.rollupScenarios != 1 || userRepo.rollupMinutes != 12 {
		t.Fatalf("unexpected rollup: scenarios=%d minutes=%d", userRepo.rollupScenarios, userRepo.rollupMinutes)
	}
}

func TestComplete_IsIdempotent(t *testing.T) {
	userID := uuid.New()
	scenarioID := uuid.New()
	session := sessionWithRubrics(userID, scenarioID, []types.TurnFeedback{
		{Empathy: 60, Tone: 60, Clarity: 60, DecisionMaking: 60},
	})
	_, userRepo, svc := newCompletionFixture(t, session)

	first, err := svc.completeLocked(context.Background(), nil, userID, scenarioID, 0)
	if err != nil {
		t.Fatalf("first complete: %v", err)
	}
	second, err := svc.completeLocked(context.Background(), nil, userID, scenarioID, 0)
	if err != nil {
		t.Fatalf("second complete: %v", err)
	}

	if userRepo.rollupCalls != 1 {
		t.Fatalf("expected rollup to increment once got %d", userRepo.rollupCalls)
	}
	if second.Score != first.Score || second.Progress != first.Progress {
		t.Fatalf("expected second complete to return the record unchanged")
	}
	if second.Status != types.SessionStatusCompleted {
		t.Fatalf("expected completed got %q", second.Status)
	}
}

func TestComplete_ReportedMinutesOverrideTotalTime(t *testing.T) {
	userID := uuid.New()
	scenarioID := uuid.New()
	session := sessionWithRubrics(userID, scenarioID, nil)
	session.TotalTime = 5
	_, userRepo, svc := newCompletionFixture(t, session)

	out, err := svc.completeLocked(context.Background(), nil, userID, scenarioID, 18)
	if err != nil {
		t.Fatalf("completeLocked: %v", err)
	}
	if out.TotalTime != 18 {
		t.Fatalf("expected total_time 18 got %d", out.TotalTime)
	}
	if userRepo.rollupMinutes != 18 {
		t.Fatalf("expected rollup minutes 18 got %d", userRepo.rollupMinutes)
	}
}

func TestComplete_NoTurnsScoresZero(t *testing.T) {
	userID := uuid.New()
	scenarioID := uuid.New()
	_, _, svc := newCompletionFixture(t, sessionWithRubrics(userID, scenarioID, nil))

	out, err := svc.completeLocked(context.Background(), nil, userID, scenarioID, 0)
	if err != nil {
		t.Fatalf("completeLocked: %v", err)
	}
	if out.Score != 0 {
		t.Fatalf("expected score 0 for empty session got %d", out.Score)
	}
	if out.Status != types.SessionStatusCompleted {
		t.Fatalf("expected completed got %q", out.Status)
	}
}

func TestComplete_MissingSessionIsNotFound(t *testing.T) {
	_, _, svc := newCompletionFixture(t, emptySession(uuid.New(), uuid.New()))

	_, err := svc.completeLocked(context.Background(), nil, uuid.New(), uuid.New(), 0)
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected not_found got %v", err)
	}
}

func TestComplete_StaleVersionIsConflict(t *testing.T) {
	userID := uuid.New()
	scenarioID := uuid.New()
	session := sessionWithRubrics(userID, scenarioID, nil)
	sessionRepo, userRepo, svc := newCompletionFixture(t, session)
	sessionRepo.failNextUpdate = true

	_, err := svc.completeLocked(context.Background(), nil, userID, scenarioID, 0)
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("expected conflict got %v", err)
	}
	if userRepo.rollupCalls != 0 {
		t.Fatalf("expected no rollup after conflicted finalize")
	}
}

func TestComplete_ScoreMatchesStoredRubrics(t *testing.T) {
	userID := uuid.New()
	scenarioID := uuid.New()
	rubrics := []types.TurnFeedback{
		{Empathy: 55, Tone: 65, Clarity: 75, DecisionMaking: 85},
		{Empathy: 40, Tone: 50, Clarity: 60, DecisionMaking: 70},
		{Empathy: 90, Tone: 90, Clarity: 90, DecisionMaking: 90},
	}
	_, _, svc := newCompletionFixture(t, sessionWithRubrics(userID, scenarioID, rubrics))

	out, err := svc.completeLocked(context.Background(), nil, userID, scenarioID, 0)
	if err != nil {
		t.Fatalf("completeLocked: %v", err)
	}
	want := types.ScoreFromRubrics(rubrics)
	if out.Score != want {
		t.Fatalf("expected persisted score %d to match recomputation, got %d", want, out.Score)
	}
}
