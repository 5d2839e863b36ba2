package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/carefully-app/carefully-backend/internal/apperr"
	"github.com/carefully-app/carefully-backend/internal/logger"
	"github.com/carefully-app/carefully-backend/internal/repos"
	"github.com/carefully-app/carefully-backend/internal/types"
)

// CompletionService finalizes a session and folds it into the user rollup.
// The session write and the rollup increment share one transaction, so a
// crash can no longer leave the rollup out of step with the session, and
// re-completing a finished session is a no-op rather than a double count.
type CompletionService interface {
	// Complete finalizes the session. reportedMinutes, when positive, is the
	// client's self-reported session length and overwrites the stored
	// total_time before the rollup increment. An in-progress session may be
	// completed before the turn target is reached (early exit is allowed).
	Complete(ctx context.Context, userID, scenarioID uuid.UUID, reportedMinutes int) (*types.UserScenario, error)
}

type completionService struct {
	db          *gorm.DB
	log         *logger.Logger
	sessionRepo repos.UserScenarioRepo
	userRepo    repos.UserRepo
	locks       *SessionLocks
}

func NewCompletionService(db *gorm.DB, baseLog *logger.Logger, sessionRepo repos.UserScenarioRepo, userRepo repos.UserRepo, locks *SessionLocks) CompletionService {
	return &completionService{
		db:          db,
		log:         baseLog.With("service", "CompletionService"),
		sessionRepo: sessionRepo,
		userRepo:    userRepo,
		locks:       locks,
	}
}

func (s *completionService) Complete(ctx context.Context, userID, scenarioID uuid.UUID, reportedMinutes int) (*types.UserScenario, error) {
	if userID == uuid.Nil {
		return nil, apperr.Unauthorized("unauthorized", "user required")
	}

	unlock := s.locks.Acquire(userID, scenarioID)
	defer unlock()

	var out *types.UserScenario
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, err := s.completeLocked(ctx, tx, userID, scenarioID, reportedMinutes)
		if err != nil {
			return err
		}
		out = session
		return nil
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// completeLocked is the transaction body; the caller holds the session lock.
func (s *completionService) completeLocked(ctx context.Context, tx *gorm.DB, userID, scenarioID uuid.UUID, reportedMinutes int) (*types.UserScenario, error) {
	session, err := s.sessionRepo.GetByUserAndScenario(ctx, tx, userID, scenarioID)
	if err != nil {
		return nil, fmt.Errorf("Failed to load session: %w", err)
	}
	if session == nil {
		return nil, apperr.NotFound("session_not_found", "no session for scenario %s", scenarioID)
	}

	// Idempotent: a second complete returns the finished record unchanged and
	// must not touch the rollup again.
	if session.Status == types.SessionStatusCompleted {
		return session, nil
	}

	rubrics, err := session.Rubrics()
	if err != nil {
		return nil, fmt.Errorf("Failed to decode session feedback: %w", err)
	}
	score := types.ScoreFromRubrics(rubrics)

	totalTime := session.TotalTime
	if reportedMinutes > 0 {
		totalTime = reportedMinutes
	}

	now := time.Now().UTC()
	ok, err := s.sessionRepo.UpdateWithVersion(ctx, tx, session.ID, session.LockVersion, map[string]any{
		"status":       types.SessionStatusCompleted,
		"progress":     100,
		"score":        score,
		"total_time":   totalTime,
		"completed_at": now,
	})
	if err != nil {
		return nil, fmt.Errorf("Failed to finalize session: %w", err)
	}
	if !ok {
		return nil, apperr.Conflict("session_conflict", "session was modified concurrently; retry complete")
	}

	if err := s.userRepo.IncrementRollup(ctx, tx, userID, 1, totalTime); err != nil {
		return nil, fmt.Errorf("Failed to update user rollup: %w", err)
	}

	session.Status = types.SessionStatusCompleted
	session.Progress = 100
	session.Score = score
	session.TotalTime = totalTime
	session.CompletedAt = &now
	session.LockVersion++
	return session, nil
}
