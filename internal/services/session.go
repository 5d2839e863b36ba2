package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/carefully-app/carefully-backend/internal/apperr"
	"github.com/carefully-app/carefully-backend/internal/logger"
	"github.com/carefully-app/carefully-backend/internal/repos"
	"github.com/carefully-app/carefully-backend/internal/types"
)

type StartResult struct {
	Session     *types.UserScenario
	OpeningLine string
}

// SessionService owns the session status transitions:
// not_started -> in_progress on start (lazy create), in_progress -> in_progress
// on re-entry, and nothing leaves completed. Completion itself lives in
// CompletionService.
type SessionService interface {
	Start(ctx context.Context, userID, scenarioID uuid.UUID) (*StartResult, error)
	Snapshot(ctx context.Context, userID, scenarioID uuid.UUID) (*types.UserScenario, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*types.UserScenario, error)
}

type sessionService struct {
	db          *gorm.DB
	log         *logger.Logger
	scenarioSvc ScenarioService
	sessionRepo repos.UserScenarioRepo
	roleplay    RoleplayService
	locks       *SessionLocks
}

func NewSessionService(db *gorm.DB, baseLog *logger.Logger, scenarioSvc ScenarioService, sessionRepo repos.UserScenarioRepo, roleplay RoleplayService, locks *SessionLocks) SessionService {
	return &sessionService{
		db:          db,
		log:         baseLog.With("service", "SessionService"),
		scenarioSvc: scenarioSvc,
		sessionRepo: sessionRepo,
		roleplay:    roleplay,
		locks:       locks,
	}
}

// Start is idempotent. A fresh (user, scenario) pair creates the session; an
// in-progress one is returned with its turns untouched (forcing status back
// to in_progress if it had lapsed); a completed one is returned read-only
// with no opening line.
func (s *sessionService) Start(ctx context.Context, userID, scenarioID uuid.UUID) (*StartResult, error) {
	if userID == uuid.Nil {
		return nil, apperr.Unauthorized("unauthorized", "user required")
	}

	scenario, err := s.scenarioSvc.GetByID(ctx, scenarioID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Acquire(userID, scenarioID)
	defer unlock()

	existing, err := s.sessionRepo.GetByUserAndScenario(ctx, nil, userID, scenarioID)
	if err != nil {
		return nil, fmt.Errorf("Failed to load session: %w", err)
	}

	if existing != nil {
		if existing.Status == types.SessionStatusCompleted {
			// Terminal; restarting a finished scenario is a no-op.
			return &StartResult{Session: existing}, nil
		}

		if existing.Status != types.SessionStatusInProgress {
			if err := s.sessionRepo.UpdateFields(ctx, nil, existing.ID, map[string]any{
				"status": types.SessionStatusInProgress,
			}); err != nil {
				return nil, fmt.Errorf("Failed to resume session: %w", err)
			}
			existing.Status = types.SessionStatusInProgress
		}

		// Only a session with no turns yet gets a fresh opening line; a
		// resume renders the stored transcript instead.
		turns, err := existing.Turns()
		if err != nil {
			return nil, fmt.Errorf("Failed to decode session turns: %w", err)
		}
		result := &StartResult{Session: existing}
		if len(turns) == 0 {
			line, err := s.roleplay.OpeningLine(ctx, scenario)
			if err != nil {
				return nil, err
			}
			result.OpeningLine = line
		}
		return result, nil
	}

	// Oracle first: a failed opening line leaves nothing behind, and the
	// client just calls start again.
	line, err := s.roleplay.OpeningLine(ctx, scenario)
	if err != nil {
		return nil, err
	}

	session := &types.UserScenario{
		ID:         uuid.New(),
		UserID:     userID,
		ScenarioID: scenarioID,
		Status:     types.SessionStatusInProgress,
		Progress:   0,
		Responses:  datatypes.JSON([]byte("[]")),
		Feedback:   datatypes.JSON([]byte("[]")),
	}
	if _, err := s.sessionRepo.Create(ctx, nil, session); err != nil {
		return nil, fmt.Errorf("Failed to create session: %w", err)
	}

	return &StartResult{Session: session, OpeningLine: line}, nil
}

func (s *sessionService) Snapshot(ctx context.Context, userID, scenarioID uuid.UUID) (*types.UserScenario, error) {
	if userID == uuid.Nil {
		return nil, apperr.Unauthorized("unauthorized", "user required")
	}

	session, err := s.sessionRepo.GetByUserAndScenario(ctx, nil, userID, scenarioID)
	if err != nil {
		return nil, fmt.Errorf("Failed to load session: %w", err)
	}
	if session == nil {
		return nil, apperr.NotFound("session_not_found", "no session for scenario %s", scenarioID)
	}
	return session, nil
}

func (s *sessionService) ListForUser(ctx context.Context, userID uuid.UUID) ([]*types.UserScenario, error) {
	if userID == uuid.Nil {
		return nil, apperr.Unauthorized("unauthorized", "user required")
	}

	sessions, err := s.sessionRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("Failed to list sessions: %w", err)
	}
	return sessions, nil
}
