package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/carefully-app/carefully-backend/internal/apperr"
	"github.com/carefully-app/carefully-backend/internal/logger"
	"github.com/carefully-app/carefully-backend/internal/repos"
	"github.com/carefully-app/carefully-backend/internal/types"
)

type TurnResult struct {
	AIResponse     string
	Sentiment      string
	ShouldContinue bool
	Feedback       *types.TurnFeedback
	Session        *types.UserScenario
}

// ConversationService processes one turn: one oracle reply, one rubric, then
// a single atomic append to the session's turn list. Both oracle calls happen
// before any write, so a failed turn persists nothing and the client can
// resubmit the same utterance.
type ConversationService interface {
	SubmitTurn(ctx context.Context, userID, scenarioID uuid.UUID, message string, history []TurnMessage) (*TurnResult, error)
}

type conversationService struct {
	db          *gorm.DB
	log         *logger.Logger
	scenarioSvc ScenarioService
	sessionRepo repos.UserScenarioRepo
	roleplay    RoleplayService
	locks       *SessionLocks
	turnTarget  int
}

func NewConversationService(db *gorm.DB, baseLog *logger.Logger, scenarioSvc ScenarioService, sessionRepo repos.UserScenarioRepo, roleplay RoleplayService, locks *SessionLocks, turnTarget int) ConversationService {
	if turnTarget <= 0 {
		turnTarget = 3
	}
	return &conversationService{
		db:          db,
		log:         baseLog.With("service", "ConversationService"),
		scenarioSvc: scenarioSvc,
		sessionRepo: sessionRepo,
		roleplay:    roleplay,
		locks:       locks,
		turnTarget:  turnTarget,
	}
}

func (s *conversationService) SubmitTurn(ctx context.Context, userID, scenarioID uuid.UUID, message string, history []TurnMessage) (*TurnResult, error) {
	if userID == uuid.Nil {
		return nil, apperr.Unauthorized("unauthorized", "user required")
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperr.Validation("empty_message", "message must not be empty")
	}

	scenario, err := s.scenarioSvc.GetByID(ctx, scenarioID)
	if err != nil {
		return nil, err
	}

	// Turns within one session build on the full prior history; serialize the
	// read-modify-write per session.
	unlock := s.locks.Acquire(userID, scenarioID)
	defer unlock()

	session, err := s.sessionRepo.GetByUserAndScenario(ctx, nil, userID, scenarioID)
	if err != nil {
		return nil, fmt.Errorf("Failed to load session: %w", err)
	}
	if session == nil {
		return nil, apperr.NotFound("session_not_found", "no session for scenario %s; call start first", scenarioID)
	}
	if session.Status == types.SessionStatusCompleted {
		return nil, apperr.Conflict("session_completed", "session already completed")
	}

	// Both oracle round trips before any persistence.
	reply, err := s.roleplay.Reply(ctx, scenario, history, message)
	if err != nil {
		return nil, err
	}
	feedback, err := s.roleplay.Feedback(ctx, scenario, history, message)
	if err != nil {
		return nil, err
	}

	turns, err := session.Turns()
	if err != nil {
		return nil, fmt.Errorf("Failed to decode session turns: %w", err)
	}
	rubrics, err := session.Rubrics()
	if err != nil {
		return nil, fmt.Errorf("Failed to decode session feedback: %w", err)
	}

	turns = append(turns, types.TurnRecord{
		UserResponse: message,
		AIResponse:   reply.Message,
		Sentiment:    reply.Sentiment,
		Feedback:     *feedback,
		Timestamp:    time.Now().UTC(),
	})
	rubrics = append(rubrics, *feedback)

	updated := *session
	if err := updated.SetTurns(turns); err != nil {
		return nil, err
	}
	if err := updated.SetRubrics(rubrics); err != nil {
		return nil, err
	}
	updated.Progress = types.DeriveProgress(len(turns), s.turnTarget)
	updated.Status = types.SessionStatusInProgress

	ok, err := s.sessionRepo.UpdateWithVersion(ctx, nil, session.ID, session.LockVersion, map[string]any{
		"responses": updated.Responses,
		"feedback":  updated.Feedback,
		"progress":  updated.Progress,
		"status":    updated.Status,
	})
	if err != nil {
		return nil, fmt.Errorf("Failed to persist turn: %w", err)
	}
	if !ok {
		return nil, apperr.Conflict("session_conflict", "session was modified concurrently; resubmit the turn")
	}
	updated.LockVersion = session.LockVersion + 1

	// The session ends when the oracle closes the conversation or the turn
	// target is reached, whichever comes first.
	shouldContinue := reply.ShouldContinue && len(turns) < s.turnTarget

	return &TurnResult{
		AIResponse:     reply.Message,
		Sentiment:      reply.Sentiment,
		ShouldContinue: shouldContinue,
		Feedback:       feedback,
		Session:        &updated,
	}, nil
}
