package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/carefully-app/carefully-backend/internal/requestdata"
	"github.com/carefully-app/carefully-backend/internal/services"
)

type SessionHandler struct {
	sessionService      services.SessionService
	conversationService services.ConversationService
	completionService   services.CompletionService
}

func NewSessionHandler(
	sessionService services.SessionService,
	conversationService services.ConversationService,
	completionService services.CompletionService,
) *SessionHandler {
	return &SessionHandler{
		sessionService:      sessionService,
		conversationService: conversationService,
		completionService:   completionService,
	}
}

// POST /api/scenarios/:id/start
func (sh *SessionHandler) Start(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, 401, "unauthorized", errors.New("missing request context"))
		return
	}
	scenarioID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, 400, "bad_scenario_id", errors.New("invalid scenario id"))
		return
	}
	result, err := sh.sessionService.Start(c.Request.Context(), rd.UserID, scenarioID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"session":      result.Session,
		"opening_line": result.OpeningLine,
	})
}

// POST /api/scenarios/:id/conversation
func (sh *SessionHandler) Conversation(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, 401, "unauthorized", errors.New("missing request context"))
		return
	}
	scenarioID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, 400, "bad_scenario_id", errors.New("invalid scenario id"))
		return
	}
	var req struct {
		Message             string `json:"message"`
		ConversationHistory []struct {
			Role    string `json:"role"`
			Message string `json:"message"`
		} `json:"conversation_history"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, 400, "bad_body", errors.New("invalid request body"))
		return
	}
	history := make([]services.TurnMessage, 0, len(req.ConversationHistory))
	for _, m := range req.ConversationHistory {
		history = append(history, services.TurnMessage{Role: m.Role, Message: m.Message})
	}
	result, err := sh.conversationService.SubmitTurn(c.Request.Context(), rd.UserID, scenarioID, req.Message, history)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"ai_response":     result.AIResponse,
		"sentiment":       result.Sentiment,
		"should_continue": result.ShouldContinue,
		"feedback":        result.Feedback,
		"session":         result.Session,
	})
}

// POST /api/scenarios/:id/complete
func (sh *SessionHandler) Complete(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, 401, "unauthorized", errors.New("missing request context"))
		return
	}
	scenarioID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, 400, "bad_scenario_id", errors.New("invalid scenario id"))
		return
	}
	var req struct {
		TotalTimeMinutes int `json:"total_time_minutes"`
	}
	// Body is optional on complete.
	_ = c.ShouldBindJSON(&req)
	session, err := sh.completionService.Complete(c.Request.Context(), rd.UserID, scenarioID, req.TotalTimeMinutes)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"session": session})
}

// GET /api/user/scenarios
func (sh *SessionHandler) ListForUser(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, 401, "unauthorized", errors.New("missing request context"))
		return
	}
	sessions, err := sh.sessionService.ListForUser(c.Request.Context(), rd.UserID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"sessions": sessions})
}

// GET /api/user/scenarios/:scenarioId
func (sh *SessionHandler) Snapshot(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, 401, "unauthorized", errors.New("missing request context"))
		return
	}
	scenarioID, err := uuid.Parse(c.Param("scenarioId"))
	if err != nil {
		RespondError(c, 400, "bad_scenario_id", errors.New("invalid scenario id"))
		return
	}
	session, err := sh.sessionService.Snapshot(c.Request.Context(), rd.UserID, scenarioID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"session": session})
}
