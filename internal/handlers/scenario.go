package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/carefully-app/carefully-backend/internal/services"
)

type ScenarioHandler struct {
	scenarioService services.ScenarioService
}

func NewScenarioHandler(scenarioService services.ScenarioService) *ScenarioHandler {
	return &ScenarioHandler{scenarioService: scenarioService}
}

// GET /api/scenarios
func (sh *ScenarioHandler) GetAll(c *gin.Context) {
	scenarios, err := sh.scenarioService.GetAll(c.Request.Context())
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"scenarios": scenarios})
}

// GET /api/scenarios/:id
func (sh *ScenarioHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, 400, "bad_scenario_id", errors.New("invalid scenario id"))
		return
	}
	scenario, err := sh.scenarioService.GetByID(c.Request.Context(), id)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"scenario": scenario})
}
