package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/carefully-app/carefully-backend/internal/apperr"
	"github.com/carefully-app/carefully-backend/internal/logger"
	"github.com/carefully-app/carefully-backend/internal/types"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger init: %v", err)
	}
	return log
}

// fakeScenarioService serves a fixed in-memory catalog.
type fakeScenarioService struct {
	scenarios map[uuid.UUID]*types.Scenario
}

func newFakeScenarioService(scenarios ...*types.Scenario) *fakeScenarioService {
	f := &fakeScenarioService{scenarios: map[uuid.UUID]*types.Scenario{}}
	for _, sc := range scenarios {
		f.scenarios[sc.ID] = sc
	}
	return f
}

func (f *fakeScenarioService) GetAll(ctx context.Context) ([]*types.Scenario, error) {
	out := make([]*types.Scenario, 0, len(f.scenarios))
	for _, sc := range f.scenarios {
		out = append(out, sc)
	}
	return out, nil
}

func (f *fakeScenarioService) GetByID(ctx context.Context, id uuid.UUID) (*types.Scenario, error) {
	sc, ok := f.scenarios[id]
	if !ok {
		return nil, apperr.NotFound("scenario_not_found", "scenario %s not found", id)
	}
	return sc, nil
}

func (f *fakeScenarioService) SeedFromFile(ctx context.Context, path string) error {
	return nil
}

// fakeSessionRepo keeps session rows in memory and enforces the same
// lock_version semantics as the real repo.
type fakeSessionRepo struct {
	rows           map[uuid.UUID]*types.UserScenario
	createCalls    int
	updateCalls    int
	failNextUpdate bool
}

func newFakeSessionRepo(rows ...*types.UserScenario) *fakeSessionRepo {
	f := &fakeSessionRepo{rows: map[uuid.UUID]*types.UserScenario{}}
	for _, r := range rows {
		f.rows[r.ID] = r
	}
	return f
}

func (f *fakeSessionRepo) Create(ctx context.Context, tx *gorm.DB, row *types.UserScenario) (*types.UserScenario, error) {
	f.createCalls++
	cp := *row
	f.rows[row.ID] = &cp
	return row, nil
}

func (f *fakeSessionRepo) GetByUserAndScenario(ctx context.Context, tx *gorm.DB, userID, scenarioID uuid.UUID) (*types.UserScenario, error) {
	for _, r := range f.rows {
		if r.UserID == userID && r.ScenarioID == scenarioID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeSessionRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.UserScenario, error) {
	var out []*types.UserScenario
	for _, r := range f.rows {
		if r.UserID == userID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeSessionRepo) UpdateWithVersion(ctx context.Context, tx *gorm.DB, id uuid.UUID, expectedVersion int, updates map[string]any) (bool, error) {
	f.updateCalls++
	if f.failNextUpdate {
		f.failNextUpdate = false
		return false, nil
	}
	row, ok := f.rows[id]
	if !ok || row.LockVersion != expectedVersion {
		return false, nil
	}
	applySessionUpdates(row, updates)
	row.LockVersion = expectedVersion + 1
	return true, nil
}

func (f *fakeSessionRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]any) error {
	row, ok := f.rows[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	applySessionUpdates(row, updates)
	return nil
}

func applySessionUpdates(row *types.UserScenario, updates map[string]any) {
	for k, v := range updates {
		switch k {
		case "status":
			row.Status = v.(string)
		case "progress":
			row.Progress = v.(int)
		case "responses":
			row.Responses = v.(datatypes.JSON)
		case "feedback":
			row.Feedback = v.(datatypes.JSON)
		case "score":
			row.Score = v.(int)
		case "total_time":
			row.TotalTime = v.(int)
		case "completed_at":
			at := v.(time.Time)
			row.CompletedAt = &at
		}
	}
}

// fakeUserRepo serves a small in-memory user set and records rollup
// increments.
type fakeUserRepo struct {
	users           []*types.User
	rollupCalls     int
	rollupScenarios int
	rollupMinutes   int
}

func (f *fakeUserRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.User) ([]*types.User, error) {
	f.users = append(f.users, rows...)
	return rows, nil
}

func (f *fakeUserRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.User, error) {
	var out []*types.User
	for _, u := range f.users {
		for _, id := range ids {
			if u.ID == id {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

func (f *fakeUserRepo) GetByEmails(ctx context.Context, tx *gorm.DB, emails []string) ([]*types.User, error) {
	var out []*types.User
	for _, u := range f.users {
		for _, email := range emails {
			if u.Email == email {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

func (f *fakeUserRepo) EmailExists(ctx context.Context, tx *gorm.DB, email string) (bool, error) {
	for _, u := range f.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUserRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]any) error {
	return nil
}

func (f *fakeUserRepo) IncrementRollup(ctx context.Context, tx *gorm.DB, id uuid.UUID, scenarios int, minutes int) error {
	f.rollupCalls++
	f.rollupScenarios += scenarios
	f.rollupMinutes += minutes
	return nil
}

// fakeRoleplay scripts oracle behavior per call.
type fakeRoleplay struct {
	openingLine  string
	openingErr   error
	openingCalls int

	reply      *ReplyResult
	replyErr   error
	replyCalls int

	feedback      *types.TurnFeedback
	feedbackErr   error
	feedbackCalls int
}

func (f *fakeRoleplay) OpeningLine(ctx context.Context, scenario *types.Scenario) (string, error) {
	f.openingCalls++
	if f.openingErr != nil {
		return "", f.openingErr
	}
	return f.openingLine, nil
}

func (f *fakeRoleplay) Reply(ctx context.Context, scenario *types.Scenario, history []TurnMessage, utterance string) (*ReplyResult, error) {
	f.replyCalls++
	if f.replyErr != nil {
		return nil, f.replyErr
	}
	cp := *f.reply
	return &cp, nil
}

func (f *fakeRoleplay) Feedback(ctx context.Context, scenario *types.Scenario, history []TurnMessage, utterance string) (*types.TurnFeedback, error) {
	f.feedbackCalls++
	if f.feedbackErr != nil {
		return nil, f.feedbackErr
	}
	cp := *f.feedback
	return &cp, nil
}

// fakeOpenAI scripts raw structured-output objects for RoleplayService tests.
type fakeOpenAI struct {
	obj   map[string]any
	usage json.RawMessage
	err   error
	calls int
}

func (f *fakeOpenAI) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (*GenerateResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &GenerateResult{Object: f.obj, Usage: f.usage}, nil
}

func (f *fakeOpenAI) Model() string { return "fake-model" }

// fakeCallLogRepo records audit rows.
type fakeCallLogRepo struct {
	rows []*types.AICallLog
}

func (f *fakeCallLogRepo) Create(ctx context.Context, tx *gorm.DB, row *types.AICallLog) error {
	f.rows = append(f.rows, row)
	return nil
}

func testScenario() *types.Scenario {
	return &types.Scenario{
		ID:            uuid.New(),
		Title:         "Refusing Morning Medication",
		Context:       "An agitated resident refuses her morning medication.",
		CharacterName: "Margaret",
		CharacterRole: "Care home resident",
		Difficulty:    types.DifficultyBeginner,
	}
}

func emptySession(userID, scenarioID uuid.UUID) *types.UserScenario {
	return &types.UserScenario{
		ID:         uuid.New(),
		UserID:     userID,
		ScenarioID: scenarioID,
		Status:     types.SessionStatusInProgress,
		Responses:  datatypes.JSON([]byte("[]")),
		Feedback:   datatypes.JSON([]byte("[]")),
	}
}

func goodFeedback() *types.TurnFeedback {
	return &types.TurnFeedback{
		Empathy:        80,
		Tone:           70,
		Clarity:        90,
		DecisionMaking: 60,
		OverallScore:   75,
		Summary:        "Calm and clear.",
		Suggestions:    []string{"Name the medication before offering it."},
	}
}
