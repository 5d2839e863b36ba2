package services

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/carefully-app/carefully-backend/internal/apperr"
	"github.com/carefully-app/carefully-backend/internal/clients/redis"
	"github.com/carefully-app/carefully-backend/internal/logger"
	"github.com/carefully-app/carefully-backend/internal/repos"
	"github.com/carefully-app/carefully-backend/internal/types"
)

// ScenarioService is the read-only scenario catalog.
type ScenarioService interface {
	GetAll(ctx context.Context) ([]*types.Scenario, error)
	GetByID(ctx context.Context, id uuid.UUID) (*types.Scenario, error)
	SeedFromFile(ctx context.Context, path string) error
}

type scenarioService struct {
	db    *gorm.DB
	log   *logger.Logger
	repo  repos.ScenarioRepo
	cache redis.CatalogCache
}

// NewScenarioService accepts a nil cache; the catalog then always reads from
// the database.
func NewScenarioService(db *gorm.DB, baseLog *logger.Logger, repo repos.ScenarioRepo, cache redis.CatalogCache) ScenarioService {
	return &scenarioService{
		db:    db,
		log:   baseLog.With("service", "ScenarioService"),
		repo:  repo,
		cache: cache,
	}
}

func (s *scenarioService) GetAll(ctx context.Context) ([]*types.Scenario, error) {
	if s.cache != nil {
		if scenarios, ok := s.cache.GetAll(ctx); ok {
			return scenarios, nil
		}
	}

	scenarios, err := s.repo.GetAll(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Failed to load scenario catalog: %w", err)
	}

	if s.cache != nil {
		s.cache.SetAll(ctx, scenarios)
	}
	return scenarios, nil
}

func (s *scenarioService) GetByID(ctx context.Context, id uuid.UUID) (*types.Scenario, error) {
	scenarios, err := s.repo.GetByIDs(ctx, nil, []uuid.UUID{id})
	if err != nil {
		return nil, fmt.Errorf("Failed to load scenario: %w", err)
	}
	if len(scenarios) == 0 {
		return nil, apperr.NotFound("scenario_not_found", "scenario %s not found", id)
	}
	return scenarios[0], nil
}

type seedScenario struct {
	ID                 string   `yaml:"id"`
	Title              string   `yaml:"title"`
	Description        string   `yaml:"description"`
	Context            string   `yaml:"context"`
	CharacterName      string   `yaml:"character_name"`
	CharacterRole      string   `yaml:"character_role"`
	Category           string   `yaml:"category"`
	Difficulty         string   `yaml:"difficulty"`
	EstimatedTime      int      `yaml:"estimated_time"`
	LearningObjectives []string `yaml:"learning_objectives"`
}

type seedFile struct {
	Scenarios []seedScenario `yaml:"scenarios"`
}

// SeedFromFile upserts the catalog from a YAML file. Idempotent by scenario
// id, so it runs on every boot.
func (s *scenarioService) SeedFromFile(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("Failed to read scenario seed file: %w", err)
	}

	var file seedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("Failed to parse scenario seed file: %w", err)
	}

	for i, seed := range file.Scenarios {
		row, err := seedToScenario(seed)
		if err != nil {
			return fmt.Errorf("Scenario seed entry %d invalid: %w", i, err)
		}
		if err := s.repo.Upsert(ctx, nil, row); err != nil {
			return fmt.Errorf("Failed to upsert scenario %q: %w", seed.Title, err)
		}
	}

	s.log.Info("Scenario catalog seeded", "count", len(file.Scenarios))
	return nil
}

func seedToScenario(seed seedScenario) (*types.Scenario, error) {
	id, err := uuid.Parse(seed.ID)
	if err != nil {
		return nil, fmt.Errorf("bad id %q: %w", seed.ID, err)
	}
	if seed.Title == "" {
		return nil, fmt.Errorf("title required")
	}
	if seed.Context == "" {
		return nil, fmt.Errorf("context required")
	}
	if !types.ValidDifficulty(seed.Difficulty) {
		return nil, fmt.Errorf("unknown difficulty %q", seed.Difficulty)
	}

	row := &types.Scenario{
		ID:            id,
		Title:         seed.Title,
		Description:   seed.Description,
		Context:       seed.Context,
		CharacterName: seed.CharacterName,
		CharacterRole: seed.CharacterRole,
		Category:      seed.Category,
		Difficulty:    seed.Difficulty,
		EstimatedTime: seed.EstimatedTime,
	}
	if err := row.SetObjectives(seed.LearningObjectives); err != nil {
		return nil, err
	}
	return row, nil
}
