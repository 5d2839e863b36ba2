package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/carefully-app/carefully-backend/internal/logger"
	"github.com/carefully-app/carefully-backend/internal/types"
)

type ScenarioRepo interface {
	GetAll(ctx context.Context, tx *gorm.DB) ([]*types.Scenario, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Scenario, error)
	// Upsert writes seed rows by primary key. Used only at boot; catalog rows
	// do not change while the server is running.
	Upsert(ctx context.Context, tx *gorm.DB, row *types.Scenario) error
}

type scenarioRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewScenarioRepo(db *gorm.DB, baseLog *logger.Logger) ScenarioRepo {
	return &scenarioRepo{db: db, log: baseLog.With("repo", "ScenarioRepo")}
}

func (r *scenarioRepo) GetAll(ctx context.Context, tx *gorm.DB) ([]*types.Scenario, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Scenario
	if err := transaction.WithContext(ctx).
		Order("category, difficulty, title").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *scenarioRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Scenario, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Scenario
	if len(ids) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *scenarioRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.Scenario) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if row == nil || row.ID == uuid.Nil {
		return nil
	}

	return transaction.WithContext(ctx).
		Where("id = ?", row.ID).
		Assign(row).
		FirstOrCreate(row).Error
}
