package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/carefully-app/carefully-backend/internal/logger"
	"github.com/carefully-app/carefully-backend/internal/types"
)

type UserScenarioRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.UserScenario) (*types.UserScenario, error)
	GetByUserAndScenario(ctx context.Context, tx *gorm.DB, userID, scenarioID uuid.UUID) (*types.UserScenario, error)
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.UserScenario, error)
	// UpdateWithVersion applies updates only when the stored lock_version still
	// matches expectedVersion, bumping it by one. Returns false when the row
	// was modified concurrently (zero rows affected).
	UpdateWithVersion(ctx context.Context, tx *gorm.DB, id uuid.UUID, expectedVersion int, updates map[string]any) (bool, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]any) error
}

type userScenarioRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserScenarioRepo(db *gorm.DB, baseLog *logger.Logger) UserScenarioRepo {
	return &userScenarioRepo{db: db, log: baseLog.With("repo", "UserScenarioRepo")}
}

func (r *userScenarioRepo) Create(ctx context.Context, tx *gorm.DB, row *types.UserScenario) (*types.UserScenario, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if row == nil {
		return nil, nil
	}

	if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *userScenarioRepo) GetByUserAndScenario(ctx context.Context, tx *gorm.DB, userID, scenarioID uuid.UUID) (*types.UserScenario, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if userID == uuid.Nil || scenarioID == uuid.Nil {
		return nil, nil
	}

	var results []*types.UserScenario
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND scenario_id = ?", userID, scenarioID).
		Limit(1).
		Find(&results).Error; err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

func (r *userScenarioRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.UserScenario, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.UserScenario
	if userID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *userScenarioRepo) UpdateWithVersion(ctx context.Context, tx *gorm.DB, id uuid.UUID, expectedVersion int, updates map[string]any) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if id == uuid.Nil || len(updates) == 0 {
		return false, nil
	}

	updates["lock_version"] = expectedVersion + 1

	res := transaction.WithContext(ctx).
		Model(&types.UserScenario{}).
		Where("id = ? AND lock_version = ?", id, expectedVersion).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *userScenarioRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}

	return transaction.WithContext(ctx).
		Model(&types.UserScenario{}).
		Where("id = ?", id).
		Updates(updates).Error
}
