package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/carefully-app/carefully-backend/internal/apperr"
	"github.com/carefully-app/carefully-backend/internal/logger"
	"github.com/carefully-app/carefully-backend/internal/repos"
	"github.com/carefully-app/carefully-backend/internal/types"
)

// UserStats is the rollup snapshot shown on the trainee's profile. The
// counters come straight from the user row; in_progress is derived from the
// live session list.
type UserStats struct {
	TotalScenarios   int `json:"total_scenarios"`
	TotalTimeMinutes int `json:"total_time_minutes"`
	InProgress       int `json:"in_progress"`
}

type UserService interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*types.User, error)
	GetStats(ctx context.Context, userID uuid.UUID) (*UserStats, error)
	UpdateAvatarFromImage(ctx context.Context, userID uuid.UUID, raw []byte) (*types.User, error)
}

type userService struct {
	db            *gorm.DB
	log           *logger.Logger
	userRepo      repos.UserRepo
	sessionRepo   repos.UserScenarioRepo
	avatarService AvatarService
}

func NewUserService(db *gorm.DB, baseLog *logger.Logger, userRepo repos.UserRepo, sessionRepo repos.UserScenarioRepo, avatarService AvatarService) UserService {
	return &userService{
		db:            db,
		log:           baseLog.With("service", "UserService"),
		userRepo:      userRepo,
		sessionRepo:   sessionRepo,
		avatarService: avatarService,
	}
}

func (s *userService) GetByID(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	if userID == uuid.Nil {
		return nil, apperr.Unauthorized("unauthorized", "user required")
	}
	users, err := s.userRepo.GetByIDs(ctx, nil, []uuid.UUID{userID})
	if err != nil {
		return nil, fmt.Errorf("Failed to load user: %w", err)
	}
	if len(users) == 0 {
		return nil, apperr.NotFound("user_not_found", "user %s not found", userID)
	}
	return users[0], nil
}

func (s *userService) GetStats(ctx context.Context, userID uuid.UUID) (*UserStats, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	sessions, err := s.sessionRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("Failed to list sessions: %w", err)
	}

	stats := &UserStats{
		TotalScenarios:   user.TotalScenarios,
		TotalTimeMinutes: user.TotalTimeMinutes,
	}
	for _, sess := range sessions {
		if sess.Status == types.SessionStatusInProgress {
			stats.InProgress++
		}
	}
	return stats, nil
}

func (s *userService) UpdateAvatarFromImage(ctx context.Context, userID uuid.UUID, raw []byte) (*types.User, error) {
	if s.avatarService == nil {
		return nil, apperr.Validation("avatar_disabled", "avatar uploads are not enabled")
	}
	if len(raw) == 0 {
		return nil, apperr.Validation("empty_image", "image data required")
	}

	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.avatarService.CreateUserAvatarFromImage(ctx, user, raw); err != nil {
		return nil, apperr.Validation("bad_image", "could not process image: %v", err)
	}

	if err := s.userRepo.UpdateFields(ctx, nil, user.ID, map[string]any{
		"avatar_media_key": user.AvatarMediaKey,
		"avatar_url":       user.AvatarURL,
	}); err != nil {
		return nil, fmt.Errorf("Failed to store avatar reference: %w", err)
	}
	return user, nil
}
