package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/region-ops-api/internal/dto"
	"github.com/noah-isme/region-ops-api/internal/models"
	"github.com/noah-isme/region-ops-api/internal/repository"
	appErrors "github.com/noah-isme/region-ops-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Assign(ctx context.Context, params repository.AssignUserParams) (*models.User, error)
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
}

// UserService exposes the user directory and administrative assignment.
type UserService struct {
	repo        userRepository
	invalidator scoreInvalidator
	logger      *zap.Logger
	now         func() time.Time
}

// NewUserService creates an instance of UserService. invalidator may be nil.
func NewUserService(repo userRepository, invalidator scoreInvalidator, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		repo:        repo,
		invalidator: invalidator,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	if filter.Role != nil && !filter.Role.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}
	filter.Search = strings.TrimSpace(filter.Search)

	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	pagination := &models.Pagination{
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
	}

	return users, pagination, nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Assign moves a user to a new role and location. Only viewers may do this.
// A role change revokes the user's refresh tokens.
func (s *UserService) Assign(ctx context.Context, id string, req dto.AssignUserRequest, actor *models.JWTClaims) (*models.User, error) {
	if actor == nil || actor.Role != models.RoleViewer {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only viewers assign users")
	}
	if !req.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}
	if req.LocationID != nil && strings.TrimSpace(*req.LocationID) == "" {
		req.LocationID = nil
	}

	before, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.Assign(ctx, repository.AssignUserParams{
		ID:         id,
		Role:       req.Role,
		LocationID: req.LocationID,
		At:         s.now(),
	})
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		case errors.Is(err, repository.ErrRoleMismatch):
			return nil, appErrors.Clone(appErrors.ErrInvalidTarget, "location does not fit the role")
		case errors.Is(err, repository.ErrRegionHasLead):
			return nil, appErrors.Clone(appErrors.ErrConflict, "region already has a team lead")
		case errors.Is(err, repository.ErrOpenChangeRequest):
			return nil, appErrors.Clone(appErrors.ErrConflict, "user has an open change request")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign user")
	}

	if before.Role != user.Role {
		if err := s.repo.RevokeUserRefreshTokens(ctx, user.ID); err != nil {
			s.logger.Warn("revoke tokens after role change", zap.String("user_id", user.ID), zap.Error(err))
		}
	}
	if s.invalidator != nil && (before.Role == models.RoleTeamLead || user.Role == models.RoleTeamLead) {
		for _, loc := range []*string{before.LocationID, user.LocationID} {
			if loc != nil {
				s.invalidator.InvalidateLocation(ctx, *loc)
			}
		}
	}
	s.logger.Info("user assigned",
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)),
		zap.String("actor_id", actor.UserID))
	return user, nil
}
