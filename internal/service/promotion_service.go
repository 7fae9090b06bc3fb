package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/region-ops-api/internal/dto"
	"github.com/noah-isme/region-ops-api/internal/models"
	"github.com/noah-isme/region-ops-api/internal/repository"
	appErrors "github.com/noah-isme/region-ops-api/pkg/errors"
)

type promotionRepository interface {
	Create(ctx context.Context, promotion *models.PromotionRequest) error
	List(ctx context.Context, filter models.PromotionFilter) ([]models.PromotionRequest, error)
	Review(ctx context.Context, params repository.ReviewPromotionParams) (*models.PromotionRequest, error)
}

type roleDirectory interface {
	ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error)
}

// PromotionService handles requests to become the team lead of a region.
type PromotionService struct {
	repo        promotionRepository
	locations   locationReader
	directory   roleDirectory
	notifier    notifier
	invalidator scoreInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewPromotionService constructs the service. invalidator may be nil.
func NewPromotionService(repo promotionRepository, locations locationReader, directory roleDirectory, notifier notifier, invalidator scoreInvalidator, validate *validator.Validate, logger *zap.Logger) *PromotionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &PromotionService{
		repo:        repo,
		locations:   locations,
		directory:   directory,
		notifier:    notifier,
		invalidator: invalidator,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Create files a pending promotion for the calling data entry user.
func (s *PromotionService) Create(ctx context.Context, req dto.CreatePromotionRequest, actor *models.JWTClaims) (*models.PromotionRequest, error) {
	if actor == nil || actor.Role != models.RoleDataEntry {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only data entry users can request a promotion")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid promotion payload")
	}
	region, err := s.locations.FindByID(ctx, req.RegionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "region not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load region")
	}
	if !region.IsRegion() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "promotion target must be a region")
	}

	promotion := &models.PromotionRequest{UserID: actor.UserID, RegionID: region.ID, RequestedAt: s.now()}
	if err := s.repo.Create(ctx, promotion); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a promotion request is already pending")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create promotion request")
	}

	reviewers, err := s.directory.ListByRole(ctx, models.RoleViewer)
	if err != nil {
		s.logger.Warn("load promotion reviewers", zap.Error(err))
	}
	message := fmt.Sprintf("%s asked to lead region %s", actor.Name, region.Name)
	for _, reviewer := range reviewers {
		s.notify(ctx, reviewer.ID, message)
	}
	return promotion, nil
}

// List returns promotion requests. Only viewers see other users' requests.
func (s *PromotionService) List(ctx context.Context, filter models.PromotionFilter, actor *models.JWTClaims) ([]models.PromotionRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleViewer {
		filter.UserID = actor.UserID
	}
	switch filter.Status {
	case "", models.PromotionPending, models.PromotionAccepted, models.PromotionRejected:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown promotion status")
	}
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list promotion requests")
	}
	return items, nil
}

// Review accepts or rejects a pending request. Accepting promotes the user
// to team lead of the requested region.
func (s *PromotionService) Review(ctx context.Context, id string, req dto.ReviewPromotionRequest, actor *models.JWTClaims) (*models.PromotionRequest, error) {
	if actor == nil || actor.Role != models.RoleViewer {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only viewers review promotions")
	}
	promotion, err := s.repo.Review(ctx, repository.ReviewPromotionParams{
		ID:         id,
		Accept:     req.Accept,
		ReviewerID: actor.UserID,
		At:         s.now(),
	})
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "promotion request not found")
		case errors.Is(err, repository.ErrAlreadyReviewed):
			return nil, appErrors.ErrInvalidState
		case errors.Is(err, repository.ErrRegionHasLead):
			return nil, appErrors.Clone(appErrors.ErrConflict, "region already has a team lead")
		case errors.Is(err, repository.ErrOpenChangeRequest):
			return nil, appErrors.Clone(appErrors.ErrConflict, "user has an open change request")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to review promotion request")
	}

	if promotion.Status == models.PromotionAccepted {
		if s.invalidator != nil {
			s.invalidator.InvalidateLocation(ctx, promotion.RegionID)
		}
		s.notify(ctx, promotion.UserID, "Your promotion request was accepted. You are now the team lead of your region.")
	} else {
		s.notify(ctx, promotion.UserID, "Your promotion request was rejected.")
	}
	s.logger.Info("promotion reviewed", zap.String("promotion_id", promotion.ID), zap.String("status", string(promotion.Status)))
	return promotion, nil
}

func (s *PromotionService) notify(ctx context.Context, userID, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, userID, message); err != nil {
		s.logger.Warn("promotion notification failed", zap.String("user_id", userID), zap.Error(err))
	}
}
