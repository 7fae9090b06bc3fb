package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/region-ops-api/internal/dto"
	"github.com/noah-isme/region-ops-api/internal/models"
	appErrors "github.com/noah-isme/region-ops-api/pkg/errors"
	"github.com/noah-isme/region-ops-api/pkg/sanitize"
)

type submissionRepository interface {
	Create(ctx context.Context, submission *models.Submission) error
	FindByID(ctx context.Context, id string) (*models.Submission, error)
	Update(ctx context.Context, submission *models.Submission) error
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, int, error)
}

type submissionUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type submissionLocationReader interface {
	FindByID(ctx context.Context, id string) (*models.Location, error)
	Children(ctx context.Context, parentID string) ([]models.Location, error)
}

type scoreInvalidator interface {
	InvalidateLocation(ctx context.Context, locationID string)
}

// SubmissionService records the periodic numeric reports.
type SubmissionService struct {
	repo        submissionRepository
	users       submissionUserReader
	locations   submissionLocationReader
	invalidator scoreInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewSubmissionService constructs the service. invalidator may be nil.
func NewSubmissionService(repo submissionRepository, users submissionUserReader, locations submissionLocationReader, invalidator scoreInvalidator, validate *validator.Validate, logger *zap.Logger) *SubmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SubmissionService{
		repo:        repo,
		users:       users,
		locations:   locations,
		invalidator: invalidator,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *SubmissionService) validatePayload(payload *dto.SubmissionPayload) error {
	if err := s.validator.Struct(payload); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}
	if payload.Members != payload.Children+payload.Men+payload.Women {
		return appErrors.Clone(appErrors.ErrValidation, "members must equal children + men + women")
	}
	if payload.SubmittedAt != nil && payload.SubmittedAt.After(s.now()) {
		return appErrors.Clone(appErrors.ErrValidation, "submitted_at must not be in the future")
	}
	payload.Comment = sanitize.Optional(payload.Comment)
	return nil
}

// Create files a report for the submitter's current location.
func (s *SubmissionService) Create(ctx context.Context, payload dto.SubmissionPayload, actor *models.JWTClaims) (*models.Submission, error) {
	if actor == nil || (actor.Role != models.RoleDataEntry && actor.Role != models.RoleTeamLead) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only data entry users and team leads submit reports")
	}
	if err := s.validatePayload(&payload); err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "user no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submitter")
	}
	if user.LocationID == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "submitter has no assigned location")
	}

	submission := &models.Submission{
		SubmittedAt: s.now(),
		Members:     payload.Members,
		Children:    payload.Children,
		Men:         payload.Men,
		Women:       payload.Women,
		TitheAmount: payload.TitheAmount,
		Comment:     payload.Comment,
		SubmitterID: user.ID,
		LocationID:  *user.LocationID,
	}
	if payload.SubmittedAt != nil {
		submission.SubmittedAt = payload.SubmittedAt.UTC()
	}
	if err := s.repo.Create(ctx, submission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create submission")
	}
	s.invalidate(ctx, submission.LocationID)
	s.logger.Info("submission recorded", zap.String("submission_id", submission.ID), zap.String("location_id", submission.LocationID))
	return submission, nil
}

// Update rewrites a report. Only the submitter may edit it.
func (s *SubmissionService) Update(ctx context.Context, id string, payload dto.SubmissionPayload, actor *models.JWTClaims) (*models.Submission, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validatePayload(&payload); err != nil {
		return nil, err
	}

	submission, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if submission.SubmitterID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the submitter can edit this report")
	}

	submission.Members = payload.Members
	submission.Children = payload.Children
	submission.Men = payload.Men
	submission.Women = payload.Women
	submission.TitheAmount = payload.TitheAmount
	submission.Comment = payload.Comment
	if payload.SubmittedAt != nil {
		submission.SubmittedAt = payload.SubmittedAt.UTC()
	}
	if err := s.repo.Update(ctx, submission); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update submission")
	}
	s.invalidate(ctx, submission.LocationID)
	return submission, nil
}

// List returns submissions visible to the actor. Data entry users see their
// own reports and team leads see their region.
func (s *SubmissionService) List(ctx context.Context, query dto.SubmissionQuery, actor *models.JWTClaims) ([]models.Submission, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	filter := models.SubmissionFilter{
		SubmitterID: query.SubmitterID,
		From:        query.From,
		To:          query.To,
		Page:        query.Page,
		PageSize:    query.PageSize,
	}
	if query.From != nil && query.To != nil && query.To.Before(*query.From) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}

	if query.LocationID != "" {
		ids, err := s.expandLocation(ctx, query.LocationID)
		if err != nil {
			return nil, nil, err
		}
		filter.LocationIDs = ids
	}

	switch actor.Role {
	case models.RoleDataEntry:
		filter.SubmitterID = actor.UserID
	case models.RoleTeamLead:
		if actor.LocationID == "" {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "team lead has no region")
		}
		region, err := s.expandLocation(ctx, actor.LocationID)
		if err != nil {
			return nil, nil, err
		}
		if len(filter.LocationIDs) == 0 {
			filter.LocationIDs = region
		} else if !subset(filter.LocationIDs, region) {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "location is outside your region")
		}
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return items, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// expandLocation returns the location and, for a region, its districts.
func (s *SubmissionService) expandLocation(ctx context.Context, id string) ([]string, error) {
	location, err := s.locations.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "location not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load location")
	}
	ids := []string{location.ID}
	if !location.IsRegion() {
		return ids, nil
	}
	children, err := s.locations.Children(ctx, location.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load districts")
	}
	for _, child := range children {
		ids = append(ids, child.ID)
	}
	return ids, nil
}

func (s *SubmissionService) invalidate(ctx context.Context, locationID string) {
	if s.invalidator != nil {
		s.invalidator.InvalidateLocation(ctx, locationID)
	}
}

func subset(ids, allowed []string) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, id := range allowed {
		set[id] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}
