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
	"github.com/noah-isme/region-ops-api/internal/repository"
	appErrors "github.com/noah-isme/region-ops-api/pkg/errors"
	"github.com/noah-isme/region-ops-api/pkg/sanitize"
)

const defaultMinReasonLength = 10

type changeRequestStore interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, unit repository.ChangeRequestUnit) error) error
	FindByID(ctx context.Context, id string) (*models.ChangeRequest, error)
	List(ctx context.Context, filter models.ChangeRequestFilter) ([]models.ChangeRequest, error)
}

type locationReader interface {
	FindByID(ctx context.Context, id string) (*models.Location, error)
}

type notifier interface {
	Notify(ctx context.Context, userID, message string) error
}

// ChangeRequestService runs the two-stage location change workflow.
type ChangeRequestService struct {
	store     changeRequestStore
	locations locationReader
	notifier  notifier
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
	minReason int
}

// ChangeRequestServiceOption configures the service.
type ChangeRequestServiceOption func(*ChangeRequestService)

// WithChangeRequestClock overrides the time source.
func WithChangeRequestClock(now func() time.Time) ChangeRequestServiceOption {
	return func(s *ChangeRequestService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMinReasonLength overrides the minimum rejection reason length.
func WithMinReasonLength(n int) ChangeRequestServiceOption {
	return func(s *ChangeRequestService) {
		if n > 0 {
			s.minReason = n
		}
	}
}

// WithChangeRequestMetrics attaches transition counters.
func WithChangeRequestMetrics(metrics *MetricsService) ChangeRequestServiceOption {
	return func(s *ChangeRequestService) {
		s.metrics = metrics
	}
}

// NewChangeRequestService constructs the service.
func NewChangeRequestService(store changeRequestStore, locations locationReader, notifier notifier, validate *validator.Validate, logger *zap.Logger, opts ...ChangeRequestServiceOption) *ChangeRequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	svc := &ChangeRequestService{
		store:     store,
		locations: locations,
		notifier:  notifier,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		minReason: defaultMinReasonLength,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Create opens a change request for the calling data entry user.
func (s *ChangeRequestService) Create(ctx context.Context, req dto.CreateChangeRequest, actor *models.JWTClaims) (*models.ChangeRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	var outcome *workflowOutcome
	err := s.store.WithinTransaction(ctx, func(ctx context.Context, unit repository.ChangeRequestUnit) error {
		requester, err := unit.LockUser(ctx, actor.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrUnauthorized
			}
			return err
		}
		target, err := optional(unit.FindLocation(ctx, req.TargetDistrictID))
		if err != nil {
			return err
		}
		open, err := optional(unit.FindOpenChangeRequest(ctx, requester.ID))
		if err != nil {
			return err
		}

		in := creationInput{
			Requester:  requester,
			Target:     target,
			Open:       open,
			IsExchange: req.IsExchange,
			Now:        s.now(),
		}
		if target != nil && target.IsDistrict() {
			if in.Incumbent, err = optional(unit.FindIncumbent(ctx, target.ID, requester.ID)); err != nil {
				return err
			}
			if in.TeamLead, err = optional(unit.FindTeamLead(ctx, *target.ParentID)); err != nil {
				return err
			}
		}

		outcome, err = decideCreation(in)
		if err != nil {
			return err
		}
		return unit.CreateChangeRequest(ctx, &outcome.Request)
	})
	if err != nil {
		return nil, s.translate(err, "failed to create change request")
	}

	s.metrics.RecordTransition("", outcome.Request.Status)
	s.dispatch(ctx, outcome)
	return &outcome.Request, nil
}

// ApproveByDataEntry is the incumbent's sign-off.
func (s *ChangeRequestService) ApproveByDataEntry(ctx context.Context, id string, actor *models.JWTClaims) (*models.ChangeRequest, error) {
	return s.transition(ctx, id, actor, "", fixedAction(models.ActionApproveByDataEntry))
}

// RejectByDataEntry is the incumbent's refusal.
func (s *ChangeRequestService) RejectByDataEntry(ctx context.Context, id string, actor *models.JWTClaims, reason string) (*models.ChangeRequest, error) {
	return s.transition(ctx, id, actor, reason, fixedAction(models.ActionRejectByDataEntry))
}

// ApproveByTeamLead completes the request and moves the users.
func (s *ChangeRequestService) ApproveByTeamLead(ctx context.Context, id string, actor *models.JWTClaims) (*models.ChangeRequest, error) {
	return s.transition(ctx, id, actor, "", fixedAction(models.ActionApproveByTeamLead))
}

// RejectByTeamLead is the team lead's refusal.
func (s *ChangeRequestService) RejectByTeamLead(ctx context.Context, id string, actor *models.JWTClaims, reason string) (*models.ChangeRequest, error) {
	return s.transition(ctx, id, actor, reason, fixedAction(models.ActionRejectByTeamLead))
}

// Approve applies the approval matching the request's current stage.
func (s *ChangeRequestService) Approve(ctx context.Context, id string, actor *models.JWTClaims) (*models.ChangeRequest, error) {
	return s.transition(ctx, id, actor, "", stageAction(true))
}

// Reject applies the rejection matching the request's current stage.
func (s *ChangeRequestService) Reject(ctx context.Context, id string, actor *models.JWTClaims, req dto.RejectChangeRequest) (*models.ChangeRequest, error) {
	return s.transition(ctx, id, actor, req.Reason, stageAction(false))
}

type actionResolver func(status models.ChangeRequestStatus) models.ChangeRequestAction

func fixedAction(action models.ChangeRequestAction) actionResolver {
	return func(models.ChangeRequestStatus) models.ChangeRequestAction { return action }
}

// stageAction picks the action from the locked status. Terminal statuses map
// to an action the transition table rejects.
func stageAction(approve bool) actionResolver {
	return func(status models.ChangeRequestStatus) models.ChangeRequestAction {
		if status == models.ChangeRequestPendingDataEntry {
			if approve {
				return models.ActionApproveByDataEntry
			}
			return models.ActionRejectByDataEntry
		}
		if approve {
			return models.ActionApproveByTeamLead
		}
		return models.ActionRejectByTeamLead
	}
}

func (s *ChangeRequestService) transition(ctx context.Context, id string, actor *models.JWTClaims, reason string, resolve actionResolver) (*models.ChangeRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	reason = sanitize.Text(reason)

	var (
		outcome *workflowOutcome
		from    models.ChangeRequestStatus
	)
	err := s.store.WithinTransaction(ctx, func(ctx context.Context, unit repository.ChangeRequestUnit) error {
		request, err := unit.LockChangeRequest(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrNotFound
			}
			return err
		}
		from = request.Status
		in := transitionInput{
			Request:   *request,
			Action:    resolve(request.Status),
			Reason:    reason,
			MinReason: s.minReason,
			Now:       s.now(),
		}
		if request.Status.Terminal() {
			return appErrors.ErrInvalidState
		}

		if in.Requester, err = unit.LockUser(ctx, request.RequesterID); err != nil {
			return err
		}
		if actor.UserID == request.RequesterID {
			in.Actor = in.Requester
		} else if in.Actor, err = optional(unit.LockUser(ctx, actor.UserID)); err != nil {
			return err
		}
		if in.Actor == nil {
			return appErrors.ErrUnauthorized
		}
		if in.Target, err = optional(unit.FindLocation(ctx, request.TargetDistrictID)); err != nil {
			return err
		}
		if in.Target != nil && in.Target.ParentID != nil {
			if in.TeamLead, err = optional(unit.FindTeamLead(ctx, *in.Target.ParentID)); err != nil {
				return err
			}
		}
		if request.IsExchange() && in.Action == models.ActionApproveByTeamLead {
			if in.Partner, err = optional(unit.LockUser(ctx, *request.ExchangeWithUserID)); err != nil {
				return err
			}
		}

		outcome, err = decideTransition(in)
		if err != nil {
			return err
		}

		next := outcome.Request
		if err := unit.UpdateChangeRequest(ctx, repository.UpdateChangeRequestParams{
			ID:                   next.ID,
			ExpectedStatus:       request.Status,
			Status:               next.Status,
			Reason:               next.Reason,
			DataEntryRespondedAt: next.DataEntryRespondedAt,
			TeamLeadRespondedAt:  next.TeamLeadRespondedAt,
			CompletedAt:          next.CompletedAt,
		}); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrInvalidState
			}
			return err
		}
		for _, move := range outcome.Moves {
			if err := unit.UpdateUserLocation(ctx, move.UserID, move.LocationID, in.Now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.translate(err, "failed to update change request")
	}

	s.metrics.RecordTransition(from, outcome.Request.Status)
	s.logger.Info("change request transitioned",
		zap.String("change_request_id", outcome.Request.ID),
		zap.String("from", string(from)),
		zap.String("to", string(outcome.Request.Status)),
		zap.String("actor_id", actor.UserID))
	s.dispatch(ctx, outcome)
	return &outcome.Request, nil
}

// Get returns a request visible to the actor.
func (s *ChangeRequestService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.ChangeRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	request, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load change request")
	}
	visible, err := s.visibleTo(ctx, request, actor)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, appErrors.ErrForbidden
	}
	return request, nil
}

func (s *ChangeRequestService) visibleTo(ctx context.Context, request *models.ChangeRequest, actor *models.JWTClaims) (bool, error) {
	switch actor.Role {
	case models.RoleViewer:
		return true, nil
	case models.RoleDataEntry:
		return request.RequesterID == actor.UserID || (actor.LocationID != "" && request.TargetDistrictID == actor.LocationID), nil
	case models.RoleTeamLead:
		if actor.LocationID == "" {
			return false, nil
		}
		target, err := s.locations.FindByID(ctx, request.TargetDistrictID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return false, nil
			}
			return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load target district")
		}
		return target.ParentID != nil && *target.ParentID == actor.LocationID, nil
	}
	return false, nil
}

// List returns requests scoped to the actor's role.
func (s *ChangeRequestService) List(ctx context.Context, query dto.ChangeRequestQuery, actor *models.JWTClaims) ([]models.ChangeRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	for _, status := range query.Status {
		if !status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown status "+string(status))
		}
	}
	filter := models.ChangeRequestFilter{Status: query.Status, Limit: query.Limit, Offset: query.Offset}
	switch actor.Role {
	case models.RoleViewer:
	case models.RoleDataEntry:
		filter.RequesterID = actor.UserID
		filter.TargetDistrictID = actor.LocationID
	case models.RoleTeamLead:
		if actor.LocationID == "" {
			return []models.ChangeRequest{}, nil
		}
		filter.RegionID = actor.LocationID
	default:
		return nil, appErrors.ErrForbidden
	}
	requests, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list change requests")
	}
	return requests, nil
}

// dispatch delivers notifications after commit. Failures are logged only.
func (s *ChangeRequestService) dispatch(ctx context.Context, outcome *workflowOutcome) {
	if s.notifier == nil || outcome == nil {
		return
	}
	for _, intent := range outcome.Notifications {
		if err := s.notifier.Notify(ctx, intent.UserID, intent.Message); err != nil {
			s.logger.Warn("change request notification failed",
				zap.String("change_request_id", outcome.Request.ID),
				zap.String("user_id", intent.UserID),
				zap.Error(err))
		}
	}
}

func (s *ChangeRequestService) translate(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

// optional turns a not-found lookup into a nil result.
func optional[T any](value *T, err error) (*T, error) {
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return value, nil
}
