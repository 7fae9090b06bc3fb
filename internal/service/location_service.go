package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/region-ops-api/internal/dto"
	"github.com/noah-isme/region-ops-api/internal/models"
	"github.com/noah-isme/region-ops-api/internal/repository"
	appErrors "github.com/noah-isme/region-ops-api/pkg/errors"
)

type locationRepository interface {
	Create(ctx context.Context, location *models.Location) error
	FindByID(ctx context.Context, id string) (*models.Location, error)
	List(ctx context.Context, filter models.LocationFilter) ([]models.Location, error)
	Children(ctx context.Context, parentID string) ([]models.Location, error)
	Delete(ctx context.Context, id string) error
}

// LocationService manages the region/district hierarchy.
type LocationService struct {
	repo        locationRepository
	leads       teamLeadFinder
	invalidator scoreInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewLocationService constructs the service. invalidator may be nil.
func NewLocationService(repo locationRepository, leads teamLeadFinder, invalidator scoreInvalidator, validate *validator.Validate, logger *zap.Logger) *LocationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &LocationService{repo: repo, leads: leads, invalidator: invalidator, validator: validate, logger: logger}
}

// CreateRegion adds a root region.
func (s *LocationService) CreateRegion(ctx context.Context, req dto.CreateRegionRequest) (*models.Location, error) {
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid region payload")
	}
	location := &models.Location{Code: req.Code, Name: req.Name, Type: models.LocationRegion}
	if err := s.create(ctx, location); err != nil {
		return nil, err
	}
	return location, nil
}

// CreateDistrict adds a district under an existing region.
func (s *LocationService) CreateDistrict(ctx context.Context, req dto.CreateDistrictRequest) (*models.Location, error) {
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid district payload")
	}
	parent, err := s.repo.FindByID(ctx, req.RegionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "parent region not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load region")
	}
	if !parent.IsRegion() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a district must belong to a region")
	}
	parentID := parent.ID
	location := &models.Location{Code: req.Code, Name: req.Name, Type: models.LocationDistrict, ParentID: &parentID}
	if err := s.create(ctx, location); err != nil {
		return nil, err
	}
	return location, nil
}

func (s *LocationService) create(ctx context.Context, location *models.Location) error {
	if err := s.repo.Create(ctx, location); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return appErrors.Clone(appErrors.ErrConflict, "location code already exists")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create location")
	}
	s.invalidate(ctx, location.ID)
	s.logger.Info("location created", zap.String("location_id", location.ID), zap.String("type", string(location.Type)))
	return nil
}

// Get returns a location by id.
func (s *LocationService) Get(ctx context.Context, id string) (*models.Location, error) {
	location, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "location not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load location")
	}
	return location, nil
}

// List returns locations matching the filter.
func (s *LocationService) List(ctx context.Context, filter models.LocationFilter) ([]models.Location, error) {
	if filter.Type != "" && filter.Type != models.LocationRegion && filter.Type != models.LocationDistrict {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown location type")
	}
	locations, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list locations")
	}
	return locations, nil
}

// Children returns the districts of a region.
func (s *LocationService) Children(ctx context.Context, regionID string) ([]models.Location, error) {
	if _, err := s.Get(ctx, regionID); err != nil {
		return nil, err
	}
	children, err := s.repo.Children(ctx, regionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list districts")
	}
	return children, nil
}

// Tree returns every region with its districts and the name of its team lead.
func (s *LocationService) Tree(ctx context.Context) ([]models.LocationNode, error) {
	all, err := s.repo.List(ctx, models.LocationFilter{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list locations")
	}

	byParent := make(map[string][]models.LocationNode)
	var regions []models.Location
	for _, location := range all {
		if location.IsRegion() {
			regions = append(regions, location)
			continue
		}
		if location.ParentID != nil {
			byParent[*location.ParentID] = append(byParent[*location.ParentID], models.LocationNode{Location: location})
		}
	}

	tree := make([]models.LocationNode, 0, len(regions))
	for _, region := range regions {
		node := models.LocationNode{Location: region, Children: byParent[region.ID]}
		lead, err := s.leads.FindTeamLead(ctx, region.ID)
		switch {
		case err == nil:
			name := lead.Name
			node.TeamLead = &name
		case !errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load team lead")
		}
		tree = append(tree, node)
	}
	return tree, nil
}

// Delete removes an unreferenced location.
func (s *LocationService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return appErrors.Clone(appErrors.ErrNotFound, "location not found")
		case errors.Is(err, repository.ErrStillReferenced):
			return appErrors.Clone(appErrors.ErrConflict, "location still has districts, users or reports")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete location")
	}
	s.invalidate(ctx, id)
	s.logger.Info("location deleted", zap.String("location_id", id))
	return nil
}

func (s *LocationService) invalidate(ctx context.Context, locationID string) {
	if s.invalidator != nil {
		s.invalidator.InvalidateLocation(ctx, locationID)
	}
}
