package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/region-ops-api/internal/models"
)

const locationColumns = `id, code, name, type, parent_id, created_at`

// LocationRepository persists the flat region/district table.
type LocationRepository struct {
	db *sqlx.DB
}

// NewLocationRepository constructs the repository.
func NewLocationRepository(db *sqlx.DB) *LocationRepository {
	return &LocationRepository{db: db}
}

// Create inserts a location. Duplicate codes return ErrDuplicate.
func (r *LocationRepository) Create(ctx context.Context, location *models.Location) error {
	if location.ID == "" {
		location.ID = uuid.NewString()
	}
	if location.CreatedAt.IsZero() {
		location.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO locations (id, code, name, type, parent_id, created_at)
VALUES (:id, :code, :name, :type, :parent_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, location); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create location: %w", err)
	}
	return nil
}

// FindByID fetches a location by identifier.
func (r *LocationRepository) FindByID(ctx context.Context, id string) (*models.Location, error) {
	return getLocation(ctx, r.db, id, false)
}

func getLocation(ctx context.Context, q sqlx.QueryerContext, id string, lock bool) (*models.Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	var location models.Location
	if err := sqlx.GetContext(ctx, q, &location, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find location: %w", err)
	}
	return &location, nil
}

// List returns locations matching the filter ordered by type then name.
func (r *LocationRepository) List(ctx context.Context, filter models.LocationFilter) ([]models.Location, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + locationColumns + ` FROM locations`)
	args := make([]interface{}, 0, 2)
	conditions := make([]string, 0, 2)
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.ParentID != "" {
		args = append(args, filter.ParentID)
		conditions = append(conditions, fmt.Sprintf("parent_id = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY type DESC, name ASC")

	var locations []models.Location
	if err := r.db.SelectContext(ctx, &locations, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	return locations, nil
}

// Children returns the direct children of parentID.
func (r *LocationRepository) Children(ctx context.Context, parentID string) ([]models.Location, error) {
	return r.List(ctx, models.LocationFilter{ParentID: parentID})
}

// Delete removes a location that has no children and no assigned users.
// It returns ErrStillReferenced otherwise, and sql.ErrNoRows when id is unknown.
func (r *LocationRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM locations l
WHERE l.id = $1
  AND NOT EXISTS (SELECT 1 FROM locations c WHERE c.parent_id = l.id)
  AND NOT EXISTS (SELECT 1 FROM users u WHERE u.location_id = l.id)`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrStillReferenced
		}
		return fmt.Errorf("delete location: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check location delete rows: %w", err)
	}
	if rows == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return ErrStillReferenced
	}
	return nil
}
