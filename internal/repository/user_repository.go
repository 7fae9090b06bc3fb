package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/region-ops-api/internal/models"
	"github.com/noah-isme/region-ops-api/pkg/database"
)

const userColumns = `id, name, matriculate, phone, password_hash, role, location_id, created_at, updated_at`

// UserRepository provides database access for the user directory.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func getUser(ctx context.Context, q sqlx.QueryerContext, label, where string, args ...interface{}) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	var user models.User
	if err := sqlx.GetContext(ctx, q, &user, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	return &user, nil
}

// FindByMatriculate returns a user by matriculate number.
func (r *UserRepository) FindByMatriculate(ctx context.Context, matriculate string) (*models.User, error) {
	return getUser(ctx, r.db, "find user by matriculate", `matriculate = $1 LIMIT 1`, matriculate)
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return getUser(ctx, r.db, "find user by id", `id = $1 LIMIT 1`, id)
}

// FindTeamLead returns the team lead assigned to regionID.
func (r *UserRepository) FindTeamLead(ctx context.Context, regionID string) (*models.User, error) {
	return findTeamLead(ctx, r.db, regionID, false)
}

func findTeamLead(ctx context.Context, q sqlx.QueryerContext, regionID string, lock bool) (*models.User, error) {
	where := `role = $1 AND location_id = $2 ORDER BY created_at ASC LIMIT 1`
	if lock {
		where += ` FOR UPDATE`
	}
	return getUser(ctx, q, "find team lead", where, models.RoleTeamLead, regionID)
}

func findIncumbent(ctx context.Context, q sqlx.QueryerContext, districtID, excludeUserID string) (*models.User, error) {
	return getUser(ctx, q, "find incumbent",
		`role = $1 AND location_id = $2 AND id <> $3 ORDER BY created_at ASC LIMIT 1 FOR UPDATE`,
		models.RoleDataEntry, districtID, excludeUserID)
}

// ListByRole returns every user with the given role.
func (r *UserRepository) ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role = $1 ORDER BY name ASC`
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, role); err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	return users, nil
}

// List returns users based on filters with total count.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	baseQuery := `FROM users WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Role != nil {
		args = append(args, *filter.Role)
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)))
	}
	if filter.LocationID != "" {
		args = append(args, filter.LocationID)
		conditions = append(conditions, fmt.Sprintf("location_id = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(matriculate) LIKE $%d)", len(args), len(args)))
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY name ASC LIMIT %d OFFSET %d", userColumns, baseQuery, pageSize, offset)
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	return users, total, nil
}

// Create inserts a new user. Duplicate matriculate or phone returns ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	const query = `INSERT INTO users (id, name, matriculate, phone, password_hash, role, location_id, created_at, updated_at)
VALUES (:id, :name, :matriculate, :phone, :password_hash, :role, :location_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// AssignUserParams is an administrative role and location change.
type AssignUserParams struct {
	ID         string
	Role       models.UserRole
	LocationID *string
	At         time.Time
}

// Assign changes a user's role and location in one transaction. A region
// already led by someone else yields ErrRegionHasLead. Moving or re-roling a
// user with an open change request fails with ErrOpenChangeRequest.
func (r *UserRepository) Assign(ctx context.Context, params AssignUserParams) (*models.User, error) {
	var assigned *models.User
	err := database.WithTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		var location *models.Location
		if params.LocationID != nil {
			found, err := getLocation(ctx, tx, *params.LocationID, true)
			if errors.Is(err, sql.ErrNoRows) {
				return ErrRoleMismatch
			}
			if err != nil {
				return err
			}
			location = found
		}
		if err := checkRoleLocation(params.Role, location); err != nil {
			return err
		}

		user, err := getUser(ctx, tx, "lock user", `id = $1 FOR UPDATE`, params.ID)
		if err != nil {
			return err
		}
		if params.Role == models.RoleTeamLead {
			var holder string
			err := tx.GetContext(ctx, &holder, `SELECT id FROM users WHERE role = $1 AND location_id = $2 AND id <> $3 LIMIT 1`,
				models.RoleTeamLead, location.ID, user.ID)
			switch {
			case err == nil:
				return ErrRegionHasLead
			case !errors.Is(err, sql.ErrNoRows):
				return fmt.Errorf("check region lead: %w", err)
			}
		}
		if user.Role != params.Role || !sameLocation(user.LocationID, params.LocationID) {
			if err := checkNoOpenChangeRequest(ctx, tx, user.ID); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, `UPDATE users SET role = $2, location_id = $3, updated_at = $4 WHERE id = $1`,
			user.ID, params.Role, params.LocationID, params.At); err != nil {
			return fmt.Errorf("assign user: %w", err)
		}
		user.Role = params.Role
		user.LocationID = params.LocationID
		user.UpdatedAt = params.At
		assigned = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return assigned, nil
}

// checkRoleLocation enforces the location type each role may hold.
func checkRoleLocation(role models.UserRole, location *models.Location) error {
	switch role {
	case models.RoleDataEntry:
		if location != nil && !location.IsDistrict() {
			return ErrRoleMismatch
		}
	case models.RoleTeamLead:
		if location == nil || !location.IsRegion() {
			return ErrRoleMismatch
		}
	case models.RoleViewer:
		if location != nil {
			return ErrRoleMismatch
		}
	default:
		return ErrRoleMismatch
	}
	return nil
}

func sameLocation(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func updateUserLocation(ctx context.Context, e sqlx.ExecerContext, userID string, locationID *string, at time.Time) error {
	const query = `UPDATE users SET location_id = $2, updated_at = $3 WHERE id = $1`
	result, err := e.ExecContext(ctx, query, userID, locationID, at)
	if err != nil {
		return fmt.Errorf("update user location: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check user location rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CreateRefreshToken persists a refresh token entry.
func (r *UserRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent)
VALUES (:id, :user_id, :token, :expires_at, :created_at, :revoked, :revoked_at, :ip_address, :user_agent)`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindRefreshToken returns a refresh token by token string.
func (r *UserRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	const query = `SELECT id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent
FROM refresh_tokens WHERE token = $1 LIMIT 1`
	var rt models.RefreshToken
	if err := r.db.GetContext(ctx, &rt, query, token); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &rt, nil
}

// RevokeRefreshToken marks a single token as revoked.
func (r *UserRepository) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1 AND revoked = FALSE`
	result, err := r.db.ExecContext(ctx, query, id, revokedAt)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check revoke rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// RevokeUserRefreshTokens revokes all active tokens for a user.
func (r *UserRepository) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE user_id = $1 AND revoked = FALSE`
	if _, err := r.db.ExecContext(ctx, query, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
