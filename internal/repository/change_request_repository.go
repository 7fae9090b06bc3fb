package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/region-ops-api/internal/models"
	"github.com/noah-isme/region-ops-api/pkg/database"
)

const changeRequestColumns = `id, requester_id, target_district_id, exchange_with_user_id, status, reason,
       requested_at, data_entry_responded_at, team_lead_responded_at, completed_at`

// ChangeRequestUnit is the set of reads and writes available inside one
// change-request transaction. Reads of rows that the transition mutates take
// row locks, so concurrent transitions on the same request or user serialize.
type ChangeRequestUnit interface {
	LockChangeRequest(ctx context.Context, id string) (*models.ChangeRequest, error)
	FindOpenChangeRequest(ctx context.Context, requesterID string) (*models.ChangeRequest, error)
	LockUser(ctx context.Context, id string) (*models.User, error)
	FindLocation(ctx context.Context, id string) (*models.Location, error)
	FindTeamLead(ctx context.Context, regionID string) (*models.User, error)
	FindIncumbent(ctx context.Context, districtID, excludeUserID string) (*models.User, error)
	CreateChangeRequest(ctx context.Context, request *models.ChangeRequest) error
	UpdateChangeRequest(ctx context.Context, params UpdateChangeRequestParams) error
	UpdateUserLocation(ctx context.Context, userID string, locationID *string, at time.Time) error
}

// UpdateChangeRequestParams describes a compare-and-set transition. The row is
// only written while its status still equals ExpectedStatus.
type UpdateChangeRequestParams struct {
	ID                   string
	ExpectedStatus       models.ChangeRequestStatus
	Status               models.ChangeRequestStatus
	Reason               *string
	DataEntryRespondedAt *time.Time
	TeamLeadRespondedAt  *time.Time
	CompletedAt          *time.Time
}

// ChangeRequestRepository persists change requests.
type ChangeRequestRepository struct {
	db *sqlx.DB
}

// NewChangeRequestRepository constructs the repository.
func NewChangeRequestRepository(db *sqlx.DB) *ChangeRequestRepository {
	return &ChangeRequestRepository{db: db}
}

// WithinTransaction runs fn against a transaction-scoped unit. Any error from fn
// rolls the whole transaction back.
func (r *ChangeRequestRepository) WithinTransaction(ctx context.Context, fn func(ctx context.Context, unit ChangeRequestUnit) error) error {
	return database.WithTx(ctx, r.db, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, func(tx *sqlx.Tx) error {
		return fn(ctx, &changeRequestTx{tx: tx})
	})
}

// FindByID fetches a change request by identifier.
func (r *ChangeRequestRepository) FindByID(ctx context.Context, id string) (*models.ChangeRequest, error) {
	return getChangeRequest(ctx, r.db, `id = $1`, id)
}

// List returns change requests matching the filter, newest first.
func (r *ChangeRequestRepository) List(ctx context.Context, filter models.ChangeRequestFilter) ([]models.ChangeRequest, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + changeRequestColumns + ` FROM change_requests cr`)
	args := make([]interface{}, 0, 5)
	conditions := make([]string, 0, 2)

	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			statuses[i] = string(s)
		}
		args = append(args, pq.Array(statuses))
		conditions = append(conditions, fmt.Sprintf("cr.status = ANY($%d)", len(args)))
	}

	scopes := make([]string, 0, 3)
	if filter.RequesterID != "" {
		args = append(args, filter.RequesterID)
		scopes = append(scopes, fmt.Sprintf("cr.requester_id = $%d", len(args)))
	}
	if filter.TargetDistrictID != "" {
		args = append(args, filter.TargetDistrictID)
		scopes = append(scopes, fmt.Sprintf("cr.target_district_id = $%d", len(args)))
	}
	if filter.RegionID != "" {
		args = append(args, filter.RegionID)
		scopes = append(scopes, fmt.Sprintf("EXISTS (SELECT 1 FROM locations l WHERE l.id = cr.target_district_id AND l.parent_id = $%d)", len(args)))
	}
	if len(scopes) > 0 {
		conditions = append(conditions, "("+strings.Join(scopes, " OR ")+")")
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY cr.requested_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	fmt.Fprintf(&builder, " LIMIT %d OFFSET %d", limit, offset)

	var requests []models.ChangeRequest
	if err := r.db.SelectContext(ctx, &requests, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list change requests: %w", err)
	}
	return requests, nil
}

func getChangeRequest(ctx context.Context, q sqlx.QueryerContext, where string, args ...interface{}) (*models.ChangeRequest, error) {
	query := `SELECT ` + changeRequestColumns + ` FROM change_requests WHERE ` + where
	var request models.ChangeRequest
	if err := sqlx.GetContext(ctx, q, &request, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get change request: %w", err)
	}
	return &request, nil
}

type changeRequestTx struct {
	tx *sqlx.Tx
}

func (u *changeRequestTx) LockChangeRequest(ctx context.Context, id string) (*models.ChangeRequest, error) {
	return getChangeRequest(ctx, u.tx, `id = $1 FOR UPDATE`, id)
}

func (u *changeRequestTx) FindOpenChangeRequest(ctx context.Context, requesterID string) (*models.ChangeRequest, error) {
	return getChangeRequest(ctx, u.tx, `requester_id = $1 AND status IN ($2, $3) ORDER BY requested_at DESC LIMIT 1`,
		requesterID, models.ChangeRequestPendingDataEntry, models.ChangeRequestPendingTeamLead)
}

func (u *changeRequestTx) LockUser(ctx context.Context, id string) (*models.User, error) {
	return getUser(ctx, u.tx, "lock user", `id = $1 FOR UPDATE`, id)
}

func (u *changeRequestTx) FindLocation(ctx context.Context, id string) (*models.Location, error) {
	return getLocation(ctx, u.tx, id, false)
}

func (u *changeRequestTx) FindTeamLead(ctx context.Context, regionID string) (*models.User, error) {
	return findTeamLead(ctx, u.tx, regionID, false)
}

func (u *changeRequestTx) FindIncumbent(ctx context.Context, districtID, excludeUserID string) (*models.User, error) {
	return findIncumbent(ctx, u.tx, districtID, excludeUserID)
}

func (u *changeRequestTx) CreateChangeRequest(ctx context.Context, request *models.ChangeRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.RequestedAt.IsZero() {
		request.RequestedAt = time.Now().UTC()
	}
	const query = `INSERT INTO change_requests
	(id, requester_id, target_district_id, exchange_with_user_id, status, reason, requested_at,
	 data_entry_responded_at, team_lead_responded_at, completed_at)
	VALUES (:id, :requester_id, :target_district_id, :exchange_with_user_id, :status, :reason, :requested_at,
	 :data_entry_responded_at, :team_lead_responded_at, :completed_at)`
	if _, err := u.tx.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create change request: %w", err)
	}
	return nil
}

func (u *changeRequestTx) UpdateChangeRequest(ctx context.Context, params UpdateChangeRequestParams) error {
	const query = `UPDATE change_requests SET
	status = :status,
	reason = COALESCE(:reason, reason),
	data_entry_responded_at = COALESCE(:data_entry_responded_at, data_entry_responded_at),
	team_lead_responded_at = COALESCE(:team_lead_responded_at, team_lead_responded_at),
	completed_at = COALESCE(:completed_at, completed_at)
	WHERE id = :id AND status = :expected_status`
	result, err := u.tx.NamedExecContext(ctx, query, map[string]interface{}{
		"id":                      params.ID,
		"expected_status":         params.ExpectedStatus,
		"status":                  params.Status,
		"reason":                  params.Reason,
		"data_entry_responded_at": params.DataEntryRespondedAt,
		"team_lead_responded_at":  params.TeamLeadRespondedAt,
		"completed_at":            params.CompletedAt,
	})
	if err != nil {
		return fmt.Errorf("update change request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check change request rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (u *changeRequestTx) UpdateUserLocation(ctx context.Context, userID string, locationID *string, at time.Time) error {
	return updateUserLocation(ctx, u.tx, userID, locationID, at)
}
