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

const promotionColumns = `id, user_id, region_id, status, reviewer_id, requested_at, responded_at`

// ReviewPromotionParams groups the reviewer decision.
type ReviewPromotionParams struct {
	ID         string
	Accept     bool
	ReviewerID string
	At         time.Time
}

// PromotionRepository persists promotion requests.
type PromotionRepository struct {
	db *sqlx.DB
}

// NewPromotionRepository constructs the repository.
func NewPromotionRepository(db *sqlx.DB) *PromotionRepository {
	return &PromotionRepository{db: db}
}

// Create inserts a pending request. A second pending request for the same
// user violates the partial unique index and returns ErrDuplicate.
func (r *PromotionRepository) Create(ctx context.Context, promotion *models.PromotionRequest) error {
	if promotion.ID == "" {
		promotion.ID = uuid.NewString()
	}
	if promotion.RequestedAt.IsZero() {
		promotion.RequestedAt = time.Now().UTC()
	}
	promotion.Status = models.PromotionPending
	const query = `INSERT INTO promotion_requests (id, user_id, region_id, status, reviewer_id, requested_at, responded_at)
VALUES (:id, :user_id, :region_id, :status, :reviewer_id, :requested_at, :responded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, promotion); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create promotion request: %w", err)
	}
	return nil
}

// FindByID fetches a promotion request by identifier.
func (r *PromotionRepository) FindByID(ctx context.Context, id string) (*models.PromotionRequest, error) {
	return getPromotion(ctx, r.db, `id = $1`, id)
}

// FindPendingByUser returns the user's pending request, if any.
func (r *PromotionRepository) FindPendingByUser(ctx context.Context, userID string) (*models.PromotionRequest, error) {
	return getPromotion(ctx, r.db, `user_id = $1 AND status = $2 LIMIT 1`, userID, models.PromotionPending)
}

func getPromotion(ctx context.Context, q sqlx.QueryerContext, where string, args ...interface{}) (*models.PromotionRequest, error) {
	var promotion models.PromotionRequest
	query := `SELECT ` + promotionColumns + ` FROM promotion_requests WHERE ` + where
	if err := sqlx.GetContext(ctx, q, &promotion, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get promotion request: %w", err)
	}
	return &promotion, nil
}

// List returns promotion requests, newest first.
func (r *PromotionRepository) List(ctx context.Context, filter models.PromotionFilter) ([]models.PromotionRequest, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + promotionColumns + ` FROM promotion_requests`)
	args := make([]interface{}, 0, 2)
	conditions := make([]string, 0, 2)
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	fmt.Fprintf(&builder, " ORDER BY requested_at DESC LIMIT %d OFFSET %d", limit, offset)

	var promotions []models.PromotionRequest
	if err := r.db.SelectContext(ctx, &promotions, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list promotion requests: %w", err)
	}
	return promotions, nil
}

// Review settles a pending request in one transaction. Accepting locks the
// region row so two promotions into the same region serialize, then fails with
// ErrRegionHasLead when another team lead already holds it. The user row is
// locked before the open change request check, which orders it against
// change request creation. A request that is no longer pending yields
// ErrAlreadyReviewed.
func (r *PromotionRepository) Review(ctx context.Context, params ReviewPromotionParams) (*models.PromotionRequest, error) {
	var reviewed *models.PromotionRequest
	err := database.WithTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		promotion, err := getPromotion(ctx, tx, `id = $1 FOR UPDATE`, params.ID)
		if err != nil {
			return err
		}
		if promotion.Status != models.PromotionPending {
			return ErrAlreadyReviewed
		}

		status := models.PromotionRejected
		if params.Accept {
			status = models.PromotionAccepted
			if _, err := getLocation(ctx, tx, promotion.RegionID, true); err != nil {
				return err
			}
			var holder string
			err := tx.GetContext(ctx, &holder, `SELECT id FROM users WHERE role = $1 AND location_id = $2 AND id <> $3 LIMIT 1`,
				models.RoleTeamLead, promotion.RegionID, promotion.UserID)
			switch {
			case err == nil:
				return ErrRegionHasLead
			case !errors.Is(err, sql.ErrNoRows):
				return fmt.Errorf("check region lead: %w", err)
			}
			if _, err := getUser(ctx, tx, "lock promoted user", `id = $1 FOR UPDATE`, promotion.UserID); err != nil {
				return err
			}
			if err := checkNoOpenChangeRequest(ctx, tx, promotion.UserID); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `UPDATE users SET role = $2, location_id = $3, updated_at = $4 WHERE id = $1`,
				promotion.UserID, models.RoleTeamLead, promotion.RegionID, params.At); err != nil {
				return fmt.Errorf("promote user: %w", err)
			}
		}

		result, err := tx.ExecContext(ctx, `UPDATE promotion_requests SET status = $2, reviewer_id = $3, responded_at = $4
WHERE id = $1 AND status = $5`, promotion.ID, status, params.ReviewerID, params.At, models.PromotionPending)
		if err != nil {
			return fmt.Errorf("update promotion request: %w", err)
		}
		if rows, err := result.RowsAffected(); err != nil {
			return fmt.Errorf("check promotion rows: %w", err)
		} else if rows == 0 {
			return ErrAlreadyReviewed
		}

		promotion.Status = status
		promotion.ReviewerID = &params.ReviewerID
		at := params.At
		promotion.RespondedAt = &at
		reviewed = promotion
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reviewed, nil
}

// checkNoOpenChangeRequest fails with ErrOpenChangeRequest while the user is
// the requester or exchange partner of a pending change request. Callers hold
// the user row lock.
func checkNoOpenChangeRequest(ctx context.Context, tx *sqlx.Tx, userID string) error {
	var open string
	err := tx.GetContext(ctx, &open, `SELECT id FROM change_requests
WHERE (requester_id = $1 OR exchange_with_user_id = $1) AND status IN ($2, $3) LIMIT 1`,
		userID, models.ChangeRequestPendingDataEntry, models.ChangeRequestPendingTeamLead)
	switch {
	case err == nil:
		return ErrOpenChangeRequest
	case errors.Is(err, sql.ErrNoRows):
		return nil
	}
	return fmt.Errorf("check open change requests: %w", err)
}
