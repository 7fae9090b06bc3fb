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
)

const submissionColumns = `id, submitted_at, members, children, men, women, tithe_amount, comment,
       submitter_id, location_id, created_at, updated_at`

// MonthlyMembers is one bucket of the monthly members aggregate.
type MonthlyMembers struct {
	Month   time.Time `db:"month"`
	Members int64     `db:"members"`
}

// SubmissionRepository persists periodic reports.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// Create inserts a submission.
func (r *SubmissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = now
	}
	submission.CreatedAt = now
	submission.UpdatedAt = now
	const query = `INSERT INTO submissions
	(id, submitted_at, members, children, men, women, tithe_amount, comment, submitter_id, location_id, created_at, updated_at)
	VALUES (:id, :submitted_at, :members, :children, :men, :women, :tithe_amount, :comment, :submitter_id, :location_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, submission); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// FindByID fetches a submission by identifier.
func (r *SubmissionRepository) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find submission: %w", err)
	}
	return &submission, nil
}

// Update rewrites the numeric fields of a submission owned by submitterID.
// It returns sql.ErrNoRows when the row does not exist or belongs to someone else.
func (r *SubmissionRepository) Update(ctx context.Context, submission *models.Submission) error {
	submission.UpdatedAt = time.Now().UTC()
	const query = `UPDATE submissions SET
	submitted_at = :submitted_at, members = :members, children = :children, men = :men, women = :women,
	tithe_amount = :tithe_amount, comment = :comment, updated_at = :updated_at
	WHERE id = :id AND submitter_id = :submitter_id`
	result, err := r.db.NamedExecContext(ctx, query, submission)
	if err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check submission update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func submissionConditions(filter models.SubmissionFilter) (string, []interface{}) {
	conditions := make([]string, 0, 4)
	args := make([]interface{}, 0, 4)
	if len(filter.LocationIDs) > 0 {
		args = append(args, pq.Array(filter.LocationIDs))
		conditions = append(conditions, fmt.Sprintf("location_id = ANY($%d)", len(args)))
	}
	if filter.SubmitterID != "" {
		args = append(args, filter.SubmitterID)
		conditions = append(conditions, fmt.Sprintf("submitter_id = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, filter.From.UTC())
		conditions = append(conditions, fmt.Sprintf("submitted_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, filter.To.UTC())
		conditions = append(conditions, fmt.Sprintf("submitted_at < $%d", len(args)))
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// List returns a page of submissions, newest first, with the total count.
func (r *SubmissionRepository) List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, int, error) {
	where, args := submissionConditions(filter)
	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s FROM submissions%s ORDER BY submitted_at DESC LIMIT %d OFFSET %d",
		submissionColumns, where, pageSize, (page-1)*pageSize)

	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list submissions: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM submissions"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count submissions: %w", err)
	}
	return submissions, total, nil
}

// ListWindow returns every submission for the locations with
// since <= submitted_at <= until.
func (r *SubmissionRepository) ListWindow(ctx context.Context, locationIDs []string, since, until time.Time) ([]models.Submission, error) {
	if len(locationIDs) == 0 {
		return nil, nil
	}
	where, args := submissionConditions(models.SubmissionFilter{LocationIDs: locationIDs, From: &since})
	args = append(args, until.UTC())
	where += fmt.Sprintf(" AND submitted_at <= $%d", len(args))
	query := "SELECT " + submissionColumns + " FROM submissions" + where + " ORDER BY submitted_at ASC"
	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, query, args...); err != nil {
		return nil, fmt.Errorf("list submission window: %w", err)
	}
	return submissions, nil
}

// MonthlyMembers sums members per calendar month since the given time. An
// empty locationIDs aggregates every location.
func (r *SubmissionRepository) MonthlyMembers(ctx context.Context, locationIDs []string, since time.Time) ([]MonthlyMembers, error) {
	where, args := submissionConditions(models.SubmissionFilter{LocationIDs: locationIDs, From: &since})
	query := "SELECT date_trunc('month', submitted_at) AS month, COALESCE(SUM(members), 0) AS members FROM submissions" +
		where + " GROUP BY 1 ORDER BY 1"
	var buckets []MonthlyMembers
	if err := r.db.SelectContext(ctx, &buckets, query, args...); err != nil {
		return nil, fmt.Errorf("aggregate monthly members: %w", err)
	}
	return buckets, nil
}
