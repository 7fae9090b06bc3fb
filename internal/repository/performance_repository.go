package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/region-ops-api/internal/models"
)

// PerformanceRepository stores regional score snapshots.
type PerformanceRepository struct {
	db *sqlx.DB
}

// NewPerformanceRepository constructs the repository.
func NewPerformanceRepository(db *sqlx.DB) *PerformanceRepository {
	return &PerformanceRepository{db: db}
}

// InsertMetric persists one snapshot.
func (r *PerformanceRepository) InsertMetric(ctx context.Context, metric *models.PerformanceMetric) error {
	if metric.ID == "" {
		metric.ID = uuid.NewString()
	}
	const query = `INSERT INTO performance_metrics
	(id, region_id, score, tithe_score, members_score, submission_score, comment_score, submission_count, calculated_at)
	VALUES (:id, :region_id, :score, :tithe_score, :members_score, :submission_score, :comment_score, :submission_count, :calculated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, metric); err != nil {
		return fmt.Errorf("insert performance metric: %w", err)
	}
	return nil
}

// History returns the latest snapshots of a region, newest first.
func (r *PerformanceRepository) History(ctx context.Context, regionID string, limit int) ([]models.PerformanceMetric, error) {
	if limit <= 0 || limit > 500 {
		limit = 30
	}
	const query = `SELECT id, region_id, score, tithe_score, members_score, submission_score, comment_score, submission_count, calculated_at
FROM performance_metrics WHERE region_id = $1 ORDER BY calculated_at DESC LIMIT $2`
	var metrics []models.PerformanceMetric
	if err := r.db.SelectContext(ctx, &metrics, query, regionID, limit); err != nil {
		return nil, fmt.Errorf("list performance history: %w", err)
	}
	return metrics, nil
}
