package models

import "time"

// PerformanceSubScores are the normalized components of a regional score.
type PerformanceSubScores struct {
	Tithe       float64 `json:"tithe"`
	Members     float64 `json:"members"`
	Submissions float64 `json:"submissions"`
	Comments    float64 `json:"comments"`
}

// PerformanceScore is the composite 0-100 score of a region over the scoring window.
type PerformanceScore struct {
	RegionID        string               `json:"region_id"`
	Total           float64              `json:"total"`
	Label           string               `json:"label"`
	Class           string               `json:"class"`
	SubScores       PerformanceSubScores `json:"sub_scores"`
	HasData         bool                 `json:"has_data"`
	SubmissionCount int                  `json:"submission_count"`
	WindowStart     time.Time            `json:"window_start"`
	ComputedAt      time.Time            `json:"computed_at"`
}

// RegionalPerformance pairs a region with its lead and score for overview screens.
type RegionalPerformance struct {
	Region   Location         `json:"region"`
	TeamLead *UserInfo        `json:"team_lead,omitempty"`
	Score    PerformanceScore `json:"score"`
}

// PerformanceMetric is a persisted snapshot of a regional score.
type PerformanceMetric struct {
	ID              string    `db:"id" json:"id"`
	RegionID        string    `db:"region_id" json:"region_id"`
	Score           float64   `db:"score" json:"score"`
	TitheScore      float64   `db:"tithe_score" json:"tithe_score"`
	MembersScore    float64   `db:"members_score" json:"members_score"`
	SubmissionScore float64   `db:"submission_score" json:"submission_score"`
	CommentScore    float64   `db:"comment_score" json:"comment_score"`
	SubmissionCount int       `db:"submission_count" json:"submission_count"`
	CalculatedAt    time.Time `db:"calculated_at" json:"calculated_at"`
}
