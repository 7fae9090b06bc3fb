package service

import (
	"math"
	"time"

	"github.com/noah-isme/region-ops-api/internal/models"
	"github.com/noah-isme/region-ops-api/pkg/config"
)

// ScoringConfig holds the calibration constants of the regional score.
type ScoringConfig struct {
	WindowDays          int
	TitheTarget         float64
	MembersTarget       float64
	ExpectedSubmissions float64
	WeightTithe         float64
	WeightMembers       float64
	WeightSubmissions   float64
	WeightComments      float64
}

// DefaultScoringConfig returns the production calibration.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		WindowDays:          90,
		TitheTarget:         1_000_000,
		MembersTarget:       500,
		ExpectedSubmissions: 12,
		WeightTithe:         0.4,
		WeightMembers:       0.3,
		WeightSubmissions:   0.2,
		WeightComments:      0.1,
	}
}

// ScoringConfigFrom maps the performance settings, keeping defaults for unset values.
func ScoringConfigFrom(cfg config.PerformanceConfig) ScoringConfig {
	out := DefaultScoringConfig()
	if cfg.WindowDays > 0 {
		out.WindowDays = cfg.WindowDays
	}
	if cfg.TitheTarget > 0 {
		out.TitheTarget = cfg.TitheTarget
	}
	if cfg.MembersTarget > 0 {
		out.MembersTarget = cfg.MembersTarget
	}
	if cfg.ExpectedSubmissions > 0 {
		out.ExpectedSubmissions = cfg.ExpectedSubmissions
	}
	if sum := cfg.WeightTithe + cfg.WeightMembers + cfg.WeightSubmissions + cfg.WeightComments; sum > 0 {
		out.WeightTithe = cfg.WeightTithe
		out.WeightMembers = cfg.WeightMembers
		out.WeightSubmissions = cfg.WeightSubmissions
		out.WeightComments = cfg.WeightComments
	}
	return out
}

// Window returns the inclusive start of the scoring window ending at now.
func (c ScoringConfig) Window(now time.Time) time.Time {
	return now.AddDate(0, 0, -c.WindowDays)
}

// ScoreSubmissions computes the composite score of one region. subs must
// already be restricted to the region, its districts and the window.
func ScoreSubmissions(regionID string, subs []models.Submission, cfg ScoringConfig, windowStart, now time.Time) models.PerformanceScore {
	score := models.PerformanceScore{
		RegionID:        regionID,
		SubmissionCount: len(subs),
		HasData:         len(subs) > 0,
		WindowStart:     windowStart,
		ComputedAt:      now,
	}

	if len(subs) > 0 {
		var tithe float64
		var adults, commented int
		for _, sub := range subs {
			tithe += sub.TitheAmount
			adults += sub.Men + sub.Women
			if sub.HasComment() {
				commented++
			}
		}
		count := float64(len(subs))
		score.SubScores = models.PerformanceSubScores{
			Tithe:       math.Min(tithe/cfg.TitheTarget, 1),
			Members:     float64(adults) / count / cfg.MembersTarget,
			Submissions: count / cfg.ExpectedSubmissions,
			Comments:    float64(commented) / count,
		}
	}

	weighted := cfg.WeightTithe*score.SubScores.Tithe +
		cfg.WeightMembers*score.SubScores.Members +
		cfg.WeightSubmissions*score.SubScores.Submissions +
		cfg.WeightComments*score.SubScores.Comments
	score.Total = roundTo(100*weighted, 2)
	score.Label, score.Class = PerformanceRating(score.Total)
	return score
}

// PerformanceRating maps a total to its label and CSS class.
func PerformanceRating(total float64) (string, string) {
	switch {
	case total >= 90:
		return "Very good", "very-good"
	case total >= 70:
		return "Good", "good"
	case total >= 50:
		return "Average", "average"
	default:
		return "Poor", "poor"
	}
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
