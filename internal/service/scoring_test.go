package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/region-ops-api/internal/models"
	"github.com/noah-isme/region-ops-api/pkg/config"
)

func weeklySubmissions(n int, tithe float64, comment *string) []models.Submission {
	start := time.Date(2024, 3, 3, 10, 0, 0, 0, time.UTC)
	subs := make([]models.Submission, 0, n)
	for i := 0; i < n; i++ {
		subs = append(subs, models.Submission{
			ID:          "s" + string(rune('a'+i)),
			SubmittedAt: start.AddDate(0, 0, 7*i),
			Members:     10,
			Children:    4,
			Men:         3,
			Women:       3,
			TitheAmount: tithe,
			Comment:     comment,
			LocationID:  "d1",
		})
	}
	return subs
}

func TestScoreSubmissionsEmptyWindow(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	cfg := DefaultScoringConfig()

	score := ScoreSubmissions("r1", nil, cfg, cfg.Window(now), now)
	assert.Equal(t, 0.0, score.Total)
	assert.False(t, score.HasData)
	assert.Equal(t, "Poor", score.Label)
	assert.Equal(t, "poor", score.Class)
	assert.Equal(t, models.PerformanceSubScores{}, score.SubScores)
	assert.Equal(t, now.AddDate(0, 0, -90), score.WindowStart)
}

func TestScoreSubmissionsWeeklyScenario(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	cfg := DefaultScoringConfig()
	subs := weeklySubmissions(12, 100_000, strPtr("service went well"))

	score := ScoreSubmissions("r1", subs, cfg, cfg.Window(now), now)
	require.True(t, score.HasData)
	assert.Equal(t, 1.0, score.SubScores.Tithe)
	assert.InDelta(t, 0.012, score.SubScores.Members, 1e-9)
	assert.Equal(t, 1.0, score.SubScores.Submissions)
	assert.Equal(t, 1.0, score.SubScores.Comments)
	assert.Equal(t, 70.36, score.Total)
	assert.Equal(t, "Good", score.Label)
	assert.Equal(t, "good", score.Class)
	assert.Equal(t, 12, score.SubmissionCount)

	again := ScoreSubmissions("r1", subs, cfg, cfg.Window(now), now)
	assert.Equal(t, score, again)
}

func TestScoreSubmissionsPartialSignals(t *testing.T) {
	now := time.Now().UTC()
	cfg := DefaultScoringConfig()
	subs := weeklySubmissions(6, 50_000, nil)
	subs[0].Comment = strPtr("   ")
	subs[1].Comment = strPtr("late start")

	score := ScoreSubmissions("r1", subs, cfg, cfg.Window(now), now)
	assert.InDelta(t, 0.3, score.SubScores.Tithe, 1e-9)
	assert.InDelta(t, 0.5, score.SubScores.Submissions, 1e-9)
	assert.InDelta(t, 1.0/6.0, score.SubScores.Comments, 1e-9)
	// 100 * (0.12 + 0.0036 + 0.1 + 0.016666) = 24.03
	assert.Equal(t, 24.03, score.Total)
	assert.Equal(t, "Poor", score.Label)
}

func TestScoreSubmissionsDoesNotClampSubmissionRate(t *testing.T) {
	now := time.Now().UTC()
	cfg := DefaultScoringConfig()
	subs := weeklySubmissions(24, 100_000, strPtr("ok"))

	score := ScoreSubmissions("r1", subs, cfg, cfg.Window(now), now)
	assert.Equal(t, 2.0, score.SubScores.Submissions)
	assert.Equal(t, 1.0, score.SubScores.Tithe)
	assert.Equal(t, 90.36, score.Total)
	assert.Equal(t, "Very good", score.Label)
}

func TestPerformanceRatingBoundaries(t *testing.T) {
	cases := []struct {
		total float64
		label string
		class string
	}{
		{100, "Very good", "very-good"},
		{90, "Very good", "very-good"},
		{89.99, "Good", "good"},
		{70, "Good", "good"},
		{50, "Average", "average"},
		{49.99, "Poor", "poor"},
		{0, "Poor", "poor"},
	}
	for _, tc := range cases {
		label, class := PerformanceRating(tc.total)
		assert.Equal(t, tc.label, label, "total %v", tc.total)
		assert.Equal(t, tc.class, class, "total %v", tc.total)
	}
}

func TestScoringConfigFrom(t *testing.T) {
	cfg := ScoringConfigFrom(config.PerformanceConfig{WindowDays: 30, TitheTarget: 500_000})
	assert.Equal(t, 30, cfg.WindowDays)
	assert.Equal(t, 500_000.0, cfg.TitheTarget)
	assert.Equal(t, 500.0, cfg.MembersTarget)
	assert.Equal(t, 0.4, cfg.WeightTithe)

	custom := ScoringConfigFrom(config.PerformanceConfig{WeightTithe: 1})
	assert.Equal(t, 1.0, custom.WeightTithe)
	assert.Equal(t, 0.0, custom.WeightComments)
}
