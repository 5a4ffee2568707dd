package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

func TestScoreSLAPenaltyClampsAtCap(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	recent := now.AddDate(0, 0, -10)

	// 10 breaches would be -50 unclamped; the cap keeps it at -30.
	score := Score(Input{
		SLABreaches:  10,
		LastReviewAt: &recent,
		Now:          now,
	})
	assert.Equal(t, 70.0, score)
}

func TestScoreSatisfactionAdjustment(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	recent := now.AddDate(0, 0, -5)

	perfect := Score(Input{Satisfaction: ptr(10.0), LastReviewAt: &recent, Now: now})
	assert.Equal(t, 100.0, perfect)

	unhappy := Score(Input{Satisfaction: ptr(1.0), LastReviewAt: &recent, Now: now})
	assert.Equal(t, 90.0, unhappy)
}

func TestScoreReviewPenalty(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		lastReview *time.Time
		want       float64
	}{
		{"within cycle", ptr(now.AddDate(0, 0, -30)), 100},
		{"20 days overdue", ptr(now.AddDate(0, 0, -110)), 90},
		{"far overdue clamps", ptr(now.AddDate(-2, 0, 0)), 80},
		{"never reviewed", nil, 90},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(Input{LastReviewAt: tt.lastReview, Now: now})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScoreUptimePenaltyCap(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	recent := now.AddDate(0, 0, -5)

	// 99.0% uptime is (99.9-99.0)*10 = 9 points. The subtraction is not
	// exact in float64, so compare within a tolerance.
	score := Score(Input{Uptime: ptr(99.0), LastReviewAt: &recent, Now: now})
	assert.InDelta(t, 91.0, score, 1e-9)

	// 90% uptime would be 99 points unclamped; the cap keeps it at 25.
	score = Score(Input{Uptime: ptr(90.0), LastReviewAt: &recent, Now: now})
	assert.InDelta(t, 75.0, score, 1e-9)
}

func TestScoreClampsToZero(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	score := Score(Input{
		SLABreaches:  100,
		Satisfaction: ptr(0.0),
		LastReviewAt: nil,
		Uptime:       ptr(0.0),
		Now:          now,
	})
	assert.GreaterOrEqual(t, score, 0.0)
	assert.Equal(t, 25.0, score) // 100 - 30 - 10 - 10 - 25
}

func TestClassifyBands(t *testing.T) {
	assert.Equal(t, BandHealthy, Classify(80))
	assert.Equal(t, BandFair, Classify(79.9))
	assert.Equal(t, BandFair, Classify(60))
	assert.Equal(t, BandPoor, Classify(59.9))
	assert.Equal(t, BandPoor, Classify(40))
	assert.Equal(t, BandCritical, Classify(39.9))
}
