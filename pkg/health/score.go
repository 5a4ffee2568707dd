// Package health computes the 0-100 service health score.
//
// The score is derived from SLA breach counts, client satisfaction, review
// recency, and uptime. Both the lifecycle orchestrator and the monitoring
// service consume this package so the formula lives in exactly one place.
package health

import "time"

const (
	// BaseScore is the starting point before penalties and adjustments.
	BaseScore = 100.0

	slaPenaltyPerBreach = 5.0
	slaPenaltyCap       = 30.0

	satisfactionBaseline  = 7.5
	satisfactionWeight    = 4.0
	satisfactionAdjustCap = 10.0
	satisfactionScaleMax  = 10.0

	reviewCycleDays     = 90
	reviewPenaltyPerDay = 0.5
	reviewPenaltyCap    = 20.0

	uptimeTarget     = 99.9
	uptimeWeight     = 10.0
	uptimePenaltyCap = 25.0
)

// Band lower bounds.
const (
	HealthyMin = 80.0
	FairMin    = 60.0
	PoorMin    = 40.0
)

// Band classifies a score into an operational severity band.
type Band string

const (
	BandHealthy  Band = "healthy"
	BandFair     Band = "fair"
	BandPoor     Band = "poor"
	BandCritical Band = "critical"
)

// Input carries the raw signals for a single service.
type Input struct {
	SLABreaches  int
	Satisfaction *float64   // 1..10 scale, nil when never surveyed
	LastReviewAt *time.Time // nil when never reviewed
	Uptime       *float64   // percentage, nil when monitoring is not wired
	Now          time.Time
}

// Score computes the clamped 0-100 health score for the given input.
func Score(in Input) float64 {
	score := BaseScore

	score -= slaPenalty(in.SLABreaches)
	score += satisfactionAdjustment(in.Satisfaction)
	score -= reviewPenalty(in.LastReviewAt, in.Now)
	score -= uptimePenalty(in.Uptime)

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Classify maps a score to its band: healthy >=80, fair >=60, poor >=40, critical below.
func Classify(score float64) Band {
	switch {
	case score >= HealthyMin:
		return BandHealthy
	case score >= FairMin:
		return BandFair
	case score >= PoorMin:
		return BandPoor
	default:
		return BandCritical
	}
}

func slaPenalty(breaches int) float64 {
	if breaches <= 0 {
		return 0
	}
	penalty := float64(breaches) * slaPenaltyPerBreach
	if penalty > slaPenaltyCap {
		return slaPenaltyCap
	}
	return penalty
}

func satisfactionAdjustment(satisfaction *float64) float64 {
	if satisfaction == nil {
		return 0
	}
	value := *satisfaction
	if value < 0 {
		value = 0
	}
	if value > satisfactionScaleMax {
		value = satisfactionScaleMax
	}
	adjustment := (value - satisfactionBaseline) * satisfactionWeight
	if adjustment > satisfactionAdjustCap {
		return satisfactionAdjustCap
	}
	if adjustment < -satisfactionAdjustCap {
		return -satisfactionAdjustCap
	}
	return adjustment
}

func reviewPenalty(lastReview *time.Time, now time.Time) float64 {
	if lastReview == nil {
		// Never reviewed counts as half the cap rather than the full
		// overdue penalty so brand-new services do not start "poor".
		return reviewPenaltyCap / 2
	}
	overdueDays := int(now.Sub(*lastReview).Hours()/24) - reviewCycleDays
	if overdueDays <= 0 {
		return 0
	}
	penalty := float64(overdueDays) * reviewPenaltyPerDay
	if penalty > reviewPenaltyCap {
		return reviewPenaltyCap
	}
	return penalty
}

func uptimePenalty(uptime *float64) float64 {
	if uptime == nil || *uptime >= uptimeTarget {
		return 0
	}
	penalty := (uptimeTarget - *uptime) * uptimeWeight
	if penalty > uptimePenaltyCap {
		return uptimePenaltyCap
	}
	return penalty
}
