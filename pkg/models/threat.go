package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/aegis-sim/aegis-sim/pkg/geo"
)

// ThreatLevel classifies urgency by time-to-impact.
type ThreatLevel string

const (
	ThreatLow      ThreatLevel = "low"
	ThreatMedium   ThreatLevel = "medium"
	ThreatHigh     ThreatLevel = "high"
	ThreatCritical ThreatLevel = "critical"
)

// EngagementAttempt records one engagement order issued against a target,
// kept in the Command Center's per-target attempt ledger.
type EngagementAttempt struct {
	BatteryCallsign string
	OrderedAt       time.Time
	Succeeded       *bool
	FailureReason   string
}

// ThreatAssessment is the Command Center's exclusive, ephemeral evaluation
// of one tracked attack munition. It is never mutated by any other
// component.
type ThreatAssessment struct {
	MissileID        uuid.UUID
	Position         geo.Point
	HasVelocity      bool
	Velocity         Vector3
	PredictedImpact  geo.Point
	TimeToImpactSec  float64
	Level            ThreatLevel
	Confidence       float64
	DetectingRadars  map[string]struct{}
	Attempts         []EngagementAttempt
	FirstNegativeTTI time.Time
	HasNegativeTTI   bool
}

// AttemptCount returns how many engagement orders have been issued for
// this target so far.
func (t *ThreatAssessment) AttemptCount() int {
	return len(t.Attempts)
}

// Track is the Radar Subsystem's exclusive, ephemeral correlation of
// repeated sightings of one munition.
type Track struct {
	MissileID        uuid.UUID
	FirstDetection   time.Time
	LastDetection    time.Time
	DetectionCount   int
	Confidence       float64
	DetectingRadars  map[string]struct{}
}

// EngagementOrder is the message the Command Center publishes to direct a
// specific battery to intercept a specific munition.
type EngagementOrder struct {
	TargetMissileID       uuid.UUID
	BatteryCallsign       string
	InterceptPoint        geo.Point
	InterceptAltitudeM    float64
	ProbabilityOfSuccess  float64
	OrderTimestamp        time.Time
}

// OutcomeType is the terminal classification of a munition's flight.
type OutcomeType string

const (
	OutcomeDetonated      OutcomeType = "detonated"
	OutcomeFuelExhaustion OutcomeType = "fuel_exhaustion"
	OutcomeGroundImpact   OutcomeType = "ground_impact"
	OutcomeIntercepted    OutcomeType = "intercepted"
)

// Outcome is the durable, insert-only record of a munition's termination.
type Outcome struct {
	MissileID             uuid.UUID
	OutcomeType           OutcomeType
	Location              geo.Point
	TargetAchieved        bool
	InterceptingMissileID uuid.UUID
	HasInterceptingMissile bool
	Notes                 string
	RecordedAt            time.Time
}
