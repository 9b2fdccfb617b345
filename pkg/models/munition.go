package models

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/aegis-sim/aegis-sim/pkg/geo"
)

// MunitionType distinguishes an attack missile from a defensive
// interceptor; both are integrated by the same physics step, they differ
// only in thrust guidance and termination semantics.
type MunitionType string

const (
	MunitionAttack  MunitionType = "attack"
	MunitionDefense MunitionType = "defense"
)

// MunitionStatus is the lifecycle state of a live or terminated munition.
type MunitionStatus string

const (
	MunitionStatusActive        MunitionStatus = "active"
	MunitionStatusImpacted      MunitionStatus = "impacted"
	MunitionStatusIntercepted   MunitionStatus = "intercepted"
	MunitionStatusFuelExhausted MunitionStatus = "fuel_exhausted"
	MunitionStatusDestroyed     MunitionStatus = "destroyed"
)

// Vector3 is a plain Cartesian vector in the local equirectangular frame,
// meters and meters/second depending on context.
type Vector3 struct {
	X, Y, Z float64
}

// Munition is a live entity owned exclusively by the Simulation Engine
// while Status == MunitionStatusActive. Once terminal, it is removed from
// the engine's live map in the same tick that records its Outcome.
type Munition struct {
	ID                 uuid.UUID
	Callsign           string
	PlatformType       string
	Type               MunitionType
	LaunchInstallation string

	Position geo.Point
	Velocity Vector3

	FuelRemainingKg         float64
	MassKg                  float64
	ThrustN                 float64
	FuelConsumptionRateKgps float64
	DragCoefficient         float64
	CrossSectionM2          float64

	// TargetPosition is set for attack munitions; TargetMissileID for
	// defense munitions homing on a specific target.
	TargetPosition geo.Point
	TargetMissileID uuid.UUID
	HasTarget       bool

	BlastRadiusM float64

	Status     MunitionStatus
	LaunchTime time.Time

	// outcomeRecorded tracks whether a terminal munition's Outcome has
	// made it to durable storage yet; a transient persistence failure
	// keeps the munition in this terminal-but-unrecorded state so the
	// engine retries on the next tick instead of losing the outcome.
	OutcomeRecorded bool
}

// IsActive reports whether the munition is still under physics control.
func (m *Munition) IsActive() bool {
	return m.Status == MunitionStatusActive
}

// Speed returns the magnitude of the velocity vector.
func (m *Munition) Speed() float64 {
	v := m.Velocity
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Clone returns a value copy safe to hand to a goroutine that outlives the
// engine's tick, e.g. a buffered persistence write.
func (m *Munition) Clone() *Munition {
	c := *m
	return &c
}
