// Package physics implements the per-tick dynamics every munition is
// integrated under: gravity, atmospheric/water drag, phase-dependent
// thrust guidance, and buoyancy while submerged. Integration is first-order
// explicit (Euler) at the engine's fixed 100ms tick, as the design mandates;
// a higher-order integrator may be substituted as long as per-tick error
// stays small enough that intercept geometry matches within one blast
// radius.
package physics

import (
	"math"
	"time"

	"github.com/aegis-sim/aegis-sim/pkg/geo"
	"github.com/aegis-sim/aegis-sim/pkg/models"
)

const (
	gravityAtSurface = 9.80665 // m/s^2

	airDensitySeaLevel = 1.225   // kg/m^3
	atmosphereScaleHt  = 8500.0  // meters

	waterDensityBase      = 1025.0 // kg/m^3
	waterDepthCorrectionPerM = 0.01
	waterDragCoefficient  = 0.35
	waterDragSpeedKnee    = 50.0 // m/s, above which drag coefficient rises 20%

	verticalBoostCeilingM = 1000.0
	ballisticCeilingM     = 50_000.0
	minBallisticAngleDeg  = 30.0
	maxBallisticAngleDeg  = 60.0

	underwaterBoostDuration = 3 * time.Second
	underwaterBoostLowFrac  = 0.5
	underwaterBoostHighFrac = 0.9
)

// gravity returns the downward acceleration at altitude alt (meters above
// mean sea level), using an inverse-square law anchored at Earth's surface.
func gravity(alt float64) float64 {
	r := geo.EarthRadiusM
	ratio := r / (r + alt)
	return gravityAtSurface * ratio * ratio
}

// airDensity returns kg/m^3 at altitude alt using an exponential
// atmosphere model.
func airDensity(alt float64) float64 {
	return airDensitySeaLevel * math.Exp(-alt/atmosphereScaleHt)
}

// waterDensity returns kg/m^3 at depth (positive meters below the surface),
// with a small linear correction for compressibility at depth.
func waterDensity(depth float64) float64 {
	return waterDensityBase + waterDepthCorrectionPerM*depth
}

// dragForce returns the drag force vector (opposing velocity); the caller
// divides it by mass.
func dragForce(velocity models.Vector3, speed float64, submerged bool, alt float64, cd, area float64) models.Vector3 {
	if speed < 1e-6 {
		return models.Vector3{}
	}

	var rho float64
	if submerged {
		rho = waterDensity(-alt)
		cd = waterDragCoefficient
		if speed > waterDragSpeedKnee {
			cd *= 1.2
		}
	} else {
		rho = airDensity(alt)
	}

	mag := 0.5 * rho * speed * speed * cd * area
	ux, uy, uz := geo.Normalize(velocity.X, velocity.Y, velocity.Z)
	return models.Vector3{X: -mag * ux, Y: -mag * uy, Z: -mag * uz}
}

// thrustDirection computes the unit thrust vector and the fraction of full
// ThrustN applied, given the munition's phase. ref is the local-frame
// origin (the munition's own launch site is a reasonable choice; callers
// project target and own position relative to the same reference so the
// bearing math stays consistent).
func thrustDirection(m *models.Munition, flightTime time.Duration, ref geo.Point) (dir models.Vector3, fraction float64) {
	alt := m.Position.Alt

	if alt < 0 {
		// Underwater launch: straight up, ramping from 50% to 90% thrust
		// after the first three seconds.
		frac := underwaterBoostLowFrac
		if flightTime >= underwaterBoostDuration {
			frac = underwaterBoostHighFrac
		}
		return models.Vector3{Z: 1}, frac
	}

	if m.Type == models.MunitionDefense && m.HasTarget {
		// homing guidance is resolved by the caller (it needs the live
		// target munition's current position); thrustDirection only
		// handles the attack-missile phase ladder. Defense guidance is
		// computed in Step via homingDirection.
		return models.Vector3{}, 0
	}

	switch {
	case alt < verticalBoostCeilingM:
		return models.Vector3{Z: 1}, 1.0
	case alt < ballisticCeilingM:
		own := geo.Project(m.Position, ref)
		tgt := geo.Project(m.TargetPosition, ref)
		dx, dy := tgt.X-own.X, tgt.Y-own.Y
		horiz := math.Sqrt(dx*dx + dy*dy)

		angleDeg := math.Atan2(alt, math.Max(horiz, 1)) * 180 / math.Pi
		if angleDeg < minBallisticAngleDeg {
			angleDeg = minBallisticAngleDeg
		} else if angleDeg > maxBallisticAngleDeg {
			angleDeg = maxBallisticAngleDeg
		}
		angleRad := angleDeg * math.Pi / 180

		hx, hy := geo.Normalize(dx, dy, 0)
		horizComponent := math.Cos(angleRad)
		vertComponent := math.Sin(angleRad)
		return models.Vector3{X: hx * horizComponent, Y: hy * horizComponent, Z: vertComponent}, 1.0
	default:
		return models.Vector3{}, 0
	}
}

// homingDirection returns the unit vector from m toward the live target
// position, used by defense munitions once their phase check in
// thrustDirection defers to it.
func homingDirection(m *models.Munition, targetPos geo.Point, ref geo.Point) models.Vector3 {
	own := geo.Project(m.Position, ref)
	tgt := geo.Project(targetPos, ref)
	x, y, z := geo.Normalize(tgt.X-own.X, tgt.Y-own.Y, tgt.Z-own.Z)
	return models.Vector3{X: x, Y: y, Z: z}
}

// Step advances m by dt in place. ref is the local-frame projection
// reference (the scenario center, shared by every munition so positions
// compose consistently); targetPos is the live position of m's target
// munition when m is a homing defense munition (ignored otherwise); now is
// the engine's clock-derived current time, so flight-time-dependent phases
// (the underwater boost ramp) stay deterministic under a virtualized clock
// instead of reading the wall clock.
//
// Fuel is consumed proportional to the thrust fraction actually applied.
// A physics anomaly (NaN velocity or position) terminates the munition as
// fuel_exhaustion rather than propagating — callers check m.Status after
// Step returns and must not trust the kinematic fields if it changed.
func Step(m *models.Munition, ref geo.Point, targetPos geo.Point, dt time.Duration, now time.Time) {
	if !m.IsActive() {
		return
	}

	flightTime := now.Sub(m.LaunchTime)
	dtSec := dt.Seconds()
	alt := m.Position.Alt
	submerged := alt < 0

	var dir models.Vector3
	var frac float64
	if m.Type == models.MunitionDefense && m.HasTarget {
		dir = homingDirection(m, targetPos, ref)
		frac = 1.0
		if alt < 0 {
			d, f := thrustDirection(m, flightTime, ref)
			dir, frac = d, f
		}
	} else {
		dir, frac = thrustDirection(m, flightTime, ref)
	}

	thrustMag := m.ThrustN * frac
	if m.FuelRemainingKg <= 0 {
		thrustMag = 0
		frac = 0
	}

	thrust := models.Vector3{X: dir.X * thrustMag, Y: dir.Y * thrustMag, Z: dir.Z * thrustMag}

	speed := m.Speed()
	drag := dragForce(m.Velocity, speed, submerged, alt, m.DragCoefficient, m.CrossSectionM2)

	g := gravity(alt)

	accel := models.Vector3{
		X: (thrust.X + drag.X) / m.MassKg,
		Y: (thrust.Y + drag.Y) / m.MassKg,
		Z: (thrust.Z+drag.Z)/m.MassKg - g,
	}

	if submerged {
		// Buoyancy offsets gravity while submerged; a simple displaced-
		// volume approximation using water density and the munition's
		// mass is sufficient for the parametric model mandated here.
		buoyantAccel := waterDensity(-alt) * m.CrossSectionM2 * 0.1 / m.MassKg
		accel.Z += buoyantAccel
	}

	if isAnomalous(accel) || isAnomalous(m.Velocity) {
		m.Status = models.MunitionStatusFuelExhausted
		return
	}

	m.Velocity.X += accel.X * dtSec
	m.Velocity.Y += accel.Y * dtSec
	m.Velocity.Z += accel.Z * dtSec

	local := geo.Project(m.Position, ref)
	local.X += m.Velocity.X * dtSec
	local.Y += m.Velocity.Y * dtSec
	local.Z += m.Velocity.Z * dtSec
	m.Position = geo.Unproject(local, ref)

	fuelUsed := m.FuelConsumptionRateKgps * frac * dtSec
	m.FuelRemainingKg -= fuelUsed
	if m.FuelRemainingKg < 0 {
		m.FuelRemainingKg = 0
	}

	if isAnomalous(m.Velocity) || isAnomalousPoint(m.Position) {
		m.Status = models.MunitionStatusFuelExhausted
	}
}

func isAnomalous(v models.Vector3) bool {
	return math.IsNaN(v.X) || math.IsNaN(v.Y) || math.IsNaN(v.Z) ||
		math.IsInf(v.X, 0) || math.IsInf(v.Y, 0) || math.IsInf(v.Z, 0)
}

func isAnomalousPoint(p geo.Point) bool {
	return math.IsNaN(p.Lon) || math.IsNaN(p.Lat) || math.IsNaN(p.Alt)
}
