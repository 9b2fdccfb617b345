// Package engine implements the Simulation Engine: the component that owns
// every in-flight munition, advances it each tick under pkg/physics, and
// is the sole writer of missile.position / missile.impact /
// missile.intercepted, adapted from the teacher's runSimulationLoop phase
// structure (cmd/drone-swarm/simulation/simulation.go) to missile-defense
// semantics.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aegis-sim/aegis-sim/pkg/bus"
	"github.com/aegis-sim/aegis-sim/pkg/clock"
	"github.com/aegis-sim/aegis-sim/pkg/config"
	"github.com/aegis-sim/aegis-sim/pkg/db"
	"github.com/aegis-sim/aegis-sim/pkg/geo"
	"github.com/aegis-sim/aegis-sim/pkg/logger"
	"github.com/aegis-sim/aegis-sim/pkg/models"
	"github.com/aegis-sim/aegis-sim/pkg/physics"
)

const groundImpactAltitudeM = -300.0

// Engine owns the live-munition map and advances it at a fixed tick.
type Engine struct {
	cfg   *config.SimulationConfig
	bus   *bus.Bus
	store *db.DB
	clock clock.Clock
	log   logger.Logger

	ref geo.Point

	mu   sync.Mutex
	live map[uuid.UUID]*models.Munition

	posBuf   *db.UpdateBuffer
	launchSub *bus.Subscription
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// New constructs an Engine. store may be nil in tests that don't exercise
// persistence; clk defaults to the real clock when nil.
func New(cfg *config.SimulationConfig, b *bus.Bus, store *db.DB, clk clock.Clock, log logger.Logger) *Engine {
	if clk == nil {
		clk = clock.Real{}
	}
	if log == nil {
		log = logger.New()
	}
	e := &Engine{
		cfg:   cfg,
		bus:   b,
		store: store,
		clock: clk,
		log:   log.WithPrefix("engine"),
		ref:   geo.Point{Lon: cfg.Scenario.CenterLon, Lat: cfg.Scenario.CenterLat, Alt: cfg.Scenario.CenterAlt},
		live:  make(map[uuid.UUID]*models.Munition),
		stopCh: make(chan struct{}),
	}
	if store != nil {
		e.posBuf = db.NewUpdateBuffer(store, 50, time.Second, log)
	}
	return e
}

func (e *Engine) Name() string        { return "engine" }
func (e *Engine) Description() string { return "Owns in-flight munitions and advances physics at a fixed tick" }

// Configure satisfies service.Service.
func (e *Engine) Configure(cfg *config.SimulationConfig, b *bus.Bus) error {
	e.cfg = cfg
	e.bus = b
	e.ref = geo.Point{Lon: cfg.Scenario.CenterLon, Lat: cfg.Scenario.CenterLat, Alt: cfg.Scenario.CenterAlt}
	return nil
}

// Run drains launches and ticks physics until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	sub, err := e.bus.Subscribe(bus.SubjectSimulationLaunch, 256)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", bus.SubjectSimulationLaunch, err)
	}
	e.launchSub = sub
	defer sub.Unsubscribe()

	if e.posBuf != nil {
		e.posBuf.Start(ctx)
		defer e.posBuf.Stop()
	}

	ticker := time.NewTicker(e.cfg.Engine.TickDuration())
	defer ticker.Stop()

	e.log.Infof("engine started, tick=%s", e.cfg.Engine.TickDuration())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.stopCh:
			return nil
		case msg := <-sub.Messages():
			var lm bus.LaunchMessage
			if err := bus.Decode(msg.Payload, &lm); err != nil {
				e.log.Errorf("malformed launch message: %v", err)
				continue
			}
			e.handleLaunch(ctx, lm)
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// Stop halts Run.
func (e *Engine) Stop() error {
	e.stopOnce.Do(func() { close(e.stopCh) })
	return nil
}

// handleLaunch constructs a Munition from an inbound launch message,
// per §4.2 step 1: initial position at the launcher, initial velocity
// toward the target capped at min(max_speed, 1000) m/s, or 50 m/s
// straight up for underwater launches, full fuel, status active.
func (e *Engine) handleLaunch(ctx context.Context, lm bus.LaunchMessage) {
	launchPos := geo.Point{Lon: lm.LaunchLon, Lat: lm.LaunchLat, Alt: lm.LaunchAlt}
	targetPos := geo.Point{Lon: lm.TargetLon, Lat: lm.TargetLat, Alt: lm.TargetAlt}

	var pt models.PlatformType
	if e.store != nil {
		loaded, err := e.store.PlatformType(ctx, lm.PlatformNickname)
		if err != nil {
			e.log.Errorf("unknown platform %s, dropping launch: %v", lm.PlatformNickname, err)
			return
		}
		pt = loaded
	}

	m := &models.Munition{
		ID:                 uuid.New(),
		Callsign:           lm.LaunchCallsign,
		PlatformType:       lm.PlatformNickname,
		LaunchInstallation: lm.LaunchCallsign,
		Position:           launchPos,
		TargetPosition:     targetPos,
		MassKg:             massFor(pt),
		ThrustN:            pt.ThrustN,
		FuelRemainingKg:    pt.FuelCapacityKg,
		FuelConsumptionRateKgps: pt.FuelConsumptionRateKgps,
		DragCoefficient:    0.3,
		CrossSectionM2:     1.0,
		BlastRadiusM:       pt.BlastRadiusM,
		Status:             models.MunitionStatusActive,
		LaunchTime:         e.clock.Now(),
	}
	if lm.BlastRadiusM > 0 {
		m.BlastRadiusM = lm.BlastRadiusM
	}

	switch lm.MissileType {
	case "defense":
		m.Type = models.MunitionDefense
		m.TargetMissileID = lm.TargetMissileID
		m.HasTarget = true
	default:
		m.Type = models.MunitionAttack
	}

	maxSpeed := pt.MaxSpeedMps
	if maxSpeed <= 0 || maxSpeed > 1000 {
		maxSpeed = 1000
	}
	if launchPos.Alt < 0 {
		m.Velocity = models.Vector3{Z: 50}
	} else {
		local := geo.Project(launchPos, e.ref)
		tgt := geo.Project(targetPos, e.ref)
		ux, uy, uz := geo.Normalize(tgt.X-local.X, tgt.Y-local.Y, tgt.Z-local.Z)
		m.Velocity = models.Vector3{X: ux * maxSpeed, Y: uy * maxSpeed, Z: uz * maxSpeed}
	}

	e.mu.Lock()
	e.live[m.ID] = m
	e.mu.Unlock()

	if e.posBuf != nil {
		e.posBuf.QueuePositionUpdate(m)
	}

	e.log.Infof("launch accepted: %s (%s) from %s", m.ID, m.Type, m.LaunchInstallation)
}

func massFor(pt models.PlatformType) float64 {
	// Total mass approximated as full fuel plus a dry mass of a quarter
	// of fuel capacity and a fixed 200 kg, since the catalog doesn't carry
	// an explicit mass field; a platform type with no fuel capacity (the
	// zero-value row unit tests get) reads as 1000 kg, avoiding a
	// div-by-zero.
	if pt.FuelCapacityKg > 0 {
		return pt.FuelCapacityKg*1.25 + 200
	}
	return 1000
}

// tick runs the per-tick phases of §4.2 that follow the launch drain
// (launches are handled as they arrive in Run): integrate, terminate,
// publish positions.
func (e *Engine) tick(ctx context.Context) {
	e.mu.Lock()
	snapshot := make([]*models.Munition, 0, len(e.live))
	for _, m := range e.live {
		snapshot = append(snapshot, m)
	}
	e.mu.Unlock()

	dt := e.cfg.Engine.TickDuration()
	now := e.clock.Now()

	for _, m := range snapshot {
		if !m.IsActive() {
			continue
		}
		var targetPos geo.Point
		if m.Type == models.MunitionDefense && m.HasTarget {
			if target, ok := e.lookup(m.TargetMissileID); ok {
				targetPos = target.Position
			} else {
				m.HasTarget = false
			}
		}
		physics.Step(m, e.ref, targetPos, dt, now)
	}

	e.checkTerminations(ctx, snapshot)

	for _, m := range snapshot {
		if !m.IsActive() {
			continue
		}
		e.publishPosition(m)
		if e.posBuf != nil {
			e.posBuf.QueuePositionUpdate(m)
		}
	}
}

func (e *Engine) lookup(id uuid.UUID) (*models.Munition, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.live[id]
	return m, ok
}

// checkTerminations applies the termination priority from §4.2 step 3:
// intercept proximity, target-achieved detonation, ground/sea impact,
// fuel exhaustion.
func (e *Engine) checkTerminations(ctx context.Context, snapshot []*models.Munition) {
	now := e.clock.Now()

	for _, m := range snapshot {
		if m.Status == models.MunitionStatusFuelExhausted && !m.OutcomeRecorded {
			// physics.Step already flagged an anomaly this tick.
			e.recordOutcome(ctx, m, models.OutcomeFuelExhaustion, false, uuid.Nil, false, "physics anomaly", now)
			continue
		}
		if !m.IsActive() {
			continue
		}

		if m.Type == models.MunitionDefense && m.HasTarget {
			target, ok := e.lookup(m.TargetMissileID)
			if ok && target.IsActive() {
				d := geo.Distance3D(m.Position, target.Position)
				if d <= m.BlastRadiusM {
					e.recordIntercept(ctx, m, target, now)
					continue
				}
			}
		}

		if m.Type == models.MunitionAttack {
			horiz := geo.HorizontalDistance(m.Position, m.TargetPosition)
			descending := m.Velocity.Z < 0
			aboveTarget := m.Position.Alt > m.TargetPosition.Alt
			if descending && aboveTarget && horiz <= m.BlastRadiusM {
				e.recordOutcome(ctx, m, models.OutcomeDetonated, true, uuid.Nil, false, "target achieved", now)
				continue
			}
		}

		if m.Position.Alt <= groundImpactAltitudeM {
			e.recordOutcome(ctx, m, models.OutcomeGroundImpact, false, uuid.Nil, false, "ground/sea floor impact", now)
			continue
		}

		if m.FuelRemainingKg <= 0 {
			e.recordOutcome(ctx, m, models.OutcomeFuelExhaustion, false, uuid.Nil, false, "fuel exhausted", now)
			continue
		}
	}
}

func (e *Engine) recordIntercept(ctx context.Context, defense, target *models.Munition, now time.Time) {
	defense.Status = models.MunitionStatusDestroyed
	target.Status = models.MunitionStatusIntercepted

	e.recordOutcome(ctx, defense, models.OutcomeDetonated, true, uuid.Nil, false, "intercept detonation", now)
	e.recordOutcome(ctx, target, models.OutcomeIntercepted, false, defense.ID, true, "intercepted", now)

	msg := bus.InterceptMessage{
		Type:             "missile_intercepted",
		TargetMissileID:  target.ID,
		DefenseMissileID: defense.ID,
		Callsign:         target.Callsign,
		Position:         e.toVec3(target.Position),
		Timestamp:        now,
	}
	e.publishReliable(bus.SubjectMissileIntercept, msg)
	e.publishReliable(bus.SubjectEngagementResult, bus.EngagementResultMessage{
		TargetMissileID:  target.ID,
		DefenseMissileID: defense.ID,
		Success:          true,
	})
}

func (e *Engine) recordOutcome(ctx context.Context, m *models.Munition, outcome models.OutcomeType, targetAchieved bool, interceptingID uuid.UUID, hasIntercepting bool, note string, now time.Time) {
	if !hasIntercepting {
		m.Status = terminalStatusFor(outcome)
	}

	e.mu.Lock()
	delete(e.live, m.ID)
	e.mu.Unlock()

	o := &models.Outcome{
		MissileID:              m.ID,
		OutcomeType:            outcome,
		Location:               m.Position,
		TargetAchieved:         targetAchieved,
		InterceptingMissileID:  interceptingID,
		HasInterceptingMissile: hasIntercepting,
		Notes:                  note,
		RecordedAt:             now,
	}

	if e.store != nil {
		if err := e.posBuf.RecordOutcome(ctx, o); err != nil {
			e.log.Errorf("failed to record outcome for %s (will retry): %v", m.ID, err)
			m.OutcomeRecorded = false
		} else {
			m.OutcomeRecorded = true
		}
	} else {
		m.OutcomeRecorded = true
	}

	impact := bus.ImpactMessage{
		Type:           "missile_impact",
		MissileID:      m.ID,
		Callsign:       m.Callsign,
		OutcomeType:    string(outcome),
		Position:       e.toVec3(m.Position),
		TargetAchieved: targetAchieved,
		Timestamp:      now,
	}
	e.publishReliable(bus.SubjectMissileImpact, impact)
}

func terminalStatusFor(outcome models.OutcomeType) models.MunitionStatus {
	switch outcome {
	case models.OutcomeIntercepted:
		return models.MunitionStatusIntercepted
	case models.OutcomeFuelExhaustion:
		return models.MunitionStatusFuelExhausted
	default:
		return models.MunitionStatusImpacted
	}
}

func (e *Engine) publishPosition(m *models.Munition) {
	msg := bus.PositionMessage{
		ID:          m.ID,
		Callsign:    m.Callsign,
		Position:    e.toVec3(m.Position),
		Velocity:    bus.Vec3{X: m.Velocity.X, Y: m.Velocity.Y, Z: m.Velocity.Z},
		Timestamp:   e.clock.Now(),
		MissileType: string(m.Type),
		Lon:         m.Position.Lon,
		Lat:         m.Position.Lat,
		Alt:         m.Position.Alt,
	}
	payload, err := bus.Encode(msg)
	if err != nil {
		e.log.Errorf("encoding position message: %v", err)
		return
	}
	// missile.position is lossy-tolerant per the ordering/backpressure
	// contract: next tick republishes, so a dropped publish here is not
	// retried.
	if err := e.bus.Publish(bus.SubjectMissilePosition, payload); err != nil {
		e.log.Debugf("publish missile.position dropped: %v", err)
	}
}

func (e *Engine) publishReliable(subject string, v interface{}) {
	payload, err := bus.Encode(v)
	if err != nil {
		e.log.Errorf("encoding %s message: %v", subject, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.bus.PublishReliable(ctx, subject, payload); err != nil {
		e.log.Errorf("reliable publish to %s failed: %v", subject, err)
	}
}

func (e *Engine) toVec3(p geo.Point) bus.Vec3 {
	local := geo.Project(p, e.ref)
	return bus.Vec3{X: local.X, Y: local.Y, Z: local.Z}
}
