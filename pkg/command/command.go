// Package command implements the Command Center: threat assessment from
// radar detections and raw position updates, battery selection scoring,
// and engagement-order dispatch with a per-target retry ledger, adapted
// from the teacher's system_controller.go threat-evaluation loop
// (cmd/drone-swarm/controllers/system_controller.go) to missile-defense
// semantics.
package command

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/aegis-sim/aegis-sim/pkg/bus"
	"github.com/aegis-sim/aegis-sim/pkg/clock"
	"github.com/aegis-sim/aegis-sim/pkg/config"
	"github.com/aegis-sim/aegis-sim/pkg/db"
	"github.com/aegis-sim/aegis-sim/pkg/geo"
	"github.com/aegis-sim/aegis-sim/pkg/logger"
	"github.com/aegis-sim/aegis-sim/pkg/models"
)

// altitude breakpoints (meters) for the coarse time-to-impact table used
// when a target's velocity is not yet known.
const (
	altitudeHighM   = 1000.0
	altitudeMediumM = 100.0

	ttiCoarseHighSec   = 30.0
	ttiCoarseMediumSec = 60.0
	ttiCoarseLowSec    = 120.0

	ttiCriticalSec = 60.0
	ttiHighSec     = 180.0
	ttiMediumSec   = 600.0
)

// Center is the Command Center component.
type Center struct {
	cfg   *config.SimulationConfig
	bus   *bus.Bus
	store *db.DB
	clock clock.Clock
	log   logger.Logger
	ref   geo.Point

	mu        sync.Mutex
	threats   map[uuid.UUID]*models.ThreatAssessment
	batteries map[string]models.Installation

	// ordersIssued is read far more often (metrics, tests) than it's
	// written, so it's a lock-free counter rather than another field
	// under mu.
	ordersIssued atomic.Int64

	stopCh   chan struct{}
	stopOnce sync.Once
}

// OrdersIssued returns the total number of engagement orders dispatched
// since the Center started.
func (c *Center) OrdersIssued() int64 {
	return c.ordersIssued.Load()
}

// New constructs a Command Center.
func New(cfg *config.SimulationConfig, b *bus.Bus, store *db.DB, clk clock.Clock, log logger.Logger) *Center {
	if clk == nil {
		clk = clock.Real{}
	}
	if log == nil {
		log = logger.New()
	}
	return &Center{
		cfg:       cfg,
		bus:       b,
		store:     store,
		clock:     clk,
		log:       log.WithPrefix("command"),
		ref:       geo.Point{Lon: cfg.Scenario.CenterLon, Lat: cfg.Scenario.CenterLat, Alt: cfg.Scenario.CenterAlt},
		threats:   make(map[uuid.UUID]*models.ThreatAssessment),
		batteries: make(map[string]models.Installation),
		stopCh:    make(chan struct{}),
	}
}

func (c *Center) Name() string        { return "command" }
func (c *Center) Description() string { return "Assesses threats and dispatches engagement orders to batteries" }

func (c *Center) Configure(cfg *config.SimulationConfig, b *bus.Bus) error {
	c.cfg = cfg
	c.bus = b
	c.ref = geo.Point{Lon: cfg.Scenario.CenterLon, Lat: cfg.Scenario.CenterLat, Alt: cfg.Scenario.CenterAlt}
	return nil
}

func (c *Center) refreshBatteries(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	installations, err := c.store.InstallationsByCategory(ctx, models.CategoryCounterDefense)
	if err != nil {
		return fmt.Errorf("loading batteries: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, inst := range installations {
		c.batteries[inst.Callsign] = inst
	}
	return nil
}

// Run subscribes to radar.detection, missile.position, and
// engagement.result, running housekeeping once per second.
func (c *Center) Run(ctx context.Context) error {
	if err := c.refreshBatteries(ctx); err != nil {
		return err
	}

	detSub, err := c.bus.Subscribe(bus.SubjectRadarDetection, 256)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", bus.SubjectRadarDetection, err)
	}
	defer detSub.Unsubscribe()

	posSub, err := c.bus.Subscribe(bus.SubjectMissilePosition, 256)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", bus.SubjectMissilePosition, err)
	}
	defer posSub.Unsubscribe()

	resultSub, err := c.bus.Subscribe(bus.SubjectEngagementResult, 64)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", bus.SubjectEngagementResult, err)
	}
	defer resultSub.Unsubscribe()

	housekeeping := time.NewTicker(c.cfg.Command.HousekeepingInterval())
	defer housekeeping.Stop()

	c.log.Info("command center started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return nil
		case msg := <-detSub.Messages():
			var dm bus.DetectionMessage
			if err := bus.Decode(msg.Payload, &dm); err != nil {
				c.log.Errorf("malformed detection message: %v", err)
				continue
			}
			c.updateFromDetection(ctx, dm)
		case msg := <-posSub.Messages():
			var pm bus.PositionMessage
			if err := bus.Decode(msg.Payload, &pm); err != nil {
				c.log.Errorf("malformed position message: %v", err)
				continue
			}
			c.updateFromPosition(ctx, pm)
		case msg := <-resultSub.Messages():
			var rm bus.EngagementResultMessage
			if err := bus.Decode(msg.Payload, &rm); err != nil {
				c.log.Errorf("malformed engagement result: %v", err)
				continue
			}
			c.handleResult(rm)
		case <-housekeeping.C:
			c.housekeep(ctx)
		}
	}
}

func (c *Center) Stop() error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	return nil
}

func (c *Center) updateFromDetection(ctx context.Context, dm bus.DetectionMessage) {
	local := geo.Local{X: dm.Position.X, Y: dm.Position.Y, Z: dm.Position.Z}
	pos := geo.Unproject(local, c.ref)
	vel := models.Vector3{X: dm.Velocity.X, Y: dm.Velocity.Y, Z: dm.Velocity.Z}
	c.assess(ctx, dm.MissileID, pos, vel, true, dm.Confidence)
}

func (c *Center) updateFromPosition(ctx context.Context, pm bus.PositionMessage) {
	pos := geo.Point{Lon: pm.Lon, Lat: pm.Lat, Alt: pm.Alt}
	vel := models.Vector3{X: pm.Velocity.X, Y: pm.Velocity.Y, Z: pm.Velocity.Z}
	c.assess(ctx, pm.ID, pos, vel, true, 0)
}

// assess recomputes a ThreatAssessment's predicted impact and time-to-impact
// per §4.4, and triggers an engagement decision when warranted.
func (c *Center) assess(ctx context.Context, missileID uuid.UUID, pos geo.Point, vel models.Vector3, hasVelocity bool, confidence float64) {
	c.mu.Lock()
	t, ok := c.threats[missileID]
	if !ok {
		t = &models.ThreatAssessment{
			MissileID:       missileID,
			DetectingRadars: make(map[string]struct{}),
		}
		c.threats[missileID] = t
	}
	t.Position = pos
	t.HasVelocity = hasVelocity
	t.Velocity = vel
	if confidence > t.Confidence {
		t.Confidence = confidence
	}

	speed := vecMag(vel)
	if hasVelocity && speed > 1e-6 {
		t.PredictedImpact = geo.Point{
			Lon: pos.Lon,
			Lat: pos.Lat,
			Alt: 0,
		}
		t.TimeToImpactSec = pos.Alt / speed
	} else {
		t.PredictedImpact = pos
		switch {
		case pos.Alt > altitudeHighM:
			t.TimeToImpactSec = ttiCoarseHighSec
		case pos.Alt > altitudeMediumM:
			t.TimeToImpactSec = ttiCoarseMediumSec
		default:
			t.TimeToImpactSec = ttiCoarseLowSec
		}
	}

	if t.TimeToImpactSec < 0 {
		if !t.HasNegativeTTI {
			t.HasNegativeTTI = true
			t.FirstNegativeTTI = c.clock.Now()
		}
	} else {
		t.HasNegativeTTI = false
	}

	t.Level = classify(t.TimeToImpactSec)
	attempts := t.AttemptCount()
	c.mu.Unlock()

	if (t.Level == models.ThreatHigh || t.Level == models.ThreatCritical) && attempts < c.cfg.Command.MaxRetries {
		c.tryEngage(ctx, t)
	}
}

func classify(ttiSec float64) models.ThreatLevel {
	switch {
	case ttiSec < ttiCriticalSec:
		return models.ThreatCritical
	case ttiSec < ttiHighSec:
		return models.ThreatHigh
	case ttiSec < ttiMediumSec:
		return models.ThreatMedium
	default:
		return models.ThreatLow
	}
}

func vecMag(v models.Vector3) float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// tryEngage selects the best candidate battery per §4.4 and, if its
// probability of success clears the configured floor, publishes an
// engagement order and records the attempt.
func (c *Center) tryEngage(ctx context.Context, t *models.ThreatAssessment) {
	if t.Position.Alt <= 0 {
		return
	}

	c.mu.Lock()
	candidates := make([]models.Installation, 0, len(c.batteries))
	for _, b := range c.batteries {
		if b.Status == models.InstallationActive && b.AmmoCount > 0 {
			candidates = append(candidates, b)
		}
	}
	c.mu.Unlock()

	var best *models.Installation
	var bestScore, bestProb float64
	var bestIntercept geo.Point
	var bestAlt float64

	for i := range candidates {
		battery := candidates[i]
		if c.store == nil {
			continue
		}
		pt, err := c.store.PlatformType(ctx, battery.PlatformType)
		if err != nil {
			continue
		}

		batteryPos := geo.Point{Lon: battery.Lon, Lat: battery.Lat, Alt: battery.AltitudeM}
		intercept := geo.Midpoint(batteryPos, t.Position)
		d := geo.Distance3D(batteryPos, intercept)
		if d > pt.MaxRangeM || intercept.Alt > pt.MaxAltitudeM {
			continue
		}

		prob := pt.AccuracyPercent * (1 - d/pt.MaxRangeM)
		timeToLaunch := pt.ReloadTimeSec
		score := prob / (timeToLaunch + 1)

		if best == nil || score > bestScore {
			battery := battery
			best = &battery
			bestScore = score
			bestProb = prob
			bestIntercept = intercept
			bestAlt = intercept.Alt
		}
	}

	if best == nil || bestProb <= c.cfg.Command.EngagementProbabilityFloor {
		return
	}

	now := c.clock.Now()
	local := geo.Project(bestIntercept, c.ref)
	order := bus.EngagementOrderMessage{
		Type:                 "engagement_order",
		TargetMissileID:      t.MissileID,
		BatteryCallsign:      best.Callsign,
		InterceptPoint:       bus.Vec3{X: local.X, Y: local.Y, Z: local.Z},
		InterceptAltitudeM:   bestAlt,
		ProbabilityOfSuccess: bestProb,
		Timestamp:            now,
	}
	payload, err := bus.Encode(order)
	if err != nil {
		c.log.Errorf("encoding engagement order: %v", err)
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.bus.PublishReliable(pubCtx, bus.EngageSubject(best.Callsign), payload); err != nil {
		c.log.Errorf("publishing engagement order for %s: %v", best.Callsign, err)
		return
	}

	c.mu.Lock()
	t.Attempts = append(t.Attempts, models.EngagementAttempt{
		BatteryCallsign: best.Callsign,
		OrderedAt:       now,
	})
	c.mu.Unlock()
	c.ordersIssued.Inc()

	c.log.Infof("engagement order issued: target=%s battery=%s p=%.2f", t.MissileID, best.Callsign, bestProb)
}

func (c *Center) handleResult(rm bus.EngagementResultMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.threats[rm.TargetMissileID]
	if !ok {
		return
	}

	if rm.Success {
		delete(c.threats, rm.TargetMissileID)
		return
	}

	if len(t.Attempts) > 0 {
		last := &t.Attempts[len(t.Attempts)-1]
		succeeded := false
		last.Succeeded = &succeeded
		last.FailureReason = rm.FailureReason
	}
}

// housekeep refreshes battery ammo/status from the database and expires
// threats whose time-to-impact has been negative for more than the
// configured threat-expiry window.
func (c *Center) housekeep(ctx context.Context) {
	if err := c.refreshBatteries(ctx); err != nil {
		c.log.Errorf("refreshing batteries: %v", err)
	}

	now := c.clock.Now()
	expiry := c.cfg.Command.ThreatExpiry()

	c.mu.Lock()
	defer c.mu.Unlock()
	for id, t := range c.threats {
		if t.HasNegativeTTI && now.Sub(t.FirstNegativeTTI) > expiry {
			delete(c.threats, id)
		}
	}
}
