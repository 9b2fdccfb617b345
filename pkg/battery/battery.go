// Package battery implements the Battery Controller state machine: one
// instance per counter-defense installation, cycling
// ready -> preparing -> launching -> reloading -> ready, adapted from the
// teacher's per-system status goroutine
// (cmd/drone-swarm/controllers/simulation_controller.go
// runCounterUASSystem/updateCounterUASBehavior) to the fixed 5-second
// preparing delay and FIFO pending-order queue the specification mandates.
package battery

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
)

// State is the Battery Controller's lifecycle state.
type State string

const (
	StateReady     State = "ready"
	StatePreparing State = "preparing"
	StateLaunching State = "launching"
	StateReloading State = "reloading"
)

// pendingOrder is one queued engagement order awaiting a ready battery.
type pendingOrder struct {
	order     models.EngagementOrder
	targetPos geo.Point
}

// Controller is one battery's state machine.
type Controller struct {
	cfg      *config.SimulationConfig
	bus      *bus.Bus
	store    *db.DB
	clock    clock.Clock
	log      logger.Logger
	callsign string

	ref geo.Point

	mu             sync.Mutex
	state          State
	installation   models.Installation
	platform       models.PlatformType
	lastLaunch     time.Time
	preparingSince time.Time
	queue          []pendingOrder

	stopCh   chan struct{}
	stopOnce sync.Once
}

// reloadDuration returns pt's reload cooldown as a time.Duration.
func reloadDuration(pt models.PlatformType) time.Duration {
	return time.Duration(pt.ReloadTimeSec * float64(time.Second))
}

// New constructs a Controller for the battery identified by callsign.
func New(cfg *config.SimulationConfig, b *bus.Bus, store *db.DB, clk clock.Clock, log logger.Logger, callsign string) *Controller {
	if clk == nil {
		clk = clock.Real{}
	}
	if log == nil {
		log = logger.New()
	}
	return &Controller{
		cfg:      cfg,
		bus:      b,
		store:    store,
		clock:    clk,
		log:      log.WithPrefix("battery").WithField("callsign", callsign),
		callsign: callsign,
		state:    StateReady,
		ref:      geo.Point{Lon: cfg.Scenario.CenterLon, Lat: cfg.Scenario.CenterLat, Alt: cfg.Scenario.CenterAlt},
		stopCh:   make(chan struct{}),
	}
}

func (c *Controller) Name() string        { return fmt.Sprintf("battery.%s", c.callsign) }
func (c *Controller) Description() string { return "State machine for one counter-defense installation" }

func (c *Controller) Configure(cfg *config.SimulationConfig, b *bus.Bus) error {
	c.cfg = cfg
	c.bus = b
	c.ref = geo.Point{Lon: cfg.Scenario.CenterLon, Lat: cfg.Scenario.CenterLat, Alt: cfg.Scenario.CenterAlt}
	return nil
}

// State returns the controller's current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) loadInstallation(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	inst, err := c.store.Installation(ctx, c.callsign)
	if err != nil {
		return fmt.Errorf("loading installation %s: %w", c.callsign, err)
	}
	pt, err := c.store.PlatformType(ctx, inst.PlatformType)
	if err != nil {
		return fmt.Errorf("loading platform type for %s: %w", c.callsign, err)
	}

	c.mu.Lock()
	c.installation = inst
	c.platform = pt
	c.mu.Unlock()
	return nil
}

// Run subscribes to this battery's engagement-order subject and drives the
// state machine until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.loadInstallation(ctx); err != nil {
		return err
	}

	sub, err := c.bus.Subscribe(bus.EngageSubject(c.callsign), 64)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", bus.EngageSubject(c.callsign), err)
	}
	defer sub.Unsubscribe()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	c.log.Info("battery controller started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return nil
		case msg := <-sub.Messages():
			var om bus.EngagementOrderMessage
			if err := bus.Decode(msg.Payload, &om); err != nil {
				c.log.Errorf("malformed engagement order: %v", err)
				continue
			}
			c.handleOrder(om)
		case <-ticker.C:
			c.advance(ctx)
		}
	}
}

func (c *Controller) Stop() error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	return nil
}

// handleOrder enqueues an engagement order, discarding it if the queue
// already holds one for the same target.
func (c *Controller) handleOrder(om bus.EngagementOrderMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.queue {
		if p.order.TargetMissileID == om.TargetMissileID {
			c.log.Debugf("duplicate order for target %s discarded", om.TargetMissileID)
			return
		}
	}

	intercept := geo.Unproject(geo.Local{X: om.InterceptPoint.X, Y: om.InterceptPoint.Y, Z: om.InterceptPoint.Z}, c.ref)

	c.queue = append(c.queue, pendingOrder{
		order: models.EngagementOrder{
			TargetMissileID:      om.TargetMissileID,
			BatteryCallsign:      om.BatteryCallsign,
			InterceptPoint:       intercept,
			InterceptAltitudeM:   om.InterceptAltitudeM,
			ProbabilityOfSuccess: om.ProbabilityOfSuccess,
			OrderTimestamp:       om.Timestamp,
		},
		targetPos: intercept,
	})
}

// advance drives the state machine one 100ms step: dequeues an order when
// ready, observes the 5-second preparing delay, issues the defensive
// launch, then observes reload_time_sec before returning to ready.
func (c *Controller) advance(ctx context.Context) {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	switch state {
	case StateReady:
		c.tryPrepare(ctx)
	case StatePreparing:
		c.tryLaunch(ctx)
	case StateReloading:
		c.tryReload()
	}
}

func (c *Controller) tryPrepare(ctx context.Context) {
	c.mu.Lock()
	if len(c.queue) == 0 {
		c.mu.Unlock()
		return
	}
	next := c.queue[0]
	inst := c.installation
	pt := c.platform
	lastLaunch := c.lastLaunch
	c.mu.Unlock()

	if inst.AmmoCount <= 0 {
		c.dequeueRejected(next.order.TargetMissileID, "no ammunition")
		return
	}

	batteryPos := geo.Point{Lon: inst.Lon, Lat: inst.Lat, Alt: inst.AltitudeM}
	d := geo.Distance3D(batteryPos, next.order.InterceptPoint)
	if d > pt.MaxRangeM || next.order.InterceptAltitudeM > pt.MaxAltitudeM {
		c.dequeueRejected(next.order.TargetMissileID, "envelope check failed")
		return
	}

	if c.clock.Now().Sub(lastLaunch) < reloadDuration(pt) {
		return
	}

	c.mu.Lock()
	c.state = StatePreparing
	c.preparingSince = c.clock.Now()
	c.mu.Unlock()
}

func (c *Controller) dequeueRejected(targetID uuid.UUID, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) > 0 && c.queue[0].order.TargetMissileID == targetID {
		c.queue = c.queue[1:]
	}
	c.log.Infof("engagement order for %s rejected: %s", targetID, reason)
	c.publishResult(targetID, false, reason)
}

func (c *Controller) tryLaunch(ctx context.Context) {
	c.mu.Lock()
	since := c.clock.Now().Sub(c.preparingSince)
	c.mu.Unlock()

	if since < c.cfg.Battery.PreparingDelay() {
		return
	}

	c.mu.Lock()
	if len(c.queue) == 0 {
		c.state = StateReady
		c.mu.Unlock()
		return
	}
	next := c.queue[0]
	c.queue = c.queue[1:]
	inst := c.installation
	pt := c.platform
	c.mu.Unlock()

	lm := bus.LaunchMessage{
		Type:             "missile_launch",
		PlatformNickname: inst.PlatformType,
		LaunchCallsign:   inst.Callsign,
		LaunchLat:        inst.Lat,
		LaunchLon:        inst.Lon,
		LaunchAlt:        inst.AltitudeM,
		TargetLat:        next.order.InterceptPoint.Lat,
		TargetLon:        next.order.InterceptPoint.Lon,
		TargetAlt:        next.order.InterceptAltitudeM,
		MissileType:      "defense",
		BlastRadiusM:     pt.BlastRadiusM,
		TargetMissileID:  next.order.TargetMissileID,
		Timestamp:        c.clock.Now(),
	}
	payload, err := bus.Encode(lm)
	if err != nil {
		c.log.Errorf("encoding launch message: %v", err)
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.bus.PublishReliable(pubCtx, bus.SubjectSimulationLaunch, payload); err != nil {
		c.log.Errorf("publishing defensive launch: %v", err)
		c.mu.Lock()
		c.queue = append([]pendingOrder{next}, c.queue...)
		c.mu.Unlock()
		return
	}

	if c.store != nil {
		if err := c.store.DecrementAmmo(ctx, inst.Callsign, inst.PlatformType); err != nil {
			c.log.Errorf("decrementing ammo for %s: %v", inst.Callsign, err)
		}
	}

	c.mu.Lock()
	c.installation.AmmoCount--
	c.lastLaunch = c.clock.Now()
	c.state = StateLaunching
	c.mu.Unlock()

	c.log.Infof("defensive launch issued against target %s", next.order.TargetMissileID)

	// launching -> reloading is immediate after publish, per §4.5.
	c.mu.Lock()
	c.state = StateReloading
	c.mu.Unlock()
}

func (c *Controller) tryReload() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.clock.Now().Sub(c.lastLaunch) >= reloadDuration(c.platform) {
		c.state = StateReady
	}
}

func (c *Controller) publishResult(targetID uuid.UUID, success bool, reason string) {
	msg := bus.EngagementResultMessage{
		TargetMissileID: targetID,
		Success:         success,
		FailureReason:   reason,
	}
	payload, err := bus.Encode(msg)
	if err != nil {
		c.log.Errorf("encoding engagement result: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.bus.PublishReliable(ctx, bus.SubjectEngagementResult, payload); err != nil {
		c.log.Errorf("publishing engagement result: %v", err)
	}
}
