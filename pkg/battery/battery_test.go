package battery

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/aegis-sim/aegis-sim/pkg/bus"
	"github.com/aegis-sim/aegis-sim/pkg/clock"
	"github.com/aegis-sim/aegis-sim/pkg/config"
	"github.com/aegis-sim/aegis-sim/pkg/geo"
	"github.com/aegis-sim/aegis-sim/pkg/logger"
	"github.com/aegis-sim/aegis-sim/pkg/models"
)

func testConfig() *config.SimulationConfig {
	cfg := config.GetDefaultConfig()
	cfg.Battery.PreparingDelaySec = 5.0
	return cfg
}

func newTestController(t *testing.T, clk *clock.Manual) (*Controller, *bus.Bus) {
	t.Helper()
	cfg := testConfig()
	b := bus.New()
	c := New(cfg, b, nil, clk, logger.New(), "B1")
	c.installation = models.Installation{
		Callsign:     "B1",
		Lon:          cfg.Scenario.CenterLon,
		Lat:          cfg.Scenario.CenterLat,
		AltitudeM:    0,
		PlatformType: "Aegis-VLS",
		AmmoCount:    4,
	}
	c.platform = models.PlatformType{
		Nickname:      "Aegis-VLS",
		MaxRangeM:     240000,
		MaxAltitudeM:  50000,
		ReloadTimeSec: 12,
		BlastRadiusM:  30,
	}
	return c, b
}

func orderFor(c *Controller, targetID uuid.UUID) bus.EngagementOrderMessage {
	local := geo.Project(geo.Point{Lon: c.ref.Lon + 0.01, Lat: c.ref.Lat, Alt: 1000}, c.ref)
	return bus.EngagementOrderMessage{
		Type:                 "engagement_order",
		TargetMissileID:      targetID,
		BatteryCallsign:      c.callsign,
		InterceptPoint:       bus.Vec3{X: local.X, Y: local.Y, Z: local.Z},
		InterceptAltitudeM:   1000,
		ProbabilityOfSuccess: 0.8,
		Timestamp:            time.Now(),
	}
}

func TestHandleOrderDedupesSameTarget(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	c, _ := newTestController(t, clk)
	target := uuid.New()

	c.handleOrder(orderFor(c, target))
	c.handleOrder(orderFor(c, target))

	if len(c.queue) != 1 {
		t.Fatalf("expected 1 queued order after duplicate submission, got %d", len(c.queue))
	}
}

func TestTryPrepareRejectsWhenOutOfAmmo(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	c, b := newTestController(t, clk)
	defer b.Close()
	c.installation.AmmoCount = 0
	target := uuid.New()
	c.handleOrder(orderFor(c, target))

	c.tryPrepare(context.Background())

	if c.State() != StateReady {
		t.Fatalf("expected state to remain ready on ammo exhaustion, got %s", c.State())
	}
	if len(c.queue) != 0 {
		t.Fatalf("expected rejected order to be dequeued, queue has %d entries", len(c.queue))
	}
}

func TestTryPrepareRejectsOutOfEnvelope(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	c, b := newTestController(t, clk)
	defer b.Close()
	c.platform.MaxRangeM = 10

	target := uuid.New()
	c.handleOrder(orderFor(c, target))

	c.tryPrepare(context.Background())

	if c.State() != StateReady {
		t.Fatalf("expected state to remain ready on envelope rejection, got %s", c.State())
	}
	if len(c.queue) != 0 {
		t.Fatalf("expected rejected order to be dequeued, queue has %d entries", len(c.queue))
	}
}

func TestTryPrepareHonorsReloadCooldown(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	c, b := newTestController(t, clk)
	defer b.Close()
	c.lastLaunch = clk.Now()

	target := uuid.New()
	c.handleOrder(orderFor(c, target))

	c.tryPrepare(context.Background())

	if c.State() != StateReady {
		t.Fatalf("expected state to remain ready during reload cooldown, got %s", c.State())
	}
	if len(c.queue) != 1 {
		t.Fatalf("expected order to remain queued during cooldown, got %d", len(c.queue))
	}
}

func TestStateMachineFullCycle(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	c, b := newTestController(t, clk)
	defer b.Close()

	resultSub, err := b.Subscribe(bus.SubjectSimulationLaunch, 4)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer resultSub.Unsubscribe()

	target := uuid.New()
	c.handleOrder(orderFor(c, target))

	c.tryPrepare(context.Background())
	if c.State() != StatePreparing {
		t.Fatalf("expected preparing after envelope/ammo checks pass, got %s", c.State())
	}

	c.tryLaunch(context.Background())
	if c.State() != StatePreparing {
		t.Fatalf("expected preparing delay to hold launch, got %s", c.State())
	}

	clk.Advance(5 * time.Second)
	c.tryLaunch(context.Background())
	if c.State() != StateReloading {
		t.Fatalf("expected reloading immediately after launch, got %s", c.State())
	}
	if c.installation.AmmoCount != 3 {
		t.Fatalf("expected ammo decremented to 3, got %d", c.installation.AmmoCount)
	}

	select {
	case msg := <-resultSub.Messages():
		var lm bus.LaunchMessage
		if err := bus.Decode(msg.Payload, &lm); err != nil {
			t.Fatalf("decoding launch message: %v", err)
		}
		if lm.MissileType != "defense" {
			t.Fatalf("expected defense launch, got %s", lm.MissileType)
		}
		if lm.TargetMissileID != target {
			t.Fatalf("launch message target mismatch")
		}
	default:
		t.Fatal("expected a simulation.launch message to have been published")
	}

	c.tryReload()
	if c.State() != StateReloading {
		t.Fatalf("expected reloading to hold before reload_time_sec elapses, got %s", c.State())
	}

	clk.Advance(12 * time.Second)
	c.tryReload()
	if c.State() != StateReady {
		t.Fatalf("expected ready once reload cooldown elapses, got %s", c.State())
	}
}

func TestDequeueRejectedPublishesFailureResult(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	c, b := newTestController(t, clk)
	defer b.Close()

	sub, err := b.Subscribe(bus.SubjectEngagementResult, 4)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe()

	target := uuid.New()
	c.dequeueRejected(target, "no ammunition")

	select {
	case msg := <-sub.Messages():
		var rm bus.EngagementResultMessage
		if err := bus.Decode(msg.Payload, &rm); err != nil {
			t.Fatalf("decoding result message: %v", err)
		}
		if rm.Success {
			t.Fatal("expected failure result")
		}
		if rm.TargetMissileID != target {
			t.Fatal("result message target mismatch")
		}
	default:
		t.Fatal("expected an engagement.result message to have been published")
	}
}
