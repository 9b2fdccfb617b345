package engine

import (
	"context"
	"testing"
	"time"

	"github.com/aegis-sim/aegis-sim/pkg/bus"
	"github.com/aegis-sim/aegis-sim/pkg/clock"
	"github.com/aegis-sim/aegis-sim/pkg/config"
	"github.com/aegis-sim/aegis-sim/pkg/logger"
)

func testConfig() *config.SimulationConfig {
	cfg := config.GetDefaultConfig()
	cfg.Engine.TickMS = 5
	return cfg
}

func silentLogger() logger.Logger {
	return logger.NewWithConfig(logger.Config{Level: logger.FatalLevel})
}

func launchMessage(callsign string) bus.LaunchMessage {
	return bus.LaunchMessage{
		Type:             "missile_launch",
		PlatformNickname: "unknown-test-platform",
		LaunchCallsign:   callsign,
		LaunchLat:        21.31,
		LaunchLon:        -157.86,
		LaunchAlt:        0,
		TargetLat:        21.40,
		TargetLon:        -157.90,
		TargetAlt:        0,
		MissileType:      "attack",
		Timestamp:        time.Now(),
	}
}

// Without a store, PlatformType lookups are skipped (per New's doc
// comment) and the munition gets a zero-value catalog row: zero fuel
// capacity means it is born with zero fuel remaining, so the engine must
// terminate it by fuel exhaustion on its very first tick rather than
// publishing any missile.position for it.
func TestEngineTerminatesStorelessLaunchByFuelExhaustion(t *testing.T) {
	b := bus.New()
	defer b.Close()

	eng := New(testConfig(), b, nil, clock.NewManual(time.Now()), silentLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	impactSub, err := b.Subscribe(bus.SubjectMissileImpact, 8)
	if err != nil {
		t.Fatalf("subscribing to impacts: %v", err)
	}
	defer impactSub.Unsubscribe()
	positionSub, err := b.Subscribe(bus.SubjectMissilePosition, 8)
	if err != nil {
		t.Fatalf("subscribing to positions: %v", err)
	}
	defer positionSub.Unsubscribe()

	go func() {
		if err := eng.Run(ctx); err != nil && ctx.Err() == nil {
			t.Errorf("engine run returned error: %v", err)
		}
	}()
	t.Cleanup(func() { _ = eng.Stop() })

	// Run() only subscribes once its goroutine starts; give it a moment.
	time.Sleep(20 * time.Millisecond)

	payload, err := bus.Encode(launchMessage("A1-LAUNCH"))
	if err != nil {
		t.Fatalf("encoding launch: %v", err)
	}
	pubCtx, pubCancel := context.WithTimeout(ctx, time.Second)
	defer pubCancel()
	if err := b.PublishReliable(pubCtx, bus.SubjectSimulationLaunch, payload); err != nil {
		t.Fatalf("publishing launch: %v", err)
	}

	select {
	case msg := <-impactSub.Messages():
		var im bus.ImpactMessage
		if err := bus.Decode(msg.Payload, &im); err != nil {
			t.Fatalf("decoding impact: %v", err)
		}
		if im.OutcomeType != "fuel_exhaustion" {
			t.Fatalf("expected fuel_exhaustion outcome, got %q", im.OutcomeType)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for missile.impact")
	}

	select {
	case <-positionSub.Messages():
		t.Fatal("did not expect a missile.position for a munition born with zero fuel")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEngineDropsMalformedLaunchMessage(t *testing.T) {
	b := bus.New()
	defer b.Close()

	eng := New(testConfig(), b, nil, clock.NewManual(time.Now()), silentLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = eng.Run(ctx) }()
	t.Cleanup(func() { _ = eng.Stop() })
	time.Sleep(20 * time.Millisecond)

	pubCtx, pubCancel := context.WithTimeout(ctx, time.Second)
	defer pubCancel()
	if err := b.PublishReliable(pubCtx, bus.SubjectSimulationLaunch, []byte("not json")); err != nil {
		t.Fatalf("publishing malformed launch: %v", err)
	}

	// The engine must keep running after a decode failure rather than
	// wedging its select loop; a well-formed launch afterward should
	// still be accepted and eventually produce an impact.
	impactSub, err := b.Subscribe(bus.SubjectMissileImpact, 4)
	if err != nil {
		t.Fatalf("subscribing to impacts: %v", err)
	}
	defer impactSub.Unsubscribe()

	payload, _ := bus.Encode(launchMessage("A1-LAUNCH"))
	if err := b.PublishReliable(pubCtx, bus.SubjectSimulationLaunch, payload); err != nil {
		t.Fatalf("publishing launch: %v", err)
	}

	select {
	case <-impactSub.Messages():
	case <-time.After(2 * time.Second):
		t.Fatal("engine appears stuck after malformed launch message")
	}
}
