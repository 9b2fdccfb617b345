package command

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
	return config.GetDefaultConfig()
}

func silentLogger() logger.Logger {
	return logger.NewWithConfig(logger.Config{Level: logger.FatalLevel})
}

func TestAssessClassifiesThreatLevelByTimeToImpact(t *testing.T) {
	c := New(testConfig(), bus.New(), nil, clock.NewManual(time.Now()), silentLogger())

	id := uuid.New()
	// Altitude 50m, no velocity known: falls into the coarse "low altitude"
	// bucket, which the coarse table maps to ttiCoarseLowSec (120s) -> high.
	c.assess(context.Background(), id, testPoint(50), models.Vector3{}, false, 0.5)

	c.mu.Lock()
	threat := c.threats[id]
	c.mu.Unlock()

	if threat == nil {
		t.Fatal("expected a threat assessment to be recorded")
	}
	if threat.Level != models.ThreatHigh {
		t.Fatalf("expected high threat level, got %s", threat.Level)
	}
	if threat.Confidence != 0.5 {
		t.Fatalf("expected confidence 0.5, got %f", threat.Confidence)
	}
}

func TestAssessDoesNotLowerConfidence(t *testing.T) {
	c := New(testConfig(), bus.New(), nil, clock.NewManual(time.Now()), silentLogger())

	id := uuid.New()
	c.assess(context.Background(), id, testPoint(50), models.Vector3{}, false, 0.8)
	c.assess(context.Background(), id, testPoint(50), models.Vector3{}, false, 0.2)

	c.mu.Lock()
	confidence := c.threats[id].Confidence
	c.mu.Unlock()

	if confidence != 0.8 {
		t.Fatalf("expected confidence to stay at its high-water mark 0.8, got %f", confidence)
	}
}

// With no store, tryEngage's candidate loop can never resolve a battery's
// PlatformType, so it must never issue an order even for a critical threat.
func TestTryEngageWithoutStoreNeverIssuesOrders(t *testing.T) {
	c := New(testConfig(), bus.New(), nil, clock.NewManual(time.Now()), silentLogger())
	c.batteries["B1"] = models.Installation{
		Callsign:  "B1",
		Status:    models.InstallationActive,
		AmmoCount: 10,
	}

	id := uuid.New()
	// High altitude with a fast downward velocity yields a low
	// time-to-impact, classifying as critical and crossing the
	// engagement threshold.
	vel := models.Vector3{X: 0, Y: 0, Z: -500}
	c.assess(context.Background(), id, testPoint(5000), vel, true, 0.9)

	if got := c.OrdersIssued(); got != 0 {
		t.Fatalf("expected 0 orders issued without a store, got %d", got)
	}
}

func TestHandleResultClearsThreatOnSuccess(t *testing.T) {
	c := New(testConfig(), bus.New(), nil, clock.NewManual(time.Now()), silentLogger())
	id := uuid.New()
	c.threats[id] = &models.ThreatAssessment{MissileID: id}

	c.handleResult(bus.EngagementResultMessage{TargetMissileID: id, Success: true})

	c.mu.Lock()
	_, ok := c.threats[id]
	c.mu.Unlock()
	if ok {
		t.Fatal("expected threat to be cleared on successful engagement")
	}
}

func TestHandleResultRecordsFailureOnLastAttempt(t *testing.T) {
	c := New(testConfig(), bus.New(), nil, clock.NewManual(time.Now()), silentLogger())
	id := uuid.New()
	c.threats[id] = &models.ThreatAssessment{
		MissileID: id,
		Attempts: []models.EngagementAttempt{
			{BatteryCallsign: "B1", OrderedAt: time.Now()},
		},
	}

	c.handleResult(bus.EngagementResultMessage{TargetMissileID: id, Success: false, FailureReason: "missed"})

	c.mu.Lock()
	threat, ok := c.threats[id]
	c.mu.Unlock()
	if !ok {
		t.Fatal("expected threat to remain after a failed attempt")
	}
	last := threat.Attempts[len(threat.Attempts)-1]
	if last.Succeeded == nil || *last.Succeeded {
		t.Fatal("expected last attempt to be marked unsuccessful")
	}
	if last.FailureReason != "missed" {
		t.Fatalf("expected failure reason to be recorded, got %q", last.FailureReason)
	}
}

func TestHousekeepExpiresStaleNegativeTTIThreats(t *testing.T) {
	clk := clock.NewManual(time.Now())
	c := New(testConfig(), bus.New(), nil, clk, silentLogger())
	c.cfg.Command.ThreatExpirySec = 1

	id := uuid.New()
	c.threats[id] = &models.ThreatAssessment{
		MissileID:        id,
		HasNegativeTTI:   true,
		FirstNegativeTTI: clk.Now(),
	}

	clk.Advance(2 * time.Second)
	c.housekeep(context.Background())

	c.mu.Lock()
	_, ok := c.threats[id]
	c.mu.Unlock()
	if ok {
		t.Fatal("expected stale negative-TTI threat to be expired")
	}
}

func testPoint(altM float64) geo.Point {
	return geo.Point{Lon: -157.86, Lat: 21.31, Alt: altM}
}
