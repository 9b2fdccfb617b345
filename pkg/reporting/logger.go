// Package reporting collects simulation events into a timeline and renders
// a colorized end-of-run summary, adapted from the teacher's
// SimulationLogger to the missile-defense event vocabulary: launches,
// detections, engagement orders, intercepts, and impacts in place of drone
// spawns/destructions/team status.
package reporting

import (
	"fmt"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

// Logger collects simulation events and metrics for one run.
type Logger struct {
	runID     string
	startTime time.Time
	events    []Event
	metrics   map[string]Metric
	mu        sync.RWMutex
}

// Event is one logged occurrence.
type Event struct {
	Timestamp time.Time
	Type      string
	Severity  string
	MissileID *uuid.UUID
	Message   string
	Details   map[string]interface{}
}

// Metric tracks a single named numeric series.
type Metric struct {
	Name        string
	Value       float64
	Unit        string
	LastUpdated time.Time
	History     []MetricPoint
}

// MetricPoint is one sample of a Metric's history.
type MetricPoint struct {
	Timestamp time.Time
	Value     float64
}

// Event type constants.
const (
	EventTypeLaunch      = "launch"
	EventTypeDetection   = "detection"
	EventTypeThreat      = "threat_assessment"
	EventTypeEngagement  = "engagement_order"
	EventTypeIntercept   = "intercept"
	EventTypeImpact      = "impact"
	EventTypeBattery     = "battery_status"
	EventTypeSystem      = "system"
)

// Severity constants.
const (
	SeverityDebug    = "debug"
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

var (
	colorDebug    = color.New(color.FgHiBlack)
	colorInfo     = color.New(color.FgCyan)
	colorWarning  = color.New(color.FgYellow)
	colorError    = color.New(color.FgRed)
	colorCritical = color.New(color.FgRed, color.Bold)
	colorAttack   = color.New(color.FgRed, color.Bold)
	colorDefense  = color.New(color.FgBlue, color.Bold)
	colorSuccess  = color.New(color.FgGreen)
)

// New creates a Logger for one simulation run, identified by runID.
func New(runID string) *Logger {
	l := &Logger{
		runID:     runID,
		startTime: time.Now(),
		events:    make([]Event, 0),
		metrics:   make(map[string]Metric),
	}
	l.logColoredMessage(SeverityInfo, "Run Started",
		fmt.Sprintf("ID: %s | Time: %s", runID, l.startTime.Format("15:04:05")))
	return l
}

// LogLaunch logs a missile launch.
func (l *Logger) LogLaunch(missileID uuid.UUID, missileType, callsign string) {
	l.logEvent(Event{
		Timestamp: time.Now(),
		Type:      EventTypeLaunch,
		Severity:  SeverityInfo,
		MissileID: &missileID,
		Message:   fmt.Sprintf("Launch: %s (%s) from %s", missileID, missileType, callsign),
		Details:   map[string]interface{}{"missile_type": missileType, "launch_callsign": callsign},
	})

	typeColor := l.colorForMissileType(missileType)
	l.logColoredMessage(SeverityInfo, "Launch",
		fmt.Sprintf("%s missile %s launched from %s", typeColor.Sprint(missileType), missileID.String()[:8], callsign))
}

// LogDetection logs a radar detection.
func (l *Logger) LogDetection(radarCallsign string, missileID uuid.UUID, confidence float64) {
	l.logEvent(Event{
		Timestamp: time.Now(),
		Type:      EventTypeDetection,
		Severity:  SeverityDebug,
		MissileID: &missileID,
		Message:   fmt.Sprintf("Detection: %s tracked by %s (confidence %.2f)", missileID, radarCallsign, confidence),
		Details:   map[string]interface{}{"radar_callsign": radarCallsign, "confidence": confidence},
	})
}

// LogThreatAssessment logs a threat-level classification.
func (l *Logger) LogThreatAssessment(missileID uuid.UUID, level string, ttiSec float64) {
	l.logEvent(Event{
		Timestamp: time.Now(),
		Type:      EventTypeThreat,
		Severity:  SeverityInfo,
		MissileID: &missileID,
		Message:   fmt.Sprintf("Threat %s classified %s (TTI %.1fs)", missileID.String()[:8], level, ttiSec),
		Details:   map[string]interface{}{"level": level, "time_to_impact_s": ttiSec},
	})

	var threatColor *color.Color
	switch level {
	case "critical":
		threatColor = colorCritical
	case "high":
		threatColor = colorError
	case "medium":
		threatColor = colorWarning
	default:
		threatColor = colorInfo
	}
	l.logColoredMessage(SeverityInfo, "Threat Assessment",
		fmt.Sprintf("%s | level: %s | TTI: %.1fs", missileID.String()[:8], threatColor.Sprint(level), ttiSec))
}

// LogEngagementOrder logs a dispatched engagement order.
func (l *Logger) LogEngagementOrder(targetID uuid.UUID, batteryCallsign string, probability float64) {
	l.logEvent(Event{
		Timestamp: time.Now(),
		Type:      EventTypeEngagement,
		Severity:  SeverityInfo,
		MissileID: &targetID,
		Message:   fmt.Sprintf("Engagement order: %s vs target %s (p=%.2f)", batteryCallsign, targetID, probability),
		Details:   map[string]interface{}{"battery_callsign": batteryCallsign, "probability": probability},
	})
}

// LogIntercept logs a successful intercept.
func (l *Logger) LogIntercept(defenseID, targetID uuid.UUID) {
	l.logEvent(Event{
		Timestamp: time.Now(),
		Type:      EventTypeIntercept,
		Severity:  SeverityInfo,
		MissileID: &defenseID,
		Message:   fmt.Sprintf("Intercept: %s destroyed %s", defenseID.String()[:8], targetID.String()[:8]),
		Details:   map[string]interface{}{"target_missile_id": targetID},
	})
	colorSuccess.Printf("  intercept: %s destroyed target %s\n", defenseID.String()[:8], targetID.String()[:8])
}

// LogImpact logs a munition's terminal outcome (detonation, ground/sea
// impact, or fuel exhaustion).
func (l *Logger) LogImpact(missileID uuid.UUID, outcomeType string, targetAchieved bool) {
	l.logEvent(Event{
		Timestamp: time.Now(),
		Type:      EventTypeImpact,
		Severity:  severityForOutcome(outcomeType),
		MissileID: &missileID,
		Message:   fmt.Sprintf("Impact: %s (%s, target achieved: %t)", missileID.String()[:8], outcomeType, targetAchieved),
		Details:   map[string]interface{}{"outcome_type": outcomeType, "target_achieved": targetAchieved},
	})
}

func severityForOutcome(outcomeType string) string {
	if outcomeType == "target_achieved" {
		return SeverityCritical
	}
	return SeverityWarning
}

// LogBatteryStatus logs a battery state transition.
func (l *Logger) LogBatteryStatus(callsign, state string, ammoRemaining int) {
	l.logEvent(Event{
		Timestamp: time.Now(),
		Type:      EventTypeBattery,
		Severity:  SeverityInfo,
		Message:   fmt.Sprintf("Battery %s: %s (%d rounds remaining)", callsign, state, ammoRemaining),
		Details:   map[string]interface{}{"state": state, "ammo_remaining": ammoRemaining},
	})
}

// LogError logs a system error.
func (l *Logger) LogError(message string, err error) {
	l.logEvent(Event{
		Timestamp: time.Now(),
		Type:      EventTypeSystem,
		Severity:  SeverityError,
		Message:   message,
		Details:   map[string]interface{}{"error": err.Error()},
	})
}

// UpdateMetric records a sample for a named metric.
func (l *Logger) UpdateMetric(name string, value float64, unit string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, exists := l.metrics[name]
	if !exists {
		m = Metric{Name: name, Unit: unit, History: make([]MetricPoint, 0)}
	}
	m.Value = value
	m.LastUpdated = time.Now()
	m.History = append(m.History, MetricPoint{Timestamp: time.Now(), Value: value})
	if len(m.History) > 1000 {
		m.History = m.History[len(m.History)-1000:]
	}
	l.metrics[name] = m
}

// Events returns a copy of every logged event.
func (l *Logger) Events() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	events := make([]Event, len(l.events))
	copy(events, l.events)
	return events
}

// Metrics returns a copy of every tracked metric.
func (l *Logger) Metrics() map[string]Metric {
	l.mu.RLock()
	defer l.mu.RUnlock()
	metrics := make(map[string]Metric, len(l.metrics))
	for k, v := range l.metrics {
		metrics[k] = v
	}
	return metrics
}

// Summary is an aggregated view of one run's events and metrics.
type Summary struct {
	RunID       string
	StartTime   time.Time
	Duration    time.Duration
	TotalEvents int
	EventCounts map[string]int
	Metrics     map[string]Metric
}

// GetSummary aggregates the run's event counts and metrics.
func (l *Logger) GetSummary() Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	eventCounts := make(map[string]int)
	for _, e := range l.events {
		eventCounts[e.Type]++
	}

	return Summary{
		RunID:       l.runID,
		StartTime:   l.startTime,
		Duration:    time.Since(l.startTime),
		TotalEvents: len(l.events),
		EventCounts: eventCounts,
		Metrics:     l.metrics,
	}
}

func (l *Logger) logEvent(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, e)
	if len(l.events) > 10000 {
		l.events = l.events[len(l.events)-10000:]
	}
}

func (l *Logger) logColoredMessage(severity, eventType, message string) {
	timestamp := time.Now().Format("15:04:05.000")

	var severityColor *color.Color
	switch severity {
	case SeverityDebug:
		severityColor = colorDebug
	case SeverityInfo:
		severityColor = colorInfo
	case SeverityWarning:
		severityColor = colorWarning
	case SeverityError:
		severityColor = colorError
	case SeverityCritical:
		severityColor = colorCritical
	default:
		severityColor = colorInfo
	}

	fmt.Printf("[%s] %s %s | %s\n",
		timestamp,
		severityColor.Sprint(fmt.Sprintf("%-8s", severity)),
		eventType,
		message)
}

func (l *Logger) colorForMissileType(missileType string) *color.Color {
	switch missileType {
	case "attack":
		return colorAttack
	case "defense":
		return colorDefense
	default:
		return colorInfo
	}
}

// PrintSummary prints a formatted end-of-run summary.
func (l *Logger) PrintSummary() {
	summary := l.GetSummary()

	colorSuccess.Println("\n==================== RUN SUMMARY ====================")
	colorSuccess.Printf("Run: %s\n", summary.RunID)
	fmt.Printf("Duration: %v | Total Events: %d\n\n", summary.Duration, summary.TotalEvents)

	fmt.Println("Event Distribution:")
	for eventType, count := range summary.EventCounts {
		fmt.Printf("   %-20s: %d\n", eventType, count)
	}

	if len(summary.Metrics) > 0 {
		fmt.Println("\nMetrics:")
		for name, metric := range summary.Metrics {
			fmt.Printf("   %-20s: %.2f %s\n", name, metric.Value, metric.Unit)
		}
	}

	colorSuccess.Println("======================================================")
}
