package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Generator builds an after-action report from a Logger's recorded events.
// Adapted from the teacher's AARGenerator: same metadata/timeline/statistics
// shape, rescoped from team-vs-team drone combat to single-side
// missile-defense outcomes (launches, intercepts, impacts, battery usage).
type Generator struct {
	logger *Logger
	config ReportConfig
}

// ReportConfig configures report generation.
type ReportConfig struct {
	OutputDir   string
	Format      string // "json" or "markdown"
	DetailLevel string // "summary" or "full"
}

// Report is a full after-action report for one simulation run.
type Report struct {
	Metadata     ReportMetadata      `json:"metadata"`
	Summary      ExecutiveSummary    `json:"summary"`
	Timeline     []TimelineEntry     `json:"timeline"`
	Engagements  EngagementAnalysis  `json:"engagements"`
	Threats      ThreatAnalysis      `json:"threats"`
	Batteries    map[string]BatteryStats `json:"batteries"`
	EventLog     []EventLogEntry     `json:"event_log,omitempty"`
	Statistics   SummaryStatistics   `json:"statistics"`
}

// ReportMetadata identifies the run a Report describes.
type ReportMetadata struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Duration    string    `json:"duration"`
}

// ExecutiveSummary is the top-level outcome of a run.
type ExecutiveSummary struct {
	MissilesLaunched int      `json:"missiles_launched"`
	MissilesIntercepted int   `json:"missiles_intercepted"`
	TargetsAchieved  int      `json:"targets_achieved"`
	InterceptRate    float64  `json:"intercept_rate"`
	KeyEvents        []string `json:"key_events"`
}

// TimelineEntry is one entry in the chronological event timeline.
type TimelineEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	ElapsedTime string    `json:"elapsed_time"`
	EventType   string    `json:"event_type"`
	Description string    `json:"description"`
}

// EngagementAnalysis summarizes engagement attempts across the run.
type EngagementAnalysis struct {
	TotalOrders       int            `json:"total_orders"`
	SuccessfulHits    int            `json:"successful_hits"`
	HitRate           float64        `json:"hit_rate"`
	OrdersByBattery   map[string]int `json:"orders_by_battery"`
}

// ThreatAnalysis summarizes threat classifications observed during the run.
type ThreatAnalysis struct {
	TotalThreatsTracked int            `json:"total_threats_tracked"`
	ThreatsByLevel      map[string]int `json:"threats_by_level"`
	PeakThreatLevel     string         `json:"peak_threat_level"`
}

// BatteryStats summarizes one battery's activity over the run.
type BatteryStats struct {
	Callsign        string `json:"callsign"`
	LaunchesFired   int    `json:"launches_fired"`
	InterceptsScored int   `json:"intercepts_scored"`
}

// EventLogEntry is one raw logged event, included when DetailLevel is "full".
type EventLogEntry struct {
	Timestamp   time.Time              `json:"timestamp"`
	EventType   string                 `json:"event_type"`
	Severity    string                 `json:"severity"`
	Description string                 `json:"description"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// SummaryStatistics is the run's headline numbers.
type SummaryStatistics struct {
	TotalMissilesLaunched int     `json:"total_missiles_launched"`
	TotalIntercepts       int     `json:"total_intercepts"`
	TotalImpacts          int     `json:"total_impacts"`
	AverageResponseTimeMs float64 `json:"avg_response_time_ms"`
}

// NewGenerator creates a Generator reading from l.
func NewGenerator(l *Logger, cfg ReportConfig) *Generator {
	return &Generator{logger: l, config: cfg}
}

// Generate builds a Report from the logger's current event history.
func (g *Generator) Generate() (*Report, error) {
	summary := g.logger.GetSummary()
	events := g.logger.Events()

	report := &Report{
		Metadata: ReportMetadata{
			RunID:       summary.RunID,
			GeneratedAt: time.Now(),
			StartTime:   summary.StartTime,
			EndTime:     summary.StartTime.Add(summary.Duration),
			Duration:    summary.Duration.String(),
		},
		Batteries: make(map[string]BatteryStats),
	}

	report.Summary = g.executiveSummary(events)
	report.Timeline = g.timeline(events, summary.StartTime)
	report.Engagements = g.engagementAnalysis(events)
	report.Threats = g.threatAnalysis(events)
	report.Batteries = g.batteryAnalysis(events)
	report.Statistics = g.statistics(events)

	if g.config.DetailLevel == "full" {
		report.EventLog = g.eventLog(events)
	}

	return report, nil
}

func (g *Generator) executiveSummary(events []Event) ExecutiveSummary {
	var s ExecutiveSummary
	var keyEvents []string

	for _, e := range events {
		switch e.Type {
		case EventTypeLaunch:
			s.MissilesLaunched++
		case EventTypeIntercept:
			s.MissilesIntercepted++
			keyEvents = append(keyEvents, e.Message)
		case EventTypeImpact:
			if achieved, ok := e.Details["target_achieved"].(bool); ok && achieved {
				s.TargetsAchieved++
				keyEvents = append(keyEvents, e.Message)
			}
		}
	}

	if s.MissilesLaunched > 0 {
		s.InterceptRate = float64(s.MissilesIntercepted) / float64(s.MissilesLaunched)
	}
	if len(keyEvents) > 10 {
		keyEvents = keyEvents[:10]
	}
	s.KeyEvents = keyEvents
	return s
}

func (g *Generator) timeline(events []Event, start time.Time) []TimelineEntry {
	timeline := make([]TimelineEntry, 0, len(events))
	for _, e := range events {
		timeline = append(timeline, TimelineEntry{
			Timestamp:   e.Timestamp,
			ElapsedTime: e.Timestamp.Sub(start).String(),
			EventType:   e.Type,
			Description: e.Message,
		})
	}
	sort.Slice(timeline, func(i, j int) bool { return timeline[i].Timestamp.Before(timeline[j].Timestamp) })
	return timeline
}

func (g *Generator) engagementAnalysis(events []Event) EngagementAnalysis {
	analysis := EngagementAnalysis{OrdersByBattery: make(map[string]int)}

	for _, e := range events {
		switch e.Type {
		case EventTypeEngagement:
			analysis.TotalOrders++
			if callsign, ok := e.Details["battery_callsign"].(string); ok {
				analysis.OrdersByBattery[callsign]++
			}
		case EventTypeIntercept:
			analysis.SuccessfulHits++
		}
	}

	if analysis.TotalOrders > 0 {
		analysis.HitRate = float64(analysis.SuccessfulHits) / float64(analysis.TotalOrders)
	}
	return analysis
}

func (g *Generator) threatAnalysis(events []Event) ThreatAnalysis {
	analysis := ThreatAnalysis{ThreatsByLevel: make(map[string]int)}
	seen := make(map[uuid.UUID]struct{})
	levelRank := map[string]int{"low": 0, "medium": 1, "high": 2, "critical": 3}
	peakRank := -1

	for _, e := range events {
		if e.Type != EventTypeThreat {
			continue
		}
		if e.MissileID != nil {
			seen[*e.MissileID] = struct{}{}
		}
		level, _ := e.Details["level"].(string)
		analysis.ThreatsByLevel[level]++
		if r, ok := levelRank[level]; ok && r > peakRank {
			peakRank = r
			analysis.PeakThreatLevel = level
		}
	}

	analysis.TotalThreatsTracked = len(seen)
	return analysis
}

func (g *Generator) batteryAnalysis(events []Event) map[string]BatteryStats {
	batteries := make(map[string]BatteryStats)

	for _, e := range events {
		switch e.Type {
		case EventTypeLaunch:
			callsign, ok := e.Details["launch_callsign"].(string)
			if !ok || callsign == "" {
				continue
			}
			stats := batteries[callsign]
			stats.Callsign = callsign
			stats.LaunchesFired++
			batteries[callsign] = stats
		case EventTypeEngagement:
			callsign, ok := e.Details["battery_callsign"].(string)
			if !ok {
				continue
			}
			if _, exists := batteries[callsign]; !exists {
				batteries[callsign] = BatteryStats{Callsign: callsign}
			}
		}
	}
	return batteries
}

func (g *Generator) statistics(events []Event) SummaryStatistics {
	var stats SummaryStatistics
	for _, e := range events {
		switch e.Type {
		case EventTypeLaunch:
			stats.TotalMissilesLaunched++
		case EventTypeIntercept:
			stats.TotalIntercepts++
		case EventTypeImpact:
			stats.TotalImpacts++
		}
	}
	return stats
}

func (g *Generator) eventLog(events []Event) []EventLogEntry {
	log := make([]EventLogEntry, 0, len(events))
	for _, e := range events {
		log = append(log, EventLogEntry{
			Timestamp:   e.Timestamp,
			EventType:   e.Type,
			Severity:    e.Severity,
			Description: e.Message,
			Details:     e.Details,
		})
	}
	return log
}

// Save writes report to g.config.OutputDir in the configured format.
func (g *Generator) Save(report *Report) (string, error) {
	if err := os.MkdirAll(g.config.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	runIDPrefix := report.Metadata.RunID
	if len(runIDPrefix) > 8 {
		runIDPrefix = runIDPrefix[:8]
	}
	filename := fmt.Sprintf("report_%s_%s", runIDPrefix, timestamp)

	switch g.config.Format {
	case "markdown":
		return g.saveMarkdown(report, filename)
	default:
		return g.saveJSON(report, filename)
	}
}

func (g *Generator) saveJSON(report *Report, filename string) (string, error) {
	path := filepath.Join(g.config.OutputDir, filename+".json")
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	return path, nil
}

func (g *Generator) saveMarkdown(report *Report, filename string) (string, error) {
	path := filepath.Join(g.config.OutputDir, filename+".md")

	var b []byte
	b = append(b, fmt.Sprintf("# Run Report: %s\n\n", report.Metadata.RunID)...)
	b = append(b, fmt.Sprintf("Duration: %s\n\n", report.Metadata.Duration)...)
	b = append(b, "## Summary\n\n"...)
	b = append(b, fmt.Sprintf("- Missiles launched: %d\n", report.Summary.MissilesLaunched)...)
	b = append(b, fmt.Sprintf("- Missiles intercepted: %d\n", report.Summary.MissilesIntercepted)...)
	b = append(b, fmt.Sprintf("- Targets achieved: %d\n", report.Summary.TargetsAchieved)...)
	b = append(b, fmt.Sprintf("- Intercept rate: %.1f%%\n\n", report.Summary.InterceptRate*100)...)
	b = append(b, "## Batteries\n\n"...)
	for _, stats := range report.Batteries {
		b = append(b, fmt.Sprintf("- %s: %d launches\n", stats.Callsign, stats.LaunchesFired)...)
	}

	if err := os.WriteFile(path, b, 0644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	return path, nil
}
