package config

import "testing"

func TestDefaultConfigValidates(t *testing.T) {
	c := GetDefaultConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("default config validation failed: %v", err)
	}
	if c.Engine.TickMS != 100 {
		t.Errorf("expected tick_ms 100, got %d", c.Engine.TickMS)
	}
	if c.Command.MaxRetries != 3 {
		t.Errorf("expected max_retries 3, got %d", c.Command.MaxRetries)
	}
	if c.Command.EngagementProbabilityFloor != 0.3 {
		t.Errorf("expected engagement_probability_floor 0.3, got %f", c.Command.EngagementProbabilityFloor)
	}
	if c.Radar.TrackIdleTTLSec != 30 {
		t.Errorf("expected track_idle_ttl_s 30, got %d", c.Radar.TrackIdleTTLSec)
	}
	if c.Command.ThreatExpirySec != 300 {
		t.Errorf("expected threat_expiry_s 300, got %d", c.Command.ThreatExpirySec)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SimulationConfig)
	}{
		{"empty name", func(c *SimulationConfig) { c.Name = "" }},
		{"zero tick", func(c *SimulationConfig) { c.Engine.TickMS = 0 }},
		{"zero workers", func(c *SimulationConfig) { c.Radar.WorkerPoolSize = 0 }},
		{"bad probability floor", func(c *SimulationConfig) { c.Command.EngagementProbabilityFloor = 1.5 }},
		{"empty dsn", func(c *SimulationConfig) { c.Database.DSN = "" }},
		{"bad log level", func(c *SimulationConfig) { c.Logging.ConsoleLevel = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := GetDefaultConfig()
			tt.mutate(c)
			if err := c.Validate(); err == nil {
				t.Errorf("expected validation error for %s", tt.name)
			}
		})
	}
}

func TestMergeWithCLIOverrides(t *testing.T) {
	c := GetDefaultConfig()
	MergeWithCLIOverrides(c, map[string]interface{}{
		"max_retries":                  5,
		"engagement_probability_floor": 0.5,
		"log_level":                    "debug",
	})

	if c.Command.MaxRetries != 5 {
		t.Errorf("expected max_retries 5, got %d", c.Command.MaxRetries)
	}
	if c.Command.EngagementProbabilityFloor != 0.5 {
		t.Errorf("expected probability floor 0.5, got %f", c.Command.EngagementProbabilityFloor)
	}
	if c.Logging.ConsoleLevel != "debug" {
		t.Errorf("expected log level debug, got %s", c.Logging.ConsoleLevel)
	}
}

func TestMergeWithEnvironment(t *testing.T) {
	c := GetDefaultConfig()
	t.Setenv("AEGIS_MAX_RETRIES", "7")
	t.Setenv("AEGIS_LOG_LEVEL", "warn")

	MergeWithEnvironment(c)

	if c.Command.MaxRetries != 7 {
		t.Errorf("expected max_retries 7, got %d", c.Command.MaxRetries)
	}
	if c.Logging.ConsoleLevel != "warn" {
		t.Errorf("expected log level warn, got %s", c.Logging.ConsoleLevel)
	}
}
