package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*SimulationConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config SimulationConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadConfigOrDefault loads config from path, falling back to well-known
// default locations, and finally to GetDefaultConfig. Environment
// overrides are always applied afterward.
func LoadConfigOrDefault(path string) (*SimulationConfig, error) {
	var config *SimulationConfig

	if path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			fmt.Printf("Warning: could not load config from %s: %v\n", path, err)
		} else {
			config = loaded
		}
	}

	if config == nil {
		defaultPaths := []string{
			"config.yaml",
			"aegis-sim.yaml",
			filepath.Join("cmd", "aegis-cli", "config.yaml"),
		}
		for _, p := range defaultPaths {
			if _, err := os.Stat(p); err == nil {
				if loaded, err := LoadConfig(p); err == nil {
					fmt.Printf("Loaded config from: %s\n", p)
					config = loaded
					break
				}
			}
		}
	}

	if config == nil {
		fmt.Println("Using default configuration")
		config = GetDefaultConfig()
	}

	MergeWithEnvironment(config)

	return config, nil
}

// SaveConfig writes config to path as YAML, validating first.
func SaveConfig(config *SimulationConfig, path string) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// MergeWithCLIOverrides applies CLI parameter overrides onto config.
func MergeWithCLIOverrides(config *SimulationConfig, overrides map[string]interface{}) {
	for key, value := range overrides {
		switch key {
		case "tick_ms":
			if v, ok := toInt(value); ok && v > 0 {
				config.Engine.TickMS = v
			}
		case "max_retries":
			if v, ok := toInt(value); ok && v > 0 {
				config.Command.MaxRetries = v
			}
		case "engagement_probability_floor":
			if v, ok := toFloat(value); ok && v >= 0 && v <= 1 {
				config.Command.EngagementProbabilityFloor = v
			}
		case "track_idle_ttl_s":
			if v, ok := toInt(value); ok && v > 0 {
				config.Radar.TrackIdleTTLSec = v
			}
		case "threat_expiry_s":
			if v, ok := toInt(value); ok && v > 0 {
				config.Command.ThreatExpirySec = v
			}
		case "center_lat":
			if v, ok := toFloat(value); ok {
				config.Scenario.CenterLat = v
			}
		case "center_lon":
			if v, ok := toFloat(value); ok {
				config.Scenario.CenterLon = v
			}
		case "center_alt":
			if v, ok := toFloat(value); ok {
				config.Scenario.CenterAlt = v
			}
		case "log_level":
			if v, ok := value.(string); ok {
				config.Logging.ConsoleLevel = v
			}
		case "no_color":
			if v, ok := value.(bool); ok {
				config.Logging.NoColor = v
			}
		}
	}
}

// LoadConfigWithOverrides loads config and applies both environment and
// CLI overrides, in that order, then re-validates.
func LoadConfigWithOverrides(path string, cliOverrides map[string]interface{}) (*SimulationConfig, error) {
	config, err := LoadConfigOrDefault(path)
	if err != nil {
		return nil, err
	}

	if cliOverrides != nil {
		MergeWithCLIOverrides(config, cliOverrides)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed after overrides: %w", err)
	}

	return config, nil
}

// MergeWithEnvironment applies environment-variable overrides onto config.
func MergeWithEnvironment(config *SimulationConfig) {
	if v := os.Getenv("AEGIS_TICK_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Engine.TickMS = n
		}
	}
	if v := os.Getenv("AEGIS_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Command.MaxRetries = n
		}
	}
	if v := os.Getenv("AEGIS_ENGAGEMENT_PROBABILITY_FLOOR"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			config.Command.EngagementProbabilityFloor = f
		}
	}
	if v := os.Getenv("AEGIS_DATABASE_DSN"); v != "" {
		config.Database.DSN = v
	}
	if v := os.Getenv("AEGIS_LOG_LEVEL"); v != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		for _, valid := range validLevels {
			if strings.ToLower(v) == valid {
				config.Logging.ConsoleLevel = valid
				break
			}
		}
	}
	if v := os.Getenv("AEGIS_NO_COLOR"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Logging.NoColor = b
		}
	}
	if v := os.Getenv("AEGIS_RANDOM_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Scenario.RandomSeed = n
		}
	}
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
