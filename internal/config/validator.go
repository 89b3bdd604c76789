package config

import (
	"fmt"
	"strings"

	"riskgate/internal/risk"
)

// Validate checks the config for:
//   - Required fields and sane engine/intake values
//   - Parseable risk severities and positive thresholds
//
// It reports every problem, not just the first.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Version == "" {
		errs = append(errs, "version is required")
	}
	if cfg.Engine.EventWorkers < 1 {
		errs = append(errs, "engine.event_workers must be >= 1")
	}
	if cfg.Engine.QueueDepth < 1 {
		errs = append(errs, "engine.queue_depth must be >= 1")
	}
	if cfg.Engine.EventTimeoutMs < 1 {
		errs = append(errs, "engine.event_timeout_ms must be >= 1")
	}
	if cfg.Audit.Path == "" {
		errs = append(errs, "audit.path is required")
	}

	if cfg.Intake.Redis.Enabled && cfg.Intake.Redis.Key == "" {
		errs = append(errs, "intake.redis.key is required when the redis intake is enabled")
	}

	for evType, label := range cfg.Risk.SuspiciousEvents {
		if _, err := risk.ParseLevel(label); err != nil {
			errs = append(errs, fmt.Sprintf("risk.suspicious_events[%s]: invalid severity %q", evType, label))
		}
	}
	if cfg.Risk.HighValueThreshold < 0 {
		errs = append(errs, "risk.high_value_threshold must not be negative")
	}
	if cfg.Risk.StaleAfterSeconds < 0 {
		errs = append(errs, "risk.stale_after_seconds must not be negative")
	}
	for i, loc := range cfg.Risk.SuspiciousLocations {
		if strings.TrimSpace(loc) == "" {
			errs = append(errs, fmt.Sprintf("risk.suspicious_locations[%d] must not be blank", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
