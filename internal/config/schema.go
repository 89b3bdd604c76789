package config

import (
	"fmt"
	"time"

	"riskgate/internal/risk"
)

// Config is the top-level YAML structure.
type Config struct {
	Version string     `yaml:"version"`
	Server  ServerConf `yaml:"server"`
	Engine  EngineConf `yaml:"engine"`
	Audit   AuditConf  `yaml:"audit"`
	Intake  IntakeConf `yaml:"intake"`
	Risk    RiskConf   `yaml:"risk"`
}

// ServerConf holds HTTP listener settings.
type ServerConf struct {
	Addr string `yaml:"addr"`
}

// EngineConf holds tunable concurrency settings.
type EngineConf struct {
	EventWorkers   int `yaml:"event_workers"`
	QueueDepth     int `yaml:"queue_depth"`
	EventTimeoutMs int `yaml:"event_timeout_ms"`
}

// AuditConf locates the activity trail.
type AuditConf struct {
	Path string `yaml:"path"`
}

// IntakeConf configures optional non-HTTP event sources.
type IntakeConf struct {
	Redis RedisConf `yaml:"redis"`
}

// RedisConf configures the Redis list intake.
type RedisConf struct {
	Enabled        bool   `yaml:"enabled"`
	Addr           string `yaml:"addr"`
	Password       string `yaml:"password"`
	DB             int    `yaml:"db"`
	Key            string `yaml:"key"`
	BlockTimeoutMs int    `yaml:"block_timeout_ms"`
}

// RiskConf is the operator-tunable risk rule set. Empty sections fall back
// to the built-in defaults so a minimal config stays spec-equivalent.
type RiskConf struct {
	SuspiciousEvents    map[string]string `yaml:"suspicious_events"`
	HighValueThreshold  float64           `yaml:"high_value_threshold"`
	StaleAfterSeconds   int               `yaml:"stale_after_seconds"`
	SuspiciousLocations []string          `yaml:"suspicious_locations"`
}

// Rules builds the immutable rule set used by the detector and classifier.
func (rc RiskConf) Rules() (*risk.Rules, error) {
	rules := risk.DefaultRules()

	if len(rc.SuspiciousEvents) > 0 {
		vocab := make(map[string]risk.Level, len(rc.SuspiciousEvents))
		for evType, label := range rc.SuspiciousEvents {
			lvl, err := risk.ParseLevel(label)
			if err != nil {
				return nil, fmt.Errorf("config: suspicious_events[%s]: %w", evType, err)
			}
			vocab[evType] = lvl
		}
		rules.SuspiciousEvents = vocab
	}
	if rc.HighValueThreshold > 0 {
		rules.HighValueThreshold = rc.HighValueThreshold
	}
	if rc.StaleAfterSeconds > 0 {
		rules.StaleAfter = time.Duration(rc.StaleAfterSeconds) * time.Second
	}
	if len(rc.SuspiciousLocations) > 0 {
		rules.SuspiciousLocations = append([]string(nil), rc.SuspiciousLocations...)
	}
	return rules, nil
}
