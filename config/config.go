// Package config loads the service configuration from a JSON or YAML
// file with optional SF_-prefixed environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/shotfleet/shotfleet/infra/mqtt"
)

type Config struct {
	MQTT        mqtt.Config       `json:"mqtt"`
	Dispatch    DispatchConfig    `json:"dispatch"`
	Ranking     RankingConfig     `json:"ranking"`
	Schedule    ScheduleConfig    `json:"schedule"`
	Fulfillment FulfillmentConfig `json:"fulfillment"`
	Storage     StorageConfig     `json:"storage"`
	Metrics     MetricsConfig     `json:"metrics"`
	Logging     LoggingConfig     `json:"logging"`
	API         APIConfig         `json:"api"`
}

// Load reads the file at path, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides, e.g. SF_MQTT__BROKER.
	if err := k.Load(env.Provider("SF_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "sf_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) SetDefaults() {
	c.Dispatch.SetDefaults()
	c.Ranking.SetDefaults()
	c.Schedule.SetDefaults()
	c.Fulfillment.SetDefaults()
	c.Storage.SetDefaults()
	c.Logging.SetDefaults()
	c.API.SetDefaults()
}

func (c *Config) Validate() error {
	if err := c.Ranking.Validate(); err != nil {
		return err
	}
	if err := c.Schedule.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	return nil
}

// DispatchConfig tunes the staffing loop.
type DispatchConfig struct {
	// OfferTimeoutSeconds bounds how long the manager waits for a
	// technician to answer an offer.
	OfferTimeoutSeconds int `json:"offer_timeout_seconds"`
	// MaxCandidates caps how many ranked technicians receive offers
	// before the job is reported unstaffable. Zero means no cap.
	MaxCandidates int `json:"max_candidates"`
}

func (c *DispatchConfig) SetDefaults() {
	if c.OfferTimeoutSeconds == 0 {
		c.OfferTimeoutSeconds = 5
	}
}

// RankingConfig holds the scoring weights and shaping constants.
type RankingConfig struct {
	AvailabilityWeight float64 `json:"availability_weight"`
	DistanceWeight     float64 `json:"distance_weight"`
	ReliabilityWeight  float64 `json:"reliability_weight"`
	SkillWeight        float64 `json:"skill_weight"`
	DistanceFalloffKm  float64 `json:"distance_falloff_km"`
	PreferredBoost     float64 `json:"preferred_boost"`
}

func (c *RankingConfig) SetDefaults() {
	if c.AvailabilityWeight == 0 && c.DistanceWeight == 0 &&
		c.ReliabilityWeight == 0 && c.SkillWeight == 0 {
		c.AvailabilityWeight = 0.35
		c.DistanceWeight = 0.30
		c.ReliabilityWeight = 0.20
		c.SkillWeight = 0.15
	}
	if c.DistanceFalloffKm == 0 {
		c.DistanceFalloffKm = 2.0
	}
	if c.PreferredBoost == 0 {
		c.PreferredBoost = 10.0
	}
}

func (c RankingConfig) Validate() error {
	sum := c.AvailabilityWeight + c.DistanceWeight + c.ReliabilityWeight + c.SkillWeight
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("ranking weights must sum to 1.0, got %.3f", sum)
	}
	return nil
}

// ScheduleConfig tunes the availability computer.
type ScheduleConfig struct {
	// SlotMinutes is the slot grid granularity.
	SlotMinutes int `json:"slot_minutes"`
}

func (c *ScheduleConfig) SetDefaults() {
	if c.SlotMinutes == 0 {
		c.SlotMinutes = 30
	}
}

func (c ScheduleConfig) Validate() error {
	if c.SlotMinutes < 0 {
		return fmt.Errorf("slot_minutes must be positive, got %d", c.SlotMinutes)
	}
	return nil
}

// FulfillmentConfig tunes order expiry.
type FulfillmentConfig struct {
	// PendingTTLMinutes expires orders that never saw a payment.
	PendingTTLMinutes int `json:"pending_ttl_minutes"`
	// SweepIntervalSeconds is the reconciler cadence.
	SweepIntervalSeconds int `json:"sweep_interval_seconds"`
}

func (c *FulfillmentConfig) SetDefaults() {
	if c.PendingTTLMinutes == 0 {
		c.PendingTTLMinutes = 30
	}
	if c.SweepIntervalSeconds == 0 {
		c.SweepIntervalSeconds = 60
	}
}

// StorageConfig selects the repository backend.
type StorageConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `json:"backend"`
	// Path is the SQLite database location.
	Path string `json:"path"`
}

func (c *StorageConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.Backend == "sqlite" && c.Path == "" {
		c.Path = "shotfleet.db"
	}
}

func (c StorageConfig) Validate() error {
	if c.Backend != "memory" && c.Backend != "sqlite" {
		return fmt.Errorf("unknown storage backend %s", c.Backend)
	}
	return nil
}

// MetricsConfig enables the Prometheus endpoint and the optional
// InfluxDB sink.
type MetricsConfig struct {
	PrometheusEnabled bool   `json:"prometheus_enabled"`
	PrometheusPort    int    `json:"prometheus_port"`
	InfluxEnabled     bool   `json:"influx_enabled"`
	InfluxURL         string `json:"influx_url"`
	InfluxToken       string `json:"influx_token"`
	InfluxOrg         string `json:"influx_org"`
	InfluxBucket      string `json:"influx_bucket"`
}

// LoggingConfig defines assignment log storage.
type LoggingConfig struct {
	// Backend selects the log store type: "jsonl" or "sqlite".
	Backend string `json:"backend"`
	// Path is the file location of the log store.
	Path string `json:"path"`
}

func (c *LoggingConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" {
		c.Path = "assignments.log"
	}
}

func (c LoggingConfig) Validate() error {
	if c.Backend != "jsonl" && c.Backend != "sqlite" {
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}

// APIConfig configures the HTTP surface.
type APIConfig struct {
	Addr string `json:"addr"`
	// LogsToken protects the assignment-log query endpoint. Empty
	// disables the endpoint.
	LogsToken string `json:"logs_token"`
}

func (c *APIConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}
