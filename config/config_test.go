package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `mqtt:
  broker: "tcp://localhost:1883"
  client_id: "cli"
  answer_topic: "technician/+/answer"
  use_tls: false
dispatch:
  offer_timeout_seconds: 3
  max_candidates: 5
ranking:
  availability_weight: 0.4
  distance_weight: 0.3
  reliability_weight: 0.2
  skill_weight: 0.1
  distance_falloff_km: 3.5
schedule:
  slot_minutes: 15
fulfillment:
  pending_ttl_minutes: 10
storage:
  backend: "sqlite"
  path: "test.db"
logging:
  backend: "jsonl"
  path: "assign.log"
api:
  addr: ":9999"
  logs_token: "secret"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"client_id", cfg.MQTT.ClientID, "cli"},
		{"answer_topic", cfg.MQTT.AnswerTopic, "technician/+/answer"},
		{"offer_timeout_seconds", cfg.Dispatch.OfferTimeoutSeconds, 3},
		{"max_candidates", cfg.Dispatch.MaxCandidates, 5},
		{"availability_weight", cfg.Ranking.AvailabilityWeight, 0.4},
		{"distance_falloff_km", cfg.Ranking.DistanceFalloffKm, 3.5},
		{"preferred_boost_default", cfg.Ranking.PreferredBoost, 10.0},
		{"slot_minutes", cfg.Schedule.SlotMinutes, 15},
		{"pending_ttl_minutes", cfg.Fulfillment.PendingTTLMinutes, 10},
		{"sweep_interval_default", cfg.Fulfillment.SweepIntervalSeconds, 60},
		{"storage_backend", cfg.Storage.Backend, "sqlite"},
		{"storage_path", cfg.Storage.Path, "test.db"},
		{"log_backend", cfg.Logging.Backend, "jsonl"},
		{"api_addr", cfg.API.Addr, ":9999"},
		{"logs_token", cfg.API.LogsToken, "secret"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: got %v want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("x = 1"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestLoadBadWeights(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	data := `{"ranking": {"availability_weight": 0.9, "distance_weight": 0.9,
        "reliability_weight": 0.1, "skill_weight": 0.1}}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for weights not summing to 1")
	}
}

func TestDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Schedule.SlotMinutes != 30 {
		t.Errorf("slot_minutes default: got %d", cfg.Schedule.SlotMinutes)
	}
	if cfg.Dispatch.OfferTimeoutSeconds != 5 {
		t.Errorf("offer_timeout default: got %d", cfg.Dispatch.OfferTimeoutSeconds)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("storage backend default: got %s", cfg.Storage.Backend)
	}
	if cfg.Ranking.AvailabilityWeight != 0.35 {
		t.Errorf("availability weight default: got %v", cfg.Ranking.AvailabilityWeight)
	}
	if cfg.API.Addr != ":8080" {
		t.Errorf("api addr default: got %s", cfg.API.Addr)
	}
}
