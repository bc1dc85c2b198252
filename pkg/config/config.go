// Package config resolves construction-time options for the orchestrator:
// defaults, then an optional TOML file, then environment variables (env
// wins), matching the layered resolution used elsewhere in this corpus
// for small agent services.
package config

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/cortexmem/memcore/pkg/cortexerr"
)

// LLMConfig selects the Completer/Embedder backend.
type LLMConfig struct {
	Provider   string `toml:"provider" validate:"omitempty,oneof=openrouter google"`
	APIKey     string `toml:"api_key"`
	Model      string `toml:"model"`
	EmbedModel string `toml:"embed_model"`
}

// GraphConfig selects the optional graph sync backend.
type GraphConfig struct {
	URI      string `toml:"uri"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// BeliefRevisionConfig controls the C4 engine's behavior. A caller can
// disable the whole engine, or individually toggle slot matching and LLM
// arbitration.
type BeliefRevisionConfig struct {
	Enabled       bool `toml:"enabled"`
	SlotMatching  bool `toml:"slot_matching"`
	LLMResolution bool `toml:"llm_resolution"`
}

// DefaultBeliefRevisionConfig matches the documented default: every
// sub-behavior on.
func DefaultBeliefRevisionConfig() BeliefRevisionConfig {
	return BeliefRevisionConfig{Enabled: true, SlotMatching: true, LLMResolution: true}
}

// StreamingConfig controls rememberStream's progressive-write cadence and
// failure handling.
type StreamingConfig struct {
	PartialResponseIntervalMs int    `toml:"partial_response_interval_ms"`
	FactExtractionThreshold   int    `toml:"fact_extraction_threshold"`
	GraphSyncIntervalMs       int    `toml:"graph_sync_interval_ms"`
	StreamTimeoutMs           int    `toml:"stream_timeout_ms"`
	MaxRetries                int    `toml:"max_retries"`
	MaxResponseLength         int    `toml:"max_response_length"`
	PartialFailureHandling    string `toml:"partial_failure_handling" validate:"omitempty,oneof=store-partial rollback retry best-effort"`
	GenerateResumeToken       bool   `toml:"generate_resume_token"`
}

// DefaultStreamingConfig matches the spec's illustrative defaults.
func DefaultStreamingConfig() StreamingConfig {
	return StreamingConfig{
		PartialResponseIntervalMs: 2000,
		FactExtractionThreshold:   500,
		GraphSyncIntervalMs:       5000,
		StreamTimeoutMs:           30000,
		MaxRetries:                3,
		MaxResponseLength:         1 << 20,
		PartialFailureHandling:    "store-partial",
	}
}

// Auth stamps tenantId on every write and scopes reads.
type Auth struct {
	UserID         string            `toml:"-"`
	TenantID       string            `toml:"-"`
	OrganizationID string            `toml:"-"`
	SessionID      string            `toml:"-"`
	AuthProvider   string            `toml:"-"`
	Claims         map[string]string `toml:"-"`
	Metadata       map[string]string `toml:"-"`
}

// Config is the full construction-time configuration for a Client.
type Config struct {
	DatabaseDSN    string               `toml:"database_dsn" validate:"required"`
	LLM            LLMConfig            `toml:"llm"`
	Graph          GraphConfig          `toml:"graph"`
	GraphSync      bool                 `toml:"graph_sync"`
	FactExtraction bool                 `toml:"fact_extraction"`
	BeliefRevision BeliefRevisionConfig `toml:"belief_revision"`
	Streaming      StreamingConfig      `toml:"streaming"`
	Telemetry      TelemetryConfig      `toml:"telemetry"`
	Auth           Auth                 `toml:"-"`
}

// TelemetryConfig controls OTLP export.
type TelemetryConfig struct {
	ServiceName string `toml:"service_name"`
	Endpoint    string `toml:"endpoint"`
	Insecure    bool   `toml:"insecure"`
}

// Default returns a Config with every documented default applied.
func Default() Config {
	return Config{
		DatabaseDSN:    ":memory:",
		GraphSync:      false,
		FactExtraction: true,
		BeliefRevision: DefaultBeliefRevisionConfig(),
		Streaming:      DefaultStreamingConfig(),
		Telemetry:      TelemetryConfig{ServiceName: "memcore"},
	}
}

var validate = validator.New()

// Load resolves configuration as defaults -> .env file -> TOML file ->
// environment variables, with environment variables always winning. path
// may be empty, in which case no TOML file is read.
func Load(path string) (Config, error) {
	_ = godotenv.Load() // optional; a missing .env is not an error

	cfg := Default()

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if _, decodeErr := toml.Decode(string(data), &cfg); decodeErr != nil {
				return cfg, cortexerr.Wrap(cortexerr.Validation, "config.load", "malformed config file", decodeErr)
			}
		}
	}

	applyEnv(&cfg)

	if err := validate.Struct(cfg); err != nil {
		return cfg, cortexerr.Wrap(cortexerr.Validation, "config.load", "invalid configuration", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CONVEX_URL"); v != "" {
		cfg.DatabaseDSN = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
		if cfg.LLM.Provider == "" {
			cfg.LLM.Provider = "openrouter"
		}
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("NEO4J_URI"); v != "" {
		cfg.Graph.URI = v
		cfg.Graph.Username = envOr("NEO4J_USERNAME", cfg.Graph.Username)
		cfg.Graph.Password = envOr("NEO4J_PASSWORD", cfg.Graph.Password)
	} else if v := os.Getenv("MEMGRAPH_URI"); v != "" {
		cfg.Graph.URI = v
		cfg.Graph.Username = envOr("MEMGRAPH_USERNAME", cfg.Graph.Username)
		cfg.Graph.Password = envOr("MEMGRAPH_PASSWORD", cfg.Graph.Password)
	}
	if v := os.Getenv("CORTEX_GRAPH_SYNC"); v != "" {
		cfg.GraphSync = v == "true" || v == "1"
	}
	if v := os.Getenv("CORTEX_FACT_EXTRACTION"); v != "" {
		cfg.FactExtraction = v == "true" || v == "1"
	}
	if v := os.Getenv("CORTEX_FACT_EXTRACTION_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
