package config

import (
	"strings"
	"testing"
	"time"
)

func TestParse_DefaultsFillFromBuiltinSpecs(t *testing.T) {
	cfg, err := Parse([]byte(`
version: 1
providers:
  openai: {}
  anthropic:
    model: claude-sonnet-4-5
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	oa := cfg.Providers["openai"]
	if oa.Transport != "relay" || oa.APIKeyEnv != "OPENAI_API_KEY" {
		t.Fatalf("openai defaults: %+v", oa)
	}
	an := cfg.Providers["anthropic"]
	if an.Transport != "oneshot" || an.Model != "claude-sonnet-4-5" {
		t.Fatalf("anthropic defaults: %+v", an)
	}
	if cfg.Store.Backend != StoreMemory {
		t.Fatalf("store backend: %q", cfg.Store.Backend)
	}
	if cfg.Refiner.StageTimeoutMS != 60_000 || cfg.StageTimeout() != 60*time.Second {
		t.Fatalf("stage timeout: %d", cfg.Refiner.StageTimeoutMS)
	}
}

func TestParse_FallbackDefaultsToConfiguredProviders(t *testing.T) {
	cfg, err := Parse([]byte(`
providers:
  gemini: {}
  claude: {}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	// Aliases canonicalize and order is deterministic.
	got := strings.Join(cfg.Refiner.Fallback, ",")
	if got != "anthropic,google" {
		t.Fatalf("fallback: %v", cfg.Refiner.Fallback)
	}
}

func TestParse_SQLiteBackendGetsDefaultPath(t *testing.T) {
	cfg, err := Parse([]byte("store:\n  backend: sqlite\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Store.Backend != StoreSQLite || cfg.Store.Path != "chorus.db" {
		t.Fatalf("store: %+v", cfg.Store)
	}
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	if _, err := Parse([]byte("providres:\n  openai: {}\n")); err == nil {
		t.Fatalf("typo'd key should fail strict decode")
	}
}

func TestParse_SchemaRejectsBadBackend(t *testing.T) {
	if _, err := Parse([]byte("store:\n  backend: redis\n")); err == nil {
		t.Fatalf("unsupported backend should fail validation")
	}
}

func TestParse_SchemaRejectsBadTransport(t *testing.T) {
	if _, err := Parse([]byte("providers:\n  openai:\n    transport: carrier-pigeon\n")); err == nil {
		t.Fatalf("unknown transport should fail validation")
	}
}

func TestParse_ExplicitValuesWinOverDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
providers:
  openai:
    base_url: http://localhost:9999
    api_key_env: MY_KEY
refiner:
  fallback: [anthropic/claude-sonnet-4-5]
  stage_timeout_ms: 1500
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	oa := cfg.Providers["openai"]
	if oa.BaseURL != "http://localhost:9999" || oa.APIKeyEnv != "MY_KEY" {
		t.Fatalf("provider overrides: %+v", oa)
	}
	if len(cfg.Refiner.Fallback) != 1 || cfg.Refiner.Fallback[0] != "anthropic/claude-sonnet-4-5" {
		t.Fatalf("fallback: %v", cfg.Refiner.Fallback)
	}
	if cfg.StageTimeout() != 1500*time.Millisecond {
		t.Fatalf("stage timeout: %v", cfg.StageTimeout())
	}
}
