// Package config loads the chorus run configuration: which providers to
// stand up, how the refiner falls back across models, and which store backs
// sessions. YAML decoding is strict; after defaults are applied the document
// is checked against an embedded JSON Schema.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/danshapiro/chorus/internal/providerspec"
)

type StoreBackend string

const (
	StoreMemory StoreBackend = "memory"
	StoreSQLite StoreBackend = "sqlite"
)

type ProviderConfig struct {
	Transport string   `json:"transport,omitempty" yaml:"transport,omitempty"`
	BaseURL   string   `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Path      string   `json:"path,omitempty" yaml:"path,omitempty"`
	APIKeyEnv string   `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
	Model     string   `json:"model,omitempty" yaml:"model,omitempty"`
	Failover  []string `json:"failover,omitempty" yaml:"failover,omitempty"`
}

type RefinerConfig struct {
	AuthorModel    string   `json:"author_model,omitempty" yaml:"author_model,omitempty"`
	AnalystModel   string   `json:"analyst_model,omitempty" yaml:"analyst_model,omitempty"`
	Fallback       []string `json:"fallback,omitempty" yaml:"fallback,omitempty"`
	StageTimeoutMS int      `json:"stage_timeout_ms,omitempty" yaml:"stage_timeout_ms,omitempty"`
}

type StoreConfig struct {
	Backend StoreBackend `json:"backend,omitempty" yaml:"backend,omitempty"`
	Path    string       `json:"path,omitempty" yaml:"path,omitempty"`
}

type File struct {
	Version   int                       `json:"version" yaml:"version"`
	Store     StoreConfig               `json:"store,omitempty" yaml:"store,omitempty"`
	Providers map[string]ProviderConfig `json:"providers,omitempty" yaml:"providers,omitempty"`
	Refiner   RefinerConfig             `json:"refiner,omitempty" yaml:"refiner,omitempty"`
}

func (f *File) StageTimeout() time.Duration {
	return time.Duration(f.Refiner.StageTimeoutMS) * time.Millisecond
}

const schemaJSON = `{
  "type": "object",
  "properties": {
    "version": {"type": "integer", "minimum": 1},
    "store": {
      "type": "object",
      "properties": {
        "backend": {"enum": ["memory", "sqlite"]},
        "path": {"type": "string"}
      }
    },
    "providers": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "properties": {
          "transport": {"enum": ["relay", "oneshot"]},
          "base_url": {"type": "string"},
          "path": {"type": "string"},
          "api_key_env": {"type": "string"},
          "model": {"type": "string"},
          "failover": {"type": "array", "items": {"type": "string"}}
        }
      }
    },
    "refiner": {
      "type": "object",
      "properties": {
        "author_model": {"type": "string"},
        "analyst_model": {"type": "string"},
        "fallback": {"type": "array", "items": {"type": "string"}},
        "stage_timeout_ms": {"type": "integer", "minimum": 1}
      }
    }
  }
}`

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("config.schema.json", strings.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	return c.Compile("config.schema.json")
})

func Load(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

func Parse(b []byte) (*File, error) {
	var cfg File
	if err := decodeYAMLStrict(b, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeYAMLStrict(b []byte, cfg *File) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	var trailing any
	if err := dec.Decode(&trailing); err != io.EOF {
		if err == nil {
			return fmt.Errorf("yaml: multiple documents are not allowed")
		}
		return err
	}
	return nil
}

// validate round-trips the decoded config through JSON so the schema sees the
// same document shape a JSON consumer would.
func validate(cfg *File) error {
	schema, err := compiledSchema()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	return nil
}

func applyDefaults(cfg *File) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = StoreMemory
	}
	if cfg.Store.Backend == StoreSQLite && cfg.Store.Path == "" {
		cfg.Store.Path = "chorus.db"
	}
	if cfg.Providers == nil {
		cfg.Providers = map[string]ProviderConfig{}
	}
	for id, pc := range cfg.Providers {
		key := providerspec.CanonicalProviderKey(id)
		spec, ok := providerspec.Builtin(key)
		if ok {
			if pc.Transport == "" {
				pc.Transport = string(spec.Transport)
			}
			if pc.BaseURL == "" {
				pc.BaseURL = spec.DefaultBaseURL
			}
			if pc.Path == "" {
				pc.Path = spec.DefaultPath
			}
			if pc.APIKeyEnv == "" {
				pc.APIKeyEnv = spec.APIKeyEnv
			}
			if len(pc.Failover) == 0 {
				pc.Failover = append([]string(nil), spec.Failover...)
			}
		}
		if pc.Transport == "" {
			pc.Transport = "oneshot"
		}
		cfg.Providers[id] = pc
	}
	if cfg.Refiner.StageTimeoutMS == 0 {
		cfg.Refiner.StageTimeoutMS = 60_000
	}
	if len(cfg.Refiner.Fallback) == 0 {
		// Configured providers double as the fallback chain, in sorted order.
		cfg.Refiner.Fallback = sortedProviderKeys(cfg.Providers)
	}
	cfg.Refiner.Fallback = providerspec.CanonicalizeProviderList(cfg.Refiner.Fallback)
}

func sortedProviderKeys(m map[string]ProviderConfig) []string {
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
