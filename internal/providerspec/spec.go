package providerspec

import (
	"strings"
	"sync"
)

// Transport names the call shape an adapter uses to reach a provider.
type Transport string

const (
	// TransportRelay is a streaming endpoint with server-side conversation
	// cursors (previous_response_id style continuation).
	TransportRelay Transport = "relay"
	// TransportOneshot is a single-shot request/response endpoint; the adapter
	// synthesizes the uniform streaming surface on top of it.
	TransportOneshot Transport = "oneshot"
)

type Spec struct {
	Key            string
	Aliases        []string
	Transport      Transport
	DefaultBaseURL string
	DefaultPath    string
	APIKeyEnv      string
	// Failover is the preferred order of substitute providers when this one
	// has no live adapter. Consumed by the refiner's model resolution.
	Failover []string
}

var (
	providerAliasOnce  sync.Once
	providerAliasIndex map[string]string
)

func providerAliases() map[string]string {
	providerAliasOnce.Do(func() {
		providerAliasIndex = providerAliasIndexFromBuiltins(Builtins())
	})
	return providerAliasIndex
}

func providerAliasIndexFromBuiltins(specs map[string]Spec) map[string]string {
	out := map[string]string{}
	for rawKey, spec := range specs {
		key := strings.ToLower(strings.TrimSpace(rawKey))
		if key == "" {
			continue
		}
		out[key] = key
		for _, rawAlias := range spec.Aliases {
			alias := strings.ToLower(strings.TrimSpace(rawAlias))
			if alias != "" {
				out[alias] = key
			}
		}
	}
	return out
}

// CanonicalProviderKey maps aliases (gemini, claude, chatgpt) to their builtin
// key. Unknown keys pass through unchanged so custom adapters keep working.
func CanonicalProviderKey(in string) string {
	key := strings.ToLower(strings.TrimSpace(in))
	if key == "" {
		return ""
	}
	if canonical, ok := providerAliases()[key]; ok {
		return canonical
	}
	return key
}

func CanonicalizeProviderList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, raw := range in {
		key := CanonicalProviderKey(raw)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
