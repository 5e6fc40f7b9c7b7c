package providerspec

import "testing"

func TestBuiltinSpecsIncludeCoreProviders(t *testing.T) {
	s := Builtins()
	for _, key := range []string{"openai", "anthropic", "google", "perplexity"} {
		if _, ok := s[key]; !ok {
			t.Fatalf("missing builtin provider %q", key)
		}
	}
}

func TestCanonicalProviderKey_Aliases(t *testing.T) {
	if got := CanonicalProviderKey("gemini"); got != "google" {
		t.Fatalf("gemini alias: got %q want %q", got, "google")
	}
	if got := CanonicalProviderKey(" Claude "); got != "anthropic" {
		t.Fatalf("claude alias: got %q want %q", got, "anthropic")
	}
	if got := CanonicalProviderKey("chatgpt"); got != "openai" {
		t.Fatalf("chatgpt alias: got %q want %q", got, "openai")
	}
	if got := CanonicalProviderKey("mistral"); got != "mistral" {
		t.Fatalf("unknown provider keys should pass through unchanged, got %q", got)
	}
}

func TestCanonicalizeProviderList_DedupesAndDropsEmpty(t *testing.T) {
	got := CanonicalizeProviderList([]string{"claude", "", "anthropic", "Gemini"})
	if len(got) != 2 || got[0] != "anthropic" || got[1] != "google" {
		t.Fatalf("canonicalize: got %v", got)
	}
	if CanonicalizeProviderList(nil) != nil {
		t.Fatalf("nil in should stay nil")
	}
}

func TestBuiltinFailoverNeverSelfReferences(t *testing.T) {
	for key, spec := range Builtins() {
		for _, f := range spec.Failover {
			if CanonicalProviderKey(f) == key {
				t.Fatalf("provider %q lists itself as failover", key)
			}
		}
	}
}
