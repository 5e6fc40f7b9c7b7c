package providerspec

var builtinSpecs = map[string]Spec{
	"openai": {
		Key:            "openai",
		Aliases:        []string{"chatgpt"},
		Transport:      TransportRelay,
		DefaultBaseURL: "https://api.openai.com",
		DefaultPath:    "/v1/responses",
		APIKeyEnv:      "OPENAI_API_KEY",
		Failover:       []string{"anthropic", "google"},
	},
	"anthropic": {
		Key:            "anthropic",
		Aliases:        []string{"claude"},
		Transport:      TransportOneshot,
		DefaultBaseURL: "https://api.anthropic.com",
		DefaultPath:    "/v1/messages",
		APIKeyEnv:      "ANTHROPIC_API_KEY",
		Failover:       []string{"openai", "google"},
	},
	"google": {
		Key:            "google",
		Aliases:        []string{"gemini", "google_ai_studio"},
		Transport:      TransportOneshot,
		DefaultBaseURL: "https://generativelanguage.googleapis.com",
		DefaultPath:    "/v1beta/models/{model}:generateContent",
		APIKeyEnv:      "GEMINI_API_KEY",
		Failover:       []string{"openai", "anthropic"},
	},
	"perplexity": {
		Key:            "perplexity",
		Aliases:        []string{"pplx"},
		Transport:      TransportOneshot,
		DefaultBaseURL: "https://api.perplexity.ai",
		DefaultPath:    "/chat/completions",
		APIKeyEnv:      "PERPLEXITY_API_KEY",
		Failover:       []string{"openai", "anthropic", "google"},
	},
}

func Builtin(key string) (Spec, bool) {
	s, ok := builtinSpecs[CanonicalProviderKey(key)]
	if !ok {
		return Spec{}, false
	}
	return cloneSpec(s), true
}

func Builtins() map[string]Spec {
	out := make(map[string]Spec, len(builtinSpecs))
	for key, spec := range builtinSpecs {
		out[key] = cloneSpec(spec)
	}
	return out
}

func cloneSpec(in Spec) Spec {
	out := in
	out.Aliases = append([]string{}, in.Aliases...)
	out.Failover = append([]string{}, in.Failover...)
	return out
}
