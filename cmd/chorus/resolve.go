package main

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/danshapiro/chorus/internal/resolve"
)

func cmdResolve(args []string) {
	var configPath, typ, session, providers, reset, sourceTurn, target string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			i++
			configPath = argValue(args, i, "--config")
		case "--type":
			i++
			typ = argValue(args, i, "--type")
		case "--session":
			i++
			session = argValue(args, i, "--session")
		case "--providers":
			i++
			providers = argValue(args, i, "--providers")
		case "--reset":
			i++
			reset = argValue(args, i, "--reset")
		case "--source-turn":
			i++
			sourceTurn = argValue(args, i, "--source-turn")
		case "--target":
			i++
			target = argValue(args, i, "--target")
		default:
			fatalf("unknown flag %q", args[i])
		}
	}
	if typ == "" {
		typ = string(resolve.TypeInitialize)
	}

	cfg := loadConfig(configPath)
	r := resolve.NewResolver(openStore(cfg))

	resolved, err := r.Resolve(context.Background(), resolve.Request{
		Type:               resolve.RequestType(typ),
		SessionID:          session,
		Providers:          splitList(providers),
		ForcedContextReset: splitList(reset),
		SourceTurnID:       sourceTurn,
		TargetProvider:     target,
	})
	if err != nil {
		fatalf("resolve: %v", err)
	}
	printJSON(resolved.ProviderContexts)
}

func argValue(args []string, i int, flag string) string {
	if i >= len(args) {
		fatalf("%s requires a value", flag)
	}
	return args[i]
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatalf("encode output: %v", err)
	}
}
