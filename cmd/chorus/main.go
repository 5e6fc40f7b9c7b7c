package main

import (
	"context"
	"fmt"
	"os"

	"github.com/danshapiro/chorus/internal/config"
	"github.com/danshapiro/chorus/internal/logx"
	"github.com/danshapiro/chorus/internal/provider"
	"github.com/danshapiro/chorus/internal/provider/providers/oneshot"
	"github.com/danshapiro/chorus/internal/provider/providers/relay"
	"github.com/danshapiro/chorus/internal/store"
)

func main() {
	args := stripVerbose(os.Args[1:])
	if len(args) < 1 {
		usage()
		os.Exit(1)
	}

	switch args[0] {
	case "resolve":
		cmdResolve(args[1:])
	case "ask":
		cmdAsk(args[1:])
	case "refine":
		cmdRefine(args[1:])
	case "providers":
		cmdProviders(args[1:])
	default:
		usage()
		os.Exit(1)
	}
}

// stripVerbose handles --verbose anywhere on the command line.
func stripVerbose(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if a == "--verbose" {
			logx.SetVerbose(true)
			continue
		}
		out = append(out, a)
	}
	return out
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  chorus resolve --type <initialize|extend|recompute> --session <id> --providers <a,b> [--reset <pattern,...>] [--source-turn <id> --target <provider>] [--config <file.yaml>]")
	fmt.Fprintln(os.Stderr, "  chorus ask --providers <a,b> [--session <id>] [--extend] [--reset <pattern,...>] [--config <file.yaml>] <prompt>")
	fmt.Fprintln(os.Stderr, "  chorus refine [--initialize] [--author <provider/model>] [--analyst <provider/model>] [--config <file.yaml>] <fragment>")
	fmt.Fprintln(os.Stderr, "  chorus providers [--config <file.yaml>]")
	fmt.Fprintln(os.Stderr, "flags: --verbose enables debug logging on any subcommand")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// loadConfig reads the file at path, or returns a default memory-backed
// config when no path was given.
func loadConfig(path string) *config.File {
	if path == "" {
		cfg, err := config.Parse([]byte("version: 1\n"))
		if err != nil {
			fatalf("default config: %v", err)
		}
		return cfg
	}
	cfg, err := config.Load(path)
	if err != nil {
		fatalf("load config %s: %v", path, err)
	}
	return cfg
}

type chorusStore interface {
	store.Store
	store.TurnSink
}

func openStore(cfg *config.File) chorusStore {
	switch cfg.Store.Backend {
	case config.StoreSQLite:
		s, err := store.OpenSQLite(cfg.Store.Path)
		if err != nil {
			fatalf("open sqlite store %s: %v", cfg.Store.Path, err)
		}
		return s
	default:
		return store.NewMemoryStore()
	}
}

func buildRegistry(ctx context.Context, cfg *config.File) *provider.Registry {
	reg := provider.NewRegistry()
	for id, pc := range cfg.Providers {
		apiKey := ""
		if pc.APIKeyEnv != "" {
			apiKey = os.Getenv(pc.APIKeyEnv)
		}
		var a provider.Adapter
		switch pc.Transport {
		case "relay":
			ra := relay.New(id, apiKey, pc.BaseURL, pc.Model)
			if pc.Path != "" {
				ra.Path = pc.Path
			}
			a = ra
		default:
			oa := oneshot.New(id, apiKey, pc.BaseURL, pc.Model)
			if pc.Path != "" {
				oa.Path = pc.Path
			}
			a = oa
		}
		if err := a.Init(ctx); err != nil {
			logx.Warnf("provider %s not initialized: %v", id, err)
			continue
		}
		reg.Register(a)
	}
	return reg
}
