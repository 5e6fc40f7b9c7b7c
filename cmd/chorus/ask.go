package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/danshapiro/chorus/internal/resolve"
	"github.com/danshapiro/chorus/internal/workflow"
)

func cmdAsk(args []string) {
	var configPath, session, providers, reset string
	extend := false
	var rest []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			i++
			configPath = argValue(args, i, "--config")
		case "--session":
			i++
			session = argValue(args, i, "--session")
		case "--providers":
			i++
			providers = argValue(args, i, "--providers")
		case "--reset":
			i++
			reset = argValue(args, i, "--reset")
		case "--extend":
			extend = true
		default:
			rest = append(rest, args[i])
		}
	}
	prompt := strings.TrimSpace(strings.Join(rest, " "))
	if prompt == "" {
		fatalf("ask: a prompt is required")
	}
	targets := splitList(providers)
	if len(targets) == 0 {
		fatalf("ask: --providers is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := loadConfig(configPath)
	st := openStore(cfg)
	reg := buildRegistry(ctx, cfg)

	o := workflow.NewOrchestrator(resolve.NewResolver(st), reg, st)
	o.Events = workflow.NewEvents(256)
	go func() {
		for ev := range o.Events.C() {
			if ev.Kind == workflow.EventChunk {
				fmt.Fprintf(os.Stderr, "[%s] %s", ev.ProviderID, ev.Text)
			}
		}
	}()

	typ := resolve.TypeInitialize
	if extend {
		typ = resolve.TypeExtend
	}
	res, err := o.Run(ctx, resolve.Request{
		Type:               typ,
		SessionID:          session,
		Providers:          targets,
		ForcedContextReset: splitList(reset),
	}, prompt)
	if err != nil {
		fatalf("ask: %v", err)
	}
	fmt.Fprintln(os.Stderr)
	printJSON(res)
}
