package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/danshapiro/chorus/internal/refiner"
)

func cmdRefine(args []string) {
	var configPath, author, analyst string
	initialize := false
	var rest []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			i++
			configPath = argValue(args, i, "--config")
		case "--author":
			i++
			author = argValue(args, i, "--author")
		case "--analyst":
			i++
			analyst = argValue(args, i, "--analyst")
		case "--initialize":
			initialize = true
		default:
			rest = append(rest, args[i])
		}
	}
	fragment := strings.TrimSpace(strings.Join(rest, " "))
	if fragment == "" {
		fatalf("refine: a fragment is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := loadConfig(configPath)
	reg := buildRegistry(ctx, cfg)

	p := refiner.NewPipeline(reg, cfg.Refiner.Fallback)
	p.StageTimeout = cfg.StageTimeout()
	if author == "" {
		author = cfg.Refiner.AuthorModel
	}
	if analyst == "" {
		analyst = cfg.Refiner.AnalystModel
	}

	res, err := p.Refine(ctx, refiner.Input{
		Fragment:     fragment,
		AuthorModel:  author,
		AnalystModel: analyst,
		Initialize:   initialize,
	})
	if err != nil {
		fatalf("refine: %v", err)
	}
	printJSON(res)
}

func cmdProviders(args []string) {
	var configPath string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			i++
			configPath = argValue(args, i, "--config")
		default:
			fatalf("unknown flag %q", args[i])
		}
	}

	ctx := context.Background()
	cfg := loadConfig(configPath)
	reg := buildRegistry(ctx, cfg)

	for _, name := range reg.Names() {
		status := "unavailable"
		if reg.IsAvailable(ctx, name) {
			status = "available"
		}
		fmt.Printf("%-12s %s\n", name, status)
	}
}
