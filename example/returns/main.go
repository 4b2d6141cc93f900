package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tbxark/returnagent/config"
)

func main() {
	confPath := flag.String("config", "", "path to JSON config file")
	mode := flag.String("mode", "console", "console, assistant, serve or ingest")
	flag.Parse()

	cfg, err := config.Load(*confPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "console":
		err = runConsole(ctx, cfg)
	case "assistant":
		err = runAssistant(ctx, cfg)
	case "serve":
		err = runServer(ctx, cfg)
	case "ingest":
		err = runIngest(ctx, cfg)
	default:
		log.Fatalf("unknown mode %q", *mode)
	}
	if err != nil {
		slog.Error("Exited with error", "mode", *mode, "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg *config.Config) {
	level, _ := cfg.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
