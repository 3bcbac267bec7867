package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/presencewatch/presencewatch/agent/internal/config"
	"github.com/presencewatch/presencewatch/agent/internal/scraper"
	"github.com/presencewatch/presencewatch/agent/internal/shipper"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("presence-agent starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("config loaded",
		"server_endpoint", cfg.Agent.ServerEndpoint,
		"sources", len(cfg.Agent.Sources),
		"scrape_interval", cfg.Agent.ScrapeInterval,
		"ship_interval", cfg.Agent.ShipInterval,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	type source struct {
		cfg config.Source
		s   scraper.Scraper
	}
	var sources []source
	for _, src := range cfg.Agent.Sources {
		s, err := scraper.New(src)
		if err != nil {
			slog.Error("skipping source, could not build scraper", "source", src.ID, "err", err)
			continue
		}
		sources = append(sources, source{cfg: src, s: s})
		slog.Info("registered source", "id", src.ID, "type", src.Type, "endpoint", src.Endpoint)
	}
	if len(sources) == 0 {
		slog.Warn("no sources configured, agent will idle")
	}

	// Sources are fixed at startup; reloads are reported only.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			slog.Info("config changed on disk; restart to apply", "sources", len(updated.Agent.Sources))
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	ship := shipper.New(cfg.Agent)
	go ship.Run(ctx)

	go func() {
		ticker := time.NewTicker(cfg.Agent.ScrapeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, src := range sources {
					events, err := src.s.Scrape(ctx)
					if err != nil {
						slog.Warn("scrape error", "source", src.cfg.ID, "err", err)
						continue
					}
					ship.Ship(events...)
					slog.Debug("scraped", "source", src.cfg.ID, "events", len(events))
				}
			}
		}
	}()

	<-ctx.Done()
	slog.Info("presence-agent shutting down", "unsent", ship.Pending())
}
