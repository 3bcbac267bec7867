package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/presencewatch/presencewatch/server/internal/api"
	"github.com/presencewatch/presencewatch/server/internal/auth"
	"github.com/presencewatch/presencewatch/server/internal/config"
	"github.com/presencewatch/presencewatch/server/internal/ingest"
	"github.com/presencewatch/presencewatch/server/internal/notify"
	"github.com/presencewatch/presencewatch/server/internal/presence"
	"github.com/presencewatch/presencewatch/server/internal/stats"
	"github.com/presencewatch/presencewatch/server/internal/telemetry"
	"github.com/presencewatch/presencewatch/server/internal/ws"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

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

	slog.Info("presence-server starting", "config", *configPath, "version", version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"grpc_port", cfg.Server.GRPCPort,
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"metric", cfg.Presence.Metric,
		"tag", cfg.Presence.Tag,
		"values", len(cfg.Presence.Values),
		"silence_window", cfg.Presence.SilenceWindow,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, "presence-server", version)
	if err != nil {
		slog.Error("failed to set up tracing", "err", err)
		os.Exit(1)
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		if err := shutdownTracing(sctx); err != nil {
			slog.Warn("tracing shutdown", "err", err)
		}
	}()

	// Outbound transports. The hub joins the fan-out once the tracker exists.
	var transports notify.Multi
	if cfg.Notify.MQTT.Broker != "" {
		mq, err := notify.DialMQTT(cfg.Notify.MQTT)
		if err != nil {
			slog.Error("failed to connect to mqtt broker", "err", err)
			os.Exit(1)
		}
		defer mq.Close()
		transports = append(transports, mq)
	}
	if len(cfg.Notify.Webhooks) > 0 {
		transports = append(transports, notify.NewWebhook(cfg.Notify.Webhooks))
	}

	var hub *ws.Hub
	fanout := notify.Func(func(ctx context.Context, topic string, t presence.Transition) error {
		err := transports.Publish(ctx, topic, t)
		if hub != nil {
			hub.Publish(ctx, topic, t) //nolint:errcheck
		}
		return err
	})

	counters := stats.New()
	tracker, err := presence.New(presence.Config{
		Metric:        cfg.Presence.Metric,
		Tag:           cfg.Presence.Tag,
		Values:        cfg.Presence.Values,
		Topic:         cfg.Notify.Topic,
		SweepInterval: cfg.Presence.SweepInterval,
		SilenceWindow: cfg.Presence.SilenceWindow,
	}, notify.Traced(notify.WithTimeout(fanout, cfg.Notify.PublishTimeout)), counters)
	if err != nil {
		slog.Error("failed to create tracker", "err", err)
		os.Exit(1)
	}

	hub = ws.New(tracker, cfg.WS.BroadcastInterval)
	go hub.Run(ctx)
	go tracker.Run(ctx)

	go func() {
		err := config.Watch(ctx, *configPath, func(next *config.Config) {
			logReload(cfg, next)
		})
		if err != nil {
			slog.Warn("config watch stopped", "err", err)
		}
	}()

	policy := auth.Policy{
		Mode:   cfg.Server.Auth.Mode,
		Header: cfg.Server.Auth.EffectiveHeader(),
		Key:    cfg.Server.Auth.Key(),
	}

	// gRPC health endpoint guarded by the API key interceptor.
	grpcSrv := grpc.NewServer(grpc.UnaryInterceptor(policy.UnaryInterceptor()))
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		slog.Error("failed to listen on gRPC port", "port", cfg.Server.GRPCPort, "err", err)
		os.Exit(1)
	}
	go func() {
		slog.Info("gRPC health listening", "port", cfg.Server.GRPCPort)
		if err := grpcSrv.Serve(lis); err != nil {
			slog.Error("gRPC server stopped", "err", err)
		}
	}()

	handler := api.New(api.Options{
		Source:     tracker,
		Dispatcher: ingest.NewDispatcher(tracker.Metric(), tracker.Tag(), tracker),
		Auth:       policy,
		Metrics:    counters.Handler(tracker.PresentCount),
		Stream:     hub,
	})
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("presence-server shutting down")
	healthSrv.Shutdown()
	grpcSrv.GracefulStop()

	sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer scancel()
	httpSrv.Shutdown(sctx) //nolint:errcheck
}

// logReload reports a changed config file. The tracker's settings are fixed
// at construction, so changes take effect on the next restart.
func logReload(cur, next *config.Config) {
	changed := []string{}
	if cur.Presence.Metric != next.Presence.Metric || cur.Presence.Tag != next.Presence.Tag {
		changed = append(changed, "presence.metric/tag")
	}
	if !slices.Equal(cur.Presence.Values, next.Presence.Values) {
		changed = append(changed, "presence.values")
	}
	if cur.Presence.SilenceWindow != next.Presence.SilenceWindow || cur.Presence.SweepInterval != next.Presence.SweepInterval {
		changed = append(changed, "presence.timing")
	}
	if cur.Notify.Topic != next.Notify.Topic {
		changed = append(changed, "notify.topic")
	}
	slog.Info("config changed on disk; restart to apply", "sections", changed)
}
