package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/imeyer/tdformat/pkg/render"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"tailscale.com/hostinfo"
)

var (
	configPath        = flag.String("config", envOr("TDFORMAT_CONFIG", ""), "Path to a YAML config file")
	debug             = flag.Bool("debug", false, "Enable debug logging")
	useTsnet          = flag.Bool("tsnet", false, "Serve on the tailnet instead of -listen")
	hostname          = flag.String("hostname", "", "Hostname to use on your tailnet")
	listenAddr        = flag.String("listen", "", "Address to listen on when not using tsnet")
	version    string = "dev"
	gitSha     string = "no-commit"
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	hostinfo.SetApp("tdformat")

	versionGauge.With(prometheus.Labels{"version": version, "git_commit": gitSha}).Set(1)

	config, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tdformat: %v\n", err)
		return 1
	}
	applyFlags(config)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger := setupLogger(config.LogDebug, nil)
	config.Logger = logger

	telemetry, shutdownTelemetry, err := setupTelemetry(ctx, config)
	if err != nil {
		logger.Error("failed to set up telemetry", slog.String("error", err.Error()))
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Error("failed to shut down telemetry", slog.String("error", err.Error()))
		}
	}()
	if telemetry.LogHandler != nil {
		logger = setupLogger(config.LogDebug, telemetry.LogHandler)
	}

	renderer, err := setupRenderer(config, logger)
	if err != nil {
		logger.Error("invalid site configuration", slog.String("error", err.Error()))
		return 1
	}

	store, err := setupStore(ctx, config, logger)
	if err != nil {
		logger.Error("unable to open message store", slog.String("error", err.Error()))
		return 1
	}
	defer store.close()

	svc := NewFormatService(logger, renderer, NewTracedStore(store, telemetry), telemetry, config, version, gitSha)
	limiter := NewRateLimiter(config.PreviewRate, config.PreviewBurst, logger, telemetry.Metrics.RateLimitedReqs)
	server := createHTTPServer(SetupRoutes(svc, limiter))

	ln, closeListener, err := listen(ctx, config, logger)
	if err != nil {
		logger.Error("unable to listen", slog.String("error", err.Error()))
		return 1
	}
	defer closeListener()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return startServer(server, ln, logger)
	})
	g.Go(func() error {
		limiter.Cleanup(gctx, 15*time.Minute, time.Hour)
		return nil
	})

	code := waitForShutdown(gctx, sigChan, logger, server)
	cancel()

	if err := g.Wait(); err != nil {
		logger.Error("server exited", slog.String("error", err.Error()))
		if code == 0 {
			code = 1
		}
	}

	return code
}

func applyFlags(config *Config) {
	if *debug {
		config.LogDebug = true
	}
	if *useTsnet {
		config.Tsnet = true
	}
	if *hostname != "" {
		config.Hostname = *hostname
	}
	if *listenAddr != "" {
		config.Listen = *listenAddr
	}
	config.ServiceVersion = version
}

func setupRenderer(config *Config, logger *slog.Logger) (*render.Renderer, error) {
	tag, err := language.Parse(config.Language)
	if err != nil {
		return nil, fmt.Errorf("invalid language %q: %w", config.Language, err)
	}

	site, err := render.ParseSite(config.Site, config.Secure)
	if err != nil {
		return nil, err
	}

	return render.New(site, render.WithLanguage(tag), render.WithLogger(logger)), nil
}
