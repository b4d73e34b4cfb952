package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/imeyer/tdformat/pkg/discuss"
	"github.com/imeyer/tdformat/pkg/render"
	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"
	tsnetlog "tailscale.com/types/logger"
)

type TailscaleClient interface {
	ExpandSNIName(ctx context.Context, name string) (fqdn string, ok bool)
	Status(ctx context.Context) (*ipnstate.Status, error)
	StatusWithoutPeers(ctx context.Context) (*ipnstate.Status, error)
}

// FormatService serves previews and prepared comments over HTTP.
type FormatService struct {
	logger    *slog.Logger
	renderer  *render.Renderer
	preparer  *discuss.Preparer
	store     discuss.Store
	telemetry *TelemetryConfig
	config    *Config
	version   string
	gitSha    string
}

func NewFormatService(
	logger *slog.Logger,
	renderer *render.Renderer,
	store discuss.Store,
	telemetry *TelemetryConfig,
	config *Config,
	version string,
	gitSha string,
) *FormatService {
	return &FormatService{
		logger:    logger,
		renderer:  renderer,
		preparer:  discuss.NewPreparer(store, renderer, logger),
		store:     store,
		telemetry: telemetry,
		config:    config,
		version:   version,
		gitSha:    gitSha,
	}
}

func NewTsNetServer(config *Config) *tsnet.Server {
	return &tsnet.Server{
		Dir:      filepath.Join(config.DataDir, "tsnet"),
		Hostname: config.Hostname,
		UserLogf: tsnetlog.Discard,
		Logf:     tsnetlog.Discard,
	}
}

// checkTailscaleReady blocks until the node is running or stopped.
func checkTailscaleReady(ctx context.Context, lc TailscaleClient, logger *slog.Logger) error {
	for {
		st, err := lc.Status(ctx)
		if err != nil {
			return fmt.Errorf("error retrieving tailscale status: %w", err)
		}

		var wait time.Duration
		switch st.BackendState {
		case "Running":
			nopeers, err := lc.StatusWithoutPeers(ctx)
			if err != nil {
				return fmt.Errorf("error retrieving tailscale status: %w", err)
			}
			logger.InfoContext(ctx, "tsnet running", slog.Any("certDomains", nopeers.CertDomains))
			return nil
		case "Stopped":
			logger.InfoContext(ctx, "tsnet stopped")
			return nil
		case "NeedsLogin":
			logger.InfoContext(ctx, "needs login to tailscale", slog.String("auth_url", st.AuthURL))
			wait = 30 * time.Second
		case "NoState":
			logger.DebugContext(ctx, "no state")
			wait = 5 * time.Second
		default:
			logger.DebugContext(ctx, "waiting for tsnet", slog.String("state", st.BackendState))
			wait = time.Second
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
