package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/imeyer/tdformat/pkg/discuss"
	"github.com/jackc/pgx/v5/pgxpool"
	"tailscale.com/tsnet"
)

// Swapped out in tests.
var (
	PoolConfigFunc    = PoolConfig
	NewWithConfigFunc = pgxpool.NewWithConfig
)

const connectAttempts = 3

func createConfigDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, "tsnet"), 0o700)
}

func newLogger(w io.Writer, logLevel *slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: true,
		Level:     logLevel,
	}))
}

// setupLogger builds the JSON stdout logger, fanning out to the OTLP log
// handler when one is configured.
func setupLogger(debug bool, otlp slog.Handler) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	logger := newLogger(os.Stdout, &level)
	if otlp != nil {
		logger = slog.New(fanoutHandler{logger.Handler(), otlp})
	}
	slog.SetDefault(logger)

	return logger
}

// fanoutHandler sends each record to every handler that accepts its level.
type fanoutHandler []slog.Handler

func (f fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanoutHandler, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanoutHandler) WithGroup(name string) slog.Handler {
	out := make(fanoutHandler, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}

func dataLocation() string {
	if dir, ok := os.LookupEnv("DATA_DIR"); ok {
		return dir
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return os.Getenv("DATA_DIR")
	}
	return filepath.Join(dir, "tailscale", "tdformat")
}

func envOr(key, defaultVal string) string {
	if result, ok := os.LookupEnv(key); ok {
		return result
	}
	return defaultVal
}

// setupDatabase connects to postgres, retrying a few times while the
// database comes up.
func setupDatabase(ctx context.Context, dsn string, logger *slog.Logger) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}

	poolConfig, err := PoolConfigFunc(dsn, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool config: %w", err)
	}

	var pool *pgxpool.Pool
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		dbCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		pool, err = NewWithConfigFunc(dbCtx, poolConfig)
		if err == nil {
			err = pool.Ping(dbCtx)
			if err != nil {
				pool.Close()
			}
		}
		cancel()
		if err == nil {
			return pool, nil
		}

		logger.WarnContext(ctx, "database connection failed",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
		if attempt < connectAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
			}
		}
	}

	return nil, fmt.Errorf("unable to connect to database after %d attempts: %w", connectAttempts, err)
}

// storeCloser is the message store plus whatever must be closed on exit.
type storeCloser struct {
	discuss.Store
	close func()
}

// setupStore opens postgres when a DSN is configured and SQLite otherwise.
func setupStore(ctx context.Context, config *Config, logger *slog.Logger) (*storeCloser, error) {
	if config.DatabaseURL != "" {
		pool, err := setupDatabase(ctx, config.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		store := discuss.NewPGStore(pool, logger)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return &storeCloser{Store: store, close: pool.Close}, nil
	}

	db, err := discuss.NewSQLiteDB(config.SQLitePath, logger)
	if err != nil {
		return nil, err
	}
	return &storeCloser{Store: db, close: func() { db.Close() }}, nil
}

func setupTsNetServer(ctx context.Context, config *Config, logger *slog.Logger) (*tsnet.Server, error) {
	if err := createConfigDir(config.DataDir); err != nil {
		logger.Info("creating configuration directory failed",
			slog.String("data-dir", config.DataDir),
			slog.String("error", err.Error()))
	}

	s := NewTsNetServer(config)
	if config.LogDebug {
		s.Logf = log.Printf
	}

	if err := s.Start(); err != nil {
		return nil, fmt.Errorf("error starting tsnet server: %w", err)
	}

	lc, err := s.LocalClient()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("error creating tsnet local client: %w", err)
	}

	if err := checkTailscaleReady(ctx, lc, logger); err != nil {
		s.Close()
		return nil, fmt.Errorf("tsnet not ready: %w", err)
	}

	return s, nil
}

// listen opens the service listener on the tailnet or on a local address.
// The returned close func releases the tsnet node, if any.
func listen(ctx context.Context, config *Config, logger *slog.Logger) (net.Listener, func(), error) {
	if !config.Tsnet {
		ln, err := net.Listen("tcp", config.Listen)
		if err != nil {
			return nil, nil, err
		}
		return ln, func() {}, nil
	}

	s, err := setupTsNetServer(ctx, config, logger)
	if err != nil {
		return nil, nil, err
	}

	ln, err := s.Listen("tcp", ":80")
	if err != nil {
		s.Close()
		return nil, nil, fmt.Errorf("error creating tsnet listener: %w", err)
	}
	return ln, func() { s.Close() }, nil
}

func createHTTPServer(handler http.Handler) *http.Server {
	return &http.Server{
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
}

func startServer(server *http.Server, ln net.Listener, logger *slog.Logger) error {
	logger.Info(fmt.Sprintf("listening on http://%s", ln.Addr()))
	if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// waitForShutdown blocks until a signal arrives or ctx is done, then drains
// the server. It returns the conventional 128+signal exit code.
func waitForShutdown(ctx context.Context, sigChan <-chan os.Signal, logger *slog.Logger, server *http.Server) int {
	code := 0
	select {
	case sig := <-sigChan:
		logger.Info("shutting down gracefully", slog.String("signal", sig.String()))
		if sigNum, ok := sig.(syscall.Signal); ok {
			code = 128 + int(sigNum)
		}
	case <-ctx.Done():
		logger.Info("shutting down gracefully", slog.String("reason", context.Cause(ctx).Error()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to gracefully shutdown HTTP server", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
	return code
}
