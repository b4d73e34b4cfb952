package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LogDebug          bool         `yaml:"debug"`
	Logger            *slog.Logger `yaml:"-"`
	ServiceName       string       `yaml:"service_name"`
	ServiceVersion    string       `yaml:"-"`
	TraceMaxBatchSize int          `yaml:"trace_max_batch_size"`
	TraceSampleRate   float64      `yaml:"trace_sample_rate"`
	OTLP              bool         `yaml:"otlp"`

	Listen      string `yaml:"listen"`
	Site        string `yaml:"site"`
	Secure      bool   `yaml:"secure"`
	Language    string `yaml:"language"`
	DatabaseURL string `yaml:"database_url"`
	SQLitePath  string `yaml:"sqlite_path"`

	Tsnet    bool   `yaml:"tsnet"`
	Hostname string `yaml:"hostname"`
	DataDir  string `yaml:"data_dir"`

	PreviewRate      float64 `yaml:"preview_rate"`
	PreviewBurst     int     `yaml:"preview_burst"`
	MaxPreviewLength int     `yaml:"max_preview_length"`
}

// LoadConfig returns the defaults overlaid with the YAML file at path (if
// any) and then with the environment. A .env file in the working directory
// is loaded first and never overrides variables that are already set.
func LoadConfig(path string) (*Config, error) {
	config := &Config{
		LogDebug:          false,
		ServiceName:       "tdformat",
		TraceMaxBatchSize: 512,
		TraceSampleRate:   1.0,
		OTLP:              false,
		Listen:            ":8080",
		Site:              "localhost:8080",
		Language:          "en",
		SQLitePath:        ":memory:",
		Hostname:          "tdformat",
		DataDir:           dataLocation(),
		PreviewRate:       2,
		PreviewBurst:      5,
		MaxPreviewLength:  MaxBodyLength,
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	config.Listen = envOr("TDFORMAT_LISTEN", config.Listen)
	config.Site = envOr("TDFORMAT_SITE", config.Site)
	config.Language = envOr("TDFORMAT_LANGUAGE", config.Language)
	config.DatabaseURL = envOr("DATABASE_URL", config.DatabaseURL)
	config.SQLitePath = envOr("TDFORMAT_SQLITE", config.SQLitePath)
	config.Hostname = envOr("TSNET_HOSTNAME", config.Hostname)
	config.DataDir = envOr("DATA_DIR", config.DataDir)

	if v, ok := os.LookupEnv("TDFORMAT_SECURE"); ok {
		secure, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("TDFORMAT_SECURE: %w", err)
		}
		config.Secure = secure
	}

	if config.MaxPreviewLength <= 0 {
		return nil, fmt.Errorf("max_preview_length must be positive, got %d", config.MaxPreviewLength)
	}

	return config, nil
}

// PoolConfig function with error handling
func PoolConfig(dsn string, logger *slog.Logger) (*pgxpool.Config, error) {
	const defaultMaxConns = int32(4)
	const defaultMinConns = int32(0)
	const defaultMaxConnLifetime = time.Hour
	const defaultMaxConnIdleTime = time.Minute * 15
	const defaultHealthCheckPeriod = time.Minute
	const defaultConnectTimeout = time.Second * 5

	if logger == nil {
		logger = slog.Default()
	}

	dbConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database configuration: %w", err)
	}

	dbConfig.MaxConns = defaultMaxConns
	dbConfig.MinConns = defaultMinConns
	dbConfig.MaxConnLifetime = defaultMaxConnLifetime
	dbConfig.MaxConnIdleTime = defaultMaxConnIdleTime
	dbConfig.HealthCheckPeriod = defaultHealthCheckPeriod
	dbConfig.ConnConfig.ConnectTimeout = defaultConnectTimeout

	dbConfig.BeforeConnect = func(ctx context.Context, c *pgx.ConnConfig) error {
		logger.Debug("creating connection")
		return nil
	}

	dbConfig.AfterConnect = func(ctx context.Context, c *pgx.Conn) error {
		logger.Debug("connection created")
		return nil
	}

	dbConfig.BeforeClose = func(c *pgx.Conn) {
		logger.Debug("closing connection")
	}

	return dbConfig, nil
}
