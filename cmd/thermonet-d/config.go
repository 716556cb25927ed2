package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultAddr          = "127.0.0.1:8090"
	defaultCacheTTL      = 24 * time.Hour
	defaultPruneInterval = time.Hour
)

type Config struct {
	DBPath        string
	Addr          string
	RedisAddr     string
	CacheTTL      time.Duration
	ArtifactDir   string
	Retention     time.Duration
	PruneInterval time.Duration
	LogLevel      slog.Level
}

func LoadConfig(args []string) (Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("failed to get cwd: %w", err)
	}

	defaultDBPath := filepath.Join(cwd, "thermonet.db")

	dbPath := envOrDefault("THERMONET_DB_PATH", defaultDBPath)
	addr := addrFromEnv(defaultAddr)
	redisAddr := os.Getenv("THERMONET_REDIS_ADDR")
	artifactDir := os.Getenv("THERMONET_ARTIFACT_DIR")
	logLevel := envOrDefault("THERMONET_LOG_LEVEL", "info")

	cacheTTL, err := durationFromEnv("THERMONET_CACHE_TTL", defaultCacheTTL)
	if err != nil {
		return Config{}, err
	}
	retention, err := durationFromEnv("THERMONET_RETENTION", 0)
	if err != nil {
		return Config{}, err
	}

	flagSet := flag.NewFlagSet("thermonet-d", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagDB := flagSet.String("db", dbPath, "path to SQLite database")
	flagAddr := flagSet.String("addr", addr, "HTTP listen address")
	flagRedis := flagSet.String("redis", redisAddr, "redis address of the topology cache (empty disables it)")
	flagCacheTTL := flagSet.String("cache-ttl", cacheTTL.String(), "lifetime of cached topologies")
	flagArtifacts := flagSet.String("artifact-dir", artifactDir, "directory for exported run artifacts (empty disables export)")
	flagRetention := flagSet.String("retention", retention.String(), "delete runs older than this (0 keeps runs forever)")
	flagPruneInterval := flagSet.String("prune-interval", defaultPruneInterval.String(), "how often retention is applied")
	flagLogLevel := flagSet.String("log-level", logLevel, "log level: debug|info|warn|error")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			flagSet.SetOutput(os.Stdout)
			flagSet.PrintDefaults()
			return Config{}, err
		}
		return Config{}, err
	}

	cacheTTLParsed, err := time.ParseDuration(*flagCacheTTL)
	if err != nil {
		return Config{}, fmt.Errorf("invalid cache ttl: %w", err)
	}
	if cacheTTLParsed <= 0 {
		return Config{}, errors.New("cache ttl must be positive")
	}
	retentionParsed, err := time.ParseDuration(*flagRetention)
	if err != nil {
		return Config{}, fmt.Errorf("invalid retention: %w", err)
	}
	if retentionParsed < 0 {
		return Config{}, errors.New("retention cannot be negative")
	}
	pruneInterval, err := time.ParseDuration(*flagPruneInterval)
	if err != nil {
		return Config{}, fmt.Errorf("invalid prune interval: %w", err)
	}
	if pruneInterval <= 0 {
		return Config{}, errors.New("prune interval must be positive")
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(*flagLogLevel))); err != nil {
		return Config{}, fmt.Errorf("invalid log level: %w", err)
	}

	config := Config{
		DBPath:        resolvePath(*flagDB, cwd),
		Addr:          strings.TrimSpace(*flagAddr),
		RedisAddr:     strings.TrimSpace(*flagRedis),
		CacheTTL:      cacheTTLParsed,
		ArtifactDir:   resolvePath(*flagArtifacts, cwd),
		Retention:     retentionParsed,
		PruneInterval: pruneInterval,
		LogLevel:      level,
	}

	if config.Addr == "" {
		return Config{}, errors.New("addr cannot be empty")
	}
	if config.DBPath == "" {
		return Config{}, errors.New("db path cannot be empty")
	}

	return config, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if parsed < 0 {
		return 0, fmt.Errorf("%s cannot be negative", key)
	}
	return parsed, nil
}

func addrFromEnv(fallback string) string {
	if value := os.Getenv("THERMONET_ADDR"); value != "" {
		return value
	}
	if port := os.Getenv("THERMONET_PORT"); port != "" {
		return fmt.Sprintf("127.0.0.1:%s", port)
	}
	return fallback
}

func resolvePath(path string, cwd string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return trimmed
	}
	if filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Join(cwd, trimmed)
}
