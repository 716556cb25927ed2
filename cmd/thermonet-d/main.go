package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/rmax-ai/thermonet/pkg/api"
	"github.com/rmax-ai/thermonet/pkg/artifact"
	"github.com/rmax-ai/thermonet/pkg/engine"
	"github.com/rmax-ai/thermonet/pkg/store"
	"github.com/rmax-ai/thermonet/pkg/store/redis"
)

func main() {
	fmt.Println(`{"level":"info","msg":"system_started","component":"thermonet-d"}`)

	cfg, err := LoadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Printf(`{"level":"fatal","msg":"invalid_config","error":"%v"}`+"\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	st, err := store.NewStore(cfg.DBPath)
	if err != nil {
		fmt.Printf(`{"level":"fatal","msg":"failed_to_init_store","error":"%v"}`+"\n", err)
		os.Exit(1)
	}
	fmt.Printf(`{"level":"info","msg":"store_initialized","path":"%s"}`+"\n", cfg.DBPath)

	opts := engine.Options{Logger: logger}

	var redisClient *goredis.Client
	if cfg.RedisAddr != "" {
		redisClient = goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			fmt.Printf(`{"level":"fatal","msg":"failed_to_connect_redis","addr":"%s","error":"%v"}`+"\n", cfg.RedisAddr, err)
			os.Exit(1)
		}
		opts.Cache = redis.NewTopologyCache(redisClient, cfg.CacheTTL)
		fmt.Printf(`{"level":"info","msg":"topology_cache_enabled","addr":"%s","ttl":"%s"}`+"\n", cfg.RedisAddr, cfg.CacheTTL)
	}

	if cfg.ArtifactDir != "" {
		if err := os.MkdirAll(cfg.ArtifactDir, 0755); err != nil {
			fmt.Printf(`{"level":"fatal","msg":"failed_to_create_artifact_dir","path":"%s","error":"%v"}`+"\n", cfg.ArtifactDir, err)
			os.Exit(1)
		}
		opts.Artifacts = artifact.NewLocalStore(cfg.ArtifactDir)
		fmt.Printf(`{"level":"info","msg":"artifact_export_enabled","path":"%s"}`+"\n", cfg.ArtifactDir)
	}

	eng := engine.New(st, opts)
	server := api.NewServer(st, eng, cfg.Addr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pruner := engine.NewPruneWorker(st, engine.RetentionConfig{
		Enabled:       cfg.Retention > 0,
		MaxAge:        cfg.Retention,
		CheckInterval: cfg.PruneInterval,
	}, logger)
	go pruner.Run(ctx)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		fmt.Printf(`{"level":"info","msg":"shutdown_initiated","signal":"%s"}`+"\n", sig)
	case err := <-serverErr:
		if err != nil {
			fmt.Printf(`{"level":"error","msg":"server_failed","error":"%v"}`+"\n", err)
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_stop_server","error":"%v"}`+"\n", err)
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			fmt.Printf(`{"level":"error","msg":"failed_to_close_redis","error":"%v"}`+"\n", err)
		}
	}

	if err := st.Close(); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_close_store","error":"%v"}`+"\n", err)
	} else {
		fmt.Println(`{"level":"info","msg":"store_closed"}`)
	}

	fmt.Println(`{"level":"info","msg":"shutdown_complete"}`)
}
