package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dyluth/canopy/internal/config"
	"github.com/dyluth/canopy/internal/mirror"
	"github.com/dyluth/canopy/internal/resource"
	"github.com/dyluth/canopy/internal/syncd"
	"github.com/dyluth/canopy/internal/tree"
	"github.com/dyluth/canopy/pkg/okr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// 1. Load canopy.yml ($CANOPY_CONFIG, else ./canopy.yml)
	cfgPath := config.ResolvePath("")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to load %s: %v\n", cfgPath, err)
		os.Exit(1)
	}

	// 2. REDIS_URL overrides mirror.redis_url; the daemon cannot run without a mirror
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = cfg.Mirror.RedisURL
	}
	if redisURL == "" {
		fmt.Fprintf(os.Stderr, "Error: REDIS_URL or mirror.redis_url must be set\n")
		os.Exit(1)
	}

	// 3. Create mirror client
	mirrorClient, err := mirror.NewClientFromURL(redisURL, cfg.Mirror.Namespace)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to create mirror client: %v\n", err)
		os.Exit(1)
	}
	defer mirrorClient.Close()

	// 4. Verify Redis connectivity
	ctx := context.Background()
	if err := mirrorClient.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Redis not accessible: %v\n", err)
		os.Exit(1)
	}

	// 5. Create backend client
	api, err := resource.NewHTTPClient(resource.Options{
		BaseURL: cfg.API.BaseURL,
		Token:   cfg.API.Token(),
		Timeout: cfg.API.TimeoutDuration(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Invalid api configuration: %v\n", err)
		os.Exit(1)
	}

	// 6. Metrics registry shared by the engines, the refresher and /metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := tree.NewMetrics(registry)

	engineOpts := []tree.Option{
		tree.WithConcurrency(*cfg.Load.MaxConcurrency),
		tree.WithMetrics(metrics),
		tree.WithPublisher(mirrorClient),
	}
	if cfg.Load.Strict {
		engineOpts = append(engineOpts, tree.WithPolicy(tree.StrictPolicy))
	}

	targets := make([]syncd.Target, 0, len(cfg.Sync.Roots))
	for _, root := range cfg.Sync.Roots {
		targets = append(targets, syncd.Target{RootID: okr.ID(root.ID), Kind: root.RootKind()})
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)
	refresher := syncd.NewRefresher(api, mirrorClient, syncd.Config{
		Targets:       targets,
		Interval:      cfg.Sync.IntervalDuration(),
		Actor:         cfg.UserID(),
		EngineOptions: engineOpts,
		Logger:        logger,
		Registerer:    registry,
	})

	// 7. Start health server
	health := syncd.NewHealthServer(cfg.Sync.Listen, mirrorClient, registry, refresher.Status)
	if err := health.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to start health server: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Health server listening on %s\n", health.Addr())

	fmt.Printf("Refresher starting for namespace '%s' with %d root(s)\n", cfg.Mirror.Namespace, len(targets))

	// 8. Setup graceful shutdown
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	// 9. Start refresher in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- refresher.Run(runCtx)
	}()

	// 10. Wait for shutdown signal or error
	exitCode := 0
	select {
	case sig := <-sigCh:
		fmt.Printf("Received signal %v, shutting down gracefully...\n", sig)
		cancel()
		<-errCh
	case runErr := <-errCh:
		if runErr != nil {
			fmt.Fprintf(os.Stderr, "Refresher error: %v\n", runErr)
			exitCode = 1
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := health.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: health server shutdown: %v\n", err)
	}

	fmt.Println("Refresher stopped")
	if exitCode != 0 {
		mirrorClient.Close()
		os.Exit(exitCode)
	}
}
