package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/statesync/internal/api"
	"github.com/zjrosen/statesync/internal/cachemanager"
	"github.com/zjrosen/statesync/internal/config"
	"github.com/zjrosen/statesync/internal/flags"
	"github.com/zjrosen/statesync/internal/log"
	"github.com/zjrosen/statesync/internal/metrics"
	"github.com/zjrosen/statesync/internal/pubsub"
	"github.com/zjrosen/statesync/internal/resource"
	"github.com/zjrosen/statesync/internal/tracing"
	"github.com/zjrosen/statesync/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the statesync HTTP server",
	Long: `Run the statesync server. Resources live in memory for the lifetime of
the process.

The config file is watched while the server runs; changes to log.level and
server.long_poll_timeout are applied without a restart.

Example:
  statesync serve                  # Listen on server.addr (default :8080)
  statesync serve --addr :9090     # Override the listen address`,
	RunE: runServe,
}

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on (overrides config)")
}

func runServe(_ *cobra.Command, _ []string) error {
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("invalid configuration: log.level: %w", err)
	}
	cleanup, err := log.Init(cfg.Log.File, level)
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	defer cleanup()

	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if cfg.Tracing.FilePath == "" {
		cfg.Tracing.FilePath = config.DefaultTracesFilePath()
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	tracer, err := tracing.NewProvider(cfg.Tracing, tracing.WithServiceVersion(version))
	if err != nil {
		return fmt.Errorf("creating tracing provider: %w", err)
	}

	features := flags.New(cfg.Flags)

	feed := pubsub.NewBroker[resource.Change]()
	defer feed.Close()
	registry := resource.NewRegistry(resource.WithChangeFeed(feed))

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		m.RegisterFeedDrops(feed.Dropped)
		m.RegisterResourceCount(registry.Len)
	}

	hcfg := api.HandlerConfig{
		Store:           registry,
		Metrics:         m,
		Tracer:          tracer.Tracer(),
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
		LongPollTimeout: cfg.Server.LongPollTimeout,
	}
	if features.Enabled(flags.FlagEventStream) {
		hcfg.Feed = feed
	}
	if cfg.Cache.SnapshotTTL > 0 {
		hcfg.Cache = cachemanager.NewInMemoryCacheManager[string, []byte](
			"snapshots", cfg.Cache.SnapshotTTL, cfg.Cache.CleanupInterval)
		hcfg.CacheTTL = cfg.Cache.SnapshotTTL
	}
	handler := api.NewHandler(hcfg)

	server, err := api.NewServer(api.ServerConfig{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	if path := viper.ConfigFileUsed(); path != "" && features.Enabled(flags.FlagConfigReload) {
		stop, err := watchConfig(path, handler)
		if err != nil {
			log.Warn(log.CatWatcher, "config reload disabled", "path", path, "error", err)
		} else {
			defer stop()
		}
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	log.Info(log.CatHTTP, "statesync started", "addr", cfg.Server.Addr, "port", server.Port())
	fmt.Printf("statesync listening on %s\n", server.URL())
	fmt.Println("Press Ctrl+C to stop")

	// Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		fmt.Printf("\nReceived %s, shutting down...\n", sig)
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.ErrorErr(log.CatHTTP, "Error stopping API server", err)
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		log.ErrorErr(log.CatTrace, "Error shutting down tracer", err)
	}

	fmt.Println("statesync stopped")
	return nil
}

// watchConfig reloads the config file on change and applies the settings
// that can change while serving. The returned func stops the watcher.
func watchConfig(path string, handler *api.Handler) (func(), error) {
	w, err := watcher.New(watcher.DefaultConfig(path))
	if err != nil {
		return nil, err
	}
	changes, err := w.Start()
	if err != nil {
		_ = w.Stop()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-changes:
				reloadConfig(handler)
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		_ = w.Stop()
	}, nil
}

func reloadConfig(handler *api.Handler) {
	if err := viper.ReadInConfig(); err != nil {
		log.ErrorErr(log.CatConfig, "reloading config", err, "path", viper.ConfigFileUsed())
		return
	}
	var next config.Config
	if err := viper.Unmarshal(&next); err != nil {
		log.ErrorErr(log.CatConfig, "decoding config", err)
		return
	}
	applyLiveConfig(next, handler)
}

// applyLiveConfig applies log.level and server.long_poll_timeout. Invalid
// values are logged and the running value is kept.
func applyLiveConfig(next config.Config, handler *api.Handler) {
	if level, err := log.ParseLevel(next.Log.Level); err != nil {
		log.Warn(log.CatConfig, "ignoring log.level", "value", next.Log.Level, "error", err)
	} else {
		log.SetMinLevel(level)
	}

	if next.Server.LongPollTimeout <= 0 {
		log.Warn(log.CatConfig, "ignoring server.long_poll_timeout", "value", next.Server.LongPollTimeout)
	} else {
		handler.SetLongPollTimeout(next.Server.LongPollTimeout)
	}

	log.Info(log.CatConfig, "config reloaded",
		"log_level", next.Log.Level,
		"long_poll_timeout", handler.LongPollTimeout())
}
