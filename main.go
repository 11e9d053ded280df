package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/smazurov/noisestream/cmd"
	"github.com/smazurov/noisestream/internal/api"
	"github.com/smazurov/noisestream/internal/config"
	"github.com/smazurov/noisestream/internal/events"
	"github.com/smazurov/noisestream/internal/logging"
	"github.com/smazurov/noisestream/internal/metrics"
	"github.com/smazurov/noisestream/internal/monitor"
	"github.com/smazurov/noisestream/internal/streams"
	"github.com/smazurov/noisestream/internal/systemd"
	"github.com/smazurov/noisestream/internal/version"
)

const shutdownTimeout = 5 * time.Second

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *config.Options) {
		// Load configuration: CLI flags > env vars > config file
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}
		warnings := opts.Validate()

		logging.Initialize(opts.LoggingConfig())
		logger := logging.GetLogger("main")
		for _, w := range warnings {
			logger.Warn("Configuration adjusted", "detail", w)
		}

		// Create event bus for in-process event handling
		eventBus := events.New()
		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(api.LogEntryToEvent(entry))
		})

		registry := streams.NewRegistry(streams.Options{
			HLSDir:          opts.HLSDir,
			Noises:          opts.Noises(),
			Binary:          opts.WorkerBinary,
			Settings:        opts.Settings(),
			EventBus:        eventBus,
			FreshnessWindow: opts.FreshnessWindow(),
		})

		notifier := systemd.NewNotifier()
		healthMonitor := monitor.New(registry, monitor.Options{
			Interval:     opts.Interval(),
			RestartBurst: opts.MonitorRestartBurst,
			EventBus:     eventBus,
			OnCycle:      notifier.MonitorHook(),
		})

		server := api.NewServer(&api.Options{
			AuthUsername:   opts.AuthUsername,
			AuthPassword:   opts.AuthPassword,
			Registry:       registry,
			EventBus:       eventBus,
			MetricsHandler: metrics.Handler(),
		})

		// Logging levels follow the config file without a restart
		watcher := config.NewWatcher(opts.Config, config.LoadLoggingConfig)
		watcher.OnReload(func(cfg logging.Config) {
			logging.SetLevels(cfg)
			logger.Info("Logging levels reloaded", "level", cfg.Level)
		})

		ctx, cancel := context.WithCancel(context.Background())

		hooks.OnStart(func() {
			logger.Info("Starting noise stream service",
				"version", version.Version,
				"hls_dir", opts.HLSDir,
				"noise_types", opts.Noises())

			if err := os.MkdirAll(opts.HLSDir, 0o755); err != nil {
				logger.Error("Failed to create HLS directory", "path", opts.HLSDir, "error", err)
				os.Exit(1)
			}

			if err := watcher.Start(ctx); err != nil {
				logger.Warn("Failed to start config watcher, hot-reload disabled", "error", err)
			}

			healthMonitor.Start(ctx)

			result := registry.StartAll()
			logger.Info("Auto-started noise streams",
				"started", result.Started,
				"failed", result.Failed,
				"total", result.TotalStreams)

			notifier.Ready()
			notifier.Status("%d/%d streams running", result.Started, result.TotalStreams)

			if err := server.Start(opts.Port); err != nil {
				logger.Error("API server failed", "addr", opts.Port, "error", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down noise stream service")
			notifier.Stopping()

			stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stopCancel()
			if err := server.Stop(stopCtx); err != nil {
				logger.Warn("API server shutdown error", "error", err)
			}

			cancel()
			healthMonitor.Stop()
			watcher.Stop()

			result := registry.StopAll()
			logger.Info("Stopped noise streams", "stopped", result.Stopped, "failed", result.Failed)
		})
	})

	cli.Root().Use = "noisestream"
	cli.Root().Short = "Serve generated noise as HLS audio streams"
	cli.Root().Version = version.String()

	cli.Root().AddCommand(cmd.CreateRunCmd())
	cli.Root().AddCommand(cmd.CreateCommandCmd())
	cli.Root().AddCommand(cmd.CreateCheckCmd())

	cli.Run()
}
