// Package cmd holds the maintenance subcommands of the noisestream binary.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"

	"github.com/smazurov/noisestream/internal/config"
	"github.com/smazurov/noisestream/internal/logging"
	"github.com/smazurov/noisestream/internal/process"
	"github.com/smazurov/noisestream/internal/streams"
)

// CreateRunCmd creates the run command.
func CreateRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [noise]",
		Short: "Run a single noise worker in the foreground",
		Long: `Spawns one ffmpeg noise worker with the configured settings and streams its diagnostics ` +
			`to the log until it exits or the command is interrupted. Useful for checking a noise ` +
			`color without the HTTP service or the health monitor.`,
		Args: cobra.ExactArgs(1),
		Run: humacli.WithOptions(func(_ *cobra.Command, args []string, opts *config.Options) {
			os.Exit(runWorker(opts, configuredNoise(opts, args[0])))
		}),
	}
}

func runWorker(opts *config.Options, noise string) int {
	id := streams.StreamID(noise)
	logger := logging.GetLogger("streams").With("stream_id", id)

	runner := process.NewRunner(process.Spec{
		ID:        id,
		Color:     noise,
		OutputDir: filepath.Join(opts.HLSDir, id),
		Binary:    opts.WorkerBinary,
		Settings:  opts.Settings(),
	}, process.Options{
		Logger:       logging.GetLogger("streams"),
		OutputLogger: logging.GetLogger("ffmpeg"),
	})

	if !runner.Start() {
		logger.Error("Failed to start worker", "error", runner.Status().LastError)
		return 1
	}
	logger.Info("Worker running", "pid", runner.Status().PID, "url", streams.StreamURL(id))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		logger.Info("Interrupted, stopping worker")
		if !runner.Stop() {
			logger.Error("Worker did not exit")
			return 1
		}
		return 0
	case <-runner.Exited():
		status := runner.Status()
		code := 1
		if status.ExitCode != nil {
			code = *status.ExitCode
		}
		logger.Warn("Worker exited", "exit_code", code, "last_error", status.LastError)
		runner.Stop()
		// a noise worker never finishes on its own
		if code == 0 {
			return 1
		}
		return code
	}
}

// configuredNoise normalizes noise and exits unless it is configured.
func configuredNoise(opts *config.Options, noise string) string {
	noise = strings.ToLower(strings.TrimSpace(noise))
	if !slices.Contains(opts.Noises(), noise) {
		fail("unknown noise %q, configured: %s", noise, strings.Join(opts.Noises(), ", "))
	}
	return noise
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
