package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"

	"github.com/smazurov/noisestream/internal/config"
	"github.com/smazurov/noisestream/internal/ffmpeg"
)

const noiseFilter = "anoisesrc"

// CreateCheckCmd creates the check command.
func CreateCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify that ffmpeg can generate noise",
		Long:  `Resolves the configured ffmpeg binary and confirms it was built with the anoisesrc filter.`,
		Args:  cobra.NoArgs,
		Run: humacli.WithOptions(func(cmd *cobra.Command, _ []string, opts *config.Options) {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			if err := CheckWorker(ctx, cmd.OutOrStdout(), opts.WorkerBinary); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
		}),
	}
}

// CheckWorker reports on the ffmpeg binary and returns an error if it cannot
// run noise workers.
func CheckWorker(ctx context.Context, out io.Writer, binary string) error {
	path, err := exec.LookPath(binary)
	if err != nil {
		return fmt.Errorf("ffmpeg binary %q not found: %w", binary, err)
	}
	fmt.Fprintf(out, "ffmpeg: %s\n", path)

	ok, err := ffmpeg.HasFilter(ctx, path, noiseFilter)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("ffmpeg at %s lacks the %s filter", path, noiseFilter)
	}
	fmt.Fprintf(out, "filter %s: available\n", noiseFilter)
	return nil
}
