package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"

	"github.com/smazurov/noisestream/internal/config"
	"github.com/smazurov/noisestream/internal/ffmpeg"
	"github.com/smazurov/noisestream/internal/streams"
)

// CreateCommandCmd creates the command command, which prints the worker
// invocation for a noise color.
func CreateCommandCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "command [noise]",
		Short: "Print the ffmpeg command for a noise color",
		Args:  cobra.ExactArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *config.Options) {
			fmt.Fprintln(cmd.OutOrStdout(), NoiseCommand(opts, configuredNoise(opts, args[0])))
		}),
	}
}

// NoiseCommand renders the worker command line for noise.
func NoiseCommand(opts *config.Options, noise string) string {
	id := streams.StreamID(noise)
	params := &ffmpeg.Params{
		Color:     noise,
		OutputDir: filepath.Join(opts.HLSDir, id),
		Settings:  opts.Settings(),
	}
	return ffmpeg.CommandLine(opts.WorkerBinary, ffmpeg.BuildNoiseArgs(params))
}
