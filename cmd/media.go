package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/audiolibrelab/recdroidvid/internal/media"
	"github.com/audiolibrelab/recdroidvid/internal/output"
	"github.com/audiolibrelab/recdroidvid/internal/session"

	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe [video...]",
	Short: "Print ffprobe information about videos",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return executePipeline(cmd.Context(), session.NewProcessor(cfg, os.Stdout), output.NewFormatter(os.Stdout), args, []media.Step{media.StepInfo})
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview [video]",
	Short: "Play a video with the configured player",
	Long:  `Play a video with mpv. Audio goes to JACK when a JACK control process is running.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return session.NewProcessor(cfg, os.Stdout).Preview(cmd.Context(), args[0])
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract [video...]",
	Short: "Extract the audio track of videos",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		proc := session.NewProcessor(cfg, os.Stdout)
		out := output.NewFormatter(os.Stdout)

		var errs []error
		for _, video := range args {
			audio, err := proc.ExtractAudio(cmd.Context(), video)
			if err != nil {
				out.Error(err.Error())
				errs = append(errs, err)
				continue
			}
			out.Success(fmt.Sprintf("Audio saved: %s", audio))
		}
		return errors.Join(errs...)
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(extractCmd)
}
