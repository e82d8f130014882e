package cmd

import (
	"fmt"
	"os"

	"github.com/audiolibrelab/recdroidvid/internal/output"
	"github.com/audiolibrelab/recdroidvid/internal/session"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [video...]",
	Short: "Execute pipeline steps on local videos",
	Long: `Execute the post steps on videos that were already pulled. Use -p to specify
which steps to run, or set media.pipeline in the config file.

Steps: i=info (ffprobe), p=preview (mpv), a=audio (extract to wav),
x=postprocess (run media.postprocess_command with the video appended).`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps, err := resolveSteps()
		if err != nil {
			return err
		}

		out := output.NewFormatter(os.Stdout)
		proc := session.NewProcessor(cfg, os.Stdout)

		if err := executePipeline(cmd.Context(), proc, out, args, steps); err != nil {
			return fmt.Errorf("pipeline failed: %w", err)
		}
		out.Success(fmt.Sprintf("Pipeline completed on %d video(s)", len(args)))
		return nil
	},
}
