package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/audiolibrelab/recdroidvid/internal/config"
	"github.com/audiolibrelab/recdroidvid/internal/output"
	"github.com/audiolibrelab/recdroidvid/internal/session"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var recordCmd = &cobra.Command{
	Use:   "record [prefix]",
	Short: "Record videos on the device and pull them",
	Long: `Wake the device, open the camera app and run scrcpy. Record on the device
as usual and close the scrcpy window when done. New videos are then pulled,
removed from the device and renamed as <prefix>_<number>_<original name>.

With --sync the DAW transport is toggled each time recording starts or stops.
With --loop you are asked whether to run another session afterwards.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			cfg.Session.Prefix = args[0]
		}
		if err := applySessionFlags(cmd, cfg); err != nil {
			return err
		}
		slog.Info("Record command started", "prefix", cfg.Session.Prefix, "profile", cfg.Profile)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// A failed device query in the background sync loop ends the program.
		onFatal := func(err error) {
			slog.Error("Lost the device while syncing the transport", "error", err)
			os.Exit(1)
		}

		svc, err := session.New(cfg, os.Stdout, onFatal)
		if err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}

		out := output.NewFormatter(os.Stdout)
		stdin := bufio.NewReader(os.Stdin)
		number := cfg.Session.NumberingStart

		for count := 1; ; count++ {
			out.SessionStart(cfg.Session.Prefix, number)
			out.Monitoring()
			started := time.Now()

			result, err := svc.RunCycle(ctx, number)
			number = result.Next
			for _, video := range result.Videos {
				out.VideoSaved(video)
			}

			switch {
			case errors.Is(err, session.ErrNoNewVideos):
				slog.Warn("Session ended without new videos")
				out.NoNewVideos()
			case errors.Is(err, session.ErrStepsFailed):
				out.Error(err.Error())
			case errors.Is(err, context.Canceled):
				out.Warning("Interrupted")
				return nil
			case err != nil:
				return err
			default:
				out.CycleComplete(len(result.Videos), time.Since(started))
			}

			if !cfg.Session.Loop {
				break
			}
			if !term.IsTerminal(int(os.Stdin.Fd())) {
				slog.Warn("Standard input is not a terminal, not looping")
				break
			}
			again, err := askContinue(stdin, out, count)
			if err != nil || !again {
				break
			}
		}

		out.Info("Exiting recdroidvid.")
		return nil
	},
}

func init() {
	addSessionFlags(recordCmd)
}

// addSessionFlags registers the flags that override session settings.
func addSessionFlags(c *cobra.Command) {
	c.Flags().BoolP("sync", "s", false, "toggle the DAW transport when recording starts and stops (overrides config)")
	c.Flags().BoolP("autorecord", "a", false, "start recording as soon as the camera is open (overrides config)")
	c.Flags().BoolP("loop", "l", false, "offer another session after each one (overrides config)")
	c.Flags().Bool("date", false, "add the pull date and time to video names (overrides config)")
	c.Flags().IntP("number", "n", 0, "number of the first video (overrides config)")
	c.Flags().StringP("output", "o", "", "output directory (overrides config)")
	c.Flags().StringP("detect", "d", "", "recording detection: size-growth or pending-marker (overrides config)")
}

// applySessionFlags copies the flags the user set into c and validates the
// result.
func applySessionFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("sync") {
		c.Sync.Enabled, _ = flags.GetBool("sync")
	}
	if flags.Changed("autorecord") {
		c.Session.Autorecord, _ = flags.GetBool("autorecord")
	}
	if flags.Changed("loop") {
		c.Session.Loop, _ = flags.GetBool("loop")
	}
	if flags.Changed("date") {
		c.Session.DateInName, _ = flags.GetBool("date")
	}
	if flags.Changed("number") {
		c.Session.NumberingStart, _ = flags.GetInt("number")
	}
	if flags.Changed("output") {
		c.Session.OutputDir, _ = flags.GetString("output")
	}
	if flags.Changed("detect") {
		c.Detection.Method, _ = flags.GetString("detect")
	}

	return config.Validate(c)
}

// askContinue prompts until a valid answer is read. An empty answer means yes.
func askContinue(r *bufio.Reader, out *output.Formatter, count int) (bool, error) {
	for {
		out.Prompt(fmt.Sprintf("Finished recdroidvid loop %d, continue?", count))
		line, err := r.ReadString('\n')
		if err != nil && (line == "" || err != io.EOF) {
			return false, err
		}
		if answer, ok := parseAnswer(line); ok {
			return answer, nil
		}
		if err != nil {
			return false, err
		}
	}
}

// parseAnswer maps a yes/no/quit reply. Quit counts as no.
func parseAnswer(line string) (answer, ok bool) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "", "y", "yes":
		return true, true
	case "n", "no", "q", "quit":
		return false, true
	default:
		return false, false
	}
}
