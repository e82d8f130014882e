package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/audiolibrelab/recdroidvid/internal/config"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	cfg          *config.Config
	cfgFile      string
	pipeline     string
	profile      string
	verboseLevel int
)

var rootCmd = &cobra.Command{
	Use:   "recdroidvid [prefix]",
	Short: "Record videos on an Android device and pull them to this machine",
	Long: `recdroidvid wakes an Android device over adb, opens its camera app and
mirrors the screen with scrcpy. When the scrcpy window is closed, the new
videos are pulled from the device, renamed with the prefix and a number, and
optionally probed, previewed or postprocessed.

With sync enabled, a DAW transport is toggled whenever recording starts or
stops on the device.

When a prefix is provided, it acts as 'recdroidvid record [prefix]'.`,
	Args: cobra.MaximumNArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Configure slog based on verbose level
		setupLogging(verboseLevel)

		var err error
		cfg, err = loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Pipeline flag overrides the configured steps
		if pipeline != "" {
			cfg.Media.Pipeline = pipeline
			if err := config.Validate(cfg); err != nil {
				return err
			}
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// If a prefix is provided, delegate to record command
		if len(args) == 1 {
			return recordCmd.RunE(cmd, args)
		}
		// Otherwise show help
		return cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/recdroidvid.yaml)")
	rootCmd.PersistentFlags().StringVarP(&pipeline, "pipeline", "p", "", "post steps on each pulled video: i=info, p=preview, a=audio, x=postprocess (e.g., 'ipa')")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "configuration profile to use (overrides active_config from file)")
	rootCmd.PersistentFlags().IntVarP(&verboseLevel, "verbose", "v", 0, "verbose level: 0=info, 1=debug, 2=debug with source locations")

	// Add flags for direct prefix execution
	addSessionFlags(rootCmd)

	// Add subcommands
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(devicesCmd)
}

// configPath returns the config file in use, explicit or default.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultPath()
}

// loadConfig reads the config file. A missing default file is not an error:
// the built-in defaults are used instead.
func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		path := config.DefaultPath()
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			if profile != "" {
				return nil, fmt.Errorf("profile '%s' requested but %s does not exist", profile, path)
			}
			slog.Debug("No config file, using built-in defaults", "path", path)
			return config.Default()
		}
		return config.LoadWithProfile(path, profile)
	}
	return config.LoadWithProfile(cfgFile, profile)
}

// setupLogging configures slog based on the verbose level. Logs are text on
// a terminal and JSON when stderr is redirected.
func setupLogging(level int) {
	var slogLevel slog.Level
	switch level {
	case 0:
		slogLevel = slog.LevelInfo
	default:
		slogLevel = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     slogLevel,
		AddSource: level >= 2,
	}

	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
