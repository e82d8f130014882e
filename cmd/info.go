package cmd

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/audiolibrelab/recdroidvid/internal/config"
	"github.com/audiolibrelab/recdroidvid/internal/media"

	"github.com/spf13/cobra"
)

// sectionOrder is the order of the config sections in the info output.
var sectionOrder = []string{"device", "detection", "sync", "monitor", "session", "media"}

var infoCmd = &cobra.Command{
	Use:   "info [prefix]",
	Short: "Show resolved configuration and video naming for a prefix",
	Long:  `Display the resolved configuration with inheritance indicators and the name the next video would get. Shows which values come from the selected profile, the default profile or the built-in defaults.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prefix := cfg.Session.Prefix
		if len(args) == 1 {
			prefix = args[0]
		}

		strategy, err := cfg.Strategy()
		if err != nil {
			return err
		}

		// Display file naming
		example := media.VideoName(prefix, cfg.Session.NumberingStart, "VID_20240101_120000.mp4", time.Now(), cfg.Session.DateInName)
		fmt.Printf("=== FILE NAMING ===\n")
		fmt.Printf("next_video: %s\n", filepath.Join(cfg.Session.OutputDir, example))
		fmt.Printf("device_dir: %s\n", cfg.Device.SaveDir)
		fmt.Printf("detection: %s\n", strategy.Kind())

		// Display resolved configuration with inheritance indicators
		fmt.Printf("\n=== RESOLVED CONFIGURATION (%s) ===\n", cfg.Profile)

		raw, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		var sections map[string]map[string]any
		if err := yaml.Unmarshal(raw, &sections); err != nil {
			return fmt.Errorf("error reading back config: %w", err)
		}

		for _, section := range sectionOrder {
			values := sections[section]
			keys := make([]string, 0, len(values))
			for key := range values {
				keys = append(keys, key)
			}
			sort.Strings(keys)

			fmt.Printf("\n[%s]\n", section)
			for _, key := range keys {
				fmt.Printf("%s: %v %s\n", key, values[key], getInheritanceIndicator(cfg.Inheritance[section+"."+key]))
			}
		}

		return nil
	},
}

// getInheritanceIndicator returns a formatted indicator for inheritance status
func getInheritanceIndicator(status string) string {
	switch status {
	case config.SourceInherited:
		return "[inherited]"
	case config.SourceProfile:
		return "[profile-specific]"
	case config.SourceBuiltin:
		return "[built-in]"
	default:
		return "[unknown]"
	}
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
