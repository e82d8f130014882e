package cmd

import (
	"fmt"
	"os"

	"github.com/audiolibrelab/recdroidvid/internal/output"
	"github.com/audiolibrelab/recdroidvid/internal/session"

	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List attached Android devices",
	Long:  `List the devices adb can see. Set device.serial in the config file when more than one is attached.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := session.NewDevice(cfg)
		devices, err := client.Devices(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list devices: %w", err)
		}

		out := output.NewFormatter(os.Stdout)
		if len(devices) == 0 {
			out.Warning("No devices attached")
			return nil
		}

		out.DeviceListHeader()
		for _, d := range devices {
			out.DeviceListItem(d.Serial, d.State)
		}

		if cfg.Device.Serial != "" {
			fmt.Printf("\n💡 Configured serial: %s\n", cfg.Device.Serial)
		}
		return nil
	},
}
