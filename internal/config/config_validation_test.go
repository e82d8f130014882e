package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/audiolibrelab/recdroidvid/internal/detect"
)

func TestLoad_UnknownDetectionMethodFailsAtStartup(t *testing.T) {
	configFile := createTempConfig(t, `
configs:
  default:
    detection:
      method: magic
`)

	_, err := LoadWithProfile(configFile, "")
	if err == nil {
		t.Fatal("Expected error for unknown detection method")
	}
	if !errors.Is(err, detect.ErrUnknownStrategy) {
		t.Errorf("Expected ErrUnknownStrategy in chain, got: %v", err)
	}
	if !strings.Contains(err.Error(), "detection.method") {
		t.Errorf("Expected error to name the setting, got: %v", err)
	}
}

func TestLoad_LegacyDetectionNames(t *testing.T) {
	for _, method := range []string{"directory size increasing", ".pending filename prefix"} {
		configFile := createTempConfig(t, "configs:\n  default:\n    detection:\n      method: \""+method+"\"\n")
		if _, err := LoadWithProfile(configFile, ""); err != nil {
			t.Errorf("method %q: expected no error, got: %v", method, err)
		}
	}
}

func TestLoad_UnknownKey(t *testing.T) {
	configFile := createTempConfig(t, `
configs:
  default:
    sync:
      enabeld: true
`)

	_, err := LoadWithProfile(configFile, "")
	if err == nil || !strings.Contains(err.Error(), "sync.enabeld") {
		t.Errorf("Expected unknown setting error, got: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name:   "empty save dir",
			mutate: func(c *Config) { c.Device.SaveDir = "" },
			errMsg: "device.save_dir is required",
		},
		{
			name:   "empty camera package",
			mutate: func(c *Config) { c.Device.CameraPackage = "" },
			errMsg: "device.camera_package is required",
		},
		{
			name:   "zero sync interval",
			mutate: func(c *Config) { c.Sync.IntervalSec = 0 },
			errMsg: "sync.interval_sec must be > 0",
		},
		{
			name:   "negative growth interval",
			mutate: func(c *Config) { c.Detection.GrowthIntervalSec = -1 },
			errMsg: "detection.growth_interval_sec must be > 0",
		},
		{
			name: "sync without toggle command",
			mutate: func(c *Config) {
				c.Sync.Enabled = true
				c.Sync.ToggleCommand = " "
			},
			errMsg: "sync.toggle_command is required",
		},
		{
			name: "raise without raise command",
			mutate: func(c *Config) {
				c.Sync.RaiseOnCameraOpen = true
				c.Sync.RaiseCommand = ""
			},
			errMsg: "sync.raise_command is required",
		},
		{
			name:   "empty monitor command",
			mutate: func(c *Config) { c.Monitor.Command = "" },
			errMsg: "monitor.command is required",
		},
		{
			name:   "negative numbering",
			mutate: func(c *Config) { c.Session.NumberingStart = -1 },
			errMsg: "session.numbering_start must be >= 0",
		},
		{
			name:   "invalid pipeline step",
			mutate: func(c *Config) { c.Media.Pipeline = "ir" },
			errMsg: "invalid pipeline step: 'r'",
		},
		{
			name:   "postprocess without command",
			mutate: func(c *Config) { c.Media.Pipeline = "x" },
			errMsg: "media.postprocess_command is required",
		},
		{
			name: "postprocess with command",
			mutate: func(c *Config) {
				c.Media.Pipeline = "ax"
				c.Media.PostprocessCommand = []string{"stabilize"}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Default()
			if err != nil {
				t.Fatalf("Default failed: %v", err)
			}
			tt.mutate(cfg)

			err = Validate(cfg)
			if tt.errMsg == "" {
				if err != nil {
					t.Errorf("Expected no error, got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error containing %q", tt.errMsg)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Expected error containing %q, got: %v", tt.errMsg, err)
			}
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg, _ := Default()
	cfg.Device.SaveDir = ""
	cfg.Session.Prefix = ""

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected error")
	}
	for _, want := range []string{"device.save_dir", "session.prefix"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected %q in %v", want, err)
		}
	}
}
