package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/audiolibrelab/recdroidvid/internal/detect"
	"github.com/audiolibrelab/recdroidvid/internal/media"
	"github.com/audiolibrelab/recdroidvid/internal/monitor"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables that override config keys,
// e.g. RECDROIDVID_SYNC_ENABLED=true.
const EnvPrefix = "RECDROIDVID"

// DefaultProfile is the profile every other profile falls back to.
const DefaultProfile = "default"

const (
	DefaultSaveDir       = "/storage/emulated/0/DCIM/OpenCamera/"
	DefaultCameraPackage = "net.sourceforge.opencamera"

	DefaultToggleCommand = `xdotool key --window "$(xdotool search --onlyvisible --class Ardour | head -1)" space`
	DefaultRaiseCommand  = "xdotool search --onlyvisible --class Ardour windowactivate %@"
)

// Inheritance sources reported by the info command.
const (
	SourceBuiltin   = "built-in"
	SourceInherited = "inherited"
	SourceProfile   = "profile-specific"
)

type RootConfig struct {
	ActiveConfig string                    `mapstructure:"active_config" yaml:"active_config"`
	Configs      map[string]map[string]any `mapstructure:"configs" yaml:"configs"`
}

type Config struct {
	Device    DeviceConfig    `mapstructure:"device" yaml:"device"`
	Detection DetectionConfig `mapstructure:"detection" yaml:"detection"`
	Sync      SyncConfig      `mapstructure:"sync" yaml:"sync"`
	Monitor   MonitorConfig   `mapstructure:"monitor" yaml:"monitor"`
	Session   SessionConfig   `mapstructure:"session" yaml:"session"`
	Media     MediaConfig     `mapstructure:"media" yaml:"media"`

	// Profile is the name of the profile this config was resolved from.
	Profile string `mapstructure:"-" yaml:"-"`

	// Internal field to track inheritance information for info command
	Inheritance map[string]string `mapstructure:"-" yaml:"-"`
}

type DeviceConfig struct {
	ADB             string  `mapstructure:"adb" yaml:"adb"`
	Serial          string  `mapstructure:"serial" yaml:"serial"`
	SaveDir         string  `mapstructure:"save_dir" yaml:"save_dir"`
	CameraPackage   string  `mapstructure:"camera_package" yaml:"camera_package"`
	VideoExtension  string  `mapstructure:"video_extension" yaml:"video_extension"`
	PowerSettleSec  float64 `mapstructure:"power_settle_sec" yaml:"power_settle_sec"`
	UnlockSettleSec float64 `mapstructure:"unlock_settle_sec" yaml:"unlock_settle_sec"`
	CameraSettleSec float64 `mapstructure:"camera_settle_sec" yaml:"camera_settle_sec"`
}

type DetectionConfig struct {
	Method              string  `mapstructure:"method" yaml:"method"` // "size-growth" or "pending-marker"
	PendingPrefix       string  `mapstructure:"pending_prefix" yaml:"pending_prefix"`
	GrowthIntervalSec   float64 `mapstructure:"growth_interval_sec" yaml:"growth_interval_sec"`
	StopPollIntervalSec float64 `mapstructure:"stop_poll_interval_sec" yaml:"stop_poll_interval_sec"`
}

type SyncConfig struct {
	Enabled           bool    `mapstructure:"enabled" yaml:"enabled"`
	IntervalSec       float64 `mapstructure:"interval_sec" yaml:"interval_sec"`
	RaiseOnToggle     bool    `mapstructure:"raise_on_toggle" yaml:"raise_on_toggle"`
	RaiseOnCameraOpen bool    `mapstructure:"raise_on_camera_open" yaml:"raise_on_camera_open"`
	ToggleCommand     string  `mapstructure:"toggle_command" yaml:"toggle_command"`
	RaiseCommand      string  `mapstructure:"raise_command" yaml:"raise_command"`
}

type MonitorConfig struct {
	Command string `mapstructure:"command" yaml:"command"`
}

type SessionConfig struct {
	Prefix           string  `mapstructure:"prefix" yaml:"prefix"`
	NumberingStart   int     `mapstructure:"numbering_start" yaml:"numbering_start"`
	Loop             bool    `mapstructure:"loop" yaml:"loop"`
	Autorecord       bool    `mapstructure:"autorecord" yaml:"autorecord"`
	DateInName       bool    `mapstructure:"date_in_name" yaml:"date_in_name"`
	OutputDir        string  `mapstructure:"output_dir" yaml:"output_dir"`
	FinalizeDelaySec float64 `mapstructure:"finalize_delay_sec" yaml:"finalize_delay_sec"`
	PullDelaySec     float64 `mapstructure:"pull_delay_sec" yaml:"pull_delay_sec"`
}

type MediaConfig struct {
	Pipeline           string   `mapstructure:"pipeline" yaml:"pipeline"`
	PlayerCommand      []string `mapstructure:"player_command" yaml:"player_command"`
	JackProcesses      []string `mapstructure:"jack_processes" yaml:"jack_processes"`
	AudioExtension     string   `mapstructure:"audio_extension" yaml:"audio_extension"`
	PostprocessCommand []string `mapstructure:"postprocess_command" yaml:"postprocess_command"`
}

// builtinDefaults are applied below the default profile.
var builtinDefaults = map[string]any{
	"device.adb":               "adb",
	"device.serial":            "",
	"device.save_dir":          DefaultSaveDir,
	"device.camera_package":    DefaultCameraPackage,
	"device.video_extension":   ".mp4",
	"device.power_settle_sec":  2.0,
	"device.unlock_settle_sec": 1.0,
	"device.camera_settle_sec": 1.0,

	"detection.method":                 string(detect.KindPendingMarker),
	"detection.pending_prefix":         detect.DefaultPendingPrefix,
	"detection.growth_interval_sec":    1.0,
	"detection.stop_poll_interval_sec": 1.0,

	"sync.enabled":              false,
	"sync.interval_sec":         4.0,
	"sync.raise_on_toggle":      false,
	"sync.raise_on_camera_open": false,
	"sync.toggle_command":       DefaultToggleCommand,
	"sync.raise_command":        DefaultRaiseCommand,

	"monitor.command": monitor.DefaultCommand,

	"session.prefix":             "rdv",
	"session.numbering_start":    1,
	"session.loop":               false,
	"session.autorecord":         false,
	"session.date_in_name":       false,
	"session.output_dir":         ".",
	"session.finalize_delay_sec": 5.0,
	"session.pull_delay_sec":     4.0,

	"media.pipeline":            "",
	"media.player_command":      media.DefaultPlayerCommand,
	"media.jack_processes":      media.DefaultJackProcesses,
	"media.audio_extension":     ".wav",
	"media.postprocess_command": []string{},
}

// DefaultPath is where the config file is looked up when --config is not given.
func DefaultPath() string {
	return os.ExpandEnv("$HOME/.config/recdroidvid.yaml")
}

// Default returns the built-in configuration, with environment overrides.
func Default() (*Config, error) {
	return resolve(nil, nil, DefaultProfile)
}

// LoadWithProfile reads configFile and resolves the named profile over the
// default profile and the built-in defaults. An empty profile selects
// active_config, then "default".
func LoadWithProfile(configFile, profile string) (*Config, error) {
	if configFile == "" {
		return nil, fmt.Errorf("no config file specified, use --config flag")
	}

	rootConfig, err := ReadRoot(configFile)
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	// Determine which config to use
	configName := profile
	if configName == "" {
		configName = rootConfig.ActiveConfig
	}
	if configName == "" {
		configName = DefaultProfile
	}

	selected, exists := rootConfig.Configs[configName]
	if !exists && configName != DefaultProfile {
		return nil, fmt.Errorf("configuration profile '%s' not found", configName)
	}

	var base map[string]any
	if configName != DefaultProfile {
		base = rootConfig.Configs[DefaultProfile]
	}

	cfg, err := resolve(base, selected, configName)
	if err != nil {
		return nil, fmt.Errorf("error resolving configuration profile '%s': %w", configName, err)
	}
	return cfg, nil
}

// ReadRoot reads the raw file: the active profile name and every profile's
// settings, keyed by profile name.
func ReadRoot(configFile string) (*RootConfig, error) {
	v := viper.New()
	v.SetConfigFile(configFile)
	if filepath.Ext(configFile) == "" {
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var rootConfig RootConfig
	if err := v.Unmarshal(&rootConfig); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	for name, settings := range rootConfig.Configs {
		if err := checkKeys(settings); err != nil {
			return nil, fmt.Errorf("invalid config '%s': %w", name, err)
		}
	}
	return &rootConfig, nil
}

// ListProfiles returns the profile names in configFile, sorted.
func ListProfiles(configFile string) ([]string, string, error) {
	rootConfig, err := ReadRoot(configFile)
	if err != nil {
		return nil, "", err
	}
	names := make([]string, 0, len(rootConfig.Configs))
	for name := range rootConfig.Configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, rootConfig.ActiveConfig, nil
}

// UpdateActiveConfig updates the active_config field in the config file
func UpdateActiveConfig(configFile, newActiveConfig string) error {
	if configFile == "" {
		return fmt.Errorf("no config file specified")
	}

	// Create a new viper instance to avoid interfering with the global one
	v := viper.New()
	v.SetConfigFile(configFile)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	if !v.IsSet("configs." + newActiveConfig) {
		return fmt.Errorf("configuration profile '%s' not found", newActiveConfig)
	}

	v.Set("active_config", newActiveConfig)

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("error writing config file %s: %w", configFile, err)
	}
	return nil
}

// resolve layers built-in defaults, the base profile and the selected
// profile, applies environment overrides and validates the result.
func resolve(base, profile map[string]any, name string) (*Config, error) {
	v := viper.New()
	for key, value := range builtinDefaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if base != nil {
		if err := v.MergeConfigMap(base); err != nil {
			return nil, fmt.Errorf("error merging default profile: %w", err)
		}
	}
	if profile != nil {
		if err := v.MergeConfigMap(profile); err != nil {
			return nil, fmt.Errorf("error merging profile: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.Profile = name
	cfg.Inheritance = trackInheritance(base, profile)

	cfg.Session.OutputDir = expandPath(cfg.Session.OutputDir)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// trackInheritance records, for every known key, which layer supplied it.
func trackInheritance(base, profile map[string]any) map[string]string {
	baseKeys := flatten("", base)
	profileKeys := flatten("", profile)

	info := make(map[string]string, len(builtinDefaults))
	for key := range builtinDefaults {
		switch {
		case profileKeys[key]:
			info[key] = SourceProfile
		case baseKeys[key]:
			info[key] = SourceInherited
		default:
			info[key] = SourceBuiltin
		}
	}
	return info
}

func flatten(prefix string, m map[string]any) map[string]bool {
	keys := map[string]bool{}
	for k, v := range m {
		key := strings.ToLower(k)
		if prefix != "" {
			key = prefix + "." + key
		}
		if nested, ok := v.(map[string]any); ok {
			for nk := range flatten(key, nested) {
				keys[nk] = true
			}
			continue
		}
		keys[key] = true
	}
	return keys
}

// checkKeys rejects settings that no component reads, which are usually typos.
func checkKeys(settings map[string]any) error {
	var unknown []string
	for key := range flatten("", settings) {
		if _, ok := builtinDefaults[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown setting(s): %s", strings.Join(unknown, ", "))
	}
	return nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// Validate checks a resolved configuration. Detection method and pipeline
// steps are parsed here so typos fail before any device is touched.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Device.SaveDir == "" {
		errs = append(errs, fmt.Errorf("device.save_dir is required"))
	}
	if cfg.Device.CameraPackage == "" {
		errs = append(errs, fmt.Errorf("device.camera_package is required"))
	}
	if cfg.Device.PowerSettleSec < 0 || cfg.Device.UnlockSettleSec < 0 || cfg.Device.CameraSettleSec < 0 {
		errs = append(errs, fmt.Errorf("device settle delays must be >= 0"))
	}

	if _, err := cfg.Strategy(); err != nil {
		errs = append(errs, fmt.Errorf("detection.method: %w", err))
	}
	if cfg.Detection.GrowthIntervalSec <= 0 {
		errs = append(errs, fmt.Errorf("detection.growth_interval_sec must be > 0, got: %.2f", cfg.Detection.GrowthIntervalSec))
	}
	if cfg.Detection.StopPollIntervalSec <= 0 {
		errs = append(errs, fmt.Errorf("detection.stop_poll_interval_sec must be > 0, got: %.2f", cfg.Detection.StopPollIntervalSec))
	}

	if cfg.Sync.IntervalSec <= 0 {
		errs = append(errs, fmt.Errorf("sync.interval_sec must be > 0, got: %.2f", cfg.Sync.IntervalSec))
	}
	if cfg.Sync.Enabled && strings.TrimSpace(cfg.Sync.ToggleCommand) == "" {
		errs = append(errs, fmt.Errorf("sync.toggle_command is required when sync is enabled"))
	}
	if (cfg.Sync.RaiseOnToggle || cfg.Sync.RaiseOnCameraOpen) && strings.TrimSpace(cfg.Sync.RaiseCommand) == "" {
		errs = append(errs, fmt.Errorf("sync.raise_command is required when raising the DAW is enabled"))
	}

	if strings.TrimSpace(cfg.Monitor.Command) == "" {
		errs = append(errs, fmt.Errorf("monitor.command is required"))
	}

	if cfg.Session.Prefix == "" {
		errs = append(errs, fmt.Errorf("session.prefix is required"))
	}
	if cfg.Session.NumberingStart < 0 {
		errs = append(errs, fmt.Errorf("session.numbering_start must be >= 0, got: %d", cfg.Session.NumberingStart))
	}
	if cfg.Session.FinalizeDelaySec < 0 || cfg.Session.PullDelaySec < 0 {
		errs = append(errs, fmt.Errorf("session delays must be >= 0"))
	}

	steps, err := cfg.Steps()
	if err != nil {
		errs = append(errs, fmt.Errorf("media.pipeline: %w", err))
	}
	for _, step := range steps {
		if step == media.StepPostprocess && len(cfg.Media.PostprocessCommand) == 0 {
			errs = append(errs, fmt.Errorf("media.postprocess_command is required for pipeline step 'x'"))
		}
	}

	return errors.Join(errs...)
}

// Strategy parses the detection settings into a detection strategy.
func (c *Config) Strategy() (detect.Strategy, error) {
	return detect.ParseStrategy(c.Detection.Method, c.Detection.PendingPrefix, Seconds(c.Detection.GrowthIntervalSec))
}

// Steps parses the media pipeline.
func (c *Config) Steps() ([]media.Step, error) {
	return media.ParseSteps(c.Media.Pipeline)
}

// Seconds converts a *_sec config value to a duration.
func Seconds(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}
