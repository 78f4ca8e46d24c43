// Package config loads presenter settings from defaults, an optional YAML
// file and SPATIAL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g. SPATIAL_SERVER_ADDR.
const EnvPrefix = "SPATIAL"

type ServerConfig struct {
	Addr      string `mapstructure:"addr" yaml:"addr"`
	StaticDir string `mapstructure:"static_dir" yaml:"static_dir"`
}

type DataConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type NavigationConfig struct {
	DebounceMS int `mapstructure:"debounce_ms" yaml:"debounce_ms"`
}

type GestureConfig struct {
	Enabled           bool    `mapstructure:"enabled" yaml:"enabled"`
	CameraID          int     `mapstructure:"camera_id" yaml:"camera_id"`
	FPS               int     `mapstructure:"fps" yaml:"fps"`
	RecognizerCommand string  `mapstructure:"recognizer_command" yaml:"recognizer_command"`
	MinDetection      float64 `mapstructure:"min_detection" yaml:"min_detection"`
	MotionThreshold   float64 `mapstructure:"motion_threshold" yaml:"motion_threshold"`
	MotionHoldFrames  int     `mapstructure:"motion_hold_frames" yaml:"motion_hold_frames"`
}

type SpeechConfig struct {
	Enabled          bool   `mapstructure:"enabled" yaml:"enabled"`
	Command          string `mapstructure:"command" yaml:"command"`
	RestartInitialMS int    `mapstructure:"restart_initial_ms" yaml:"restart_initial_ms"`
	RestartMaxMS     int    `mapstructure:"restart_max_ms" yaml:"restart_max_ms"`
}

type HooksConfig struct {
	PluginDir string `mapstructure:"plugin_dir" yaml:"plugin_dir"`
	TimeoutMS int    `mapstructure:"timeout_ms" yaml:"timeout_ms"`
}

type TrayConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// Config is the full presenter configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Data       DataConfig       `mapstructure:"data" yaml:"data"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
	Navigation NavigationConfig `mapstructure:"navigation" yaml:"navigation"`
	Gesture    GestureConfig    `mapstructure:"gesture" yaml:"gesture"`
	Speech     SpeechConfig     `mapstructure:"speech" yaml:"speech"`
	Hooks      HooksConfig      `mapstructure:"hooks" yaml:"hooks"`
	Tray       TrayConfig       `mapstructure:"tray" yaml:"tray"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:      ":8080",
			StaticDir: "./web",
		},
		Data: DataConfig{
			Dir: "~/.spatial",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Navigation: NavigationConfig{
			DebounceMS: 300,
		},
		Gesture: GestureConfig{
			Enabled:          true,
			CameraID:         0,
			FPS:              15,
			MinDetection:     0.5,
			MotionThreshold:  1.0,
			MotionHoldFrames: 10,
		},
		Speech: SpeechConfig{
			Enabled:          true,
			RestartInitialMS: 500,
			RestartMaxMS:     10000,
		},
		Hooks: HooksConfig{
			TimeoutMS: 5000,
		},
		Tray: TrayConfig{
			Enabled: true,
		},
	}
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.static_dir", d.Server.StaticDir)
	v.SetDefault("data.dir", d.Data.Dir)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("navigation.debounce_ms", d.Navigation.DebounceMS)
	v.SetDefault("gesture.enabled", d.Gesture.Enabled)
	v.SetDefault("gesture.camera_id", d.Gesture.CameraID)
	v.SetDefault("gesture.fps", d.Gesture.FPS)
	v.SetDefault("gesture.recognizer_command", d.Gesture.RecognizerCommand)
	v.SetDefault("gesture.min_detection", d.Gesture.MinDetection)
	v.SetDefault("gesture.motion_threshold", d.Gesture.MotionThreshold)
	v.SetDefault("gesture.motion_hold_frames", d.Gesture.MotionHoldFrames)
	v.SetDefault("speech.enabled", d.Speech.Enabled)
	v.SetDefault("speech.command", d.Speech.Command)
	v.SetDefault("speech.restart_initial_ms", d.Speech.RestartInitialMS)
	v.SetDefault("speech.restart_max_ms", d.Speech.RestartMaxMS)
	v.SetDefault("hooks.plugin_dir", d.Hooks.PluginDir)
	v.SetDefault("hooks.timeout_ms", d.Hooks.TimeoutMS)
	v.SetDefault("tray.enabled", d.Tray.Enabled)
}

// Load reads .env (if present), then path (if non-empty), then environment
// overrides, and validates the result.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to read .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}

	dir, err := expandHome(cfg.Data.Dir)
	if err != nil {
		return Config{}, err
	}
	cfg.Data.Dir = dir
	if cfg.Hooks.PluginDir == "" {
		cfg.Hooks.PluginDir = filepath.Join(cfg.Data.Dir, "plugins")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr must not be empty")
	}
	if c.Data.Dir == "" {
		return errors.New("data.dir must not be empty")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug|info|warn|error, got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if c.Navigation.DebounceMS <= 0 {
		return errors.New("navigation.debounce_ms must be positive")
	}
	if c.Gesture.FPS <= 0 {
		return errors.New("gesture.fps must be positive")
	}
	if c.Gesture.MinDetection < 0 || c.Gesture.MinDetection > 1 {
		return errors.New("gesture.min_detection must be between 0 and 1")
	}
	if c.Speech.RestartInitialMS <= 0 || c.Speech.RestartMaxMS < c.Speech.RestartInitialMS {
		return errors.New("speech.restart_max_ms must be >= speech.restart_initial_ms > 0")
	}
	if c.Hooks.TimeoutMS <= 0 {
		return errors.New("hooks.timeout_ms must be positive")
	}
	return nil
}

// DBPath is the SQLite database location.
func (c Config) DBPath() string {
	return filepath.Join(c.Data.Dir, "spatial.db")
}

func (c NavigationConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

func (c SpeechConfig) RestartInitial() time.Duration {
	return time.Duration(c.RestartInitialMS) * time.Millisecond
}

func (c SpeechConfig) RestartMax() time.Duration {
	return time.Duration(c.RestartMaxMS) * time.Millisecond
}

func (c HooksConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// YAML renders the effective configuration.
func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
