package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	modeAuto   = "auto"
	modeRoutes = "routes"
	modeLegacy = "legacy"
)

// Config is the daemon configuration. Every key is optional.
type Config struct {
	Socket        string `toml:"socket" yaml:"socket" json:"socket"`
	Adapter       string `toml:"adapter" yaml:"adapter" json:"adapter"`
	LogLevel      string `toml:"log_level" yaml:"log_level" json:"log_level"`
	LogFormat     string `toml:"log_format" yaml:"log_format" json:"log_format"`
	SoundDir      string `toml:"sound_dir" yaml:"sound_dir" json:"sound_dir"`
	SysfsSoundDir string `toml:"sysfs_sound_dir" yaml:"sysfs_sound_dir" json:"sysfs_sound_dir"`
	InputDir      string `toml:"input_dir" yaml:"input_dir" json:"input_dir"`

	// Enumeration picks the BlueZ API: "auto" checks for the object
	// manager, "routes" and "legacy" force one.
	Enumeration  string `toml:"enumeration" yaml:"enumeration" json:"enumeration"`
	PauseOnSleep bool   `toml:"pause_on_sleep" yaml:"pause_on_sleep" json:"pause_on_sleep"`
}

func defaultConfig() Config {
	return Config{
		Socket:        defaultSocketPath(),
		Adapter:       "hci0",
		LogLevel:      "info",
		LogFormat:     "text",
		SoundDir:      "/dev/snd",
		SysfsSoundDir: "/sys/class/sound",
		InputDir:      "/dev/input",
		Enumeration:   modeAuto,
		PauseOnSleep:  true,
	}
}

func defaultSocketPath() string {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = "/tmp"
	}
	return filepath.Join(dir, "hpdetect.sock")
}

func configPath() string {
	if p := os.Getenv("HPDETECT_CONFIG"); p != "" {
		return p
	}
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		dir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(dir, "hpdetect", "config.toml")
}

// loadConfig reads path over the defaults. A missing file is not an error.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := decodeConfig(path, data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func decodeConfig(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	case ".json":
		return json.Unmarshal(data, cfg)
	default:
		_, err := toml.Decode(string(data), cfg)
		return err
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("HPDETECT_SOCKET"); v != "" {
		c.Socket = v
	}
	if v := os.Getenv("HPDETECT_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

func (c *Config) validate() error {
	switch c.Enumeration {
	case modeAuto, modeRoutes, modeLegacy:
	default:
		return fmt.Errorf("enumeration must be auto, routes or legacy, got %q", c.Enumeration)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	if c.Socket == "" {
		return errors.New("socket path is empty")
	}
	if c.Adapter == "" {
		return errors.New("adapter is empty")
	}
	return nil
}
