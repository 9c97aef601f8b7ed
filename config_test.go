package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("HPDETECT_SOCKET", "")
	t.Setenv("HPDETECT_LOG_LEVEL", "")
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")

	cfg, err := loadConfig(filepath.Join(t.TempDir(), "config.toml"))
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
	assert.Equal(t, "/run/user/1000/hpdetect.sock", cfg.Socket)
	assert.True(t, cfg.PauseOnSleep)
}

func TestLoadConfigTOML(t *testing.T) {
	t.Setenv("HPDETECT_SOCKET", "")
	t.Setenv("HPDETECT_LOG_LEVEL", "")
	path := writeConfig(t, "config.toml", `
adapter = "hci1"
log_level = "debug"
log_format = "json"
enumeration = "legacy"
pause_on_sleep = false
`)

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "hci1", cfg.Adapter)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, modeLegacy, cfg.Enumeration)
	assert.False(t, cfg.PauseOnSleep)
	assert.Equal(t, "/dev/snd", cfg.SoundDir, "unset keys keep defaults")
}

func TestLoadConfigYAMLAndJSON(t *testing.T) {
	t.Setenv("HPDETECT_SOCKET", "")
	t.Setenv("HPDETECT_LOG_LEVEL", "")

	cfg, err := loadConfig(writeConfig(t, "config.yaml", "sound_dir: /tmp/snd\ninput_dir: /tmp/input\n"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/snd", cfg.SoundDir)
	assert.Equal(t, "/tmp/input", cfg.InputDir)

	cfg, err = loadConfig(writeConfig(t, "config.json", `{"sysfs_sound_dir": "/tmp/sys", "enumeration": "routes"}`))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/sys", cfg.SysfsSoundDir)
	assert.Equal(t, modeRoutes, cfg.Enumeration)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("HPDETECT_SOCKET", "/tmp/other.sock")
	t.Setenv("HPDETECT_LOG_LEVEL", "warn")

	cfg, err := loadConfig(writeConfig(t, "config.toml", `socket = "/tmp/file.sock"`))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.sock", cfg.Socket)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadConfigInvalid(t *testing.T) {
	t.Setenv("HPDETECT_SOCKET", "")
	t.Setenv("HPDETECT_LOG_LEVEL", "")

	tests := map[string]string{
		"enumeration": `enumeration = "sometimes"`,
		"log level":   `log_level = "loud"`,
		"log format":  `log_format = "xml"`,
		"adapter":     `adapter = ""`,
		"syntax":      `adapter = `,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := loadConfig(writeConfig(t, "config.toml", body))
			assert.Error(t, err)
		})
	}
}

func TestConfigPath(t *testing.T) {
	t.Setenv("HPDETECT_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/home/u/.cfg")
	assert.Equal(t, "/home/u/.cfg/hpdetect/config.toml", configPath())

	t.Setenv("HPDETECT_CONFIG", "/etc/hpdetect.yaml")
	assert.Equal(t, "/etc/hpdetect.yaml", configPath())
}

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"debug", "INFO", "Warn", "error"} {
		_, err := parseLevel(s)
		assert.NoError(t, err, s)
	}
	_, err := parseLevel("verbose")
	assert.Error(t, err)
}
