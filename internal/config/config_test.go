package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gglcd/internal/convert"
	"gglcd/internal/panel"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
game: my-game
panels: [apex, mouse, keyboard]
heartbeat_interval: 7s
deinitialize_timer_ms: 20000
mode: Agenda
ics_url: https://example.com/cal.ics
timezone: UTC
preview:
  listen: 127.0.0.1:9090
  basic_auth:
    username: u
    password: p
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "MY-GAME", cfg.Game)
	assert.Equal(t, 7*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, defaultRequestTimeout, cfg.RequestTimeout)
	assert.Equal(t, ModeAgenda, cfg.Mode)
	assert.Equal(t, "127.0.0.1:9090", cfg.Preview.Listen)
	require.NotNil(t, cfg.Preview.BasicAuth)
	assert.Equal(t, "u", cfg.Preview.BasicAuth.Username)
	require.NoError(t, cfg.Validate())

	vs, err := cfg.Variants()
	require.NoError(t, err)
	assert.Equal(t, []panel.Variant{panel.Keyboard, panel.Mouse}, vs)

	id := cfg.Identity()
	assert.Equal(t, "MY-GAME", id.Game)
	assert.Equal(t, "UPDATE", id.Event)
	assert.Equal(t, 20000, id.DeinitializeTimerMs)
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("panels: [unclosed"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"game":      func(c *Config) { c.Game = "bad name" },
		"panel":     func(c *Config) { c.Panels = []string{"toaster"} },
		"timer":     func(c *Config) { c.DeinitializeTimerMs = 500 },
		"heartbeat": func(c *Config) { c.HeartbeatInterval = 20 * time.Second },
		"threshold": func(c *Config) { c.Threshold = 300 },
		"zero":      func(c *Config) { c.Threshold = 0 },
		"timezone":  func(c *Config) { c.Timezone = "Mars/Olympus" },
		"mode":      func(c *Config) { c.Mode = "fireworks" },
		"svg":       func(c *Config) { c.Mode = ModeSVG },
		"url":       func(c *Config) { c.Mode = ModeURL },
		"agenda":    func(c *Config) { c.Mode = ModeAgenda },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, DefaultConfig().Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Mode = ModeText
	cfg.Text = "hello\nworld"
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestLocation(t *testing.T) {
	cfg := DefaultConfig()
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}

func TestNormalizeThreshold(t *testing.T) {
	cfg := &Config{}
	cfg.Normalize()
	assert.Equal(t, convert.DefaultLevel, cfg.Threshold)
	assert.NoError(t, cfg.Validate())

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("threshold: 0\ninvert: true\n"), 0o600))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, convert.DefaultLevel, got.Threshold)
	assert.True(t, got.Invert)
}
