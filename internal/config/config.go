package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"gglcd/internal/convert"
	"gglcd/internal/gamesense"
	"gglcd/internal/panel"
)

// Modes select what the CLI draws on every refresh.
const (
	ModeText   = "text"
	ModeClock  = "clock"
	ModeSVG    = "svg"
	ModeURL    = "url"
	ModeAgenda = "agenda"
)

const (
	defaultGame              = "GGLCD"
	defaultRefresh           = "* * * * *"
	defaultHeartbeatInterval = 10 * time.Second
	defaultRequestTimeout    = 5 * time.Second
	defaultClockLayout       = "15:04"
	defaultHorizonDays       = 7
)

var gameNameRe = regexp.MustCompile(`^[A-Z0-9_-]+$`)

// BasicAuthConfig holds HTTP Basic Auth credentials for the preview server.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// PreviewConfig controls the local preview server. An empty Listen disables it.
type PreviewConfig struct {
	Listen string `yaml:"listen" json:"listen"`

	// BasicAuth, if non-nil, protects every route except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// Config is the top-level application configuration.
type Config struct {
	// Game is the GameSense game id: upper-case A-Z, 0-9, hyphen, underscore.
	Game        string `yaml:"game" json:"game"`
	DisplayName string `yaml:"display_name" json:"display_name"`
	Developer   string `yaml:"developer" json:"developer"`
	Event       string `yaml:"event" json:"event"`

	// Panels lists the panels to drive by name (keyboard, wireless-headset,
	// wired-headset, mouse or the apex/arctis/gamedac/rival aliases).
	Panels []string `yaml:"panels" json:"panels"`

	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" json:"heartbeat_interval"`
	RequestTimeout    time.Duration `yaml:"request_timeout" json:"request_timeout"`

	// DeinitializeTimerMs is sent with the game metadata; 0 keeps the
	// service default. Valid range 1000-60000.
	DeinitializeTimerMs int `yaml:"deinitialize_timer_ms" json:"deinitialize_timer_ms"`

	// CoreProps overrides where coreProps.json is read from. Address skips
	// coreProps.json entirely.
	CoreProps string `yaml:"core_props" json:"core_props"`
	Address   string `yaml:"address" json:"address"`

	// Refresh is a cron schedule (e.g. "* * * * *") for redraw + flush.
	Refresh string `yaml:"refresh" json:"refresh"`

	Mode        string `yaml:"mode" json:"mode"`
	Text        string `yaml:"text" json:"text"`
	ClockLayout string `yaml:"clock_layout" json:"clock_layout"`
	SVG         string `yaml:"svg" json:"svg"`
	URL         string `yaml:"url" json:"url"`

	// Threshold and Invert tune how svg and url images become 1bpp.
	// Threshold is the luma (1-255) at or above which a pixel lights; a
	// missing or zero value becomes convert.DefaultLevel.
	Threshold int  `yaml:"threshold" json:"threshold"`
	Invert    bool `yaml:"invert" json:"invert"`

	ICSURL      string `yaml:"ics_url" json:"ics_url"`
	HorizonDays int    `yaml:"horizon_days" json:"horizon_days"`

	// Timezone is the IANA zone used by the clock and agenda; empty means
	// the host zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	Preview PreviewConfig `yaml:"preview" json:"preview"`

	LogLevel string `yaml:"log_level" json:"log_level"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Game:              defaultGame,
		DisplayName:       "gglcd",
		Event:             gamesense.DefaultEvent,
		Panels:            []string{panel.Keyboard.String()},
		HeartbeatInterval: defaultHeartbeatInterval,
		RequestTimeout:    defaultRequestTimeout,
		Refresh:           defaultRefresh,
		Mode:              ModeClock,
		ClockLayout:       defaultClockLayout,
		Threshold:         convert.DefaultLevel,
		HorizonDays:       defaultHorizonDays,
		LogLevel:          "info",
	}
}

// Normalize fills in missing/zero values so partially-filled configs still
// behave.
func (c *Config) Normalize() {
	c.Game = strings.ToUpper(strings.TrimSpace(c.Game))
	if c.Game == "" {
		c.Game = defaultGame
	}
	if c.Event == "" {
		c.Event = gamesense.DefaultEvent
	}
	if len(c.Panels) == 0 {
		c.Panels = []string{panel.Keyboard.String()}
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.Refresh == "" {
		c.Refresh = defaultRefresh
	}
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	if c.Mode == "" {
		c.Mode = ModeClock
	}
	if c.ClockLayout == "" {
		c.ClockLayout = defaultClockLayout
	}
	if c.Threshold == 0 {
		c.Threshold = convert.DefaultLevel
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = defaultHorizonDays
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate reports settings the service or the CLI would reject later.
func (c *Config) Validate() error {
	var errs []error

	if !gameNameRe.MatchString(c.Game) {
		errs = append(errs, fmt.Errorf("game %q must be A-Z, 0-9, '-' or '_'", c.Game))
	}
	if _, err := c.Variants(); err != nil {
		errs = append(errs, err)
	}
	if t := c.DeinitializeTimerMs; t != 0 && (t < 1000 || t > 60000) {
		errs = append(errs, fmt.Errorf("deinitialize_timer_ms %d out of range 1000-60000", t))
	}
	if c.HeartbeatInterval >= 15*time.Second {
		errs = append(errs, fmt.Errorf("heartbeat_interval %s must be under the 15s service timeout", c.HeartbeatInterval))
	}
	if c.Threshold < 1 || c.Threshold > 255 {
		errs = append(errs, fmt.Errorf("threshold %d out of range 1-255", c.Threshold))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}

	switch c.Mode {
	case ModeText, ModeClock:
	case ModeSVG:
		if c.SVG == "" {
			errs = append(errs, errors.New("mode svg needs svg"))
		}
	case ModeURL:
		if c.URL == "" {
			errs = append(errs, errors.New("mode url needs url"))
		}
	case ModeAgenda:
		if c.ICSURL == "" {
			errs = append(errs, errors.New("mode agenda needs ics_url"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown mode %q", c.Mode))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Variants resolves Panels.
func (c *Config) Variants() ([]panel.Variant, error) {
	vs, err := panel.ParseList(c.Panels)
	if err != nil {
		return nil, fmt.Errorf("panels: %w", err)
	}
	return vs, nil
}

// Location resolves Timezone; empty means time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Identity is the GameSense identity described by the config.
func (c *Config) Identity() gamesense.Identity {
	return gamesense.Identity{
		Game:                c.Game,
		DisplayName:         c.DisplayName,
		Developer:           c.Developer,
		Event:               c.Event,
		DeinitializeTimerMs: c.DeinitializeTimerMs,
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (parent directory created) and returned.
//   - Otherwise the YAML is read and defaults are filled in.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".gglcd-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience wrapper around the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
