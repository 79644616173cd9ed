package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"cc_usage_mon/internal/alert"
	"cc_usage_mon/internal/logger"
	"cc_usage_mon/internal/pricing"
)

// Duration wraps time.Duration so YAML values can be written as
// "30s" or "2m".
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration back to its string form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// AlertConfig holds the usage alert thresholds. A zero-valued
// threshold disables its check.
type AlertConfig struct {
	// Enabled turns alert evaluation on
	Enabled bool `yaml:"enabled"`

	// DailyCostThreshold is the USD ceiling for one calendar day
	DailyCostThreshold float64 `yaml:"daily_cost_threshold"`

	// SessionCostThreshold is the USD ceiling for one session
	SessionCostThreshold float64 `yaml:"session_cost_threshold"`

	// TokenBurnRateThreshold is in tokens per minute
	TokenBurnRateThreshold float64 `yaml:"token_burn_rate_threshold"`

	// DesktopNotifications delivers alerts as desktop notifications
	DesktopNotifications bool `yaml:"desktop_notifications"`
}

// Config holds the application configuration
type Config struct {
	// ProjectsRoot is the directory holding per-project log directories
	ProjectsRoot string `yaml:"projects_root"`

	// MaxFileBytes is the per-file size ceiling for batch ingestion
	MaxFileBytes int64 `yaml:"max_file_bytes"`

	// TailLines is how many trailing lines a live update re-reads
	TailLines int `yaml:"tail_lines"`

	// RefreshInterval is the live-mode polling period
	RefreshInterval Duration `yaml:"refresh_interval"`

	// BurnHistorySize bounds the per-session burn-rate history
	BurnHistorySize int `yaml:"burn_history_size"`

	// RecentActivitySize bounds the per-session activity history
	RecentActivitySize int `yaml:"recent_activity_size"`

	// Theme is the color theme to use (mocha, macchiato, frappe, latte)
	Theme string `yaml:"theme"`

	Alerts AlertConfig `yaml:"alerts"`

	// Pricing overrides or extends the built-in pricing table
	Pricing *pricing.Table `yaml:"pricing"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		ProjectsRoot:       filepath.Join(home, ".claude", "projects"),
		MaxFileBytes:       100 * 1024 * 1024,
		TailLines:          50,
		RefreshInterval:    Duration(2 * time.Second),
		BurnHistorySize:    60,
		RecentActivitySize: 50,
		Theme:              "mocha",
		Alerts: AlertConfig{
			Enabled:                true,
			DailyCostThreshold:     50,
			SessionCostThreshold:   10,
			TokenBurnRateThreshold: 10000,
			DesktopNotifications:   true,
		},
	}
}

// Load reads the config from a YAML file. A missing file uses the
// defaults; a malformed file falls back to the whole default object
// with a diagnostic, never a partial merge.
func Load(path string) *Config {
	cfg := DefaultConfig()

	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath) //nolint:gosec // config path from known locations
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("config unreadable, using defaults", "error", err)
		}
		return applyEnv(cfg)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		logger.Warn("config malformed, using defaults", "error", err)
		return applyEnv(DefaultConfig())
	}

	return applyEnv(cfg)
}

// LoadFromDefaultPath attempts to load config from standard locations
func LoadFromDefaultPath() *Config {
	// Check in order: current dir, ~/.config/cc_usage_mon/, XDG_CONFIG_HOME
	paths := []string{
		"config.yaml",
		filepath.Join(os.Getenv("HOME"), ".config", "cc_usage_mon", "config.yaml"),
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "cc_usage_mon", "config.yaml"))
	}

	for _, path := range paths {
		cleanPath := filepath.Clean(path)
		if _, err := os.Stat(cleanPath); err == nil {
			return Load(cleanPath)
		}
	}

	return applyEnv(DefaultConfig())
}

// applyEnv overlays environment variables onto cfg. A .env file in
// the working directory is loaded first when present.
func applyEnv(cfg *Config) *Config {
	_ = godotenv.Load()

	if root := os.Getenv("CC_USAGE_MON_PROJECTS_ROOT"); root != "" {
		cfg.ProjectsRoot = root
	}
	if raw := os.Getenv("CC_USAGE_MON_REFRESH_INTERVAL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			cfg.RefreshInterval = Duration(d)
		} else {
			logger.Warn("invalid refresh interval override", "value", raw)
		}
	}
	if raw := os.Getenv("CC_USAGE_MON_TAIL_LINES"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			cfg.TailLines = n
		} else {
			logger.Warn("invalid tail lines override", "value", raw)
		}
	}
	if theme := os.Getenv("CC_USAGE_MON_THEME"); theme != "" {
		cfg.Theme = theme
	}

	return cfg
}

// Thresholds converts the alert section to the evaluator's input.
func (c *Config) Thresholds() alert.Thresholds {
	return alert.Thresholds{
		Enabled:       c.Alerts.Enabled,
		DailyCost:     c.Alerts.DailyCostThreshold,
		SessionCost:   c.Alerts.SessionCostThreshold,
		TokenBurnRate: c.Alerts.TokenBurnRateThreshold,
	}
}

// PricingTable returns the built-in table merged with any configured
// overrides.
func (c *Config) PricingTable() *pricing.Table {
	table := pricing.DefaultTable()
	if c.Pricing != nil {
		table.Merge(c.Pricing)
	}
	return table
}
