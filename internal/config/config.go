// Package config loads tmx configuration from file and environment.
//
// Precedence (highest to lowest):
//  1. Command-line flags (applied by the caller)
//  2. Environment variables (TMX_*)
//  3. Config file
//  4. Built-in defaults
//
// Config file search order, unless a path is given explicitly:
//  1. .tmx.yaml or .tmx.toml in current directory
//  2. ~/.config/tmx/config.yaml or ~/.config/tmx/config.toml
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// AllHistory in Levels or Lines requests the complete scrollback.
const AllHistory = -1

// Config holds all tmx configuration.
type Config struct {
	// Socket is the tmux server socket name (tmux -L). Empty means the default server.
	Socket string `yaml:"socket" toml:"socket"`

	// Durations accept Go syntax ("30s", "500ms") or bare seconds ("2.5").
	Timeout     string `yaml:"timeout" toml:"timeout"`           // execute deadline
	Interval    string `yaml:"interval" toml:"interval"`         // poll interval
	WaitTimeout string `yaml:"wait_timeout" toml:"wait_timeout"` // wait-for-text deadline
	IdleTime    string `yaml:"idle_time" toml:"idle_time"`       // stable window for wait-idle
	IdleTimeout string `yaml:"idle_timeout" toml:"idle_timeout"` // wait-idle deadline
	SendDelay   string `yaml:"send_delay" toml:"send_delay"`     // pause between text and Enter

	// Lines is the scrollback depth for wait-for-text and wait-idle captures.
	Lines int `yaml:"lines" toml:"lines"`
	// Levels is the execute capture depth ladder. -1 means all history.
	Levels []int `yaml:"levels" toml:"levels"`

	// PaneLock serialises execute calls per pane with a lock file in LockDir.
	PaneLock bool   `yaml:"pane_lock" toml:"pane_lock"`
	LockDir  string `yaml:"lock_dir" toml:"lock_dir"`

	// EventSocket receives execute lifecycle events. Empty disables them;
	// "default" means the per-user runtime socket.
	EventSocket string `yaml:"event_socket" toml:"event_socket"`

	LogLevel string `yaml:"log_level" toml:"log_level"` // debug, info, warn, error

	// OTEL
	OTELEndpoint string `yaml:"otel_endpoint" toml:"otel_endpoint"`
	OTELHeaders  string `yaml:"otel_headers" toml:"otel_headers"` // Comma-separated key=value pairs

	// Parsed durations (not from the file, set after loading)
	TimeoutDuration     time.Duration `yaml:"-" toml:"-"`
	IntervalDuration    time.Duration `yaml:"-" toml:"-"`
	WaitTimeoutDuration time.Duration `yaml:"-" toml:"-"`
	IdleTimeDuration    time.Duration `yaml:"-" toml:"-"`
	IdleTimeoutDuration time.Duration `yaml:"-" toml:"-"`
	SendDelayDuration   time.Duration `yaml:"-" toml:"-"`

	// ConfigFile is the path to the config file that was loaded (empty if none).
	ConfigFile string `yaml:"-" toml:"-"`
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		Timeout:     "30s",
		Interval:    "500ms",
		WaitTimeout: "15s",
		IdleTime:    "2s",
		IdleTimeout: "30s",
		SendDelay:   "100ms",
		Lines:       1000,
		Levels:      []int{100, 500, 2000, AllHistory},
		LogLevel:    "warn",
	}
}

// Load reads configuration from the file at path (or the first file found in
// the search order when path is empty) and from environment variables.
// Environment variables always override file values.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	var (
		data []byte
		err  error
	)
	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	} else {
		path, data, err = findConfigFile()
	}
	if err == nil {
		fileCfg, err := decode(path, data)
		if err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
		cfg.ConfigFile = path
		mergeFile(cfg, fileCfg)
	}

	if err := mergeEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolve parses duration strings and validates numeric settings.
func (c *Config) resolve() error {
	// Deadlines and intervals must be positive; only send_delay may be zero.
	durations := []struct {
		name     string
		raw      string
		dst      *time.Duration
		positive bool
	}{
		{"timeout", c.Timeout, &c.TimeoutDuration, true},
		{"interval", c.Interval, &c.IntervalDuration, true},
		{"wait_timeout", c.WaitTimeout, &c.WaitTimeoutDuration, true},
		{"idle_time", c.IdleTime, &c.IdleTimeDuration, true},
		{"idle_timeout", c.IdleTimeout, &c.IdleTimeoutDuration, true},
		{"send_delay", c.SendDelay, &c.SendDelayDuration, false},
	}
	for _, d := range durations {
		v, err := ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", d.name, d.raw, err)
		}
		if d.positive && v == 0 {
			return fmt.Errorf("invalid %s %q: must be greater than zero", d.name, d.raw)
		}
		*d.dst = v
	}

	// Lines is the wait commands' scrollback window, so the visible-only 0 is rejected.
	if c.Lines == 0 || c.Lines < AllHistory {
		return fmt.Errorf("invalid lines %d: must be -1 (all) or > 0", c.Lines)
	}
	if len(c.Levels) == 0 {
		return fmt.Errorf("levels must not be empty")
	}
	for _, l := range c.Levels {
		if l != AllHistory && l <= 0 {
			return fmt.Errorf("invalid level %d: must be -1 (all) or > 0", l)
		}
	}
	return nil
}

// findConfigFile searches for a config file and returns its path and contents.
func findConfigFile() (string, []byte, error) {
	candidates := []string{".tmx.yaml", ".tmx.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		dir := filepath.Join(home, ".config", "tmx")
		candidates = append(candidates,
			filepath.Join(dir, "config.yaml"),
			filepath.Join(dir, "config.toml"),
		)
	}

	for _, path := range candidates {
		if data, err := os.ReadFile(path); err == nil {
			return path, data, nil
		}
	}
	return "", nil, fmt.Errorf("no config file found")
}

// decode parses data as TOML when path ends in .toml, YAML otherwise.
func decode(path string, data []byte) (*Config, error) {
	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// mergeFile applies non-zero file values onto cfg.
func mergeFile(cfg *Config, file *Config) {
	if file.Socket != "" {
		cfg.Socket = file.Socket
	}
	if file.Timeout != "" {
		cfg.Timeout = file.Timeout
	}
	if file.Interval != "" {
		cfg.Interval = file.Interval
	}
	if file.WaitTimeout != "" {
		cfg.WaitTimeout = file.WaitTimeout
	}
	if file.IdleTime != "" {
		cfg.IdleTime = file.IdleTime
	}
	if file.IdleTimeout != "" {
		cfg.IdleTimeout = file.IdleTimeout
	}
	if file.SendDelay != "" {
		cfg.SendDelay = file.SendDelay
	}
	if file.Lines != 0 {
		cfg.Lines = file.Lines
	}
	if len(file.Levels) > 0 {
		cfg.Levels = file.Levels
	}
	if file.PaneLock {
		cfg.PaneLock = file.PaneLock
	}
	if file.LockDir != "" {
		cfg.LockDir = file.LockDir
	}
	if file.EventSocket != "" {
		cfg.EventSocket = file.EventSocket
	}
	if file.LogLevel != "" {
		cfg.LogLevel = file.LogLevel
	}
	if file.OTELEndpoint != "" {
		cfg.OTELEndpoint = file.OTELEndpoint
	}
	if file.OTELHeaders != "" {
		cfg.OTELHeaders = file.OTELHeaders
	}
}

// mergeEnv applies environment variables onto cfg. Env always wins.
func mergeEnv(cfg *Config) error {
	strs := []struct {
		key string
		dst *string
	}{
		{"TMX_SOCKET", &cfg.Socket},
		{"TMX_TIMEOUT", &cfg.Timeout},
		{"TMX_INTERVAL", &cfg.Interval},
		{"TMX_WAIT_TIMEOUT", &cfg.WaitTimeout},
		{"TMX_IDLE_TIME", &cfg.IdleTime},
		{"TMX_IDLE_TIMEOUT", &cfg.IdleTimeout},
		{"TMX_SEND_DELAY", &cfg.SendDelay},
		{"TMX_LOCK_DIR", &cfg.LockDir},
		{"TMX_EVENT_SOCKET", &cfg.EventSocket},
		{"TMX_LOG_LEVEL", &cfg.LogLevel},
	}
	for _, s := range strs {
		if v := os.Getenv(s.key); v != "" {
			*s.dst = v
		}
	}

	if v := os.Getenv("TMX_LINES"); v != "" {
		n, err := ParseDepth(v)
		if err != nil {
			return fmt.Errorf("invalid TMX_LINES %q: %w", v, err)
		}
		cfg.Lines = n
	}
	if v := os.Getenv("TMX_LEVELS"); v != "" {
		levels, err := ParseLevels(v)
		if err != nil {
			return fmt.Errorf("invalid TMX_LEVELS %q: %w", v, err)
		}
		cfg.Levels = levels
	}
	if v := os.Getenv("TMX_PANE_LOCK"); v == "true" || v == "1" {
		cfg.PaneLock = true
	}

	// OTEL: tmx-specific first, then the standard exporter variables.
	if v := os.Getenv("TMX_OTEL_ENDPOINT"); v != "" {
		cfg.OTELEndpoint = v
	} else if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.OTELEndpoint = v
	}
	if v := os.Getenv("TMX_OTEL_HEADERS"); v != "" {
		cfg.OTELHeaders = v
	} else if v := os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"); v != "" {
		cfg.OTELHeaders = v
	}
	return nil
}

// ParseDuration parses Go duration syntax ("1m30s") or a bare number of seconds ("2.5").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	var d time.Duration
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		d = time.Duration(secs * float64(time.Second))
	} else {
		d, err = time.ParseDuration(s)
		if err != nil {
			return 0, err
		}
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration")
	}
	return d, nil
}

// ParseLevels parses a comma-separated depth ladder such as "100,500,2000,all".
func ParseLevels(s string) ([]int, error) {
	var levels []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := ParseDepth(part)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, fmt.Errorf("level must be > 0 or all")
		}
		levels = append(levels, n)
	}
	if len(levels) == 0 {
		return nil, fmt.Errorf("no levels")
	}
	return levels, nil
}

// ParseDepth parses a scrollback depth: a non-negative line count, or "all" / "-1".
func ParseDepth(s string) (int, error) {
	if s == "all" || s == "-" {
		return AllHistory, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < AllHistory {
		return 0, fmt.Errorf("depth must be -1 (all) or >= 0")
	}
	return n, nil
}
