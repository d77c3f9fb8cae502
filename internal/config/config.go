// Package config loads and validates the daemon configuration file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied before the file is read.
const (
	DefaultDataDir          = "data"
	DefaultServer           = "local"
	DefaultWindowSize       = 5
	DefaultRouterQueueSize  = 256
	DefaultSyncWorkers      = 2
	DefaultSyncQueueSize    = 64
	DefaultSyncCallTimeout  = 15 * time.Second
	DefaultTitleTimeout     = 10 * time.Second
	DefaultTitleRetries     = 1
	DefaultRotationInterval = time.Minute
)

// Config is the fully resolved daemon configuration.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// Server names this deployment in bookmark attribution text.
	Server string `yaml:"server"`
	// DataDir is where the current day document and the backlog live.
	DataDir string `yaml:"data_dir"`

	Console Console `yaml:"console"`
	Links   Links   `yaml:"links"`
	Router  Router  `yaml:"router"`

	Bookmarks *Bookmarks `yaml:"bookmarks"`
	Social    []Social   `yaml:"social"`
	Sync      Sync       `yaml:"sync"`
	Titles    Titles     `yaml:"titles"`

	// RotationInterval is how often day rollover is checked.
	RotationInterval Duration `yaml:"rotation_interval"`
}

// Console identifies the local console session.
type Console struct {
	Nick    string `yaml:"nick"`
	Channel string `yaml:"channel"`
}

// Links is the chat vocabulary of the link log module.
type Links struct {
	LinkPrefix    string   `yaml:"link_prefix"`
	ViewCommand   string   `yaml:"view_command"`
	TagsCommand   string   `yaml:"tags_command"`
	DeleteCommand string   `yaml:"delete_command"`
	EditCommand   string   `yaml:"edit_command"`
	WindowSize    int      `yaml:"window_size"`
	Keywords      []string `yaml:"keywords"`
}

// Router tunes inbound dispatch.
type Router struct {
	QueueSize int `yaml:"queue_size"`
}

// Bookmarks configures the external bookmark service sync target.
type Bookmarks struct {
	BaseURL  string `yaml:"base_url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Social configures one status posting provider.
type Social struct {
	Name        string `yaml:"name"`
	BaseURL     string `yaml:"base_url"`
	AccessToken string `yaml:"access_token"`
}

// Sync tunes the mutation fan-out pool.
type Sync struct {
	Workers     int      `yaml:"workers"`
	QueueSize   int      `yaml:"queue_size"`
	CallTimeout Duration `yaml:"call_timeout"`
}

// Titles tunes page title resolution for posted URLs.
type Titles struct {
	Enabled *bool    `yaml:"enabled"`
	Timeout Duration `yaml:"timeout"`
	Retries int      `yaml:"retries"`
}

// Duration is a time.Duration that unmarshals from the usual string
// form, for example "15s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode duration: %w", err)
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)

	return nil
}

// Std returns d as a time.Duration, or fallback when unset.
func (d Duration) Std(fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}

	return time.Duration(d)
}

// TitlesEnabled reports whether title resolution is on. Unset means on.
func (c *Config) TitlesEnabled() bool {
	return c.Titles.Enabled == nil || *c.Titles.Enabled
}

// Level maps the configured log level string onto slog.
func (c *Config) Level() (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		LogLevel: "info",
		Server:   DefaultServer,
		DataDir:  DefaultDataDir,
	}
}

// Load reads and validates a configuration file. An empty path yields
// the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config file %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks field coherence. Defaults stand in for unset values
// elsewhere, so only actively wrong values fail here.
func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Links.WindowSize < 0 {
		return fmt.Errorf("links.window_size must be >= 0")
	}
	if c.Router.QueueSize < 0 {
		return fmt.Errorf("router.queue_size must be >= 0")
	}
	if c.Sync.Workers < 0 {
		return fmt.Errorf("sync.workers must be >= 0")
	}
	if c.Sync.QueueSize < 0 {
		return fmt.Errorf("sync.queue_size must be >= 0")
	}
	if c.Titles.Retries < 0 {
		return fmt.Errorf("titles.retries must be >= 0")
	}

	if c.Bookmarks != nil {
		if strings.TrimSpace(c.Bookmarks.BaseURL) == "" {
			return fmt.Errorf("bookmarks.base_url is required when bookmarks is set")
		}
		if strings.TrimSpace(c.Bookmarks.Username) == "" {
			return fmt.Errorf("bookmarks.username is required when bookmarks is set")
		}
		if strings.TrimSpace(c.Bookmarks.Password) == "" {
			return fmt.Errorf("bookmarks.password is required when bookmarks is set")
		}
	}
	for index, provider := range c.Social {
		if strings.TrimSpace(provider.Name) == "" {
			return fmt.Errorf("social[%d].name is required", index)
		}
		if strings.TrimSpace(provider.BaseURL) == "" {
			return fmt.Errorf("social[%d].base_url is required", index)
		}
		if strings.TrimSpace(provider.AccessToken) == "" {
			return fmt.Errorf("social[%d].access_token is required", index)
		}
	}

	return nil
}
