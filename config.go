package chronoquest

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/chronoquest/chronoquest/internal/localstore"
	"gopkg.in/yaml.v3"
)

// Config configures the ChronoQuest client.
type Config struct {
	// BackendURL is the hosted project URL, e.g. https://xyz.example.co.
	// If empty, the client runs offline-only.
	BackendURL string

	// AnonKey is the project's public API key.
	AnonKey string

	// AccessToken is a user JWT. When empty, the token stored by SignIn is used.
	AccessToken string

	// Profile selects the local data directory.
	// If empty, resolved as explicit > CHRONOQUEST_PROFILE env > "default".
	Profile string

	// LocalPath is the local SQLite database. Derived from Profile if empty.
	LocalPath string

	// Offline starts the client with connectivity reported as unavailable.
	Offline bool

	// Debug enables request/response tracing.
	Debug bool

	// DebugLogPath is where debug output goes. Defaults to stderr.
	DebugLogPath string

	// Logger receives library logs. When nil, a logger is derived from
	// Debug and DebugLogPath.
	Logger *slog.Logger

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time

	// Notifier receives events from background drains and level syncs.
	Notifier Notifier
}

// envConfig is the environment view of Config.
type envConfig struct {
	BackendURL   string `env:"CHRONOQUEST_URL"`
	AnonKey      string `env:"CHRONOQUEST_ANON_KEY"`
	AccessToken  string `env:"CHRONOQUEST_ACCESS_TOKEN"`
	Profile      string `env:"CHRONOQUEST_PROFILE"`
	LocalPath    string `env:"CHRONOQUEST_DB_PATH"`
	Offline      bool   `env:"CHRONOQUEST_OFFLINE"`
	Debug        bool   `env:"CHRONOQUEST_DEBUG"`
	DebugLogPath string `env:"CHRONOQUEST_DEBUG_LOG"`
}

// fileConfig is the YAML view of Config.
type fileConfig struct {
	BackendURL   string `yaml:"url"`
	AnonKey      string `yaml:"anon_key"`
	Profile      string `yaml:"profile"`
	LocalPath    string `yaml:"db_path"`
	Offline      bool   `yaml:"offline"`
	Debug        bool   `yaml:"debug"`
	DebugLogPath string `yaml:"debug_log"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Profile:   localstore.DefaultProfile,
		LocalPath: localstore.ProfileDBPath(localstore.DefaultProfile),
		Now:       time.Now,
	}
}

// ConfigFromEnv reads configuration from environment variables.
//
//	CHRONOQUEST_URL          → BackendURL
//	CHRONOQUEST_ANON_KEY     → AnonKey
//	CHRONOQUEST_ACCESS_TOKEN → AccessToken
//	CHRONOQUEST_PROFILE      → Profile
//	CHRONOQUEST_DB_PATH      → LocalPath
//	CHRONOQUEST_OFFLINE      → Offline (true/false)
//	CHRONOQUEST_DEBUG        → Debug (true/false)
//	CHRONOQUEST_DEBUG_LOG    → DebugLogPath
func ConfigFromEnv() (Config, error) {
	e, err := env.ParseAs[envConfig]()
	if err != nil {
		return Config{}, fmt.Errorf("config: parse environment: %w", err)
	}
	return Config{
		BackendURL:   e.BackendURL,
		AnonKey:      e.AnonKey,
		AccessToken:  e.AccessToken,
		Profile:      e.Profile,
		LocalPath:    e.LocalPath,
		Offline:      e.Offline,
		Debug:        e.Debug,
		DebugLogPath: e.DebugLogPath,
	}, nil
}

// LoadConfigFile reads a YAML config file. A missing file yields an empty
// Config and no error.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		path = localstore.DefaultConfigPath()
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return Config{
		BackendURL:   f.BackendURL,
		AnonKey:      f.AnonKey,
		Profile:      f.Profile,
		LocalPath:    f.LocalPath,
		Offline:      f.Offline,
		Debug:        f.Debug,
		DebugLogPath: f.DebugLogPath,
	}, nil
}

// LoadConfig layers the config file, the environment and explicit values,
// later layers winning.
func LoadConfig(path string, explicit Config) (Config, error) {
	file, err := LoadConfigFile(path)
	if err != nil {
		return Config{}, err
	}
	fromEnv, err := ConfigFromEnv()
	if err != nil {
		return Config{}, err
	}
	return file.Merge(fromEnv).Merge(explicit), nil
}

// Merge returns c with every set field of o applied on top.
func (c Config) Merge(o Config) Config {
	if o.BackendURL != "" {
		c.BackendURL = o.BackendURL
	}
	if o.AnonKey != "" {
		c.AnonKey = o.AnonKey
	}
	if o.AccessToken != "" {
		c.AccessToken = o.AccessToken
	}
	if o.Profile != "" {
		c.Profile = o.Profile
	}
	if o.LocalPath != "" {
		c.LocalPath = o.LocalPath
	}
	if o.DebugLogPath != "" {
		c.DebugLogPath = o.DebugLogPath
	}
	c.Offline = c.Offline || o.Offline
	c.Debug = c.Debug || o.Debug
	if o.Logger != nil {
		c.Logger = o.Logger
	}
	if o.Now != nil {
		c.Now = o.Now
	}
	if o.Notifier != nil {
		c.Notifier = o.Notifier
	}
	return c
}

// Validate checks the configuration for errors.
// Returns *ValidationError for invalid fields.
func (c *Config) Validate() error {
	if c.LocalPath == "" {
		return &ValidationError{Field: "LocalPath", Message: "required: path to SQLite database"}
	}

	if c.Profile != "" {
		if err := localstore.ValidateProfileID(c.Profile); err != nil {
			return &ValidationError{Field: "Profile", Message: err.Error()}
		}
	}

	if c.BackendURL != "" {
		u, err := url.Parse(c.BackendURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return &ValidationError{Field: "BackendURL", Message: "must be an absolute http(s) URL"}
		}
		if c.AnonKey == "" {
			return &ValidationError{Field: "AnonKey", Message: "required when BackendURL is set"}
		}
	}

	return nil
}

// IsOffline reports whether the client starts without connectivity:
// either Offline is set or no backend is configured.
func (c *Config) IsOffline() bool {
	return c.Offline || c.BackendURL == ""
}

// WithDefaults fills in default values for unset fields.
// LocalPath is derived from the resolved Profile if not explicitly set.
func (c Config) WithDefaults() Config {
	if c.Profile == "" {
		resolved, err := localstore.ResolveProfile("")
		if err == nil {
			c.Profile = resolved
		} else {
			c.Profile = localstore.DefaultProfile
		}
	}
	if c.LocalPath == "" {
		c.LocalPath = localstore.ProfileDBPath(c.Profile)
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}
