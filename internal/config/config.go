// Package config loads stemtrack settings.
//
// Sources, later ones winning:
//
//  1. settings.yaml in the settings home ($STEMTRACK_HOME, default ~/.stemtrack)
//  2. .env files in the working directory and the settings home
//  3. STEMTRACK_* environment variables
//
// The settings file is validated against an embedded CUE schema before
// any default is applied.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/stemtrack/internal/resolver"
)

//go:embed schema.cue
var schemaCUE string

// SettingsFile is the settings file name inside the home directory.
const SettingsFile = "settings.yaml"

// Environment variables read by Load.
const (
	EnvHome    = "STEMTRACK_HOME"
	EnvDB      = "STEMTRACK_DB"
	EnvUser    = "STEMTRACK_USER"
	EnvDevDir  = "STEMTRACK_DEV_DIR"
	EnvTesting = "STEMTRACK_TESTING"
)

// Consent modes.
const (
	ConsentAsk    = "ask"
	ConsentAlways = "always"
	ConsentNever  = "never"
)

// Settings mirrors settings.yaml.
type Settings struct {
	DB       string `yaml:"db" json:"db,omitempty"`
	User     string `yaml:"user" json:"user,omitempty"`
	Instance string `yaml:"instance" json:"instance,omitempty"`
	UIURL    string `yaml:"ui_url" json:"ui_url,omitempty"`
	DevDir   string `yaml:"dev_dir" json:"dev_dir,omitempty"`
	CacheDir string `yaml:"cache_dir" json:"cache_dir,omitempty"`
	Consent  string `yaml:"consent" json:"consent,omitempty"`
}

// Config is the effective configuration.
type Config struct {
	Settings
	// Home is the settings directory.
	Home string
	// Testing marks a test or CI context, where every consent prompt is
	// confirmed.
	Testing bool
}

// Load reads the configuration from home. An empty home uses
// $STEMTRACK_HOME or ~/.stemtrack. A missing settings file is not an error.
func Load(home string) (*Config, error) {
	// .env in the working directory first, as it is the most specific.
	_ = godotenv.Load()

	if home == "" {
		home = os.Getenv(EnvHome)
	}
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locate settings home: %w", err)
		}
		home = filepath.Join(userHome, ".stemtrack")
	}

	envFile := filepath.Join(home, ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := &Config{Home: home}
	data, err := os.ReadFile(filepath.Join(home, SettingsFile))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg.Settings); err != nil {
			return nil, fmt.Errorf("parse %s: %w", SettingsFile, err)
		}
		if err := Validate(cfg.Settings); err != nil {
			return nil, err
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read %s: %w", SettingsFile, err)
	}

	if v := os.Getenv(EnvDB); v != "" {
		cfg.DB = v
	}
	if v := os.Getenv(EnvUser); v != "" {
		cfg.User = v
	}
	if v := os.Getenv(EnvDevDir); v != "" {
		cfg.DevDir = v
	}
	if v := os.Getenv(EnvTesting); v != "" {
		testing, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvTesting, err)
		}
		cfg.Testing = testing
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DB == "" {
		c.DB = filepath.Join(c.Home, "stemtrack.db")
	}
	if c.CacheDir == "" {
		c.CacheDir = filepath.Join(c.Home, "cache")
	}
	if c.User == "" {
		c.User = os.Getenv("USER")
	}
	if c.User == "" {
		c.User = "anonymous"
	}
	if c.Consent == "" {
		c.Consent = ConsentAsk
	}
}

// Validate checks settings against the embedded schema.
func Validate(s Settings) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE).LookupPath(cue.ParsePath("#Settings"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("settings schema: %w", err)
	}
	value := schema.Unify(ctx.Encode(s))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid %s: %w", SettingsFile, err)
	}
	return nil
}

// Policy returns the consent policy for this configuration. Test and CI
// contexts always confirm. In ask mode, prompts go to ask; a nil ask
// (no terminal) falls back to Never.
func (c *Config) Policy(ask func(resolver.Prompt) bool) resolver.ConsentPolicy {
	switch {
	case c.Testing, c.Consent == ConsentAlways:
		return resolver.Always
	case c.Consent == ConsentNever, ask == nil:
		return resolver.Never
	default:
		return resolver.Ask(ask)
	}
}

// InstanceURL returns the canonical URL of a record, or "" without an
// instance or UI URL.
func (c *Config) InstanceURL(registry, u string) string {
	if c.Instance == "" || c.UIURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/%s/%s", trimSlash(c.UIURL), c.Instance, registry, u)
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
