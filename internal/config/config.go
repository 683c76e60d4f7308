// Package config layers command-line flags, environment variables and an
// optional YAML config file into the settings of one catalog run.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/quarkusio/jbang-catalog/internal/maven"
)

// EnvPrefix prefixes every environment override, e.g. CATALOG_RETRIES.
const EnvPrefix = "CATALOG"

// Setting keys. Flags use the same names.
const (
	KeyWorkDir       = "working-directory"
	KeyRegistryURL   = "registry-url"
	KeyToken         = "token"
	KeyAll           = "all"
	KeyNoCommit      = "no-commit"
	KeyDryRun        = "dry-run"
	KeyVerbose       = "verbose"
	KeyNoColor       = "no-color"
	KeyConfig        = "config"
	KeyMavenSettings = "maven-settings"
	KeyRetries       = "retries"
	KeyTimeout       = "timeout"
	KeyRateLimit     = "rate-limit"
	KeyMetricsFile   = "metrics-file"
)

// Default values.
const (
	DefaultRetries = 2
)

// Settings are the effective settings of a run.
type Settings struct {
	WorkDir       string        `mapstructure:"working-directory"`
	RegistryURL   string        `mapstructure:"registry-url"`
	Token         string        `mapstructure:"token"`
	All           bool          `mapstructure:"all"`
	NoCommit      bool          `mapstructure:"no-commit"`
	DryRun        bool          `mapstructure:"dry-run"`
	Verbose       bool          `mapstructure:"verbose"`
	NoColor       bool          `mapstructure:"no-color"`
	MavenSettings string        `mapstructure:"maven-settings"`
	Retries       int           `mapstructure:"retries"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RateLimit     float64       `mapstructure:"rate-limit"`
	MetricsFile   string        `mapstructure:"metrics-file"`

	// ConfigFile is the config file that was read, if any.
	ConfigFile string `mapstructure:"-"`
}

// DefaultConfigDir returns the default configuration directory, respecting XDG_CONFIG_HOME.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "catalog")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "catalog")
	}

	return filepath.Join(home, ".config", "catalog")
}

// AddPersistentFlags registers the flags shared by every command.
func AddPersistentFlags(fs *pflag.FlagSet) {
	fs.BoolP(KeyVerbose, "v", false, "enable verbose output")
	fs.Bool(KeyNoColor, false, "disable colored output")
	fs.String(KeyConfig, "", "config file (default is $HOME/.config/catalog/config.yaml)")
	fs.String(KeyMavenSettings, maven.DefaultSettingsPath(), "Maven settings.xml holding repository credentials")
	fs.Int(KeyRetries, DefaultRetries, "retries for repository reads on transient failures")
	fs.Duration(KeyTimeout, 0, "per-request HTTP timeout (0 means no timeout)")
	fs.Float64(KeyRateLimit, 0, "maximum registry calls per second (0 means unlimited)")
	fs.String(KeyMetricsFile, "", "write run metrics in Prometheus text format to this file")
}

// Load builds the settings from flags, the environment and the config file,
// in that order of precedence. REGISTRY_URL and REGISTRY_TOKEN are honoured
// alongside their CATALOG_ forms. An explicitly named config file must exist;
// the default one is optional.
func Load(fs *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	v.SetDefault(KeyRetries, DefaultRetries)
	v.SetDefault(KeyMavenSettings, maven.DefaultSettingsPath())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv(KeyRegistryURL, EnvPrefix+"_REGISTRY_URL", "REGISTRY_URL"); err != nil {
		return nil, fmt.Errorf("binding %s: %w", KeyRegistryURL, err)
	}

	if err := v.BindEnv(KeyToken, EnvPrefix+"_TOKEN", "REGISTRY_TOKEN"); err != nil {
		return nil, fmt.Errorf("binding %s: %w", KeyToken, err)
	}

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("binding flags: %w", err)
		}
	}

	explicit := v.GetString(KeyConfig)
	if explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		v.SetConfigFile(filepath.Join(DefaultConfigDir(), "config.yaml"))
	}

	read := true

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit != "" || !(errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("reading config %s: %w", v.ConfigFileUsed(), err)
		}

		read = false
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}

	if read {
		s.ConfigFile = v.ConfigFileUsed()
	}

	if s.Retries < 0 {
		return nil, fmt.Errorf("%s must not be negative, got %d", KeyRetries, s.Retries)
	}

	if s.RateLimit < 0 {
		return nil, fmt.Errorf("%s must not be negative, got %g", KeyRateLimit, s.RateLimit)
	}

	return &s, nil
}

// RequireWorkDir fails when no working directory is configured.
func (s *Settings) RequireWorkDir() error {
	if s.WorkDir == "" {
		return fmt.Errorf("working directory is required (--%s)", KeyWorkDir)
	}

	return nil
}

// RequireRegistry fails when no registry URL is configured.
func (s *Settings) RequireRegistry() error {
	if s.RegistryURL == "" {
		return fmt.Errorf("registry URL is required (--%s or REGISTRY_URL)", KeyRegistryURL)
	}

	return nil
}
