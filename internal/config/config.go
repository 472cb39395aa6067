// Package config loads the connection settings consumed by the directory
// client: a user-level configuration file falling back to a system-level
// one.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

const (
	userConfigRelPath = "admc/admc.yaml"
	systemConfigPath  = "/etc/admc/admc.yaml"
)

// Config holds directory connection settings.
type Config struct {
	// URI is a direct ldap:// or ldaps:// URL. When empty, Domain is used
	// for SRV discovery instead.
	URI    string `yaml:"uri,omitempty"`
	Domain string `yaml:"domain,omitempty"`

	BindIdentity string `yaml:"bind_identity,omitempty"`
	BindSecret   string `yaml:"bind_secret,omitempty"`
	SearchBase   string `yaml:"search_base"`

	Krb5Conf   string `yaml:"krb5_conf,omitempty" default:"/etc/krb5.conf"`
	Krb5CCache string `yaml:"krb5_ccache,omitempty"`

	TimeoutSeconds int  `yaml:"timeout_seconds,omitempty" default:"30"`
	UseTLS         bool `yaml:"use_tls,omitempty" default:"true"`
	MaxRetries     int  `yaml:"max_retries,omitempty" default:"3"`
}

// Timeout returns the dial and operation timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ConfigError distinguishes a missing file from incomplete contents.
type ConfigError struct {
	Path    string
	Missing bool // file could not be opened
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// IsMissing reports whether err means no configuration file could be
// opened.
func IsMissing(err error) bool {
	cfgErr, ok := err.(*ConfigError)
	return ok && cfgErr.Missing
}

// UserConfigPath returns the per-user configuration file location.
func UserConfigPath() string {
	if base := os.Getenv("XDG_CONFIG_HOME"); base != "" {
		return filepath.Join(base, userConfigRelPath)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", userConfigRelPath)
}

// Load reads the user-level configuration file, falling back to the
// system-level one when the user file does not exist.
func Load() (*Config, error) {
	return LoadFrom(UserConfigPath(), systemConfigPath)
}

// LoadFrom reads the first openable path from the given candidates.
func LoadFrom(paths ...string) (*Config, error) {
	var lastPath string
	for _, path := range paths {
		if path == "" {
			continue
		}
		lastPath = path

		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, &ConfigError{
				Path:    path,
				Missing: true,
				Message: fmt.Sprintf("could not open configuration file %s", path),
				Cause:   err,
			}
		}

		return Parse(data, path)
	}

	return nil, &ConfigError{
		Path:    lastPath,
		Missing: true,
		Message: "no configuration file found",
	}
}

// Parse decodes, defaults and validates a configuration document.
func Parse(data []byte, path string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, &ConfigError{Path: path, Message: "applying configuration defaults", Cause: err}
	}

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, &ConfigError{Path: path, Message: fmt.Sprintf("parsing configuration file %s", path), Cause: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the required parameters are present.
func (c *Config) Validate() error {
	if c.URI == "" && c.Domain == "" {
		return &ConfigError{Message: "missing configuration parameter: one of uri or domain is required"}
	}
	if c.SearchBase == "" {
		return &ConfigError{Message: "missing configuration parameter: search_base is required"}
	}
	return nil
}
