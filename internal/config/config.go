// Package config loads pdfjson settings from defaults, an optional config
// file, PDFJSON_ environment variables and command-line flags.
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

	"github.com/metcalfc/pdfjson/internal/client"
	"github.com/metcalfc/pdfjson/internal/upload"
)

// Config holds all application configuration.
type Config struct {
	BaseURL string        `mapstructure:"base_url"`
	Variant string        `mapstructure:"variant"`
	Timeout time.Duration `mapstructure:"timeout"`
	History bool          `mapstructure:"history"`
	LogFile string        `mapstructure:"log_file"`
	Print   bool          `mapstructure:"print"`
	Version bool          `mapstructure:"version"`

	// Args holds positional arguments left after flag parsing.
	Args []string `mapstructure:"-"`
}

// ErrHelp is returned when -h or --help was requested.
var ErrHelp = pflag.ErrHelp

// NewFlagSet returns the command-line flags for a front end.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringP("url", "u", client.DefaultBaseURL, "Base URL of the parsing service")
	fs.StringP("variant", "V", upload.DefaultVariant, "Panel variant ("+strings.Join(upload.Variants(), ", ")+")")
	fs.Duration("timeout", 0, "Request timeout, 0 waits forever")
	fs.Bool("history", true, "Remember recent uploads")
	fs.String("log-file", "", "Write debug log to this file")
	fs.BoolP("print", "p", false, "Upload the file argument and print the result without the UI")
	fs.String("config", "", "Config file (default $XDG_CONFIG_HOME/pdfjson/config.yaml)")
	fs.BoolP("version", "v", false, "Show version information")
	return fs
}

// Load parses args against fs and merges every configuration source.
func Load(fs *pflag.FlagSet, args []string) (*Config, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("PDFJSON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("base_url", client.DefaultBaseURL)
	v.SetDefault("variant", upload.DefaultVariant)
	v.SetDefault("timeout", "0s")
	v.SetDefault("history", true)
	v.SetDefault("log_file", "")
	v.SetDefault("print", false)
	v.SetDefault("version", false)

	flagKeys := map[string]string{
		"base_url": "url",
		"variant":  "variant",
		"timeout":  "timeout",
		"history":  "history",
		"log_file": "log-file",
		"print":    "print",
		"version":  "version",
	}
	for key, name := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, fmt.Errorf("binding flag %s: %w", name, err)
		}
	}

	configFile, _ := fs.GetString("config")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir())
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Args = fs.Args()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// PanelVariant resolves the configured variant.
func (c *Config) PanelVariant() (upload.Variant, error) {
	return upload.Lookup(c.Variant)
}

func (c *Config) validate() error {
	if c.BaseURL == "" {
		return errors.New("base url must not be empty")
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("base url %q must start with http:// or https://", c.BaseURL)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative: %s", c.Timeout)
	}
	if _, err := c.PanelVariant(); err != nil {
		return err
	}
	if c.Print && len(c.Args) == 0 {
		return errors.New("--print needs a file argument")
	}
	return nil
}

// configDir returns XDG_CONFIG_HOME/pdfjson or ~/.config/pdfjson
func configDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "pdfjson")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "pdfjson")
}
