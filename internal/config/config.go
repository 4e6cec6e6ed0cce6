// Package config loads the esl command configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lurimax-north/freeswitch-esl/esl"
)

// PasswordEnv overrides the configured password when set.
const PasswordEnv = "ESL_PASSWORD"

// Config is the YAML file layout shared by every esl subcommand.
type Config struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Password        string        `yaml:"password"`
	Events          []string      `yaml:"events"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	LogLevel        string        `yaml:"log_level"`
	Relay           RelayConfig   `yaml:"relay"`
	Metrics         MetricsConfig `yaml:"metrics"`
}

// RelayConfig holds the listen address and websocket path of "esl relay".
type RelayConfig struct {
	Listen string `yaml:"listen"`
	Path   string `yaml:"path"`
}

// MetricsConfig names the Prometheus namespace for session collectors.
type MetricsConfig struct {
	Namespace string `yaml:"namespace"`
}

func defaultConfig() *Config {
	return &Config{
		Host:            "127.0.0.1",
		Port:            esl.DefaultPort,
		RefreshInterval: esl.DefaultRefreshInterval,
		LogLevel:        "info",
		Relay: RelayConfig{
			Listen: ":8089",
			Path:   "/events",
		},
		Metrics: MetricsConfig{
			Namespace: "esl",
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults. PasswordEnv is applied last.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if pw, ok := os.LookupEnv(PasswordEnv); ok {
		cfg.Password = pw
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("host is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.RefreshInterval < 0 {
		return fmt.Errorf("refresh_interval %s is negative", c.RefreshInterval)
	}
	return nil
}
