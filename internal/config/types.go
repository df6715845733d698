package config

import (
	"time"

	"github.com/veilengine/veil/internal/cache"
	"github.com/veilengine/veil/internal/monitor"
	"github.com/veilengine/veil/internal/stream"
)

// Config represents the main configuration structure
type Config struct {
	Server  ServerConfig   `yaml:"server" mapstructure:"server"`
	Privacy PrivacyConfig  `yaml:"privacy" mapstructure:"privacy"`
	Cache   cache.Config   `yaml:"cache" mapstructure:"cache"`
	Stream  stream.Config  `yaml:"stream" mapstructure:"stream"`
	Monitor monitor.Config `yaml:"monitor" mapstructure:"monitor"`
	Logging LoggingConfig  `yaml:"logging" mapstructure:"logging"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port           int           `yaml:"port" mapstructure:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	RequestsPerSec float64       `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	Burst          int           `yaml:"burst" mapstructure:"burst"`
}

// PrivacyConfig contains detection and redaction configuration
type PrivacyConfig struct {
	Sensitivity         string                  `yaml:"sensitivity" mapstructure:"sensitivity"`
	PreserveDomainTerms bool                    `yaml:"preserve_domain_terms" mapstructure:"preserve_domain_terms"`
	EnabledCategories   []string                `yaml:"enabled_categories" mapstructure:"enabled_categories"`
	WhitelistTerms      []string                `yaml:"whitelist_terms" mapstructure:"whitelist_terms"`
	Policies            map[string]PolicyConfig `yaml:"policies" mapstructure:"policies"`
}

// PolicyConfig is the file form of one category's redaction policy
type PolicyConfig struct {
	Strategy            string  `yaml:"strategy" mapstructure:"strategy"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
	MinimumSeverity     string  `yaml:"minimum_severity" mapstructure:"minimum_severity"`
	PreserveDomainTerms bool    `yaml:"preserve_domain_terms" mapstructure:"preserve_domain_terms"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Path    string `yaml:"path" mapstructure:"path"`
	} `yaml:"file" mapstructure:"file"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    60 * time.Second,
			RequestsPerSec: 50,
			Burst:          100,
		},
		Privacy: PrivacyConfig{
			Sensitivity:         "medium",
			PreserveDomainTerms: true,
		},
		Cache:   cache.DefaultConfig(),
		Stream:  stream.DefaultConfig(),
		Monitor: monitor.DefaultConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
