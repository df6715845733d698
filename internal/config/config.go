package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/veilengine/veil/internal/privacy"
	"github.com/veilengine/veil/internal/redact"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Set defaults
	config := GetDefaults()

	// Configure viper
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/etc/veil/")
	viper.AddConfigPath("$HOME/.veil/")

	// Environment variable overrides
	viper.SetEnvPrefix("VEIL")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Use specific config file if provided
	if configPath != "" {
		viper.SetConfigFile(configPath)
	}

	// Read configuration
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal into config struct
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate checks the loaded configuration. Genuinely invalid configuration
// is the only thing that fails before any processing starts.
func Validate(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if s := privacy.Sensitivity(config.Privacy.Sensitivity); config.Privacy.Sensitivity != "" && !s.Valid() {
		return fmt.Errorf("invalid sensitivity: %s (must be low, medium, high, or strict)", config.Privacy.Sensitivity)
	}

	for name := range config.Privacy.Policies {
		if !privacy.Category(name).Valid() {
			return fmt.Errorf("policy for unknown category: %s", name)
		}
	}
	for _, name := range config.Privacy.EnabledCategories {
		if !privacy.Category(name).Valid() {
			return fmt.Errorf("unknown enabled category: %s", name)
		}
	}

	if config.Stream.ChunkSize > 0 && config.Stream.OverlapSize >= config.Stream.ChunkSize {
		return fmt.Errorf("overlap size %d must be smaller than chunk size %d",
			config.Stream.OverlapSize, config.Stream.ChunkSize)
	}
	if config.Stream.Workers < 0 {
		return fmt.Errorf("worker count must not be negative: %d", config.Stream.Workers)
	}

	if config.Monitor.CriticalMB > 0 && config.Monitor.WarningMB > config.Monitor.CriticalMB {
		return fmt.Errorf("warning threshold %.0fMB above critical threshold %.0fMB",
			config.Monitor.WarningMB, config.Monitor.CriticalMB)
	}

	if config.Logging.Level != "debug" && config.Logging.Level != "info" && config.Logging.Level != "warn" && config.Logging.Level != "error" {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	return nil
}

// BuildPolicy converts the file-form privacy section into a redaction
// policy, starting from the engine defaults and applying overrides.
func (c *Config) BuildPolicy() (*redact.Policy, error) {
	policy := redact.DefaultPolicy()

	if c.Privacy.Sensitivity != "" {
		policy.Sensitivity = privacy.Sensitivity(c.Privacy.Sensitivity)
	}

	for _, name := range c.Privacy.EnabledCategories {
		policy.EnabledCategories = append(policy.EnabledCategories, privacy.Category(name))
	}
	policy.WhitelistTerms = append(policy.WhitelistTerms, c.Privacy.WhitelistTerms...)

	for name, pc := range c.Privacy.Policies {
		category := privacy.Category(name)
		base := policy.For(category)
		if pc.Strategy != "" {
			base.Strategy = redact.Strategy(pc.Strategy)
		}
		if pc.ConfidenceThreshold > 0 {
			base.ConfidenceThreshold = pc.ConfidenceThreshold
		}
		if pc.MinimumSeverity != "" {
			base.MinimumSeverity = privacy.ParseSeverity(pc.MinimumSeverity)
		}
		base.PreserveDomainTerms = base.PreserveDomainTerms || pc.PreserveDomainTerms
		if err := policy.Set(category, base); err != nil {
			return nil, err
		}
	}

	if v := policy.Validate(); !v.IsValid {
		return nil, fmt.Errorf("invalid policy: %s", strings.Join(v.Errors, "; "))
	}

	return policy, nil
}

// Watch starts watching the configuration file for changes
func Watch(config *Config, callback func(*Config)) error {
	viper.WatchConfig()
	viper.OnConfigChange(func(e fsnotify.Event) {
		newConfig := GetDefaults()
		if err := viper.Unmarshal(newConfig); err != nil {
			// Log error but don't crash
			return
		}

		if err := Validate(newConfig); err != nil {
			// Log error but don't crash
			return
		}

		callback(newConfig)
	})

	return nil
}
