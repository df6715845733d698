package cache

import (
	"fmt"
	"time"
)

// Config contains pattern cache configuration.
type Config struct {
	// MaxSize is the entry count the cache settles to after a cleanup pass.
	MaxSize int `yaml:"max_size" mapstructure:"max_size"`

	// CleanupThreshold is the entry count that triggers a cleanup pass.
	// Must be greater than MaxSize.
	CleanupThreshold int `yaml:"cleanup_threshold" mapstructure:"cleanup_threshold"`

	// MaxAge evicts entries not accessed for this long regardless of score.
	MaxAge time.Duration `yaml:"max_age" mapstructure:"max_age"`
}

// DefaultConfig returns the cache defaults.
func DefaultConfig() Config {
	return Config{
		MaxSize:          100,
		CleanupThreshold: 120,
		MaxAge:           time.Hour,
	}
}

// Stats is a point-in-time view of cache behavior.
type Stats struct {
	Count       int           `json:"count"`
	MaxSize     int           `json:"max_size"`
	TopAccessed []EntryStats  `json:"top_accessed"`
	HitRatio    float64       `json:"hit_ratio"`
	OldestEntry time.Duration `json:"oldest_entry"`
}

// EntryStats describes one cached pattern for observability.
type EntryStats struct {
	Pattern     string    `json:"pattern"`
	AccessCount int64     `json:"access_count"`
	LastAccess  time.Time `json:"last_access"`
}

// CompileError reports a pattern that failed to compile. The failing pattern
// is returned to the caller and never cached.
type CompileError struct {
	Pattern string
	Err     error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("pattern %q failed to compile: %v", e.Pattern, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }
