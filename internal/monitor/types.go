package monitor

import "time"

// Config contains memory monitor configuration.
type Config struct {
	// Interval is how often the background loop samples memory.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`

	// WarningMB and CriticalMB are the process heap thresholds, in
	// megabytes, that trigger callback notifications.
	WarningMB  float64 `yaml:"warning_mb" mapstructure:"warning_mb"`
	CriticalMB float64 `yaml:"critical_mb" mapstructure:"critical_mb"`

	// HistorySize bounds the snapshot ring buffer.
	HistorySize int `yaml:"history_size" mapstructure:"history_size"`

	// AlertCooldown is the minimum spacing between callback notifications.
	AlertCooldown time.Duration `yaml:"alert_cooldown" mapstructure:"alert_cooldown"`
}

// DefaultConfig returns the monitor defaults.
func DefaultConfig() Config {
	return Config{
		Interval:      5 * time.Second,
		WarningMB:     512,
		CriticalMB:    1024,
		HistorySize:   100,
		AlertCooldown: time.Minute,
	}
}

// Snapshot is one point-in-time memory sample. On platforms without system
// memory introspection the system fields degrade to zero rather than error.
type Snapshot struct {
	Timestamp     time.Time `json:"timestamp"`
	UsedMB        float64   `json:"used_mb"`
	AvailableMB   float64   `json:"available_mb"`
	HeapAllocMB   float64   `json:"heap_alloc_mb"`
	ActiveObjects uint64    `json:"active_objects"`
	CacheEntries  int       `json:"cache_entries"`
}

// Level classifies a threshold breach.
type Level int

const (
	LevelNormal Level = iota
	LevelWarning
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	default:
		return "normal"
	}
}

// Event is delivered to registered callbacks on a threshold breach.
type Event struct {
	Level    Level    `json:"level"`
	Snapshot Snapshot `json:"snapshot"`
	Message  string   `json:"message"`
}

// Callback receives threshold events. Callbacks run asynchronously and must
// not block indefinitely.
type Callback func(Event)

// Trend classifies recent memory movement.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
	TrendUnknown    Trend = "unknown"
)

// Analysis summarizes recent memory behavior.
type Analysis struct {
	Trend           Trend    `json:"trend"`
	GrowthMBPerMin  float64  `json:"growth_mb_per_min"`
	CurrentHeapMB   float64  `json:"current_heap_mb"`
	Recommendations []string `json:"recommendations"`
}

// CheckResult is the outcome of an immediate quick check.
type CheckResult struct {
	Snapshot          Snapshot `json:"snapshot"`
	Actions           []string `json:"actions"`
	NeedsOptimization bool     `json:"needs_optimization"`
}
