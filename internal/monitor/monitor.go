package monitor

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/veilengine/veil/internal/logger"
)

// trendWindow is how many recent snapshots Analyze compares.
const trendWindow = 5

// trendTolerance is the relative band within which usage counts as stable.
const trendTolerance = 0.10

// Monitor samples memory on a fixed interval into a bounded ring buffer and
// notifies registered callbacks when thresholds are breached. The history
// buffer is mutated only by the monitor's own loop or by synchronous quick
// checks routed through the same lock.
type Monitor struct {
	config Config
	logger *logger.Logger

	mu        sync.RWMutex
	history   []Snapshot
	callbacks []Callback
	lastAlert time.Time
	running   bool

	// sizer reports the pattern cache's entry count for the coarse
	// cache-size estimate; cleanup is the best-effort action taken above
	// the critical threshold.
	sizer   func() int
	cleanup func()

	done chan struct{}
}

// New creates a memory monitor. Zero config fields fall back to defaults.
func New(config Config, log *logger.Logger) *Monitor {
	defaults := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.WarningMB <= 0 {
		config.WarningMB = defaults.WarningMB
	}
	if config.CriticalMB <= config.WarningMB {
		config.CriticalMB = config.WarningMB * 2
	}
	if config.HistorySize <= 0 {
		config.HistorySize = defaults.HistorySize
	}
	if config.AlertCooldown <= 0 {
		config.AlertCooldown = defaults.AlertCooldown
	}

	return &Monitor{
		config: config,
		logger: log,
	}
}

// SetCacheSizer registers the function used for the cache-size estimate.
func (m *Monitor) SetCacheSizer(sizer func() int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sizer = sizer
}

// SetCleanup registers the best-effort cleanup action taken above the
// critical threshold.
func (m *Monitor) SetCleanup(cleanup func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanup = cleanup
}

// Subscribe registers a threshold callback.
func (m *Monitor) Subscribe(cb Callback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

// Start launches the background sampling loop. Starting a running monitor
// is a no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	m.logger.Info("Memory monitoring started",
		zap.Duration("interval", m.config.Interval),
		zap.Float64("warning_mb", m.config.WarningMB),
		zap.Float64("critical_mb", m.config.CriticalMB),
	)

	go func() {
		ticker := time.NewTicker(m.config.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				snapshot := m.sample()
				m.record(snapshot)
				m.checkThresholds(snapshot)
			case <-done:
				return
			}
		}
	}()
}

// Stop halts the background loop.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	close(m.done)
	m.logger.Info("Memory monitoring stopped")
}

// sample takes one memory snapshot. System memory introspection failures
// degrade to zero values rather than surfacing an error.
func (m *Monitor) sample() Snapshot {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	snapshot := Snapshot{
		Timestamp:     time.Now(),
		HeapAllocMB:   float64(ms.HeapAlloc) / (1 << 20),
		ActiveObjects: ms.HeapObjects,
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		snapshot.UsedMB = float64(vm.Used) / (1 << 20)
		snapshot.AvailableMB = float64(vm.Available) / (1 << 20)
	}

	m.mu.RLock()
	sizer := m.sizer
	m.mu.RUnlock()
	if sizer != nil {
		snapshot.CacheEntries = sizer()
	}

	return snapshot
}

// record appends a snapshot, dropping the oldest beyond the buffer bound.
func (m *Monitor) record(snapshot Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, snapshot)
	if len(m.history) > m.config.HistorySize {
		m.history = m.history[len(m.history)-m.config.HistorySize:]
	}
}

// checkThresholds notifies callbacks asynchronously on a breach, spaced by
// the alert cooldown.
func (m *Monitor) checkThresholds(snapshot Snapshot) {
	level := m.levelFor(snapshot)
	if level == LevelNormal {
		return
	}

	m.mu.Lock()
	if time.Since(m.lastAlert) < m.config.AlertCooldown {
		m.mu.Unlock()
		return
	}
	m.lastAlert = time.Now()
	callbacks := make([]Callback, len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mu.Unlock()

	event := Event{
		Level:    level,
		Snapshot: snapshot,
		Message:  fmt.Sprintf("heap at %.1fMB crossed %s threshold", snapshot.HeapAllocMB, level),
	}

	m.logger.Warn("Memory threshold breached",
		zap.String("level", level.String()),
		zap.Float64("heap_mb", snapshot.HeapAllocMB),
	)

	for _, cb := range callbacks {
		go cb(event)
	}
}

func (m *Monitor) levelFor(snapshot Snapshot) Level {
	switch {
	case snapshot.HeapAllocMB >= m.config.CriticalMB:
		return LevelCritical
	case snapshot.HeapAllocMB >= m.config.WarningMB:
		return LevelWarning
	default:
		return LevelNormal
	}
}

// Current samples and returns a snapshot without recording it.
func (m *Monitor) Current() Snapshot {
	return m.sample()
}

// History returns up to limit recent snapshots, newest last. A non-positive
// limit returns the whole buffer.
func (m *Monitor) History(limit int) []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > len(m.history) {
		limit = len(m.history)
	}
	out := make([]Snapshot, limit)
	copy(out, m.history[len(m.history)-limit:])
	return out
}

// QuickCheck samples immediately and reacts to the result: above critical it
// runs the best-effort cleanup action and reports it; above warning it only
// flags that optimization is needed.
func (m *Monitor) QuickCheck() CheckResult {
	snapshot := m.sample()
	m.record(snapshot)

	result := CheckResult{Snapshot: snapshot}

	switch m.levelFor(snapshot) {
	case LevelCritical:
		result.NeedsOptimization = true
		m.mu.RLock()
		cleanup := m.cleanup
		m.mu.RUnlock()
		if cleanup != nil {
			cleanup()
			result.Actions = append(result.Actions, "cache cleared")
		}
		debug.FreeOSMemory()
		result.Actions = append(result.Actions, "returned free memory to OS")
		m.logger.Warn("Critical memory pressure, cleanup triggered",
			zap.Float64("heap_mb", snapshot.HeapAllocMB))
	case LevelWarning:
		result.NeedsOptimization = true
	}

	return result
}

// Analyze computes the memory trend over the most recent snapshots and maps
// the current state to layered recommendations.
func (m *Monitor) Analyze() Analysis {
	m.mu.RLock()
	recent := m.history
	if len(recent) > trendWindow {
		recent = recent[len(recent)-trendWindow:]
	}
	window := make([]Snapshot, len(recent))
	copy(window, recent)
	m.mu.RUnlock()

	analysis := Analysis{Trend: TrendUnknown}
	if len(window) > 0 {
		analysis.CurrentHeapMB = window[len(window)-1].HeapAllocMB
	}

	if len(window) >= 2 {
		first, last := window[0], window[len(window)-1]
		delta := last.HeapAllocMB - first.HeapAllocMB

		switch {
		case first.HeapAllocMB > 0 && delta > first.HeapAllocMB*trendTolerance:
			analysis.Trend = TrendIncreasing
		case first.HeapAllocMB > 0 && delta < -first.HeapAllocMB*trendTolerance:
			analysis.Trend = TrendDecreasing
		default:
			analysis.Trend = TrendStable
		}

		if minutes := last.Timestamp.Sub(first.Timestamp).Minutes(); minutes > 0 {
			analysis.GrowthMBPerMin = delta / minutes
		}
	}

	analysis.Recommendations = m.recommend(analysis)
	return analysis
}

func (m *Monitor) recommend(analysis Analysis) []string {
	var recs []string

	switch {
	case analysis.CurrentHeapMB >= m.config.CriticalMB:
		recs = append(recs, "urgent cleanup: clear caches and release buffers now")
	case analysis.CurrentHeapMB >= m.config.WarningMB:
		recs = append(recs, "moderate cleanup: trim caches and review large allocations")
	}

	if analysis.Trend == TrendIncreasing {
		recs = append(recs, "investigate leaks: memory is trending upward")
	}
	if analysis.Trend == TrendStable && analysis.CurrentHeapMB < m.config.WarningMB {
		recs = append(recs, "consider caching more aggressively; headroom available")
	}
	if analysis.Trend == TrendUnknown {
		recs = append(recs, "start monitoring: not enough history for trend analysis")
	}

	return recs
}
