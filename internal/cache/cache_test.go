package cache

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/veilengine/veil/internal/logger"
)

func TestPatternCache(t *testing.T) {
	log := logger.Nop()

	t.Run("SecondGetIsCacheHit", func(t *testing.T) {
		c := New(DefaultConfig(), log)

		first, err := c.Get(`\d+`)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		second, err := c.Get(`\d+`)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if first != second {
			t.Error("Second Get recompiled instead of returning the cached matcher")
		}

		stats := c.Stats()
		if stats.Count != 1 {
			t.Errorf("Expected 1 entry, got %d", stats.Count)
		}
		if stats.HitRatio <= 0 {
			t.Errorf("Expected positive hit ratio, got %f", stats.HitRatio)
		}
	})

	t.Run("CompileFailureNotCached", func(t *testing.T) {
		c := New(DefaultConfig(), log)

		_, err := c.Get(`[unclosed`)
		if err == nil {
			t.Fatal("Expected compile error")
		}
		var compileErr *CompileError
		if !errors.As(err, &compileErr) {
			t.Errorf("Expected CompileError, got %T", err)
		}
		if c.Len() != 0 {
			t.Errorf("Bad pattern was cached, %d entries", c.Len())
		}

		// Failing again must re-surface the error, not a stale entry.
		if _, err := c.Get(`[unclosed`); err == nil {
			t.Error("Expected compile error on retry")
		}
	})

	t.Run("EvictionBound", func(t *testing.T) {
		c := New(Config{MaxSize: 10, CleanupThreshold: 15, MaxAge: time.Hour}, log)

		for i := 0; i < 30; i++ {
			if _, err := c.Get(fmt.Sprintf(`pattern%d`, i)); err != nil {
				t.Fatalf("Get failed: %v", err)
			}
		}
		if c.Len() > 10 {
			t.Errorf("Cache settled at %d entries, want <= 10", c.Len())
		}
	})

	t.Run("EvictionPrefersColdEntries", func(t *testing.T) {
		c := New(Config{MaxSize: 5, CleanupThreshold: 8, MaxAge: time.Hour}, log)

		// Keep one pattern hot.
		for i := 0; i < 20; i++ {
			if _, err := c.Get(`hot`); err != nil {
				t.Fatalf("Get failed: %v", err)
			}
		}
		for i := 0; i < 10; i++ {
			if _, err := c.Get(fmt.Sprintf(`cold%d`, i)); err != nil {
				t.Fatalf("Get failed: %v", err)
			}
		}

		c.mu.RLock()
		_, hotSurvives := c.entries[`hot`]
		c.mu.RUnlock()
		if !hotSurvives {
			t.Error("Frequently accessed entry was evicted before cold ones")
		}
	})

	t.Run("GetManySkipsBadPatterns", func(t *testing.T) {
		c := New(DefaultConfig(), log)

		matchers := c.GetMany([]string{`ok1`, `[bad`, `ok2`})
		if len(matchers) != 2 {
			t.Errorf("Expected 2 matchers, got %d", len(matchers))
		}
		if _, ok := matchers[`[bad`]; ok {
			t.Error("Bad pattern present in GetMany result")
		}
	})

	t.Run("PreloadWarmsCache", func(t *testing.T) {
		c := New(DefaultConfig(), log)

		c.Preload([]string{`a+`, `b+`, `c+`})
		if c.Len() != 3 {
			t.Errorf("Expected 3 entries after preload, got %d", c.Len())
		}
	})

	t.Run("ClearDropsEverything", func(t *testing.T) {
		c := New(DefaultConfig(), log)
		c.Preload([]string{`a+`, `b+`})
		c.Clear()
		if c.Len() != 0 {
			t.Errorf("Expected empty cache after Clear, got %d entries", c.Len())
		}
	})

	t.Run("MaxAgePurge", func(t *testing.T) {
		c := New(Config{MaxSize: 3, CleanupThreshold: 4, MaxAge: time.Millisecond}, log)

		c.Preload([]string{`a+`, `b+`, `c+`})
		time.Sleep(5 * time.Millisecond)

		// The insert that crosses the threshold purges the stale entries.
		if _, err := c.Get(`d+`); err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if c.Len() != 1 {
			t.Errorf("Expected only the fresh entry to survive, got %d", c.Len())
		}
	})
}
