package redact

import (
	"strings"
	"testing"

	"github.com/veilengine/veil/internal/logger"
	"github.com/veilengine/veil/internal/privacy"
)

type fakeDomains struct {
	terms map[string]bool
}

func (f *fakeDomains) IsDomainTerm(text string) bool {
	return f.terms[privacy.NormalizeTerm(text)]
}

func newTestEngine(terms ...string) *Engine {
	domains := &fakeDomains{terms: make(map[string]bool)}
	for _, term := range terms {
		domains.terms[privacy.NormalizeTerm(term)] = true
	}
	return NewEngine(domains, logger.Nop())
}

func detection(category privacy.Category, text string, start int, confidence float64) privacy.Detection {
	return privacy.Detection{
		Category:   category,
		Text:       text,
		Start:      start,
		End:        start + len(text),
		Confidence: confidence,
		Severity:   privacy.SeverityFor(category, confidence),
	}
}

// permissive lets every detection through so transform output can be tested
// in isolation from gating.
func permissive(category privacy.Category, strategy Strategy) *Policy {
	p := DefaultPolicy()
	p.Categories[category] = CategoryPolicy{
		Strategy:            strategy,
		ConfidenceThreshold: 0,
		MinimumSeverity:     privacy.SeverityLow,
	}
	return p
}

func TestStrategies(t *testing.T) {
	engine := newTestEngine()
	email := "user@example.com"

	cases := []struct {
		name     string
		strategy Strategy
		ctx      *Context
		want     string
	}{
		{"ReplaceUsesCategoryToken", StrategyReplace, nil, "[EMAIL]"},
		{"ReplaceHonorsCustomText", StrategyReplace, &Context{Replacement: "<redacted>"}, "<redacted>"},
		{"MaskCoversEveryRune", StrategyMask, nil, strings.Repeat("*", len(email))},
		{"MaskCustomChar", StrategyMask, &Context{MaskChar: '#'}, strings.Repeat("#", len(email))},
		{"PartialKeepsEdges", StrategyPartial, nil, "us************om"},
		{"PartialCustomWidths", StrategyPartial, &Context{PreserveStart: 4, PreserveEnd: 3}, "user*********com"},
		{"Tokenize", StrategyTokenize, nil, "[TOKEN_16CHARS]"},
		{"Remove", StrategyRemove, nil, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			text := "contact " + email + " please"
			result := engine.Apply(text, []privacy.Detection{detection(privacy.CategoryEmail, email, 8, 0.9)}, permissive(privacy.CategoryEmail, tc.strategy), tc.ctx)

			want := "contact " + tc.want + " please"
			if result.Redacted != want {
				t.Errorf("Redacted = %q, want %q", result.Redacted, want)
			}
			if len(result.Redactions) != 1 {
				t.Fatalf("Expected 1 redaction, got %d", len(result.Redactions))
			}
			if result.Redactions[0].Strategy != tc.strategy {
				t.Errorf("Recorded strategy = %s, want %s", result.Redactions[0].Strategy, tc.strategy)
			}
		})
	}
}

func TestHashStrategy(t *testing.T) {
	engine := newTestEngine()
	policy := permissive(privacy.CategorySSN, StrategyHash)

	apply := func(ssn string) string {
		result := engine.Apply(ssn, []privacy.Detection{detection(privacy.CategorySSN, ssn, 0, 0.95)}, policy, nil)
		return result.Redacted
	}

	first := apply("987-65-4320")
	if !strings.HasPrefix(first, "[HASH:") || !strings.HasSuffix(first, "]") {
		t.Errorf("Hash output = %q, want [HASH:...] form", first)
	}
	if strings.Contains(first, "987-65-4320") {
		t.Errorf("Hash output %q leaks the source value", first)
	}
	if again := apply("987-65-4320"); again != first {
		t.Error("Hash strategy is not deterministic")
	}
	if other := apply("123-45-6789"); other == first {
		t.Error("Distinct inputs produced identical fingerprints")
	}
}

func TestPartialMaskPhone(t *testing.T) {
	engine := newTestEngine()
	phone := "555-123-4567"

	result := engine.Apply(phone, []privacy.Detection{detection(privacy.CategoryPhone, phone, 0, 0.85)}, permissive(privacy.CategoryPhone, StrategyPartial), nil)
	if result.Redacted != "55********67" {
		t.Errorf("Partial mask = %q, want 55********67", result.Redacted)
	}
}

func TestFuzzyStrategy(t *testing.T) {
	engine := newTestEngine()
	email := "user@example.com"
	policy := permissive(privacy.CategoryEmail, StrategyFuzzy)

	t.Run("AlternatesByDefault", func(t *testing.T) {
		result := engine.Apply(email, []privacy.Detection{detection(privacy.CategoryEmail, email, 0, 0.9)}, policy, nil)
		if len(result.Redacted) != len(email) {
			t.Fatalf("Fuzzy output length %d, want %d", len(result.Redacted), len(email))
		}
		if result.Redacted == email {
			t.Error("Fuzzy mask left text unchanged")
		}
		if !strings.Contains(result.Redacted, "*") {
			t.Error("Fuzzy mask produced no mask characters")
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		ctx := &Context{Fuzziness: 0.7}
		first := engine.Apply(email, []privacy.Detection{detection(privacy.CategoryEmail, email, 0, 0.9)}, policy, ctx)
		second := engine.Apply(email, []privacy.Detection{detection(privacy.CategoryEmail, email, 0, 0.9)}, policy, ctx)
		if first.Redacted != second.Redacted {
			t.Error("Fuzzy mask with fuzziness set is not deterministic")
		}
	})
}

func TestShouldRedact(t *testing.T) {
	engine := newTestEngine("support@example.com")
	policy := DefaultPolicy()

	t.Run("BelowConfidenceThreshold", func(t *testing.T) {
		d := detection(privacy.CategoryEmail, "maybe@example.net", 0, 0.3)
		if engine.ShouldRedact(d, policy, nil) {
			t.Error("Detection below the category threshold should not redact")
		}
	})

	t.Run("BelowMinimumSeverity", func(t *testing.T) {
		d := detection(privacy.CategorySSN, "987-65-4320", 0, 0.95)
		d.Severity = privacy.SeverityLow
		if engine.ShouldRedact(d, policy, nil) {
			t.Error("Detection below the minimum severity should not redact")
		}
	})

	t.Run("PreservedDomainTerm", func(t *testing.T) {
		d := detection(privacy.CategoryEmail, "Support@Example.com", 0, 0.9)
		if engine.ShouldRedact(d, policy, nil) {
			t.Error("Whitelisted term should be preserved")
		}
	})

	t.Run("PolicyWhitelistTerm", func(t *testing.T) {
		wl := DefaultPolicy()
		wl.WhitelistTerms = []string{"Keep.Me@Corp.Example.Org"}
		d := detection(privacy.CategoryEmail, "keep.me@corp.example.org", 0, 0.9)
		if engine.ShouldRedact(d, wl, nil) {
			t.Error("Term whitelisted on the policy itself should be preserved")
		}
	})

	t.Run("EligibleDetectionRedacts", func(t *testing.T) {
		d := detection(privacy.CategorySSN, "987-65-4320", 0, 0.95)
		if !engine.ShouldRedact(d, policy, nil) {
			t.Error("High-confidence SSN should redact under the default policy")
		}
	})
}

func TestApply(t *testing.T) {
	engine := newTestEngine()

	t.Run("MultipleDetectionsSpliceCleanly", func(t *testing.T) {
		text := "ssn 987-65-4320 mail user@example.com end"
		detections := []privacy.Detection{
			detection(privacy.CategorySSN, "987-65-4320", 4, 0.95),
			detection(privacy.CategoryEmail, "user@example.com", 21, 0.9),
		}
		policy := DefaultPolicy()

		result := engine.Apply(text, detections, policy, &Context{Strategy: StrategyReplace})
		if result.Redacted != "ssn [SSN] mail [EMAIL] end" {
			t.Errorf("Redacted = %q", result.Redacted)
		}
		if len(result.Redactions) != 2 {
			t.Fatalf("Expected 2 redactions, got %d", len(result.Redactions))
		}
		if result.Redactions[0].Detection.Start > result.Redactions[1].Detection.Start {
			t.Error("Redactions not reported in text order")
		}
		if result.Stats.CharDelta != len(result.Redacted)-len(text) {
			t.Errorf("CharDelta = %d", result.Stats.CharDelta)
		}
		if result.Stats.ByCategory[privacy.CategorySSN] != 1 || result.Stats.ByCategory[privacy.CategoryEmail] != 1 {
			t.Error("Per-category counts wrong")
		}
	})

	t.Run("StaleSpanSkippedNotFatal", func(t *testing.T) {
		text := "mail user@example.com end"
		detections := []privacy.Detection{
			detection(privacy.CategoryEmail, "user@example.com", 5, 0.9),
			{Category: privacy.CategoryEmail, Text: "ghost@example.com", Start: 2, End: 19, Confidence: 0.9, Severity: privacy.SeverityMedium},
		}

		result := engine.Apply(text, detections, DefaultPolicy(), &Context{Strategy: StrategyReplace})
		if result.Stats.Skipped != 1 {
			t.Errorf("Skipped = %d, want 1", result.Stats.Skipped)
		}
		if result.Redacted != "mail [EMAIL] end" {
			t.Errorf("Redacted = %q", result.Redacted)
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		text := "mail user@example.com end"
		detections := []privacy.Detection{detection(privacy.CategoryEmail, "user@example.com", 5, 0.9)}
		policy := DefaultPolicy()
		ctx := &Context{Strategy: StrategyReplace}

		once := engine.Apply(text, detections, policy, ctx)
		twice := engine.Apply(once.Redacted, detections, policy, ctx)
		if twice.Redacted != once.Redacted {
			t.Error("Second pass changed already-redacted text")
		}
		if twice.Stats.Skipped != 1 {
			t.Errorf("Second pass Skipped = %d, want 1", twice.Stats.Skipped)
		}
	})

	t.Run("NoDetectionsLeavesTextAlone", func(t *testing.T) {
		result := engine.Apply("nothing sensitive", nil, DefaultPolicy(), nil)
		if result.Redacted != "nothing sensitive" || len(result.Redactions) != 0 {
			t.Error("Empty detection set should be a no-op")
		}
	})
}

func TestPolicyValidate(t *testing.T) {
	t.Run("DefaultPolicyIsValid", func(t *testing.T) {
		vr := DefaultPolicy().Validate()
		if !vr.IsValid {
			t.Errorf("Default policy invalid: %v", vr.Errors)
		}
	})

	t.Run("UnknownCategoryIsAnError", func(t *testing.T) {
		p := DefaultPolicy()
		p.Categories[privacy.Category("telepathy")] = CategoryPolicy{Strategy: StrategyReplace, ConfidenceThreshold: 0.5}

		vr := p.Validate()
		if vr.IsValid {
			t.Error("Unknown category should invalidate the policy")
		}
	})

	t.Run("BadThresholdIsAnError", func(t *testing.T) {
		p := DefaultPolicy()
		p.Categories[privacy.CategoryEmail] = CategoryPolicy{Strategy: StrategyReplace, ConfidenceThreshold: 1.5}

		vr := p.Validate()
		if vr.IsValid {
			t.Error("Out-of-range threshold should invalidate the policy")
		}
	})

	t.Run("InvalidStrategyIsAnError", func(t *testing.T) {
		p := DefaultPolicy()
		p.Categories[privacy.CategoryEmail] = CategoryPolicy{Strategy: Strategy("shred"), ConfidenceThreshold: 0.5}

		vr := p.Validate()
		if vr.IsValid {
			t.Error("Unknown strategy should invalidate the policy")
		}
	})

	t.Run("SetRejectsInvalidStrategy", func(t *testing.T) {
		p := DefaultPolicy()
		if err := p.Set(privacy.CategoryEmail, CategoryPolicy{Strategy: Strategy("shred"), ConfidenceThreshold: 0.5}); err == nil {
			t.Error("Set should reject an unknown strategy")
		}
	})
}
