package privacy

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/veilengine/veil/internal/cache"
	"github.com/veilengine/veil/internal/logger"
)

func newTestLibrary(t *testing.T) *Library {
	t.Helper()
	log := logger.Nop()
	return NewLibrary(cache.New(cache.DefaultConfig(), log), log)
}

func TestDetect(t *testing.T) {
	t.Run("EmailAndPhone", func(t *testing.T) {
		lib := newTestLibrary(t)
		text := "Contact me at dana.reyes@corp.example.org or 555-123-4567"

		result := lib.Detect(text, DetectOptions{Sensitivity: SensitivityMedium})

		var gotEmail, gotPhone bool
		for _, d := range result.Detections {
			switch d.Category {
			case CategoryEmail:
				gotEmail = true
				if d.Text != "dana.reyes@corp.example.org" {
					t.Errorf("Email match = %q", d.Text)
				}
			case CategoryPhone:
				gotPhone = true
				if d.Text != "555-123-4567" {
					t.Errorf("Phone match = %q", d.Text)
				}
			}
		}
		if !gotEmail || !gotPhone {
			t.Errorf("Expected email and phone detections, got %v", result.Categories)
		}
	})

	t.Run("SpansAndConfidenceInBounds", func(t *testing.T) {
		lib := newTestLibrary(t)
		text := "SSN 987-65-4320, card 4532 9821 0045 7733, write ops@mail.example.net, dob: 03/14/1982"

		result := lib.Detect(text, DetectOptions{Sensitivity: SensitivityHigh})
		if len(result.Detections) == 0 {
			t.Fatal("Expected detections")
		}
		for _, d := range result.Detections {
			if d.Start < 0 || d.End > len(text) || d.Start > d.End {
				t.Errorf("Span [%d,%d) out of bounds for %q", d.Start, d.End, d.Category)
			}
			if d.Confidence < 0 || d.Confidence > 1 {
				t.Errorf("Confidence %f outside [0,1]", d.Confidence)
			}
			if text[d.Start:d.End] != d.Text {
				t.Errorf("Span text mismatch: %q vs %q", text[d.Start:d.End], d.Text)
			}
		}
	})

	t.Run("HighRiskSeverity", func(t *testing.T) {
		lib := newTestLibrary(t)
		result := lib.Detect("SSN: 987-65-4320", DetectOptions{Sensitivity: SensitivityMedium})

		found := false
		for _, d := range result.Detections {
			if d.Category == CategorySSN {
				found = true
				if d.Severity != SeverityCritical {
					t.Errorf("High-confidence SSN severity = %s, want critical", d.Severity)
				}
			}
		}
		if !found {
			t.Fatal("SSN not detected")
		}
	})

	t.Run("DomainTermPreserved", func(t *testing.T) {
		lib := newTestLibrary(t)
		text := "See the sample account jane.doe@example.com in the docs"

		preserved := lib.Detect(text, DetectOptions{Sensitivity: SensitivityMedium, PreserveDomainTerms: true})
		for _, d := range preserved.Detections {
			if d.Category == CategoryEmail {
				t.Errorf("Whitelisted placeholder detected: %q", d.Text)
			}
		}

		raw := lib.Detect(text, DetectOptions{Sensitivity: SensitivityMedium})
		found := false
		for _, d := range raw.Detections {
			if d.Category == CategoryEmail {
				found = true
			}
		}
		if !found {
			t.Error("Placeholder should be detected when preservation is off")
		}
	})

	t.Run("SensitivityControlsThreshold", func(t *testing.T) {
		lib := newTestLibrary(t)
		text := "ZIP 90210 area"

		medium := lib.Detect(text, DetectOptions{
			Categories:  []Category{CategoryAddress},
			Sensitivity: SensitivityMedium,
		})
		if len(medium.Detections) == 0 {
			t.Error("Medium sensitivity should catch the ZIP code")
		}

		low := lib.Detect(text, DetectOptions{
			Categories:  []Category{CategoryAddress},
			Sensitivity: SensitivityLow,
		})
		if len(low.Detections) != 0 {
			t.Error("Low sensitivity should drop the weak ZIP match")
		}
	})

	t.Run("OverlappingMatchesMerged", func(t *testing.T) {
		lib := newTestLibrary(t)
		// Both phone patterns match this number; the detections must merge.
		result := lib.Detect("call +1 555-123-4567 now", DetectOptions{
			Categories:  []Category{CategoryPhone},
			Sensitivity: SensitivityHigh,
		})

		if len(result.Detections) != 1 {
			t.Fatalf("Expected 1 merged phone detection, got %d", len(result.Detections))
		}
		for i := 1; i < len(result.Detections); i++ {
			if result.Detections[i].Start < result.Detections[i-1].End {
				t.Error("Merged detections overlap")
			}
		}
	})

	t.Run("ResultsSortedByPosition", func(t *testing.T) {
		lib := newTestLibrary(t)
		result := lib.Detect("a@b.example.com then 555-123-4567 then c@d.example.net",
			DetectOptions{Sensitivity: SensitivityMedium})

		for i := 1; i < len(result.Detections); i++ {
			if result.Detections[i].Start < result.Detections[i-1].Start {
				t.Error("Detections not sorted by position")
			}
		}
	})
}

func TestIsDomainTerm(t *testing.T) {
	lib := newTestLibrary(t)

	cases := []struct {
		term string
		want bool
	}{
		{"iso 27001", true},
		{"ISO  27001", true}, // case and whitespace normalized
		{"jane.doe@example.com", true},
		{"dana.reyes@corp.example.org", false},
	}
	for _, tc := range cases {
		if got := lib.IsDomainTerm(tc.term); got != tc.want {
			t.Errorf("IsDomainTerm(%q) = %v, want %v", tc.term, got, tc.want)
		}
	}

	lib.AddWhitelistTerms("ticket 42")
	if !lib.IsDomainTerm("Ticket  42") {
		t.Error("Runtime whitelist addition ignored")
	}
}

func TestDetectionFromMatch(t *testing.T) {
	lib := newTestLibrary(t)

	source := DefaultPatterns()[CategoryEmail][0].Source()
	text := "x@y.example.org"

	d, ok := lib.DetectionFromMatch(text, source, 0, len(text))
	if !ok {
		t.Fatal("Known pattern source not resolved")
	}
	if d.Category != CategoryEmail {
		t.Errorf("Category = %s, want email", d.Category)
	}
	if d.Confidence <= 0 || d.Confidence > 1 {
		t.Errorf("Confidence %f outside (0,1]", d.Confidence)
	}

	if _, ok := lib.DetectionFromMatch(text, "nonexistent", 0, 1); ok {
		t.Error("Unknown pattern source resolved")
	}
}

func TestSeverityFor(t *testing.T) {
	if got := SeverityFor(CategoryCreditCard, 0.9); got != SeverityCritical {
		t.Errorf("High-risk at 0.9 = %s, want critical", got)
	}
	if got := SeverityFor(CategoryEmail, 0.9); got != SeverityHigh {
		t.Errorf("Email at 0.9 = %s, want high", got)
	}
	if got := SeverityFor(CategoryEmail, 0.7); got != SeverityMedium {
		t.Errorf("Email at 0.7 = %s, want medium", got)
	}
	if got := SeverityFor(CategoryEmail, 0.5); got != SeverityLow {
		t.Errorf("Email at 0.5 = %s, want low", got)
	}
}

func TestSensitivityThresholdsMonotonic(t *testing.T) {
	order := []Sensitivity{SensitivityLow, SensitivityMedium, SensitivityHigh, SensitivityStrict}
	for i := 1; i < len(order); i++ {
		if order[i].Threshold() >= order[i-1].Threshold() {
			t.Errorf("%s threshold %.2f not below %s threshold %.2f",
				order[i], order[i].Threshold(), order[i-1], order[i-1].Threshold())
		}
	}
}

func TestNormalizeTerm(t *testing.T) {
	if got := NormalizeTerm("  Foo\t Bar  "); got != "foo bar" {
		t.Errorf("NormalizeTerm = %q", got)
	}
	if !strings.Contains(NormalizeTerm("ISO 27001"), "iso") {
		t.Error("NormalizeTerm did not lowercase")
	}
}

func TestConcurrentPatternRegistration(t *testing.T) {
	lib := newTestLibrary(t)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			lib.AddPatterns(Pattern{
				Expr:       fmt.Sprintf(`\bbadge%d\b`, i),
				Category:   CategoryCustom,
				Confidence: 0.9,
			})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			lib.Detect("badge7 issued to ops.team@corp.example.net", DetectOptions{})
		}
	}()
	wg.Wait()

	result := lib.Detect("badge49", DetectOptions{Categories: []Category{CategoryCustom}})
	if len(result.Detections) != 1 {
		t.Fatalf("Expected the late-registered pattern to match, got %d detections", len(result.Detections))
	}
	if result.Detections[0].Text != "badge49" {
		t.Errorf("Match = %q, want badge49", result.Detections[0].Text)
	}
}
