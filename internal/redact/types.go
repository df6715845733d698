package redact

import (
	"time"

	"github.com/veilengine/veil/internal/privacy"
)

// Strategy names one way to transform a detected span.
type Strategy string

const (
	StrategyReplace  Strategy = "replace"
	StrategyMask     Strategy = "mask"
	StrategyHash     Strategy = "hash"
	StrategyPartial  Strategy = "partial"
	StrategyTokenize Strategy = "tokenize"
	StrategyFuzzy    Strategy = "fuzzy"
	StrategyRemove   Strategy = "remove"
)

// Valid reports whether s names a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyReplace, StrategyMask, StrategyHash, StrategyPartial,
		StrategyTokenize, StrategyFuzzy, StrategyRemove:
		return true
	}
	return false
}

// AllStrategies returns every known strategy.
func AllStrategies() []Strategy {
	return []Strategy{
		StrategyReplace, StrategyMask, StrategyHash, StrategyPartial,
		StrategyTokenize, StrategyFuzzy, StrategyRemove,
	}
}

// Context carries per-call overrides for one redaction pass. All fields are
// optional; zero values defer to the category policy.
type Context struct {
	// Replacement overrides the category placeholder for the replace
	// strategy.
	Replacement string `json:"replacement,omitempty"`

	// MaskChar is the masking character; defaults to '*'.
	MaskChar rune `json:"mask_char,omitempty"`

	// PreserveStart and PreserveEnd are how many leading and trailing
	// characters the partial strategy keeps visible.
	PreserveStart int `json:"preserve_start,omitempty"`
	PreserveEnd   int `json:"preserve_end,omitempty"`

	// Fuzziness drives the fuzzy strategy: the fraction of characters to
	// mask, in (0, 1]. Zero alternates preserved and masked characters.
	Fuzziness float64 `json:"fuzziness,omitempty"`

	// Strategy, when set, overrides every category's configured strategy.
	Strategy Strategy `json:"strategy,omitempty"`

	// Metadata is opaque audit correlation data threaded through to the
	// result.
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (c *Context) maskChar() rune {
	if c != nil && c.MaskChar != 0 {
		return c.MaskChar
	}
	return '*'
}

// Redaction records a single applied transformation.
type Redaction struct {
	Detection privacy.Detection `json:"detection"`
	Redacted  string            `json:"redacted"`
	Strategy  Strategy          `json:"strategy"`
}

// Result is the outcome of one redaction pass over a text.
type Result struct {
	Original   string            `json:"-"`
	Redacted   string            `json:"redacted"`
	Redactions []Redaction       `json:"redactions"`
	Context    *Context          `json:"context,omitempty"`
	Streaming  bool              `json:"streaming,omitempty"`
	Stats      Stats             `json:"stats"`
	AuditID    string            `json:"audit_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Stats is derived bookkeeping for one redaction pass.
type Stats struct {
	CharDelta  int                      `json:"char_delta"`
	ByCategory map[privacy.Category]int `json:"by_category"`
	ByStrategy map[Strategy]int         `json:"by_strategy"`
	Skipped    int                      `json:"skipped"`
	Duration   time.Duration            `json:"duration"`
}

// ValidationResult reports problems found in a policy.
type ValidationResult struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}
