package redact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/veilengine/veil/internal/logger"
	"github.com/veilengine/veil/internal/privacy"
)

// DomainChecker answers whether a piece of text is whitelisted domain
// vocabulary. Satisfied by *privacy.Library.
type DomainChecker interface {
	IsDomainTerm(text string) bool
}

// Engine applies policy-gated transformations to detected spans.
type Engine struct {
	domains DomainChecker
	logger  *logger.Logger
}

// NewEngine creates a redaction engine.
func NewEngine(domains DomainChecker, log *logger.Logger) *Engine {
	return &Engine{domains: domains, logger: log}
}

// ShouldRedact gates one detection against the policy: the detection must
// clear the category's confidence threshold and minimum severity, and must
// not be a preserved domain term or a policy whitelist term.
func (e *Engine) ShouldRedact(d privacy.Detection, policy *Policy, ctx *Context) bool {
	cp := policy.For(d.Category)

	if d.Confidence < cp.ConfidenceThreshold {
		return false
	}
	if d.Severity < cp.MinimumSeverity {
		return false
	}
	if policy.IsWhitelisted(d.Text) {
		return false
	}
	if cp.PreserveDomainTerms && e.domains != nil && e.domains.IsDomainTerm(d.Text) {
		return false
	}
	return true
}

// Apply transforms every eligible detection in text. Eligible detections are
// spliced right-to-left so earlier offsets stay valid while later splices
// happen first in text order. A detection whose span no longer matches the
// working copy is skipped with a warning rather than aborting the pass.
func (e *Engine) Apply(text string, detections []privacy.Detection, policy *Policy, ctx *Context) *Result {
	start := time.Now()

	eligible := make([]privacy.Detection, 0, len(detections))
	for _, d := range detections {
		if e.ShouldRedact(d, policy, ctx) {
			eligible = append(eligible, d)
		}
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].Start > eligible[j].Start })

	result := &Result{
		Original: text,
		Context:  ctx,
		Stats: Stats{
			ByCategory: make(map[privacy.Category]int),
			ByStrategy: make(map[Strategy]int),
		},
	}

	working := text
	for _, d := range eligible {
		if d.Start < 0 || d.End > len(working) || d.Start > d.End || working[d.Start:d.End] != d.Text {
			result.Stats.Skipped++
			e.logger.Warn("Skipping stale detection span",
				zap.String("category", string(d.Category)),
				zap.Int("start", d.Start),
				zap.Int("end", d.End),
			)
			continue
		}

		strategy := e.strategyFor(d, policy, ctx)
		redacted := e.transform(d, strategy, ctx)
		working = working[:d.Start] + redacted + working[d.End:]

		result.Redactions = append(result.Redactions, Redaction{
			Detection: d,
			Redacted:  redacted,
			Strategy:  strategy,
		})
		result.Stats.ByCategory[d.Category]++
		result.Stats.ByStrategy[strategy]++
	}

	// Redactions were recorded right-to-left; report them in text order.
	for i, j := 0, len(result.Redactions)-1; i < j; i, j = i+1, j-1 {
		result.Redactions[i], result.Redactions[j] = result.Redactions[j], result.Redactions[i]
	}

	result.Redacted = working
	result.Stats.CharDelta = len(working) - len(text)
	result.Stats.Duration = time.Since(start)
	return result
}

// Plan computes the replacement for every eligible detection without
// splicing, for callers that apply the substitutions through the stream
// processor. Redactions come back in detection order alongside the
// exact-text replacement map the processor consumes.
func (e *Engine) Plan(detections []privacy.Detection, policy *Policy, ctx *Context) ([]Redaction, map[string]string) {
	var redactions []Redaction
	replacements := make(map[string]string)

	for _, d := range detections {
		if !e.ShouldRedact(d, policy, ctx) {
			continue
		}
		strategy := e.strategyFor(d, policy, ctx)
		redacted := e.transform(d, strategy, ctx)
		replacements[d.Text] = redacted
		redactions = append(redactions, Redaction{
			Detection: d,
			Redacted:  redacted,
			Strategy:  strategy,
		})
	}
	return redactions, replacements
}

func (e *Engine) strategyFor(d privacy.Detection, policy *Policy, ctx *Context) Strategy {
	if ctx != nil && ctx.Strategy.Valid() {
		return ctx.Strategy
	}
	return policy.For(d.Category).Strategy
}

// transform produces the replacement text for one detection. The switch is
// exhaustive over Strategy; unknown values fall back to the category token.
func (e *Engine) transform(d privacy.Detection, strategy Strategy, ctx *Context) string {
	switch strategy {
	case StrategyReplace:
		if ctx != nil && ctx.Replacement != "" {
			return ctx.Replacement
		}
		return d.Category.Token()

	case StrategyMask:
		return strings.Repeat(string(ctx.maskChar()), len([]rune(d.Text)))

	case StrategyHash:
		return fingerprint(d.Text)

	case StrategyPartial:
		return partialMask(d.Text, ctx)

	case StrategyTokenize:
		return fmt.Sprintf("[TOKEN_%dCHARS]", len([]rune(d.Text)))

	case StrategyFuzzy:
		return fuzzyMask(d.Text, ctx)

	case StrategyRemove:
		return ""

	default:
		return d.Category.Token()
	}
}

// fingerprint is the hash strategy's output: a short deterministic digest
// that never resembles the source pattern.
func fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "[HASH:" + hex.EncodeToString(sum[:])[:12] + "]"
}

// partialMask preserves the configured number of leading and trailing
// characters and masks the middle. Text too short to preserve both ends is
// fully masked instead.
func partialMask(text string, ctx *Context) string {
	head, tail := 2, 2
	if ctx != nil && ctx.PreserveStart > 0 {
		head = ctx.PreserveStart
	}
	if ctx != nil && ctx.PreserveEnd > 0 {
		tail = ctx.PreserveEnd
	}

	runes := []rune(text)
	mask := ctx.maskChar()
	if len(runes) <= head+tail {
		return strings.Repeat(string(mask), len(runes))
	}

	var b strings.Builder
	b.WriteString(string(runes[:head]))
	b.WriteString(strings.Repeat(string(mask), len(runes)-head-tail))
	b.WriteString(string(runes[len(runes)-tail:]))
	return b.String()
}

// fuzzyMask alternates preserved and masked characters, or masks a
// deterministic fraction of positions when a fuzziness level is set.
func fuzzyMask(text string, ctx *Context) string {
	runes := []rune(text)
	mask := ctx.maskChar()

	fuzziness := 0.0
	if ctx != nil {
		fuzziness = ctx.Fuzziness
	}

	var b strings.Builder
	for i, r := range runes {
		masked := i%2 == 1
		if fuzziness > 0 {
			h := fnv.New32a()
			fmt.Fprintf(h, "%s:%d", text, i)
			masked = float64(h.Sum32()%100)/100.0 < fuzziness
		}
		if masked {
			b.WriteRune(mask)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
