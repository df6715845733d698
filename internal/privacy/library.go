package privacy

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/veilengine/veil/internal/cache"
	"github.com/veilengine/veil/internal/logger"
)

// Library resolves per-category pattern sets through the shared pattern
// cache and turns raw matches into categorized detections.
type Library struct {
	cache *cache.PatternCache

	// mu guards patterns and whitelist; both may grow at runtime while
	// detection is running.
	mu        sync.RWMutex
	patterns  map[Category][]Pattern
	whitelist map[string]struct{}

	logger *logger.Logger
}

// NewLibrary creates a detection library backed by the given pattern cache.
func NewLibrary(pc *cache.PatternCache, log *logger.Logger) *Library {
	l := &Library{
		cache:     pc,
		patterns:  DefaultPatterns(),
		whitelist: make(map[string]struct{}, len(defaultDomainTerms)),
		logger:    log,
	}
	for _, term := range defaultDomainTerms {
		l.whitelist[NormalizeTerm(term)] = struct{}{}
	}
	return l
}

// AddPatterns registers caller-supplied patterns under their categories.
func (l *Library) AddPatterns(patterns ...Pattern) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range patterns {
		if !p.Category.Valid() {
			p.Category = CategoryCustom
		}
		l.patterns[p.Category] = append(l.patterns[p.Category], p)
	}
}

// AddWhitelistTerms extends the domain-term whitelist at runtime.
func (l *Library) AddWhitelistTerms(terms ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, term := range terms {
		l.whitelist[NormalizeTerm(term)] = struct{}{}
	}
}

// IsDomainTerm reports whether text is whitelisted domain vocabulary after
// case and whitespace normalization.
func (l *Library) IsDomainTerm(text string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.whitelist[NormalizeTerm(text)]
	return ok
}

// WhitelistSize returns the number of whitelisted domain terms.
func (l *Library) WhitelistSize() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.whitelist)
}

// PatternsFor returns the flat pattern list for the given categories, in
// category-priority order. Empty input means all categories.
func (l *Library) PatternsFor(categories []Category) []Pattern {
	if len(categories) == 0 {
		categories = AllCategories()
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Pattern
	for _, c := range categories {
		out = append(out, l.patterns[c]...)
	}
	return out
}

// categoryPatterns snapshots one category's pattern slice under the read
// lock. AddPatterns appends rather than mutating in place, so the returned
// slice stays valid after the lock is released.
func (l *Library) categoryPatterns(c Category) []Pattern {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.patterns[c]
}

// CategoryOf looks up which category owns a pattern source. Used by the
// service to map generic streaming matches back to categorized detections.
func (l *Library) CategoryOf(source string) (Pattern, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, set := range l.patterns {
		for _, p := range set {
			if p.Source() == source {
				return p, true
			}
		}
	}
	return Pattern{}, false
}

// DetectionFromMatch converts a generic stream match back into a categorized
// detection by looking up which category owns the pattern source. The
// confidence is scored the same way the non-streaming path scores it.
func (l *Library) DetectionFromMatch(text, source string, start, end int) (Detection, bool) {
	p, ok := l.CategoryOf(source)
	if !ok {
		return Detection{}, false
	}
	confidence := clamp01(positionWeight(start, len(text)) * p.Confidence)
	return Detection{
		Category:   p.Category,
		Text:       text[start:end],
		Start:      start,
		End:        end,
		Pattern:    source,
		Confidence: confidence,
		Severity:   SeverityFor(p.Category, confidence),
	}, true
}

// Detect runs every enabled category's pattern set against text and returns
// the merged, position-sorted detections.
func (l *Library) Detect(text string, opts DetectOptions) *DetectionResult {
	start := time.Now()
	sensitivity := opts.sensitivity()
	threshold := sensitivity.Threshold()

	categories := opts.Categories
	if len(categories) == 0 {
		categories = AllCategories()
	}

	var detections []Detection
	patternCount := 0
	for _, category := range categories {
		patterns := l.categoryPatterns(category)
		if len(patterns) == 0 {
			continue
		}
		patternCount += len(patterns)

		var matches []Detection
		for _, p := range patterns {
			matcher, err := l.cache.Get(p.Source())
			if err != nil {
				// One bad pattern must not take down its category.
				l.logger.Warn("Pattern compile failed, skipping",
					zap.String("category", string(category)),
					zap.Error(err),
				)
				continue
			}

			for _, span := range matcher.FindAllStringIndex(text, -1) {
				matched := text[span[0]:span[1]]
				confidence := clamp01(positionWeight(span[0], len(text)) * p.Confidence)
				if confidence < threshold {
					continue
				}
				if opts.PreserveDomainTerms && l.IsDomainTerm(matched) {
					continue
				}
				matches = append(matches, Detection{
					Category:   category,
					Text:       matched,
					Start:      span[0],
					End:        span[1],
					Pattern:    p.Source(),
					Confidence: confidence,
					Severity:   SeverityFor(category, confidence),
				})
			}
		}

		detections = append(detections, mergeCategoryMatches(text, matches)...)
	}

	sort.Slice(detections, func(i, j int) bool {
		if detections[i].Start != detections[j].Start {
			return detections[i].Start < detections[j].Start
		}
		return detections[i].End < detections[j].End
	})

	return &DetectionResult{
		Text:                text,
		Detections:          detections,
		Categories:          categorySet(detections),
		Sensitivity:         sensitivity,
		PreserveDomainTerms: opts.PreserveDomainTerms,
		Metadata: DetectionMetrics{
			Duration:     time.Since(start),
			PatternCount: patternCount,
		},
	}
}

// mergeCategoryMatches de-duplicates overlapping matches within one
// category, keeping the highest-confidence detection and expanding its span
// to cover the overlap. Merged detections within a category never overlap.
func mergeCategoryMatches(text string, matches []Detection) []Detection {
	if len(matches) < 2 {
		return matches
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Start != matches[j].Start {
			return matches[i].Start < matches[j].Start
		}
		return matches[i].End < matches[j].End
	})

	merged := matches[:1]
	for _, m := range matches[1:] {
		last := &merged[len(merged)-1]
		if m.Start < last.End {
			if m.End > last.End {
				last.End = m.End
				last.Text = text[last.Start:last.End]
			}
			if m.Confidence > last.Confidence {
				last.Confidence = m.Confidence
				last.Pattern = m.Pattern
				last.Severity = m.Severity
			}
			continue
		}
		merged = append(merged, m)
	}
	return merged
}

// positionWeight discounts matches slightly the later they appear; matched
// values in headers and openings are more likely to be labeled PII.
func positionWeight(start, total int) float64 {
	if total <= 0 {
		return 1.0
	}
	w := 1.0 - 0.1*float64(start)/float64(total)
	if w < 0.9 {
		return 0.9
	}
	return w
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func categorySet(detections []Detection) []Category {
	seen := make(map[Category]struct{}, len(detections))
	var out []Category
	for _, d := range detections {
		if _, ok := seen[d.Category]; ok {
			continue
		}
		seen[d.Category] = struct{}{}
		out = append(out, d.Category)
	}
	return out
}
