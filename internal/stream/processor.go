package stream

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/veilengine/veil/internal/cache"
	"github.com/veilengine/veil/internal/logger"
)

// Processor chunks large text and runs pattern matching across a bounded
// worker pool. Compiled matchers come from the shared pattern cache; the
// processor itself holds no pattern state.
type Processor struct {
	cache  *cache.PatternCache
	config Config
	logger *logger.Logger
}

// NewProcessor creates a stream processor. Zero config fields fall back to
// defaults.
func NewProcessor(pc *cache.PatternCache, config Config, log *logger.Logger) *Processor {
	defaults := DefaultConfig()
	if config.ChunkSize <= 0 {
		config.ChunkSize = defaults.ChunkSize
	}
	if config.OverlapSize <= 0 {
		config.OverlapSize = defaults.OverlapSize
	}
	if config.OverlapSize >= config.ChunkSize {
		config.OverlapSize = config.ChunkSize / 4
	}
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.Threshold <= 0 {
		config.Threshold = defaults.Threshold
	}

	return &Processor{cache: pc, config: config, logger: log}
}

// UseStreaming reports whether an input of n bytes takes the chunked path.
func (p *Processor) UseStreaming(n int) bool {
	return n > p.config.Threshold
}

// Chunk splits text into nominal-size chunks, each extended by a trailing
// overlap into the next chunk's territory so boundary matches are not lost.
// Offset is the global byte offset of the chunk's content.
func (p *Processor) Chunk(text string) []TextChunk {
	size := p.config.ChunkSize
	overlap := p.config.OverlapSize

	var chunks []TextChunk
	for offset, index := 0, 0; offset < len(text); offset, index = offset+size, index+1 {
		nominalEnd := offset + size
		if nominalEnd > len(text) {
			nominalEnd = len(text)
		}
		contentEnd := nominalEnd + overlap
		if contentEnd > len(text) {
			contentEnd = len(text)
		}
		chunks = append(chunks, TextChunk{
			Index:   index,
			Content: text[offset:contentEnd],
			Offset:  offset,
			Size:    nominalEnd - offset,
			Overlap: contentEnd - nominalEnd,
		})
	}
	return chunks
}

// FindMatches runs the given pattern set against text. Inputs below the
// streaming threshold use a single pass; larger inputs are chunked across
// the worker pool. Matches come back sorted by absolute position regardless
// of worker completion order.
func (p *Processor) FindMatches(ctx context.Context, text string, specs []PatternSpec) ([]Match, error) {
	compiled, err := p.compile(specs)
	if err != nil {
		return nil, err
	}

	if !p.UseStreaming(len(text)) {
		matches := matchSlice(text, 0, compiled)
		sortMatches(matches)
		return matches, nil
	}

	return p.findChunked(ctx, text, compiled)
}

type compiledSpec struct {
	matcher    *regexp.Regexp
	source     string
	confidence float64
}

// compile resolves every spec through the shared cache. Individual compile
// failures are logged and skipped; only a fully uncompilable set is an error.
func (p *Processor) compile(specs []PatternSpec) ([]compiledSpec, error) {
	compiled := make([]compiledSpec, 0, len(specs))
	for _, spec := range specs {
		matcher, err := p.cache.Get(spec.Source)
		if err != nil {
			p.logger.Warn("Skipping uncompilable pattern in stream match",
				zap.String("pattern", spec.Source),
				zap.Error(err),
			)
			continue
		}
		compiled = append(compiled, compiledSpec{
			matcher:    matcher,
			source:     spec.Source,
			confidence: spec.Confidence,
		})
	}
	if len(compiled) == 0 && len(specs) > 0 {
		return nil, fmt.Errorf("no usable patterns: all %d failed to compile", len(specs))
	}
	return compiled, nil
}

type chunkResult struct {
	index   int
	matches []Match
}

// findChunked fans chunks out to a fixed-size worker pool. The jobs channel
// is unbuffered, so at most Workers chunks are in flight; the next chunk is
// only handed out once a worker frees up.
func (p *Processor) findChunked(ctx context.Context, text string, compiled []compiledSpec) ([]Match, error) {
	chunks := p.Chunk(text)

	workers := p.config.Workers
	if workers > len(chunks) {
		workers = len(chunks)
	}

	jobs := make(chan TextChunk)
	results := make(chan chunkResult, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for chunk := range jobs {
				select {
				case results <- chunkResult{index: chunk.Index, matches: matchSlice(chunk.Content, chunk.Offset, compiled)}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, chunk := range chunks {
			select {
			case jobs <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var matches []Match
	collected := 0
	for result := range results {
		matches = append(matches, result.matches...)
		collected++
	}

	if err := ctx.Err(); err != nil {
		return nil, &ProcessingError{Chunk: collected, Err: err}
	}
	if collected != len(chunks) {
		return nil, &ProcessingError{
			Chunk: collected,
			Err:   fmt.Errorf("collected %d of %d chunk results", collected, len(chunks)),
		}
	}

	sortMatches(matches)
	merged := mergeMatches(text, matches)

	p.logger.Debug("Chunked matching completed",
		zap.Int("chunks", len(chunks)),
		zap.Int("raw_matches", len(matches)),
		zap.Int("merged_matches", len(merged)),
	)

	return merged, nil
}

// matchSlice runs every compiled pattern against content, translating local
// positions to absolute ones via the chunk's global offset.
func matchSlice(content string, offset int, compiled []compiledSpec) []Match {
	var matches []Match
	for _, spec := range compiled {
		for _, span := range spec.matcher.FindAllStringIndex(content, -1) {
			matches = append(matches, Match{
				Source:     spec.source,
				Text:       content[span[0]:span[1]],
				Start:      offset + span[0],
				End:        offset + span[1],
				Confidence: spec.confidence,
			})
		}
	}
	return matches
}

func sortMatches(matches []Match) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Start != matches[j].Start {
			return matches[i].Start < matches[j].Start
		}
		return matches[i].End < matches[j].End
	})
}

// mergeMatches collapses matches whose spans overlap or touch into one match
// covering the union, keeping the higher confidence. This removes the
// duplicates and fragments that chunk seams produce.
func mergeMatches(text string, matches []Match) []Match {
	if len(matches) < 2 {
		return matches
	}

	merged := matches[:1]
	for _, m := range matches[1:] {
		last := &merged[len(merged)-1]
		if m.Start <= last.End {
			if m.End > last.End {
				last.End = m.End
				last.Text = text[last.Start:last.End]
			}
			if m.Confidence > last.Confidence {
				last.Confidence = m.Confidence
				last.Source = m.Source
			}
			continue
		}
		merged = append(merged, m)
	}
	return merged
}

// occurrence is one exact-text replacement site within a chunk's content.
type occurrence struct {
	pos int
	n   int
}

// ReplaceStream applies a map of exact text to replacement across large
// text, chunk by chunk. Within each chunk, replacements are spliced in
// reverse position order so earlier offsets stay valid; reconstruction takes
// each chunk's nominal region, carrying straddling replacements into the
// next chunk's skipped head.
func (p *Processor) ReplaceStream(text string, replacements map[string]string) string {
	if len(replacements) == 0 {
		return text
	}
	if !p.UseStreaming(len(text)) {
		return replaceAll(text, replacements)
	}

	targets := make([]string, 0, len(replacements))
	for target := range replacements {
		if target != "" {
			targets = append(targets, target)
		}
	}
	// Longer targets win at the same position.
	sort.Slice(targets, func(i, j int) bool { return len(targets[i]) > len(targets[j]) })

	var b strings.Builder
	b.Grow(len(text))

	carry := 0 // head bytes of the next chunk already consumed by a straddling replacement
	for _, chunk := range p.Chunk(text) {
		occs := findOccurrences(chunk.Content, targets)

		working := chunk.Content
		emitEnd := chunk.Size // in original chunk coordinates
		delta := 0
		for i := len(occs) - 1; i >= 0; i-- {
			o := occs[i]
			if o.pos < carry || o.pos >= chunk.Size {
				continue // owned by a neighboring chunk
			}
			if o.pos+o.n > emitEnd {
				emitEnd = o.pos + o.n
			}
			replacement := replacements[chunk.Content[o.pos:o.pos+o.n]]
			working = working[:o.pos] + replacement + working[o.pos+o.n:]
			delta += len(replacement) - o.n
		}

		b.WriteString(working[carry : emitEnd+delta])

		carry = emitEnd - chunk.Size
	}

	return b.String()
}

// replaceAll is the single-pass replacement used below the threshold.
func replaceAll(text string, replacements map[string]string) string {
	pairs := make([]string, 0, len(replacements)*2)
	targets := make([]string, 0, len(replacements))
	for target := range replacements {
		if target != "" {
			targets = append(targets, target)
		}
	}
	sort.Slice(targets, func(i, j int) bool { return len(targets[i]) > len(targets[j]) })
	for _, target := range targets {
		pairs = append(pairs, target, replacements[target])
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// findOccurrences locates every non-overlapping occurrence of the targets in
// content, earliest first. Targets are assumed pre-sorted longest first so
// the longest match wins at a shared position.
func findOccurrences(content string, targets []string) []occurrence {
	var occs []occurrence
	for _, target := range targets {
		from := 0
		for {
			i := strings.Index(content[from:], target)
			if i < 0 {
				break
			}
			occs = append(occs, occurrence{pos: from + i, n: len(target)})
			from += i + len(target)
		}
	}
	sort.Slice(occs, func(i, j int) bool {
		if occs[i].pos != occs[j].pos {
			return occs[i].pos < occs[j].pos
		}
		return occs[i].n > occs[j].n
	})

	// Drop occurrences that overlap an earlier one.
	kept := occs[:0]
	end := -1
	for _, o := range occs {
		if o.pos < end {
			continue
		}
		kept = append(kept, o)
		end = o.pos + o.n
	}
	return kept
}
