// Package service orchestrates detection and redaction for the tool layer.
package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veilengine/veil/internal/logger"
	"github.com/veilengine/veil/internal/metrics"
	"github.com/veilengine/veil/internal/monitor"
	"github.com/veilengine/veil/internal/privacy"
	"github.com/veilengine/veil/internal/redact"
	"github.com/veilengine/veil/internal/stream"
)

// Service exposes detect and redact operations to the tool layer, wiring the
// detection library, stream processor, redaction engine and memory monitor
// together.
type Service struct {
	library   *privacy.Library
	engine    *redact.Engine
	processor *stream.Processor
	monitor   *monitor.Monitor
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

// New creates a redaction service. metrics may be nil.
func New(
	library *privacy.Library,
	engine *redact.Engine,
	processor *stream.Processor,
	mon *monitor.Monitor,
	m *metrics.Metrics,
	log *logger.Logger,
) *Service {
	return &Service{
		library:   library,
		engine:    engine,
		processor: processor,
		monitor:   mon,
		metrics:   m,
		logger:    log,
	}
}

// DetectPII finds PII in text under the given policy. Large inputs go
// through the stream processor; a streaming failure is logged and
// transparently retried on the single-pass path, never surfaced to the
// caller.
func (s *Service) DetectPII(ctx context.Context, text string, policy *redact.Policy, preserveDomainTerms bool) (*privacy.DetectionResult, error) {
	if policy == nil {
		policy = redact.DefaultPolicy()
	}

	opts := privacy.DetectOptions{
		Categories:          policy.Enabled(),
		Sensitivity:         policy.Sensitivity,
		PreserveDomainTerms: preserveDomainTerms,
	}

	if s.processor.UseStreaming(len(text)) {
		result, err := s.detectStreaming(ctx, text, opts)
		if err == nil {
			return s.filterWhitelisted(result, policy), nil
		}
		s.logger.Warn("Streaming detection failed, falling back to single pass",
			zap.Int("text_bytes", len(text)),
			zap.Error(err),
		)
		if s.metrics != nil {
			s.metrics.StreamingFallbacks.Inc()
		}
	}

	return s.filterWhitelisted(s.library.Detect(text, opts), policy), nil
}

// detectStreaming drives the stream processor with the flat pattern set and
// maps its generic matches back to categorized detections.
func (s *Service) detectStreaming(ctx context.Context, text string, opts privacy.DetectOptions) (*privacy.DetectionResult, error) {
	start := time.Now()

	patterns := s.library.PatternsFor(opts.Categories)
	specs := make([]stream.PatternSpec, len(patterns))
	for i, p := range patterns {
		specs[i] = stream.PatternSpec{Source: p.Source(), Confidence: p.Confidence}
	}

	matches, err := s.processor.FindMatches(ctx, text, specs)
	if err != nil {
		return nil, err
	}

	threshold := opts.Sensitivity.Threshold()
	detections := make([]privacy.Detection, 0, len(matches))
	for _, m := range matches {
		d, ok := s.library.DetectionFromMatch(text, m.Source, m.Start, m.End)
		if !ok {
			continue
		}
		if d.Confidence < threshold {
			continue
		}
		detections = append(detections, d)
	}

	sort.Slice(detections, func(i, j int) bool {
		if detections[i].Start != detections[j].Start {
			return detections[i].Start < detections[j].Start
		}
		return detections[i].End < detections[j].End
	})

	return &privacy.DetectionResult{
		Text:                text,
		Detections:          detections,
		Categories:          categorySet(detections),
		Sensitivity:         opts.Sensitivity,
		PreserveDomainTerms: opts.PreserveDomainTerms,
		Metadata: privacy.DetectionMetrics{
			Duration:     time.Since(start),
			PatternCount: len(patterns),
			Streaming:    true,
		},
	}, nil
}

// filterWhitelisted drops whitelisted terms after detection. Both the
// streaming and single-pass paths funnel through this filter. The library's
// built-in vocabulary applies only under domain-term preservation; terms the
// policy itself carries apply unconditionally.
func (s *Service) filterWhitelisted(result *privacy.DetectionResult, policy *redact.Policy) *privacy.DetectionResult {
	if !result.PreserveDomainTerms && len(policy.WhitelistTerms) == 0 {
		return result
	}
	kept := result.Detections[:0]
	for _, d := range result.Detections {
		if result.PreserveDomainTerms && s.library.IsDomainTerm(d.Text) {
			continue
		}
		if policy.IsWhitelisted(d.Text) {
			continue
		}
		kept = append(kept, d)
	}
	result.Detections = kept
	result.Categories = categorySet(kept)
	return result
}

// RedactPII detects and redacts PII in one pass, returning the transformed
// text with a full audit trail.
func (s *Service) RedactPII(ctx context.Context, text string, policy *redact.Policy, preserveDomainTerms bool, rctx *redact.Context) (*redact.Result, error) {
	start := time.Now()

	if policy == nil {
		policy = redact.DefaultPolicy()
	}

	// Advisory only: memory pressure never blocks a redaction call.
	if s.monitor != nil {
		if check := s.monitor.QuickCheck(); check.NeedsOptimization {
			s.logger.Debug("Memory pressure during redaction",
				zap.Float64("heap_mb", check.Snapshot.HeapAllocMB),
				zap.Strings("actions", check.Actions),
			)
		}
	}

	detected, err := s.DetectPII(ctx, text, policy, preserveDomainTerms)
	if err != nil {
		return nil, err
	}

	var result *redact.Result
	if detected.Metadata.Streaming {
		result = s.redactStreaming(text, detected.Detections, policy, rctx)
	} else {
		result = s.engine.Apply(text, detected.Detections, policy, rctx)
	}
	result.AuditID = auditID(rctx)

	if s.metrics != nil {
		for _, r := range result.Redactions {
			s.metrics.DetectionsTotal.WithLabelValues(string(r.Detection.Category)).Inc()
			s.metrics.RedactionsTotal.WithLabelValues(string(r.Strategy)).Inc()
		}
		s.metrics.ProcessingSeconds.Observe(time.Since(start).Seconds())
	}

	categories := make([]string, len(detected.Categories))
	for i, c := range detected.Categories {
		categories[i] = string(c)
	}
	s.logger.LogRedactionAudit(result.AuditID, len(detected.Detections), categories,
		float64(time.Since(start).Microseconds())/1000)

	return result, nil
}

// redactStreaming applies planned replacements chunk by chunk instead of
// splicing one working copy of the whole text. Only reached when detection
// already took the streaming path, so the input is known to be large.
func (s *Service) redactStreaming(text string, detections []privacy.Detection, policy *redact.Policy, rctx *redact.Context) *redact.Result {
	start := time.Now()

	redactions, replacements := s.engine.Plan(detections, policy, rctx)
	redacted := s.processor.ReplaceStream(text, replacements)

	result := &redact.Result{
		Original:   text,
		Redacted:   redacted,
		Redactions: redactions,
		Context:    rctx,
		Streaming:  true,
		Stats: redact.Stats{
			CharDelta:  len(redacted) - len(text),
			ByCategory: make(map[privacy.Category]int),
			ByStrategy: make(map[redact.Strategy]int),
		},
	}
	for _, r := range redactions {
		result.Stats.ByCategory[r.Detection.Category]++
		result.Stats.ByStrategy[r.Strategy]++
	}
	result.Stats.Duration = time.Since(start)
	return result
}

// auditID threads the caller's correlation ID through, minting one when the
// execution context carries none.
func auditID(rctx *redact.Context) string {
	if rctx != nil {
		if id, ok := rctx.Metadata["request_id"]; ok && id != "" {
			return id
		}
	}
	return uuid.NewString()
}

func categorySet(detections []privacy.Detection) []privacy.Category {
	seen := make(map[privacy.Category]struct{}, len(detections))
	var out []privacy.Category
	for _, d := range detections {
		if _, ok := seen[d.Category]; ok {
			continue
		}
		seen[d.Category] = struct{}{}
		out = append(out, d.Category)
	}
	return out
}
