package server

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/veilengine/veil/internal/privacy"
	"github.com/veilengine/veil/internal/redact"
	"github.com/veilengine/veil/internal/websocket"
)

// maxRequestBytes bounds request bodies; chunking handles large texts, not
// unbounded ones.
const maxRequestBytes = 16 << 20

type detectRequest struct {
	Text                string   `json:"text"`
	Sensitivity         string   `json:"sensitivity,omitempty"`
	Categories          []string `json:"categories,omitempty"`
	PreserveDomainTerms *bool    `json:"preserve_domain_terms,omitempty"`
}

type redactRequest struct {
	detectRequest
	Strategy      string  `json:"strategy,omitempty"`
	Replacement   string  `json:"replacement,omitempty"`
	MaskChar      string  `json:"mask_char,omitempty"`
	PreserveStart int     `json:"preserve_start,omitempty"`
	PreserveEnd   int     `json:"preserve_end,omitempty"`
	Fuzziness     float64 `json:"fuzziness,omitempty"`
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if !s.decode(w, r, &req) {
		return
	}

	policy, preserve := s.policyFor(req)
	result, err := s.service.DetectPII(r.Context(), req.Text, policy, preserve)
	if err != nil {
		s.logger.Error("Detection failed", zap.Error(err))
		http.Error(w, "detection failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRedact(w http.ResponseWriter, r *http.Request) {
	var req redactRequest
	if !s.decode(w, r, &req) {
		return
	}

	rctx := &redact.Context{
		Replacement:   req.Replacement,
		PreserveStart: req.PreserveStart,
		PreserveEnd:   req.PreserveEnd,
		Fuzziness:     req.Fuzziness,
		Strategy:      redact.Strategy(req.Strategy),
		Metadata:      map[string]string{"request_id": w.Header().Get("X-Request-ID")},
	}
	if req.MaskChar != "" {
		rctx.MaskChar = []rune(req.MaskChar)[0]
	}

	policy, preserve := s.policyFor(req.detectRequest)
	result, err := s.service.RedactPII(r.Context(), req.Text, policy, preserve, rctx)
	if err != nil {
		s.logger.Error("Redaction failed", zap.Error(err))
		http.Error(w, "redaction failed", http.StatusInternalServerError)
		return
	}

	categories := make(map[string]struct{})
	for _, red := range result.Redactions {
		categories[string(red.Detection.Category)] = struct{}{}
	}
	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	s.hub.Broadcast(websocket.EventTypeRedaction, websocket.RedactionEvent{
		AuditID:      result.AuditID,
		Detections:   len(result.Redactions) + result.Stats.Skipped,
		Redactions:   len(result.Redactions),
		Categories:   names,
		Streaming:    result.Streaming,
		ProcessingMS: float64(result.Stats.Duration.Microseconds()) / 1000,
	})

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cache":     s.cache.Stats(),
		"memory":    s.monitor.Analyze(),
		"websocket": s.hub.Stats(),
	})
}

// policyFor builds the effective policy for one request by overlaying
// request fields on the configured default.
func (s *Server) policyFor(req detectRequest) (*redact.Policy, bool) {
	policy := *s.policy.Load()

	if req.Sensitivity != "" {
		policy.Sensitivity = privacy.Sensitivity(req.Sensitivity)
	}
	if len(req.Categories) > 0 {
		policy.EnabledCategories = nil
		for _, name := range req.Categories {
			policy.EnabledCategories = append(policy.EnabledCategories, privacy.Category(name))
		}
	}

	preserve := s.config.Privacy.PreserveDomainTerms
	if req.PreserveDomainTerms != nil {
		preserve = *req.PreserveDomainTerms
	}

	return &policy, preserve
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
