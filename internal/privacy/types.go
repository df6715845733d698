package privacy

import "time"

// Detection is a single flagged pattern match. Start and End are byte
// offsets into the original text the detection was produced from.
type Detection struct {
	Category   Category          `json:"category"`
	Text       string            `json:"-"` // never serialize matched text
	Start      int               `json:"start"`
	End        int               `json:"end"`
	Pattern    string            `json:"pattern"`
	Confidence float64           `json:"confidence"`
	Severity   Severity          `json:"severity"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// DetectionResult aggregates all detections produced for one text.
type DetectionResult struct {
	Text                string           `json:"-"`
	Detections          []Detection      `json:"detections"`
	Categories          []Category       `json:"categories"`
	Sensitivity         Sensitivity      `json:"sensitivity"`
	PreserveDomainTerms bool             `json:"preserve_domain_terms"`
	Metadata            DetectionMetrics `json:"metadata"`
}

// DetectionMetrics carries timing and sizing information for one detect call.
type DetectionMetrics struct {
	Duration     time.Duration `json:"duration"`
	PatternCount int           `json:"pattern_count"`
	Streaming    bool          `json:"streaming"`
}

// DetectOptions configures a single detection pass.
type DetectOptions struct {
	// Categories restricts detection to the listed categories. Empty means
	// every category that has patterns.
	Categories []Category

	// Sensitivity selects the confidence threshold matches must clear.
	// Zero value falls back to medium.
	Sensitivity Sensitivity

	// PreserveDomainTerms drops matches that equal a whitelisted term.
	PreserveDomainTerms bool
}

func (o DetectOptions) sensitivity() Sensitivity {
	if o.Sensitivity.Valid() {
		return o.Sensitivity
	}
	return SensitivityMedium
}
