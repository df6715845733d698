package redact

import (
	"fmt"

	"github.com/veilengine/veil/internal/privacy"
)

// CategoryPolicy is the per-category redaction configuration.
type CategoryPolicy struct {
	Strategy            Strategy         `yaml:"strategy" mapstructure:"strategy"`
	ConfidenceThreshold float64          `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
	MinimumSeverity     privacy.Severity `yaml:"minimum_severity" mapstructure:"minimum_severity"`
	PreserveDomainTerms bool             `yaml:"preserve_domain_terms" mapstructure:"preserve_domain_terms"`
}

// Policy is the full redaction configuration: per-category policies plus the
// shared knobs. Policies may be swapped per call or mutated per category at
// runtime.
type Policy struct {
	Categories        map[privacy.Category]CategoryPolicy `yaml:"categories" mapstructure:"categories"`
	EnabledCategories []privacy.Category                  `yaml:"enabled_categories" mapstructure:"enabled_categories"`
	WhitelistTerms    []string                            `yaml:"whitelist_terms" mapstructure:"whitelist_terms"`
	Sensitivity       privacy.Sensitivity                 `yaml:"sensitivity" mapstructure:"sensitivity"`
}

// DefaultPolicy returns the built-in policy: strong strategies at high
// thresholds for high-risk categories, partial masking for medium-risk ones,
// plain replacement with domain-term preservation for the rest.
func DefaultPolicy() *Policy {
	return &Policy{
		Sensitivity: privacy.SensitivityMedium,
		Categories: map[privacy.Category]CategoryPolicy{
			privacy.CategorySSN: {
				Strategy:            StrategyHash,
				ConfidenceThreshold: 0.7,
				MinimumSeverity:     privacy.SeverityMedium,
			},
			privacy.CategoryCreditCard: {
				Strategy:            StrategyHash,
				ConfidenceThreshold: 0.7,
				MinimumSeverity:     privacy.SeverityMedium,
			},
			privacy.CategoryFinancial: {
				Strategy:            StrategyReplace,
				ConfidenceThreshold: 0.7,
				MinimumSeverity:     privacy.SeverityMedium,
			},
			privacy.CategoryMedical: {
				Strategy:            StrategyReplace,
				ConfidenceThreshold: 0.7,
				MinimumSeverity:     privacy.SeverityMedium,
			},
			privacy.CategoryEmail: {
				Strategy:            StrategyReplace,
				ConfidenceThreshold: 0.5,
				MinimumSeverity:     privacy.SeverityLow,
				PreserveDomainTerms: true,
			},
			privacy.CategoryPhone: {
				Strategy:            StrategyPartial,
				ConfidenceThreshold: 0.5,
				MinimumSeverity:     privacy.SeverityLow,
			},
			privacy.CategoryAddress: {
				Strategy:            StrategyPartial,
				ConfidenceThreshold: 0.5,
				MinimumSeverity:     privacy.SeverityLow,
			},
			privacy.CategoryDateOfBirth: {
				Strategy:            StrategyPartial,
				ConfidenceThreshold: 0.5,
				MinimumSeverity:     privacy.SeverityLow,
			},
			privacy.CategoryID: {
				Strategy:            StrategyReplace,
				ConfidenceThreshold: 0.6,
				MinimumSeverity:     privacy.SeverityLow,
			},
			privacy.CategoryCustom: {
				Strategy:            StrategyReplace,
				ConfidenceThreshold: 0.5,
				MinimumSeverity:     privacy.SeverityLow,
				PreserveDomainTerms: true,
			},
			privacy.CategoryDomain: {
				Strategy:            StrategyReplace,
				ConfidenceThreshold: 0.5,
				MinimumSeverity:     privacy.SeverityLow,
				PreserveDomainTerms: true,
			},
		},
	}
}

// For returns the policy for a category, falling back to a conservative
// replace-everything policy when the category has none configured.
func (p *Policy) For(category privacy.Category) CategoryPolicy {
	if cp, ok := p.Categories[category]; ok {
		return cp
	}
	return CategoryPolicy{
		Strategy:            StrategyReplace,
		ConfidenceThreshold: 0.5,
		MinimumSeverity:     privacy.SeverityLow,
	}
}

// Set replaces the policy for one category at runtime.
func (p *Policy) Set(category privacy.Category, cp CategoryPolicy) error {
	if !category.Valid() {
		return fmt.Errorf("unknown category: %s", category)
	}
	if !cp.Strategy.Valid() {
		return fmt.Errorf("unknown strategy: %s", cp.Strategy)
	}
	if p.Categories == nil {
		p.Categories = make(map[privacy.Category]CategoryPolicy)
	}
	p.Categories[category] = cp
	return nil
}

// IsWhitelisted reports whether text matches one of the policy's own
// whitelist terms after normalization. Policy terms apply on top of the
// library's built-in domain vocabulary and are honored unconditionally.
func (p *Policy) IsWhitelisted(text string) bool {
	if len(p.WhitelistTerms) == 0 {
		return false
	}
	norm := privacy.NormalizeTerm(text)
	for _, term := range p.WhitelistTerms {
		if privacy.NormalizeTerm(term) == norm {
			return true
		}
	}
	return false
}

// Enabled returns the categories this policy applies to. Empty means all.
func (p *Policy) Enabled() []privacy.Category {
	if len(p.EnabledCategories) == 0 {
		return privacy.AllCategories()
	}
	return p.EnabledCategories
}

// Validate flags categories missing a policy, over-reliance on a single
// strategy, and thin domain-term preservation coverage.
func (p *Policy) Validate() ValidationResult {
	result := ValidationResult{IsValid: true}

	strategyUse := make(map[Strategy]int)
	preserving := 0
	for category, cp := range p.Categories {
		if !category.Valid() {
			result.Errors = append(result.Errors, fmt.Sprintf("unknown category %q in policy", category))
		}
		if !cp.Strategy.Valid() {
			result.Errors = append(result.Errors, fmt.Sprintf("category %s has unknown strategy %q", category, cp.Strategy))
		}
		if cp.ConfidenceThreshold < 0 || cp.ConfidenceThreshold > 1 {
			result.Errors = append(result.Errors, fmt.Sprintf("category %s threshold %.2f outside [0,1]", category, cp.ConfidenceThreshold))
		}
		strategyUse[cp.Strategy]++
		if cp.PreserveDomainTerms {
			preserving++
		}
	}

	for _, category := range p.Enabled() {
		if _, ok := p.Categories[category]; !ok {
			result.Warnings = append(result.Warnings, fmt.Sprintf("enabled category %s has no policy, default will apply", category))
		}
	}

	if len(p.Categories) > 3 {
		for strategy, n := range strategyUse {
			if n*4 >= len(p.Categories)*3 {
				result.Warnings = append(result.Warnings, fmt.Sprintf("strategy %s covers %d of %d categories", strategy, n, len(p.Categories)))
			}
		}
	}

	if preserving == 0 && len(p.Categories) > 0 {
		result.Warnings = append(result.Warnings, "no category preserves domain terms; generic matches may over-redact")
	}

	if p.Sensitivity != "" && !p.Sensitivity.Valid() {
		result.Errors = append(result.Errors, fmt.Sprintf("unknown sensitivity %q", p.Sensitivity))
	}

	result.IsValid = len(result.Errors) == 0
	return result
}
