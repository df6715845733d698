package privacy

// Category identifies a kind of personally identifiable information.
type Category string

const (
	CategoryEmail       Category = "email"
	CategoryPhone       Category = "phone"
	CategorySSN         Category = "ssn"
	CategoryCreditCard  Category = "credit_card"
	CategoryAddress     Category = "address"
	CategoryDateOfBirth Category = "date_of_birth"
	CategoryID          Category = "id"
	CategoryFinancial   Category = "financial"
	CategoryMedical     Category = "medical"
	CategoryCustom      Category = "custom"
	CategoryDomain      Category = "domain"
)

// categoryInfo carries the fixed attributes of a category.
type categoryInfo struct {
	priority    int
	token       string
	description string
}

var categories = map[Category]categoryInfo{
	CategoryEmail:       {priority: 70, token: "[EMAIL]", description: "Email addresses"},
	CategoryPhone:       {priority: 60, token: "[PHONE]", description: "Phone numbers"},
	CategorySSN:         {priority: 100, token: "[SSN]", description: "Social security numbers"},
	CategoryCreditCard:  {priority: 95, token: "[CREDIT_CARD]", description: "Payment card numbers"},
	CategoryAddress:     {priority: 50, token: "[ADDRESS]", description: "Street addresses"},
	CategoryDateOfBirth: {priority: 55, token: "[DOB]", description: "Dates of birth"},
	CategoryID:          {priority: 65, token: "[ID]", description: "Government or organizational identifiers"},
	CategoryFinancial:   {priority: 90, token: "[FINANCIAL]", description: "Bank accounts and routing numbers"},
	CategoryMedical:     {priority: 85, token: "[MEDICAL]", description: "Medical record identifiers"},
	CategoryCustom:      {priority: 40, token: "[REDACTED]", description: "Caller-supplied patterns"},
	CategoryDomain:      {priority: 30, token: "[TERM]", description: "Domain-specific identifiers"},
}

// AllCategories returns every known category in a stable order.
func AllCategories() []Category {
	return []Category{
		CategorySSN, CategoryCreditCard, CategoryFinancial, CategoryMedical,
		CategoryEmail, CategoryID, CategoryPhone, CategoryDateOfBirth,
		CategoryAddress, CategoryCustom, CategoryDomain,
	}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	_, ok := categories[c]
	return ok
}

// Priority returns the relative weight of the category; higher values are
// more sensitive kinds of data.
func (c Category) Priority() int { return categories[c].priority }

// Token returns the default replacement placeholder for the category.
func (c Category) Token() string {
	if info, ok := categories[c]; ok {
		return info.token
	}
	return "[REDACTED]"
}

// Description returns a human readable description of the category.
func (c Category) Description() string { return categories[c].description }

// HighRisk reports whether a confirmed detection in this category is
// considered high risk regardless of context.
func (c Category) HighRisk() bool {
	switch c {
	case CategorySSN, CategoryCreditCard, CategoryFinancial, CategoryMedical:
		return true
	}
	return false
}

// Severity classifies how damaging a detection is if exposed.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseSeverity converts a name into a Severity, defaulting to low.
func ParseSeverity(name string) Severity {
	switch name {
	case "critical":
		return SeverityCritical
	case "high":
		return SeverityHigh
	case "medium":
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// SeverityFor maps a category and confidence to a severity level.
func SeverityFor(category Category, confidence float64) Severity {
	if category.HighRisk() && confidence > 0.8 {
		return SeverityCritical
	}
	if confidence > 0.8 {
		return SeverityHigh
	}
	if confidence > 0.6 {
		return SeverityMedium
	}
	return SeverityLow
}

// Sensitivity is a coarse dial that adjusts how aggressively patterns match.
// Higher sensitivity catches more: each level maps to a lower confidence
// threshold that a match must clear.
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
	SensitivityStrict Sensitivity = "strict"
)

// Threshold returns the minimum confidence a match must reach at this
// sensitivity level.
func (s Sensitivity) Threshold() float64 {
	switch s {
	case SensitivityLow:
		return 0.7
	case SensitivityHigh:
		return 0.35
	case SensitivityStrict:
		return 0.2
	default: // medium
		return 0.5
	}
}

// Valid reports whether s is a recognized sensitivity level.
func (s Sensitivity) Valid() bool {
	switch s {
	case SensitivityLow, SensitivityMedium, SensitivityHigh, SensitivityStrict:
		return true
	}
	return false
}
