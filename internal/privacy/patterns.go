package privacy

import "strings"

// Pattern is a single detection rule. Patterns are immutable once created;
// compiled forms live in the shared pattern cache, never here.
type Pattern struct {
	Expr            string
	CaseInsensitive bool
	Category        Category
	Confidence      float64
	Description     string
}

// Source returns the regular expression the cache should compile, with
// match options folded into the expression itself.
func (p Pattern) Source() string {
	if p.CaseInsensitive {
		return "(?i)" + p.Expr
	}
	return p.Expr
}

// DefaultPatterns returns the built-in pattern sets, keyed by category.
func DefaultPatterns() map[Category][]Pattern {
	return map[Category][]Pattern{
		CategoryEmail: {
			{
				Expr:        `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`,
				Category:    CategoryEmail,
				Confidence:  0.9,
				Description: "RFC-style email address",
			},
		},
		CategoryPhone: {
			{
				Expr:        `(?:\+?1[-.\s]?)?\(?[0-9]{3}\)?[-.\s][0-9]{3}[-.\s]?[0-9]{4}\b`,
				Category:    CategoryPhone,
				Confidence:  0.85,
				Description: "North American phone number",
			},
			{
				Expr:        `\+[0-9]{1,3}[-.\s]?[0-9]{2,4}[-.\s]?[0-9]{3,4}[-.\s]?[0-9]{3,4}\b`,
				Category:    CategoryPhone,
				Confidence:  0.75,
				Description: "International phone number",
			},
		},
		CategorySSN: {
			{
				Expr:        `\b[0-9]{3}-[0-9]{2}-[0-9]{4}\b`,
				Category:    CategorySSN,
				Confidence:  0.95,
				Description: "US social security number, dashed form",
			},
			{
				Expr:            `\bssn[:\s]+[0-9]{9}\b`,
				CaseInsensitive: true,
				Category:        CategorySSN,
				Confidence:      0.9,
				Description:     "US social security number with keyword context",
			},
		},
		CategoryCreditCard: {
			{
				Expr:        `\b[0-9]{4}[\s-]?[0-9]{4}[\s-]?[0-9]{4}[\s-]?[0-9]{4}\b`,
				Category:    CategoryCreditCard,
				Confidence:  0.88,
				Description: "16-digit payment card number",
			},
			{
				Expr:        `\b3[47][0-9]{2}[\s-]?[0-9]{6}[\s-]?[0-9]{5}\b`,
				Category:    CategoryCreditCard,
				Confidence:  0.88,
				Description: "15-digit Amex card number",
			},
		},
		CategoryAddress: {
			{
				Expr:            `\b\d{1,5}\s+[A-Za-z][A-Za-z\s]{2,30}\s(?:street|st|avenue|ave|road|rd|boulevard|blvd|lane|ln|drive|dr|court|ct|way|place|pl)\b`,
				CaseInsensitive: true,
				Category:        CategoryAddress,
				Confidence:      0.7,
				Description:     "US street address",
			},
			{
				Expr:        `\b[0-9]{5}(?:-[0-9]{4})?\b`,
				Category:    CategoryAddress,
				Confidence:  0.55,
				Description: "ZIP code",
			},
		},
		CategoryDateOfBirth: {
			{
				Expr:            `\b(?:dob|date of birth|born)[:\s]+\d{1,2}[-/]\d{1,2}[-/]\d{2,4}\b`,
				CaseInsensitive: true,
				Category:        CategoryDateOfBirth,
				Confidence:      0.9,
				Description:     "Date of birth with keyword context",
			},
			{
				Expr:        `\b(?:19|20)\d{2}[-/](?:0[1-9]|1[0-2])[-/](?:0[1-9]|[12][0-9]|3[01])\b`,
				Category:    CategoryDateOfBirth,
				Confidence:  0.6,
				Description: "ISO-style date",
			},
		},
		CategoryID: {
			{
				Expr:            `\b(?:passport|license|employee)\s*(?:no|number|id)?[:#\s]+[A-Z0-9]{6,12}\b`,
				CaseInsensitive: true,
				Category:        CategoryID,
				Confidence:      0.8,
				Description:     "Identifier with keyword context",
			},
			{
				Expr:        `\b[A-Z]{2}[0-9]{6,9}\b`,
				Category:    CategoryID,
				Confidence:  0.6,
				Description: "Passport-shaped identifier",
			},
		},
		CategoryFinancial: {
			{
				Expr:            `\b(?:account|acct|routing)\s*(?:no|number)?[:#\s]+[0-9]{8,17}\b`,
				CaseInsensitive: true,
				Category:        CategoryFinancial,
				Confidence:      0.85,
				Description:     "Bank account or routing number with keyword context",
			},
			{
				Expr:        `\b[A-Z]{2}[0-9]{2}[A-Z0-9]{11,30}\b`,
				Category:    CategoryFinancial,
				Confidence:  0.75,
				Description: "IBAN",
			},
		},
		CategoryMedical: {
			{
				Expr:            `\b(?:mrn|medical record|patient)\s*(?:no|number|id)?[:#\s]+[A-Z0-9]{5,12}\b`,
				CaseInsensitive: true,
				Category:        CategoryMedical,
				Confidence:      0.85,
				Description:     "Medical record number with keyword context",
			},
			{
				Expr:            `\b(?:diagnosis|prescription|medication)[:\s]+[A-Za-z][A-Za-z\s-]{2,40}\b`,
				CaseInsensitive: true,
				Category:        CategoryMedical,
				Confidence:      0.7,
				Description:     "Medical narrative with keyword context",
			},
		},
	}
}

// defaultDomainTerms is the curated whitelist of domain vocabulary that
// superficially resembles PII patterns but carries no personal data.
// Membership checks normalize case and whitespace, see NormalizeTerm.
var defaultDomainTerms = []string{
	// documentation placeholders
	"jane.doe@example.com",
	"john.doe@example.com",
	"user@example.com",
	"support@example.com",
	"noreply@example.com",
	"555-555-5555",
	"555-000-0000",
	"000-00-0000",
	"123-45-6789",
	"4111 1111 1111 1111",
	// standards and jargon that look like identifiers
	"iso 27001",
	"rfc 5322",
	"soc 2",
	"utf 8",
	"sha 256",
	"oauth 2",
	"http 2",
	"ipv4",
	"ipv6",
	"x509",
}

// NormalizeTerm canonicalizes a candidate term for whitelist comparison:
// lowercase with runs of whitespace collapsed to single spaces.
func NormalizeTerm(term string) string {
	return strings.Join(strings.Fields(strings.ToLower(term)), " ")
}
