// Package scan detects sensitive data (credentials, tokens, private keys,
// PII, PHI and internal infrastructure identifiers) in free-form text and
// turns raw matches into a severity-ranked, de-duplicated finding set.
package scan

import (
	"log/slog"
	"strings"
)

// Severity represents the severity tier of a finding
type Severity string

const (
	SeverityNone     Severity = ""
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Value returns numeric value for severity comparison
func (s Severity) Value() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Valid reports whether s is one of the four tiers.
func (s Severity) Valid() bool {
	return s.Value() > 0
}

// ParseSeverity converts a case-insensitive tier name to a Severity.
// Unknown names map to SeverityNone.
func ParseSeverity(s string) Severity {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return SeverityLow
	case "MEDIUM":
		return SeverityMedium
	case "HIGH":
		return SeverityHigh
	case "CRITICAL":
		return SeverityCritical
	default:
		return SeverityNone
	}
}

// Category groups signatures so the configuration layer can switch whole
// families on or off.
type Category string

const (
	CategoryCredential     Category = "credential"
	CategoryPII            Category = "pii"
	CategoryPHI            Category = "phi"
	CategoryFinancial      Category = "financial"
	CategoryInfrastructure Category = "infrastructure"
	CategorySourceCode     Category = "source_code"
	CategoryCustom         Category = "custom"
)

// Multiplicity controls how many matches a signature reports per scan.
type Multiplicity int

const (
	// AllOccurrences reports every non-overlapping match.
	AllOccurrences Multiplicity = iota
	// FirstOccurrence reports only the leftmost match.
	FirstOccurrence
)

// String returns string representation of Multiplicity
func (m Multiplicity) String() string {
	switch m {
	case AllOccurrences:
		return "all"
	case FirstOccurrence:
		return "first"
	default:
		return "unknown"
	}
}

// MultiplicityFromString converts string to Multiplicity
func MultiplicityFromString(s string) Multiplicity {
	if s == "first" {
		return FirstOccurrence
	}
	return AllOccurrences
}

// Finding is one detected, classified, located occurrence of sensitive content.
type Finding struct {
	Signature string   `json:"signature"`
	Category  Category `json:"category"`
	Severity  Severity `json:"severity"`

	// Masked is the display-safe form of the value.
	Masked string `json:"masked"`

	// Raw is the exact matched substring. It exists so Scrub can remove the
	// secret from the original text and is never serialized.
	Raw string `json:"-"`

	// Start and End are half-open byte offsets into the scanned text.
	Start int `json:"start"`
	End   int `json:"end"`
}

// Length returns the byte length of the matched value.
func (f Finding) Length() int {
	return f.End - f.Start
}

// LogValue implements slog.LogValuer. Only the masked value is emitted.
func (f Finding) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("signature", f.Signature),
		slog.String("severity", string(f.Severity)),
		slog.String("masked", f.Masked),
		slog.Int("start", f.Start),
		slog.Int("end", f.End),
	)
}

// String renders the finding without its raw value.
func (f Finding) String() string {
	return f.Signature + "(" + string(f.Severity) + "): " + f.Masked
}

// Report is a derived summary over a findings list.
type Report struct {
	Total    int `json:"total_findings"`
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`

	// BySignature groups findings by signature name.
	BySignature map[string][]Finding `json:"by_signature"`

	MaxSeverity Severity `json:"max_severity"`
}

// Signatures returns the distinct signature names in the report, sorted.
func (r Report) Signatures() []string {
	return sortedKeys(r.BySignature)
}

// Empty reports whether the summarized list had no findings.
func (r Report) Empty() bool {
	return r.Total == 0
}
