package scan

import "sort"

// Summarize counts findings per severity tier and groups them by signature.
// The result does not depend on the order of findings.
func Summarize(findings []Finding) Report {
	report := Report{
		BySignature: make(map[string][]Finding),
	}

	for _, f := range findings {
		report.Total++
		switch f.Severity {
		case SeverityCritical:
			report.Critical++
		case SeverityHigh:
			report.High++
		case SeverityMedium:
			report.Medium++
		case SeverityLow:
			report.Low++
		}

		report.BySignature[f.Signature] = append(report.BySignature[f.Signature], f)

		if f.Severity.Value() > report.MaxSeverity.Value() {
			report.MaxSeverity = f.Severity
		}
	}

	return report
}

// SeverityScore returns the ordinal of the highest severity present, from 1
// for LOW to 4 for CRITICAL, or 0 when there are no findings.
func SeverityScore(findings []Finding) int {
	score := 0
	for _, f := range findings {
		if v := f.Severity.Value(); v > score {
			score = v
			if score == SeverityCritical.Value() {
				break
			}
		}
	}
	return score
}

// HasSeverityAtLeast reports whether any finding is at or above min.
func HasSeverityAtLeast(findings []Finding, min Severity) bool {
	return SeverityScore(findings) >= min.Value() && min.Valid()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
