package scan

import (
	"strings"
)

// piiSignatures covers personal, health and payment identifiers.
func piiSignatures() []Signature {
	ssn := NewSignature("ssn", CategoryPII, SeverityCritical, AllOccurrences,
		`\b[0-6][0-9]{2}-[0-9]{2}-[0-9]{4}\b`)
	ssn.Description = "US Social Security Number"
	ssn.Validate = isValidSSN

	return []Signature{
		ssn,
		withDescription(NewSignature("credit_card", CategoryFinancial, SeverityCritical, AllOccurrences,
			`\b(?:\d[ -]*?){13,19}\b`),
			"Credit-card-shaped digit run"),
		withDescription(NewSignature("passport", CategoryPII, SeverityHigh, AllOccurrences,
			`(?i)(?:passport|passport number|passport #)\s*[:=]?\s*[a-z0-9]{6,9}`),
			"Labeled passport number"),
		withDescription(NewSignature("drivers_license", CategoryPII, SeverityHigh, AllOccurrences,
			`(?i)(?:dl|driver'?s?\s*license|driver'?s?\s*lic)\s*[:=]?\s*[a-z0-9]{5,8}`),
			"Labeled driver's license number"),
		withDescription(NewSignature("phone_us", CategoryPII, SeverityMedium, AllOccurrences,
			`\b(?:\+?1[-.]?)?\(?([0-9]{3})\)?[-.]?([0-9]{3})[-.]?([0-9]{4})\b`),
			"US phone number"),
		withDescription(NewSignature("email", CategoryPII, SeverityMedium, AllOccurrences,
			`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`),
			"Email address"),
		// PHI identifiers carry no explicit tier and register as MEDIUM.
		withDescription(NewSignature("medical_record", CategoryPHI, SeverityNone, AllOccurrences,
			`(?i)(?:mrn|medical record number)\s*[:=]?\s*[a-z0-9]{5,15}`),
			"Medical record number"),
		withDescription(NewSignature("insurance_id", CategoryPHI, SeverityNone, AllOccurrences,
			`(?i)(?:insurance id|policy number|member id)\s*[:=]?\s*[a-z0-9]{5,20}`),
			"Insurance or member ID"),
	}
}

// financialSignatures covers bank identifiers.
func financialSignatures() []Signature {
	return []Signature{
		withDescription(NewSignature("iban", CategoryFinancial, SeverityCritical, AllOccurrences,
			`\b[A-Z]{2}[0-9]{2}(?:[ -]?[A-Z0-9]{4}){2,7}(?:[ -]?[A-Z0-9]{1,3})?\b`),
			"IBAN-shaped account number"),
		withDescription(NewSignature("swift_code", CategoryFinancial, SeverityHigh, AllOccurrences,
			`\b[A-Z]{4}[A-Z]{2}[A-Z0-9]{2}(?:[A-Z0-9]{3})?\b`),
			"SWIFT/BIC code"),
	}
}

// isValidSSN rejects area 000 and 666, group 00 and serial 0000.
func isValidSSN(ssn string) bool {
	parts := strings.Split(ssn, "-")
	if len(parts) != 3 {
		return false
	}
	area, group, serial := parts[0], parts[1], parts[2]
	if area == "000" || area == "666" {
		return false
	}
	if group == "00" || serial == "0000" {
		return false
	}
	return true
}
