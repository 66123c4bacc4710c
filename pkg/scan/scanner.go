package scan

// Scanner applies a signature registry to text.
type Scanner interface {
	// Scan returns the findings in text, latest-occurring first
	Scan(text string) []Finding

	// ScanBytes is a convenience method for scanning byte content
	ScanBytes(content []byte) []Finding

	// Registry returns the signatures this scanner applies
	Registry() *Registry
}

// Redactor derives display-safe and scrubbed forms of findings
type Redactor interface {
	// Mask returns a one-way, display-safe form of a raw value
	Mask(raw string) string

	// Scrub replaces every occurrence of each finding's raw value in text
	Scrub(text string, findings []Finding) string
}
