package scan

import (
	"sort"
	"strings"
)

// DefaultPlaceholder replaces scrubbed values.
const DefaultPlaceholder = "[REDACTED]"

const (
	// maskVisible is how many runes stay visible at each end of a value.
	maskVisible = 2
	// maskMinimum is the shortest masked middle.
	maskMinimum = 4
)

// redactionEngine implements the Redactor interface
type redactionEngine struct {
	maskChar    rune
	placeholder string
}

// NewRedactor creates a redactor masking with '*' and scrubbing with
// DefaultPlaceholder.
func NewRedactor() Redactor {
	return &redactionEngine{
		maskChar:    '*',
		placeholder: DefaultPlaceholder,
	}
}

// NewRedactorWithConfig creates a redactor with a custom mask character and
// placeholder.
func NewRedactorWithConfig(maskChar rune, placeholder string) Redactor {
	if maskChar == 0 {
		maskChar = '*'
	}
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}
	return &redactionEngine{
		maskChar:    maskChar,
		placeholder: placeholder,
	}
}

// Mask keeps the first and last two runes of values longer than four and
// masks the middle with at least four mask characters. Shorter values are
// masked entirely.
func (e *redactionEngine) Mask(raw string) string {
	runes := []rune(raw)
	n := len(runes)
	if n <= maskVisible*2 {
		return strings.Repeat(string(e.maskChar), n)
	}

	middle := max(maskMinimum, n-maskVisible*2)

	var b strings.Builder
	b.Grow(len(raw) + middle)
	b.WriteString(string(runes[:maskVisible]))
	b.WriteString(strings.Repeat(string(e.maskChar), middle))
	b.WriteString(string(runes[n-maskVisible:]))
	return b.String()
}

// Scrub replaces every occurrence of every finding's raw value with the
// placeholder. Values are matched literally, longest first, in one pass.
func (e *redactionEngine) Scrub(text string, findings []Finding) string {
	if text == "" || len(findings) == 0 {
		return text
	}

	raws := make([]string, 0, len(findings))
	seen := make(map[string]struct{}, len(findings))
	for _, f := range findings {
		if f.Raw == "" || f.Raw == e.placeholder {
			continue
		}
		if _, ok := seen[f.Raw]; ok {
			continue
		}
		seen[f.Raw] = struct{}{}
		raws = append(raws, f.Raw)
	}
	if len(raws) == 0 {
		return text
	}

	// strings.Replacer prefers earlier pairs at the same position, so the
	// longest value wins when one raw value contains another.
	sort.SliceStable(raws, func(i, j int) bool {
		return len(raws[i]) > len(raws[j])
	})

	pairs := make([]string, 0, len(raws)*2)
	for _, raw := range raws {
		pairs = append(pairs, raw, e.placeholder)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// RedactionMap returns the masked form of each distinct raw value. It is
// meant for in-process display only.
func RedactionMap(r Redactor, findings []Finding) map[string]string {
	m := make(map[string]string, len(findings))
	for _, f := range findings {
		if f.Raw == "" {
			continue
		}
		m[f.Raw] = r.Mask(f.Raw)
	}
	return m
}

var defaultRedactor = NewRedactor()

// Mask masks raw with the default redactor.
func Mask(raw string) string {
	return defaultRedactor.Mask(raw)
}

// Scrub scrubs text with the default redactor.
func Scrub(text string, findings []Finding) string {
	return defaultRedactor.Scrub(text, findings)
}
