package scan

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestRedactor_Mask(t *testing.T) {
	redactor := NewRedactor()

	tests := []struct {
		name     string
		value    string
		expected string
	}{
		{"Empty", "", ""},
		{"Single rune", "a", "*"},
		{"Four runes", "ab12", "****"},
		{"Five runes stretch to eight", "abcde", "ab****de"},
		{"Seven runes stretch to eight", "a@b.com", "a@****om"},
		{"Eight runes", "abcdefgh", "ab****gh"},
		{"Ten runes", "ABCDEFGHIJ", "AB******IJ"},
		{"Multibyte runes", "héllo wörld", "hé*******ld"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := redactor.Mask(tt.value)
			if result != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, result)
			}
		})
	}
}

// TestRedactor_MaskLength verifies masked length is n for short values and
// max(8, n) otherwise.
func TestRedactor_MaskLength(t *testing.T) {
	for n := 0; n <= 40; n++ {
		value := strings.Repeat("x", n)
		masked := Mask(value)

		want := n
		if n > 4 {
			want = max(8, n)
		}
		if got := utf8.RuneCountInString(masked); got != want {
			t.Errorf("n=%d: expected masked length %d, got %d (%q)", n, want, got, masked)
		}
	}
}

func TestRedactor_Scrub(t *testing.T) {
	text := "my key is AKIAABCD1234EFGH5678 and email me at a@b.com"
	findings := Scan(text)

	scrubbed := Scrub(text, findings)

	expected := "my key is [REDACTED] and email me at [REDACTED]"
	if scrubbed != expected {
		t.Errorf("Expected %q, got %q", expected, scrubbed)
	}
}

func TestRedactor_ScrubAllOccurrences(t *testing.T) {
	text := "a@b.com wrote to a@b.com"
	findings := []Finding{{Signature: "email", Raw: "a@b.com", Start: 0, End: 7}}

	scrubbed := Scrub(text, findings)
	if strings.Contains(scrubbed, "a@b.com") {
		t.Errorf("Expected every occurrence removed, got %q", scrubbed)
	}
	if strings.Count(scrubbed, DefaultPlaceholder) != 2 {
		t.Errorf("Expected 2 placeholders, got %q", scrubbed)
	}
}

func TestRedactor_ScrubLongestFirst(t *testing.T) {
	text := "secret123 and secret"
	findings := []Finding{
		{Signature: "short", Raw: "secret"},
		{Signature: "long", Raw: "secret123"},
	}

	scrubbed := Scrub(text, findings)
	expected := "[REDACTED] and [REDACTED]"
	if scrubbed != expected {
		t.Errorf("Expected %q, got %q", expected, scrubbed)
	}
}

func TestRedactor_ScrubIdempotent(t *testing.T) {
	text := "postgresql://admin:pw@10.0.0.7/app, Bearer tok.en, bob@corp.io"
	findings := Scan(text)
	if len(findings) == 0 {
		t.Fatal("Expected findings")
	}

	once := Scrub(text, findings)
	twice := Scrub(once, findings)
	if once != twice {
		t.Errorf("Scrub not idempotent:\n once: %q\ntwice: %q", once, twice)
	}
	for _, f := range findings {
		if strings.Contains(once, f.Raw) {
			t.Errorf("Scrubbed text still contains %s value", f.Signature)
		}
	}
}

func TestRedactor_ScrubEdgeCases(t *testing.T) {
	if got := Scrub("", []Finding{{Raw: "x"}}); got != "" {
		t.Errorf("Expected empty text unchanged, got %q", got)
	}
	if got := Scrub("hello", nil); got != "hello" {
		t.Errorf("Expected text unchanged without findings, got %q", got)
	}
	if got := Scrub("hello", []Finding{{Raw: ""}}); got != "hello" {
		t.Errorf("Expected empty raw values skipped, got %q", got)
	}
}

func TestRedactor_ScrubIgnoresMaskedValue(t *testing.T) {
	text := "ab****gh and abcdefgh"
	findings := []Finding{{Raw: "abcdefgh", Masked: "ab****gh"}}

	scrubbed := Scrub(text, findings)
	expected := "ab****gh and [REDACTED]"
	if scrubbed != expected {
		t.Errorf("Expected %q, got %q", expected, scrubbed)
	}
}

func TestRedactor_CustomPlaceholder(t *testing.T) {
	redactor := NewRedactorWithConfig('#', "<removed>")

	if got := redactor.Mask("abcdef"); got != "ab####ef" {
		t.Errorf("Expected ab####ef, got %q", got)
	}
	if got := redactor.Scrub("id abcdef", []Finding{{Raw: "abcdef"}}); got != "id <removed>" {
		t.Errorf("Expected custom placeholder, got %q", got)
	}
}

func TestRedactionMap(t *testing.T) {
	findings := []Finding{
		{Raw: "abcdefgh"},
		{Raw: "abcdefgh"},
		{Raw: "xyz"},
		{Raw: ""},
	}

	m := RedactionMap(NewRedactor(), findings)
	if len(m) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(m))
	}
	if m["abcdefgh"] != "ab****gh" {
		t.Errorf("Unexpected mask %q", m["abcdefgh"])
	}
	if m["xyz"] != "***" {
		t.Errorf("Unexpected mask %q", m["xyz"])
	}
}
