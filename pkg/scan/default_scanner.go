package scan

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// defaultScanner implements the Scanner interface
type defaultScanner struct {
	registry *Registry
	redactor Redactor
	logger   *slog.Logger
}

// Option configures a scanner.
type Option func(*defaultScanner)

// WithRegistry sets the registry the scanner applies.
func WithRegistry(r *Registry) Option {
	return func(s *defaultScanner) {
		if r != nil {
			s.registry = r
		}
	}
}

// WithRedactor sets the redactor used to mask finding values.
func WithRedactor(r Redactor) Option {
	return func(s *defaultScanner) {
		if r != nil {
			s.redactor = r
		}
	}
}

// WithLogger sets the logger used to report signature faults.
func WithLogger(l *slog.Logger) Option {
	return func(s *defaultScanner) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewScanner creates a scanner over the default registry unless an option
// overrides it.
func NewScanner(opts ...Option) Scanner {
	s := &defaultScanner{
		registry: DefaultRegistry(),
		redactor: NewRedactor(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the signatures this scanner applies.
func (s *defaultScanner) Registry() *Registry {
	return s.registry
}

// ScanBytes scans byte content. A nil slice yields no findings.
func (s *defaultScanner) ScanBytes(content []byte) []Finding {
	if len(content) == 0 {
		return nil
	}
	return s.Scan(string(content))
}

// dedupKey identifies a finding within one scan.
type dedupKey struct {
	signature string
	raw       string
}

// Scan applies every signature in registry order and returns the findings
// sorted by start offset, latest first.
func (s *defaultScanner) Scan(text string) []Finding {
	if text == "" {
		return nil
	}

	var findings []Finding
	seen := make(map[dedupKey]struct{})

	for i := range s.registry.signatures {
		sig := &s.registry.signatures[i]

		spans, err := s.matchSignature(sig, text)
		if err != nil {
			s.logger.Error("signature skipped", "signature", sig.Name, "error", err)
			continue
		}

		for _, loc := range spans {
			start, end := loc[0], loc[1]
			if start == end {
				continue
			}

			raw := text[start:end]
			key := dedupKey{signature: sig.Name, raw: raw}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}

			findings = append(findings, Finding{
				Signature: sig.Name,
				Category:  sig.Category,
				Severity:  sig.Severity,
				Masked:    s.redactor.Mask(raw),
				Raw:       raw,
				Start:     start,
				End:       end,
			})
		}
	}

	// Stable keeps registry order among findings that start together.
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Start > findings[j].Start
	})

	return findings
}

// matchSignature runs one signature, converting a panic in its pattern or
// validator into an error so the remaining signatures still run.
func (s *defaultScanner) matchSignature(sig *Signature, text string) (spans [][]int, err error) {
	defer func() {
		if r := recover(); r != nil {
			spans = nil
			err = fmt.Errorf("signature %s panicked: %v", sig.Name, r)
		}
	}()
	return sig.match(text), nil
}

// Scan scans text with the default registry.
func Scan(text string) []Finding {
	return defaultScannerInstance().Scan(text)
}

var defaultScannerInstance = sync.OnceValue(func() Scanner {
	return NewScanner()
})
