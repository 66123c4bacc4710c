package scan

import (
	"errors"
	"fmt"
	"strings"

	regexp "github.com/wasilibs/go-re2"
)

// Signature is a named detection rule. The zero value is not usable; build
// signatures with NewSignature or CompileSignature.
type Signature struct {
	Name         string
	Category     Category
	Severity     Severity
	Multiplicity Multiplicity
	Description  string

	// Pattern is an RE2 expression, so matching is linear in the input.
	Pattern *regexp.Regexp

	// Validate optionally rejects a candidate match. It covers checks RE2
	// cannot express, such as negative lookahead.
	Validate func(value string) bool
}

// NewSignature creates a signature from an expression known to be valid.
// It panics if expr does not compile, like regexp.MustCompile.
func NewSignature(name string, category Category, severity Severity, mult Multiplicity, expr string) Signature {
	return Signature{
		Name:         name,
		Category:     category,
		Severity:     severity,
		Multiplicity: mult,
		Pattern:      regexp.MustCompile(expr),
	}
}

// SignatureDefinition is the serializable form of a signature, as found in
// configuration files.
type SignatureDefinition struct {
	Name         string `yaml:"name" json:"name"`
	Category     string `yaml:"category" json:"category"`
	Regex        string `yaml:"regex" json:"regex"`
	Severity     string `yaml:"severity" json:"severity"`
	Multiplicity string `yaml:"multiplicity" json:"multiplicity"`
	Description  string `yaml:"description" json:"description"`
}

// CompileSignature compiles a single definition.
func CompileSignature(def SignatureDefinition) (Signature, error) {
	name := strings.TrimSpace(def.Name)
	if name == "" {
		return Signature{}, errors.New("signature name is required")
	}
	if def.Regex == "" {
		return Signature{}, fmt.Errorf("signature %s: regex is required", name)
	}

	re, err := regexp.Compile(def.Regex)
	if err != nil {
		return Signature{}, fmt.Errorf("signature %s: compiling regex: %w", name, err)
	}

	category := Category(def.Category)
	if category == "" {
		category = CategoryCustom
	}

	return Signature{
		Name:         name,
		Category:     category,
		Severity:     ParseSeverity(def.Severity),
		Multiplicity: MultiplicityFromString(def.Multiplicity),
		Description:  def.Description,
		Pattern:      re,
	}, nil
}

// CompileSignatures compiles every definition it can. Definitions that fail
// are skipped and their errors joined, so one bad entry never drops the rest.
func CompileSignatures(defs []SignatureDefinition) ([]Signature, error) {
	sigs := make([]Signature, 0, len(defs))
	var errs []error
	for _, def := range defs {
		sig, err := CompileSignature(def)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		sigs = append(sigs, sig)
	}
	return sigs, errors.Join(errs...)
}

// match returns the [start, end) spans of this signature in text.
func (s *Signature) match(text string) [][]int {
	if s.Pattern == nil {
		return nil
	}

	var spans [][]int
	switch s.Multiplicity {
	case FirstOccurrence:
		if loc := s.Pattern.FindStringIndex(text); loc != nil {
			spans = [][]int{loc}
		}
	default:
		// FindAllStringIndex resumes after each match and steps past empty
		// matches, so zero-width hits cannot stall the scan.
		spans = s.Pattern.FindAllStringIndex(text, -1)
	}

	if s.Validate == nil {
		return spans
	}

	valid := spans[:0]
	for _, loc := range spans {
		if s.Validate(text[loc[0]:loc[1]]) {
			valid = append(valid, loc)
		}
	}
	return valid
}
