package scan

import (
	"errors"
	"fmt"
	"sync"
)

// ErrDuplicateSignature is returned when two signatures share a name.
var ErrDuplicateSignature = errors.New("duplicate signature name")

// Registry is an ordered, immutable collection of signatures. It is safe
// for concurrent use.
type Registry struct {
	signatures []Signature
	byName     map[string]int
}

// NewRegistry creates a registry holding sigs in the given order.
// Signatures without a severity are registered as SeverityMedium.
func NewRegistry(sigs ...Signature) (*Registry, error) {
	r := &Registry{
		signatures: make([]Signature, 0, len(sigs)),
		byName:     make(map[string]int, len(sigs)),
	}

	for _, sig := range sigs {
		if sig.Name == "" {
			return nil, errors.New("signature name is required")
		}
		if sig.Pattern == nil {
			return nil, fmt.Errorf("signature %s: pattern is required", sig.Name)
		}
		if _, ok := r.byName[sig.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSignature, sig.Name)
		}
		if !sig.Severity.Valid() {
			sig.Severity = SeverityMedium
		}

		r.byName[sig.Name] = len(r.signatures)
		r.signatures = append(r.signatures, sig)
	}

	return r, nil
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	r, err := NewRegistry(DefaultSignatures()...)
	if err != nil {
		panic(fmt.Sprintf("scan: building default registry: %v", err))
	}
	return r
})

// DefaultRegistry returns the process-wide registry of built-in signatures.
func DefaultRegistry() *Registry {
	return defaultRegistry()
}

// DefaultSignatures returns the built-in signatures in scan order.
func DefaultSignatures() []Signature {
	sigs := make([]Signature, 0, 32)
	sigs = append(sigs, credentialSignatures()...)
	sigs = append(sigs, piiSignatures()...)
	sigs = append(sigs, infrastructureSignatures()...)
	sigs = append(sigs, sourceCodeSignatures()...)
	sigs = append(sigs, financialSignatures()...)
	sigs = append(sigs, cloudSignatures()...)
	return sigs
}

// Signatures returns the registered signatures in scan order.
func (r *Registry) Signatures() []Signature {
	result := make([]Signature, len(r.signatures))
	copy(result, r.signatures)
	return result
}

// Len returns the number of registered signatures.
func (r *Registry) Len() int {
	return len(r.signatures)
}

// Get returns a signature by name
func (r *Registry) Get(name string) (Signature, bool) {
	idx, ok := r.byName[name]
	if !ok {
		return Signature{}, false
	}
	return r.signatures[idx], true
}

// SeverityOf returns the registered severity for name, or SeverityMedium for
// names the registry does not know.
func (r *Registry) SeverityOf(name string) Severity {
	if sig, ok := r.Get(name); ok {
		return sig.Severity
	}
	return SeverityMedium
}

// Filter returns a new registry with the signatures keep accepts, in the
// original order.
func (r *Registry) Filter(keep func(Signature) bool) *Registry {
	out := &Registry{byName: make(map[string]int)}
	for _, sig := range r.signatures {
		if !keep(sig) {
			continue
		}
		out.byName[sig.Name] = len(out.signatures)
		out.signatures = append(out.signatures, sig)
	}
	return out
}

// WithoutCategories returns a registry without the given categories.
func (r *Registry) WithoutCategories(categories ...Category) *Registry {
	drop := make(map[Category]struct{}, len(categories))
	for _, c := range categories {
		drop[c] = struct{}{}
	}
	return r.Filter(func(sig Signature) bool {
		_, found := drop[sig.Category]
		return !found
	})
}

// WithoutNames returns a registry without the named signatures.
func (r *Registry) WithoutNames(names ...string) *Registry {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	return r.Filter(func(sig Signature) bool {
		_, found := drop[sig.Name]
		return !found
	})
}

// Extend returns a new registry with sigs appended after the existing ones.
func (r *Registry) Extend(sigs ...Signature) (*Registry, error) {
	all := make([]Signature, 0, len(r.signatures)+len(sigs))
	all = append(all, r.signatures...)
	all = append(all, sigs...)
	return NewRegistry(all...)
}
