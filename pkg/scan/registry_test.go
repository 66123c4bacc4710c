package scan

import (
	"errors"
	"testing"
)

func TestDefaultRegistry(t *testing.T) {
	registry := DefaultRegistry()

	if registry.Len() != 32 {
		t.Errorf("Expected 32 default signatures, got %d", registry.Len())
	}

	sigs := registry.Signatures()
	if sigs[0].Name != "aws_key" {
		t.Errorf("Expected aws_key first, got %s", sigs[0].Name)
	}
	if sigs[len(sigs)-1].Name != "vault_token" {
		t.Errorf("Expected vault_token last, got %s", sigs[len(sigs)-1].Name)
	}

	if DefaultRegistry() != registry {
		t.Error("Expected DefaultRegistry to return the same instance")
	}
}

func TestDefaultRegistrySeverities(t *testing.T) {
	registry := DefaultRegistry()

	tests := []struct {
		name         string
		severity     Severity
		multiplicity Multiplicity
	}{
		{"aws_key", SeverityCritical, FirstOccurrence},
		{"aws_secret", SeverityCritical, FirstOccurrence},
		{"api_key", SeverityHigh, AllOccurrences},
		{"ssn", SeverityCritical, AllOccurrences},
		{"email", SeverityMedium, AllOccurrences},
		{"medical_record", SeverityMedium, AllOccurrences},
		{"insurance_id", SeverityMedium, AllOccurrences},
		{"internal_ip", SeverityHigh, AllOccurrences},
		{"localhost", SeverityMedium, AllOccurrences},
		{"iban", SeverityCritical, AllOccurrences},
		{"aws_url", SeverityHigh, AllOccurrences},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, ok := registry.Get(tt.name)
			if !ok {
				t.Fatalf("Signature %s not registered", tt.name)
			}
			if sig.Severity != tt.severity {
				t.Errorf("Expected severity %s, got %s", tt.severity, sig.Severity)
			}
			if sig.Multiplicity != tt.multiplicity {
				t.Errorf("Expected multiplicity %s, got %s", tt.multiplicity, sig.Multiplicity)
			}
		})
	}
}

func TestDefaultRegistryNamesUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, sig := range DefaultRegistry().Signatures() {
		if seen[sig.Name] {
			t.Errorf("Duplicate signature %s", sig.Name)
		}
		seen[sig.Name] = true
		if sig.Description == "" {
			t.Errorf("Signature %s has no description", sig.Name)
		}
	}
}

func TestNewRegistryErrors(t *testing.T) {
	a := NewSignature("dup", CategoryCustom, SeverityLow, AllOccurrences, `a`)
	b := NewSignature("dup", CategoryCustom, SeverityLow, AllOccurrences, `b`)

	_, err := NewRegistry(a, b)
	if !errors.Is(err, ErrDuplicateSignature) {
		t.Errorf("Expected ErrDuplicateSignature, got %v", err)
	}

	_, err = NewRegistry(Signature{Name: "", Pattern: a.Pattern})
	if err == nil {
		t.Error("Expected error for empty name")
	}

	_, err = NewRegistry(Signature{Name: "nopattern"})
	if err == nil {
		t.Error("Expected error for missing pattern")
	}
}

func TestRegistrySeverityOf(t *testing.T) {
	registry := DefaultRegistry()

	if registry.SeverityOf("aws_key") != SeverityCritical {
		t.Errorf("Expected CRITICAL, got %s", registry.SeverityOf("aws_key"))
	}
	if registry.SeverityOf("unknown_signature") != SeverityMedium {
		t.Errorf("Expected MEDIUM for unknown name, got %s", registry.SeverityOf("unknown_signature"))
	}
}

func TestRegistryFiltering(t *testing.T) {
	registry := DefaultRegistry()

	noPII := registry.WithoutCategories(CategoryPII, CategoryPHI)
	for _, sig := range noPII.Signatures() {
		if sig.Category == CategoryPII || sig.Category == CategoryPHI {
			t.Errorf("Signature %s in category %s should be filtered", sig.Name, sig.Category)
		}
	}
	if noPII.Len() >= registry.Len() {
		t.Errorf("Expected fewer signatures after filtering, got %d", noPII.Len())
	}

	noEmail := registry.WithoutNames("email")
	if _, ok := noEmail.Get("email"); ok {
		t.Error("Expected email to be removed")
	}
	if noEmail.Len() != registry.Len()-1 {
		t.Errorf("Expected %d signatures, got %d", registry.Len()-1, noEmail.Len())
	}
	if _, ok := registry.Get("email"); !ok {
		t.Error("Filtering must not modify the source registry")
	}

	findings := NewScanner(WithRegistry(noEmail)).Scan("mail a@b.com")
	if len(findingsFor(findings, "email")) != 0 {
		t.Error("Expected filtered registry not to report email")
	}
}

func TestRegistryExtend(t *testing.T) {
	custom := NewSignature("ticket_id", CategoryCustom, SeverityLow, AllOccurrences, `TCK-[0-9]{6}`)

	extended, err := DefaultRegistry().Extend(custom)
	if err != nil {
		t.Fatalf("Extend failed: %v", err)
	}
	if extended.Len() != DefaultRegistry().Len()+1 {
		t.Errorf("Expected %d signatures, got %d", DefaultRegistry().Len()+1, extended.Len())
	}

	findings := NewScanner(WithRegistry(extended)).Scan("see TCK-123456")
	if len(findingsFor(findings, "ticket_id")) != 1 {
		t.Errorf("Expected custom signature to match, got %v", findings)
	}

	if _, err := DefaultRegistry().Extend(NewSignature("email", CategoryPII, SeverityLow, AllOccurrences, `x`)); !errors.Is(err, ErrDuplicateSignature) {
		t.Errorf("Expected ErrDuplicateSignature, got %v", err)
	}
}

func TestCompileSignatures(t *testing.T) {
	defs := []SignatureDefinition{
		{Name: "ticket_id", Regex: `TCK-[0-9]{6}`, Severity: "low"},
		{Name: "bad_group", Regex: `(unclosed`, Severity: "high"},
		{Name: "lookahead", Regex: `foo(?=bar)`},
		{Name: "", Regex: `x`},
		{Name: "employee_id", Category: "pii", Regex: `EMP[0-9]{5}`, Multiplicity: "first"},
	}

	sigs, err := CompileSignatures(defs)
	if err == nil {
		t.Error("Expected joined error for bad definitions")
	}
	if len(sigs) != 2 {
		t.Fatalf("Expected 2 compiled signatures, got %d", len(sigs))
	}

	if sigs[0].Name != "ticket_id" || sigs[0].Severity != SeverityLow || sigs[0].Category != CategoryCustom {
		t.Errorf("Unexpected first signature %+v", sigs[0])
	}
	if sigs[1].Multiplicity != FirstOccurrence || sigs[1].Category != CategoryPII {
		t.Errorf("Unexpected second signature %+v", sigs[1])
	}

	registry, err := NewRegistry(sigs...)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	if registry.SeverityOf("employee_id") != SeverityMedium {
		t.Errorf("Expected missing severity to default to MEDIUM, got %s", registry.SeverityOf("employee_id"))
	}
}
