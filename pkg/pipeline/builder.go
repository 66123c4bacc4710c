package pipeline

import (
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/Tributary-ai-services/ContextGuard/pkg/action"
	"github.com/Tributary-ai-services/ContextGuard/pkg/audit"
	"github.com/Tributary-ai-services/ContextGuard/pkg/config"
	"github.com/Tributary-ai-services/ContextGuard/pkg/scan"
)

// BuildRegistry applies the scanning settings to the default signature set:
// disabled categories and names are dropped, then custom signatures and the
// patterns of every rule file are appended. A definition that fails to
// compile is left out and reported through the error while the registry
// still carries every other signature; callers treat a non-nil registry as
// usable. A duplicate name is fatal and returns a nil registry.
func BuildRegistry(cfg config.ScanningConfig, files []config.RuleFile) (*scan.Registry, error) {
	reg := scan.DefaultRegistry()

	if len(cfg.DisabledCategories) > 0 {
		cats := make([]scan.Category, len(cfg.DisabledCategories))
		for i, c := range cfg.DisabledCategories {
			cats[i] = scan.Category(c)
		}
		reg = reg.WithoutCategories(cats...)
	}
	if len(cfg.DisabledSignatures) > 0 {
		reg = reg.WithoutNames(cfg.DisabledSignatures...)
	}

	defs := make([]scan.SignatureDefinition, 0, len(cfg.CustomSignatures))
	for _, p := range cfg.CustomSignatures {
		defs = append(defs, signatureDefinition(p))
	}
	for _, f := range files {
		for _, p := range f.Patterns {
			defs = append(defs, signatureDefinition(p))
		}
	}
	if len(defs) == 0 {
		return reg, nil
	}

	sigs, compileErr := scan.CompileSignatures(defs)
	reg, err := reg.Extend(sigs...)
	if err != nil {
		return nil, fmt.Errorf("registering custom signatures: %w", err)
	}
	if compileErr != nil {
		return reg, fmt.Errorf("skipped custom signatures: %w", compileErr)
	}
	return reg, nil
}

func signatureDefinition(p config.PatternDefinition) scan.SignatureDefinition {
	return scan.SignatureDefinition{
		Name:         p.Name,
		Category:     p.Category,
		Regex:        p.Regex,
		Severity:     p.Severity,
		Multiplicity: p.Multiplicity,
		Description:  p.Description,
	}
}

// NewRedactorFromConfig builds the redactor described by the redaction settings.
func NewRedactorFromConfig(cfg config.RedactionConfig) scan.Redactor {
	mask := '*'
	if r, size := utf8.DecodeRuneInString(cfg.MaskChar); size > 0 && r != utf8.RuneError {
		mask = r
	}
	return scan.NewRedactorWithConfig(mask, cfg.Placeholder)
}

// NewFromConfig assembles a processor from the application config: rule
// files from actions.rules_dir, the signature registry, the policy engine
// and the audit log with its optional JSONL file.
func NewFromConfig(cfg *config.Config, logger *slog.Logger, opts ...ProcessorOption) (*defaultProcessor, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}

	var files []config.RuleFile
	if cfg.Actions.RulesDir != "" {
		var err error
		files, err = config.LoadRulesDir(cfg.Actions.RulesDir)
		if err != nil {
			return nil, err
		}
	}

	reg, regErr := BuildRegistry(cfg.Scanning, files)
	if reg == nil {
		return nil, regErr
	}
	if regErr != nil {
		logger.Warn("custom signatures skipped", "error", regErr)
	}
	redactor := NewRedactorFromConfig(cfg.Scanning.Redaction)
	scanner := scan.NewScanner(
		scan.WithRegistry(reg),
		scan.WithRedactor(redactor),
		scan.WithLogger(logger),
	)

	pc := ConfigFromSettings(cfg)
	engine := action.NewEngine(action.ConfigFromSettings(cfg.Actions))
	var err error
	if !pc.EnableActions {
		err = engine.LoadRules(action.ThresholdRules(pc.BlockSeverity))
	} else if rules, rerr := action.RulesFromFiles(files); rerr != nil {
		err = rerr
	} else if len(rules) > 0 {
		err = engine.LoadRules(rules)
	}
	if err != nil {
		engine.Close()
		return nil, fmt.Errorf("loading policy rules: %w", err)
	}

	recOpts := []audit.RecorderOption{audit.WithLogger(logger)}
	all := []ProcessorOption{
		WithConfig(pc),
		WithActionEngine(engine),
		WithRedactor(redactor),
		WithLogger(logger),
	}
	if cfg.Audit.File != "" {
		sink, err := audit.NewFileSink(cfg.Audit.File)
		if err != nil {
			engine.Close()
			return nil, err
		}
		recOpts = append(recOpts, audit.WithSink(sink))
		all = append(all, withCloser(sink))
	}
	all = append(all, WithRecorder(audit.NewRecorder(audit.NewLog(cfg.Audit.Capacity), recOpts...)))
	all = append(all, opts...)

	return NewProcessor(scanner, all...), nil
}
