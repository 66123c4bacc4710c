package action

import (
	"errors"
	"fmt"

	"github.com/Tributary-ai-services/ContextGuard/pkg/config"
	"github.com/Tributary-ai-services/ContextGuard/pkg/scan"
)

// DefaultRules maps severity tiers to actions: critical findings block,
// high and medium warn, low is logged.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "block-critical",
			Name:        "Block critical findings",
			Description: "critical severity content detected",
			Enabled:     true,
			Priority:    10,
			Conditions:  []Condition{{Field: "severity", Operator: "eq", Value: string(scan.SeverityCritical)}},
			Action:      ActionBlock,
		},
		{
			ID:          "warn-elevated",
			Name:        "Warn on high and medium findings",
			Description: "sensitive content detected",
			Enabled:     true,
			Priority:    20,
			Conditions: []Condition{{
				Field:    "severity",
				Operator: "in",
				Values:   []string{string(scan.SeverityHigh), string(scan.SeverityMedium)},
			}},
			Action: ActionWarn,
		},
		{
			ID:          "log-low",
			Name:        "Log low findings",
			Description: "low severity content detected",
			Enabled:     true,
			Priority:    30,
			Conditions:  []Condition{{Field: "severity", Operator: "eq", Value: string(scan.SeverityLow)}},
			Action:      ActionLog,
		},
	}
}

// ThresholdRules blocks findings at or above block and warns on anything
// else. It backs the guard when the rule engine is switched off.
func ThresholdRules(block scan.Severity) []Rule {
	if !block.Valid() {
		block = scan.SeverityCritical
	}
	return []Rule{
		{
			ID:          "block-threshold",
			Description: fmt.Sprintf("%s or higher severity content detected", block),
			Enabled:     true,
			Priority:    10,
			Conditions:  []Condition{{Field: "severity", Operator: "gte", Value: string(block)}},
			Action:      ActionBlock,
		},
		{
			ID:          "warn-below-threshold",
			Description: "sensitive content detected",
			Enabled:     true,
			Priority:    20,
			Conditions:  []Condition{{Field: "severity", Operator: "lt", Value: string(block)}},
			Action:      ActionWarn,
		},
	}
}

// RulesFromConfig converts rule definitions loaded from YAML.
func RulesFromConfig(defs []config.RuleDefinition) ([]Rule, error) {
	rules := make([]Rule, 0, len(defs))
	var errs []error
	for _, d := range defs {
		r := Rule{
			ID:          d.ID,
			Name:        d.Name,
			Description: d.Description,
			Enabled:     d.Enabled,
			Priority:    d.Priority,
			Action:      ParseActionType(d.Action),
			Cooldown:    d.Cooldown,
		}
		for _, c := range d.Conditions {
			r.Conditions = append(r.Conditions, Condition{
				Field:    c.Field,
				Operator: c.Operator,
				Value:    c.Value,
				Values:   c.Values,
			})
		}
		if d.RateLimit != nil {
			r.RateLimit = &RateLimit{Count: d.RateLimit.Count, Window: d.RateLimit.Window}
		}
		if err := validateRule(r); err != nil {
			errs = append(errs, err)
			continue
		}
		rules = append(rules, r)
	}
	return rules, errors.Join(errs...)
}

// RulesFromFiles collects the rules of every loaded rule file.
func RulesFromFiles(files []config.RuleFile) ([]Rule, error) {
	var defs []config.RuleDefinition
	for _, f := range files {
		defs = append(defs, f.Rules...)
	}
	return RulesFromConfig(defs)
}
