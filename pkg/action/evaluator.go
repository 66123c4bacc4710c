package action

import (
	"fmt"
	"strings"

	"github.com/Tributary-ai-services/ContextGuard/pkg/scan"
)

var supportedOperators = map[string]bool{
	"eq": true, "ne": true, "in": true, "contains": true,
	"gt": true, "gte": true, "lt": true, "lte": true,
}

var supportedFields = map[string]bool{
	"severity": true, "signature": true, "category": true, "source": true,
}

// getFieldValue extracts a string value from a finding for the given field name.
func getFieldValue(field string, finding *scan.Finding, source string) (string, error) {
	switch field {
	case "severity":
		return string(finding.Severity), nil
	case "signature":
		return finding.Signature, nil
	case "category":
		return string(finding.Category), nil
	case "source":
		return source, nil
	default:
		return "", fmt.Errorf("unsupported field: %s", field)
	}
}

// evaluateCondition checks if a single condition matches a finding.
func evaluateCondition(cond Condition, finding *scan.Finding, source string) bool {
	fieldVal, err := getFieldValue(cond.Field, finding, source)
	if err != nil {
		return false
	}

	switch cond.Operator {
	case "eq":
		return strings.EqualFold(fieldVal, cond.Value)
	case "ne":
		return !strings.EqualFold(fieldVal, cond.Value)
	case "in":
		return evaluateIn(fieldVal, cond.Values)
	case "contains":
		return strings.Contains(strings.ToLower(fieldVal), strings.ToLower(cond.Value))
	case "gt", "gte", "lt", "lte":
		if cond.Field != "severity" {
			return false
		}
		return compareSeverity(cond.Operator, fieldVal, cond.Value)
	default:
		return false
	}
}

// evaluateIn checks if fieldVal is one of the given values (case-insensitive).
func evaluateIn(fieldVal string, values []string) bool {
	for _, v := range values {
		if strings.EqualFold(fieldVal, v) {
			return true
		}
	}
	return false
}

// compareSeverity orders severities by tier. An unknown condition value
// never matches.
func compareSeverity(op, fieldVal, condValue string) bool {
	fv := scan.ParseSeverity(fieldVal).Value()
	cv := scan.ParseSeverity(condValue).Value()
	if cv == 0 {
		return false
	}
	switch op {
	case "gt":
		return fv > cv
	case "gte":
		return fv >= cv
	case "lt":
		return fv < cv
	case "lte":
		return fv <= cv
	}
	return false
}

// validateRule reports configuration errors that would make a rule
// silently never match.
func validateRule(rule Rule) error {
	if rule.ID == "" {
		return fmt.Errorf("rule id is required")
	}
	if !rule.Action.Valid() {
		return fmt.Errorf("rule %s: unknown action %q", rule.ID, rule.Action)
	}
	for i, cond := range rule.Conditions {
		if !supportedFields[cond.Field] {
			return fmt.Errorf("rule %s: condition %d: unsupported field %q", rule.ID, i, cond.Field)
		}
		if !supportedOperators[cond.Operator] {
			return fmt.Errorf("rule %s: condition %d: unsupported operator %q", rule.ID, i, cond.Operator)
		}
		switch cond.Operator {
		case "in":
			if len(cond.Values) == 0 {
				return fmt.Errorf("rule %s: condition %d: operator in requires values", rule.ID, i)
			}
		case "gt", "gte", "lt", "lte":
			if cond.Field != "severity" {
				return fmt.Errorf("rule %s: condition %d: operator %s only applies to severity", rule.ID, i, cond.Operator)
			}
			if !scan.ParseSeverity(cond.Value).Valid() {
				return fmt.Errorf("rule %s: condition %d: unknown severity %q", rule.ID, i, cond.Value)
			}
		}
	}
	if rule.RateLimit != nil && (rule.RateLimit.Count < 0 || rule.RateLimit.Window < 0) {
		return fmt.Errorf("rule %s: rate limit must be non-negative", rule.ID)
	}
	return nil
}
