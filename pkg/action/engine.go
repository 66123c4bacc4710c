// Package action decides how to respond to a set of findings using
// priority-ordered policy rules.
package action

import (
	"context"
	"strings"
	"time"

	"github.com/Tributary-ai-services/ContextGuard/pkg/config"
	"github.com/Tributary-ai-services/ContextGuard/pkg/scan"
)

// Engine evaluates policy rules against findings
type Engine interface {
	// Evaluate returns the strongest action demanded by the matching rules
	Evaluate(ctx context.Context, req EvaluateRequest) (*Decision, error)

	// LoadRules replaces the rule set
	LoadRules(rules []Rule) error

	// Rules returns the loaded rules in evaluation order
	Rules() []Rule

	// Close releases resources
	Close() error
}

// EvaluateRequest contains inputs for rule evaluation
type EvaluateRequest struct {
	Findings []scan.Finding
	Source   string
}

// Decision is the outcome of evaluating a request
type Decision struct {
	Action       ActionType    `json:"action"`
	MatchedRules []MatchedRule `json:"matched_rules,omitempty"`
	Reason       string        `json:"reason,omitempty"`
}

// Blocked reports whether the content must not be sent as is.
func (d *Decision) Blocked() bool {
	return d != nil && d.Action == ActionBlock
}

// NeedsPrompt reports whether the user has to choose how to proceed.
func (d *Decision) NeedsPrompt() bool {
	return d != nil && d.Action.Strength() >= ActionWarn.Strength()
}

// Throttled reports whether every matched rule was inside its cooldown or
// over its rate limit, so the decision repeats one already announced.
func (d *Decision) Throttled() bool {
	if d == nil || len(d.MatchedRules) == 0 {
		return false
	}
	for _, m := range d.MatchedRules {
		if !m.Throttled {
			return false
		}
	}
	return true
}

// MatchedRule represents a rule that matched findings
type MatchedRule struct {
	RuleID     string     `json:"rule_id"`
	Action     ActionType `json:"action"`
	Signatures []string   `json:"signatures"`
	Throttled  bool       `json:"throttled,omitempty"`
}

// ActionType is the response a rule demands
type ActionType string

const (
	ActionAllow ActionType = "allow"
	ActionLog   ActionType = "log"
	ActionWarn  ActionType = "warn"
	ActionBlock ActionType = "block"
)

// Strength orders actions; the strongest matching action wins.
func (a ActionType) Strength() int {
	switch a {
	case ActionAllow:
		return 1
	case ActionLog:
		return 2
	case ActionWarn:
		return 3
	case ActionBlock:
		return 4
	default:
		return 0
	}
}

// Valid reports whether a is a known action.
func (a ActionType) Valid() bool {
	return a.Strength() > 0
}

// ParseActionType converts a case-insensitive action name.
func ParseActionType(s string) ActionType {
	return ActionType(strings.ToLower(strings.TrimSpace(s)))
}

// Rule defines a policy rule
type Rule struct {
	ID          string        `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description" yaml:"description"`
	Enabled     bool          `json:"enabled" yaml:"enabled"`
	Priority    int           `json:"priority" yaml:"priority"` // Lower = higher priority
	Conditions  []Condition   `json:"conditions" yaml:"conditions"`
	Action      ActionType    `json:"action" yaml:"action"`
	RateLimit   *RateLimit    `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
	Cooldown    time.Duration `json:"cooldown" yaml:"cooldown"`
}

// Condition defines a rule condition
type Condition struct {
	Field    string   `json:"field" yaml:"field"`       // "severity", "signature", "category", "source"
	Operator string   `json:"operator" yaml:"operator"` // "eq", "ne", "in", "contains", "gt", "gte", "lt", "lte"
	Value    string   `json:"value" yaml:"value"`
	Values   []string `json:"values,omitempty" yaml:"values,omitempty"` // For "in" operator
}

// RateLimit caps how many times a rule may fire within a window
type RateLimit struct {
	Count  int           `json:"count" yaml:"count"`
	Window time.Duration `json:"window" yaml:"window"`
}

// EngineConfig configures the policy engine
type EngineConfig struct {
	Enabled bool `json:"enabled"`

	// DefaultAction applies when findings exist but no rule matched
	DefaultAction ActionType `json:"default_action"`

	// Rate limiting. Window and Max fill in rule limits that leave them unset.
	RateLimitEnabled bool          `json:"rate_limit_enabled"`
	RateLimitWindow  time.Duration `json:"rate_limit_window"`
	RateLimitMax     int           `json:"rate_limit_max"`
}

// DefaultEngineConfig returns default engine configuration
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		Enabled:          true,
		DefaultAction:    ActionLog,
		RateLimitEnabled: true,
		RateLimitWindow:  time.Minute,
		RateLimitMax:     1000,
	}
}

// ConfigFromSettings converts the actions section of the application config.
func ConfigFromSettings(cfg config.ActionsConfig) *EngineConfig {
	ec := DefaultEngineConfig()
	ec.Enabled = cfg.Enabled
	ec.RateLimitEnabled = cfg.RateLimit.Enabled
	if cfg.RateLimit.Window > 0 {
		ec.RateLimitWindow = cfg.RateLimit.Window
	}
	if cfg.RateLimit.MaxActions > 0 {
		ec.RateLimitMax = cfg.RateLimit.MaxActions
	}
	return ec
}
