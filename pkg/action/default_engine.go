package action

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// defaultEngine is the standard implementation of the Engine interface.
type defaultEngine struct {
	mu          sync.RWMutex
	rules       []Rule
	rateLimiter *rateLimiter
	config      *EngineConfig
	now         func() time.Time

	cooldownMu sync.Mutex
	cooldowns  map[string]time.Time // source:ruleID -> last match time
}

// NewEngine creates a new policy engine with the given configuration.
// The engine starts with DefaultRules loaded.
func NewEngine(config *EngineConfig) Engine {
	return newEngine(config, time.Now)
}

func newEngine(config *EngineConfig, now func() time.Time) *defaultEngine {
	if config == nil {
		config = DefaultEngineConfig()
	}
	if !config.DefaultAction.Valid() {
		config.DefaultAction = ActionLog
	}
	e := &defaultEngine{
		rateLimiter: newRateLimiter(now),
		cooldowns:   make(map[string]time.Time),
		config:      config,
		now:         now,
	}
	e.rules = sortRules(DefaultRules())
	return e
}

// LoadRules validates and loads the given rules into the engine, replacing
// any existing rules. Rules are sorted by priority (ascending -- lower
// number = higher priority). On error the previous rules stay in place.
func (e *defaultEngine) LoadRules(rules []Rule) error {
	var errs []error
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if err := validateRule(r); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[r.ID] {
			errs = append(errs, fmt.Errorf("duplicate rule id %s", r.ID))
		}
		seen[r.ID] = true
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	sorted := sortRules(rules)

	e.mu.Lock()
	e.rules = sorted
	e.mu.Unlock()

	e.cooldownMu.Lock()
	e.cooldowns = make(map[string]time.Time)
	e.cooldownMu.Unlock()
	return nil
}

// Rules returns a copy of the loaded rules in evaluation order.
func (e *defaultEngine) Rules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Evaluate evaluates all enabled rules against the findings in the request.
// The strongest action among matching rules wins; ties keep the rule with
// the better priority as the reason. A rule inside its cooldown or over its
// rate limit still applies its action and is marked throttled.
func (e *defaultEngine) Evaluate(ctx context.Context, req EvaluateRequest) (*Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(req.Findings) == 0 {
		return &Decision{Action: ActionAllow, Reason: "no findings"}, nil
	}
	if !e.config.Enabled {
		return &Decision{Action: e.config.DefaultAction, Reason: "policy engine disabled"}, nil
	}

	e.mu.RLock()
	rules := e.rules
	e.mu.RUnlock()

	decision := &Decision{
		Action:       ActionAllow,
		MatchedRules: make([]MatchedRule, 0),
	}
	var reason *Rule

	for i := range rules {
		rule := &rules[i]
		if !rule.Enabled {
			continue
		}

		// Check if ALL conditions match ANY finding
		sigs := matchRule(rule, req)
		if len(sigs) == 0 {
			continue
		}

		// Cooldowns and rate limits mute repeat notices, not the action.
		key := req.Source + ":" + rule.ID
		throttled := e.isInCooldown(key, rule.Cooldown) || !e.allowRate(key, rule.RateLimit)
		if !throttled {
			e.startCooldown(key, rule.Cooldown)
		}

		decision.MatchedRules = append(decision.MatchedRules, MatchedRule{
			RuleID:     rule.ID,
			Action:     rule.Action,
			Signatures: sigs,
			Throttled:  throttled,
		})
		if rule.Action.Strength() > decision.Action.Strength() {
			decision.Action = rule.Action
			reason = rule
		}
	}

	if len(decision.MatchedRules) == 0 {
		decision.Action = e.config.DefaultAction
		decision.Reason = "no rule matched"
		return decision, nil
	}

	if reason != nil {
		desc := reason.Description
		if desc == "" {
			desc = reason.Name
		}
		decision.Reason = fmt.Sprintf("rule %s: %s", reason.ID, desc)
	}
	return decision, nil
}

// Close releases resources held by the engine.
func (e *defaultEngine) Close() error {
	e.rateLimiter.stop()
	return nil
}

// matchRule checks if ALL conditions of a rule match at least one finding.
// Returns the distinct signature names of the findings that matched.
func matchRule(rule *Rule, req EvaluateRequest) []string {
	var matched []string
	seen := make(map[string]bool)

	for i := range req.Findings {
		finding := &req.Findings[i]
		allMatch := true
		for _, cond := range rule.Conditions {
			if !evaluateCondition(cond, finding, req.Source) {
				allMatch = false
				break
			}
		}
		if allMatch && !seen[finding.Signature] {
			seen[finding.Signature] = true
			matched = append(matched, finding.Signature)
		}
	}

	return matched
}

// allowRate applies a rule's rate limit. Zero count or window fall back to
// the engine-wide settings.
func (e *defaultEngine) allowRate(key string, rl *RateLimit) bool {
	if rl == nil || !e.config.RateLimitEnabled {
		return true
	}
	count, window := rl.Count, rl.Window
	if count <= 0 {
		count = e.config.RateLimitMax
	}
	if window <= 0 {
		window = e.config.RateLimitWindow
	}
	return e.rateLimiter.Allow(key, count, window)
}

// isInCooldown checks if a rule is currently in its cooldown period.
func (e *defaultEngine) isInCooldown(key string, cooldown time.Duration) bool {
	if cooldown <= 0 {
		return false
	}
	e.cooldownMu.Lock()
	defer e.cooldownMu.Unlock()
	last, ok := e.cooldowns[key]
	if !ok {
		return false
	}
	return e.now().Sub(last) < cooldown
}

func (e *defaultEngine) startCooldown(key string, cooldown time.Duration) {
	if cooldown <= 0 {
		return
	}
	e.cooldownMu.Lock()
	e.cooldowns[key] = e.now()
	e.cooldownMu.Unlock()
}

func sortRules(rules []Rule) []Rule {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	return sorted
}
