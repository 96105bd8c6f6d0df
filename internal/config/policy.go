package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ModuleRule configures one capability namespace.
type ModuleRule struct {
	Name      string `yaml:"name"`
	Deny      bool   `yaml:"deny,omitempty"`
	TimeoutMS int    `yaml:"timeout_ms,omitempty"`
}

// ModulePolicy is the top-level YAML policy. Namespaces without a rule are
// allowed with the dispatcher default timeout.
type ModulePolicy struct {
	Modules []ModuleRule `yaml:"modules"`

	byName map[string]ModuleRule
}

// LoadPolicy reads and validates a module policy YAML file. An empty path
// yields an allow-everything policy.
func LoadPolicy(path string) (*ModulePolicy, error) {
	policy := &ModulePolicy{byName: make(map[string]ModuleRule)}
	if path == "" {
		return policy, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("module policy: %w", err)
	}
	if err := yaml.Unmarshal(data, policy); err != nil {
		return nil, fmt.Errorf("module policy: %w", err)
	}

	policy.byName = make(map[string]ModuleRule, len(policy.Modules))
	for i, rule := range policy.Modules {
		if rule.Name == "" {
			return nil, fmt.Errorf("module policy: rule[%d] missing name", i)
		}
		if _, dup := policy.byName[rule.Name]; dup {
			return nil, fmt.Errorf("module policy: duplicate rule for %q", rule.Name)
		}
		if rule.TimeoutMS < 0 {
			return nil, fmt.Errorf("module policy: rule %q negative timeout", rule.Name)
		}
		policy.byName[rule.Name] = rule
	}
	return policy, nil
}

// Allowed reports whether a capability namespace may be dispatched.
func (p *ModulePolicy) Allowed(namespace string) bool {
	rule, ok := p.byName[namespace]
	if !ok {
		return true
	}
	return !rule.Deny
}

// Timeout returns the namespace's handler timeout override, or 0 for the
// dispatcher default.
func (p *ModulePolicy) Timeout(namespace string) time.Duration {
	rule, ok := p.byName[namespace]
	if !ok || rule.TimeoutMS == 0 {
		return 0
	}
	return time.Duration(rule.TimeoutMS) * time.Millisecond
}
