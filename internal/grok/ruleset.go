package grok

import (
	"fmt"

	"github.com/groktime-project/groktime/internal/core"
)

// RuleSet is the ordered list of compiled rules. Order is match priority:
// the earliest rule that matches a line decides its fields.
//
// A RuleSet is not safe for concurrent use. It is owned by one driver that
// resolves lines one at a time and extends the set between lines.
type RuleSet struct {
	matchers []*Matcher
}

// NewRuleSet compiles defs in order. A stored rule that does not compile is
// an error: skipping it would silently change the priority of the rest.
func NewRuleSet(c *Compiler, defs []string) (*RuleSet, error) {
	rs := &RuleSet{matchers: make([]*Matcher, 0, len(defs))}
	for i, def := range defs {
		m, err := c.Compile(def)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		rs.matchers = append(rs.matchers, m)
	}
	return rs, nil
}

// TryMatch returns the fields of the first matching rule.
func (rs *RuleSet) TryMatch(text string) (core.Fields, bool) {
	fields, _, ok := rs.TryMatchRule(text)
	return fields, ok
}

// TryMatchRule is TryMatch that also reports the winning rule's index.
func (rs *RuleSet) TryMatchRule(text string) (core.Fields, int, bool) {
	for i, m := range rs.matchers {
		if fields, ok := m.Match(text); ok {
			return fields, i, true
		}
	}
	return nil, -1, false
}

// Extend appends m as the lowest-priority rule.
func (rs *RuleSet) Extend(m *Matcher) {
	rs.matchers = append(rs.matchers, m)
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int { return len(rs.matchers) }

// Rule returns the matcher at index i.
func (rs *RuleSet) Rule(i int) *Matcher { return rs.matchers[i] }

// Patterns returns the rule definitions in priority order.
func (rs *RuleSet) Patterns() []string {
	out := make([]string, len(rs.matchers))
	for i, m := range rs.matchers {
		out[i] = m.Pattern()
	}
	return out
}
