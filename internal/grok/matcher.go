package grok

import (
	"regexp"
	"strconv"

	"github.com/groktime-project/groktime/internal/core"
)

// Matcher is the compiled form of one pattern definition.
type Matcher struct {
	pattern  string
	re       *regexp.Regexp
	groups   []string // field name per capture group, by group order
	slots    []int    // regexp subexpression index -> groups index, or -1
	captures []Capture
	convs    map[string]string
}

func newMatcher(pattern string, re *regexp.Regexp, groups []string, captures []Capture, convs map[string]string) *Matcher {
	slots := make([]int, re.NumSubexp()+1)
	for i, name := range re.SubexpNames() {
		slots[i] = -1
		if len(name) < 2 || name[0] != 'g' {
			continue
		}
		if g, err := strconv.Atoi(name[1:]); err == nil && g < len(groups) {
			slots[i] = g
		}
	}
	return &Matcher{
		pattern:  pattern,
		re:       re,
		groups:   groups,
		slots:    slots,
		captures: captures,
		convs:    convs,
	}
}

// Pattern returns the definition this matcher was compiled from.
func (m *Matcher) Pattern() string { return m.pattern }

// Captures returns the top-level references of the definition in order.
func (m *Matcher) Captures() []Capture {
	out := make([]Capture, len(m.captures))
	copy(out, m.captures)
	return out
}

// Fields returns the distinct field names the matcher can produce.
func (m *Matcher) Fields() []string {
	seen := make(map[string]bool, len(m.groups))
	var out []string
	for _, g := range m.groups {
		if !seen[g] {
			seen[g] = true
			out = append(out, g)
		}
	}
	return out
}

// Match reports whether the whole of text matches. Optional groups that did
// not take part in the match are left out of the result. When a field is
// captured more than once, the first participating capture wins.
func (m *Matcher) Match(text string) (core.Fields, bool) {
	idx := m.re.FindStringSubmatchIndex(text)
	if idx == nil {
		return nil, false
	}
	fields := make(core.Fields, len(m.groups))
	for i := 1; i < len(m.slots); i++ {
		if m.slots[i] < 0 || idx[2*i] < 0 {
			continue
		}
		field := m.groups[m.slots[i]]
		if _, dup := fields[field]; dup {
			continue
		}
		fields[field] = text[idx[2*i]:idx[2*i+1]]
	}
	return fields, true
}

// Convert applies :int and :float conversions. Values that fail to convert
// stay strings.
func (m *Matcher) Convert(fields core.Fields) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		switch m.convs[k] {
		case "int":
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				out[k] = n
				continue
			}
		case "float":
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				out[k] = f
				continue
			}
		}
		out[k] = v
	}
	return out
}
