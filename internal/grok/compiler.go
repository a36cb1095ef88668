package grok

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/groktime-project/groktime/internal/core"
)

// maxDepth bounds library expansion; real patterns nest a handful of levels.
const maxDepth = 32

// %{TYPE}, %{TYPE:field} or %{TYPE:field:conv}
var referenceRe = regexp.MustCompile(`%\{(\w+)(?::([^:}]*))?(?::([^:}]*))?\}`)

var fieldNameRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Capture is one top-level %{...} reference of a definition.
type Capture struct {
	Type  string
	Field string // empty for unnamed references
	Conv  string // "", "int" or "float"
	Start int    // byte offsets of the reference within the definition
	End   int
}

// Compiler turns grok definitions into Matchers. It is safe to reuse and
// holds no state beyond its library and vocabulary.
type Compiler struct {
	library map[string]string
	vocab   *core.Vocabulary
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithPatterns adds or overrides library entries.
func WithPatterns(extra map[string]string) Option {
	return func(c *Compiler) {
		for k, v := range extra {
			c.library[k] = v
		}
	}
}

// NewCompiler returns a compiler that only accepts field names from vocab.
func NewCompiler(vocab core.Vocabulary, opts ...Option) *Compiler {
	c := &Compiler{
		library: make(map[string]string, len(basePatterns)),
		vocab:   &vocab,
	}
	for k, v := range basePatterns {
		c.library[k] = v
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile builds a Matcher for def. The resulting expression must match a
// whole line, not a substring of it.
func (c *Compiler) Compile(def string) (*Matcher, error) {
	if strings.TrimSpace(def) == "" {
		return nil, &core.CompileError{Pattern: def, Reason: "empty pattern"}
	}

	var (
		b        strings.Builder
		captures []Capture
		groups   []string
		convs    = make(map[string]string)
		last     int
	)
	for _, loc := range referenceRe.FindAllStringSubmatchIndex(def, -1) {
		b.WriteString(def[last:loc[0]])
		last = loc[1]

		capt := Capture{Type: def[loc[2]:loc[3]], Start: loc[0], End: loc[1]}
		if loc[4] >= 0 {
			capt.Field = def[loc[4]:loc[5]]
		}
		if loc[6] >= 0 {
			capt.Conv = def[loc[6]:loc[7]]
		}

		body, err := c.expand(capt.Type, nil)
		if err != nil {
			return nil, &core.CompileError{Pattern: def, Reason: err.Error()}
		}

		if capt.Field == "" {
			if capt.Conv != "" {
				return nil, &core.CompileError{Pattern: def, Reason: "conversion without field name"}
			}
			b.WriteString("(?:" + body + ")")
			captures = append(captures, capt)
			continue
		}

		if err := c.checkField(capt.Field); err != nil {
			return nil, &core.CompileError{Pattern: def, Reason: err.Error()}
		}
		switch capt.Conv {
		case "", "int", "float":
		default:
			return nil, &core.CompileError{Pattern: def, Reason: fmt.Sprintf("unknown conversion %q", capt.Conv)}
		}
		if capt.Conv != "" {
			convs[capt.Field] = capt.Conv
		}

		// Group names are positional so one field may be captured twice.
		fmt.Fprintf(&b, "(?P<g%d>%s)", len(groups), body)
		groups = append(groups, capt.Field)
		captures = append(captures, capt)
	}
	b.WriteString(def[last:])

	if strings.Contains(b.String(), "%{") {
		return nil, &core.CompileError{Pattern: def, Reason: "malformed %{...} reference"}
	}

	re, err := regexp.Compile("^(?:" + b.String() + ")$")
	if err != nil {
		return nil, &core.CompileError{Pattern: def, Reason: "invalid regular expression", Err: err}
	}

	return newMatcher(def, re, groups, captures, convs), nil
}

// expand resolves a library entry recursively. Nested references never capture.
func (c *Compiler) expand(name string, stack []string) (string, error) {
	for _, s := range stack {
		if s == name {
			return "", fmt.Errorf("recursive pattern %s", strings.Join(append(stack, name), " -> "))
		}
	}
	if len(stack) >= maxDepth {
		return "", fmt.Errorf("pattern %s nests deeper than %d", name, maxDepth)
	}
	body, ok := c.library[name]
	if !ok {
		return "", fmt.Errorf("unknown capture type %s", name)
	}

	var expandErr error
	out := referenceRe.ReplaceAllStringFunc(body, func(ref string) string {
		if expandErr != nil {
			return ""
		}
		sub := referenceRe.FindStringSubmatch(ref)
		inner, err := c.expand(sub[1], append(stack, name))
		if err != nil {
			expandErr = err
			return ""
		}
		return "(?:" + inner + ")"
	})
	if expandErr != nil {
		return "", expandErr
	}
	return out, nil
}

func (c *Compiler) checkField(name string) error {
	if !fieldNameRe.MatchString(name) {
		return fmt.Errorf("invalid field name %q", name)
	}
	if c.vocab != nil && !c.vocab.Contains(name) {
		return fmt.Errorf("field %q is not in the vocabulary", name)
	}
	return nil
}
