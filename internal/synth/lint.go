package synth

import (
	"strings"

	"github.com/groktime-project/groktime/internal/core"
	"github.com/groktime-project/groktime/internal/grok"
)

// Lint rejects candidates that compile but would make poor rules: ones that
// capture nothing, and ones with GREEDYDATA before the end of the pattern.
// Failures are *core.CompileError so they count like any other bad candidate.
func Lint(m *grok.Matcher) error {
	def := m.Pattern()
	named := false
	for _, c := range m.Captures() {
		if c.Field != "" {
			named = true
		}
		if c.Type == "GREEDYDATA" && strings.Trim(def[c.End:], ")?*$ ") != "" {
			return &core.CompileError{Pattern: def, Reason: "lint: GREEDYDATA before the end of the pattern"}
		}
	}
	if !named {
		return &core.CompileError{Pattern: def, Reason: "lint: no named capture"}
	}
	return nil
}
