package grok

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groktime-project/groktime/internal/core"
)

const (
	broadRule  = `%{WORD:proc} %{GREEDYDATA:args}`
	narrowRule = `%{WORD:login} %{WORD:host}`
)

func TestNewRuleSet_CompilesInOrder(t *testing.T) {
	rs, err := NewRuleSet(newTestCompiler(), []string{sshdRule, accessRule})
	require.NoError(t, err)
	assert.Equal(t, 2, rs.Len())
	assert.Equal(t, []string{sshdRule, accessRule}, rs.Patterns())
}

func TestNewRuleSet_BadStoredRule(t *testing.T) {
	_, err := NewRuleSet(newTestCompiler(), []string{sshdRule, `%{BOGUS:host}`})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rule 1")
	assert.ErrorIs(t, err, core.ErrCompile)
}

func TestTryMatch_FirstMatchWins(t *testing.T) {
	rs, err := NewRuleSet(newTestCompiler(), []string{broadRule, narrowRule})
	require.NoError(t, err)

	fields, idx, ok := rs.TryMatchRule("alice box")
	require.True(t, ok)
	assert.Equal(t, 0, idx)
	assert.Equal(t, core.Fields{"proc": "alice", "args": "box"}, fields)
}

func TestTryMatch_NoMatch(t *testing.T) {
	rs, err := NewRuleSet(newTestCompiler(), []string{sshdRule})
	require.NoError(t, err)

	fields, ok := rs.TryMatch(accessLine)
	assert.False(t, ok)
	assert.Nil(t, fields)
}

func TestTryMatch_EmptyRuleSet(t *testing.T) {
	rs, err := NewRuleSet(newTestCompiler(), nil)
	require.NoError(t, err)
	_, idx, ok := rs.TryMatchRule(sshdLine)
	assert.False(t, ok)
	assert.Equal(t, -1, idx)
}

func TestExtend_MakesRuleUsable(t *testing.T) {
	c := newTestCompiler()
	rs, err := NewRuleSet(c, []string{sshdRule})
	require.NoError(t, err)

	_, ok := rs.TryMatch(accessLine)
	require.False(t, ok)

	m, err := c.Compile(accessRule)
	require.NoError(t, err)
	rs.Extend(m)

	fields, idx, ok := rs.TryMatchRule(accessLine)
	require.True(t, ok)
	assert.Equal(t, 1, idx)
	assert.Equal(t, "200", fields["status_code"])
	assert.Same(t, m, rs.Rule(1))
}

func TestTryMatch_KeysInVocabulary(t *testing.T) {
	vocab := core.DefaultVocabulary()
	rs, err := NewRuleSet(NewCompiler(vocab), []string{sshdRule, accessRule, broadRule})
	require.NoError(t, err)

	for _, line := range []string{sshdLine, accessLine, "cron job started"} {
		fields, ok := rs.TryMatch(line)
		require.True(t, ok, line)
		for k := range fields {
			assert.True(t, vocab.Contains(k), "field %q not in vocabulary", k)
		}
	}
}

func TestTryMatch_FirstMatchWinsProperty(t *testing.T) {
	rs, err := NewRuleSet(newTestCompiler(), []string{broadRule, narrowRule})
	require.NoError(t, err)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("earlier rule decides the capture shape", prop.ForAll(
		func(a, b string) bool {
			fields, idx, ok := rs.TryMatchRule(a + " " + b)
			if !ok || idx != 0 {
				return false
			}
			_, hasLogin := fields["login"]
			return fields["proc"] == a && fields["args"] == b && !hasLogin
		},
		gen.Identifier(),
		gen.Identifier(),
	))

	properties.TestingRun(t)
}
