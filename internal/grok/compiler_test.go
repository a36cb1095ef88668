package grok

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groktime-project/groktime/internal/core"
)

const (
	sshdRule = `%{SYSLOGTIMESTAMP:timestamp} %{HOSTNAME:host} %{WORD:proc}\[%{INT:pid}\]: %{WORD:login_status} password for %{USERNAME:login} from %{IP:src_ip} port %{INT:src_port} ssh2`
	sshdLine = `Oct 10 13:55:36 server1 sshd[1234]: Accepted password for alice from 192.168.1.10 port 52144 ssh2`

	accessRule = `%{IP:src_ip} - - \[%{HTTPDATE:timestamp}\] "%{WORD} %{URIPATHPARAM:uri} HTTP/%{NUMBER}" %{INT:status_code} %{INT:bytes_sent}`
	accessLine = `192.168.1.20 - - [10/Oct/2023:13:55:36 +0000] "GET /index.html?lang=en HTTP/1.1" 200 2326`
)

func newTestCompiler(opts ...Option) *Compiler {
	return NewCompiler(core.DefaultVocabulary(), opts...)
}

// ─── Matching ────────────────────────────────────────────────────────────────

func TestCompile_SSHDLine(t *testing.T) {
	m, err := newTestCompiler().Compile(sshdRule)
	require.NoError(t, err)

	fields, ok := m.Match(sshdLine)
	require.True(t, ok)
	assert.Equal(t, core.Fields{
		"timestamp":    "Oct 10 13:55:36",
		"host":         "server1",
		"proc":         "sshd",
		"pid":          "1234",
		"login_status": "Accepted",
		"login":        "alice",
		"src_ip":       "192.168.1.10",
		"src_port":     "52144",
	}, fields)
}

func TestCompile_AccessLine(t *testing.T) {
	m, err := newTestCompiler().Compile(accessRule)
	require.NoError(t, err)

	fields, ok := m.Match(accessLine)
	require.True(t, ok)
	assert.Equal(t, core.Fields{
		"src_ip":      "192.168.1.20",
		"timestamp":   "10/Oct/2023:13:55:36 +0000",
		"uri":         "/index.html?lang=en",
		"status_code": "200",
		"bytes_sent":  "2326",
	}, fields)
}

func TestCompile_AnchoredToWholeLine(t *testing.T) {
	m, err := newTestCompiler().Compile(`%{INT:pid}`)
	require.NoError(t, err)

	_, ok := m.Match("pid 123")
	assert.False(t, ok, "substring match must not count")

	fields, ok := m.Match("123")
	require.True(t, ok)
	assert.Equal(t, "123", fields["pid"])
}

func TestMatch_NoCapturesIsEmptyNotMiss(t *testing.T) {
	m, err := newTestCompiler().Compile(`session opened for %{WORD}`)
	require.NoError(t, err)

	fields, ok := m.Match("session opened for root")
	require.True(t, ok)
	assert.NotNil(t, fields)
	assert.Empty(t, fields)
}

func TestMatch_OptionalGroupAbsent(t *testing.T) {
	m, err := newTestCompiler().Compile(`%{WORD:proc}(?: \[%{INT:pid}\])?`)
	require.NoError(t, err)

	fields, ok := m.Match("sshd")
	require.True(t, ok)
	assert.Equal(t, core.Fields{"proc": "sshd"}, fields)

	fields, ok = m.Match("sshd [7]")
	require.True(t, ok)
	assert.Equal(t, core.Fields{"proc": "sshd", "pid": "7"}, fields)
}

func TestMatch_DuplicateFieldFirstWins(t *testing.T) {
	m, err := newTestCompiler().Compile(`%{WORD:host} %{WORD:host}`)
	require.NoError(t, err)

	fields, ok := m.Match("alpha beta")
	require.True(t, ok)
	assert.Equal(t, "alpha", fields["host"])
	assert.Equal(t, []string{"host"}, m.Fields())
}

func TestMatcher_Convert(t *testing.T) {
	m, err := newTestCompiler().Compile(`%{INT:pid:int} %{NUMBER:duration:float} %{WORD:proc}`)
	require.NoError(t, err)

	fields, ok := m.Match("42 0.25 cron")
	require.True(t, ok)
	values := m.Convert(fields)
	assert.Equal(t, int64(42), values["pid"])
	assert.Equal(t, 0.25, values["duration"])
	assert.Equal(t, "cron", values["proc"])
}

func TestMatcher_Captures(t *testing.T) {
	def := `%{WORD:proc}: %{GREEDYDATA:args}`
	m, err := newTestCompiler().Compile(def)
	require.NoError(t, err)

	caps := m.Captures()
	require.Len(t, caps, 2)
	assert.Equal(t, "WORD", caps[0].Type)
	assert.Equal(t, "proc", caps[0].Field)
	assert.Equal(t, "GREEDYDATA", caps[1].Type)
	assert.Equal(t, len(def), caps[1].End)
	assert.Equal(t, def, m.Pattern())
}

// ─── Compile errors ──────────────────────────────────────────────────────────

func TestCompile_Errors(t *testing.T) {
	cases := map[string]string{
		"empty":            "   ",
		"unknown type":     `%{NOSUCHTHING:host}`,
		"out of vocab":     `%{WORD:method} %{URIPATH:uri}`,
		"bad field name":   `%{WORD:Host Name}`,
		"bad conversion":   `%{INT:pid:bool}`,
		"conv no name":     `%{INT::int}`,
		"regexp syntax":    `%{INT:pid} (unclosed`,
		"unterminated ref": `%{INT:pid`,
	}
	c := newTestCompiler()
	for name, def := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := c.Compile(def)
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrCompile), "want CompileError, got %T", err)
			var ce *core.CompileError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, def, ce.Pattern)
		})
	}
}

func TestCompile_RecursiveLibrary(t *testing.T) {
	c := newTestCompiler(WithPatterns(map[string]string{
		"LOOP_A": `a%{LOOP_B}`,
		"LOOP_B": `b%{LOOP_A}`,
	}))
	_, err := c.Compile(`%{LOOP_A:args}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recursive")
}

func TestCompile_CustomPattern(t *testing.T) {
	c := newTestCompiler(WithPatterns(map[string]string{"SESSIONID": `[0-9a-f]{8}`}))
	m, err := c.Compile(`session %{SESSIONID:session_id}`)
	require.NoError(t, err)
	fields, ok := m.Match("session deadbeef")
	require.True(t, ok)
	assert.Equal(t, "deadbeef", fields["session_id"])
}

func TestBaseLibrary_AllCompile(t *testing.T) {
	c := newTestCompiler()
	for _, name := range PatternNames() {
		_, err := c.Compile("%{" + name + "}")
		assert.NoError(t, err, name)
	}
}

func TestCompile_Deterministic(t *testing.T) {
	c := newTestCompiler()
	a, err := c.Compile(sshdRule)
	require.NoError(t, err)
	b, err := c.Compile(sshdRule)
	require.NoError(t, err)

	fa, _ := a.Match(sshdLine)
	fb, _ := b.Match(sshdLine)
	assert.Equal(t, fa, fb)
}
