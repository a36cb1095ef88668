package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groktime-project/groktime/internal/core"
)

func collect(r *Reader) []core.LogLine {
	var out []core.LogLine
	for {
		line, ok := r.Next()
		if !ok {
			return out
		}
		out = append(out, line)
	}
}

func TestReader_IndicesAndTrim(t *testing.T) {
	r := NewReader(strings.NewReader("first  \r\n\nthird\t\nlast"))
	lines := collect(r)
	require.NoError(t, r.Err())
	assert.Equal(t, []core.LogLine{
		{Index: 0, Text: "first"},
		{Index: 1, Text: ""},
		{Index: 2, Text: "third"},
		{Index: 3, Text: "last"},
	}, lines)
}

func TestReader_KeepsLeadingWhitespace(t *testing.T) {
	lines := collect(NewReader(strings.NewReader("  indented\n")))
	require.Len(t, lines, 1)
	assert.Equal(t, "  indented", lines[0].Text)
}

func TestReader_Empty(t *testing.T) {
	r := NewReader(strings.NewReader(""))
	_, ok := r.Next()
	assert.False(t, ok)
	assert.NoError(t, r.Err())
}

func TestReader_LineTooLong(t *testing.T) {
	long := strings.Repeat("x", maxLineBytes+10)
	r := NewReader(strings.NewReader("ok\n" + long + "\n"))
	lines := collect(r)
	assert.Len(t, lines, 1)
	require.Error(t, r.Err())
	assert.Contains(t, r.Err().Error(), "reading line 1")

	// stays exhausted
	_, ok := r.Next()
	assert.False(t, ok)
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.log")
	require.NoError(t, os.WriteFile(path, []byte("a\nb\n"), 0644))

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Len(t, collect(f.Reader), 2)
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.log"))
	assert.Error(t, err)
}
