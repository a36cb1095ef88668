package rulestore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groktime-project/groktime/internal/core"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	return NewFileStore(filepath.Join(t.TempDir(), "patterns.json"), zerolog.Nop())
}

// ─── Load ────────────────────────────────────────────────────────────────────

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	s := newTestStore(t)
	defs, err := s.Load()
	require.NoError(t, err)
	assert.NotNil(t, defs)
	assert.Empty(t, defs)
}

func TestLoad_EmptyFileIsEmpty(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("\n"), 0644))
	defs, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, defs)
}

func TestLoad_MissingPatternsKey(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"owner":"ops"}`), 0644))
	defs, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, defs)
}

func TestLoad_Corrupt(t *testing.T) {
	cases := map[string]string{
		"not json":      `{"patterns": [`,
		"wrong type":    `{"patterns": "%{WORD:proc}"}`,
		"non-string":    `{"patterns": [1, 2]}`,
		"top-level arr": `["%{WORD:proc}"]`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			s := newTestStore(t)
			require.NoError(t, os.WriteFile(s.Path(), []byte(content), 0644))
			_, err := s.Load()
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrRuleStoreIO)
			assert.True(t, core.IsFatal(err))
		})
	}
}

// ─── Append ──────────────────────────────────────────────────────────────────

func TestAppend_CreatesFileAndReturnsIndex(t *testing.T) {
	s := newTestStore(t)

	idx, err := s.Append(`%{WORD:proc}`)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	idx, err = s.Append(`%{INT:pid}`)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	defs, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{`%{WORD:proc}`, `%{INT:pid}`}, defs)
}

func TestAppend_FileFormat(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Append(`<%{INT:pid}> & %{WORD:proc}`)
	require.NoError(t, err)

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "{\n    \"patterns\": [\n        ")
	assert.Contains(t, text, `<%{INT:pid}> & %{WORD:proc}`, "HTML characters must not be escaped")
}

func TestAppend_PreservesOtherKeys(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"owner":"ops","patterns":["%{WORD:proc}"]}`), 0644))

	_, err := s.Append(`%{INT:pid}`)
	require.NoError(t, err)

	var doc map[string]interface{}
	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "ops", doc["owner"])
	assert.Len(t, doc["patterns"], 2)
}

func TestAppend_NoTempFilesLeft(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 3; i++ {
		_, err := s.Append(`%{WORD:proc}`)
		require.NoError(t, err)
	}
	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "patterns.json", entries[0].Name())
}

func TestAppend_UnwritableDirIsFatal(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}
	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0555))
	t.Cleanup(func() { os.Chmod(dir, 0755) })

	s := NewFileStore(filepath.Join(dir, "patterns.json"), zerolog.Nop())
	_, err := s.Append(`%{WORD:proc}`)
	require.Error(t, err)
	assert.True(t, core.IsFatal(err))
}

func TestAppend_KeepsExistingPrefixProperty(t *testing.T) {
	base := t.TempDir()
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("append never reorders or drops stored rules", prop.ForAll(
		func(existing []string, added string) bool {
			dir, err := os.MkdirTemp(base, "prop-")
			if err != nil {
				return false
			}
			s := NewFileStore(filepath.Join(dir, "patterns.json"), zerolog.Nop())
			if err := s.Init(existing, false); err != nil {
				return false
			}
			idx, err := s.Append(added)
			if err != nil || idx != len(existing) {
				return false
			}
			defs, err := s.Load()
			if err != nil || len(defs) != len(existing)+1 {
				return false
			}
			for i := range existing {
				if defs[i] != existing[i] {
					return false
				}
			}
			return defs[len(existing)] == added
		},
		gen.SliceOf(gen.AlphaString()),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

// ─── Init ────────────────────────────────────────────────────────────────────

func TestInit_RefusesToClobber(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Append(`%{WORD:proc}`)
	require.NoError(t, err)

	err = s.Init([]string{`%{INT:pid}`}, false)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "already holds 1 rules"))

	require.NoError(t, s.Init([]string{`%{INT:pid}`}, true))
	defs, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{`%{INT:pid}`}, defs)
}
