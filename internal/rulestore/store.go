// Package rulestore persists grok rules. The rule file is a JSON object
// whose "patterns" key holds the definitions in priority order.
package rulestore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/groktime-project/groktime/internal/core"
)

const patternsKey = "patterns"

// FileStore is the JSON rule file. Writes are append-only and atomic: the
// file is rewritten to a temp file in the same directory, synced, and
// renamed over the original, so a crash leaves either the old or the new
// list on disk.
type FileStore struct {
	path   string
	logger zerolog.Logger
	mu     sync.Mutex
}

// NewFileStore returns a store backed by path. The file need not exist.
func NewFileStore(path string, logger zerolog.Logger) *FileStore {
	return &FileStore{
		path:   path,
		logger: logger.With().Str("component", "rulestore").Logger(),
	}
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Load returns the stored definitions in order. A missing file is an empty store.
func (s *FileStore) Load() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defs, _, err := s.read()
	return defs, err
}

// Append adds def as the last rule and returns its index. Keys other than
// "patterns" are preserved.
func (s *FileStore) Append(def string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	defs, extra, err := s.read()
	if err != nil {
		return 0, err
	}
	defs = append(defs, def)
	if err := s.write(defs, extra); err != nil {
		return 0, err
	}
	s.logger.Debug().Int("rule", len(defs)-1).Str("path", s.path).Msg("rule appended")
	return len(defs) - 1, nil
}

// Init writes defs as the whole rule list. An existing non-empty store is
// left alone unless overwrite is set.
func (s *FileStore) Init(defs []string, overwrite bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, extra, err := s.read()
	if err != nil {
		return err
	}
	if len(existing) > 0 && !overwrite {
		return &core.RuleStoreIOError{Op: "init", Path: s.path, Err: fmt.Errorf("store already holds %d rules", len(existing))}
	}
	out := make([]string, len(defs))
	copy(out, defs)
	return s.write(out, extra)
}

func (s *FileStore) read() ([]string, map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil, nil
	}
	if err != nil {
		return nil, nil, &core.RuleStoreIOError{Op: "read", Path: s.path, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []string{}, nil, nil
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, &core.RuleStoreIOError{Op: "decode", Path: s.path, Err: err}
	}
	defs := []string{}
	if raw, ok := doc[patternsKey]; ok {
		if err := json.Unmarshal(raw, &defs); err != nil {
			return nil, nil, &core.RuleStoreIOError{Op: "decode", Path: s.path, Err: fmt.Errorf("%q must be a list of strings: %w", patternsKey, err)}
		}
		if defs == nil {
			defs = []string{}
		}
	}
	delete(doc, patternsKey)
	return defs, doc, nil
}

func (s *FileStore) write(defs []string, extra map[string]json.RawMessage) error {
	doc := make(map[string]interface{}, len(extra)+1)
	for k, v := range extra {
		doc[k] = v
	}
	doc[patternsKey] = defs

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(doc); err != nil {
		return &core.RuleStoreIOError{Op: "encode", Path: s.path, Err: err}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &core.RuleStoreIOError{Op: "mkdir", Path: dir, Err: err}
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return &core.RuleStoreIOError{Op: "write", Path: s.path, Err: err}
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		cleanup()
		return &core.RuleStoreIOError{Op: "write", Path: s.path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return &core.RuleStoreIOError{Op: "sync", Path: s.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return &core.RuleStoreIOError{Op: "write", Path: s.path, Err: err}
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		cleanup()
		return &core.RuleStoreIOError{Op: "chmod", Path: s.path, Err: err}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return &core.RuleStoreIOError{Op: "rename", Path: s.path, Err: err}
	}
	return nil
}
