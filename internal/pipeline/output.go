package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/groktime-project/groktime/internal/core"
)

// MarshalRecords renders records as one JSON object keyed by line index in
// ascending numeric order, indented by four spaces.
func MarshalRecords(records map[int]core.EventRecord) ([]byte, error) {
	keys := make([]int, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	if len(keys) == 0 {
		return []byte("{}\n"), nil
	}

	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, k := range keys {
		body, err := json.MarshalIndent(records[k], "    ", "    ")
		if err != nil {
			return nil, fmt.Errorf("marshaling record %d: %w", k, err)
		}
		fmt.Fprintf(&buf, "    %s: ", strconv.Quote(strconv.Itoa(k)))
		buf.Write(body)
		if i < len(keys)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

// WriteRecords writes records to path atomically.
func WriteRecords(path string, records map[int]core.EventRecord) error {
	data, err := MarshalRecords(records)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing output: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing output: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}
