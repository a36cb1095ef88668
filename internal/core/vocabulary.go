package core

import (
	"sort"
	"strings"
)

// DefaultFields is the closed set of semantic field names a pattern may capture.
var DefaultFields = []string{
	"timestamp", "host", "proc", "pid", "severity", "facility",
	"login", "target_user", "auth_method", "login_status", "src_ip",
	"dst_ip", "src_port", "dst_port", "url", "domain", "path", "uri",
	"hash", "hash_algo", "signature", "command", "args", "session_id",
	"request_id", "trace_id", "status_code", "bytes_sent", "bytes_recv", "duration", "tty", "pwd",
}

// Vocabulary is a normalized, ordered set of field names.
type Vocabulary struct {
	names []string
	index map[string]struct{}
}

// NewVocabulary normalizes names (trim, lower-case) and drops empties and duplicates.
// Order of first appearance is kept so prompts list fields deterministically.
func NewVocabulary(names []string) Vocabulary {
	v := Vocabulary{index: make(map[string]struct{}, len(names))}
	for _, n := range names {
		n = NormalizeField(n)
		if n == "" {
			continue
		}
		if _, dup := v.index[n]; dup {
			continue
		}
		v.index[n] = struct{}{}
		v.names = append(v.names, n)
	}
	return v
}

// DefaultVocabulary returns the built-in field vocabulary.
func DefaultVocabulary() Vocabulary {
	return NewVocabulary(DefaultFields)
}

// NormalizeField trims and lower-cases a field name.
func NormalizeField(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Contains reports whether name is in the vocabulary. The name is not
// normalized: pattern text must spell fields exactly.
func (v Vocabulary) Contains(name string) bool {
	_, ok := v.index[name]
	return ok
}

// Names returns a copy of the field names in declaration order.
func (v Vocabulary) Names() []string {
	out := make([]string, len(v.names))
	copy(out, v.names)
	return out
}

// Len returns the number of fields.
func (v Vocabulary) Len() int { return len(v.names) }

// Unknown returns the names not in the vocabulary, sorted and deduplicated.
func (v Vocabulary) Unknown(names []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, n := range names {
		if v.Contains(n) || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
