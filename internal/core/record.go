package core

import (
	"encoding/json"
	"time"
)

// Fields maps a vocabulary field name to the text it captured.
type Fields map[string]string

// LogLine is one input line. Index is zero-based and Text has trailing
// whitespace removed.
type LogLine struct {
	Index int
	Text  string
}

// Timestamp is the normalized form of a captured timestamp. When Normalized
// is false the value could not be parsed and Raw is emitted unchanged.
type Timestamp struct {
	Epoch      float64
	Raw        string
	Normalized bool
}

// Value returns the epoch seconds when normalized, otherwise the raw string.
func (t Timestamp) Value() interface{} {
	if t.Normalized {
		return t.Epoch
	}
	return t.Raw
}

// EventRecord is the structured output for one matched line.
type EventRecord struct {
	Line      int                    `json:"-"`
	Rule      int                    `json:"-"`
	Values    map[string]interface{} `json:"-"`
	Timestamp *Timestamp             `json:"-"`
}

// NewEventRecord copies values so the record never aliases matcher output.
func NewEventRecord(line, rule int, values map[string]interface{}) EventRecord {
	cp := make(map[string]interface{}, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return EventRecord{Line: line, Rule: rule, Values: cp}
}

// Fields returns the record as a flat field map with the timestamp resolved.
func (r EventRecord) Fields() map[string]interface{} {
	out := make(map[string]interface{}, len(r.Values)+1)
	for k, v := range r.Values {
		out[k] = v
	}
	if r.Timestamp != nil {
		out["timestamp"] = r.Timestamp.Value()
	}
	return out
}

// MarshalJSON writes the record as a flat object of field name to value.
func (r EventRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Fields())
}

// LearnedRule describes a synthesized rule that was accepted and persisted.
type LearnedRule struct {
	ID        string    `json:"id"`
	Index     int       `json:"index"` // position in the rule store
	Pattern   string    `json:"pattern"`
	Note      string    `json:"note,omitempty"`
	Line      int       `json:"line"`
	Text      string    `json:"text"`
	Attempts  int       `json:"attempts"`
	LearnedAt time.Time `json:"learned_at"`
}

// Rejection describes one failed synthesis attempt.
type Rejection struct {
	ID      string    `json:"id"`
	Line    int       `json:"line"`
	Attempt int       `json:"attempt"`
	Reason  string    `json:"reason"`
	Pattern string    `json:"pattern,omitempty"`
	Error   string    `json:"error"`
	At      time.Time `json:"at"`
}
