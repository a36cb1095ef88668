// Package timestamp turns captured timestamp text into epoch seconds.
package timestamp

import (
	"strings"
	"time"

	"github.com/groktime-project/groktime/internal/core"
)

// Field is the record field the normalizer rewrites.
const Field = "timestamp"

type layout struct {
	format string
	noYear bool // the format carries no year; the current year is assumed
}

// Tried in order. Layouts without a zone are read in the normalizer's location.
var layouts = []layout{
	{format: "02/Jan/2006:15:04:05 -0700"},
	{format: "Jan _2 15:04:05", noYear: true},
	{format: time.RFC3339Nano},
	{format: "2006-01-02 15:04:05"},
	{format: "2006-01-02T15:04:05"},
}

// Normalizer parses timestamps. The zero value is not usable; call New.
type Normalizer struct {
	now func() time.Time
	loc *time.Location
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock sets the clock used to pick the year for year-less formats.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

// WithLocation sets the zone for formats that carry no offset.
func WithLocation(loc *time.Location) Option {
	return func(n *Normalizer) { n.loc = loc }
}

// New returns a normalizer using the wall clock and the local zone.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{now: time.Now, loc: time.Local}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize parses raw. On failure the returned Timestamp still carries the
// raw text, and the error is a *core.TimestampParseError.
func (n *Normalizer) Normalize(raw string) (core.Timestamp, error) {
	value := strings.TrimSpace(raw)
	for _, l := range layouts {
		t, err := time.ParseInLocation(l.format, value, n.loc)
		if err != nil {
			continue
		}
		if l.noYear {
			y := time.Date(n.now().In(n.loc).Year(), t.Month(), t.Day(),
				t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), n.loc)
			// Feb 29 does not exist in the assumed year.
			if y.Month() != t.Month() || y.Day() != t.Day() {
				continue
			}
			t = y
		}
		return core.Timestamp{
			Epoch:      float64(t.UnixNano()) / 1e9,
			Raw:        raw,
			Normalized: true,
		}, nil
	}
	return core.Timestamp{Raw: raw}, &core.TimestampParseError{Value: raw}
}

// Apply normalizes the record's timestamp field, if it captured one. The
// record keeps the raw string when parsing fails.
func (n *Normalizer) Apply(rec *core.EventRecord) error {
	v, ok := rec.Values[Field]
	if !ok {
		return nil
	}
	raw, ok := v.(string)
	if !ok {
		return nil
	}
	ts, err := n.Normalize(raw)
	rec.Timestamp = &ts
	return err
}
