package timestamp

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groktime-project/groktime/internal/core"
)

func fixedClock(year int) func() time.Time {
	return func() time.Time { return time.Date(year, 6, 1, 0, 0, 0, 0, time.UTC) }
}

func TestNormalize_HTTPDate(t *testing.T) {
	n := New()
	ts, err := n.Normalize("10/Oct/2023:13:55:36 +0000")
	require.NoError(t, err)
	assert.True(t, ts.Normalized)
	assert.Equal(t, float64(1696946136), ts.Epoch)
	assert.Equal(t, "10/Oct/2023:13:55:36 +0000", ts.Raw)
}

func TestNormalize_HTTPDateOffset(t *testing.T) {
	ts, err := New().Normalize("10/Oct/2023:15:55:36 +0200")
	require.NoError(t, err)
	assert.Equal(t, float64(1696946136), ts.Epoch)
}

func TestNormalize_SyslogAssumesCurrentYear(t *testing.T) {
	n := New(WithClock(fixedClock(2024)), WithLocation(time.UTC))
	ts, err := n.Normalize("Oct 10 13:55:36")
	require.NoError(t, err)
	want := time.Date(2024, 10, 10, 13, 55, 36, 0, time.UTC).Unix()
	assert.Equal(t, float64(want), ts.Epoch)
}

func TestNormalize_SyslogLeapDayOutsideLeapYear(t *testing.T) {
	n := New(WithClock(func() time.Time { return time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC) }), WithLocation(time.UTC))
	ts, err := n.Normalize("Feb 29 10:00:00")

	var tpe *core.TimestampParseError
	require.True(t, errors.As(err, &tpe), "err = %v", err)
	assert.False(t, ts.Normalized)
	assert.Equal(t, "Feb 29 10:00:00", ts.Raw)
	assert.Equal(t, "Feb 29 10:00:00", ts.Value())
}

func TestNormalize_SyslogLeapDayInLeapYear(t *testing.T) {
	n := New(WithClock(fixedClock(2024)), WithLocation(time.UTC))
	ts, err := n.Normalize("Feb 29 10:00:00")
	require.NoError(t, err)
	want := time.Date(2024, 2, 29, 10, 0, 0, 0, time.UTC).Unix()
	assert.Equal(t, float64(want), ts.Epoch)
}

func TestNormalize_SyslogPaddedDay(t *testing.T) {
	n := New(WithClock(fixedClock(2024)), WithLocation(time.UTC))
	ts, err := n.Normalize("Oct  9 08:00:01")
	require.NoError(t, err)
	want := time.Date(2024, 10, 9, 8, 0, 1, 0, time.UTC).Unix()
	assert.Equal(t, float64(want), ts.Epoch)
}

func TestNormalize_SyslogLocalZone(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	n := New(WithClock(fixedClock(2024)), WithLocation(loc))
	ts, err := n.Normalize("Oct 10 13:55:36")
	require.NoError(t, err)
	want := time.Date(2024, 10, 10, 10, 55, 36, 0, time.UTC).Unix()
	assert.Equal(t, float64(want), ts.Epoch)
}

func TestNormalize_ISO8601(t *testing.T) {
	ts, err := New().Normalize("2023-10-10T13:55:36.5Z")
	require.NoError(t, err)
	assert.InDelta(t, 1696946136.5, ts.Epoch, 1e-6)
}

func TestNormalize_Unparseable(t *testing.T) {
	for _, raw := range []string{"yesterday", "", "13:55:36", "32/Oct/2023:13:55:36 +0000"} {
		ts, err := New().Normalize(raw)
		require.Error(t, err, raw)
		assert.True(t, errors.Is(err, core.ErrTimestampParse))
		assert.False(t, ts.Normalized)
		assert.Equal(t, raw, ts.Value())
	}
}

func TestApply(t *testing.T) {
	n := New()

	rec := core.NewEventRecord(0, 0, map[string]interface{}{"timestamp": "10/Oct/2023:13:55:36 +0000", "host": "a"})
	require.NoError(t, n.Apply(&rec))
	require.NotNil(t, rec.Timestamp)
	assert.Equal(t, float64(1696946136), rec.Fields()["timestamp"])

	bad := core.NewEventRecord(1, 0, map[string]interface{}{"timestamp": "soon"})
	assert.Error(t, n.Apply(&bad))
	assert.Equal(t, "soon", bad.Fields()["timestamp"])

	none := core.NewEventRecord(2, 0, map[string]interface{}{"host": "a"})
	assert.NoError(t, n.Apply(&none))
	assert.Nil(t, none.Timestamp)
}
