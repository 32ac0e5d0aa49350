package format_test

// Notes:
// - Negative values are not tested: inputs are elapsed times and tier
//   offsets, which are never negative.

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/openvpi/MakeDiffSinger/internal/format"
)

// ---------------------------------------------------------------------------
// TestDuration - Formats duration as HH:MM:SS or MM:SS
// ---------------------------------------------------------------------------

func TestDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input time.Duration
		want  string
	}{
		{name: "zero", input: 0, want: "00:00"},
		{name: "boundary: 59 seconds", input: 59 * time.Second, want: "00:59"},
		{name: "mixed minutes and seconds", input: 5*time.Minute + 30*time.Second, want: "05:30"},
		{name: "boundary: exactly 1 hour", input: time.Hour, want: "01:00:00"},
		{name: "full", input: 2*time.Hour + 15*time.Minute + 45*time.Second, want: "02:15:45"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, format.Duration(tt.input))
		})
	}
}

// ---------------------------------------------------------------------------
// TestElapsed - Compact processing times
// ---------------------------------------------------------------------------

func TestElapsed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input time.Duration
		want  string
	}{
		{name: "zero", input: 0, want: "0ms"},
		{name: "milliseconds", input: 850 * time.Millisecond, want: "850ms"},
		{name: "boundary: one second", input: time.Second, want: "1.0s"},
		{name: "seconds", input: 2400 * time.Millisecond, want: "2.4s"},
		{name: "boundary: one minute", input: time.Minute, want: "1m00s"},
		{name: "minutes", input: 65 * time.Second, want: "1m05s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, format.Elapsed(tt.input))
		})
	}
}

// ---------------------------------------------------------------------------
// TestSeconds, TestCount, TestTimestamp
// ---------------------------------------------------------------------------

func TestSeconds(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0.000s", format.Seconds(0))
	assert.Equal(t, "0.051s", format.Seconds(13.0/256))
	assert.Equal(t, "12.500s", format.Seconds(12.5))
}

func TestCount(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0 recordings", format.Count(0, "recording"))
	assert.Equal(t, "1 recording", format.Count(1, "recording"))
	assert.Equal(t, "3 breaths", format.Count(3, "breath"))
}

func TestTimestamp(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "-", format.Timestamp(time.Time{}))
	ts := time.Date(2026, 3, 1, 12, 30, 0, 0, time.Local)
	assert.Equal(t, "2026-03-01 12:30", format.Timestamp(ts))
}
