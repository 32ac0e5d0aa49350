// Package format renders durations and counts for terminal output.
package format

import (
	"fmt"
	"strconv"
	"time"
)

// Duration formats a wall-clock duration as HH:MM:SS or MM:SS.
func Duration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// Elapsed formats a processing time compactly.
// Examples: "850ms", "2.4s", "1m05s".
func Elapsed(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return strconv.FormatFloat(d.Seconds(), 'f', 1, 64) + "s"
	default:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
}

// Seconds formats a time offset in seconds with millisecond precision,
// e.g. "0.052s".
func Seconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64) + "s"
}

// Count formats n with a noun, pluralized with a trailing "s".
// Examples: "1 recording", "3 recordings".
func Count(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// Timestamp formats t in local time to the minute.
func Timestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
