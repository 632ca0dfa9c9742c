package utils

import (
	"fmt"
	"strings"
	"time"
)

// ParseTimestamp parses an RFC3339 timestamp, also accepting the space separated
// layout older sample logs used.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse time %q: unsupported layout", value)
}

// HourOfDay returns the hour of t in its own location as a float feature.
func HourOfDay(t time.Time) float64 {
	return float64(t.Hour())
}
