package helpers

import (
	"fmt"
	"strconv"
	"time"
)

func Contains[T comparable](slice []T, s T) bool {
	for _, item := range slice {
		if item == s {
			return true
		}
	}
	return false
}

// ParseTime accepts either an RFC3339 timestamp or unix seconds and returns the instant in UTC.
// An empty value yields the zero time.
func ParseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}

	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(seconds, 0).UTC(), nil
	}

	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("unsupported time format %q: expected RFC3339 or unix seconds", value)
	}

	return parsed.UTC(), nil
}
