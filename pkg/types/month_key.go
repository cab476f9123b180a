package types

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var monthKeyRe = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// MonthKey identifies a commission period as YYYY-MM.
type MonthKey string

// ParseMonthKey validates the YYYY-MM shape and returns the typed key.
func ParseMonthKey(raw string) (MonthKey, error) {
	value := strings.TrimSpace(raw)
	if !monthKeyRe.MatchString(value) {
		return "", fmt.Errorf("invalid month key %q (expected YYYY-MM)", raw)
	}
	return MonthKey(value), nil
}

// MonthKeyOf returns the key of the UTC month containing t.
func MonthKeyOf(t time.Time) MonthKey {
	return MonthKey(t.UTC().Format("2006-01"))
}

func (m MonthKey) String() string {
	return string(m)
}

// Bounds returns the half-open UTC interval [start, end) covered by the month.
func (m MonthKey) Bounds() (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01", string(m))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid month key %q: %w", m, err)
	}
	start = start.UTC()
	return start, start.AddDate(0, 1, 0), nil
}
