// Package timespec parses the date expressions accepted for activity start
// and end dates.
package timespec

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the wire format for activity dates.
const DateLayout = "2006-01-02"

// Parse resolves a date specification relative to now and returns it in
// DateLayout. Supported forms:
//   - "today", "tomorrow", "yesterday"
//   - relative offsets: "+3d", "-1w", "+2m" (days, weeks, months)
//   - calendar dates: "2025-10-29"
//   - RFC3339 timestamps: "2025-10-29T13:00:00Z" (the time part is dropped)
func Parse(spec string, now time.Time) (string, error) {
	spec = strings.TrimSpace(strings.ToLower(spec))
	if spec == "" {
		return "", fmt.Errorf("empty date specification")
	}

	switch spec {
	case "today":
		return now.Format(DateLayout), nil
	case "tomorrow":
		return now.AddDate(0, 0, 1).Format(DateLayout), nil
	case "yesterday":
		return now.AddDate(0, 0, -1).Format(DateLayout), nil
	}

	if t, err := time.Parse(DateLayout, spec); err == nil {
		return t.Format(DateLayout), nil
	}

	if t, err := time.Parse(time.RFC3339, strings.ToUpper(spec)); err == nil {
		return t.Format(DateLayout), nil
	}

	if t, ok := parseOffset(spec, now); ok {
		return t.Format(DateLayout), nil
	}

	return "", fmt.Errorf("invalid date specification: %s (use 'today', an offset like '+3d' or '-1w', or a date like '2025-10-29')", spec)
}

func parseOffset(spec string, now time.Time) (time.Time, bool) {
	if len(spec) < 3 || (spec[0] != '+' && spec[0] != '-') {
		return time.Time{}, false
	}

	n, err := strconv.Atoi(spec[1 : len(spec)-1])
	if err != nil || n < 0 {
		return time.Time{}, false
	}
	if spec[0] == '-' {
		n = -n
	}

	switch spec[len(spec)-1] {
	case 'd':
		return now.AddDate(0, 0, n), true
	case 'w':
		return now.AddDate(0, 0, 7*n), true
	case 'm':
		return now.AddDate(0, n, 0), true
	}
	return time.Time{}, false
}

// ParseRange parses the --start and --end flags of an activity.
// An empty start or end is returned as "". Both are validated so that start
// is not after end.
func ParseRange(start, end string, now time.Time) (string, string, error) {
	var startDate, endDate string
	var err error

	if start != "" {
		startDate, err = Parse(start, now)
		if err != nil {
			return "", "", fmt.Errorf("invalid --start: %w", err)
		}
	}

	if end != "" {
		endDate, err = Parse(end, now)
		if err != nil {
			return "", "", fmt.Errorf("invalid --end: %w", err)
		}
	}

	// DateLayout sorts lexically.
	if startDate != "" && endDate != "" && startDate > endDate {
		return "", "", fmt.Errorf("--start must not be after --end")
	}

	return startDate, endDate, nil
}
