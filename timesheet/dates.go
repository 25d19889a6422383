package timesheet

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// DateFormat is the wire format for dates in Jira and Tempo payloads.
const DateFormat = "2006-01-02"

var weekdays = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

// weekStart returns the Monday of the week containing t.
func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}

// workWeek returns Monday through Friday starting at monday.
func workWeek(monday time.Time) []string {
	dates := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		dates = append(dates, monday.AddDate(0, 0, i).Format(DateFormat))
	}
	return dates
}

// ResolveDates expands a date or a natural-language date range into a list of
// yyyy-mm-dd dates relative to now. With neither given it returns today.
func ResolveDates(now time.Time, date, dateRange string) ([]string, error) {
	if dateRange != "" {
		normalized := strings.TrimSpace(strings.ToLower(strings.ReplaceAll(dateRange, "_", " ")))
		switch normalized {
		case "this week", "full week", "current week":
			return workWeek(weekStart(now)), nil
		case "next week":
			return workWeek(weekStart(now).AddDate(0, 0, 7)), nil
		case "last week":
			return workWeek(weekStart(now).AddDate(0, 0, -7)), nil
		}

		parsed, err := parseDate(now, normalized)
		if err != nil {
			return nil, errors.Newf("could not parse date_range: %s", dateRange)
		}
		return []string{parsed.Format(DateFormat)}, nil
	}

	if date != "" {
		parsed, err := parseDate(now, strings.TrimSpace(strings.ToLower(date)))
		if err != nil {
			return nil, errors.Newf("could not parse date: %s", date)
		}
		return []string{parsed.Format(DateFormat)}, nil
	}

	return []string{now.Format(DateFormat)}, nil
}

// parseDate resolves a single normalized date expression relative to now:
// relative words, weekday names with an optional next/last qualifier,
// and a few common date layouts.
func parseDate(now time.Time, s string) (time.Time, error) {
	switch s {
	case "today":
		return now, nil
	case "yesterday":
		return now.AddDate(0, 0, -1), nil
	case "tomorrow":
		return now.AddDate(0, 0, 1), nil
	}

	name := s
	weekOffset := 0
	if rest, ok := strings.CutPrefix(s, "next "); ok {
		name = rest
		weekOffset = 7
	} else if rest, ok := strings.CutPrefix(s, "last "); ok {
		name = rest
		weekOffset = -7
	}
	if wd, ok := weekdays[name]; ok {
		monday := weekStart(now).AddDate(0, 0, weekOffset)
		dayOffset := (int(wd) + 6) % 7
		return monday.AddDate(0, 0, dayOffset), nil
	}

	// value matching in time.Parse is case-insensitive for month names
	for _, layout := range []string{DateFormat, "2006/01/02", "Jan 2, 2006", "January 2, 2006", "2 January 2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, errors.Newf("unrecognized date: %s", s)
}
