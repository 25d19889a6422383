package timesheet

import (
	"time"

	"github.com/cockroachdb/errors"
)

// TimeFormat is the wire format for worklog start times.
const TimeFormat = "15:04:05"

// DefaultStartTime is used when the caller does not name a start time.
const DefaultStartTime = "09:00:00"

// Share is one issue's portion of a distributed day.
type Share struct {
	// Seconds is the time assigned to the issue.
	Seconds int
	// StartTime is the worklog start in hh:mm:ss form.
	StartTime string
}

// Distribute splits totalSeconds evenly across count issues. The remainder is
// spread one second per issue from the front, so the shares always sum to
// totalSeconds. Start times are staggered by the base share from start.
func Distribute(totalSeconds, count int, start string) ([]Share, error) {
	if totalSeconds <= 0 {
		return nil, errors.New("total seconds must be positive")
	}
	if count <= 0 {
		return nil, errors.New("issue count must be positive")
	}
	if start == "" {
		start = DefaultStartTime
	}
	base, err := time.Parse(TimeFormat, start)
	if err != nil {
		return nil, errors.Newf("invalid start time: %s", start)
	}

	baseSeconds := totalSeconds / count
	remaining := totalSeconds % count

	shares := make([]Share, 0, count)
	for i := 0; i < count; i++ {
		extra := 0
		if i < remaining {
			extra = 1
		}
		shares = append(shares, Share{
			Seconds:   baseSeconds + extra,
			StartTime: base.Add(time.Duration(i*baseSeconds) * time.Second).Format(TimeFormat),
		})
	}
	return shares, nil
}
