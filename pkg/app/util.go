package app

import "time"

// hourlyGuard is the window at the end of each clock hour in which the
// complete hourly totals are published.
const hourlyGuard = 10 * time.Second

// nextHour returns the next full clock hour after now. Computed from the
// wall clock rather than by accumulating intervals so the schedule never
// drifts.
func nextHour(now time.Time) time.Time {
	return time.Date(
		now.Year(),
		now.Month(),
		now.Day(),
		now.Hour()+1, // time.Date normalizes 23+1 into the next day
		0,
		0,
		0,
		now.Location(),
	)
}

// untilHourEnd is the time remaining in the current clock hour.
func untilHourEnd(now time.Time) time.Duration {
	return nextHour(now).Sub(now)
}

// inHourlyWindow reports whether now is inside the final guard window of
// the hour.
func inHourlyWindow(now time.Time) bool {
	return untilHourEnd(now) <= hourlyGuard
}

// nextStatusDelay bounds the status cadence so the publication loop never
// oversleeps across the hour boundary.
func nextStatusDelay(now time.Time, statusInterval time.Duration) time.Duration {
	remaining := untilHourEnd(now) - hourlyGuard
	if remaining < statusInterval {
		if remaining < time.Second {
			return time.Second
		}
		return remaining
	}
	return statusInterval
}
