package schedule

import (
	"time"

	domain "github.com/oshokin/sayit-alarm/internal/domain/alarm"
)

// daysPerWeek bounds the weekly scan: offsets 0..7 cover today and the same weekday next week.
const daysPerWeek = 7

// NextTrigger returns the next instant strictly after now at which an alarm set to
// hour:minute fires, with seconds and nanoseconds zeroed, in now's location.
//
// A one-shot alarm (empty repeat) fires today if the slot is still ahead, otherwise
// tomorrow at the same wall-clock time. A repeating alarm fires on the first day,
// starting today, whose weekday is in repeat; today counts only if its slot is
// still ahead.
func NextTrigger(hour, minute int, repeat domain.WeekdaySet, now time.Time) time.Time {
	year, month, day := now.Date()
	location := now.Location()

	if repeat.IsEmpty() {
		candidate := time.Date(year, month, day, hour, minute, 0, 0, location)
		if !candidate.After(now) {
			candidate = time.Date(year, month, day+1, hour, minute, 0, 0, location)
		}

		return candidate
	}

	for offset := 0; offset <= daysPerWeek; offset++ {
		// The weekday is taken at midnight so a DST gap at hour:minute cannot move it.
		date := time.Date(year, month, day+offset, 0, 0, 0, 0, location)
		if !repeat.Contains(date.Weekday()) {
			continue
		}

		candidate := time.Date(year, month, day+offset, hour, minute, 0, 0, location)
		if offset == 0 && !candidate.After(now) {
			continue
		}

		return candidate
	}

	// Unreachable for a non-empty set: every weekday appears within eight days.
	return NextTrigger(hour, minute, 0, now)
}

// SnoozeTrigger returns now plus the given number of minutes, with seconds and
// nanoseconds zeroed.
func SnoozeTrigger(minutes int, now time.Time) time.Time {
	at := now.Add(time.Duration(minutes) * time.Minute)
	year, month, day := at.Date()

	return time.Date(year, month, day, at.Hour(), at.Minute(), 0, 0, at.Location())
}
