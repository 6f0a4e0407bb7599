package alarm

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// WeekdaySet is a bit mask of weekdays, bit N set means time.Weekday(N) is included.
// The zero value is an empty set, which marks a one-shot alarm.
type WeekdaySet uint8

// AllWeekdays contains every day of the week.
const AllWeekdays WeekdaySet = 1<<7 - 1

// weekdayCodes maps three-letter codes to weekdays, indexed by time.Weekday.
//
//nolint:gochecknoglobals // Read-only lookup table.
var weekdayCodes = [...]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// errUnknownWeekday is returned when a weekday code cannot be parsed.
var errUnknownWeekday = errors.New("unknown weekday code")

// NewWeekdaySet builds a set from the provided weekdays.
func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var set WeekdaySet

	for _, day := range days {
		set = set.With(day)
	}

	return set
}

// ParseWeekdays parses a comma separated list of weekday codes such as "mon,wed,fri".
// An empty string yields an empty set.
func ParseWeekdays(s string) (WeekdaySet, error) {
	var set WeekdaySet

	for _, part := range strings.Split(s, ",") {
		code := strings.ToLower(strings.TrimSpace(part))
		if code == "" {
			continue
		}

		day, ok := weekdayFromCode(code)
		if !ok {
			return 0, fmt.Errorf("%w: %q", errUnknownWeekday, part)
		}

		set = set.With(day)
	}

	return set, nil
}

// With returns a copy of the set with day included.
func (s WeekdaySet) With(day time.Weekday) WeekdaySet {
	if day < time.Sunday || day > time.Saturday {
		return s
	}

	return s | 1<<uint(day)
}

// Contains reports whether day is in the set.
func (s WeekdaySet) Contains(day time.Weekday) bool {
	if day < time.Sunday || day > time.Saturday {
		return false
	}

	return s&(1<<uint(day)) != 0
}

// IsEmpty reports whether the set has no days, i.e. the alarm does not repeat.
func (s WeekdaySet) IsEmpty() bool {
	return s&AllWeekdays == 0
}

// Days returns the weekdays in the set, Sunday first.
func (s WeekdaySet) Days() []time.Weekday {
	days := make([]time.Weekday, 0, len(weekdayCodes))

	for day := time.Sunday; day <= time.Saturday; day++ {
		if s.Contains(day) {
			days = append(days, day)
		}
	}

	return days
}

// String renders the set in the format accepted by ParseWeekdays.
func (s WeekdaySet) String() string {
	days := s.Days()
	codes := make([]string, 0, len(days))

	for _, day := range days {
		codes = append(codes, weekdayCodes[day])
	}

	return strings.Join(codes, ",")
}

// MarshalYAML encodes the set as a weekday code list.
func (s WeekdaySet) MarshalYAML() (any, error) {
	return s.String(), nil
}

// UnmarshalYAML decodes a weekday code list.
func (s *WeekdaySet) UnmarshalYAML(unmarshal func(any) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}

	parsed, err := ParseWeekdays(raw)
	if err != nil {
		return err
	}

	*s = parsed

	return nil
}

func weekdayFromCode(code string) (time.Weekday, bool) {
	for i, c := range weekdayCodes {
		if c == code || strings.ToLower(time.Weekday(i).String()) == code {
			return time.Weekday(i), true
		}
	}

	return 0, false
}
