package alarm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestParseWeekdays verifies code and full-name parsing along with error handling.
func TestParseWeekdays(t *testing.T) {
	t.Parallel()

	set, err := ParseWeekdays("mon, Wed ,friday")
	require.NoError(t, err)
	require.Equal(t, []time.Weekday{time.Monday, time.Wednesday, time.Friday}, set.Days())
	require.Equal(t, "mon,wed,fri", set.String())

	set, err = ParseWeekdays("")
	require.NoError(t, err)
	require.True(t, set.IsEmpty())

	_, err = ParseWeekdays("mon,funday")
	require.Error(t, err)
}

// TestWeekdaySet_Contains checks membership and out-of-range weekdays.
func TestWeekdaySet_Contains(t *testing.T) {
	t.Parallel()

	set := NewWeekdaySet(time.Sunday, time.Saturday)
	require.True(t, set.Contains(time.Sunday))
	require.True(t, set.Contains(time.Saturday))
	require.False(t, set.Contains(time.Monday))
	require.False(t, set.Contains(time.Weekday(9)))
	require.Equal(t, set, set.With(time.Weekday(-1)))
	require.Len(t, AllWeekdays.Days(), 7)
}

// TestTokens ensures normal and snooze tokens never collide and parse back.
func TestTokens(t *testing.T) {
	t.Parallel()

	require.NotEqual(t, NormalToken(7), SnoozeToken(7))
	require.Equal(t, NormalToken(7), TokenFor(TriggerNormal, 7))
	require.Equal(t, SnoozeToken(7), TokenFor(TriggerSnooze, 7))

	kind, id, err := ParseToken(SnoozeToken(42))
	require.NoError(t, err)
	require.Equal(t, TriggerSnooze, kind)
	require.Equal(t, int64(42), id)

	_, _, err = ParseToken("alarm42")
	require.Error(t, err)

	_, _, err = ParseToken("other-42")
	require.Error(t, err)

	_, _, err = ParseToken("normal-x")
	require.Error(t, err)
}
