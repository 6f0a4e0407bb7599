package alarm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// TestNew_ValidatesWallClock verifies that invalid hour, minute and scripts are rejected at construction.
func TestNew_ValidatesWallClock(t *testing.T) {
	t.Parallel()

	_, err := New(1, 24, 0, 0)
	require.ErrorIs(t, err, ErrInvalidAlarm)

	_, err = New(1, 7, 60, 0)
	require.ErrorIs(t, err, ErrInvalidAlarm)

	_, err = New(1, -1, 0, 0)
	require.ErrorIs(t, err, ErrInvalidAlarm)

	_, err = New(0, 7, 0, 0)
	require.ErrorIs(t, err, ErrInvalidAlarm)

	_, err = New(1, 7, 0, 0, "Good morning.", "")
	require.ErrorIs(t, err, ErrInvalidAlarm)

	a, err := New(1, 23, 59, NewWeekdaySet(time.Monday), "Good morning.")
	require.NoError(t, err)
	require.True(t, a.Enabled)
	require.Equal(t, AlertSound, a.AlertType)
	require.True(t, a.HasChallenge())
	require.True(t, a.IsRepeating())
}

// TestValidate_RejectsUnknownAlertTypeAndWeekdayBits checks alert type and weekday mask validation.
func TestValidate_RejectsUnknownAlertTypeAndWeekdayBits(t *testing.T) {
	t.Parallel()

	a := &Alarm{ID: 1, Hour: 6, Minute: 30, AlertType: "siren"}
	require.ErrorIs(t, a.Validate(), ErrInvalidAlarm)

	a = &Alarm{ID: 1, Hour: 6, Minute: 30, WeeklyRepeat: 1 << 7}
	require.ErrorIs(t, a.Validate(), ErrInvalidAlarm)

	a = &Alarm{ID: 1, Hour: 6, Minute: 30}
	require.NoError(t, a.Validate())
	require.Equal(t, AlertSound, a.AlertType)

	var nilAlarm *Alarm
	require.ErrorIs(t, nilAlarm.Validate(), ErrInvalidAlarm)
}

// TestAlarmClone verifies that Clone copies scripts and handles nil safely.
func TestAlarmClone(t *testing.T) {
	t.Parallel()
	require.Nil(t, (*Alarm)(nil).Clone())

	a, err := New(3, 7, 15, 0, "One.", "Two.")
	require.NoError(t, err)

	c := a.Clone()
	require.Equal(t, a, c)
	require.NotSame(t, a, c)

	c.Scripts[0] = "Changed."
	require.Equal(t, "One.", a.Scripts[0])
}

// TestAlertType checks sound and vibration flags.
func TestAlertType(t *testing.T) {
	t.Parallel()

	require.True(t, AlertSound.HasSound())
	require.False(t, AlertSound.HasVibration())
	require.False(t, AlertVibrate.HasSound())
	require.True(t, AlertVibrate.HasVibration())
	require.True(t, AlertSoundAndVibrate.HasSound())
	require.True(t, AlertSoundAndVibrate.HasVibration())
}

// TestAlarm_YAML ensures alarms decode from the import file format.
func TestAlarm_YAML(t *testing.T) {
	t.Parallel()

	const doc = `
id: 4
hour: 6
minute: 45
repeat: mon,wed,fri
label: Gym
enabled: true
alert_type: sound_and_vibrate
ringtone: birds.ogg
scripts:
  - I am awake and ready.
`

	var a Alarm
	require.NoError(t, yaml.Unmarshal([]byte(doc), &a))
	require.NoError(t, a.Validate())
	require.Equal(t, NewWeekdaySet(time.Monday, time.Wednesday, time.Friday), a.WeeklyRepeat)
	require.Equal(t, AlertSoundAndVibrate, a.AlertType)
	require.Equal(t, []string{"I am awake and ready."}, a.Scripts)

	out, err := yaml.Marshal(&a)
	require.NoError(t, err)
	require.Contains(t, string(out), "repeat: mon,wed,fri")
}
