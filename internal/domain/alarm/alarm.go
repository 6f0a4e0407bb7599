package alarm

import (
	"errors"
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"
)

// AlertType selects how a ringing alarm gets the user's attention.
type AlertType string

const (
	// AlertSound plays the ringtone only.
	AlertSound AlertType = "sound"
	// AlertVibrate vibrates only.
	AlertVibrate AlertType = "vibrate"
	// AlertSoundAndVibrate plays the ringtone and vibrates.
	AlertSoundAndVibrate AlertType = "sound_and_vibrate"
)

// HasSound reports whether the alert plays the ringtone.
func (t AlertType) HasSound() bool {
	return t == AlertSound || t == AlertSoundAndVibrate
}

// HasVibration reports whether the alert vibrates.
func (t AlertType) HasVibration() bool {
	return t == AlertVibrate || t == AlertSoundAndVibrate
}

// Alarm is a user configured alarm.
type Alarm struct {
	// ID is the stable identifier of the alarm.
	ID int64 `yaml:"id" validate:"gt=0"`
	// Hour is the wall-clock hour the alarm fires at.
	Hour int `yaml:"hour" validate:"min=0,max=23"`
	// Minute is the wall-clock minute the alarm fires at.
	Minute int `yaml:"minute" validate:"min=0,max=59"`
	// WeeklyRepeat lists the weekdays the alarm repeats on, empty for a one-shot alarm.
	WeeklyRepeat WeekdaySet `yaml:"repeat,omitempty" validate:"lte=127"`
	// Label is shown while the alarm rings.
	Label string `yaml:"label,omitempty"`
	// Enabled marks alarms that should be scheduled.
	Enabled bool `yaml:"enabled"`
	// AlertType selects sound, vibration or both.
	AlertType AlertType `yaml:"alert_type" validate:"oneof=sound vibrate sound_and_vibrate"`
	// RingtoneRef is an opaque handle passed to the player.
	RingtoneRef string `yaml:"ringtone,omitempty"`
	// Scripts are the sentences the user must say to dismiss the alarm.
	Scripts []string `yaml:"scripts,omitempty" validate:"dive,required"`
}

var (
	// ErrInvalidAlarm is returned when an alarm violates its invariants.
	ErrInvalidAlarm = errors.New("invalid alarm")
	// ErrNotFound is returned by stores when an alarm does not exist.
	ErrNotFound = errors.New("alarm not found")
)

//nolint:gochecknoglobals // validator caches struct metadata, one instance is intended.
var validate = validator.New(validator.WithRequiredStructEnabled())

// New builds a validated alarm. AlertType defaults to AlertSound when empty.
func New(id int64, hour, minute int, repeat WeekdaySet, scripts ...string) (*Alarm, error) {
	a := &Alarm{
		ID:           id,
		Hour:         hour,
		Minute:       minute,
		WeeklyRepeat: repeat,
		Enabled:      true,
		AlertType:    AlertSound,
		Scripts:      slices.Clone(scripts),
	}

	if err := a.Validate(); err != nil {
		return nil, err
	}

	return a, nil
}

// Validate checks the alarm invariants: wall-clock hour and minute, weekday codes,
// a known alert type and non-empty scripts.
func (a *Alarm) Validate() error {
	if a == nil {
		return fmt.Errorf("%w: alarm is not set", ErrInvalidAlarm)
	}

	if a.AlertType == "" {
		a.AlertType = AlertSound
	}

	if err := validate.Struct(a); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			first := validationErrors[0]

			return fmt.Errorf("%w: field %s failed %q check", ErrInvalidAlarm, first.Namespace(), first.Tag())
		}

		return fmt.Errorf("%w: %w", ErrInvalidAlarm, err)
	}

	return nil
}

// HasChallenge reports whether dismissing the alarm requires the SayIt challenge.
func (a *Alarm) HasChallenge() bool {
	return len(a.Scripts) > 0
}

// IsRepeating reports whether the alarm repeats weekly.
func (a *Alarm) IsRepeating() bool {
	return !a.WeeklyRepeat.IsEmpty()
}

// Clone returns a deep copy of the alarm.
func (a *Alarm) Clone() *Alarm {
	if a == nil {
		return nil
	}

	cloned := *a
	cloned.Scripts = slices.Clone(a.Scripts)

	return &cloned
}
