package alarm

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TriggerKind distinguishes regular wakeups from snoozes.
type TriggerKind string

const (
	// TriggerNormal is the regular occurrence of an alarm.
	TriggerNormal TriggerKind = "normal"
	// TriggerSnooze is a one-shot wakeup created by snoozing a ringing alarm.
	TriggerSnooze TriggerKind = "snooze"
)

// ScheduledTrigger is a wakeup registered with the host timer.
type ScheduledTrigger struct {
	// AlarmID is the alarm the wakeup belongs to.
	AlarmID int64
	// Kind tells normal and snooze wakeups apart.
	Kind TriggerKind
	// TriggerAt is the absolute instant the wakeup fires at.
	TriggerAt time.Time
	// Token identifies the registration at the host timer.
	Token string
}

// NormalToken returns the dedup token of the normal trigger of an alarm.
func NormalToken(alarmID int64) string {
	return string(TriggerNormal) + "-" + strconv.FormatInt(alarmID, 10)
}

// SnoozeToken returns the token of the snooze trigger of an alarm.
// It never collides with NormalToken for the same alarm.
func SnoozeToken(alarmID int64) string {
	return string(TriggerSnooze) + "-" + strconv.FormatInt(alarmID, 10)
}

// TokenFor returns the token of the given kind for an alarm.
func TokenFor(kind TriggerKind, alarmID int64) string {
	if kind == TriggerSnooze {
		return SnoozeToken(alarmID)
	}

	return NormalToken(alarmID)
}

// ParseToken splits a token into its kind and alarm id.
func ParseToken(token string) (TriggerKind, int64, error) {
	kind, rawID, found := strings.Cut(token, "-")
	if !found {
		return "", 0, fmt.Errorf("malformed token %q", token)
	}

	switch TriggerKind(kind) {
	case TriggerNormal, TriggerSnooze:
	default:
		return "", 0, fmt.Errorf("unknown trigger kind in token %q", token)
	}

	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("parse alarm id from token %q: %w", token, err)
	}

	return TriggerKind(kind), id, nil
}
