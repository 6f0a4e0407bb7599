package delivery

import (
	"time"

	"github.com/oshokin/sayit-alarm/internal/sayit"
)

// Status is the lifecycle phase of a delivery session.
type Status string

const (
	// StatusIdle is the state before Run is called.
	StatusIdle Status = "idle"
	// StatusConnecting means the session is binding to the alarm and the player.
	StatusConnecting Status = "connecting"
	// StatusRinging means the alarm is sounding.
	StatusRinging Status = "ringing"
	// StatusChallenge means the SayIt challenge is running.
	StatusChallenge Status = "challenge_in_progress"
	// StatusDismissed is terminal: the user dismissed the alarm.
	StatusDismissed Status = "dismissed"
	// StatusSnoozed is terminal: a snooze trigger was committed.
	StatusSnoozed Status = "snoozed"
	// StatusDisconnected is terminal: the connection was lost or never established.
	StatusDisconnected Status = "disconnected"
)

// IsTerminal reports whether no further transitions can happen.
func (s Status) IsTerminal() bool {
	return s == StatusDismissed || s == StatusSnoozed || s == StatusDisconnected
}

// ReasonConnectionLost is reported for every disconnection, whether binding
// failed or an established session dropped.
const ReasonConnectionLost = "connection lost"

// Snapshot is the observable state of a session after a committed transition.
type Snapshot struct {
	// SessionID identifies the session in logs and to observers.
	SessionID string
	// AlarmID is the alarm being delivered.
	AlarmID int64
	// Status is the lifecycle phase.
	Status Status
	// Label is the alarm label, set once ringing.
	Label string
	// Challenge is the state of the SayIt challenge.
	Challenge sayit.State
	// SnoozedUntil is set for StatusSnoozed.
	SnoozedUntil time.Time
	// Reason explains StatusDisconnected.
	Reason string
	// Detail carries the underlying cause of a disconnection for logs.
	Detail string
}
