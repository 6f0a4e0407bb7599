package sayit

// Status is the phase of the challenge.
type Status string

const (
	// StatusIdle means no challenge is running.
	StatusIdle Status = "idle"
	// StatusListening means the recognizer captures an attempt at the active script.
	StatusListening Status = "listening"
	// StatusGraded is published for every final transcript before moving on.
	StatusGraded Status = "graded"
	// StatusCompleted means every script was read successfully.
	StatusCompleted Status = "completed"
	// StatusError means the recognizer failed; capture is stopped until restarted.
	StatusError Status = "error"
)

// Outcome is the grade of one spoken attempt.
type Outcome string

const (
	// OutcomeSuccess means the transcript was close enough to the script.
	OutcomeSuccess Outcome = "success"
	// OutcomeFailed means the transcript had too many errors.
	OutcomeFailed Outcome = "failed"
)

// ErrorReason names a recognizer failure. It implements error so adapters can
// wrap it and the engine can recover it with errors.As.
type ErrorReason string

const (
	// ReasonAudio is an audio recording failure.
	ReasonAudio ErrorReason = "audio"
	// ReasonNetwork is a network failure between the client and the recognizer.
	ReasonNetwork ErrorReason = "network"
	// ReasonPermission means microphone access was denied.
	ReasonPermission ErrorReason = "permission"
	// ReasonTimeout means no speech was heard in time.
	ReasonTimeout ErrorReason = "timeout"
	// ReasonBusy means the recognizer is serving someone else.
	ReasonBusy ErrorReason = "busy"
	// ReasonLanguageUnsupported means the requested language is not available.
	ReasonLanguageUnsupported ErrorReason = "language_unsupported"
	// ReasonUnknown covers everything else.
	ReasonUnknown ErrorReason = "unknown"
)

// Error implements error.
func (r ErrorReason) Error() string {
	return "recognizer error: " + string(r)
}

// ParseErrorReason maps a recognizer error code to a reason, falling back to ReasonUnknown.
func ParseErrorReason(code string) ErrorReason {
	switch reason := ErrorReason(code); reason {
	case ReasonAudio, ReasonNetwork, ReasonPermission, ReasonTimeout,
		ReasonBusy, ReasonLanguageUnsupported:
		return reason
	default:
		return ReasonUnknown
	}
}

// State is a committed state of the engine.
type State struct {
	// Status is the phase of the challenge.
	Status Status
	// ScriptIndex is the 0-based index of the active script.
	ScriptIndex int
	// ScriptCount is the number of scripts in the challenge.
	ScriptCount int
	// Script is the text of the active script, empty outside Listening and Graded.
	Script string
	// Transcript is the partial transcript while listening or the graded one.
	Transcript string
	// Outcome is set for StatusGraded.
	Outcome Outcome
	// Reason is set for StatusError.
	Reason ErrorReason
}

// EventType is the kind of a recognizer event.
type EventType string

const (
	// EventReady means the recognizer is ready for speech.
	EventReady EventType = "ready"
	// EventPartial carries an intermediate transcript.
	EventPartial EventType = "partial"
	// EventFinal carries the transcript of a finished attempt.
	EventFinal EventType = "final"
	// EventError reports a recognizer failure.
	EventError EventType = "error"
)

// Event is a message from the speech recognizer.
type Event struct {
	Type   EventType
	Text   string
	Reason ErrorReason
}
