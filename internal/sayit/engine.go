package sayit

import (
	"context"
	"errors"
	"slices"
	"unicode/utf8"

	"github.com/oshokin/sayit-alarm/internal/logger"
	"github.com/oshokin/sayit-alarm/internal/textdistance"
)

// toleranceDivisor turns a script length into the error budget: floor(20% of runes).
const toleranceDivisor = 5

// Recognizer is the streaming speech-to-text engine.
type Recognizer interface {
	// StartCapture begins capturing one attempt.
	StartCapture(ctx context.Context) error
	// StopCapture stops capturing, discarding any pending transcript.
	StopCapture(ctx context.Context) error
	// Events streams recognizer events. The channel may be nil.
	Events() <-chan Event
}

// Observer is called after every committed transition.
type Observer func(State)

// ErrNotListening is returned by StartListening when no challenge can be resumed.
var ErrNotListening = errors.New("challenge is not running")

// Engine drives one SayIt challenge.
type Engine struct {
	// recognizer captures the spoken attempts.
	recognizer Recognizer
	// scripts is the immutable copy taken at Start.
	scripts []string
	// state is the last committed state.
	state State
	// observers are notified after each commit.
	observers []Observer
}

// Option configures the engine.
type Option func(*Engine)

// WithObserver registers an observer.
func WithObserver(observer Observer) Option {
	return func(e *Engine) {
		if observer != nil {
			e.observers = append(e.observers, observer)
		}
	}
}

// NewEngine creates an idle engine.
func NewEngine(recognizer Recognizer, opts ...Option) *Engine {
	e := &Engine{
		recognizer: recognizer,
		state:      State{Status: StatusIdle},
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Grade compares a transcript with its script. The attempt succeeds when the
// edit distance is strictly below floor(20% of the script length in runes).
func Grade(script, transcript string) (outcome Outcome, distance, threshold int) {
	threshold = utf8.RuneCountInString(script) / toleranceDivisor
	distance = textdistance.Levenshtein(script, transcript)

	if distance < threshold {
		return OutcomeSuccess, distance, threshold
	}

	return OutcomeFailed, distance, threshold
}

// State returns the last committed state.
func (e *Engine) State() State {
	return e.state
}

// Start begins a challenge over a copy of scripts. An empty list completes at once.
func (e *Engine) Start(ctx context.Context, scripts []string) State {
	e.scripts = slices.Clone(scripts)

	if len(e.scripts) == 0 {
		e.commit(State{Status: StatusCompleted})

		return e.state
	}

	e.listen(ctx, 0)

	return e.state
}

// Handle applies a recognizer event. Events are ignored unless the engine is listening.
func (e *Engine) Handle(ctx context.Context, event Event) State {
	if e.state.Status != StatusListening {
		logger.DebugKV(ctx, "Recognizer event ignored", "event", event.Type, "status", e.state.Status)

		return e.state
	}

	switch event.Type {
	case EventReady:
		logger.DebugKV(ctx, "Recognizer ready", "script_index", e.state.ScriptIndex)
	case EventPartial:
		next := e.state
		next.Transcript = event.Text
		e.commit(next)
	case EventFinal:
		e.grade(ctx, event.Text)
	case EventError:
		e.fail(ctx, event.Reason)
	default:
		logger.WarnKV(ctx, "Unknown recognizer event", "event", event.Type)
	}

	return e.state
}

// StartListening restarts capture for the active script after a recognizer error,
// or restarts the current attempt while listening.
func (e *Engine) StartListening(ctx context.Context) (State, error) {
	switch e.state.Status {
	case StatusListening, StatusError:
		e.listen(ctx, e.state.ScriptIndex)

		return e.state, nil
	default:
		return e.state, ErrNotListening
	}
}

// Stop stops capture and discards the challenge.
func (e *Engine) Stop(ctx context.Context) State {
	if e.state.Status == StatusListening {
		e.stopCapture(ctx)
	}

	e.scripts = nil
	e.commit(State{Status: StatusIdle})

	return e.state
}

// grade scores a final transcript and moves to the next script, retries the
// same one, or completes.
func (e *Engine) grade(ctx context.Context, transcript string) {
	index := e.state.ScriptIndex
	script := e.scripts[index]

	outcome, distance, threshold := Grade(script, transcript)

	logger.InfoKV(ctx, "Attempt graded",
		"script_index", index,
		"outcome", outcome,
		"distance", distance,
		"threshold", threshold,
	)

	e.commit(State{
		Status:      StatusGraded,
		ScriptIndex: index,
		ScriptCount: len(e.scripts),
		Script:      script,
		Transcript:  transcript,
		Outcome:     outcome,
	})

	switch {
	case outcome == OutcomeFailed:
		e.listen(ctx, index)
	case index+1 == len(e.scripts):
		e.stopCapture(ctx)
		e.commit(State{Status: StatusCompleted, ScriptIndex: index, ScriptCount: len(e.scripts)})
	default:
		e.listen(ctx, index+1)
	}
}

// listen commits Listening for the script at index and (re)starts capture.
func (e *Engine) listen(ctx context.Context, index int) {
	e.commit(State{
		Status:      StatusListening,
		ScriptIndex: index,
		ScriptCount: len(e.scripts),
		Script:      e.scripts[index],
	})

	if err := e.recognizer.StartCapture(ctx); err != nil {
		var reason ErrorReason
		if !errors.As(err, &reason) {
			reason = ReasonUnknown
		}

		logger.ErrorKV(ctx, "Start capture failed", "error", err, "reason", reason)
		e.fail(ctx, reason)
	}
}

// fail stops capture and commits the error state.
func (e *Engine) fail(ctx context.Context, reason ErrorReason) {
	if reason == "" {
		reason = ReasonUnknown
	}

	e.stopCapture(ctx)
	e.commit(State{
		Status:      StatusError,
		ScriptIndex: e.state.ScriptIndex,
		ScriptCount: len(e.scripts),
		Script:      e.state.Script,
		Reason:      reason,
	})
}

func (e *Engine) stopCapture(ctx context.Context) {
	if err := e.recognizer.StopCapture(ctx); err != nil {
		logger.WarnKV(ctx, "Stop capture failed", "error", err)
	}
}

// commit stores the new state and notifies observers.
func (e *Engine) commit(next State) {
	e.state = next

	for _, observer := range e.observers {
		observer(next)
	}
}
