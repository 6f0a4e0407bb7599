package sayit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// toleranceScript is 52 runes long, so the error budget is floor(10.4) = 10.
const toleranceScript = "The distance result is within the allowed tolerance."

// fakeRecognizer counts capture calls and can fail StartCapture.
type fakeRecognizer struct {
	starts   int
	stops    int
	startErr error
}

// StartCapture records the call and returns startErr.
func (f *fakeRecognizer) StartCapture(context.Context) error {
	f.starts++

	return f.startErr
}

// StopCapture records the call.
func (f *fakeRecognizer) StopCapture(context.Context) error {
	f.stops++

	return nil
}

// Events returns no events; tests feed Handle directly.
func (f *fakeRecognizer) Events() <-chan Event { return nil }

func newTestEngine() (*Engine, *fakeRecognizer, *[]State) {
	var (
		recognizer = new(fakeRecognizer)
		states     []State
	)

	engine := NewEngine(recognizer, WithObserver(func(s State) {
		states = append(states, s)
	}))

	return engine, recognizer, &states
}

func statuses(states []State) []Status {
	result := make([]Status, 0, len(states))
	for _, s := range states {
		result = append(result, s.Status)
	}

	return result
}

// TestGrade_ToleranceBoundary checks that exactly threshold edits fail and one fewer passes.
func TestGrade_ToleranceBoundary(t *testing.T) {
	t.Parallel()

	outcome, distance, threshold := Grade(toleranceScript, toleranceScript+strings.Repeat("!", 9))
	require.Equal(t, OutcomeSuccess, outcome)
	require.Equal(t, 9, distance)
	require.Equal(t, 10, threshold)

	outcome, distance, _ = Grade(toleranceScript, toleranceScript+strings.Repeat("!", 10))
	require.Equal(t, OutcomeFailed, outcome)
	require.Equal(t, 10, distance)

	outcome, _, _ = Grade(toleranceScript, strings.ToLower(toleranceScript))
	require.Equal(t, OutcomeSuccess, outcome)

	// Scripts shorter than five runes have no budget at all.
	outcome, _, threshold = Grade("Hi.", "Hi.")
	require.Equal(t, OutcomeFailed, outcome)
	require.Zero(t, threshold)
}

// TestEngine_EmptyScriptsComplete verifies that an empty challenge completes immediately.
func TestEngine_EmptyScriptsComplete(t *testing.T) {
	t.Parallel()

	engine, recognizer, states := newTestEngine()

	state := engine.Start(context.Background(), nil)
	require.Equal(t, StatusCompleted, state.Status)
	require.Equal(t, []Status{StatusCompleted}, statuses(*states))
	require.Zero(t, recognizer.starts)
}

// TestEngine_RetryAndAdvance walks a two script challenge with a failed attempt.
func TestEngine_RetryAndAdvance(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine, recognizer, states := newTestEngine()
	scripts := []string{toleranceScript, "Every morning I get up with a smile."}

	state := engine.Start(ctx, scripts)
	require.Equal(t, StatusListening, state.Status)
	require.Zero(t, state.ScriptIndex)
	require.Equal(t, 2, state.ScriptCount)
	require.Equal(t, toleranceScript, state.Script)
	require.Equal(t, 1, recognizer.starts)

	// Partial results replace the transcript and keep listening.
	state = engine.Handle(ctx, Event{Type: EventPartial, Text: "The distance"})
	require.Equal(t, StatusListening, state.Status)
	require.Equal(t, "The distance", state.Transcript)

	state = engine.Handle(ctx, Event{Type: EventPartial, Text: "The distance result"})
	require.Equal(t, "The distance result", state.Transcript)

	// A poor attempt retries the same script.
	state = engine.Handle(ctx, Event{Type: EventFinal, Text: "The cat sat on the mat."})
	require.Equal(t, StatusListening, state.Status)
	require.Zero(t, state.ScriptIndex)
	require.Empty(t, state.Transcript)
	require.Equal(t, 2, recognizer.starts)

	graded := (*states)[len(*states)-2]
	require.Equal(t, StatusGraded, graded.Status)
	require.Equal(t, OutcomeFailed, graded.Outcome)
	require.Equal(t, "The cat sat on the mat.", graded.Transcript)

	// A good attempt advances by exactly one.
	state = engine.Handle(ctx, Event{Type: EventFinal, Text: "The distance result is within the allowed tolerance"})
	require.Equal(t, StatusListening, state.Status)
	require.Equal(t, 1, state.ScriptIndex)
	require.Equal(t, scripts[1], state.Script)
	require.Equal(t, 3, recognizer.starts)

	// The last script completes the challenge and stops capture.
	state = engine.Handle(ctx, Event{Type: EventFinal, Text: "every morning I get up with a smile"})
	require.Equal(t, StatusCompleted, state.Status)
	require.Equal(t, 1, recognizer.stops)

	require.Equal(t, []Status{
		StatusListening,
		StatusListening,
		StatusListening,
		StatusGraded,
		StatusListening,
		StatusGraded,
		StatusListening,
		StatusGraded,
		StatusCompleted,
	}, statuses(*states))

	// Events after completion are ignored.
	state = engine.Handle(ctx, Event{Type: EventFinal, Text: "again"})
	require.Equal(t, StatusCompleted, state.Status)
}

// TestEngine_RecognizerError stops capture and waits for an explicit restart.
func TestEngine_RecognizerError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine, recognizer, _ := newTestEngine()

	engine.Start(ctx, []string{"One two three four five.", "Six seven eight nine ten."})
	engine.Handle(ctx, Event{Type: EventFinal, Text: "One two three four five."})

	state := engine.Handle(ctx, Event{Type: EventError, Reason: ReasonNetwork})
	require.Equal(t, StatusError, state.Status)
	require.Equal(t, ReasonNetwork, state.Reason)
	require.Equal(t, 1, state.ScriptIndex)
	require.Equal(t, 1, recognizer.stops)

	// No transitions until restarted.
	state = engine.Handle(ctx, Event{Type: EventFinal, Text: "Six seven eight nine ten."})
	require.Equal(t, StatusError, state.Status)

	state, err := engine.StartListening(ctx)
	require.NoError(t, err)
	require.Equal(t, StatusListening, state.Status)
	require.Equal(t, 1, state.ScriptIndex)

	state = engine.Handle(ctx, Event{Type: EventFinal, Text: "Six seven eight nine ten."})
	require.Equal(t, StatusCompleted, state.Status)

	_, err = engine.StartListening(ctx)
	require.ErrorIs(t, err, ErrNotListening)
}

// TestEngine_StartCaptureFailure maps adapter errors to named reasons.
func TestEngine_StartCaptureFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine, recognizer, _ := newTestEngine()

	recognizer.startErr = fmt.Errorf("dial recognizer: %w", ReasonBusy)

	state := engine.Start(ctx, []string{"Rise and shine, it is morning."})
	require.Equal(t, StatusError, state.Status)
	require.Equal(t, ReasonBusy, state.Reason)

	recognizer.startErr = errors.New("boom")

	state, err := engine.StartListening(ctx)
	require.NoError(t, err)
	require.Equal(t, ReasonUnknown, state.Reason)

	state = engine.Handle(ctx, Event{Type: EventError})
	require.Equal(t, StatusError, state.Status)
}

// TestEngine_Stop discards the challenge from any state.
func TestEngine_Stop(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine, recognizer, _ := newTestEngine()

	engine.Start(ctx, []string{"Rise and shine, it is morning."})

	state := engine.Stop(ctx)
	require.Equal(t, StatusIdle, state.Status)
	require.Equal(t, 1, recognizer.stops)

	state = engine.Handle(ctx, Event{Type: EventFinal, Text: "Rise and shine, it is morning."})
	require.Equal(t, StatusIdle, state.Status)

	// Stopping an idle engine does not touch the recognizer.
	engine.Stop(ctx)
	require.Equal(t, 1, recognizer.stops)
}

// TestParseErrorReason maps known codes and falls back to unknown.
func TestParseErrorReason(t *testing.T) {
	t.Parallel()

	require.Equal(t, ReasonPermission, ParseErrorReason("permission"))
	require.Equal(t, ReasonLanguageUnsupported, ParseErrorReason("language_unsupported"))
	require.Equal(t, ReasonUnknown, ParseErrorReason("server_exploded"))
	require.Contains(t, ReasonTimeout.Error(), "timeout")
}
