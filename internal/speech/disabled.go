package speech

import (
	"context"
	"fmt"

	"github.com/oshokin/sayit-alarm/internal/sayit"
)

// Disabled is used when no recognizer URL is configured. Every capture fails
// with an unknown reason, so challenges stay in the error state until the
// alarm is snoozed or the session ends.
type Disabled struct{}

// StartCapture always fails.
func (Disabled) StartCapture(context.Context) error {
	return fmt.Errorf("recognizer is not configured: %w", sayit.ReasonUnknown)
}

// StopCapture does nothing.
func (Disabled) StopCapture(context.Context) error { return nil }

// Events returns a nil channel.
func (Disabled) Events() <-chan sayit.Event { return nil }

// Close does nothing.
func (Disabled) Close() error { return nil }
