package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	domain "github.com/oshokin/sayit-alarm/internal/domain/alarm"
	"github.com/oshokin/sayit-alarm/internal/logger"
	"github.com/oshokin/sayit-alarm/internal/sayit"
)

// AlarmSource loads the alarm being delivered.
type AlarmSource interface {
	Get(ctx context.Context, id int64) (*domain.Alarm, error)
}

// Player plays the ringtone and drives the vibration motor.
type Player interface {
	Start(ctx context.Context, ringtoneRef string, alertType domain.AlertType) error
	Stop(ctx context.Context) error
}

// Snoozer registers snooze wakeups.
type Snoozer interface {
	ScheduleSnooze(ctx context.Context, alarmID int64, minutes int) (domain.ScheduledTrigger, error)
}

// Observer is called after every committed transition.
type Observer func(Snapshot)

var (
	// ErrSessionClosed is returned for requests sent to a finished session.
	ErrSessionClosed = errors.New("delivery session is closed")
	// ErrInvalidTransition is returned for requests the current state does not accept.
	ErrInvalidTransition = errors.New("request is not allowed in the current state")
	// ErrSnoozeUnavailable is returned when the session was created without a snoozer.
	ErrSnoozeUnavailable = errors.New("snooze is not available")
	// ErrNoSession is returned by owners when an alarm has no live session.
	ErrNoSession = errors.New("alarm is not ringing")
)

// disabledDetail is reported when the woken alarm has been switched off.
const disabledDetail = "alarm is disabled"

// requestKind enumerates user requests.
type requestKind string

const (
	requestChallenge      requestKind = "challenge"
	requestDismiss        requestKind = "dismiss"
	requestSnooze         requestKind = "snooze"
	requestStartListening requestKind = "start_listening"
	requestStopChallenge  requestKind = "stop_challenge"
)

// request is a queued user request awaiting its reply.
type request struct {
	kind    requestKind
	minutes int
	reply   chan error
}

// Session delivers one firing alarm.
type Session struct {
	// id is a random identifier for logs and observers.
	id string
	// alarmID is the alarm carried by the wake event.
	alarmID int64

	source     AlarmSource
	player     Player
	recognizer sayit.Recognizer
	snoozer    Snoozer
	engine     *sayit.Engine
	observers  []Observer

	// Owned by the Run goroutine.
	alarm     *domain.Alarm
	playing   bool
	releasing bool

	// mu guards snapshot for readers outside the Run goroutine.
	mu       sync.RWMutex
	snapshot Snapshot

	requests    chan request
	disconnects chan string
	done        chan struct{}
}

// Option configures a session.
type Option func(*Session)

// WithObserver registers an observer.
func WithObserver(observer Observer) Option {
	return func(s *Session) {
		if observer != nil {
			s.observers = append(s.observers, observer)
		}
	}
}

// WithSnoozer enables snoozing through the provided scheduler.
func WithSnoozer(snoozer Snoozer) Option {
	return func(s *Session) {
		s.snoozer = snoozer
	}
}

// WithSessionID overrides the generated session id.
func WithSessionID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// NewSession creates an idle session for the alarm carried by a wake event.
func NewSession(
	alarmID int64,
	source AlarmSource,
	player Player,
	recognizer sayit.Recognizer,
	opts ...Option,
) *Session {
	s := &Session{
		id:          uuid.NewString(),
		alarmID:     alarmID,
		source:      source,
		player:      player,
		recognizer:  recognizer,
		requests:    make(chan request),
		disconnects: make(chan string, 1),
		done:        make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.engine = sayit.NewEngine(recognizer, sayit.WithObserver(s.onChallenge))
	s.snapshot = Snapshot{
		SessionID: s.id,
		AlarmID:   alarmID,
		Status:    StatusIdle,
		Challenge: s.engine.State(),
	}

	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// AlarmID returns the alarm being delivered.
func (s *Session) AlarmID() int64 {
	return s.alarmID
}

// Snapshot returns the last committed state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshot
}

// Done is closed once the session reaches a terminal state and Run returns.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// RequestChallenge stops the ringing and starts the SayIt challenge. Alarms
// without scripts are dismissed right away.
func (s *Session) RequestChallenge(ctx context.Context) error {
	return s.send(ctx, request{kind: requestChallenge})
}

// Dismiss dismisses an alarm without scripts. For alarms with scripts it starts
// the challenge, which dismisses the alarm once completed.
func (s *Session) Dismiss(ctx context.Context) error {
	return s.send(ctx, request{kind: requestDismiss})
}

// Snooze commits a snooze of the given length and ends the session.
func (s *Session) Snooze(ctx context.Context, minutes int) error {
	return s.send(ctx, request{kind: requestSnooze, minutes: minutes})
}

// StartListening restarts speech capture during the challenge, e.g. after a recognizer error.
func (s *Session) StartListening(ctx context.Context) error {
	return s.send(ctx, request{kind: requestStartListening})
}

// StopChallenge abandons the challenge and resumes ringing.
func (s *Session) StopChallenge(ctx context.Context) error {
	return s.send(ctx, request{kind: requestStopChallenge})
}

// OnDisconnect signals that the platform connection dropped. It never blocks;
// the session moves to StatusDisconnected as soon as the loop picks it up.
func (s *Session) OnDisconnect(detail string) {
	select {
	case s.disconnects <- detail:
	case <-s.done:
	default:
		// A disconnect is already queued.
	}
}

// Run drives the session until it reaches a terminal state. It must be called once.
// Cancelling ctx disconnects the session.
func (s *Session) Run(ctx context.Context) {
	defer close(s.done)

	ctx = logger.WithKV(logger.WithName(ctx, "delivery"), "session_id", s.id, "alarm_id", s.alarmID)

	s.connect(ctx)

	var events <-chan sayit.Event
	if s.recognizer != nil {
		events = s.recognizer.Events()
	}

	for !s.snapshot.Status.IsTerminal() {
		select {
		case <-ctx.Done():
			s.disconnect(ctx, ctx.Err().Error())
		case detail := <-s.disconnects:
			s.disconnect(ctx, detail)
		case req := <-s.requests:
			req.reply <- s.handle(ctx, req)
		case event, ok := <-events:
			if !ok {
				events = nil
				event = sayit.Event{Type: sayit.EventError, Reason: sayit.ReasonNetwork}
			}

			s.engine.Handle(ctx, event)
			s.checkChallenge(ctx)
		}
	}

	logger.InfoKV(ctx, "Delivery session finished", "status", s.snapshot.Status, "reason", s.snapshot.Reason)
}

// send queues a request and waits for its reply.
func (s *Session) send(ctx context.Context, req request) error {
	req.reply = make(chan error, 1)

	select {
	case s.requests <- req:
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// connect binds the session to the alarm and starts the player.
func (s *Session) connect(ctx context.Context) {
	s.commit(func(snapshot *Snapshot) {
		snapshot.Status = StatusConnecting
	})

	alarm, err := s.source.Get(ctx, s.alarmID)
	if err != nil {
		s.disconnect(ctx, fmt.Sprintf("get alarm: %v", err))

		return
	}

	// A wakeup left over from before the alarm was switched off must not ring.
	if !alarm.Enabled {
		s.disconnect(ctx, disabledDetail)

		return
	}

	if err = s.player.Start(ctx, alarm.RingtoneRef, alarm.AlertType); err != nil {
		s.disconnect(ctx, fmt.Sprintf("start player: %v", err))

		return
	}

	s.alarm = alarm
	s.playing = true

	// A disconnect reported while binding wins over ringing.
	select {
	case detail := <-s.disconnects:
		s.disconnect(ctx, detail)

		return
	default:
	}

	s.commit(func(snapshot *Snapshot) {
		snapshot.Status = StatusRinging
		snapshot.Label = alarm.Label
	})

	logger.InfoKV(ctx, "Alarm ringing", "label", alarm.Label, "alert_type", alarm.AlertType)
}

// handle applies a user request.
func (s *Session) handle(ctx context.Context, req request) error {
	status := s.snapshot.Status

	switch req.kind {
	case requestChallenge, requestDismiss:
		return s.startChallenge(ctx)
	case requestSnooze:
		return s.snooze(ctx, req.minutes)
	case requestStartListening:
		if status != StatusChallenge {
			return ErrInvalidTransition
		}

		if _, err := s.engine.StartListening(ctx); err != nil {
			return fmt.Errorf("start listening: %w", err)
		}

		return nil
	case requestStopChallenge:
		return s.stopChallenge(ctx)
	default:
		return fmt.Errorf("%w: unknown request %q", ErrInvalidTransition, req.kind)
	}
}

// startChallenge moves a ringing alarm to the challenge, or dismisses it when
// there is nothing to say.
func (s *Session) startChallenge(ctx context.Context) error {
	if s.snapshot.Status != StatusRinging {
		return ErrInvalidTransition
	}

	if !s.alarm.HasChallenge() {
		s.finish(ctx, func(snapshot *Snapshot) {
			snapshot.Status = StatusDismissed
		})

		return nil
	}

	s.stopPlayer(ctx)

	s.commit(func(snapshot *Snapshot) {
		snapshot.Status = StatusChallenge
	})

	s.engine.Start(ctx, s.alarm.Scripts)
	s.checkChallenge(ctx)

	return nil
}

// stopChallenge abandons the challenge and rings again.
func (s *Session) stopChallenge(ctx context.Context) error {
	if s.snapshot.Status != StatusChallenge {
		return ErrInvalidTransition
	}

	s.engine.Stop(ctx)

	if err := s.player.Start(ctx, s.alarm.RingtoneRef, s.alarm.AlertType); err != nil {
		s.disconnect(ctx, fmt.Sprintf("restart player: %v", err))

		return nil
	}

	s.playing = true

	s.commit(func(snapshot *Snapshot) {
		snapshot.Status = StatusRinging
	})

	return nil
}

// snooze registers the snooze wakeup and ends the session.
func (s *Session) snooze(ctx context.Context, minutes int) error {
	if s.snapshot.Status != StatusRinging && s.snapshot.Status != StatusChallenge {
		return ErrInvalidTransition
	}

	if s.snoozer == nil {
		return ErrSnoozeUnavailable
	}

	trigger, err := s.snoozer.ScheduleSnooze(ctx, s.alarmID, minutes)
	if err != nil {
		return fmt.Errorf("schedule snooze: %w", err)
	}

	s.finish(ctx, func(snapshot *Snapshot) {
		snapshot.Status = StatusSnoozed
		snapshot.SnoozedUntil = trigger.TriggerAt
	})

	return nil
}

// checkChallenge dismisses the alarm once the challenge completes.
func (s *Session) checkChallenge(ctx context.Context) {
	if s.snapshot.Status == StatusChallenge && s.engine.State().Status == sayit.StatusCompleted {
		s.finish(ctx, func(snapshot *Snapshot) {
			snapshot.Status = StatusDismissed
		})
	}
}

// disconnect ends the session as connection lost, whatever the current state.
func (s *Session) disconnect(ctx context.Context, detail string) {
	logger.WarnKV(ctx, "Delivery session disconnected", "status", s.snapshot.Status, "detail", detail)

	s.finish(ctx, func(snapshot *Snapshot) {
		snapshot.Status = StatusDisconnected
		snapshot.Reason = ReasonConnectionLost
		snapshot.Detail = detail
	})
}

// finish releases the player and the recognizer, then commits the terminal state.
// The loop exits right after, so resources are released exactly once.
func (s *Session) finish(ctx context.Context, mutate func(*Snapshot)) {
	releaseCtx := context.WithoutCancel(ctx)

	s.releasing = true

	switch s.engine.State().Status {
	case sayit.StatusListening, sayit.StatusError:
		s.engine.Stop(releaseCtx)
	default:
	}

	s.stopPlayer(releaseCtx)

	s.commit(mutate)
}

func (s *Session) stopPlayer(ctx context.Context) {
	if !s.playing {
		return
	}

	s.playing = false

	if err := s.player.Stop(ctx); err != nil {
		logger.WarnKV(ctx, "Stop player failed", "error", err)
	}
}

// onChallenge republishes every committed engine transition.
func (s *Session) onChallenge(state sayit.State) {
	if s.releasing {
		return
	}

	s.commit(func(snapshot *Snapshot) {
		snapshot.Challenge = state
	})
}

// commit applies mutate to the snapshot and notifies observers.
func (s *Session) commit(mutate func(*Snapshot)) {
	s.mu.Lock()
	mutate(&s.snapshot)
	snapshot := s.snapshot
	s.mu.Unlock()

	for _, observer := range s.observers {
		observer(snapshot)
	}
}
