package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oshokin/sayit-alarm/internal/delivery"
	domain "github.com/oshokin/sayit-alarm/internal/domain/alarm"
	"github.com/oshokin/sayit-alarm/internal/logger"
	"github.com/oshokin/sayit-alarm/internal/metrics"
	"github.com/oshokin/sayit-alarm/internal/sayit"
	"github.com/oshokin/sayit-alarm/internal/schedule"
	"github.com/oshokin/sayit-alarm/internal/wakeup"
)

const (
	// supersededDetail is reported to a session replaced by a newer wakeup of its alarm.
	supersededDetail = "superseded by a new wakeup"
	// requestedDetail is reported to a session disconnected by a control client.
	requestedDetail = "disconnect requested"
)

// AlarmStore is the part of the alarm store the daemon needs.
type AlarmStore interface {
	Get(ctx context.Context, id int64) (*domain.Alarm, error)
	ListEnabled(ctx context.Context) ([]*domain.Alarm, error)
	SetEnabled(ctx context.Context, id int64, enabled bool) error
}

// sessionFactory creates a delivery session for a woken alarm together with a
// release func freeing its player and recognizer.
type sessionFactory func(alarmID int64, opts ...delivery.Option) (*delivery.Session, func())

// service implements the control API and owns the delivery sessions.
// It is unexported to keep the transport decoupled from the implementation.
type service struct {
	// store provides alarm definitions.
	store AlarmStore
	// scheduler registers wakeups.
	scheduler *schedule.Scheduler
	// newSession builds sessions with their player and recognizer.
	newSession sessionFactory
	// sessions indexes the live sessions.
	sessions *sessionRegistry
	// recorder counts graded attempts and finished sessions.
	recorder metrics.Recorder
	// snoozeMinutes is used for snooze requests without a length.
	snoozeMinutes int
	// running tracks session goroutines.
	running sync.WaitGroup
}

// newService creates the daemon service.
func newService(
	store AlarmStore,
	scheduler *schedule.Scheduler,
	newSession sessionFactory,
	recorder metrics.Recorder,
	snoozeMinutes int,
) *service {
	if recorder == nil {
		recorder = metrics.Noop{}
	}

	return &service{
		store:         store,
		scheduler:     scheduler,
		newSession:    newSession,
		sessions:      newSessionRegistry(),
		recorder:      recorder,
		snoozeMinutes: snoozeMinutes,
	}
}

// ScheduleAlarm registers the next trigger of an alarm.
func (s *service) ScheduleAlarm(ctx context.Context, alarmID int64) (bool, error) {
	result, err := s.scheduler.ScheduleAlarm(ctx, alarmID)
	if err != nil {
		return false, err
	}

	return result.Registered, nil
}

// ScheduleSnooze snoozes a ringing alarm through its session, or registers a
// snooze trigger directly when the alarm is not ringing.
func (s *service) ScheduleSnooze(ctx context.Context, alarmID int64, minutes int) (time.Time, error) {
	if minutes == 0 {
		minutes = s.snoozeMinutes
	}

	if session := s.sessions.get(alarmID); session != nil {
		if err := session.Snooze(ctx, minutes); err != nil {
			return time.Time{}, err
		}

		return session.Snapshot().SnoozedUntil, nil
	}

	if _, err := s.store.Get(ctx, alarmID); err != nil {
		return time.Time{}, fmt.Errorf("get alarm %d: %w", alarmID, err)
	}

	trigger, err := s.scheduler.ScheduleSnooze(ctx, alarmID, minutes)
	if err != nil {
		return time.Time{}, err
	}

	return trigger.TriggerAt, nil
}

// CancelAlarm cancels every pending trigger of an alarm.
func (s *service) CancelAlarm(ctx context.Context, alarmID int64) error {
	return s.scheduler.CancelAlarm(ctx, alarmID)
}

// NextTrigger returns when an alarm fires next.
func (s *service) NextTrigger(ctx context.Context, alarmID int64) (time.Time, error) {
	return s.scheduler.NextTrigger(ctx, alarmID)
}

// RequestChallenge starts the challenge of a ringing alarm.
func (s *service) RequestChallenge(ctx context.Context, alarmID int64) error {
	session, err := s.live(alarmID)
	if err != nil {
		return err
	}

	return session.RequestChallenge(ctx)
}

// Dismiss dismisses a ringing alarm.
func (s *service) Dismiss(ctx context.Context, alarmID int64) error {
	session, err := s.live(alarmID)
	if err != nil {
		return err
	}

	return session.Dismiss(ctx)
}

// StartListening restarts recognition of the challenge of a ringing alarm.
func (s *service) StartListening(ctx context.Context, alarmID int64) error {
	session, err := s.live(alarmID)
	if err != nil {
		return err
	}

	return session.StartListening(ctx)
}

// StopChallenge abandons the challenge of a ringing alarm.
func (s *service) StopChallenge(ctx context.Context, alarmID int64) error {
	session, err := s.live(alarmID)
	if err != nil {
		return err
	}

	return session.StopChallenge(ctx)
}

// Disconnect ends the session of a ringing alarm and waits until it is gone.
func (s *service) Disconnect(ctx context.Context, alarmID int64) error {
	session, err := s.live(alarmID)
	if err != nil {
		return err
	}

	session.OnDisconnect(requestedDetail)

	select {
	case <-session.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// live returns the running session of an alarm.
func (s *service) live(alarmID int64) (*delivery.Session, error) {
	session := s.sessions.get(alarmID)
	if session == nil {
		return nil, fmt.Errorf("alarm %d: %w", alarmID, delivery.ErrNoSession)
	}

	return session, nil
}

// consumeWakes starts a session for every wakeup until ctx is done.
func (s *service) consumeWakes(ctx context.Context, wakes <-chan wakeup.Wake) {
	for {
		select {
		case <-ctx.Done():
			return
		case wake := <-wakes:
			s.deliver(ctx, wake)
		}
	}
}

// deliver starts the delivery session of a woken alarm. A session still running
// for the same alarm is disconnected first.
func (s *service) deliver(ctx context.Context, wake wakeup.Wake) {
	logger.InfoKV(ctx, "Alarm woke up", "alarm_id", wake.AlarmID, "kind", wake.Kind)

	session, release := s.newSession(wake.AlarmID,
		delivery.WithSnoozer(s.scheduler),
		delivery.WithObserver(s.observe),
	)

	if previous := s.sessions.put(session); previous != nil {
		previous.OnDisconnect(supersededDetail)
	}

	s.running.Add(1)

	go func() {
		defer s.running.Done()
		defer release()

		session.Run(ctx)
		s.finish(context.WithoutCancel(ctx), session)
	}()
}

// finish restores the schedule of an alarm whose session ended. Snoozed alarms
// keep their snooze trigger and repeating alarms get their next normal trigger.
// One-shot and disabled alarms are switched off with no trigger left pending.
func (s *service) finish(ctx context.Context, session *delivery.Session) {
	s.sessions.remove(session)

	snapshot := session.Snapshot()
	s.recorder.SessionFinished(string(snapshot.Status))

	// A newer session of the same alarm owns its schedule now.
	if snapshot.Status == delivery.StatusSnoozed || s.sessions.get(session.AlarmID()) != nil {
		return
	}

	alarm, err := s.store.Get(ctx, session.AlarmID())
	if err != nil {
		logger.ErrorKV(ctx, "Restore schedule failed", "alarm_id", session.AlarmID(), "error", err)

		return
	}

	if alarm.Enabled && alarm.IsRepeating() {
		if _, err = s.scheduler.ScheduleAlarm(ctx, alarm.ID); err != nil {
			logger.ErrorKV(ctx, "Reschedule alarm failed", "alarm_id", alarm.ID, "error", err)
		}

		return
	}

	if alarm.Enabled {
		if err = s.store.SetEnabled(ctx, alarm.ID, false); err != nil {
			logger.ErrorKV(ctx, "Disable one-shot alarm failed", "alarm_id", alarm.ID, "error", err)
		}
	}

	// Reconcile may have armed another trigger while the alarm was ringing.
	if err = s.scheduler.CancelAlarm(ctx, alarm.ID); err != nil {
		logger.ErrorKV(ctx, "Cancel triggers of finished alarm failed", "alarm_id", alarm.ID, "error", err)
	}
}

// observe records metrics for session transitions.
func (s *service) observe(snapshot delivery.Snapshot) {
	if snapshot.Challenge.Status == sayit.StatusGraded {
		s.recorder.AttemptGraded(string(snapshot.Challenge.Outcome))
	}
}

// wait blocks until every session goroutine has finished.
func (s *service) wait() {
	s.running.Wait()
}
