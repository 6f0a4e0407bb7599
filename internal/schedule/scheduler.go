package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/oshokin/sayit-alarm/internal/domain/alarm"
	"github.com/oshokin/sayit-alarm/internal/logger"
	"github.com/oshokin/sayit-alarm/internal/metrics"
)

// AlarmStore is the read side of the persistent alarm store.
type AlarmStore interface {
	Get(ctx context.Context, id int64) (*domain.Alarm, error)
	ListEnabled(ctx context.Context) ([]*domain.Alarm, error)
}

// WakeupTimer is the host one-shot timer. A registration stays pending until it
// fires or is cancelled; registering an existing token replaces it.
type WakeupTimer interface {
	QueryPending(ctx context.Context, token string) (bool, error)
	Register(ctx context.Context, token string, at time.Time, alarmID int64) error
	Cancel(ctx context.Context, token string) error
}

// Result describes the outcome of ScheduleAlarm.
type Result struct {
	// Trigger is the registered trigger. Only Token, Kind and AlarmID are set
	// when a registration was already pending.
	Trigger domain.ScheduledTrigger
	// Registered is false when a pending registration made the request a no-op.
	Registered bool
}

var (
	// ErrAlarmDisabled is returned when scheduling an alarm that is switched off.
	ErrAlarmDisabled = errors.New("alarm is disabled")
	// ErrInvalidSnooze is returned for non-positive snooze durations.
	ErrInvalidSnooze = errors.New("snooze minutes must be positive")
)

// Scheduler registers alarm wakeups with the host timer, making sure each alarm
// has at most one pending normal trigger.
type Scheduler struct {
	// store provides alarm definitions.
	store AlarmStore
	// timer is the host wakeup timer.
	timer WakeupTimer
	// locks serializes query-then-register per alarm id.
	locks keyedMutex
	// now returns the current local time.
	now func() time.Time
	// recorder counts registrations.
	recorder metrics.Recorder
}

// Option configures the scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(recorder metrics.Recorder) Option {
	return func(s *Scheduler) {
		if recorder != nil {
			s.recorder = recorder
		}
	}
}

// NewScheduler creates a scheduler over the provided store and timer.
func NewScheduler(store AlarmStore, timer WakeupTimer, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:    store,
		timer:    timer,
		now:      time.Now,
		recorder: metrics.Noop{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// ScheduleAlarm registers the next normal trigger of an alarm unless one is already
// pending. A failed pending query is returned as is and nothing gets registered.
func (s *Scheduler) ScheduleAlarm(ctx context.Context, alarmID int64) (Result, error) {
	unlock := s.locks.Lock(alarmID)
	defer unlock()

	token := domain.NormalToken(alarmID)
	result := Result{
		Trigger: domain.ScheduledTrigger{
			AlarmID: alarmID,
			Kind:    domain.TriggerNormal,
			Token:   token,
		},
	}

	pending, err := s.timer.QueryPending(ctx, token)
	if err != nil {
		return result, fmt.Errorf("query pending trigger %s: %w", token, err)
	}

	if pending {
		s.recorder.TriggerDeduplicated()
		logger.DebugKV(ctx, "Trigger already pending", "alarm_id", alarmID, "token", token)

		return result, nil
	}

	alarm, err := s.store.Get(ctx, alarmID)
	if err != nil {
		return result, fmt.Errorf("get alarm %d: %w", alarmID, err)
	}

	if !alarm.Enabled {
		return result, fmt.Errorf("schedule alarm %d: %w", alarmID, ErrAlarmDisabled)
	}

	at := NextTrigger(alarm.Hour, alarm.Minute, alarm.WeeklyRepeat, s.now())

	if err = s.timer.Register(ctx, token, at, alarmID); err != nil {
		return result, fmt.Errorf("register trigger %s: %w", token, err)
	}

	s.recorder.TriggerRegistered(string(domain.TriggerNormal))
	logger.InfoKV(ctx, "Alarm scheduled", "alarm_id", alarmID, "trigger_at", at.Format(time.RFC3339))

	result.Trigger.TriggerAt = at
	result.Registered = true

	return result, nil
}

// ScheduleSnooze registers a one-shot snooze trigger minutes from now. Snoozes skip
// the pending check; the outstanding normal trigger is cancelled so it cannot ring
// during the snooze, and the owner restores it with ScheduleAlarm once the alarm is
// dismissed.
func (s *Scheduler) ScheduleSnooze(ctx context.Context, alarmID int64, minutes int) (domain.ScheduledTrigger, error) {
	if minutes <= 0 {
		return domain.ScheduledTrigger{}, ErrInvalidSnooze
	}

	unlock := s.locks.Lock(alarmID)
	defer unlock()

	if err := s.timer.Cancel(ctx, domain.NormalToken(alarmID)); err != nil {
		return domain.ScheduledTrigger{}, fmt.Errorf("cancel normal trigger of alarm %d: %w", alarmID, err)
	}

	trigger := domain.ScheduledTrigger{
		AlarmID:   alarmID,
		Kind:      domain.TriggerSnooze,
		TriggerAt: SnoozeTrigger(minutes, s.now()),
		Token:     domain.SnoozeToken(alarmID),
	}

	if err := s.timer.Register(ctx, trigger.Token, trigger.TriggerAt, alarmID); err != nil {
		return domain.ScheduledTrigger{}, fmt.Errorf("register trigger %s: %w", trigger.Token, err)
	}

	s.recorder.TriggerRegistered(string(domain.TriggerSnooze))
	logger.InfoKV(ctx, "Alarm snoozed",
		"alarm_id", alarmID,
		"minutes", minutes,
		"trigger_at", trigger.TriggerAt.Format(time.RFC3339),
	)

	return trigger, nil
}

// CancelAlarm cancels both the normal and the snooze trigger of an alarm.
func (s *Scheduler) CancelAlarm(ctx context.Context, alarmID int64) error {
	unlock := s.locks.Lock(alarmID)
	defer unlock()

	for _, token := range []string{domain.NormalToken(alarmID), domain.SnoozeToken(alarmID)} {
		if err := s.timer.Cancel(ctx, token); err != nil {
			return fmt.Errorf("cancel trigger %s: %w", token, err)
		}
	}

	logger.InfoKV(ctx, "Alarm cancelled", "alarm_id", alarmID)

	return nil
}

// NextTrigger computes, without registering anything, when an alarm fires next.
func (s *Scheduler) NextTrigger(ctx context.Context, alarmID int64) (time.Time, error) {
	alarm, err := s.store.Get(ctx, alarmID)
	if err != nil {
		return time.Time{}, fmt.Errorf("get alarm %d: %w", alarmID, err)
	}

	return NextTrigger(alarm.Hour, alarm.Minute, alarm.WeeklyRepeat, s.now()), nil
}

// Reconcile schedules every enabled alarm. Alarms with a pending trigger are left
// untouched, so it is safe to run at start-up and periodically.
func (s *Scheduler) Reconcile(ctx context.Context) error {
	alarms, err := s.store.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("list enabled alarms: %w", err)
	}

	var (
		errs       []error
		registered int
	)

	for _, alarm := range alarms {
		result, err := s.ScheduleAlarm(ctx, alarm.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if result.Registered {
			registered++
		}
	}

	logger.InfoKV(ctx, "Alarms reconciled", "enabled", len(alarms), "registered", registered, "failed", len(errs))

	return errors.Join(errs...)
}
