package wakeup

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	domain "github.com/oshokin/sayit-alarm/internal/domain/alarm"
	"github.com/oshokin/sayit-alarm/internal/logger"
	wakeuprepo "github.com/oshokin/sayit-alarm/internal/repository/wakeup"
)

// defaultWakesBuffer is the capacity of the wake event channel.
const defaultWakesBuffer = 16

// Wake is raised when a registration fires.
type Wake struct {
	// Token is the fired registration.
	Token string
	// AlarmID is the alarm to deliver.
	AlarmID int64
	// Kind tells normal wakeups and snoozes apart.
	Kind domain.TriggerKind
	// TriggerAt is the instant the registration was due.
	TriggerAt time.Time
}

// entry is an armed registration.
type entry struct {
	registration wakeuprepo.Registration
	timer        *time.Timer
	generation   uint64
}

// Timer is a persistent one-shot timer keyed by token.
type Timer struct {
	repo wakeuprepo.Repository

	mu         sync.Mutex
	entries    map[string]*entry
	generation uint64
	stopped    bool

	wakes chan Wake
	done  chan struct{}
}

// NewTimer creates a timer persisting its registrations through repo.
func NewTimer(repo wakeuprepo.Repository) *Timer {
	return &Timer{
		repo:    repo,
		entries: make(map[string]*entry),
		wakes:   make(chan Wake, defaultWakesBuffer),
		done:    make(chan struct{}),
	}
}

// Wakes streams fired registrations.
func (t *Timer) Wakes() <-chan Wake {
	return t.wakes
}

// Start loads the persisted registrations and arms them. Registrations made
// before Start take precedence over persisted ones with the same token.
func (t *Timer) Start(ctx context.Context) error {
	registrations, err := t.repo.Load(ctx)
	if err != nil && !errors.Is(err, wakeuprepo.ErrNotFound) {
		return fmt.Errorf("load wakeup registrations: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var overdue int

	now := time.Now()

	for _, registration := range registrations {
		if _, ok := t.entries[registration.Token]; ok {
			continue
		}

		if !registration.TriggerAt.After(now) {
			overdue++
		}

		t.arm(ctx, registration)
	}

	logger.InfoKV(ctx, "Wakeup timer started", "registrations", len(t.entries), "overdue", overdue)

	return nil
}

// Stop disarms every registration without forgetting them and ends the wake stream.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}

	t.stopped = true

	for _, e := range t.entries {
		e.timer.Stop()
	}

	close(t.done)
}

// QueryPending reports whether token is registered and has not fired yet.
func (t *Timer) QueryPending(_ context.Context, token string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.entries[token]

	return ok, nil
}

// Register arms token to fire at the given instant, replacing any previous
// registration of the same token.
func (t *Timer) Register(ctx context.Context, token string, at time.Time, alarmID int64) error {
	kind, tokenAlarmID, err := domain.ParseToken(token)
	if err != nil {
		return err
	}

	if tokenAlarmID != alarmID {
		return fmt.Errorf("token %s does not belong to alarm %d", token, alarmID)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	registration := wakeuprepo.Registration{
		Token:     token,
		AlarmID:   alarmID,
		TriggerAt: at,
	}

	next := t.registrations()
	next[token] = registration

	if err = t.persist(ctx, next); err != nil {
		return err
	}

	if previous, ok := t.entries[token]; ok {
		previous.timer.Stop()
	}

	t.arm(ctx, registration)

	logger.DebugKV(ctx, "Wakeup registered", "token", token, "kind", kind, "trigger_at", at.Format(time.RFC3339))

	return nil
}

// Cancel disarms token. Cancelling an unknown token is a no-op.
func (t *Timer) Cancel(ctx context.Context, token string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[token]
	if !ok {
		return nil
	}

	next := t.registrations()
	delete(next, token)

	if err := t.persist(ctx, next); err != nil {
		return err
	}

	e.timer.Stop()
	delete(t.entries, token)

	logger.DebugKV(ctx, "Wakeup cancelled", "token", token)

	return nil
}

// arm starts the timer of registration. Callers hold mu.
func (t *Timer) arm(ctx context.Context, registration wakeuprepo.Registration) {
	t.generation++

	var (
		generation = t.generation
		token      = registration.Token
	)

	t.entries[token] = &entry{
		registration: registration,
		generation:   generation,
		timer: time.AfterFunc(time.Until(registration.TriggerAt), func() {
			t.fire(context.WithoutCancel(ctx), token, generation)
		}),
	}
}

// fire removes the registration and publishes its wake.
func (t *Timer) fire(ctx context.Context, token string, generation uint64) {
	t.mu.Lock()

	e, ok := t.entries[token]
	if !ok || e.generation != generation || t.stopped {
		t.mu.Unlock()

		return
	}

	delete(t.entries, token)

	if err := t.persist(ctx, t.registrations()); err != nil {
		logger.ErrorKV(ctx, "Persist fired wakeup failed", "token", token, "error", err)
	}

	t.mu.Unlock()

	kind, _, _ := domain.ParseToken(token)
	wake := Wake{
		Token:     token,
		AlarmID:   e.registration.AlarmID,
		Kind:      kind,
		TriggerAt: e.registration.TriggerAt,
	}

	logger.InfoKV(ctx, "Wakeup fired", "token", token, "alarm_id", wake.AlarmID)

	select {
	case t.wakes <- wake:
	case <-t.done:
	}
}

// registrations copies the armed registrations. Callers hold mu.
func (t *Timer) registrations() map[string]wakeuprepo.Registration {
	result := make(map[string]wakeuprepo.Registration, len(t.entries))
	for token, e := range t.entries {
		result[token] = e.registration
	}

	return result
}

func (t *Timer) persist(ctx context.Context, registrations map[string]wakeuprepo.Registration) error {
	if err := t.repo.Save(ctx, slices.Collect(maps.Values(registrations))); err != nil {
		return fmt.Errorf("save wakeup registrations: %w", err)
	}

	return nil
}
