// Package schedule computes when alarms fire and registers those wakeups with the
// host timer.
//
// NextTrigger and SnoozeTrigger are pure calculators. Scheduler wraps them with
// the pending-registration check that keeps at most one normal trigger per alarm,
// asking the host timer rather than its own memory so the guarantee survives
// restarts.
package schedule
