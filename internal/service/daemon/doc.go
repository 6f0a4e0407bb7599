// Package daemon runs alarm-clockd: it owns the alarm store, the wakeup timer and
// the scheduler, turns wakeups into delivery sessions and serves the control API.
package daemon
