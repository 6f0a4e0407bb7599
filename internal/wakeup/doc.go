// Package wakeup implements the host one-shot wakeup timer.
//
// Registrations are keyed by token, persisted through the wakeup repository and
// re-armed on Start, so wakeups survive a daemon restart. Registrations that
// became due while the daemon was down fire right after Start.
package wakeup
