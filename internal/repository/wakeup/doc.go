// Package wakeup persists pending wakeup registrations.
//
// The FileRepository stores the registrations as protobuf JSON on disk so the
// wakeup timer can re-arm them after a restart.
package wakeup
