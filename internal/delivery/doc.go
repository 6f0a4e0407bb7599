// Package delivery coordinates a firing alarm from wakeup to dismissal.
//
// A Session is created for every wake event. It binds the alarm to the audio
// player, rings, optionally runs the SayIt challenge and ends in one of the
// terminal states: dismissed, snoozed or disconnected. All inputs are queued
// and handled one at a time by the goroutine running Session.Run.
package delivery
