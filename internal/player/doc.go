// Package player rings alarms by running external commands: one that plays the
// ringtone and one that drives the vibration motor.
package player
