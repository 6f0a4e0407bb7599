// Package ctl implements alarm-ctl, the command line client of the alarm clock
// daemon.
package ctl
