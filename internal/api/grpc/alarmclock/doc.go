// Package alarmclock implements the gRPC transport of the alarm clock daemon.
//
// The sayit.alarmclock.v1.AlarmClock service is declared by hand over protobuf
// well-known types, so no generated code is needed on either side. Server
// adapts the daemon operations to it and AlarmClockClient calls it.
package alarmclock
