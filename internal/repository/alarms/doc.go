// Package alarms implements the persistent alarm store on top of SQLite.
package alarms
