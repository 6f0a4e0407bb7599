// Package alarms implements the alarm-clockd alarms subcommands: importing alarm
// definitions from a YAML file into the SQLite store and printing them back.
package alarms
