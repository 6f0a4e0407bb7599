// Package config defines the settings used by the alarm clock binaries and
// provides helpers to load, validate and save them in YAML format.
//
// The Config type holds the gRPC address, the store and wakeup file locations,
// logging, metrics and reconcile settings, and the recognizer and player setup.
package config
