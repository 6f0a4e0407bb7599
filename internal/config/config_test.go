package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestValidate checks required fields and format validations for Config.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Missing socket.
	require.ErrorIs(t, Validate(new(Config)), errServerSocketRequired)
	require.ErrorIs(t, Validate(nil), errConfigIsNotSet)

	// Bad socket.
	require.Error(t, Validate(&Config{ServerAddress: "bad:address"}))

	// Bad cron expression.
	require.ErrorContains(t, Validate(&Config{
		ServerAddress:     "127.0.0.1:0",
		ReconcileSchedule: "every now and then",
	}), "reconcile schedule")

	// Bad log level.
	require.Error(t, Validate(&Config{ServerAddress: "127.0.0.1:0", LogLevel: "chatty"}))

	// Negative snooze.
	require.ErrorIs(t, Validate(&Config{ServerAddress: "127.0.0.1:0", SnoozeMinutes: -1}), errInvalidSnooze)

	// Recognizer must be a websocket endpoint.
	require.ErrorIs(t, Validate(&Config{
		ServerAddress: "127.0.0.1:0",
		Recognizer:    RecognizerConfig{URL: "https://stt.local/listen"},
	}), errInvalidRecognizerScheme)

	// Okay with a recognizer and metrics.
	require.NoError(t, Validate(&Config{
		ServerAddress:  "127.0.0.1:0",
		MetricsAddress: "127.0.0.1:9090",
		Recognizer:     RecognizerConfig{URL: "wss://stt.local/listen"},
	}))
}

// TestValidate_Defaults fills optional settings.
func TestValidate_Defaults(t *testing.T) {
	t.Parallel()

	settings := &Config{ServerAddress: "127.0.0.1:50051"}
	require.NoError(t, Validate(settings))

	require.Equal(t, DefaultTimeout, settings.Timeout)
	require.Equal(t, DefaultDatabaseFilename, settings.Database)
	require.Equal(t, DefaultWakeupFilename, settings.WakeupFile)
	require.Equal(t, DefaultLogLevel, settings.LogLevel)
	require.Equal(t, DefaultReconcileSchedule, settings.ReconcileSchedule)
	require.Equal(t, DefaultSnoozeMinutes, settings.SnoozeMinutes)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	settings := &Config{
		ServerAddress:     "127.0.0.1:50051",
		Timeout:           3 * time.Second,
		ReconcileSchedule: "*/5 * * * *",
		SnoozeMinutes:     7,
		Recognizer: RecognizerConfig{
			URL:      "ws://127.0.0.1:8090/v1/listen",
			Language: "en-GB",
		},
		Player: PlayerConfig{
			SoundCommand: []string{"mpv", "--loop=inf", "{ringtone}"},
		},
	}

	require.NoError(t, Save(path, settings))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, settings, loaded)

	// File exists with restricted permissions.
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(DefaultFilePermissions), info.Mode().Perm())
}
