package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/sayit-alarm/internal/logger"
)

// Config holds the settings shared by the alarm clock binaries.
type Config struct {
	// ServerAddress is the gRPC address the daemon listens on and alarm-ctl dials.
	ServerAddress string `yaml:"server_addr"`
	// Database is the path to the SQLite alarm store.
	Database string `yaml:"database"`
	// WakeupFile is the path to the JSON file storing pending wakeups.
	WakeupFile string `yaml:"wakeup_file"`
	// Timeout is the duration for network operations and RPC calls.
	Timeout time.Duration `yaml:"timeout"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// LogFile enables a rotating JSON log file next to the console output.
	LogFile string `yaml:"log_file,omitempty"`
	// MetricsAddress enables the Prometheus endpoint when set.
	MetricsAddress string `yaml:"metrics_addr,omitempty"`
	// ReconcileSchedule is a cron expression for re-arming enabled alarms.
	ReconcileSchedule string `yaml:"reconcile_schedule"`
	// SnoozeMinutes is the snooze length used when a request does not name one.
	SnoozeMinutes int `yaml:"snooze_minutes"`
	// Recognizer configures the speech-to-text service.
	Recognizer RecognizerConfig `yaml:"recognizer"`
	// Player configures the ringtone and vibration commands.
	Player PlayerConfig `yaml:"player"`
}

// RecognizerConfig holds the speech-to-text connection settings.
type RecognizerConfig struct {
	// URL is the websocket endpoint of the recognizer.
	URL string `yaml:"url"`
	// Language is the language of the scripts.
	Language string `yaml:"language"`
	// APIKey authenticates against the recognizer.
	APIKey string `yaml:"api_key,omitempty"`
}

// PlayerConfig lists the commands run while an alarm rings.
type PlayerConfig struct {
	// SoundCommand plays the ringtone; {ringtone} is replaced with the alarm's ringtone.
	SoundCommand []string `yaml:"sound_command,flow"`
	// VibrateCommand drives the vibration motor.
	VibrateCommand []string `yaml:"vibrate_command,flow,omitempty"`
	// DefaultRingtone is played for alarms without a ringtone.
	DefaultRingtone string `yaml:"default_ringtone,omitempty"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "alarm-clock-settings.yaml"

	// DefaultDatabaseFilename is the default SQLite alarm store.
	DefaultDatabaseFilename = "alarm-clock.db"

	// DefaultWakeupFilename is the default filename for pending wakeups.
	DefaultWakeupFilename = "alarm-clock-wakeups.json"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second

	// DefaultLogLevel is used when no level is configured.
	DefaultLogLevel = "info"

	// DefaultReconcileSchedule re-arms lost wakeups every quarter of an hour.
	DefaultReconcileSchedule = "@every 15m"

	// DefaultSnoozeMinutes is the snooze length when none is configured.
	DefaultSnoozeMinutes = 10

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errServerSocketRequired is returned when server address is missing.
	errServerSocketRequired = errors.New("server address must be provided")
	// errInvalidSnooze is returned for negative snooze lengths.
	errInvalidSnooze = errors.New("snooze minutes must be positive")
	// errInvalidRecognizerScheme is returned for non-websocket recognizer URLs.
	errInvalidRecognizerScheme = errors.New("recognizer URL must use ws or wss")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes Settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions, the file may carry the recognizer API key.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for required fields and formatting,
// filling in defaults for the optional ones.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.ServerAddress == "" {
		return errServerSocketRequired
	}

	if _, err := net.ResolveTCPAddr("tcp", settings.ServerAddress); err != nil {
		return fmt.Errorf("invalid server socket: %w", err)
	}

	setDefaults(settings)

	if _, ok := logger.ParseLogLevel(settings.LogLevel); !ok {
		return fmt.Errorf("invalid log level %q", settings.LogLevel)
	}

	if settings.MetricsAddress != "" {
		if _, err := net.ResolveTCPAddr("tcp", settings.MetricsAddress); err != nil {
			return fmt.Errorf("invalid metrics socket: %w", err)
		}
	}

	if _, err := cron.ParseStandard(settings.ReconcileSchedule); err != nil {
		return fmt.Errorf("invalid reconcile schedule: %w", err)
	}

	if settings.SnoozeMinutes < 0 {
		return errInvalidSnooze
	}

	if settings.Recognizer.URL == "" {
		return nil
	}

	recognizerURL, err := url.ParseRequestURI(settings.Recognizer.URL)
	if err != nil {
		return fmt.Errorf("invalid recognizer URL: %w", err)
	}

	if recognizerURL.Scheme != "ws" && recognizerURL.Scheme != "wss" {
		return errInvalidRecognizerScheme
	}

	return nil
}

func setDefaults(settings *Config) {
	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	if settings.Database == "" {
		settings.Database = DefaultDatabaseFilename
	}

	if settings.WakeupFile == "" {
		settings.WakeupFile = DefaultWakeupFilename
	}

	if settings.LogLevel == "" {
		settings.LogLevel = DefaultLogLevel
	}

	if settings.ReconcileSchedule == "" {
		settings.ReconcileSchedule = DefaultReconcileSchedule
	}

	if settings.SnoozeMinutes == 0 {
		settings.SnoozeMinutes = DefaultSnoozeMinutes
	}
}
