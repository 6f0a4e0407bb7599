package player

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	domain "github.com/oshokin/sayit-alarm/internal/domain/alarm"
	"github.com/oshokin/sayit-alarm/internal/logger"
)

// RingtonePlaceholder is replaced with the ringtone reference in command arguments.
const RingtonePlaceholder = "{ringtone}"

// ErrNoCommand indicates no command is configured for the requested alert type.
var ErrNoCommand = errors.New("no player command configured")

// Config lists the commands run while an alarm rings. Commands are expected to
// keep playing until they are killed.
type Config struct {
	// SoundCommand plays the ringtone, e.g. ["mpv", "--loop=inf", "{ringtone}"].
	SoundCommand []string
	// VibrateCommand drives the vibration motor.
	VibrateCommand []string
	// DefaultRingtone is used for alarms without a ringtone.
	DefaultRingtone string
}

// process is a started command and the channel closed once it has been reaped.
type process struct {
	cmd    *exec.Cmd
	exited chan struct{}
}

// Exec is a delivery player backed by external commands.
type Exec struct {
	config Config

	mu        sync.Mutex
	processes []*process
}

// NewExec creates a player for the given commands.
func NewExec(config Config) *Exec {
	return &Exec{config: config}
}

// Start runs the commands the alert type needs. A previous ring is stopped first.
// Parts without a configured command are skipped; if nothing could be started
// ErrNoCommand is returned.
func (e *Exec) Start(ctx context.Context, ringtoneRef string, alertType domain.AlertType) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopLocked(ctx)

	if ringtoneRef == "" {
		ringtoneRef = e.config.DefaultRingtone
	}

	var commands [][]string

	if alertType.HasSound() {
		commands = append(commands, e.config.SoundCommand)
	}

	if alertType.HasVibration() {
		commands = append(commands, e.config.VibrateCommand)
	}

	for _, command := range commands {
		if len(command) == 0 {
			logger.WarnKV(ctx, "Player command not configured", "alert_type", alertType)

			continue
		}

		argv := Expand(command, ringtoneRef)

		//nolint:gosec // Commands come from the operator's configuration file.
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		if err := cmd.Start(); err != nil {
			e.stopLocked(ctx)

			return fmt.Errorf("start %s: %w", argv[0], err)
		}

		p := &process{cmd: cmd, exited: make(chan struct{})}
		go func() {
			_ = cmd.Wait()

			close(p.exited)
		}()

		e.processes = append(e.processes, p)
	}

	if len(e.processes) == 0 {
		return fmt.Errorf("alert type %s: %w", alertType, ErrNoCommand)
	}

	logger.DebugKV(ctx, "Player started", "ringtone", ringtoneRef, "processes", len(e.processes))

	return nil
}

// Stop kills the running commands and waits until they exit.
func (e *Exec) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopLocked(ctx)

	return nil
}

// Running reports the number of live commands.
func (e *Exec) Running() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.processes)
}

func (e *Exec) stopLocked(ctx context.Context) {
	for _, p := range e.processes {
		if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			logger.WarnKV(ctx, "Kill player command failed", "command", p.cmd.Path, "error", err)
		}

		<-p.exited
	}

	e.processes = nil
}

// Expand substitutes the ringtone reference into a command.
func Expand(command []string, ringtoneRef string) []string {
	argv := make([]string, len(command))
	for i, arg := range command {
		argv[i] = strings.ReplaceAll(arg, RingtonePlaceholder, ringtoneRef)
	}

	return argv
}
