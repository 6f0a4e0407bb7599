package logger

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// DefaultFileMaxSizeMB is the size a log file may grow to before it is rotated.
	DefaultFileMaxSizeMB = 20
	// DefaultFileMaxBackups is the number of rotated files kept on disk.
	DefaultFileMaxBackups = 5
	// DefaultFileMaxAgeDays is how long rotated files are kept.
	DefaultFileMaxAgeDays = 14
)

// NewWithFile creates a logger that writes to the console and to a rotating file at path.
// The file uses a JSON encoder so it can be shipped to log collectors as is.
func NewWithFile(level zapcore.LevelEnabler, path string, options ...zap.Option) *zap.SugaredLogger {
	if level == nil {
		level = defaultLevel
	}

	//nolint:exhaustruct // Remaining lumberjack fields keep their defaults.
	rotator := &lumberjack.Logger{
		Filename:   filepath.Clean(path),
		MaxSize:    DefaultFileMaxSizeMB,
		MaxBackups: DefaultFileMaxBackups,
		MaxAge:     DefaultFileMaxAgeDays,
		Compress:   true,
	}

	fileEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())

	core := zapcore.NewTee(
		zapcore.NewCore(newConsoleEncoder(), zapcore.AddSync(os.Stdout), level),
		zapcore.NewCore(fileEncoder, zapcore.AddSync(rotator), level),
	)

	return zap.New(core, options...).Sugar()
}
