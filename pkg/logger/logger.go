/* pkg/logger/logger.go */

package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log *zap.Logger

// Options controls where log entries go once configuration is loaded.
type Options struct {
	Level string
	File  string
}

// L returns the global logger, initializing the console fallback if needed.
func L() *zap.Logger {
	if log == nil {
		InitializeWithFallback()
	}
	return log
}

// InitializeWithFallback installs a console logger on stderr, levelled by
// LOG_LEVEL. It runs before configuration is read so early failures are logged.
func InitializeWithFallback() {
	log = zap.New(consoleCore(ParseLogLevel(os.Getenv("LOG_LEVEL"))),
		zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	replaceGlobals(log)
}

// Initialize rebuilds the global logger from opts. A JSON file core is teed
// next to the console core when opts.File is set; if the file cannot be
// opened the console core is kept and the failure is reported.
func Initialize(opts Options) error {
	level := ParseLogLevel(opts.Level)
	cores := []zapcore.Core{consoleCore(level)}

	var fileErr error
	if opts.File != "" {
		writer, err := fileWriter(opts.File)
		if err != nil {
			fileErr = err
		} else {
			jsonCfg := zap.NewProductionEncoderConfig()
			jsonCfg.EncodeTime = zapcore.ISO8601TimeEncoder
			jsonCfg.EncodeLevel = zapcore.CapitalLevelEncoder
			cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(jsonCfg), writer, level))
		}
	}

	log = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	replaceGlobals(log)

	if fileErr != nil {
		log.Warn("Could not open log file, logging to console only",
			zap.String("log_path", opts.File), zap.Error(fileErr))
		return fileErr
	}
	log.Debug("Logger initialized",
		zap.String("log_level", level.String()),
		zap.String("log_path", opts.File))
	return nil
}

// Sync flushes any buffered log entries. Should be called before the application exits.
func Sync() error {
	if log == nil {
		return nil
	}
	err := log.Sync()
	// stderr sync fails with EINVAL on terminals; not worth surfacing
	if err != nil && strings.Contains(err.Error(), "invalid argument") {
		return nil
	}
	return err
}

// ParseLogLevel maps LOG_LEVEL style strings to zap levels. Unknown values
// default to warn so the interactive transcript stays readable.
func ParseLogLevel(level string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "TRACE", "DEBUG":
		return zapcore.DebugLevel
	case "INFO":
		return zapcore.InfoLevel
	case "ERROR":
		return zapcore.ErrorLevel
	case "FATAL":
		return zapcore.FatalLevel
	case "DPANIC":
		return zapcore.DPanicLevel
	default:
		return zapcore.WarnLevel
	}
}

// replaceGlobals points both zap.L() and otelzap.Ctx() at l.
func replaceGlobals(l *zap.Logger) {
	zap.ReplaceGlobals(l)
	otelzap.ReplaceGlobals(otelzap.New(l))
}

func consoleCore(level zapcore.Level) zapcore.Core {
	return zapcore.NewCore(
		zapcore.NewConsoleEncoder(DefaultConsoleEncoderConfig()),
		zapcore.Lock(os.Stderr),
		level,
	)
}

// DefaultConsoleEncoderConfig is the compact console layout used on stderr.
func DefaultConsoleEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "T"
	cfg.LevelKey = "L"
	cfg.NameKey = "N"
	cfg.CallerKey = "C"
	cfg.MessageKey = "M"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return cfg
}

func fileWriter(path string) (zapcore.WriteSyncer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return zapcore.AddSync(f), nil
}
