// Package logging builds the zap loggers used by both binaries.
//
// The updater writes one plain-text file per run, each line reading
// "[HH:MM:SS] message" with structured fields appended. The host logs to
// stderr in the same shape with the level added.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// DefaultDir is the log directory, relative to the updater binary.
	DefaultDir = "updater_logs"
	// FilePrefix and FileExt frame every per-run log file name.
	FilePrefix = "update_"
	FileExt    = ".txt"

	fileTimeLayout = "2006-01-02_15-04-05"
	lineTimeLayout = "15:04:05"
	maxFileSizeMB  = 10
)

// RunOptions configures the per-run updater log.
type RunOptions struct {
	Dir   string
	Level string
	Now   func() time.Time
}

// FileName returns the log file name for a run started at t.
func FileName(t time.Time) string {
	return FilePrefix + t.Format(fileTimeLayout) + FileExt
}

// RunLog is the logger for one updater run.
type RunLog struct {
	*zap.Logger
	// Path is the log file, empty when logging is unavailable.
	Path string

	w *lumberjack.Logger
}

// Close flushes and closes the log file.
func (r *RunLog) Close() error {
	_ = r.Logger.Sync()
	if r.w == nil {
		return nil
	}
	return r.w.Close()
}

// NewRunLogger opens the log file for one updater run.
//
// Logging is best effort. When the directory cannot be created the returned
// RunLog discards everything and the error says why; callers carry on.
func NewRunLogger(opts RunOptions) (*RunLog, error) {
	dir := opts.Dir
	if dir == "" {
		dir = DefaultDir
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return &RunLog{Logger: zap.NewNop()}, fmt.Errorf("failed to create log directory: %w", err)
	}

	path := filepath.Join(dir, FileName(now()))
	writer := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxFileSizeMB,
		MaxBackups: 1,
		LocalTime:  true,
	}

	core := zapcore.NewCore(fileEncoder(), zapcore.AddSync(writer), ParseLevel(opts.Level))
	return &RunLog{Logger: zap.New(core), Path: path, w: writer}, nil
}

// NewConsole returns a logger for interactive commands.
func NewConsole(w io.Writer, level string) *zap.Logger {
	if w == nil {
		w = os.Stderr
	}
	conf := lineEncoderConfig()
	conf.LevelKey = "level"
	conf.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(conf), zapcore.Lock(zapcore.AddSync(w)), ParseLevel(level))
	return zap.New(core)
}

// ParseLevel maps a config level name to a zap level, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zap.DebugLevel
	case "info":
		return zap.InfoLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// ValidLevel reports whether level is a name ParseLevel knows.
func ValidLevel(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

func fileEncoder() zapcore.Encoder {
	return zapcore.NewConsoleEncoder(lineEncoderConfig())
}

func lineEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:          "time",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       bracketTimeEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
}

func bracketTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("[" + t.Format(lineTimeLayout) + "]")
}
