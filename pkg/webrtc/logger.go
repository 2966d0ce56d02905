package webrtc

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pion/logging"
)

// LevelTrace sits below slog.LevelDebug for pion's trace output.
const LevelTrace = slog.LevelDebug - 4

// slogFactory routes pion's internal logs into slog, one scope attribute
// per pion subsystem (ice, sctp, dtls...).
type slogFactory struct {
	logger *slog.Logger
}

func NewLoggerFactory(logger *slog.Logger) logging.LoggerFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &slogFactory{logger: logger}
}

func (f *slogFactory) NewLogger(scope string) logging.LeveledLogger {
	return &slogLeveled{logger: f.logger.With("component", "pion", "scope", scope)}
}

type slogLeveled struct {
	logger *slog.Logger
}

func (l *slogLeveled) log(level slog.Level, msg string) {
	l.logger.Log(context.Background(), level, msg)
}

func (l *slogLeveled) Trace(msg string) { l.log(LevelTrace, msg) }
func (l *slogLeveled) Tracef(format string, args ...any) {
	l.log(LevelTrace, fmt.Sprintf(format, args...))
}

func (l *slogLeveled) Debug(msg string) { l.log(slog.LevelDebug, msg) }
func (l *slogLeveled) Debugf(format string, args ...any) {
	l.log(slog.LevelDebug, fmt.Sprintf(format, args...))
}

func (l *slogLeveled) Info(msg string) { l.log(slog.LevelInfo, msg) }
func (l *slogLeveled) Infof(format string, args ...any) {
	l.log(slog.LevelInfo, fmt.Sprintf(format, args...))
}

func (l *slogLeveled) Warn(msg string) { l.log(slog.LevelWarn, msg) }
func (l *slogLeveled) Warnf(format string, args ...any) {
	l.log(slog.LevelWarn, fmt.Sprintf(format, args...))
}

func (l *slogLeveled) Error(msg string) { l.log(slog.LevelError, msg) }
func (l *slogLeveled) Errorf(format string, args ...any) {
	l.log(slog.LevelError, fmt.Sprintf(format, args...))
}
