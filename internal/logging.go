package internal

// Internal logging utility.

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"
)

type Logger struct {
	logLevel LogLevel
	logger   *logrus.Logger
}

type LogLevel int

const (
	// error levels that should almost always be printed
	LevelFatal LogLevel = iota // error that must stop the program (exits)
	LevelError                 // error that does not need to stop execution

	// debugging levels, okay to disable
	LevelWarn // something may be wrong, but not necessarily an error
	LevelInfo // nothing wrong, informational only

	// Production code by default only shows warnings and above.
	LogLevelDefault = LevelWarn

	// min, max levels for setting print level
	LevelMin = LevelFatal
	LevelMax = LevelInfo
)

var levelToLogrus = []logrus.Level{
	logrus.FatalLevel,
	logrus.ErrorLevel,
	logrus.WarnLevel,
	logrus.InfoLevel,
}

func NewLogger() *Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:  true,
		DisableSorting: true,
	})
	l := &Logger{logger: logger}
	l.SetLogLevel(LogLevelDefault)
	return l
}

func (l *Logger) LogLevel() LogLevel {
	return l.logLevel
}

// SetLogLevel returns the old level
func (l *Logger) SetLogLevel(level LogLevel) LogLevel {
	if level < LevelMin || level > LevelMax {
		panic("trying to set invalid log level")
	}
	old := l.logLevel
	l.logLevel = level
	l.logger.SetLevel(levelToLogrus[level])
	return old
}

// SetOutput redirects the log output.
func (l *Logger) SetOutput(w io.Writer) {
	l.logger.SetOutput(w)
}

// AddHook registers a logrus hook, e.g. a NoticeCounter.
func (l *Logger) AddHook(hook logrus.Hook) {
	l.logger.AddHook(hook)
}

// WithFields returns an entry carrying structured context.
func (l *Logger) WithFields(fields logrus.Fields) *logrus.Entry {
	return l.logger.WithFields(fields)
}

func (l *Logger) Info(v ...any)                 { l.logger.Info(fmt.Sprint(v...)) }
func (l *Logger) Infof(format string, v ...any) { l.logger.Infof(format, v...) }

func (l *Logger) Warn(v ...any)                 { l.logger.Warn(fmt.Sprint(v...)) }
func (l *Logger) Warnf(format string, v ...any) { l.logger.Warnf(format, v...) }

func (l *Logger) Error(v ...any)                 { l.logger.Error(fmt.Sprint(v...)) }
func (l *Logger) Errorf(format string, v ...any) { l.logger.Errorf(format, v...) }

func (l *Logger) Fatal(v ...any) {
	l.logger.Error(string(debug.Stack()))
	l.logger.Fatal(fmt.Sprint(v...))
}

func (l *Logger) Fatalf(format string, v ...any) {
	l.logger.Error(string(debug.Stack()))
	l.logger.Fatalf(format, v...)
}

// NoticeCounter is a logrus hook that tallies hard failures (error level
// and above) and notices (warn level), remembering the last message of each.
type NoticeCounter struct {
	lock        sync.Mutex
	errors      int
	warnings    int
	lastError   string
	lastWarning string
}

// Notices is a snapshot of a NoticeCounter.
type Notices struct {
	Errors      int
	Warnings    int
	LastError   string
	LastWarning string
}

func NewNoticeCounter() *NoticeCounter {
	return &NoticeCounter{}
}

func (nc *NoticeCounter) Levels() []logrus.Level {
	return []logrus.Level{
		logrus.PanicLevel,
		logrus.FatalLevel,
		logrus.ErrorLevel,
		logrus.WarnLevel,
	}
}

func (nc *NoticeCounter) Fire(entry *logrus.Entry) error {
	nc.lock.Lock()
	defer nc.lock.Unlock()
	if entry.Level == logrus.WarnLevel {
		nc.warnings++
		nc.lastWarning = entry.Message
		return nil
	}
	nc.errors++
	nc.lastError = entry.Message
	return nil
}

// Snapshot returns the current counts.
func (nc *NoticeCounter) Snapshot() Notices {
	nc.lock.Lock()
	defer nc.lock.Unlock()
	return Notices{
		Errors:      nc.errors,
		Warnings:    nc.warnings,
		LastError:   nc.lastError,
		LastWarning: nc.lastWarning,
	}
}

// Reset zeroes the counts.
func (nc *NoticeCounter) Reset() {
	nc.lock.Lock()
	defer nc.lock.Unlock()
	nc.errors, nc.warnings = 0, 0
	nc.lastError, nc.lastWarning = "", ""
}
