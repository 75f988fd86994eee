// This package defines the logging functions (e.g. Info, Errorf, etc.).

package sklog

import (
	"fmt"
	"os"
	"sync"
)

// Severity is the level a message is logged at.
type Severity int

const (
	DEBUG Severity = iota
	INFO
	WARNING
	ERROR
	FATAL
)

// String implements fmt.Stringer.
func (s Severity) String() string {
	switch s {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARNING:
		return "WARNING"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// Logger is the destination for all log lines. An empty format means the
// args should be formatted with fmt.Sprint.
type Logger interface {
	Log(depth int, severity Severity, format string, args ...interface{})
	Flush()
}

var (
	mutex  sync.RWMutex
	logger Logger = nopLogger{}

	// exit is called after a FATAL line has been logged and flushed.
	exit = os.Exit
)

// SetLogger changes the package to use the given Logger.
func SetLogger(l Logger) {
	mutex.Lock()
	defer mutex.Unlock()
	if l == nil {
		l = nopLogger{}
	}
	logger = l
}

func log(depth int, severity Severity, format string, args ...interface{}) {
	mutex.RLock()
	l := logger
	mutex.RUnlock()
	l.Log(depth+1, severity, format, args...)
	if severity == FATAL {
		l.Flush()
		exit(255)
	}
}

// Functions to log at various levels.
// Debug, Info, Warning, Error, and Fatal use fmt.Sprint to format the
// arguments.
// Functions ending in f use fmt.Sprintf to format the arguments.
// Functions ending in WithDepth allow the caller to change where the stacktrace
// starts. 0 (the default in all other calls) means to report starting at the
// caller. 1 would mean one level above, the caller's caller.
func Debug(msg ...interface{}) {
	log(1, DEBUG, "", msg...)
}

func Debugf(format string, v ...interface{}) {
	log(1, DEBUG, format, v...)
}

func Info(msg ...interface{}) {
	log(1, INFO, "", msg...)
}

func Infof(format string, v ...interface{}) {
	log(1, INFO, format, v...)
}

func Warning(msg ...interface{}) {
	log(1, WARNING, "", msg...)
}

func Warningf(format string, v ...interface{}) {
	log(1, WARNING, format, v...)
}

func WarningfWithDepth(depth int, format string, v ...interface{}) {
	log(1+depth, WARNING, format, v...)
}

func Error(msg ...interface{}) {
	log(1, ERROR, "", msg...)
}

func Errorf(format string, v ...interface{}) {
	log(1, ERROR, format, v...)
}

func ErrorfWithDepth(depth int, format string, v ...interface{}) {
	log(1+depth, ERROR, format, v...)
}

// Fatal* exits the program after logging.
func Fatal(msg ...interface{}) {
	log(1, FATAL, "", msg...)
}

func Fatalf(format string, v ...interface{}) {
	log(1, FATAL, format, v...)
}

func Flush() {
	mutex.RLock()
	defer mutex.RUnlock()
	logger.Flush()
}

type nopLogger struct{}

func (nopLogger) Log(int, Severity, string, ...interface{}) {}

func (nopLogger) Flush() {}
