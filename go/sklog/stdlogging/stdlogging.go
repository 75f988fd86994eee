// Package stdlogging implements sklog.Logger and logs to either stderr or stdout.
package stdlogging

import (
	"os"

	logger "github.com/jcgregorio/logger"
	"github.com/sandialabs/watchr-jenkins-sub000/go/sklog"
)

type stdlog struct {
	logger *logger.Logger
}

// New returns a sklog.Logger that writes to a SyncWriter, such as
// os.Stdout or os.Stderr.
func New(dst logger.SyncWriter, includeDebug bool) sklog.Logger {
	l := logger.NewFromOptions(&logger.Options{
		SyncWriter:   dst,
		DepthDelta:   3,
		IncludeDebug: includeDebug,
	})
	return &stdlog{
		logger: l,
	}
}

// LogToStdErr installs a stderr logger as the sklog destination.
func LogToStdErr(includeDebug bool) {
	sklog.SetLogger(New(os.Stderr, includeDebug))
}

// Log implements sklog.Logger.
func (s stdlog) Log(_ int, severity sklog.Severity, fmt string, args ...interface{}) {
	switch severity {
	case sklog.DEBUG:
		if fmt == "" {
			s.logger.Debug(args...)
		} else {
			s.logger.Debugf(fmt, args...)
		}
	case sklog.INFO:
		if fmt == "" {
			s.logger.Info(args...)
		} else {
			s.logger.Infof(fmt, args...)
		}
	case sklog.WARNING:
		if fmt == "" {
			s.logger.Warning(args...)
		} else {
			s.logger.Warningf(fmt, args...)
		}
	case sklog.ERROR:
		if fmt == "" {
			s.logger.Error(args...)
		} else {
			s.logger.Errorf(fmt, args...)
		}
	case sklog.FATAL:
		if fmt == "" {
			s.logger.Fatal(args...)
		} else {
			s.logger.Fatalf(fmt, args...)
		}
	default:
		s.logger.Errorf(fmt, args...)
	}
}

// Flush implements sklog.Logger.
func (s stdlog) Flush() {
	_ = os.Stderr.Sync()
}
