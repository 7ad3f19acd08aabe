// Package engine provides the process-wide ambient substrate shared by every
// other package in this module: logging severity levels, typed error kinds,
// and an elapsed-time logger (TimeLog). It plays the role that package dvid plays
// in the teacher: a dependency-free base that everything else imports.
package engine

import "time"

// ModeFlag is the minimum severity a log call must carry to be written.
type ModeFlag uint

const (
	DebugMode ModeFlag = iota
	InfoMode
	WarningMode
	ErrorMode
	CriticalMode
	SilentMode
)

var (
	// Verbose enables Debugf output regardless of ModeFlag.
	Verbose bool

	mode ModeFlag
)

// Logger lets the application log at different severities. Swappable so a
// test or an embedding application can redirect output without touching
// call sites.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Criticalf(format string, args ...interface{})
	Shutdown()
}

// SetLogMode sets the minimum severity that will be written. SilentMode
// disables all logging.
func SetLogMode(newMode ModeFlag) {
	mode = newMode
}

func Debugf(format string, args ...interface{}) {
	if mode <= DebugMode || Verbose {
		logger.Debugf(format, args...)
	}
}

func Infof(format string, args ...interface{}) {
	if mode <= InfoMode {
		logger.Infof(format, args...)
	}
}

func Warningf(format string, args ...interface{}) {
	if mode <= WarningMode {
		logger.Warningf(format, args...)
	}
}

func Errorf(format string, args ...interface{}) {
	if mode <= ErrorMode {
		logger.Errorf(format, args...)
	}
}

func Criticalf(format string, args ...interface{}) {
	if mode <= CriticalMode {
		logger.Criticalf(format, args...)
	}
}

// Shutdown flushes and closes the active logger.
func Shutdown() {
	logger.Shutdown()
}

// TimeLog appends elapsed time since creation to every message it logs, and
// optionally tags every line with a correlation ID. Traversal and fetch
// call sites used to splice a frame/request UUID into the format string by
// hand on every call (`"traversal[%s] frame %d: ..."`); WithCorrelationID
// carries it on the TimeLog value instead, so the id is stamped once and
// every subsequent call site stays a plain message.
//
//	tlog := engine.NewTimeLog().WithCorrelationID(correlationID)
//	...
//	tlog.Debugf("traversal complete, %d tiles visited", visited)
type TimeLog struct {
	logger        Logger
	start         time.Time
	correlationID string
}

func NewTimeLog() TimeLog {
	return TimeLog{logger: logger, start: time.Now()}
}

// WithCorrelationID returns a copy of t that prefixes every logged line with
// id, e.g. the per-frame UUID package traversal generates for its Update call.
func (t TimeLog) WithCorrelationID(id string) TimeLog {
	t.correlationID = id
	return t
}

func (t TimeLog) prefixed(format string) string {
	if t.correlationID == "" {
		return format + ": %s"
	}
	return "[" + t.correlationID + "] " + format + ": %s"
}

func (t TimeLog) Debugf(format string, args ...interface{}) {
	if mode <= DebugMode || Verbose {
		t.logger.Debugf(t.prefixed(format), append(args, time.Since(t.start))...)
	}
}

func (t TimeLog) Infof(format string, args ...interface{}) {
	if mode <= InfoMode {
		t.logger.Infof(t.prefixed(format), append(args, time.Since(t.start))...)
	}
}

func (t TimeLog) Warningf(format string, args ...interface{}) {
	if mode <= WarningMode {
		t.logger.Warningf(t.prefixed(format), append(args, time.Since(t.start))...)
	}
}

func (t TimeLog) Errorf(format string, args ...interface{}) {
	if mode <= ErrorMode {
		t.logger.Errorf(t.prefixed(format), append(args, time.Since(t.start))...)
	}
}

func (t TimeLog) Criticalf(format string, args ...interface{}) {
	if mode <= CriticalMode {
		t.logger.Criticalf(t.prefixed(format), append(args, time.Since(t.start))...)
	}
}

// Shutdown flushes and closes the underlying logger.
func (t TimeLog) Shutdown() {
	t.logger.Shutdown()
}
