package engine

import (
	"io"
	"log"
	"os"

	"github.com/natefinch/lumberjack"
)

type stdLogger struct {
	out *log.Logger
	lj  *lumberjack.Logger
}

var logger Logger = newStdLogger()

// newStdLogger builds a logger that writes through the standard log package
// to stderr, or to a rotating file when ENGINE_LOG_FILE is set. Rotation
// uses lumberjack rather than a hand-rolled roller.
func newStdLogger() Logger {
	var w io.Writer = os.Stderr
	var lj *lumberjack.Logger
	if path := os.Getenv("ENGINE_LOG_FILE"); path != "" {
		lj = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
		w = lj
	}
	return &stdLogger{out: log.New(w, "", log.LstdFlags), lj: lj}
}

func (s *stdLogger) Debugf(format string, args ...interface{}) {
	s.out.Printf("   DEBUG "+format, args...)
}

func (s *stdLogger) Infof(format string, args ...interface{}) {
	s.out.Printf("    INFO "+format, args...)
}

func (s *stdLogger) Warningf(format string, args ...interface{}) {
	s.out.Printf(" WARNING "+format, args...)
}

func (s *stdLogger) Errorf(format string, args ...interface{}) {
	s.out.Printf("   ERROR "+format, args...)
}

func (s *stdLogger) Criticalf(format string, args ...interface{}) {
	s.out.Printf("CRITICAL "+format, args...)
}

func (s *stdLogger) Shutdown() {
	if s.lj != nil {
		s.lj.Close()
	}
}

// SetLogger overrides the package logger, e.g. for tests that want to
// capture output.
func SetLogger(l Logger) {
	logger = l
}
