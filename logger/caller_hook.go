package logger

import (
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// callsiteHook rewrites the caller recorded on each entry so it points at
// the code that invoked a logging wrapper, not at the wrapper itself.
// Without it every record would blame logger.go.
type callsiteHook struct{}

func (h *callsiteHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *callsiteHook) Fire(entry *logrus.Entry) error {
	// 6 skips runtime.Callers, Fire itself, the logrus hook dispatch and
	// the Entry wrapper methods in this package.
	const skip = 6
	pcs := make([]uintptr, 16)
	frames := runtime.CallersFrames(pcs[:runtime.Callers(skip, pcs)])
	for {
		frame, more := frames.Next()
		if !more {
			return nil
		}
		if wrapperFrame(frame.Function) {
			continue
		}
		entry.Caller = &frame
		return nil
	}
}

// wrapperFrame reports whether fn is part of the logging machinery rather
// than a real call site.
func wrapperFrame(fn string) bool {
	return strings.Contains(fn, "sirupsen/logrus") ||
		strings.Contains(fn, "bookflow/logger")
}
