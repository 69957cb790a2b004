// Package monitoring provides the process-wide diagnostic logger used by the
// reconstruction stages, the capture loop and the HTTP server.
package monitoring

import (
	"log"
	"time"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Timed logs how long a named stage took. Use as
//
//	defer monitoring.Timed("smooth")()
func Timed(stage string) func() {
	start := time.Now()
	return func() {
		Logf("[%s] done in %.2fms", stage, float64(time.Since(start).Microseconds())/1000)
	}
}
