// Package monitoring carries the diagnostic logger shared by the merge
// packages. Commands keep using the standard log package directly.
package monitoring

import "log"

// LogFunc is a printf-style sink.
type LogFunc func(format string, v ...interface{})

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf LogFunc = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f LogFunc) {
	if f == nil {
		Logf = Discard
		return
	}
	Logf = f
}

// Discard drops every message.
func Discard(string, ...interface{}) {}

// Prefixed returns a LogFunc that tags every line with prefix before handing
// it to the current package logger. The package logger is resolved per call,
// so SetLogger after Prefixed still takes effect.
func Prefixed(prefix string) LogFunc {
	return WithPrefix(nil, prefix)
}

// WithPrefix tags every line with prefix before handing it to f, or to the
// package logger when f is nil.
func WithPrefix(f LogFunc, prefix string) LogFunc {
	f = OrDefault(f)
	return func(format string, v ...interface{}) {
		f("["+prefix+"] "+format, v...)
	}
}

// OrDefault returns f, or the package logger when f is nil.
func OrDefault(f LogFunc) LogFunc {
	if f != nil {
		return f
	}
	return func(format string, v ...interface{}) { Logf(format, v...) }
}
