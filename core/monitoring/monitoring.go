// Package monitoring defines the error-reporting contract used by the
// orchestrator. Implementations are injected, never global.
package monitoring

import (
	"fmt"
	"time"
)

// Monitor reports errors and recovered panics.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	Flush(timeout time.Duration)
}

// NopMonitor discards everything.
type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Flush(time.Duration)                       {}

// OrNop returns m, or a NopMonitor when m is nil.
func OrNop(m Monitor) Monitor {
	if m == nil {
		return NopMonitor{}
	}
	return m
}

// PanicError wraps a recovered panic value.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// Guard runs fn and converts a panic into a *PanicError reported to m.
func Guard(m Monitor, tags map[string]string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
			OrNop(m).CaptureException(err, tags)
		}
	}()
	return fn()
}
