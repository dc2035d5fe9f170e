// Package vm - error handling with stack traces
package vm

import (
	"fmt"
	"strings"
)

// StackFrame represents a single frame in the call stack: a method
// activation or a block activation, captured at the point an error
// unwinds through it.
type StackFrame struct {
	Name     string // "ClassName>>selector" or "a block in ..."
	Selector string
	IP       int
}

// RuntimeError represents a runtime error with stack trace information.
type RuntimeError struct {
	Message    string
	StackTrace []StackFrame
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.StackTrace) > 0 {
		b.WriteString("\n\nStack trace:")
		for i := len(e.StackTrace) - 1; i >= 0; i-- {
			frame := e.StackTrace[i]
			b.WriteString(fmt.Sprintf("\n  at %s", frame.Name))
			if frame.Selector != "" {
				b.WriteString(fmt.Sprintf(" (selector: %s)", frame.Selector))
			}
			b.WriteString(fmt.Sprintf(" [IP: %d]", frame.IP))
		}
	}
	return b.String()
}

func newRuntimeError(message string, stack []StackFrame) *RuntimeError {
	return &RuntimeError{Message: message, StackTrace: stack}
}
