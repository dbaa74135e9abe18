package nvm

import (
	"errors"

	"github.com/Myriagram/nvm/internal/report"
)

// Error kinds returned by the engine. Execution failures are wrapped in an
// *ExecutionError whose Kind is one of these, so errors.Is works on both.
var (
	ErrAllocationFailed         = errors.New("nvm: engine allocation failed")
	ErrSetup                    = errors.New("nvm: context setup failed")
	ErrCompile                  = errors.New("nvm: compile error")
	ErrRuntime                  = errors.New("nvm: runtime error")
	ErrInstructionLimitExceeded = errors.New("nvm: instruction limit exceeded")
	ErrMemoryLimitExceeded      = errors.New("nvm: memory limit exceeded")
	ErrTerminated               = errors.New("nvm: execution terminated")
	ErrDisposed                 = errors.New("nvm: engine disposed")
	ErrContextBusy              = errors.New("nvm: an execution is already in progress")
)

// ExceptionRecord is a script exception positioned in the caller's source.
type ExceptionRecord = report.Record

// ExecutionError is a failed execution. Record is set when the failure was a
// script exception that was reported.
type ExecutionError struct {
	Kind   error
	Record *ExceptionRecord
	Cause  error
}

func (e *ExecutionError) Error() string {
	if e.Cause == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Cause.Error()
}

func (e *ExecutionError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// Diagnostic returns the formatted exception report, or "" when the failure
// was not a script exception.
func (e *ExecutionError) Diagnostic() string {
	if e.Record == nil {
		return ""
	}
	return e.Record.Format()
}
