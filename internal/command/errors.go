package command

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error codes returned to callers. Every pipeline failure maps to exactly one
// stable code plus a human-readable message; raw internal detail stays out of
// responses.
const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeCooldownActive = "COOLDOWN_ACTIVE"
	CodeLockBusy       = "LOCK_BUSY"
	CodeLockNotHeld    = "LOCK_NOT_HELD"
	CodeNothingToUndo  = "NOTHING_TO_UNDO"
	CodeNothingToRedo  = "NOTHING_TO_REDO"
	CodeExecution      = "COMMAND_EXECUTION_ERROR"
	CodeInternal       = "INTERNAL_ENGINE_ERROR"
)

// ErrNothingToUndo is returned when the undo stack is empty or its top entry
// is not reversible.
var ErrNothingToUndo = errors.New("nothing to undo")

// ErrNothingToRedo is returned when the redo stack is empty.
var ErrNothingToRedo = errors.New("nothing to redo")

// ValidationError reports structural or requirement validation failures.
// No mutation has occurred when it is returned.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Reasons, "; ")
}

// NewValidationError creates a validation error from the given reasons.
func NewValidationError(reasons ...string) *ValidationError {
	return &ValidationError{Reasons: reasons}
}

// CooldownError reports that the command type was invoked again before its
// declared re-invocation interval elapsed.
type CooldownError struct {
	CommandType string
	Remaining   time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("command %s on cooldown for another %s", e.CommandType, e.Remaining.Round(time.Second))
}

// ExecutionError wraps a failure during effect execution, carrying the
// original cause. The working state copy is discarded; nothing was committed.
type ExecutionError struct {
	CommandType string
	Cause       error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.CommandType, e.Cause)
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}
