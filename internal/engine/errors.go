package engine

import (
	"errors"

	"github.com/tiagofur/rpg-ai-sub004/internal/command"
	"github.com/tiagofur/rpg-ai-sub004/internal/lock"
)

// ErrorCode maps a pipeline error to its stable machine code. Unknown errors
// map to the internal code; their detail is logged, not exposed.
func ErrorCode(err error) string {
	var ve *command.ValidationError
	var ce *command.CooldownError
	var ee *command.ExecutionError

	switch {
	case errors.As(err, &ve):
		return command.CodeValidation
	case errors.As(err, &ce):
		return command.CodeCooldownActive
	case errors.Is(err, lock.ErrLockBusy):
		return command.CodeLockBusy
	case errors.Is(err, lock.ErrLockNotHeld):
		return command.CodeLockNotHeld
	case errors.Is(err, command.ErrNothingToUndo):
		return command.CodeNothingToUndo
	case errors.Is(err, command.ErrNothingToRedo):
		return command.CodeNothingToRedo
	case errors.As(err, &ee):
		return command.CodeExecution
	default:
		return command.CodeInternal
	}
}

// Retryable reports whether the caller may usefully retry after the error.
func Retryable(err error) bool {
	switch ErrorCode(err) {
	case command.CodeLockBusy, command.CodeCooldownActive:
		return true
	default:
		return false
	}
}
