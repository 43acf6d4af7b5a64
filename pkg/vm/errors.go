package vm

import (
	"errors"
	"fmt"

	"gocond/pkg/ir"
)

// Runtime error kinds. Match them with errors.Is.
var (
	ErrDivideByZero      = errors.New("divide by zero")
	ErrStackUnderflow    = errors.New("stack underflow")
	ErrTypeMismatch      = errors.New("type mismatch")
	ErrInvalidJumpTarget = errors.New("invalid jump target")
	ErrInput             = errors.New("input failed")
	ErrOutput            = errors.New("output failed")
	ErrStepLimit         = errors.New("step limit exceeded")
)

// RuntimeError aborts a run. IP and Instr locate the instruction that
// failed; Cause carries the underlying I/O error for ErrInput and ErrOutput.
type RuntimeError struct {
	Kind  error
	IP    int
	Instr ir.Instruction
	Cause error
}

func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("runtime error at %d (%s): %v", e.IP, e.Instr, e.Kind)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *RuntimeError) Unwrap() error {
	return e.Kind
}

// Resumable reports whether err left the VM state intact at the failing
// instruction, so a snapshot can continue once input or step budget is
// available.
func Resumable(err error) bool {
	return errors.Is(err, ErrInput) || errors.Is(err, ErrStepLimit)
}
