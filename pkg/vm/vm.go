// Package vm executes finalized programs on an operand stack against a
// per-run symbol table.
package vm

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"gocond/pkg/ir"
)

// VM runs one program. It is not safe for concurrent use; independent runs
// need independent VMs.
type VM struct {
	prog ir.Program

	ip      int
	stack   []Slot
	symbols *SymbolTable
	steps   int
	halted  bool
	started bool
	err     error
	runID   uuid.UUID

	// Input is read by INPUT. If nil, stdin is used.
	Input InputSource
	// Output receives OUTPUT values. If nil, os.Stdout is used.
	Output io.Writer

	logger    *log.Logger
	trace     bool
	maxSteps  int
	separator string
}

type Option func(*VM)

func WithInput(in InputSource) Option {
	return func(v *VM) { v.Input = in }
}

func WithOutput(w io.Writer) Option {
	return func(v *VM) { v.Output = w }
}

func WithLogger(l *log.Logger) Option {
	return func(v *VM) { v.logger = l }
}

// WithTrace logs every executed instruction at debug level.
func WithTrace(on bool) Option {
	return func(v *VM) { v.trace = on }
}

// WithMaxSteps bounds the number of executed instructions; 0 means no bound.
func WithMaxSteps(n int) Option {
	return func(v *VM) { v.maxSteps = n }
}

// WithSeparator sets the text written after each OUTPUT value.
func WithSeparator(sep string) Option {
	return func(v *VM) { v.separator = sep }
}

// New prepares a VM for prog. The program is copied.
func New(prog ir.Program, opts ...Option) *VM {
	v := &VM{
		prog:      append(ir.Program(nil), prog...),
		separator: "\n",
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.logger == nil {
		v.logger = log.New(io.Discard)
	}
	v.Reset()
	return v
}

// Run executes prog on a fresh VM and returns the final symbol table.
func Run(prog ir.Program, opts ...Option) (*SymbolTable, error) {
	v := New(prog, opts...)
	err := v.Run()
	return v.symbols, err
}

// Reset discards all run state so the program can execute again.
func (v *VM) Reset() {
	v.ip = 0
	v.stack = nil
	v.symbols = NewSymbolTable()
	v.steps = 0
	v.halted = len(v.prog) == 0
	v.started = false
	v.err = nil
	v.runID = uuid.New()
}

func (v *VM) Program() ir.Program   { return v.prog }
func (v *VM) IP() int               { return v.ip }
func (v *VM) Steps() int            { return v.steps }
func (v *VM) Halted() bool          { return v.halted }
func (v *VM) Err() error            { return v.err }
func (v *VM) RunID() uuid.UUID      { return v.runID }
func (v *VM) Symbols() *SymbolTable { return v.symbols }

// Stack returns a copy of the operand stack, bottom first.
func (v *VM) Stack() []Slot {
	return append([]Slot(nil), v.stack...)
}

// Next returns the instruction Step would execute.
func (v *VM) Next() (ir.Instruction, bool) {
	if v.halted || v.ip < 0 || v.ip >= len(v.prog) {
		return ir.Instruction{}, false
	}
	return v.prog[v.ip], true
}

func (v *VM) outputSink() io.Writer {
	if v.Output != nil {
		return v.Output
	}
	return os.Stdout
}

func (v *VM) inputSource() InputSource {
	if v.Input == nil {
		v.Input = NewLineReader(os.Stdin)
	}
	return v.Input
}

// Run steps until the program completes or fails.
func (v *VM) Run() error {
	for !v.halted {
		if err := v.Step(); err != nil {
			return err
		}
	}
	return v.err
}

// RunUntil steps until the program halts or stop reports true for the
// pending state. stop is checked before each instruction.
func (v *VM) RunUntil(stop func(*VM) bool) error {
	for !v.halted {
		if stop(v) {
			return nil
		}
		if err := v.Step(); err != nil {
			return err
		}
	}
	return v.err
}

// Step executes one instruction. After a failure the VM stays halted and
// Step keeps returning the same error.
func (v *VM) Step() error {
	if v.halted {
		return v.err
	}
	if !v.started {
		v.started = true
		v.logger.Info("run started", "run", v.runID, "instructions", len(v.prog))
	}

	ip := v.ip
	in := v.prog[ip]
	if v.maxSteps > 0 && v.steps >= v.maxSteps {
		return v.fail(ip, in, ErrStepLimit, nil)
	}

	next := ip + 1
	switch in.Kind {
	case ir.KindVariable:
		v.push(NameSlot(in.Name))
	case ir.KindConstant, ir.KindAddress:
		v.push(IntSlot(in.Value))
	case ir.KindOp:
		target, jumped, kind, cause := v.exec(in.Op)
		if kind != nil {
			return v.fail(ip, in, kind, cause)
		}
		if jumped {
			next = target
		}
	default:
		return v.fail(ip, in, ErrTypeMismatch, fmt.Errorf("unknown instruction kind %s", in.Kind))
	}

	v.steps++
	v.ip = next
	if v.trace {
		v.logger.Debug("step", "ip", ip, "instr", in.String(), "stack", formatStack(v.stack), "vars", strings.Join(v.symbols.Pairs(), " "))
	}
	if v.ip >= len(v.prog) {
		v.halted = true
		v.logger.Info("run finished", "run", v.runID, "steps", v.steps)
	}
	return nil
}

func (v *VM) fail(ip int, in ir.Instruction, kind, cause error) error {
	v.halted = true
	v.err = &RuntimeError{Kind: kind, IP: ip, Instr: in, Cause: cause}
	v.logger.Info("run failed", "run", v.runID, "ip", ip, "err", v.err)
	return v.err
}

// exec runs one command. A non-nil kind reports failure.
func (v *VM) exec(op ir.Opcode) (target int, jumped bool, kind, cause error) {
	switch op {
	case ir.OpADD, ir.OpSUB, ir.OpMUL, ir.OpDIV,
		ir.OpCMPEQ, ir.OpCMPNE, ir.OpCMPLT, ir.OpCMPGT,
		ir.OpAND, ir.OpOR:
		right, err := v.popValue()
		if err != nil {
			return 0, false, err, nil
		}
		left, err := v.popValue()
		if err != nil {
			return 0, false, err, nil
		}
		result, err := binary(op, left, right)
		if err != nil {
			return 0, false, err, nil
		}
		v.push(IntSlot(result))

	case ir.OpMOV:
		val, err := v.popValue()
		if err != nil {
			return 0, false, err, nil
		}
		dst, err := v.popName()
		if err != nil {
			return 0, false, err, nil
		}
		v.symbols.Set(dst, val)

	case ir.OpINPUT:
		// The destination stays on the stack until a value arrives so a
		// failed read can be retried.
		dst, err := v.peekName()
		if err != nil {
			return 0, false, err, nil
		}
		val, err := v.inputSource().ReadInt()
		if err != nil {
			return 0, false, ErrInput, err
		}
		v.stack = v.stack[:len(v.stack)-1]
		v.symbols.Set(dst, val)

	case ir.OpOUTPUT:
		val, err := v.popValue()
		if err != nil {
			return 0, false, err, nil
		}
		if _, err := fmt.Fprintf(v.outputSink(), "%d%s", val, v.separator); err != nil {
			return 0, false, ErrOutput, err
		}

	case ir.OpJZ:
		addr, err := v.popTarget()
		if err != nil {
			return 0, false, err, nil
		}
		cond, err := v.popValue()
		if err != nil {
			return 0, false, err, nil
		}
		if cond == 0 {
			return addr, true, nil, nil
		}

	case ir.OpJMP:
		addr, err := v.popTarget()
		if err != nil {
			return 0, false, err, nil
		}
		return addr, true, nil, nil

	default:
		return 0, false, ErrTypeMismatch, fmt.Errorf("unknown opcode %s", op)
	}
	return 0, false, nil, nil
}

func binary(op ir.Opcode, left, right int64) (int64, error) {
	switch op {
	case ir.OpADD:
		return left + right, nil
	case ir.OpSUB:
		return left - right, nil
	case ir.OpMUL:
		return left * right, nil
	case ir.OpDIV:
		if right == 0 {
			return 0, ErrDivideByZero
		}
		return left / right, nil
	case ir.OpCMPEQ:
		return boolToInt(left == right), nil
	case ir.OpCMPNE:
		return boolToInt(left != right), nil
	case ir.OpCMPLT:
		return boolToInt(left < right), nil
	case ir.OpCMPGT:
		return boolToInt(left > right), nil
	case ir.OpAND:
		return boolToInt(left != 0 && right != 0), nil
	case ir.OpOR:
		return boolToInt(left != 0 || right != 0), nil
	}
	return 0, ErrTypeMismatch
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func (v *VM) push(s Slot) {
	v.stack = append(v.stack, s)
}

func (v *VM) pop() (Slot, error) {
	if len(v.stack) == 0 {
		return Slot{}, ErrStackUnderflow
	}
	top := v.stack[len(v.stack)-1]
	v.stack = v.stack[:len(v.stack)-1]
	return top, nil
}

// popValue pops one slot and resolves a variable reference through the
// symbol table.
func (v *VM) popValue() (int64, error) {
	s, err := v.pop()
	if err != nil {
		return 0, err
	}
	if s.IsName() {
		return v.symbols.Get(s.Name), nil
	}
	return s.Value, nil
}

func (v *VM) popName() (string, error) {
	s, err := v.pop()
	if err != nil {
		return "", err
	}
	if !s.IsName() {
		return "", ErrTypeMismatch
	}
	return s.Name, nil
}

func (v *VM) peekName() (string, error) {
	if len(v.stack) == 0 {
		return "", ErrStackUnderflow
	}
	s := v.stack[len(v.stack)-1]
	if !s.IsName() {
		return "", ErrTypeMismatch
	}
	return s.Name, nil
}

// popTarget pops a jump address, which must be an integer in [0, len].
func (v *VM) popTarget() (int, error) {
	s, err := v.pop()
	if err != nil {
		return 0, err
	}
	if s.IsName() {
		return 0, ErrTypeMismatch
	}
	if s.Value < 0 || s.Value > int64(len(v.prog)) {
		return 0, ErrInvalidJumpTarget
	}
	return int(s.Value), nil
}

// formatStack lists slots from the top of the stack down.
func formatStack(stack []Slot) string {
	parts := make([]string, len(stack))
	for i := range stack {
		parts[i] = stack[len(stack)-1-i].String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}
