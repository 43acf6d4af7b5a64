package main

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"gocond/pkg/ir"
	"gocond/pkg/vm"
)

// stepper holds everything the window shows. It does not touch ebiten so
// the key handling can be driven from tests.
type stepper struct {
	vm       *vm.VM
	queue    *vm.Queue
	out      *bytes.Buffer
	typed    string
	status   string
	snapPath string
	logger   *log.Logger
}

func newStepper(machine *vm.VM, snapPath string, logger *log.Logger) *stepper {
	s := &stepper{
		vm:       machine,
		queue:    vm.NewQueue(),
		out:      new(bytes.Buffer),
		snapPath: snapPath,
		logger:   logger,
	}
	machine.Input = s.queue
	machine.Output = s.out
	s.status = "space: step  enter: run  r: reset  f5: snapshot"
	return s
}

// waitingForInput reports whether the next instruction is an INPUT with
// nothing queued for it.
func (s *stepper) waitingForInput() bool {
	in, ok := s.vm.Next()
	return ok && in.Kind == ir.KindOp && in.Op == ir.OpINPUT && s.queue.Len() == 0
}

func (s *stepper) step() {
	if s.vm.Halted() {
		s.report(s.vm.Err())
		return
	}
	if s.waitingForInput() {
		s.status = "waiting for input"
		return
	}
	if err := s.vm.Step(); err != nil {
		s.report(err)
		return
	}
	s.status = fmt.Sprintf("step %d", s.vm.Steps())
	if s.vm.Halted() {
		s.report(nil)
	}
}

// run feeds any typed value, then steps until the program halts or waits
// for more input.
func (s *stepper) run() {
	if s.typed != "" {
		if !s.feed() {
			return
		}
	}
	err := s.vm.RunUntil(func(*vm.VM) bool { return s.waitingForInput() })
	switch {
	case err != nil:
		s.report(err)
	case s.vm.Halted():
		s.report(nil)
	default:
		s.status = "waiting for input"
	}
}

func (s *stepper) feed() bool {
	n, err := strconv.ParseInt(s.typed, 10, 64)
	if err != nil {
		s.status = fmt.Sprintf("%q is not an integer", s.typed)
		s.typed = ""
		return false
	}
	s.queue.Push(n)
	s.typed = ""
	return true
}

func (s *stepper) typeRune(r rune) {
	if (r >= '0' && r <= '9') || (r == '-' && s.typed == "") {
		s.typed += string(r)
	}
}

func (s *stepper) backspace() {
	if s.typed != "" {
		s.typed = s.typed[:len(s.typed)-1]
	}
}

func (s *stepper) reset() {
	s.vm.Reset()
	s.queue = vm.NewQueue()
	s.vm.Input = s.queue
	s.out.Reset()
	s.typed = ""
	s.status = "reset"
}

func (s *stepper) snapshot() {
	if err := s.vm.SnapshotToFile(s.snapPath); err != nil {
		s.logger.Error("snapshot failed", "path", s.snapPath, "err", err)
		s.status = "snapshot failed: " + err.Error()
		return
	}
	s.logger.Info("snapshot saved", "path", s.snapPath)
	s.status = "saved " + s.snapPath
}

func (s *stepper) report(err error) {
	switch {
	case err == nil:
		s.status = fmt.Sprintf("finished after %d steps", s.vm.Steps())
	case errors.Is(err, vm.ErrInput):
		s.status = "waiting for input"
	default:
		s.status = err.Error()
	}
}

// outputLines returns the program output, one value per line.
func (s *stepper) outputLines() []string {
	text := strings.TrimRight(s.out.String(), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
