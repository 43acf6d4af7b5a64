package vm_test

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	gomock "github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"gocond/pkg/compiler"
	"gocond/pkg/ir"
	"gocond/pkg/vm"
)

func compile(src string) ir.Program {
	prog, err := compiler.Compile(src)
	Expect(err).NotTo(HaveOccurred())
	return prog
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

var _ = Describe("VM", func() {
	var (
		mockCtrl *gomock.Controller
		input    *MockInputSource
		out      *bytes.Buffer
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		input = NewMockInputSource(mockCtrl)
		out = new(bytes.Buffer)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	run := func(prog ir.Program, opts ...vm.Option) (*vm.SymbolTable, error) {
		base := []vm.Option{vm.WithInput(input), vm.WithOutput(out)}
		return vm.Run(prog, append(base, opts...)...)
	}

	DescribeTable("should run programs to their output",
		func(src, want string) {
			_, err := run(compile(src))
			Expect(err).NotTo(HaveOccurred())
			Expect(out.String()).To(Equal(want))
		},
		Entry("taken branch", "if 1==1 then output 5; end", "5\n"),
		Entry("else branch", "if 0==1 then output 5; else output 9; end", "9\n"),
		Entry("multiply before add", "if 1==1 then x=2+3*4; output x; end", "14\n"),
		Entry("parentheses", "if 1 then x=(2+3)*4; output x; end", "20\n"),
		Entry("left associative subtraction", "if 1 then x=10-2-3; output x; end", "5\n"),
		Entry("truncating division", "if 1 then x=2-7; y=x/2; output y; end", "-2\n"),
		Entry("elseif branch", "if x==1 then output 1; elseif x==0 then output 2; else output 3; end", "2\n"),
		Entry("no branch taken", "if x==1 then output 1; elseif x==2 then output 2; end", ""),
		Entry("relations", "if 3>2 and 2<3 and 1<>2 then output 1; end", "1\n"),
		Entry("or", "if 0==1 or 1==1 then output 7; end", "7\n"),
		Entry("and false", "if 1==1 and 0==1 then output 1; else output 0; end", "0\n"),
		Entry("flat logical chain", "if 1==1 or 1==1 and 0==1 then output 1; else output 0; end", "0\n"),
		Entry("plain operand condition", "if 5 then output 1; end", "1\n"),
		Entry("several outputs", "if 1 then output 1; output 2; x=3; output x; end", "1\n2\n3\n"),
	)

	It("should honour the output separator", func() {
		_, err := run(compile("if 1 then output 1; output 2; end"), vm.WithSeparator(" "))
		Expect(err).NotTo(HaveOccurred())
		Expect(out.String()).To(Equal("1 2 "))
	})

	It("should return the final symbol table", func() {
		syms, err := run(compile("if 1 then x=1; y=x+1; end"))
		Expect(err).NotTo(HaveOccurred())
		Expect(syms.Map()).To(Equal(map[string]int64{"x": 1, "y": 2}))
	})

	It("should default unknown variables to zero", func() {
		syms, err := run(compile("if z==0 then output z; end"))
		Expect(err).NotTo(HaveOccurred())
		Expect(out.String()).To(Equal("0\n"))
		v, ok := syms.Lookup("z")
		Expect(ok).To(BeTrue())
		Expect(v).To(BeZero())
	})

	It("should evaluate both sides of and", func() {
		syms, err := run(compile("if 0==1 and q==0 then end"))
		Expect(err).NotTo(HaveOccurred())
		_, ok := syms.Lookup("q")
		Expect(ok).To(BeTrue())
	})

	Context("when a branch divides by zero", func() {
		It("should fail with DivideByZero and produce no output", func() {
			_, err := run(compile("if 1==1 then x=1/0; output x; end"))
			Expect(errors.Is(err, vm.ErrDivideByZero)).To(BeTrue())
			Expect(out.String()).To(BeEmpty())

			var rtErr *vm.RuntimeError
			Expect(errors.As(err, &rtErr)).To(BeTrue())
			Expect(rtErr.IP).To(Equal(8))
			Expect(rtErr.Instr).To(Equal(ir.Op(ir.OpDIV)))
		})

		It("should fail when the divisor is a variable", func() {
			_, err := run(compile("if 1 then y=0; x=4/y; end"))
			Expect(err).To(MatchError(vm.ErrDivideByZero))
		})

		It("should not fail when the branch is skipped", func() {
			_, err := run(compile("if 0 then x=1/0; else output 1; end"))
			Expect(err).NotTo(HaveOccurred())
			Expect(out.String()).To(Equal("1\n"))
		})
	})

	Context("with input", func() {
		It("should read into the named variable", func() {
			input.EXPECT().ReadInt().Return(int64(6), nil)

			syms, err := run(compile("if 1 then input n; n=n*7; output n; end"))
			Expect(err).NotTo(HaveOccurred())
			Expect(out.String()).To(Equal("42\n"))
			Expect(syms.Get("n")).To(Equal(int64(42)))
		})

		It("should read values in order", func() {
			gomock.InOrder(
				input.EXPECT().ReadInt().Return(int64(8), nil),
				input.EXPECT().ReadInt().Return(int64(3), nil),
			)

			_, err := run(compile("if 1 then input a; input b; d=a-b; output d; end"))
			Expect(err).NotTo(HaveOccurred())
			Expect(out.String()).To(Equal("5\n"))
		})

		It("should not read in a skipped branch", func() {
			_, err := run(compile("if 0==1 then input n; end"))
			Expect(err).NotTo(HaveOccurred())
		})

		It("should report input failures", func() {
			input.EXPECT().ReadInt().Return(int64(0), io.EOF)

			_, err := run(compile("if 1 then input n; end"))
			Expect(err).To(MatchError(vm.ErrInput))

			var rtErr *vm.RuntimeError
			Expect(errors.As(err, &rtErr)).To(BeTrue())
			Expect(rtErr.Cause).To(Equal(io.EOF))
			Expect(rtErr.Error()).To(ContainSubstring("EOF"))
		})
	})

	It("should report output failures", func() {
		_, err := vm.Run(compile("if 1 then output 1; end"), vm.WithOutput(failingWriter{}))
		Expect(err).To(MatchError(vm.ErrOutput))
	})

	DescribeTable("should reject malformed code",
		func(prog ir.Program, kind error, ip int) {
			_, err := run(prog)
			Expect(err).To(MatchError(kind))

			var rtErr *vm.RuntimeError
			Expect(errors.As(err, &rtErr)).To(BeTrue())
			Expect(rtErr.IP).To(Equal(ip))
		},
		Entry("empty stack", ir.Program{ir.Op(ir.OpADD)}, vm.ErrStackUnderflow, 0),
		Entry("one operand", ir.Program{ir.Const(1), ir.Op(ir.OpMUL)}, vm.ErrStackUnderflow, 1),
		Entry("JZ without condition", ir.Program{ir.Addr(2), ir.Op(ir.OpJZ)}, vm.ErrStackUnderflow, 1),
		Entry("MOV into a constant", ir.Program{ir.Const(1), ir.Const(2), ir.Op(ir.OpMOV)}, vm.ErrTypeMismatch, 2),
		Entry("INPUT into a constant", ir.Program{ir.Const(1), ir.Op(ir.OpINPUT)}, vm.ErrTypeMismatch, 1),
		Entry("jump to a variable", ir.Program{ir.Var("x"), ir.Op(ir.OpJMP)}, vm.ErrTypeMismatch, 1),
		Entry("jump past the end", ir.Program{ir.Const(99), ir.Op(ir.OpJMP)}, vm.ErrInvalidJumpTarget, 1),
		Entry("negative jump", ir.Program{ir.Const(-1), ir.Op(ir.OpJMP)}, vm.ErrInvalidJumpTarget, 1),
		Entry("JZ past the end", ir.Program{ir.Const(0), ir.Const(5), ir.Op(ir.OpJZ)}, vm.ErrInvalidJumpTarget, 2),
	)

	It("should finish when jumping to the end", func() {
		_, err := run(ir.Program{ir.Addr(2), ir.Op(ir.OpJMP)})
		Expect(err).NotTo(HaveOccurred())
	})

	It("should stop runaway programs at the step limit", func() {
		v := vm.New(ir.Program{ir.Addr(0), ir.Op(ir.OpJMP)}, vm.WithMaxSteps(10))
		err := v.Run()
		Expect(err).To(MatchError(vm.ErrStepLimit))
		Expect(v.Steps()).To(Equal(10))
		Expect(v.Halted()).To(BeTrue())
	})

	It("should give identical results on repeated runs", func() {
		prog := compile("if 1 then x=x+1; output x; y=x*3; output y; end")

		first := new(bytes.Buffer)
		syms1, err := vm.Run(prog, vm.WithOutput(first))
		Expect(err).NotTo(HaveOccurred())

		second := new(bytes.Buffer)
		syms2, err := vm.Run(prog, vm.WithOutput(second))
		Expect(err).NotTo(HaveOccurred())

		Expect(first.String()).To(Equal("1\n3\n"))
		Expect(second.String()).To(Equal(first.String()))
		Expect(syms2.Map()).To(Equal(syms1.Map()))
	})

	Context("stepping", func() {
		var v *vm.VM

		BeforeEach(func() {
			v = vm.New(compile("if 1==1 then output 5; end"), vm.WithOutput(out))
		})

		It("should execute one instruction per step", func() {
			next, ok := v.Next()
			Expect(ok).To(BeTrue())
			Expect(next).To(Equal(ir.Const(1)))

			Expect(v.Step()).To(Succeed())
			Expect(v.IP()).To(Equal(1))
			Expect(v.Stack()).To(Equal([]vm.Slot{vm.IntSlot(1)}))

			Expect(v.Step()).To(Succeed())
			Expect(v.Step()).To(Succeed())
			Expect(v.Stack()).To(Equal([]vm.Slot{vm.IntSlot(1)}))
			Expect(v.Steps()).To(Equal(3))
		})

		It("should halt after the last instruction", func() {
			Expect(v.Run()).To(Succeed())
			Expect(v.Halted()).To(BeTrue())
			_, ok := v.Next()
			Expect(ok).To(BeFalse())
			Expect(v.Step()).To(Succeed())
			Expect(out.String()).To(Equal("5\n"))
		})

		It("should run again after Reset", func() {
			Expect(v.Run()).To(Succeed())
			firstID := v.RunID()
			v.Reset()
			Expect(v.Halted()).To(BeFalse())
			Expect(v.RunID()).NotTo(Equal(firstID))
			Expect(v.Run()).To(Succeed())
			Expect(out.String()).To(Equal("5\n5\n"))
		})

		It("should keep returning the failure", func() {
			v = vm.New(ir.Program{ir.Op(ir.OpOUTPUT), ir.Const(1)})
			err := v.Step()
			Expect(err).To(MatchError(vm.ErrStackUnderflow))
			Expect(v.Halted()).To(BeTrue())
			Expect(v.Step()).To(Equal(err))
			Expect(v.Err()).To(Equal(err))
		})

		It("should treat an empty program as halted", func() {
			v = vm.New(nil)
			Expect(v.Halted()).To(BeTrue())
			Expect(v.Run()).To(Succeed())
		})

		It("should pause before pending input", func() {
			q := vm.NewQueue()
			v = vm.New(compile("if 1 then input n; output n; end"), vm.WithInput(q), vm.WithOutput(out))

			waiting := func(v *vm.VM) bool {
				next, ok := v.Next()
				return ok && next.IsOp(ir.OpINPUT) && q.Len() == 0
			}
			Expect(v.RunUntil(waiting)).To(Succeed())
			Expect(v.Halted()).To(BeFalse())
			Expect(v.IP()).To(Equal(4))

			q.Push(11)
			Expect(v.RunUntil(waiting)).To(Succeed())
			Expect(v.Halted()).To(BeTrue())
			Expect(out.String()).To(Equal("11\n"))
		})
	})

	Context("tracing", func() {
		var logs *bytes.Buffer

		BeforeEach(func() {
			logs = new(bytes.Buffer)
		})

		newLogger := func() *log.Logger {
			return log.NewWithOptions(logs, log.Options{Level: log.DebugLevel})
		}

		It("should log every step when enabled", func() {
			_, err := vm.Run(compile("if 1==1 then x=2; end"),
				vm.WithOutput(out), vm.WithLogger(newLogger()), vm.WithTrace(true))
			Expect(err).NotTo(HaveOccurred())

			text := logs.String()
			Expect(text).To(ContainSubstring("run started"))
			Expect(text).To(ContainSubstring("instr=CMPEQ"))
			Expect(text).To(ContainSubstring("stack=[1]"))
			Expect(text).To(ContainSubstring("x=2"))
			Expect(text).To(ContainSubstring("run finished"))
			Expect(strings.Count(text, "step")).To(BeNumerically(">=", 10))
		})

		It("should only log the run when disabled", func() {
			_, err := vm.Run(compile("if 1==1 then x=2; end"),
				vm.WithOutput(out), vm.WithLogger(newLogger()))
			Expect(err).NotTo(HaveOccurred())
			Expect(logs.String()).To(ContainSubstring("run finished"))
			Expect(logs.String()).NotTo(ContainSubstring("instr="))
		})
	})
})

var _ = Describe("SymbolTable", func() {
	It("should define names on first read", func() {
		s := vm.NewSymbolTable()
		Expect(s.Get("a")).To(BeZero())
		Expect(s.Len()).To(Equal(1))
	})

	It("should list names in order", func() {
		s := vm.NewSymbolTable()
		s.Set("b", 2)
		s.Set("a", -1)
		Expect(s.Names()).To(Equal([]string{"a", "b"}))
		Expect(s.Pairs()).To(Equal([]string{"a=-1", "b=2"}))
		Expect(s.String()).To(HavePrefix("Symbols:\n  a "))
	})

	It("should print an empty table", func() {
		Expect(vm.NewSymbolTable().String()).To(Equal("Symbols: (empty)\n"))
	})
})

var _ = Describe("Input sources", func() {
	It("should read one integer per line", func() {
		r := vm.NewLineReader(strings.NewReader("3\n\n  -4 \n"))
		Expect(r.ReadInt()).To(Equal(int64(3)))
		Expect(r.ReadInt()).To(Equal(int64(-4)))
		_, err := r.ReadInt()
		Expect(err).To(Equal(io.EOF))
	})

	It("should reject non-integers with the line number", func() {
		r := vm.NewLineReader(strings.NewReader("1\nabc\n"))
		_, err := r.ReadInt()
		Expect(err).NotTo(HaveOccurred())
		_, err = r.ReadInt()
		Expect(err).To(MatchError(ContainSubstring("input line 2")))
	})

	It("should drain a queue in order", func() {
		q := vm.NewQueue(1, 2)
		q.Push(3)
		Expect(q.Len()).To(Equal(3))
		for _, want := range []int64{1, 2, 3} {
			Expect(q.ReadInt()).To(Equal(want))
		}
		_, err := q.ReadInt()
		Expect(err).To(MatchError(vm.ErrNoInput))
	})
})
