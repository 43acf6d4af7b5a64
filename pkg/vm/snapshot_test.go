package vm_test

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"gocond/pkg/ir"
	"gocond/pkg/vm"
)

var _ = Describe("Snapshot", func() {
	const src = "if 1 then input a; b=a*2; output b; c=b-1; output c; end"

	var (
		prog     ir.Program
		wantOut  string
		wantSyms map[string]int64
	)

	BeforeEach(func() {
		prog = compile(src)

		out := new(bytes.Buffer)
		syms, err := vm.Run(prog, vm.WithInput(vm.NewQueue(5)), vm.WithOutput(out))
		Expect(err).NotTo(HaveOccurred())
		wantOut = out.String()
		wantSyms = syms.Map()
		Expect(wantOut).To(Equal("10\n9\n"))
	})

	It("should resume at every instruction with the same result", func() {
		for cut := 0; cut <= len(prog); cut++ {
			before := new(bytes.Buffer)
			v := vm.New(prog, vm.WithInput(vm.NewQueue(5)), vm.WithOutput(before))
			for i := 0; i < cut; i++ {
				Expect(v.Step()).To(Succeed())
			}

			data, err := v.SnapshotToBytes()
			Expect(err).NotTo(HaveOccurred())

			after := new(bytes.Buffer)
			restored, err := vm.RestoreFromBytes(data, vm.WithInput(vm.NewQueue(5)), vm.WithOutput(after))
			Expect(err).NotTo(HaveOccurred())
			Expect(restored.IP()).To(Equal(v.IP()))
			Expect(restored.Stack()).To(Equal(v.Stack()))
			Expect(restored.RunID()).To(Equal(v.RunID()))
			Expect(restored.Program()).To(Equal(prog))

			Expect(restored.Run()).To(Succeed())
			Expect(before.String()+after.String()).To(Equal(wantOut), "cut at %d", cut)
			Expect(restored.Symbols().Map()).To(Equal(wantSyms), "cut at %d", cut)
			Expect(restored.Steps()).To(Equal(len(prog)))
		}
	})

	It("should keep variable references on the stack", func() {
		v := vm.New(prog, vm.WithInput(vm.NewQueue(5)), vm.WithOutput(new(bytes.Buffer)))
		for i := 0; i < 9; i++ {
			Expect(v.Step()).To(Succeed())
		}
		Expect(v.Stack()).To(Equal([]vm.Slot{vm.NameSlot("b"), vm.IntSlot(10)}))

		data, err := v.SnapshotToBytes()
		Expect(err).NotTo(HaveOccurred())
		restored, err := vm.RestoreFromBytes(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(restored.Stack()).To(Equal(v.Stack()))
	})

	It("should restore the output separator", func() {
		v := vm.New(prog, vm.WithSeparator(","))
		data, err := v.SnapshotToBytes()
		Expect(err).NotTo(HaveOccurred())

		out := new(bytes.Buffer)
		restored, err := vm.RestoreFromBytes(data, vm.WithInput(vm.NewQueue(5)), vm.WithOutput(out))
		Expect(err).NotTo(HaveOccurred())
		Expect(restored.Run()).To(Succeed())
		Expect(out.String()).To(Equal("10,9,"))
	})

	It("should restore a finished run as halted", func() {
		v := vm.New(prog, vm.WithInput(vm.NewQueue(5)), vm.WithOutput(new(bytes.Buffer)))
		Expect(v.Run()).To(Succeed())

		data, err := v.SnapshotToBytes()
		Expect(err).NotTo(HaveOccurred())
		restored, err := vm.RestoreFromBytes(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(restored.Halted()).To(BeTrue())
		Expect(restored.Symbols().Map()).To(Equal(wantSyms))
	})

	It("should restore a failed run with its error", func() {
		v := vm.New(compile("if 1 then x=1/0; end"))
		Expect(v.Run()).To(MatchError(vm.ErrDivideByZero))

		data, err := v.SnapshotToBytes()
		Expect(err).NotTo(HaveOccurred())
		restored, err := vm.RestoreFromBytes(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(restored.Halted()).To(BeTrue())
		Expect(restored.Err()).To(MatchError(ContainSubstring("divide by zero")))
	})

	It("should resume a run that ran out of input", func() {
		first := new(bytes.Buffer)
		v := vm.New(prog, vm.WithInput(vm.NewQueue()), vm.WithOutput(first))
		Expect(v.Run()).To(MatchError(vm.ErrInput))
		Expect(v.IP()).To(Equal(4))
		Expect(v.Stack()).To(Equal([]vm.Slot{vm.NameSlot("a")}))

		data, err := v.SnapshotToBytes()
		Expect(err).NotTo(HaveOccurred())

		out := new(bytes.Buffer)
		restored, err := vm.RestoreFromBytes(data, vm.WithInput(vm.NewQueue(5)), vm.WithOutput(out))
		Expect(err).NotTo(HaveOccurred())
		Expect(restored.Halted()).To(BeFalse())
		Expect(restored.Run()).To(Succeed())
		Expect(first.String() + out.String()).To(Equal(wantOut))
		Expect(restored.Symbols().Map()).To(Equal(wantSyms))
	})

	It("should resume a run that hit the step limit", func() {
		v := vm.New(prog, vm.WithInput(vm.NewQueue(5)), vm.WithOutput(new(bytes.Buffer)), vm.WithMaxSteps(7))
		Expect(v.Run()).To(MatchError(vm.ErrStepLimit))

		data, err := v.SnapshotToBytes()
		Expect(err).NotTo(HaveOccurred())

		out := new(bytes.Buffer)
		restored, err := vm.RestoreFromBytes(data, vm.WithOutput(out))
		Expect(err).NotTo(HaveOccurred())
		Expect(restored.IP()).To(Equal(7))
		Expect(restored.Run()).To(Succeed())
		Expect(out.String()).To(Equal(wantOut))
	})

	It("should round trip through a file", func() {
		dir, err := os.MkdirTemp("", "gocond-snapshot")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, dir)
		path := filepath.Join(dir, "run.zip")

		v := vm.New(prog, vm.WithInput(vm.NewQueue(5)), vm.WithOutput(new(bytes.Buffer)))
		for i := 0; i < 6; i++ {
			Expect(v.Step()).To(Succeed())
		}
		Expect(v.SnapshotToFile(path)).To(Succeed())

		out := new(bytes.Buffer)
		restored, err := vm.RestoreFromFile(path, vm.WithOutput(out))
		Expect(err).NotTo(HaveOccurred())
		Expect(restored.Run()).To(Succeed())
		Expect(out.String()).To(Equal(wantOut))
	})

	It("should reject data that is not a snapshot", func() {
		_, err := vm.RestoreFromBytes([]byte("not a zip"))
		Expect(err).To(MatchError(ContainSubstring("open zip")))
	})

	It("should reject an archive without a program", func() {
		buf := new(bytes.Buffer)
		zw := zip.NewWriter(buf)
		w, err := zw.Create("state.json")
		Expect(err).NotTo(HaveOccurred())
		_, err = w.Write([]byte(`{"run_id":"00000000-0000-0000-0000-000000000000","ip":0}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(zw.Close()).To(Succeed())

		_, err = vm.RestoreFromBytes(buf.Bytes())
		Expect(err).To(MatchError(ContainSubstring(`"program.lst" not found`)))
	})
})
