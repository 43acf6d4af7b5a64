package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"gocond/pkg/asm"
	"gocond/pkg/compiler"
	"gocond/pkg/ir"
	"gocond/pkg/utils"
	"gocond/pkg/vm"
)

func (a *app) runCmd() *cobra.Command {
	var listing bool

	cmd := &cobra.Command{
		Use:   "run <file|->",
		Short: "Compile and execute a program",
		Long: `Compile a program and execute it. With --listing the file is an
instruction listing as written by "compile" and is assembled instead.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := a.load(args[0], listing)
			if err != nil {
				return err
			}
			return a.execute(prog)
		},
	}
	cmd.Flags().BoolVar(&listing, "listing", false, "the file is an instruction listing")
	cmd.Flags().BoolVar(&a.symbols, "symbols", false, "print the symbol table after the run")
	return cmd
}

func (a *app) resumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume <snapshot>",
		Short: "Continue a run from a snapshot file",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, release, err := a.openInput()
			if err != nil {
				return err
			}
			defer release()

			machine, err := vm.RestoreFromFile(args[0], a.vmOptions(in)...)
			if err != nil {
				return fmt.Errorf("resume: %w", err)
			}
			a.logger.Info("resuming", "run", machine.RunID(), "ip", machine.IP())
			return a.finish(machine, machine.Run())
		},
	}
	cmd.Flags().BoolVar(&a.symbols, "symbols", false, "print the symbol table after the run")
	return cmd
}

// load reads path and turns it into a program.
func (a *app) load(path string, listing bool) (ir.Program, error) {
	src, err := utils.ReadSource(path, a.stdin)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	a.source = src

	if listing {
		prog, sourceMap, err := asm.NewAssembler().Assemble(src)
		if err != nil {
			return nil, err
		}
		a.sourceMap = sourceMap
		return prog, nil
	}
	return compiler.Compile(src)
}

func (a *app) execute(prog ir.Program) error {
	in, release, err := a.openInput()
	if err != nil {
		return err
	}
	defer release()

	machine := vm.New(prog, a.vmOptions(in)...)
	return a.finish(machine, machine.Run())
}

// finish writes the snapshot and symbol table, whatever the run outcome.
func (a *app) finish(machine *vm.VM, runErr error) error {
	var errs []error
	if runErr != nil {
		errs = append(errs, runErr)
	}
	if path := a.cfg.Run.Snapshot; path != "" {
		if err := machine.SnapshotToFile(path); err != nil {
			errs = append(errs, fmt.Errorf("snapshot: %w", err))
		} else {
			a.logger.Info("snapshot written", "path", path, "ip", machine.IP())
		}
	}
	if a.symbols {
		io.WriteString(a.stdout, machine.Symbols().String())
	}
	return errors.Join(errs...)
}
