package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gocond/pkg/asm"
	"gocond/pkg/compiler"
	"gocond/pkg/utils"
)

func (a *app) compileCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "compile <file|->",
		Short: "Write the instruction listing of a program",
		Long: `Compile a program and write its listing. The default output path is
the source path with a .lst extension; "-o -" or a source read from stdin
writes to stdout.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := a.load(args[0], false)
			if err != nil {
				return err
			}
			listing := asm.Disassemble(prog)

			output := outPath
			if output == "" {
				output = utils.Stdin
				if args[0] != utils.Stdin {
					output = utils.WithExt(args[0], ".lst")
				}
			}
			if output == utils.Stdin {
				_, err := fmt.Fprint(a.stdout, listing)
				return err
			}

			if err := os.WriteFile(output, []byte(listing), 0o644); err != nil {
				return fmt.Errorf("failed to write listing %q: %w", output, err)
			}
			fmt.Fprintf(a.stdout, "compiled %d instructions -> %s\n", len(prog), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "listing path")
	return cmd
}

func (a *app) tokensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tokens <file|->",
		Short: "Print the token table of a program",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := utils.ReadSource(args[0], a.stdin)
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			a.source = src

			tokens, err := compiler.Tokenize(src)
			if err != nil {
				return err
			}
			for _, tok := range tokens {
				fmt.Fprintln(a.stdout, tok)
			}
			return nil
		},
	}
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  exactArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "gocond %s\n", Version)
		},
	}
}
