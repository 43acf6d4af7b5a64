package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"gocond/pkg/asm"
	"gocond/pkg/compiler"
	"gocond/pkg/config"
	"gocond/pkg/logging"
	"gocond/pkg/utils"
	"gocond/pkg/vm"
)

// complete reports whether src holds a whole program: every "if" has been
// closed by an "end".
func complete(src string) (bool, error) {
	tokens, err := compiler.Tokenize(src)
	if err != nil {
		return false, err
	}
	ifs, ends := 0, 0
	for _, tok := range tokens {
		switch tok.Kind {
		case compiler.IF:
			ifs++
		case compiler.END:
			ends++
		}
	}
	return ifs > 0 && ends >= ifs, nil
}

type console struct {
	in      *bufio.Scanner
	out     io.Writer
	showAsm bool
	opts    []vm.Option
}

func (c *console) run(src string) {
	prog, err := compiler.Compile(src)
	if err != nil {
		fmt.Fprintln(c.out, err)
		return
	}
	if c.showAsm {
		fmt.Fprint(c.out, asm.Disassemble(prog))
	}

	syms, err := vm.Run(prog, c.opts...)
	if err != nil {
		fmt.Fprintln(c.out, err)
	}
	fmt.Fprint(c.out, syms)
}

// repl reads programs line by line until stdin closes.
func (c *console) repl() {
	var buf strings.Builder
	fmt.Fprint(c.out, "> ")
	for c.in.Scan() {
		buf.WriteString(c.in.Text())
		buf.WriteString("\n")

		done, err := complete(buf.String())
		switch {
		case err != nil:
			fmt.Fprintln(c.out, err)
			buf.Reset()
		case done:
			c.run(buf.String())
			buf.Reset()
		}

		if buf.Len() == 0 {
			fmt.Fprint(c.out, "> ")
		} else {
			fmt.Fprint(c.out, "... ")
		}
	}
	fmt.Fprintln(c.out)
}

func main() {
	showAsm := flag.Bool("show-asm", false, "print the listing before running")
	trace := flag.Bool("trace", false, "log every executed instruction")
	flag.Parse()

	cfg := config.Default()
	if *trace {
		cfg.Log.Level = "debug"
	}
	logger, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	stdin := bufio.NewScanner(os.Stdin)
	c := &console{
		in:      stdin,
		out:     os.Stdout,
		showAsm: *showAsm,
		opts: []vm.Option{
			vm.WithInput(vm.NewLineScanner(stdin)),
			vm.WithOutput(os.Stdout),
			vm.WithLogger(logger),
			vm.WithTrace(*trace),
			vm.WithSeparator(cfg.VM.OutputSeparator),
		},
	}

	if flag.NArg() > 0 {
		fullPath, _, err := utils.GetPathInfo(flag.Arg(0))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		src, err := utils.ReadSource(fullPath, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read source file: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, "Running source file:", fullPath)
		c.run(src)
		return
	}

	c.repl()
}
