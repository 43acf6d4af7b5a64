// Package cli implements the gocond command tree.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"gocond/pkg/config"
	"gocond/pkg/logging"
	"gocond/pkg/vm"
)

// Version is set at build time with -ldflags "-X gocond/pkg/cli.Version=...".
var Version = "dev"

// app carries flag values and shared state for one invocation.
type app struct {
	cfgFile  string
	logLevel string
	trace    bool
	maxSteps int
	input    string
	snapshot string
	symbols  bool

	cfg    *config.Config
	logger *log.Logger

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	// source and listing map are kept for error rendering
	source    string
	sourceMap map[int]int
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gocond",
		Short: "Compile and run single-conditional programs",
		Long: `gocond compiles programs of the form

  if COND then BODY [elseif COND then BODY]... [else BODY] end

into postfix stack-machine code and executes it.

Commands:
  run      compile and execute a program (or a listing)
  compile  write the instruction listing of a program
  tokens   print the token table
  resume   continue a run from a snapshot`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageErr(err)
	})

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (.toml, .yaml or .yml)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.BoolVar(&a.trace, "trace", false, "log every executed instruction")
	flags.IntVar(&a.maxSteps, "max-steps", 0, "abort after this many instructions (0 = unlimited)")
	flags.StringVar(&a.input, "input", "", "file with one integer per line for INPUT (default stdin)")
	flags.StringVar(&a.snapshot, "snapshot", "", "write the final VM state to this file")

	root.AddCommand(a.runCmd(), a.resumeCmd(), a.compileCmd(), a.tokensCmd(), a.versionCmd())
	return root
}

// setup loads the config file and applies flag overrides.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg := config.Default()
	if a.cfgFile != "" {
		loaded, err := config.Load(a.cfgFile)
		if err != nil {
			return usageErr(err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if flags.Changed("trace") {
		cfg.VM.Trace = a.trace
	}
	if flags.Changed("max-steps") {
		cfg.VM.MaxSteps = a.maxSteps
	}
	if flags.Changed("input") {
		cfg.Run.Input = a.input
	}
	if flags.Changed("snapshot") {
		cfg.Run.Snapshot = a.snapshot
	}
	if err := cfg.Validate(); err != nil {
		return usageErr(err)
	}

	logger, err := logging.New(cfg.Log, a.stderr)
	if err != nil {
		return usageErr(err)
	}
	if cfg.VM.Trace {
		logger.SetLevel(log.DebugLevel)
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}

// openInput returns the INPUT source and a function that releases it.
func (a *app) openInput() (vm.InputSource, func(), error) {
	if a.cfg.Run.Input == "" {
		return vm.NewLineReader(a.stdin), func() {}, nil
	}
	f, err := os.Open(a.cfg.Run.Input)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return vm.NewLineReader(f), func() { f.Close() }, nil
}

func (a *app) vmOptions(in vm.InputSource) []vm.Option {
	return []vm.Option{
		vm.WithInput(in),
		vm.WithOutput(a.stdout),
		vm.WithLogger(a.logger),
		vm.WithTrace(a.cfg.VM.Trace),
		vm.WithMaxSteps(a.cfg.VM.MaxSteps),
		vm.WithSeparator(a.cfg.VM.OutputSeparator),
	}
}

// Run executes the command line args and returns the process exit code.
// Errors are rendered to stderr.
func Run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}
	root := a.rootCmd()
	root.SetArgs(args)

	err := root.Execute()
	if err != nil {
		fmt.Fprintln(stderr, a.render(err))
	}
	return ExitCode(err)
}

// Execute runs the process command line and exits.
func Execute() {
	out := bufio.NewWriter(os.Stdout)
	atexit.Register(func() { out.Flush() })

	atexit.Exit(Run(os.Args[1:], os.Stdin, out, os.Stderr))
}
