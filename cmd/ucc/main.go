// Command ucc is the uC compiler driver (spec.md §6.1): a single command
// accepting a source path and the --ir/--opt/--llvm/--run flags.
//
// Grounded on hhramberg-go-vslc/src/main.go's run(opt)/main() split: a
// run function that executes the pipeline and returns an error, and a
// thin main that reports it and sets the process exit code. The teacher
// parses flags by hand over os.Args; this driver uses cobra/pflag instead,
// the CLI library the rest of the retrieval pack reaches for.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ucc/internal/compiler"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		printIR  bool
		optFlag  string
		optSet   bool
		emitLLVM bool
		doRun    bool
		verbose  bool
	)

	cmd := &cobra.Command{
		Use:           "ucc <source.uc>",
		Short:         "uC compiler driver",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(verbose)
			if err != nil {
				return err
			}
			defer log.Sync()

			if cmd.Flags().Changed("opt") {
				optSet = true
			}

			opt := compiler.Options{
				PrintIR:  printIR,
				OptLevel: optFlag,
				OptSet:   optSet,
				EmitLLVM: emitLLVM,
				Run:      doRun,
			}

			outcome, err := compiler.Compile(args[0], opt, log)
			if err != nil {
				color.Red("%s", err)
				os.Exit(outcome.ExitCode)
			}
			if doRun {
				fmt.Println(outcome.RunValue)
			}
			os.Exit(outcome.ExitCode)
			return nil
		},
	}

	cmd.Flags().BoolVar(&printIR, "ir", false, "print generated uCIR")
	cmd.Flags().StringVar(&optFlag, "opt", "all", "run the optimizer pipeline (ctm|dce|cfg|all)")
	cmd.Flags().Lookup("opt").NoOptDefVal = "all"
	cmd.Flags().BoolVar(&emitLLVM, "llvm", false, "emit LLVM IR")
	cmd.Flags().BoolVar(&doRun, "run", false, "JIT and execute main")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "enable debug logging")

	if err := cmd.Execute(); err != nil {
		color.Red("%s", err)
		return 1
	}
	return 0
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}
