package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/raymyers/ralph-ra/pkg/abs"
	"github.com/raymyers/ralph-ra/pkg/regalloc"
	"github.com/raymyers/ralph-ra/pkg/target"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var version = "0.1.0"

// Debug flags for dumping intermediate results
var (
	dFacts bool
	dLive  bool
	dGraph bool
	dColor bool
	dAlloc bool
)

// Allocation options
var (
	budget     int
	targetFile string
	coalesce   bool
	verify     bool
	jsonOut    bool
	verbose    bool
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	// Accept CompCert-style single-dash debug flags
	rootCmd.SetArgs(normalizeFlags(os.Args[1:]))
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

// debugFlagNames lists all debug flags that accept single-dash style
var debugFlagNames = []string{"dfacts", "dlive", "dgraph", "dcolor", "dalloc"}

// normalizeFlags converts single-dash debug flags like -dlive to --dlive
func normalizeFlags(args []string) []string {
	result := make([]string, len(args))
	for i, arg := range args {
		for _, flagName := range debugFlagNames {
			if arg == "-"+flagName {
				result[i] = "--" + flagName
				break
			}
		}
		if result[i] == "" {
			result[i] = arg
		}
	}
	return result
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ralph-ra [files...]",
		Short: "ralph-ra allocates registers for abstract assembly",
		Long: `ralph-ra reads per-line instruction facts (the "//target k" JSON
liveness format, or the textual .abs dump format), colors the interference
graph of every function along a perfect elimination ordering, and prints
the register chosen for each defined temporary plus the spill set.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				cmd.Help()
				return nil
			}
			return doAllocate(cmd.Context(), args, out, errOut)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	addDebugFlags(rootCmd.Flags())
	addAllocFlags(rootCmd.Flags())
	return rootCmd
}

func addDebugFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&dFacts, "dfacts", false, "Dump the instruction facts")
	fs.BoolVar(&dLive, "dlive", false, "Dump live-in/live-out sets")
	fs.BoolVar(&dGraph, "dgraph", false, "Dump the colored interference graph")
	fs.BoolVar(&dColor, "dcolor", false, "Dump coloring attempts")
	fs.BoolVar(&dAlloc, "dalloc", false, "Dump the allocation as text even with --json")
}

func addAllocFlags(fs *pflag.FlagSet) {
	fs.IntVarP(&budget, "budget", "k", 0, "Register budget (overrides //target and the target default)")
	fs.StringVar(&targetFile, "target-file", "", "YAML machine description (default: built-in x86_64)")
	fs.BoolVar(&coalesce, "coalesce", false, "Coalesce move-related temporaries before coloring")
	fs.BoolVar(&verify, "verify", false, "Check the allocation against the input before printing")
	fs.BoolVar(&jsonOut, "json", false, "Print assignments in the JSON line format")
	fs.BoolVarP(&verbose, "verbose", "v", false, "Report every coloring attempt")
}

// loadTarget returns the machine description selected by --target-file
func loadTarget(errOut io.Writer) (*target.Target, error) {
	if targetFile == "" {
		return target.X86_64, nil
	}
	tgt, err := target.Load(targetFile)
	if err != nil {
		fmt.Fprintf(errOut, "ralph-ra: error loading target: %v\n", err)
		return nil, err
	}
	return tgt, nil
}

// readFunctions decodes one input file; JSON files hold a single function
// named after the file
func readFunctions(filename string, errOut io.Writer) ([]*abs.Function, error) {
	f, err := os.Open(filename)
	if err != nil {
		fmt.Fprintf(errOut, "ralph-ra: error reading %s: %v\n", filename, err)
		return nil, err
	}
	defer f.Close()

	if strings.HasSuffix(filename, ".json") {
		fn, err := abs.ReadJSON(f)
		if err != nil {
			fmt.Fprintf(errOut, "ralph-ra: %s: %v\n", filename, err)
			return nil, err
		}
		fn.Name = strings.TrimSuffix(filepath.Base(filename), ".json")
		return []*abs.Function{fn}, nil
	}

	prog, err := abs.Parse(f)
	if err != nil {
		fmt.Fprintf(errOut, "ralph-ra: %s: %v\n", filename, err)
		return nil, err
	}
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	for i, fn := range prog.Functions {
		if fn.Name == "" {
			fn.Name = base
			if len(prog.Functions) > 1 {
				fn.Name = fmt.Sprintf("%s#%d", base, i)
			}
		}
	}
	return prog.Functions, nil
}

// doAllocate reads every file, allocates all functions in parallel and
// prints the results in input order
func doAllocate(ctx context.Context, filenames []string, out, errOut io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	tgt, err := loadTarget(errOut)
	if err != nil {
		return err
	}

	var fns []*abs.Function
	for _, filename := range filenames {
		read, err := readFunctions(filename, errOut)
		if err != nil {
			return err
		}
		fns = append(fns, read...)
	}

	opts := regalloc.Options{Budget: budget, Coalesce: coalesce}
	results, err := regalloc.AllocateAll(ctx, fns, tgt, opts)
	if err != nil {
		fmt.Fprintf(errOut, "ralph-ra: error: %v\n", err)
		return err
	}

	for i, fn := range fns {
		res := results[i]
		if verbose {
			report(errOut, fn, res)
		}
		if verify {
			if err := regalloc.Verify(fn, res, tgt); err != nil {
				fmt.Fprintf(errOut, "ralph-ra: %s: %v\n", fn.Name, err)
				return err
			}
		}
		if err := printResult(out, fn, res); err != nil {
			return err
		}
	}
	return nil
}

// report prints one line per attempt and any liveness disagreement
func report(errOut io.Writer, fn *abs.Function, res *regalloc.Result) {
	for _, a := range res.Attempts {
		fmt.Fprintf(errOut, "ralph-ra: %s: k=%d used %d colors, %d spilled\n",
			fn.Name, a.K, a.ColorsUsed, len(a.Spilled))
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(errOut, "ralph-ra: %s: warning: %s\n", fn.Name, w)
	}
}

func printResult(out io.Writer, fn *abs.Function, res *regalloc.Result) error {
	if dFacts {
		abs.NewPrinter(out).PrintFunction(fn)
	}
	if dLive {
		in, liveOut := res.Liveness.Sorted()
		abs.NewPrinter(out).PrintLiveness(fn, in, liveOut)
	}
	if dGraph {
		regalloc.NewPrinter(out).PrintGraph(res.Graph, res.Coloring)
	}
	if dColor {
		cfg := spew.ConfigState{Indent: "  ", SortKeys: true, DisablePointerAddresses: true, DisableCapacities: true}
		cfg.Fdump(out, res.Attempts, res.Coloring.Colors)
	}
	if jsonOut {
		if err := res.Output.WriteJSON(out, fn); err != nil {
			return err
		}
		if !dAlloc {
			return nil
		}
	}
	regalloc.NewPrinter(out).PrintOutput(fn, res.Output)
	return nil
}
