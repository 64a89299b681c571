// Package regalloc assigns hardware registers to the temporaries of one
// function: liveness to a fixpoint, an interference graph built with the
// def-based rule, and optimal greedy coloring along a perfect elimination
// ordering of the (chordal) graph.
package regalloc

import (
	"context"
	"fmt"

	"github.com/raymyers/ralph-ra/pkg/abs"
	"github.com/raymyers/ralph-ra/pkg/target"
	"golang.org/x/sync/errgroup"
)

// Options tune an allocation
type Options struct {
	// Budget overrides the function's "//target" hint and the target default
	Budget int
	// Coalesce merges move-related temporaries before coloring
	Coalesce bool
}

// Attempt summarizes one coloring attempt
type Attempt struct {
	K          int
	ColorsUsed int
	Spilled    []abs.Name
}

// Result is the outcome of allocating one function
type Result struct {
	Output *Output
	// K is the budget of the accepted attempt
	K        int
	Attempts []Attempt

	Liveness *LivenessInfo
	// Graph is the graph colored by the accepted attempt (after coalescing)
	Graph    *InterferenceGraph
	Aliases  Aliases
	Coloring *Coloring
	// Warnings describe disagreements with producer-supplied liveness
	Warnings []string
}

// Budget returns the register budget of the first attempt
func Budget(fn *abs.Function, tgt *target.Target, opts Options) int {
	switch {
	case opts.Budget > 0:
		return opts.Budget
	case fn.Target > 0:
		return fn.Target
	default:
		return tgt.Budget
	}
}

// Allocate performs register allocation for a function. The first attempt
// uses the full budget k; if anything spills, a second attempt with k-1
// colors leaves one register free for moving spilled values to and from
// memory, and its result is returned whether or not it spills too.
// Spilling is reported through Output.Spillover, never as an error.
func Allocate(fn *abs.Function, tgt *target.Target, opts Options) (*Result, error) {
	if tgt == nil {
		tgt = target.X86_64
	}
	k := Budget(fn, tgt, opts)
	if k > tgt.NumRegisters() {
		return nil, fmt.Errorf("budget %d exceeds the %d registers of target %s", k, tgt.NumRegisters(), tgt.Name)
	}

	if err := validateFacts(fn, tgt); err != nil {
		return nil, err
	}
	live := AnalyzeLiveness(fn)
	if err := checkReachingDefs(fn, live); err != nil {
		return nil, err
	}

	res := &Result{
		Liveness: live,
		Warnings: checkProducerLiveness(fn, live),
	}
	res.attempt(fn, tgt, k, opts)
	if len(res.Coloring.Spilled()) > 0 && k > 0 {
		res.attempt(fn, tgt, k-1, opts)
	}
	res.Output = Emit(fn, res.Coloring, tgt)
	return res, nil
}

// attempt rebuilds the graph from scratch and colors it with budget k
func (res *Result) attempt(fn *abs.Function, tgt *target.Target, k int, opts Options) {
	g := BuildInterferenceGraph(fn, res.Liveness)
	pre := Precolor(g, tgt)
	alias := make(Aliases)
	if opts.Coalesce {
		g, alias = Coalesce(g, k, pre)
	}
	c := Color(g, k, pre)
	alias.Expand(c)

	res.K = k
	res.Graph = g
	res.Aliases = alias
	res.Coloring = c
	res.Attempts = append(res.Attempts, Attempt{
		K:          k,
		ColorsUsed: c.Used(),
		Spilled:    c.Spilled(),
	})
}

// AllocateAll allocates independent functions concurrently. Functions share
// no allocation state; the first error cancels the remaining work.
func AllocateAll(ctx context.Context, fns []*abs.Function, tgt *target.Target, opts Options) ([]*Result, error) {
	results := make([]*Result, len(fns))
	g, ctx := errgroup.WithContext(ctx)
	for i, fn := range fns {
		i, fn := i, fn
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := Allocate(fn, tgt, opts)
			if err != nil {
				if fn.Name != "" {
					return fmt.Errorf("%s: %w", fn.Name, err)
				}
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
