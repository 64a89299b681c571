package regalloc

import (
	"fmt"

	"github.com/raymyers/ralph-ra/pkg/abs"
)

// LivenessInfo holds per-line liveness for one function.
// Invariants after AnalyzeLiveness:
//
//	LiveOut[i] = ∪ LiveIn[s] for s in succ(i)
//	LiveIn[i]  = Use[i] ∪ (LiveOut[i] \ Def[i])
type LivenessInfo struct {
	Def     []NameSet
	Use     []NameSet
	LiveIn  []NameSet
	LiveOut []NameSet
	// Passes is the number of backward sweeps needed to reach the fixpoint,
	// including the final sweep that observed no change
	Passes int
}

// ComputeDefUse collects the defined and used names of every line
func ComputeDefUse(fn *abs.Function) (def, use []NameSet) {
	def = make([]NameSet, len(fn.Facts))
	use = make([]NameSet, len(fn.Facts))
	for i := range fn.Facts {
		def[i] = NewNameSet(fn.Facts[i].Defs...)
		use[i] = NewNameSet(fn.Facts[i].Uses...)
	}
	return def, use
}

// AnalyzeLiveness computes live-in/live-out sets by iterating backward over
// the instructions until no set changes. Loops need more than one sweep: a
// name used at the loop header only becomes live at the back-edge source on
// a later pass.
func AnalyzeLiveness(fn *abs.Function) *LivenessInfo {
	n := len(fn.Facts)
	def, use := ComputeDefUse(fn)
	info := &LivenessInfo{
		Def:     def,
		Use:     use,
		LiveIn:  make([]NameSet, n),
		LiveOut: make([]NameSet, n),
	}
	for i := 0; i < n; i++ {
		info.LiveIn[i] = NewNameSet()
		info.LiveOut[i] = NewNameSet()
	}

	succs := make([][]int, n)
	for i := range succs {
		succs[i] = fn.Successors(i)
	}

	for changed := true; changed; {
		changed = false
		info.Passes++
		for i := n - 1; i >= 0; i-- {
			out := NewNameSet()
			for _, s := range succs[i] {
				for r := range info.LiveIn[s] {
					out.Add(r)
				}
			}
			in := use[i].Union(out.Minus(def[i]))

			if !out.Equal(info.LiveOut[i]) || !in.Equal(info.LiveIn[i]) {
				changed = true
				info.LiveOut[i] = out
				info.LiveIn[i] = in
			}
		}
	}
	return info
}

// Check re-verifies both dataflow equations on every line
func (info *LivenessInfo) Check(fn *abs.Function) error {
	for i := range fn.Facts {
		out := NewNameSet()
		for _, s := range fn.Successors(i) {
			for r := range info.LiveIn[s] {
				out.Add(r)
			}
		}
		if !out.Equal(info.LiveOut[i]) {
			return fmt.Errorf("line %d: live-out %v, want %v", i, info.LiveOut[i].Slice(), out.Slice())
		}
		in := info.Use[i].Union(info.LiveOut[i].Minus(info.Def[i]))
		if !in.Equal(info.LiveIn[i]) {
			return fmt.Errorf("line %d: live-in %v, want %v", i, info.LiveIn[i].Slice(), in.Slice())
		}
	}
	return nil
}

// Sorted returns the live-in and live-out sets as sorted slices, one per line
func (info *LivenessInfo) Sorted() (in, out [][]abs.Name) {
	in = make([][]abs.Name, len(info.LiveIn))
	out = make([][]abs.Name, len(info.LiveOut))
	for i := range info.LiveIn {
		in[i] = info.LiveIn[i].Slice()
		out[i] = info.LiveOut[i].Slice()
	}
	return in, out
}

// MaxLive returns the largest number of simultaneously live names
func (info *LivenessInfo) MaxLive() int {
	best := 0
	for i := range info.LiveOut {
		if l := len(info.LiveOut[i]); l > best {
			best = l
		}
		if l := len(info.LiveIn[i]); l > best {
			best = l
		}
	}
	return best
}
