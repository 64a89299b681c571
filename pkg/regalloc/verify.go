package regalloc

import (
	"fmt"

	"github.com/raymyers/ralph-ra/pkg/abs"
	"github.com/raymyers/ralph-ra/pkg/target"
)

// Verify checks a result against the facts it was computed from:
//   - the liveness sets satisfy the dataflow equations
//   - interfering names never share a register
//   - a move never forces its own source and destination apart
//   - every defined temporary is either assigned or spilled, not both
//   - a register never holds two unrelated live temporaries at once
func Verify(fn *abs.Function, res *Result, tgt *target.Target) error {
	if tgt == nil {
		tgt = target.X86_64
	}
	live := res.Liveness
	if err := live.Check(fn); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAllocation, err)
	}

	regs := res.Output.Registers()
	regOf := func(n abs.Name) (abs.Name, bool) {
		if n.IsReg() {
			return abs.Name(tgt.Canonical(string(n))), true
		}
		r, ok := regs[n]
		return r, ok
	}

	g := BuildInterferenceGraph(fn, live)
	for _, a := range g.Order() {
		for _, b := range g.Neighbors(a) {
			ra, okA := regOf(a)
			rb, okB := regOf(b)
			if okA && okB && ra == rb {
				return fmt.Errorf("%w: %s and %s interfere but share %s", ErrInvalidAllocation, a, b, ra)
			}
		}
	}

	for i := range fn.Facts {
		d, ok := fn.Facts[i].Def()
		src, isMove := fn.Facts[i].MoveSource()
		if !ok || !isMove || !g.HasEdge(d, src) {
			continue
		}
		if !interferesElsewhere(fn, live, d, src, i) {
			return fmt.Errorf("%w: line %d: move %s <- %s created an interference", ErrInvalidAllocation, i, d, src)
		}
	}

	defined := NewNameSet()
	for i := range fn.Facts {
		for _, d := range fn.Facts[i].Defs {
			if d.IsTemp() {
				defined.Add(d)
			}
		}
	}
	for _, t := range defined.Slice() {
		_, assigned := regs[t]
		spilled := res.Output.Spillover.Contains(t)
		switch {
		case assigned && spilled:
			return fmt.Errorf("%w: %s is both assigned and spilled", ErrInvalidAllocation, t)
		case !assigned && !spilled:
			return fmt.Errorf("%w: %s is neither assigned nor spilled", ErrInvalidAllocation, t)
		}
	}
	for t, r := range regs {
		if c, ok := tgt.Color(string(r)); !ok || c >= res.K {
			return fmt.Errorf("%w: %s uses %s outside the budget of %d", ErrInvalidAllocation, t, r, res.K)
		}
	}

	copies := copyClasses(g)
	for i := range fn.Facts {
		for _, set := range []NameSet{live.LiveIn[i], live.LiveOut[i]} {
			holder := make(map[abs.Name]abs.Name)
			for _, n := range set.Slice() {
				r, ok := regs[n]
				if !ok {
					continue
				}
				prev, taken := holder[r]
				if taken && copies.Find(prev) != copies.Find(n) {
					return fmt.Errorf("%w: line %d: %s and %s are live together in %s", ErrInvalidAllocation, i, prev, n, r)
				}
				holder[r] = n
			}
		}
	}
	return nil
}

// copyClasses groups names connected by moves; only such names may hold
// the same value while live together
func copyClasses(g *InterferenceGraph) Aliases {
	classes := make(Aliases)
	for _, n := range g.Order() {
		for _, m := range g.orderedPreferences(n) {
			a, b := classes.Find(n), classes.Find(m)
			if a != b {
				classes[b] = a
			}
		}
	}
	return classes
}

// interferesElsewhere reports whether some line other than skip creates the
// edge a-b under the def-based rule
func interferesElsewhere(fn *abs.Function, live *LivenessInfo, a, b abs.Name, skip int) bool {
	for i := range fn.Facts {
		if i == skip {
			continue
		}
		d, ok := fn.Facts[i].Def()
		if !ok || (d != a && d != b) {
			continue
		}
		other := b
		if d == b {
			other = a
		}
		if src, isMove := fn.Facts[i].MoveSource(); isMove && src == other {
			continue
		}
		if live.LiveOut[i].Contains(other) {
			return true
		}
	}
	return false
}
