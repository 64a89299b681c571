package regalloc

import (
	"fmt"

	"github.com/raymyers/ralph-ra/pkg/abs"
	"github.com/raymyers/ralph-ra/pkg/target"
)

// Validate checks the preconditions the allocator relies on and reports the
// first violation. It never repairs the input.
func Validate(fn *abs.Function, tgt *target.Target) error {
	if err := validateFacts(fn, tgt); err != nil {
		return err
	}
	return checkReachingDefs(fn, AnalyzeLiveness(fn))
}

func validateFacts(fn *abs.Function, tgt *target.Target) error {
	n := len(fn.Facts)
	spelling := make(map[string]abs.Name)
	for i := range fn.Facts {
		f := &fn.Facts[i]
		if f.Line != i {
			return malformed(i, f.Source, "line number %d is not the dense index %d", f.Line, i)
		}
		for _, s := range f.Succs {
			if s < 0 || s >= n {
				return malformed(i, f.Source, "successor %d outside 0..%d", s, n-1)
			}
		}
		for _, u := range f.Uses {
			if err := checkName(i, f.Source, u, tgt); err != nil {
				return err
			}
		}
		for _, d := range f.Defs {
			if err := checkName(i, f.Source, d, tgt); err != nil {
				return err
			}
		}
		if err := checkDefs(i, f, tgt); err != nil {
			return err
		}
		if f.Move && len(f.Uses) > 1 {
			return malformed(i, f.Source, "move reads %d names, want at most 1", len(f.Uses))
		}
		if err := checkSpellings(i, f, spelling, tgt); err != nil {
			return err
		}
	}
	return nil
}

func checkName(line, source int, n abs.Name, tgt *target.Target) error {
	switch {
	case n.IsTemp():
		return nil
	case !n.IsReg():
		return malformed(line, source, "%q is neither a temporary nor a register", n)
	case string(n) == tgt.StackPointer:
		return malformed(line, source, "%s is reserved for the stack frame", n)
	case !tgt.Known(string(n)):
		return malformed(line, source, "unknown register %s for target %s", n, tgt.Name)
	}
	return nil
}

// checkDefs enforces "at most one definition per line". Two spellings of the
// same hardware register are reported as a pre-coloring conflict rather than
// a plain double definition.
func checkDefs(line int, f *abs.Fact, tgt *target.Target) error {
	if len(f.Defs) < 2 {
		return nil
	}
	seen := make(map[string]abs.Name, len(f.Defs))
	for _, d := range f.Defs {
		if !d.IsReg() {
			continue
		}
		canon := tgt.Canonical(string(d))
		if prev, ok := seen[canon]; ok {
			return precolorConflict(line, f.Source, prev, d, canon, tgt)
		}
		seen[canon] = d
	}
	return malformed(line, f.Source, "%d definitions on one line", len(f.Defs))
}

// checkSpellings requires one spelling per hardware register within a
// function. %rax and %eax would otherwise become two nodes with one color.
func checkSpellings(line int, f *abs.Fact, spelling map[string]abs.Name, tgt *target.Target) error {
	for _, names := range [][]abs.Name{f.Defs, f.Uses} {
		for _, n := range names {
			if !n.IsReg() {
				continue
			}
			canon := tgt.Canonical(string(n))
			prev, ok := spelling[canon]
			if !ok {
				spelling[canon] = n
				continue
			}
			if prev != n {
				return precolorConflict(line, f.Source, prev, n, canon, tgt)
			}
		}
	}
	return nil
}

func precolorConflict(line, source int, a, b abs.Name, canon string, tgt *target.Target) error {
	role, _ := tgt.Role(canon)
	if role == "" {
		role = "register " + canon
	}
	return &InputError{
		Line:   line,
		Source: source,
		Err:    ErrPrecolorConflict,
		Msg:    fmt.Sprintf("%s and %s both claim %s", a, b, role),
	}
}

// checkReachingDefs rejects temporaries that are live on entry: some path
// from the first line reads them before any definition.
func checkReachingDefs(fn *abs.Function, live *LivenessInfo) error {
	if len(fn.Facts) == 0 {
		return nil
	}
	for _, t := range live.LiveIn[0].Slice() {
		if !t.IsTemp() {
			continue
		}
		for i := range fn.Facts {
			if live.Use[i].Contains(t) && live.LiveIn[i].Contains(t) {
				return malformed(i, fn.Facts[i].Source, "%s is used without a reaching definition", t)
			}
		}
		return malformed(0, fn.Facts[0].Source, "%s is used without a reaching definition", t)
	}
	return nil
}

// checkProducerLiveness compares optional producer liveness with ours and
// describes every mismatch
func checkProducerLiveness(fn *abs.Function, live *LivenessInfo) []string {
	var warnings []string
	for i := range fn.Facts {
		f := &fn.Facts[i]
		if f.LiveOut == nil {
			continue
		}
		given := NewNameSet(f.LiveOut...)
		if !given.Equal(live.LiveOut[i]) {
			warnings = append(warnings, fmt.Sprintf("line %d: producer live-out %v differs from computed %v",
				i, given.Slice(), live.LiveOut[i].Slice()))
		}
	}
	return warnings
}
