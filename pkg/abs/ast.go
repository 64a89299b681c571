// Package abs defines the abstract-assembly instruction facts consumed by the
// register allocator. Each abstract-assembly line is reduced to the names it
// reads, the name it defines, whether it is a pure copy, and its successors in
// the control-flow graph.
package abs

import (
	"strconv"
	"strings"
)

// Name identifies a temporary (%t12) or a hardware register (%eax).
type Name string

// IsTemp returns true for temporaries: a '%t' prefix followed by decimal digits
func (n Name) IsTemp() bool {
	s := string(n)
	if !strings.HasPrefix(s, "%t") || len(s) == 2 {
		return false
	}
	_, err := strconv.ParseUint(s[2:], 10, 32)
	return err == nil
}

// IsReg returns true for hardware register names
func (n Name) IsReg() bool {
	return len(n) > 1 && n[0] == '%' && !n.IsTemp()
}

// TempIndex returns the numeric part of a temporary, or -1 for registers
func (n Name) TempIndex() int {
	if !n.IsTemp() {
		return -1
	}
	v, _ := strconv.Atoi(string(n[2:]))
	return v
}

// Temp builds the name of temporary i
func Temp(i int) Name {
	return Name("%t" + strconv.Itoa(i))
}

// Fact is the allocator's view of one abstract-assembly line.
type Fact struct {
	// Line is the dense, zero-based position of the instruction in its function
	Line int
	// Source is the line number the producer reported, kept for diagnostics
	Source int
	// Op is the mnemonic used by dumps ("+", "mov", "ret", "jmp", "br", ...)
	Op string
	// Uses are the names read by the instruction
	Uses []Name
	// Defs are the names written; the allocator accepts at most one
	Defs []Name
	// Consts are immediate operands, only used for printing
	Consts []string
	// Move is set iff the instruction is a pure register-to-register copy
	Move bool
	// Succs are explicit jump targets (line indices)
	Succs []int
	// Jump marks an unconditional transfer: no fall-through to Line+1
	Jump bool
	// Exit marks an instruction with no successors (return)
	Exit bool
	// LiveOut is optional producer-computed liveness, never trusted
	LiveOut []Name
}

// Def returns the single name defined on the line
func (f *Fact) Def() (Name, bool) {
	if len(f.Defs) == 0 {
		return "", false
	}
	return f.Defs[0], true
}

// MoveSource returns the copied name of a pure move
func (f *Fact) MoveSource() (Name, bool) {
	if !f.Move || len(f.Uses) != 1 {
		return "", false
	}
	return f.Uses[0], true
}

// Function is the ordered list of facts for one function.
type Function struct {
	Name string
	// Target is the register budget requested by a "//target k" directive (0 if absent)
	Target int
	Facts  []Fact
}

// Successors returns the successor line indices of line i.
func (fn *Function) Successors(i int) []int {
	f := &fn.Facts[i]
	if f.Exit {
		return nil
	}
	succs := make([]int, 0, len(f.Succs)+1)
	seen := make(map[int]bool, len(f.Succs)+1)
	for _, s := range f.Succs {
		if !seen[s] {
			seen[s] = true
			succs = append(succs, s)
		}
	}
	if !f.Jump && i+1 < len(fn.Facts) && !seen[i+1] {
		succs = append(succs, i+1)
	}
	return succs
}

// Program is a sequence of independently allocated functions.
type Program struct {
	Functions []*Function
}
