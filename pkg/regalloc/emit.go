package regalloc

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/raymyers/ralph-ra/pkg/abs"
	"github.com/raymyers/ralph-ra/pkg/target"
)

// SpillMarker stands in for a register in JSON output of spilled temporaries
const SpillMarker = "spill"

// Assignment binds the name defined on a line to a hardware register
type Assignment struct {
	Temp     abs.Name
	Register abs.Name
}

// Output is the allocator's answer for one function: one optional assignment
// per line, and the temporaries that must live in memory.
type Output struct {
	Assignments []*Assignment
	Spillover   NameSet
}

// Emit walks the facts in line order and maps each defined name to the
// register of its color. Temporaries with the spill color get no assignment
// and are recorded in Spillover; hardware registers map to themselves.
func Emit(fn *abs.Function, c *Coloring, tgt *target.Target) *Output {
	out := &Output{
		Assignments: make([]*Assignment, len(fn.Facts)),
		Spillover:   NewNameSet(),
	}
	for i := range fn.Facts {
		d, ok := fn.Facts[i].Def()
		if !ok {
			continue
		}
		if d.IsReg() {
			out.Assignments[i] = &Assignment{Temp: d, Register: abs.Name(tgt.Canonical(string(d)))}
			continue
		}
		col, colored := c.Colors[d]
		if !colored || col >= c.K {
			out.Spillover.Add(d)
			continue
		}
		reg, _ := tgt.Register(col)
		out.Assignments[i] = &Assignment{Temp: d, Register: abs.Name(reg)}
	}
	return out
}

// Registers returns the temp -> register map implied by the assignments
func (o *Output) Registers() map[abs.Name]abs.Name {
	regs := make(map[abs.Name]abs.Name)
	for _, a := range o.Assignments {
		if a != nil && a.Temp.IsTemp() {
			regs[a.Temp] = a.Register
		}
	}
	return regs
}

// WriteJSON writes one JSON object per line: {"%t1": "%ecx"} for an
// assignment, {"%t4": "spill"} for a spilled definition, {} otherwise.
func (o *Output) WriteJSON(w io.Writer, fn *abs.Function) error {
	lines := make([]map[string]string, len(o.Assignments))
	for i, a := range o.Assignments {
		entry := map[string]string{}
		switch {
		case a != nil:
			entry[string(a.Temp)] = string(a.Register)
		case fn != nil:
			if d, ok := fn.Facts[i].Def(); ok && o.Spillover.Contains(d) {
				entry[string(d)] = SpillMarker
			}
		}
		lines[i] = entry
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(lines)
}

// Printer outputs allocation results in a line-oriented text form
type Printer struct {
	w io.Writer
}

// NewPrinter creates a new allocation printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// PrintOutput prints "Ln: temp -> register" for every defining line,
// followed by the spill set
func (p *Printer) PrintOutput(fn *abs.Function, o *Output) {
	if fn.Name != "" {
		fmt.Fprintf(p.w, "func %s\n", fn.Name)
	}
	for i, a := range o.Assignments {
		if a != nil {
			fmt.Fprintf(p.w, "L%d: %s -> %s\n", i, a.Temp, a.Register)
			continue
		}
		if d, ok := fn.Facts[i].Def(); ok {
			fmt.Fprintf(p.w, "L%d: %s -> %s\n", i, d, SpillMarker)
		}
	}
	fmt.Fprint(p.w, "spillover: {")
	for i, t := range o.Spillover.Slice() {
		if i > 0 {
			fmt.Fprint(p.w, ", ")
		}
		fmt.Fprint(p.w, t)
	}
	fmt.Fprintln(p.w, "}")
}

// PrintGraph prints each node with its color and neighbors
func (p *Printer) PrintGraph(g *InterferenceGraph, c *Coloring) {
	for _, n := range g.Order() {
		fmt.Fprintf(p.w, "%s", n)
		if c != nil {
			if col, ok := c.Colors[n]; ok {
				if c.IsSpilled(n) {
					fmt.Fprint(p.w, " [spill]")
				} else {
					fmt.Fprintf(p.w, " [%d]", col)
				}
			}
		}
		fmt.Fprint(p.w, ":")
		for _, m := range g.Neighbors(n) {
			fmt.Fprintf(p.w, " %s", m)
		}
		fmt.Fprintln(p.w)
	}
}
