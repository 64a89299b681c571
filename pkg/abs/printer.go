package abs

import (
	"fmt"
	"io"
	"strings"
)

// Printer outputs instruction facts in the textual form accepted by Parse
type Printer struct {
	w io.Writer
}

// NewPrinter creates a new abstract-assembly printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// PrintProgram prints every function, separated by blank lines
func (p *Printer) PrintProgram(prog *Program) {
	for i, fn := range prog.Functions {
		p.PrintFunction(fn)
		if i < len(prog.Functions)-1 {
			fmt.Fprintln(p.w)
		}
	}
}

// PrintFunction prints one function, one "Ln: ..." line per fact
func (p *Printer) PrintFunction(fn *Function) {
	if fn.Target > 0 {
		fmt.Fprintf(p.w, "//target %d\n", fn.Target)
	}
	if fn.Name != "" {
		fmt.Fprintf(p.w, "func %s\n", fn.Name)
	}
	for i := range fn.Facts {
		fmt.Fprintf(p.w, "L%d: %s\n", i, FormatFact(&fn.Facts[i]))
	}
}

// PrintLiveness prints the live-in and live-out sets next to each line
func (p *Printer) PrintLiveness(fn *Function, in, out [][]Name) {
	for i := range fn.Facts {
		fmt.Fprintf(p.w, "L%d: %-28s in=%s out=%s\n",
			i, FormatFact(&fn.Facts[i]), formatNames(in[i]), formatNames(out[i]))
	}
}

// FormatFact renders a single fact as "dest <- use1 OP use2"
func FormatFact(f *Fact) string {
	var sb strings.Builder
	operands := make([]string, 0, len(f.Uses)+len(f.Consts))
	for _, u := range f.Uses {
		operands = append(operands, string(u))
	}
	operands = append(operands, f.Consts...)

	if len(f.Defs) > 0 {
		defs := make([]string, len(f.Defs))
		for i, d := range f.Defs {
			defs[i] = string(d)
		}
		sb.WriteString(strings.Join(defs, ", "))
		sb.WriteString(" <- ")
		op := f.Op
		if op == "" {
			// facts read from JSON may carry no mnemonic
			op = "op"
		}
		switch {
		case f.Move, f.Op == "const", f.Op == "" && len(operands) < 2:
			sb.WriteString(strings.Join(operands, " "))
		case len(operands) == 2:
			fmt.Fprintf(&sb, "%s %s %s", operands[0], op, operands[1])
		default:
			sb.WriteString(op)
			for _, o := range operands {
				sb.WriteByte(' ')
				sb.WriteString(o)
			}
		}
		return sb.String()
	}

	op := f.Op
	if op == "" {
		op = "nop"
	}
	sb.WriteString(op)
	for _, o := range operands {
		sb.WriteByte(' ')
		sb.WriteString(o)
	}
	for _, s := range f.Succs {
		fmt.Fprintf(&sb, " L%d", s)
	}
	return sb.String()
}

func formatNames(names []Name) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = string(n)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
