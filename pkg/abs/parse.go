package abs

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseError reports a malformed line of textual abstract assembly
type ParseError struct {
	Line int // 1-based line in the input text
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// pendingJump is a label reference resolved once the whole function is read
type pendingJump struct {
	fact  int
	label int
	line  int
}

type textParser struct {
	prog    *Program
	fn      *Function
	labels  map[int]int // source label -> fact index
	pending []pendingJump
	target  int
}

// Parse reads the textual form printed by Printer:
//
//	//target 2
//	func fib
//	L0: %t0 <- 0
//	L1: %t1 <- %t0 + 1
//	L2: br %t1 L0
//	L3: %eax <- %t1
//	L4: ret %eax
//
// A "func name" line starts a new function; without one, a single anonymous
// function is produced. "Ln:" labels are optional and only needed as jump
// targets. Comments start with '#'.
func Parse(r io.Reader) (*Program, error) {
	p := &textParser{prog: &Program{}}
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		if err := p.line(lineNo, sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if err := p.finish(); err != nil {
		return nil, err
	}
	return p.prog, nil
}

// ParseString is a convenience wrapper around Parse
func ParseString(s string) (*Program, error) {
	return Parse(strings.NewReader(s))
}

func (p *textParser) line(lineNo int, text string) error {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "//target") {
		k, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(text, "//target")))
		if err != nil || k < 0 {
			return &ParseError{Line: lineNo, Msg: fmt.Sprintf("bad target directive %q", text)}
		}
		p.target = k
		if p.fn != nil {
			p.fn.Target = k
		}
		return nil
	}
	if i := strings.IndexByte(text, '#'); i >= 0 {
		text = strings.TrimSpace(text[:i])
	}
	if text == "" {
		return nil
	}

	if strings.HasPrefix(text, "func ") {
		if err := p.finish(); err != nil {
			return err
		}
		p.begin(strings.TrimSpace(strings.TrimPrefix(text, "func ")))
		return nil
	}
	if p.fn == nil {
		p.begin("")
	}

	idx := len(p.fn.Facts)
	fact := Fact{Line: idx, Source: idx}
	if colon := strings.IndexByte(text, ':'); colon > 0 && text[0] == 'L' {
		label, err := strconv.Atoi(text[1:colon])
		if err != nil {
			return &ParseError{Line: lineNo, Msg: fmt.Sprintf("bad label %q", text[:colon])}
		}
		if _, dup := p.labels[label]; dup {
			return &ParseError{Line: lineNo, Msg: fmt.Sprintf("duplicate label L%d", label)}
		}
		p.labels[label] = idx
		fact.Source = label
		text = strings.TrimSpace(text[colon+1:])
	}

	if err := p.instruction(lineNo, &fact, text); err != nil {
		return err
	}
	p.fn.Facts = append(p.fn.Facts, fact)
	return nil
}

func (p *textParser) begin(name string) {
	p.fn = &Function{Name: name, Target: p.target}
	p.labels = make(map[int]int)
	p.pending = nil
}

func (p *textParser) instruction(lineNo int, fact *Fact, text string) error {
	if arrow := strings.Index(text, "<-"); arrow >= 0 {
		for _, d := range strings.Split(text[:arrow], ",") {
			d = strings.TrimSpace(d)
			if !isName(d) {
				return &ParseError{Line: lineNo, Msg: fmt.Sprintf("bad destination %q", d)}
			}
			fact.Defs = append(fact.Defs, Name(d))
		}
		return p.rhs(lineNo, fact, strings.Fields(text[arrow+2:]))
	}

	fields := strings.Fields(text)
	fact.Op = fields[0]
	switch fields[0] {
	case "ret":
		fact.Exit = true
		return p.operands(lineNo, fact, fields[1:])
	case "jmp":
		if len(fields) != 2 {
			return &ParseError{Line: lineNo, Msg: "jmp takes exactly one label"}
		}
		fact.Jump = true
		return p.jump(lineNo, fields[1])
	case "br":
		if len(fields) < 2 {
			return &ParseError{Line: lineNo, Msg: "br needs a label"}
		}
		if err := p.operands(lineNo, fact, fields[1:len(fields)-1]); err != nil {
			return err
		}
		return p.jump(lineNo, fields[len(fields)-1])
	default:
		return p.operands(lineNo, fact, fields[1:])
	}
}

// rhs decodes the right-hand side of an assignment
func (p *textParser) rhs(lineNo int, fact *Fact, fields []string) error {
	switch len(fields) {
	case 0:
		return &ParseError{Line: lineNo, Msg: "empty right-hand side"}
	case 1:
		if isName(fields[0]) {
			fact.Op = "mov"
			fact.Move = true
		} else {
			fact.Op = "const"
		}
		return p.operands(lineNo, fact, fields)
	case 2:
		if err := checkOperator(lineNo, fields[0]); err != nil {
			return err
		}
		fact.Op = fields[0]
		return p.operands(lineNo, fact, fields[1:])
	case 3:
		if err := checkOperator(lineNo, fields[1]); err != nil {
			return err
		}
		fact.Op = fields[1]
		return p.operands(lineNo, fact, []string{fields[0], fields[2]})
	default:
		return &ParseError{Line: lineNo, Msg: fmt.Sprintf("cannot decode %q", strings.Join(fields, " "))}
	}
}

// checkOperator rejects an operand standing where the operator belongs,
// as in "%t3 <- %t1 %t2"
func checkOperator(lineNo int, op string) error {
	if isName(op) || isConst(op) {
		return &ParseError{Line: lineNo, Msg: fmt.Sprintf("expected an operator, found %q", op)}
	}
	return nil
}

func (p *textParser) operands(lineNo int, fact *Fact, fields []string) error {
	for _, f := range fields {
		switch {
		case isName(f):
			fact.Uses = appendUnique(fact.Uses, Name(f))
		case isConst(f):
			fact.Consts = append(fact.Consts, f)
		default:
			return &ParseError{Line: lineNo, Msg: fmt.Sprintf("bad operand %q", f)}
		}
	}
	return nil
}

func (p *textParser) jump(lineNo int, label string) error {
	if len(label) < 2 || label[0] != 'L' {
		return &ParseError{Line: lineNo, Msg: fmt.Sprintf("bad label %q", label)}
	}
	n, err := strconv.Atoi(label[1:])
	if err != nil {
		return &ParseError{Line: lineNo, Msg: fmt.Sprintf("bad label %q", label)}
	}
	p.pending = append(p.pending, pendingJump{fact: len(p.fn.Facts), label: n, line: lineNo})
	return nil
}

// finish resolves jump labels and appends the current function
func (p *textParser) finish() error {
	if p.fn == nil {
		return nil
	}
	for _, j := range p.pending {
		idx, ok := p.labels[j.label]
		if !ok {
			return &ParseError{Line: j.line, Msg: fmt.Sprintf("undefined label L%d", j.label)}
		}
		p.fn.Facts[j.fact].Succs = append(p.fn.Facts[j.fact].Succs, idx)
	}
	p.prog.Functions = append(p.prog.Functions, p.fn)
	p.fn = nil
	return nil
}

func isName(s string) bool {
	if len(s) < 2 || s[0] != '%' {
		return false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_') {
			return false
		}
	}
	return true
}

func isConst(s string) bool {
	if s == "" {
		return false
	}
	if s[0] == '$' {
		s = s[1:]
	}
	_, err := strconv.ParseInt(s, 0, 64)
	return err == nil
}

func appendUnique(names []Name, n Name) []Name {
	for _, m := range names {
		if m == n {
			return names
		}
	}
	return append(names, n)
}
