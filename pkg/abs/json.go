package abs

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// jsonFact mirrors one entry of the liveness-file format:
//
//	//target 8
//	[
//	  {"Uses": ["%t9", "%t10"], "Defines": ["%t11"], "Live_out": ["%t11"], "Move": false, "Line": 30},
//	  {"Uses": ["%t11"], "Defines": ["%eax"], "Live_out": [], "Move": true, "Line": 31}
//	]
//
// Succ, Jump, Exit and Op extend the format with control flow; files without
// them describe straight-line code.
type jsonFact struct {
	Uses    []string `json:"Uses"`
	Defines []string `json:"Defines"`
	LiveOut []string `json:"Live_out,omitempty"`
	Move    bool     `json:"Move"`
	Line    int      `json:"Line"`
	Succ    []int    `json:"Succ,omitempty"`
	Jump    bool     `json:"Jump,omitempty"`
	Exit    bool     `json:"Exit,omitempty"`
	Op      string   `json:"Op,omitempty"`
}

// ReadJSON decodes a function from the liveness-file format. Line fields are
// renumbered densely in list order; Succ entries refer to the producer's Line
// numbers and are translated accordingly.
func ReadJSON(r io.Reader) (*Function, error) {
	br := bufio.NewReader(r)
	fn := &Function{}

	head, err := br.Peek(2)
	if err == nil && string(head) == "//" {
		directive, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		directive = strings.TrimSpace(directive)
		if !strings.HasPrefix(directive, "//target") {
			return nil, fmt.Errorf("unknown directive %q", directive)
		}
		k, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(directive, "//target")))
		if err != nil || k < 0 {
			return nil, fmt.Errorf("bad target directive %q", directive)
		}
		fn.Target = k
	}

	data, err := io.ReadAll(br)
	if err != nil {
		return nil, err
	}
	var raw []jsonFact
	if err := json.Unmarshal(bytes.TrimSpace(data), &raw); err != nil {
		return nil, fmt.Errorf("decoding facts: %w", err)
	}

	index := make(map[int]int, len(raw))
	for i, jf := range raw {
		if _, dup := index[jf.Line]; dup {
			return nil, fmt.Errorf("entry %d: duplicate Line %d", i, jf.Line)
		}
		index[jf.Line] = i
	}

	fn.Facts = make([]Fact, len(raw))
	for i, jf := range raw {
		f := Fact{
			Line:   i,
			Source: jf.Line,
			Op:     jf.Op,
			Uses:   toNames(jf.Uses),
			Defs:   toNames(jf.Defines),
			Move:   jf.Move,
			Jump:   jf.Jump,
			Exit:   jf.Exit,
		}
		if jf.LiveOut != nil {
			// An explicit empty list still states that nothing is live
			f.LiveOut = append([]Name{}, toNames(jf.LiveOut)...)
		}
		if f.Op == "" && f.Move {
			f.Op = "mov"
		}
		for _, s := range jf.Succ {
			idx, ok := index[s]
			if !ok {
				return nil, fmt.Errorf("line %d: successor %d is not a line of this function", jf.Line, s)
			}
			f.Succs = append(f.Succs, idx)
		}
		fn.Facts[i] = f
	}
	return fn, nil
}

// WriteJSON encodes a function in the liveness-file format
func WriteJSON(w io.Writer, fn *Function) error {
	if fn.Target > 0 {
		if _, err := fmt.Fprintf(w, "//target %d\n", fn.Target); err != nil {
			return err
		}
	}
	raw := make([]jsonFact, len(fn.Facts))
	for i, f := range fn.Facts {
		jf := jsonFact{
			Uses:    fromNames(f.Uses),
			Defines: fromNames(f.Defs),
			LiveOut: fromNames(f.LiveOut),
			Move:    f.Move,
			Line:    i,
			Jump:    f.Jump,
			Exit:    f.Exit,
		}
		if f.Op != "mov" {
			jf.Op = f.Op
		}
		jf.Succ = append(jf.Succ, f.Succs...)
		raw[i] = jf
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(raw)
}

func toNames(ss []string) []Name {
	if len(ss) == 0 {
		return nil
	}
	names := make([]Name, len(ss))
	for i, s := range ss {
		names[i] = Name(s)
	}
	return names
}

func fromNames(names []Name) []string {
	ss := make([]string, len(names))
	for i, n := range names {
		ss[i] = string(n)
	}
	return ss
}
