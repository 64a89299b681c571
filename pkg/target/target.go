// Package target describes the register file the allocator colors against:
// the order in which colors map to hardware registers, which registers have
// fixed calling-convention roles, and the default register budget.
package target

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Calling-convention roles with a fixed color
const (
	RoleReturn    = "return"
	RoleRemainder = "remainder"
)

// Target is a machine description.
type Target struct {
	Name string `yaml:"name"`
	// Registers lists allocatable registers in color order: Registers[c] is color c
	Registers []string `yaml:"registers"`
	// Aliases maps alternative spellings (e.g. 64-bit names) to a register in Registers
	Aliases map[string]string `yaml:"aliases,omitempty"`
	// Reserved maps calling-convention roles to the register that plays them
	Reserved map[string]string `yaml:"reserved,omitempty"`
	// Budget is the default number of colors available to the allocator
	Budget int `yaml:"budget"`
	// StackPointer is the frame register, never allocatable
	StackPointer string `yaml:"stack_pointer,omitempty"`

	colors map[string]int
}

// ErrInvalid is returned for inconsistent machine descriptions
var ErrInvalid = errors.New("invalid target description")

// X86_64 is the default target: fifteen 32-bit general purpose registers,
// %esp excluded as the stack-frame register. %eax (return value) and %edx
// (remainder of a division) hold the reserved colors 0 and 1.
var X86_64 = MustNew(Target{
	Name: "x86_64",
	Registers: []string{
		"%eax", "%edx", "%ecx", "%ebx", "%esi", "%edi",
		"%r8d", "%r9d", "%r10d", "%r11d", "%r12d", "%r13d", "%r14d", "%r15d",
		"%ebp",
	},
	Aliases: map[string]string{
		"%rax": "%eax", "%rdx": "%edx", "%rcx": "%ecx", "%rbx": "%ebx",
		"%rsi": "%esi", "%rdi": "%edi", "%rbp": "%ebp",
		"%r8": "%r8d", "%r9": "%r9d", "%r10": "%r10d", "%r11": "%r11d",
		"%r12": "%r12d", "%r13": "%r13d", "%r14": "%r14d", "%r15": "%r15d",
	},
	Reserved: map[string]string{
		RoleReturn:    "%eax",
		RoleRemainder: "%edx",
	},
	Budget:       15,
	StackPointer: "%esp",
})

// New validates a description and prepares its lookup tables
func New(t Target) (*Target, error) {
	if len(t.Registers) == 0 {
		return nil, fmt.Errorf("%w: no registers", ErrInvalid)
	}
	t.colors = make(map[string]int, len(t.Registers))
	for c, r := range t.Registers {
		if r == t.StackPointer {
			return nil, fmt.Errorf("%w: stack pointer %s listed as allocatable", ErrInvalid, r)
		}
		if _, dup := t.colors[r]; dup {
			return nil, fmt.Errorf("%w: register %s listed twice", ErrInvalid, r)
		}
		t.colors[r] = c
	}
	for alias, r := range t.Aliases {
		if _, ok := t.colors[r]; !ok {
			return nil, fmt.Errorf("%w: alias %s names unknown register %s", ErrInvalid, alias, r)
		}
		if _, clash := t.colors[alias]; clash {
			return nil, fmt.Errorf("%w: alias %s shadows a register", ErrInvalid, alias)
		}
	}
	for role, r := range t.Reserved {
		if _, ok := t.colors[t.Canonical(r)]; !ok {
			return nil, fmt.Errorf("%w: role %s uses unknown register %s", ErrInvalid, role, r)
		}
	}
	if t.Budget == 0 {
		t.Budget = len(t.Registers)
	}
	if t.Budget < 0 || t.Budget > len(t.Registers) {
		return nil, fmt.Errorf("%w: budget %d outside 0..%d", ErrInvalid, t.Budget, len(t.Registers))
	}
	return &t, nil
}

// MustNew is like New but panics on error
func MustNew(t Target) *Target {
	tgt, err := New(t)
	if err != nil {
		panic(err)
	}
	return tgt
}

// Parse reads a YAML machine description
func Parse(data []byte) (*Target, error) {
	var t Target
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return New(t)
}

// Load reads a YAML machine description from a file
func Load(path string) (*Target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tgt, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tgt, nil
}

// Canonical resolves an alias to the register it names
func (t *Target) Canonical(name string) string {
	if r, ok := t.Aliases[name]; ok {
		return r
	}
	return name
}

// Known returns true if name (or its alias) is a register of the target,
// including the stack pointer
func (t *Target) Known(name string) bool {
	if name == t.StackPointer {
		return true
	}
	_, ok := t.colors[t.Canonical(name)]
	return ok
}

// Color returns the fixed color of a hardware register
func (t *Target) Color(name string) (int, bool) {
	c, ok := t.colors[t.Canonical(name)]
	return c, ok
}

// Register returns the register that implements a color
func (t *Target) Register(color int) (string, bool) {
	if color < 0 || color >= len(t.Registers) {
		return "", false
	}
	return t.Registers[color], true
}

// Role returns the calling-convention role played by a register, if any
func (t *Target) Role(name string) (string, bool) {
	r := t.Canonical(name)
	for role, reg := range t.Reserved {
		if t.Canonical(reg) == r {
			return role, true
		}
	}
	return "", false
}

// NumRegisters returns the number of allocatable registers
func (t *Target) NumRegisters() int {
	return len(t.Registers)
}
