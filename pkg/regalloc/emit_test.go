package regalloc

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/raymyers/ralph-ra/pkg/abs"
	"github.com/raymyers/ralph-ra/pkg/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmit(t *testing.T) {
	fn := parseFunction(t, `
%t1 <- 1
%t2 <- 2
%rax <- %t1 + %t2
ret %rax
`)
	c := &Coloring{
		K:          2,
		Colors:     map[abs.Name]int{"%t1": 1, "%t2": 2, "%rax": 0},
		Precolored: NewNameSet("%rax"),
	}
	out := Emit(fn, c, target.X86_64)

	require.Len(t, out.Assignments, 4)
	assert.Equal(t, &Assignment{Temp: "%t1", Register: "%edx"}, out.Assignments[0])
	assert.Nil(t, out.Assignments[1], "spilled temporaries get no register")
	assert.Equal(t, &Assignment{Temp: "%rax", Register: "%eax"}, out.Assignments[2])
	assert.Nil(t, out.Assignments[3])
	assert.Equal(t, []abs.Name{"%t2"}, out.Spillover.Slice())
	assert.Equal(t, map[abs.Name]abs.Name{"%t1": "%edx"}, out.Registers())
}

func TestOutputWriteJSON(t *testing.T) {
	fn := readJSONFunction(t, "../../testdata/triangle.json")
	res, err := Allocate(fn, target.X86_64, Options{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, res.Output.WriteJSON(&buf, fn))

	var lines []map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &lines))
	assert.Equal(t, []map[string]string{
		{"%t1": "%eax"},
		{"%t2": SpillMarker},
		{"%t3": SpillMarker},
		{"%t4": "%eax"},
		{"%t5": "%eax"},
		{"%eax": "%eax"},
		{},
	}, lines)
}

func TestPrinterOutput(t *testing.T) {
	fn := parseFunction(t, sumSrc)
	res, err := Allocate(fn, target.X86_64, Options{Budget: 2})
	require.NoError(t, err)

	var buf bytes.Buffer
	NewPrinter(&buf).PrintOutput(fn, res.Output)
	assert.Equal(t, `func sum
L0: %t1 -> %eax
L1: %t2 -> %edx
L2: %t3 -> %eax
L3: %eax -> %eax
spillover: {}
`, buf.String())
}

func TestPrinterOutputWithSpills(t *testing.T) {
	fn := parseFunction(t, fibSrc)
	res, err := Allocate(fn, target.X86_64, Options{Budget: 1})
	require.NoError(t, err)

	var buf bytes.Buffer
	NewPrinter(&buf).PrintOutput(fn, res.Output)
	assert.Contains(t, buf.String(), "L0: %t0 -> spill\n")
	assert.Contains(t, buf.String(), "L8: %eax -> %eax\n")
	assert.Contains(t, buf.String(), "spillover: {%t0, %t1, %t2, %t3, %t4, %t5, %t6, %t7}\n")
}

func TestPrinterGraph(t *testing.T) {
	fn := parseFunction(t, sumSrc)
	res, err := Allocate(fn, target.X86_64, Options{Budget: 2})
	require.NoError(t, err)

	var buf bytes.Buffer
	NewPrinter(&buf).PrintGraph(res.Graph, res.Coloring)
	assert.Equal(t, `%t1 [0]: %t2
%t2 [1]: %t1
%t3 [0]:
%eax [0]:
`, buf.String())

	buf.Reset()
	c := Color(res.Graph, 1, Precolor(res.Graph, target.X86_64))
	NewPrinter(&buf).PrintGraph(res.Graph, c)
	assert.Contains(t, buf.String(), "%t2 [spill]: %t1\n")
}
