package regalloc

import (
	"testing"

	"github.com/raymyers/ralph-ra/pkg/abs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildGraph(t *testing.T, src string) (*abs.Function, *InterferenceGraph) {
	t.Helper()
	fn := parseFunction(t, src)
	return fn, BuildInterferenceGraph(fn, AnalyzeLiveness(fn))
}

func TestBuildInterferenceGraphSum(t *testing.T) {
	_, g := buildGraph(t, sumSrc)

	// %t1 is live when %t2 is defined
	assert.True(t, g.HasEdge("%t1", "%t2"))
	assert.True(t, g.HasEdge("%t2", "%t1"))
	assert.Equal(t, 1, g.NumEdges())

	// Every defined name is a node, even without neighbors
	assert.Equal(t, []abs.Name{"%t1", "%t2", "%t3", "%eax"}, g.Order())
	assert.Equal(t, 0, g.Degree("%t3"))
	assert.Equal(t, 0, g.Degree("%eax"))

	assert.True(t, g.MoveRelated("%t3"))
	assert.True(t, g.MoveRelated("%eax"))
	assert.False(t, g.MoveRelated("%t1"))
	assert.Equal(t, 2, g.CliqueNumber())
}

func TestMoveDoesNotInterfereWithSource(t *testing.T) {
	_, g := buildGraph(t, `
%t1 <- 1
%t2 <- %t1
%t3 <- %t1 + %t2
ret %t3
`)
	assert.False(t, g.HasEdge("%t1", "%t2"), "a copy holds the same value as its source")
	assert.True(t, g.Preferences["%t2"].Contains("%t1"))

	_, g = buildGraph(t, `
%t1 <- 1
%t2 <- neg %t1
%t3 <- %t1 + %t2
ret %t3
`)
	assert.True(t, g.HasEdge("%t1", "%t2"), "a computed value differs from its operand")
	assert.Empty(t, g.Preferences["%t2"])
}

func TestMoveSourceRedefinedInterferes(t *testing.T) {
	_, g := buildGraph(t, `
%t1 <- 1
%t2 <- %t1
%t1 <- 5
%t3 <- %t1 + %t2
ret %t3
`)
	assert.True(t, g.HasEdge("%t1", "%t2"))
	assert.True(t, g.Preferences["%t1"].Contains("%t2"))
}

func TestInterferenceWithPrecoloredRegister(t *testing.T) {
	_, g := buildGraph(t, `
L0: %t0 <- 17
L1: %t1 <- 5
L2: %t2 <- 3
L3: %edx <- %t0 % %t1
L4: %t3 <- %edx + %t2
L5: %eax <- %t3
L6: ret %eax
`)
	assert.True(t, g.HasEdge("%edx", "%t2"))
	assert.False(t, g.HasEdge("%edx", "%t0"))
	assert.True(t, g.HasEdge("%t0", "%t1"))
	assert.True(t, g.HasEdge("%t0", "%t2"))
	assert.True(t, g.HasEdge("%t1", "%t2"))
	assert.Equal(t, []abs.Name{"%t2"}, g.Neighbors("%edx"))
	assert.Equal(t, 3, g.CliqueNumber())
}

func TestLoopInterference(t *testing.T) {
	_, g := buildGraph(t, loopSrc)
	assert.True(t, g.HasEdge("%t0", "%t1"))
	assert.Equal(t, 1, g.NumEdges())
}

func TestInterferenceGraphOperations(t *testing.T) {
	t.Run("no self edges", func(t *testing.T) {
		g := NewInterferenceGraph()
		g.AddEdge("%t1", "%t1")
		g.AddPreference("%t1", "%t1")
		assert.Equal(t, 0, g.NumEdges())
		assert.False(t, g.MoveRelated("%t1"))
	})

	t.Run("remove node", func(t *testing.T) {
		g := NewInterferenceGraph()
		g.AddEdge("%t1", "%t2")
		g.AddEdge("%t2", "%t3")
		g.AddPreference("%t2", "%t4")
		g.RemoveNode("%t2")

		assert.False(t, g.Nodes.Contains("%t2"))
		assert.Equal(t, 0, g.NumEdges())
		assert.False(t, g.MoveRelated("%t4"))
		assert.Equal(t, []abs.Name{"%t1", "%t3", "%t4"}, g.Order())
	})

	t.Run("merge", func(t *testing.T) {
		g := NewInterferenceGraph()
		g.AddEdge("%t1", "%t3")
		g.AddEdge("%t2", "%t4")
		g.AddPreference("%t1", "%t2")
		g.AddPreference("%t2", "%t5")
		g.Merge("%t1", "%t2")

		assert.False(t, g.Nodes.Contains("%t2"))
		assert.Equal(t, []abs.Name{"%t3", "%t4"}, g.Neighbors("%t1"))
		assert.True(t, g.HasEdge("%t4", "%t1"))
		assert.True(t, g.Preferences["%t1"].Contains("%t5"))
		assert.False(t, g.Preferences["%t1"].Contains("%t2"))
	})

	t.Run("clone is independent", func(t *testing.T) {
		g := NewInterferenceGraph()
		g.AddEdge("%t1", "%t2")
		c := g.Clone()
		c.AddEdge("%t1", "%t3")
		c.RemoveNode("%t2")

		assert.True(t, g.HasEdge("%t1", "%t2"))
		assert.False(t, g.Nodes.Contains("%t3"))
		assert.Equal(t, []abs.Name{"%t1", "%t2"}, g.Order())
	})
}

func TestCliqueNumber(t *testing.T) {
	tests := []struct {
		name  string
		edges [][2]abs.Name
		nodes []abs.Name
		want  int
	}{
		{"empty", nil, nil, 0},
		{"isolated", nil, []abs.Name{"%t1", "%t2"}, 1},
		{"chain", [][2]abs.Name{{"%t1", "%t2"}, {"%t2", "%t3"}, {"%t3", "%t4"}}, nil, 2},
		{"triangle", [][2]abs.Name{{"%t1", "%t2"}, {"%t2", "%t3"}, {"%t1", "%t3"}}, nil, 3},
		{"k4", [][2]abs.Name{
			{"%t1", "%t2"}, {"%t1", "%t3"}, {"%t1", "%t4"},
			{"%t2", "%t3"}, {"%t2", "%t4"}, {"%t3", "%t4"},
		}, nil, 4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := NewInterferenceGraph()
			for _, n := range tc.nodes {
				g.AddNode(n)
			}
			for _, e := range tc.edges {
				g.AddEdge(e[0], e[1])
			}
			require.Equal(t, tc.want, g.CliqueNumber())
		})
	}
}
