package regalloc

import (
	"github.com/raymyers/ralph-ra/pkg/abs"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// InterferenceGraph represents the register interference graph.
// Two names interfere if one is defined while the other is live with a
// possibly different value.
type InterferenceGraph struct {
	// Nodes are temporaries and hardware registers
	Nodes NameSet
	// Edges maps each node to its interfering neighbors
	Edges map[abs.Name]NameSet
	// Preferences maps each node to the nodes it is copied to or from
	Preferences map[abs.Name]NameSet

	// order records insertion order, used for deterministic tie-breaks
	order []abs.Name
}

// NewInterferenceGraph creates an empty interference graph
func NewInterferenceGraph() *InterferenceGraph {
	return &InterferenceGraph{
		Nodes:       NewNameSet(),
		Edges:       make(map[abs.Name]NameSet),
		Preferences: make(map[abs.Name]NameSet),
	}
}

// AddNode adds a name to the graph
func (g *InterferenceGraph) AddNode(n abs.Name) {
	if g.Nodes.Contains(n) {
		return
	}
	g.Nodes.Add(n)
	g.Edges[n] = NewNameSet()
	g.Preferences[n] = NewNameSet()
	g.order = append(g.order, n)
}

// AddEdge adds an interference edge between two names
func (g *InterferenceGraph) AddEdge(a, b abs.Name) {
	if a == b {
		return // No self-edges
	}
	g.AddNode(a)
	g.AddNode(b)
	g.Edges[a].Add(b)
	g.Edges[b].Add(a)
}

// AddPreference records that a and b are related by a move
func (g *InterferenceGraph) AddPreference(a, b abs.Name) {
	if a == b {
		return
	}
	g.AddNode(a)
	g.AddNode(b)
	g.Preferences[a].Add(b)
	g.Preferences[b].Add(a)
}

// HasEdge returns true if there is an interference edge
func (g *InterferenceGraph) HasEdge(a, b abs.Name) bool {
	if edges, ok := g.Edges[a]; ok {
		return edges.Contains(b)
	}
	return false
}

// Degree returns the number of neighbors of a node
func (g *InterferenceGraph) Degree(n abs.Name) int {
	return len(g.Edges[n])
}

// Order returns the nodes in insertion order
func (g *InterferenceGraph) Order() []abs.Name {
	out := make([]abs.Name, len(g.order))
	copy(out, g.order)
	return out
}

// Neighbors returns the neighbors of a node in insertion order
func (g *InterferenceGraph) Neighbors(n abs.Name) []abs.Name {
	edges := g.Edges[n]
	out := make([]abs.Name, 0, len(edges))
	for _, m := range g.order {
		if edges.Contains(m) {
			out = append(out, m)
		}
	}
	return out
}

// NumEdges returns the number of undirected edges
func (g *InterferenceGraph) NumEdges() int {
	total := 0
	for _, edges := range g.Edges {
		total += len(edges)
	}
	return total / 2
}

// MoveRelated returns true if the node is involved in a move
func (g *InterferenceGraph) MoveRelated(n abs.Name) bool {
	return len(g.Preferences[n]) > 0
}

// RemoveNode removes a node and all its edges
func (g *InterferenceGraph) RemoveNode(n abs.Name) {
	if !g.Nodes.Contains(n) {
		return
	}
	for m := range g.Edges[n] {
		g.Edges[m].Remove(n)
	}
	for m := range g.Preferences[n] {
		g.Preferences[m].Remove(n)
	}
	delete(g.Edges, n)
	delete(g.Preferences, n)
	g.Nodes.Remove(n)
	for i, m := range g.order {
		if m == n {
			g.order = append(g.order[:i:i], g.order[i+1:]...)
			break
		}
	}
}

// Merge folds v into u: u inherits every edge and preference of v, and v is
// removed from the graph
func (g *InterferenceGraph) Merge(u, v abs.Name) {
	for m := range g.Edges[v] {
		if m != u {
			g.AddEdge(u, m)
		}
	}
	for m := range g.Preferences[v] {
		if m != u {
			g.AddPreference(u, m)
		}
	}
	g.RemoveNode(v)
}

// Clone returns a deep copy that shares nothing with g
func (g *InterferenceGraph) Clone() *InterferenceGraph {
	c := NewInterferenceGraph()
	for _, n := range g.order {
		c.AddNode(n)
	}
	for n, edges := range g.Edges {
		for m := range edges {
			c.Edges[n].Add(m)
		}
	}
	for n, prefs := range g.Preferences {
		for m := range prefs {
			c.Preferences[n].Add(m)
		}
	}
	return c
}

// CliqueNumber returns the size of the largest clique. For the chordal
// graphs produced from single-assignment code this is the minimum number of
// colors.
func (g *InterferenceGraph) CliqueNumber() int {
	if len(g.order) == 0 {
		return 0
	}
	ids := make(map[abs.Name]int64, len(g.order))
	ug := simple.NewUndirectedGraph()
	for i, n := range g.order {
		ids[n] = int64(i)
		ug.AddNode(simple.Node(i))
	}
	for n, edges := range g.Edges {
		for m := range edges {
			if ids[n] < ids[m] {
				ug.SetEdge(ug.NewEdge(simple.Node(ids[n]), simple.Node(ids[m])))
			}
		}
	}
	best := 0
	for _, clique := range topo.BronKerbosch(ug) {
		if len(clique) > best {
			best = len(clique)
		}
	}
	return best
}

// BuildInterferenceGraph constructs the interference graph from liveness info.
// Rule: a defined name interferes with every name live after the definition,
// except itself and, for a move, the copied source.
func BuildInterferenceGraph(fn *abs.Function, live *LivenessInfo) *InterferenceGraph {
	g := NewInterferenceGraph()

	// Nodes in order of first appearance; every defined name gets one,
	// even without neighbors
	for i := range fn.Facts {
		for _, d := range fn.Facts[i].Defs {
			g.AddNode(d)
		}
		for _, u := range fn.Facts[i].Uses {
			g.AddNode(u)
		}
	}

	for i := range fn.Facts {
		f := &fn.Facts[i]
		def, ok := f.Def()
		if !ok {
			continue
		}
		src, isMove := f.MoveSource()
		for _, l := range live.LiveOut[i].Slice() {
			if l == def {
				continue
			}
			// Special case: move instruction - no interference with source
			if isMove && l == src {
				continue
			}
			g.AddEdge(def, l)
		}
		if isMove {
			g.AddPreference(def, src)
		}
	}
	return g
}
