package regalloc

import (
	"github.com/oleiade/lane"
	"github.com/raymyers/ralph-ra/pkg/abs"
	"github.com/raymyers/ralph-ra/pkg/target"
)

// Coloring is the result of one coloring attempt with budget K.
// Colors 0..K-1 are registers; K is the spill color.
type Coloring struct {
	K      int
	Colors map[abs.Name]int
	// Precolored are hardware registers whose color was fixed up front
	Precolored NameSet
	// Order is the sequence in which nodes were colored (reverse PEO)
	Order []abs.Name
}

// IsSpilled returns true if n did not receive a register
func (c *Coloring) IsSpilled(n abs.Name) bool {
	col, ok := c.Colors[n]
	return ok && col >= c.K && !c.Precolored.Contains(n)
}

// Spilled returns the spilled nodes in deterministic order
func (c *Coloring) Spilled() []abs.Name {
	s := NewNameSet()
	for n := range c.Colors {
		if c.IsSpilled(n) {
			s.Add(n)
		}
	}
	return s.Slice()
}

// Used returns the number of distinct register colors in use
func (c *Coloring) Used() int {
	seen := make(map[int]bool)
	for n, col := range c.Colors {
		if col < c.K || c.Precolored.Contains(n) {
			seen[col] = true
		}
	}
	return len(seen)
}

// Precolor returns the fixed colors of the hardware registers present in g
func Precolor(g *InterferenceGraph, tgt *target.Target) map[abs.Name]int {
	pre := make(map[abs.Name]int)
	for _, n := range g.order {
		if !n.IsReg() {
			continue
		}
		if c, ok := tgt.Color(string(n)); ok {
			pre[n] = c
		}
	}
	return pre
}

// EliminationOrder computes a perfect elimination ordering of a chordal
// graph by maximum cardinality search. Pre-colored nodes are numbered first;
// afterwards the unnumbered node with the most numbered neighbors is taken,
// ties going to the earliest inserted node. The search visits nodes in
// reverse elimination order, so visits are stacked and popped.
func EliminationOrder(g *InterferenceGraph, pre map[abs.Name]int) []abs.Name {
	weight := make(map[abs.Name]int, len(g.order))
	numbered := NewNameSet()
	visits := lane.NewStack()

	visit := func(n abs.Name) {
		numbered.Add(n)
		visits.Push(n)
		for m := range g.Edges[n] {
			if !numbered.Contains(m) {
				weight[m]++
			}
		}
	}

	for _, n := range g.order {
		if _, ok := pre[n]; ok {
			visit(n)
		}
	}
	for len(numbered) < len(g.order) {
		var best abs.Name
		bestWeight := -1
		for _, n := range g.order {
			if numbered.Contains(n) {
				continue
			}
			if weight[n] > bestWeight {
				best, bestWeight = n, weight[n]
			}
		}
		visit(best)
	}

	peo := make([]abs.Name, 0, len(g.order))
	for !visits.Empty() {
		peo = append(peo, visits.Pop().(abs.Name))
	}
	return peo
}

// Color assigns colors 0..k-1 greedily in reverse elimination order, each node
// taking the smallest color unused by its colored neighbors. Nodes with no
// free color get the spill color k. Pre-colored nodes keep their colors.
// The graph is not modified.
func Color(g *InterferenceGraph, k int, pre map[abs.Name]int) *Coloring {
	c := &Coloring{
		K:          k,
		Colors:     make(map[abs.Name]int, len(g.order)),
		Precolored: NewNameSet(),
	}
	for n, col := range pre {
		if g.Nodes.Contains(n) {
			c.Colors[n] = col
			c.Precolored.Add(n)
		}
	}

	peo := EliminationOrder(g, pre)
	used := make([]bool, k)
	for i := len(peo) - 1; i >= 0; i-- {
		n := peo[i]
		c.Order = append(c.Order, n)
		if c.Precolored.Contains(n) {
			continue
		}
		for j := range used {
			used[j] = false
		}
		for m := range g.Edges[n] {
			if col, ok := c.Colors[m]; ok && col < k {
				used[col] = true
			}
		}
		color := k
		for j := 0; j < k; j++ {
			if !used[j] {
				color = j
				break
			}
		}
		c.Colors[n] = color
	}
	return c
}
