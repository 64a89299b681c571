package regalloc

import (
	"github.com/oleiade/lane"
	"github.com/raymyers/ralph-ra/pkg/abs"
)

// Aliases maps a coalesced node to the node it was merged into
type Aliases map[abs.Name]abs.Name

// Find returns the representative of n
func (a Aliases) Find(n abs.Name) abs.Name {
	for {
		p, ok := a[n]
		if !ok {
			return n
		}
		n = p
	}
}

// Expand copies the color of every representative to the nodes merged into it
func (a Aliases) Expand(c *Coloring) {
	for n := range a {
		if col, ok := c.Colors[a.Find(n)]; ok {
			c.Colors[n] = col
		}
	}
}

// Coalesce merges move-related nodes before coloring. A move pair is merged
// when the two representatives do not interfere, are not both pre-colored,
// the pre-colored side (if any) has a color below k, and the merged node has fewer than k neighbors of significant degree
// (Briggs). Pairs failing the test are left apart, so the result never
// contains a conflict the input did not have. The input graph is untouched.
func Coalesce(g *InterferenceGraph, k int, pre map[abs.Name]int) (*InterferenceGraph, Aliases) {
	out := g.Clone()
	alias := make(Aliases)
	work := lane.NewQueue()

	pos := make(map[abs.Name]int, len(g.order))
	for i, n := range g.order {
		pos[n] = i
	}
	for _, n := range g.order {
		for _, m := range g.orderedPreferences(n) {
			if pos[n] < pos[m] {
				work.Enqueue([2]abs.Name{n, m})
			}
		}
	}

	for !work.Empty() {
		mv := work.Dequeue().([2]abs.Name)
		u, v := alias.Find(mv[0]), alias.Find(mv[1])
		if u == v {
			continue
		}
		_, uPre := pre[u]
		_, vPre := pre[v]
		if uPre && vPre {
			continue
		}
		// Pre-colored nodes always stay representatives
		if vPre {
			u, v = v, u
		}
		// A register outside the budget would drag the temporary into a spill
		if c, ok := pre[u]; ok && c >= k {
			continue
		}
		if out.HasEdge(u, v) || !conservative(out, u, v, k) {
			continue
		}
		out.Merge(u, v)
		alias[v] = u
	}
	return out, alias
}

// conservative implements the Briggs criterion: merging is safe if the
// combined node has fewer than k neighbors of degree >= k
func conservative(g *InterferenceGraph, u, v abs.Name, k int) bool {
	neighbors := g.Edges[u].Union(g.Edges[v])
	significant := 0
	for n := range neighbors {
		deg := g.Degree(n)
		if g.HasEdge(n, u) && g.HasEdge(n, v) {
			deg-- // u and v become one neighbor
		}
		if deg >= k {
			significant++
		}
	}
	return significant < k
}

func (g *InterferenceGraph) orderedPreferences(n abs.Name) []abs.Name {
	prefs := g.Preferences[n]
	out := make([]abs.Name, 0, len(prefs))
	for _, m := range g.order {
		if prefs.Contains(m) {
			out = append(out, m)
		}
	}
	return out
}
