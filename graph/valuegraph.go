package graph

import "sort"

// ValueGraph is a small directed-multigraph-over-values type modeled on the
// Guava ValueGraph used throughout the Java reference: every edge carries a
// slice of values (here, Edge labels), and re-adding u->v appends to that
// slice rather than replacing it.
type ValueGraph[N comparable, E any] struct {
	order []N
	index map[N]int
	nodes map[N]struct{}
	succ  map[N]map[N][]E
	pred  map[N]map[N]struct{}
}

// NewValueGraph creates an empty graph.
func NewValueGraph[N comparable, E any]() *ValueGraph[N, E] {
	return &ValueGraph[N, E]{
		index: make(map[N]int),
		nodes: make(map[N]struct{}),
		succ:  make(map[N]map[N][]E),
		pred:  make(map[N]map[N]struct{}),
	}
}

// AddNode registers n with no edges, if not already present.
func (g *ValueGraph[N, E]) AddNode(n N) {
	if _, ok := g.nodes[n]; ok {
		return
	}
	g.nodes[n] = struct{}{}
	g.index[n] = len(g.order)
	g.order = append(g.order, n)
}

// byInsertionOrder sorts ns by the order its elements were first added to g,
// so that callers folding Successors/Predecessors/Edges into anything
// order-sensitive (constraint IDs, cycle search) see a fixed sequence across
// repeated calls rather than Go's randomized map iteration order.
func (g *ValueGraph[N, E]) byInsertionOrder(ns []N) []N {
	sort.Slice(ns, func(i, j int) bool { return g.index[ns[i]] < g.index[ns[j]] })
	return ns
}

// AddEdgeValue appends value to the edge list for u->v, creating both nodes
// and the edge if necessary.
func (g *ValueGraph[N, E]) AddEdgeValue(u, v N, value E) {
	g.AddNode(u)
	g.AddNode(v)

	if g.succ[u] == nil {
		g.succ[u] = make(map[N][]E)
	}
	g.succ[u][v] = append(g.succ[u][v], value)

	if g.pred[v] == nil {
		g.pred[v] = make(map[N]struct{})
	}
	g.pred[v][u] = struct{}{}
}

// HasEdgeConnecting reports whether u->v exists.
func (g *ValueGraph[N, E]) HasEdgeConnecting(u, v N) bool {
	m, ok := g.succ[u]
	if !ok {
		return false
	}
	_, ok = m[v]
	return ok
}

// EdgeValue returns the edge labels for u->v.
func (g *ValueGraph[N, E]) EdgeValue(u, v N) ([]E, bool) {
	m, ok := g.succ[u]
	if !ok {
		return nil, false
	}
	e, ok := m[v]
	return e, ok
}

// Successors returns every node v such that u->v exists, in the order the
// nodes were first added to g.
func (g *ValueGraph[N, E]) Successors(u N) []N {
	m, ok := g.succ[u]
	if !ok {
		return nil
	}
	out := make([]N, 0, len(m))
	for v := range m {
		out = append(out, v)
	}
	return g.byInsertionOrder(out)
}

// Predecessors returns every node u such that u->v exists, in the order the
// nodes were first added to g.
func (g *ValueGraph[N, E]) Predecessors(v N) []N {
	m, ok := g.pred[v]
	if !ok {
		return nil
	}
	out := make([]N, 0, len(m))
	for u := range m {
		out = append(out, u)
	}
	return g.byInsertionOrder(out)
}

// Nodes returns every node, in insertion order.
func (g *ValueGraph[N, E]) Nodes() []N {
	return g.order
}

// EdgePair is an ordered (source, target) node pair.
type EdgePair[N comparable] struct {
	Source N
	Target N
}

// Edges returns every (source, target) pair with at least one edge value,
// ordered by source then target insertion order.
func (g *ValueGraph[N, E]) Edges() []EdgePair[N] {
	var out []EdgePair[N]
	for _, u := range g.order {
		for _, v := range g.Successors(u) {
			out = append(out, EdgePair[N]{Source: u, Target: v})
		}
	}
	return out
}

// InDegree returns the number of distinct predecessors of n.
func (g *ValueGraph[N, E]) InDegree(n N) int {
	return len(g.pred[n])
}
