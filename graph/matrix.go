package graph

import (
	"strings"

	"github.com/RoaringBitmap/roaring"
)

// MatrixGraph is a dense reachability-oriented graph representation: nodes
// are mapped to small integers and each node's successor set is stored as a
// compressed bitmap row (spec.md §4.3). Built once from a ValueGraph, it
// supports the composition/union/reachability operations the pruner and
// solver need without ever walking the original graph's maps again.
type MatrixGraph[N comparable] struct {
	index     map[N]int
	nodes     []N
	adjacency []*roaring.Bitmap
}

func newMatrix[N comparable](nodes []N, index map[N]int) *MatrixGraph[N] {
	adjacency := make([]*roaring.Bitmap, len(nodes))
	for i := range adjacency {
		adjacency[i] = roaring.New()
	}
	return &MatrixGraph[N]{index: index, nodes: nodes, adjacency: adjacency}
}

// FromValueGraph builds a MatrixGraph from g. Nodes are ordered
// topologically when g is acyclic, which keeps later reachability BFS
// passes cheap; when g has a cycle, nodes keep g's insertion order.
func FromValueGraph[N comparable, E any](g *ValueGraph[N, E]) *MatrixGraph[N] {
	nodes, index := orderNodes(g)
	m := newMatrix(nodes, index)
	for _, e := range g.Edges() {
		m.PutEdge(e.Source, e.Target)
	}
	return m
}

// FromValueGraphWithNodeMap is FromValueGraph but reuses an existing node
// index, so two graphs built this way can be combined (unioned, composed)
// with Composition/Union.
func FromValueGraphWithNodeMap[N comparable, E any](g *ValueGraph[N, E], index map[N]int, nodes []N) *MatrixGraph[N] {
	m := newMatrix(nodes, index)
	for _, e := range g.Edges() {
		m.PutEdge(e.Source, e.Target)
	}
	return m
}

func orderNodes[N comparable, E any](g *ValueGraph[N, E]) ([]N, map[N]int) {
	nodes := g.Nodes()
	if order, ok := topoSortValueGraph(g); ok {
		nodes = order
	}
	index := make(map[N]int, len(nodes))
	for i, n := range nodes {
		index[n] = i
	}
	return nodes, index
}

func topoSortValueGraph[N comparable, E any](g *ValueGraph[N, E]) ([]N, bool) {
	nodes := g.Nodes()
	inDegree := make(map[N]int, len(nodes))
	for _, n := range nodes {
		inDegree[n] = g.InDegree(n)
	}

	queue := make([]N, 0, len(nodes))
	for _, n := range nodes {
		if inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}

	for i := 0; i < len(queue); i++ {
		for _, s := range g.Successors(queue[i]) {
			inDegree[s]--
			if inDegree[s] == 0 {
				queue = append(queue, s)
			}
		}
	}

	if len(queue) < len(nodes) {
		return nil, false
	}
	return queue, true
}

// OfNodes returns an empty MatrixGraph sharing g's node index, mirroring
// the Java MatrixGraph.ofNodes helper used to seed reduceEdges' output.
func OfNodes[N comparable](g *MatrixGraph[N]) *MatrixGraph[N] {
	return newMatrix(g.nodes, g.index)
}

// NodeMap exposes the node->index assignment so a second graph can be built
// over the same index space.
func (m *MatrixGraph[N]) NodeMap() (map[N]int, []N) {
	return m.index, m.nodes
}

// Nodes returns every node known to the graph.
func (m *MatrixGraph[N]) Nodes() []N {
	return m.nodes
}

// PutEdge adds u->v. Returns false if the edge already existed.
func (m *MatrixGraph[N]) PutEdge(u, v N) bool {
	i, j := m.index[u], m.index[v]
	had := m.adjacency[i].Contains(uint32(j))
	m.adjacency[i].Add(uint32(j))
	return !had
}

// HasEdgeConnecting reports whether u->v exists.
func (m *MatrixGraph[N]) HasEdgeConnecting(u, v N) bool {
	i, ok := m.index[u]
	if !ok {
		return false
	}
	j, ok := m.index[v]
	if !ok {
		return false
	}
	return m.adjacency[i].Contains(uint32(j))
}

// Successors returns every node reachable from n via a single edge.
func (m *MatrixGraph[N]) Successors(n N) []N {
	i, ok := m.index[n]
	if !ok {
		return nil
	}
	it := m.adjacency[i].Iterator()
	var out []N
	for it.HasNext() {
		out = append(out, m.nodes[it.Next()])
	}
	return out
}

// Edges returns every (source, target) pair with an edge between them.
func (m *MatrixGraph[N]) Edges() []EdgePair[N] {
	var out []EdgePair[N]
	for i, row := range m.adjacency {
		it := row.Iterator()
		for it.HasNext() {
			out = append(out, EdgePair[N]{Source: m.nodes[i], Target: m.nodes[it.Next()]})
		}
	}
	return out
}

// NonZeroElements returns the total number of edges in the graph.
func (m *MatrixGraph[N]) NonZeroElements() uint64 {
	var n uint64
	for _, row := range m.adjacency {
		n += row.GetCardinality()
	}
	return n
}

// Composition returns a new graph containing p->r whenever p->q is in m and
// q->r is in other, for some q (matrix multiplication over boolean
// adjacency). m and other must share the same node index.
func (m *MatrixGraph[N]) Composition(other *MatrixGraph[N]) *MatrixGraph[N] {
	result := newMatrix(m.nodes, m.index)
	for i, row := range m.adjacency {
		it := row.Iterator()
		for it.HasNext() {
			j := it.Next()
			result.adjacency[i].Or(other.adjacency[j])
		}
	}
	return result
}

// Union returns the edge-wise union of m and other, which must share the
// same node index.
func (m *MatrixGraph[N]) Union(other *MatrixGraph[N]) *MatrixGraph[N] {
	result := newMatrix(m.nodes, m.index)
	for i := range m.adjacency {
		result.adjacency[i] = roaring.Or(m.adjacency[i], other.adjacency[i])
	}
	return result
}

// topoSortIDs performs Kahn's algorithm over the integer-indexed adjacency,
// returning the topological order of node ids, or ok=false if m has a
// cycle.
func (m *MatrixGraph[N]) topoSortIDs() ([]int, bool) {
	n := len(m.adjacency)
	inDegree := make([]int, n)
	for _, row := range m.adjacency {
		it := row.Iterator()
		for it.HasNext() {
			inDegree[it.Next()]++
		}
	}

	order := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if inDegree[i] == 0 {
			order = append(order, i)
		}
	}

	for i := 0; i < len(order); i++ {
		it := m.adjacency[order[i]].Iterator()
		for it.HasNext() {
			j := it.Next()
			inDegree[j]--
			if inDegree[j] == 0 {
				order = append(order, int(j))
			}
		}
	}

	if len(order) < n {
		return nil, false
	}
	return order, true
}

// TopologicalSort returns m's nodes in topological order, or ok=false if m
// has a cycle.
func (m *MatrixGraph[N]) TopologicalSort() ([]N, bool) {
	order, ok := m.topoSortIDs()
	if !ok {
		return nil, false
	}
	out := make([]N, len(order))
	for i, id := range order {
		out[i] = m.nodes[id]
	}
	return out, true
}

// HasLoops reports whether m contains a cycle.
func (m *MatrixGraph[N]) HasLoops() bool {
	_, ok := m.topoSortIDs()
	return !ok
}

// bfsWithNoCycle computes, for every node, the set of nodes reachable via
// one or more edges, using a reverse-topological dynamic program: node n's
// reachable set is the union of its direct successors' own reachable sets,
// which is well defined once every successor (later in topo order) has
// already been processed.
func (m *MatrixGraph[N]) bfsWithNoCycle(topoOrder []int) *MatrixGraph[N] {
	result := newMatrix(m.nodes, m.index)
	for i := len(topoOrder) - 1; i >= 0; i-- {
		n := topoOrder[i]
		it := m.adjacency[n].Iterator()
		for it.HasNext() {
			j := it.Next()
			result.adjacency[n].Add(uint32(j))
			result.adjacency[n].Or(result.adjacency[j])
		}
	}
	return result
}

// allNodesBfs computes, for every node, the set of all nodes reachable via
// one or more edges. Falls back to a plain per-node BFS when m has a cycle.
func (m *MatrixGraph[N]) allNodesBfs() *MatrixGraph[N] {
	if topoOrder, ok := m.topoSortIDs(); ok {
		return m.bfsWithNoCycle(topoOrder)
	}

	result := newMatrix(m.nodes, m.index)
	for i := range m.adjacency {
		queue := []int{i}
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]

			it := m.adjacency[j].Iterator()
			for it.HasNext() {
				k := int(it.Next())
				if result.adjacency[i].Contains(uint32(k)) {
					continue
				}
				result.adjacency[i].Add(uint32(k))
				queue = append(queue, k)
			}
		}
	}
	return result
}

// Reachability returns the reflexive-transitive closure of m: n reaches m'
// iff there is a (possibly empty) path from n to m' in m.
func (m *MatrixGraph[N]) Reachability() *MatrixGraph[N] {
	result := m.allNodesBfs()
	for i := range result.adjacency {
		result.adjacency[i].Add(uint32(i))
	}
	return result
}

func (m *MatrixGraph[N]) String() string {
	var b strings.Builder
	b.WriteByte('\n')
	for i := range m.adjacency {
		for j := range m.adjacency {
			if m.adjacency[i].Contains(uint32(j)) {
				b.WriteByte('1')
			} else {
				b.WriteByte('0')
			}
			b.WriteByte(' ')
		}
		b.WriteByte('\n')
	}
	return b.String()
}
