package graph

import "github.com/dbcop/siverify/history"

// KnownGraph holds the precedence edges that can be determined directly
// from a history, before any constraint solving: session order, writes a
// transaction reads from, and (separately) graph A (SO, WW, WR) and graph B
// (RW) used by the pruner and solver (spec.md §4.2).
type KnownGraph[K comparable, V comparable] struct {
	ReadFrom *ValueGraph[*history.Transaction[K, V], Edge[K]]
	GraphA   *ValueGraph[*history.Transaction[K, V], Edge[K]]
	GraphB   *ValueGraph[*history.Transaction[K, V], Edge[K]]
}

// Build constructs a KnownGraph containing h's session-order and
// write-read edges.
func Build[K comparable, V comparable](h *history.History[K, V]) *KnownGraph[K, V] {
	g := &KnownGraph[K, V]{
		ReadFrom: NewValueGraph[*history.Transaction[K, V], Edge[K]](),
		GraphA:   NewValueGraph[*history.Transaction[K, V], Edge[K]](),
		GraphB:   NewValueGraph[*history.Transaction[K, V], Edge[K]](),
	}

	for _, t := range h.Transactions() {
		g.GraphA.AddNode(t)
		g.GraphB.AddNode(t)
		g.ReadFrom.AddNode(t)
	}

	for _, session := range h.Sessions() {
		var prev *history.Transaction[K, V]
		for _, t := range session.Transactions {
			if prev != nil {
				g.GraphA.AddEdgeValue(prev, t, NewSessionEdge[K]())
			}
			prev = t
		}
	}

	type writeKey struct {
		Key   K
		Value V
	}
	writes := make(map[writeKey]*history.Transaction[K, V])
	for _, e := range h.Events() {
		if e.Type == history.Write {
			writes[writeKey{e.Key, e.Value}] = e.Txn
		}
	}

	for _, e := range h.Events() {
		if e.Type != history.Read {
			continue
		}
		writeTxn, ok := writes[writeKey{e.Key, e.Value}]
		if !ok || writeTxn == e.Txn {
			continue
		}
		g.PutEdge(writeTxn, e.Txn, NewKeyedEdge(WR, e.Key))
	}

	return g
}

// PutEdge routes edge into the correct subgraph: WR edges populate both
// ReadFrom and GraphA, WW/SO edges populate GraphA, and RW edges populate
// GraphB.
func (g *KnownGraph[K, V]) PutEdge(u, v *history.Transaction[K, V], edge Edge[K]) {
	switch edge.Type {
	case WR:
		g.ReadFrom.AddEdgeValue(u, v, edge)
		g.GraphA.AddEdgeValue(u, v, edge)
	case WW, SO:
		g.GraphA.AddEdgeValue(u, v, edge)
	case RW:
		g.GraphB.AddEdgeValue(u, v, edge)
	}
}

// OrderInSession returns, for every transaction in h, its zero-based
// position within its own session.
func OrderInSession[K comparable, V comparable](h *history.History[K, V]) map[*history.Transaction[K, V]]int {
	out := make(map[*history.Transaction[K, V]]int)
	for _, s := range h.Sessions() {
		for i, t := range s.Transactions {
			out[t] = i
		}
	}
	return out
}

// ReduceEdges returns a new MatrixGraph containing, for every node n, only:
// the earliest-in-its-own-session successor of n for every distinct
// session reachable from n, plus n's immediate session successor. This
// preserves reachability (spec.md §4.4) while sharply cutting row sizes
// before the expensive Reachability() pass.
func ReduceEdges[K comparable, V comparable](g *MatrixGraph[*history.Transaction[K, V]], orderInSession map[*history.Transaction[K, V]]int) *MatrixGraph[*history.Transaction[K, V]] {
	result := OfNodes(g)

	for _, n := range g.Nodes() {
		succ := g.Successors(n)

		firstInSession := make(map[*history.Session[K, V]]*history.Transaction[K, V])
		for _, m := range succ {
			cur, ok := firstInSession[m.Session]
			if !ok || orderInSession[m] < orderInSession[cur] {
				firstInSession[m.Session] = m
			}
		}
		for _, m := range firstInSession {
			result.PutEdge(n, m)
		}

		for _, m := range succ {
			if m.Session == n.Session && orderInSession[m] == orderInSession[n]+1 {
				result.PutEdge(n, m)
			}
		}
	}

	return result
}
