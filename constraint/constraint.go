// Package constraint generates the SIConstraints a history implies: for
// every pair of transactions that write a common key, either the first
// precedes the second or vice versa, and each direction drags along the
// read-write edges that follow from it (spec.md §4.5). Two equivalent
// generators are provided — coalesced (one constraint per conflicting
// transaction pair, aggregating every key) and un-coalesced (one constraint
// per key) — selected by Config.Coalesce.
package constraint

import (
	"fmt"
	"sort"

	"github.com/dbcop/siverify/graph"
	"github.com/dbcop/siverify/history"
)

// SIEdge is a single directed WW or RW edge proposed as part of resolving
// a conflict between two transactions over a key.
type SIEdge[K comparable, V comparable] struct {
	From *history.Transaction[K, V]
	To   *history.Transaction[K, V]
	Type graph.EdgeType
	Key  K
}

func (e SIEdge[K, V]) String() string {
	return fmt.Sprintf("%s -(%s,%v)-> %s", e.From, e.Type, e.Key, e.To)
}

// SIConstraint captures the two mutually exclusive ways a conflict between
// WriteTxn1 and WriteTxn2 over a shared key can be resolved: Edges1 if
// WriteTxn1 precedes WriteTxn2, Edges2 if the reverse holds. Exactly one of
// the two edge sets must end up in the final graph.
type SIConstraint[K comparable, V comparable] struct {
	ID         int
	WriteTxn1  *history.Transaction[K, V]
	WriteTxn2  *history.Transaction[K, V]
	Edges1     []SIEdge[K, V]
	Edges2     []SIEdge[K, V]
}

func (c SIConstraint[K, V]) String() string {
	return fmt.Sprintf("constraint#%d(%s, %s)", c.ID, c.WriteTxn1, c.WriteTxn2)
}

// Config selects between the coalesced and un-coalesced generators.
type Config struct {
	// Coalesce merges every conflict between the same pair of transactions
	// into a single SIConstraint, which is what the solver and pruner
	// expect for large histories. Disable only to inspect constraints at
	// per-key granularity.
	Coalesce bool
}

// DefaultConfig mirrors the reference implementation's default of
// coalescing constraints.
func DefaultConfig() Config {
	return Config{Coalesce: true}
}

// Generate builds the SIConstraints implied by h and its known precedence
// graph g, using the generator selected by cfg.
func Generate[K comparable, V comparable](h *history.History[K, V], g *graph.KnownGraph[K, V], cfg Config) []SIConstraint[K, V] {
	if cfg.Coalesce {
		return generateCoalesced(h, g)
	}
	return generateUncoalesced(h, g)
}

// sortedSuccessors returns a's successors in g.ReadFrom ordered by
// transaction ID, rather than in ReadFrom's node-insertion order, so the
// constraint IDs and edge orientations built from it follow transaction IDs.
func sortedSuccessors[K comparable, V comparable](g *graph.KnownGraph[K, V], a *history.Transaction[K, V]) []*history.Transaction[K, V] {
	succ := g.ReadFrom.Successors(a)
	out := make([]*history.Transaction[K, V], len(succ))
	copy(out, succ)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func writesByKey[K comparable, V comparable](h *history.History[K, V]) map[K]map[*history.Transaction[K, V]]struct{} {
	writes := make(map[K]map[*history.Transaction[K, V]]struct{})
	for _, e := range h.Events() {
		if e.Type != history.Write {
			continue
		}
		if writes[e.Key] == nil {
			writes[e.Key] = make(map[*history.Transaction[K, V]]struct{})
		}
		writes[e.Key][e.Txn] = struct{}{}
	}
	return writes
}

type txnPair[K comparable, V comparable] struct {
	A *history.Transaction[K, V]
	C *history.Transaction[K, V]
}

// sortedTxns returns the transactions in txnSet ordered by transaction ID,
// so callers that range over a map-derived set still produce the same
// sequence on every run (spec.md §5: a deterministic configuration must
// produce the same verdict and conflict set every time).
func sortedTxns[K comparable, V comparable](txnSet map[*history.Transaction[K, V]]struct{}) []*history.Transaction[K, V] {
	txns := make([]*history.Transaction[K, V], 0, len(txnSet))
	for t := range txnSet {
		txns = append(txns, t)
	}
	sort.Slice(txns, func(i, j int) bool { return txns[i].ID < txns[j].ID })
	return txns
}

// sortedKeys returns writes's keys in a stable order. K need not be
// orderable, so keys are sorted by their string representation rather than
// by value directly.
func sortedKeys[K comparable, V comparable](writes map[K]map[*history.Transaction[K, V]]struct{}) []K {
	keys := make([]K, 0, len(writes))
	for k := range writes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return fmt.Sprint(keys[i]) < fmt.Sprint(keys[j]) })
	return keys
}

// forEachWriteSameKey calls fn(a, c, key) once for every unordered pair of
// distinct transactions that both wrote key, for every key, in a fixed
// order stable across repeated calls on the same writes.
func forEachWriteSameKey[K comparable, V comparable](writes map[K]map[*history.Transaction[K, V]]struct{}, fn func(a, c *history.Transaction[K, V], key K)) {
	for _, key := range sortedKeys(writes) {
		txns := sortedTxns(writes[key])
		for i := 0; i < len(txns); i++ {
			for j := i + 1; j < len(txns); j++ {
				fn(txns[i], txns[j], key)
			}
		}
	}
}

func generateCoalesced[K comparable, V comparable](h *history.History[K, V], g *graph.KnownGraph[K, V]) []SIConstraint[K, V] {
	writes := writesByKey(h)

	constraintEdges := make(map[txnPair[K, V]][]SIEdge[K, V])
	addWW := func(a, c *history.Transaction[K, V], key K) {
		constraintEdges[txnPair[K, V]{a, c}] = append(constraintEdges[txnPair[K, V]{a, c}], SIEdge[K, V]{From: a, To: c, Type: graph.WW, Key: key})
	}
	forEachWriteSameKey(writes, func(a, c *history.Transaction[K, V], key K) {
		addWW(a, c, key)
		addWW(c, a, key)
	})

	for _, a := range h.Transactions() {
		for _, b := range sortedSuccessors(g, a) {
			edges, _ := g.ReadFrom.EdgeValue(a, b)
			for _, edge := range edges {
				for _, c := range sortedTxns(writes[edge.Key]) {
					if a == c || b == c {
						continue
					}
					pair := txnPair[K, V]{a, c}
					constraintEdges[pair] = append(constraintEdges[pair], SIEdge[K, V]{From: b, To: c, Type: graph.RW, Key: edge.Key})
				}
			}
		}
	}

	var constraints []SIConstraint[K, V]
	added := make(map[txnPair[K, V]]bool)
	id := 0
	forEachWriteSameKey(writes, func(a, c *history.Transaction[K, V], key K) {
		if added[txnPair[K, V]{a, c}] || added[txnPair[K, V]{c, a}] {
			return
		}
		added[txnPair[K, V]{a, c}] = true
		constraints = append(constraints, SIConstraint[K, V]{
			ID:        id,
			WriteTxn1: a,
			WriteTxn2: c,
			Edges1:    constraintEdges[txnPair[K, V]{a, c}],
			Edges2:    constraintEdges[txnPair[K, V]{c, a}],
		})
		id++
	})

	return constraints
}

func generateUncoalesced[K comparable, V comparable](h *history.History[K, V], g *graph.KnownGraph[K, V]) []SIConstraint[K, V] {
	writes := writesByKey(h)

	var constraints []SIConstraint[K, V]
	id := 0

	for _, a := range h.Transactions() {
		for _, b := range sortedSuccessors(g, a) {
			edges, _ := g.ReadFrom.EdgeValue(a, b)
			for _, edge := range edges {
				for _, c := range sortedTxns(writes[edge.Key]) {
					if a == c || b == c {
						continue
					}
					constraints = append(constraints, SIConstraint[K, V]{
						ID:        id,
						WriteTxn1: a,
						WriteTxn2: c,
						Edges1: []SIEdge[K, V]{
							{From: a, To: c, Type: graph.WW, Key: edge.Key},
							{From: b, To: c, Type: graph.RW, Key: edge.Key},
						},
						Edges2: []SIEdge[K, V]{
							{From: c, To: a, Type: graph.WW, Key: edge.Key},
						},
					})
					id++
				}
			}
		}
	}

	forEachWriteSameKey(writes, func(a, c *history.Transaction[K, V], key K) {
		constraints = append(constraints, SIConstraint[K, V]{
			ID:        id,
			WriteTxn1: a,
			WriteTxn2: c,
			Edges1:    []SIEdge[K, V]{{From: a, To: c, Type: graph.WW, Key: key}},
			Edges2:    []SIEdge[K, V]{{From: c, To: a, Type: graph.WW, Key: key}},
		})
		id++
	})

	return constraints
}
