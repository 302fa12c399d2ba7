// Package sat decides whether some orientation of every SIConstraint
// yields an acyclic precedence graph (spec.md §4.7–§4.9). The reference
// implementation hands the whole problem to monosat, a native SAT solver
// with a built-in graph-acyclicity theory; no such solver or Go binding
// exists in the corpus this module was grown from (see DESIGN.md). Instead
// this package pairs the pure-Go SAT core github.com/irifrance/gini
// provides with a small lazy-clause-generation loop of its own: solve for
// an orientation, check the resulting graph for cycles, and if one is
// found, block exactly that combination of orientations and solve again.
package sat

import (
	"fmt"
	"sync/atomic"

	"github.com/irifrance/gini"
	"github.com/irifrance/gini/z"

	"github.com/dbcop/siverify/constraint"
	"github.com/dbcop/siverify/graph"
	"github.com/dbcop/siverify/history"
	"github.com/dbcop/siverify/logging"
	"github.com/dbcop/siverify/metrics"
	"github.com/dbcop/siverify/statemachine"
)

// Solver lifecycle states (spec.md §4.10): a Solver is built over its
// constraints, transitions to one of the two solved states once Solve's
// CEGAR loop terminates, and — only on the unsatisfiable path — on to
// conflict-extracted once its witness has been read out of Result.
const (
	lifecycleBuilt             = "BUILT"
	lifecycleSolvedSAT         = "SOLVED_SAT"
	lifecycleSolvedUNSAT       = "SOLVED_UNSAT"
	lifecycleConflictExtracted = "CONFLICT_EXTRACTED"
)

var lifecycleMachine = statemachine.New(lifecycleBuilt, []statemachine.Transition{
	{From: lifecycleBuilt, Event: "accept", To: lifecycleSolvedSAT},
	{From: lifecycleBuilt, Event: "reject", To: lifecycleSolvedUNSAT},
	{From: lifecycleSolvedUNSAT, Event: "extract", To: lifecycleConflictExtracted},
})

// Verdict is the result of Solve.
type Verdict int

const (
	// Accept means some orientation of every constraint yields an
	// acyclic precedence graph: the history satisfies snapshot isolation.
	Accept Verdict = iota
	// Reject means no orientation does.
	Reject
)

// edgeTag records why an edge exists in the working graph used for cycle
// detection: either it was already known (ConstraintID < 0) or it was
// contributed by resolving a constraint in one particular direction.
type edgeTag struct {
	ConstraintID int
	Key          any
	Type         graph.EdgeType
}

const knownEdge = -1

// Result carries the outcome of a Solve call, including — on Reject — the
// constraints and known edges that made every orientation cyclic.
type Result[K comparable, V comparable] struct {
	Verdict           Verdict
	ConflictEdges     []graph.EdgePair[*history.Transaction[K, V]]
	ConflictConstraints []constraint.SIConstraint[K, V]
}

// Solver decides satisfiability of a set of SIConstraints against a known
// precedence graph.
type Solver[K comparable, V comparable] struct {
	known       *graph.KnownGraph[K, V]
	constraints []constraint.SIConstraint[K, V]
	log         *logging.Logger

	sat    *gini.Gini
	dirLit map[int]z.Lit // constraint id -> literal; true picks Edges1, false picks Edges2
	byID   map[int]constraint.SIConstraint[K, V]

	lifecycleSubject string
}

var solverInstanceCounter int64

func nextSolverSubject() string {
	return fmt.Sprintf("solver#%d", atomic.AddInt64(&solverInstanceCounter, 1))
}

// New builds a Solver over known and constraints. A nil logger is replaced
// with a no-op logger.
func New[K comparable, V comparable](known *graph.KnownGraph[K, V], constraints []constraint.SIConstraint[K, V], log *logging.Logger) *Solver[K, V] {
	if log == nil {
		log = logging.Nop()
	}
	s := &Solver[K, V]{
		known:       known,
		constraints: constraints,
		log:         log,
		sat:         gini.New(),
		dirLit:      make(map[int]z.Lit, len(constraints)),
		byID:        make(map[int]constraint.SIConstraint[K, V], len(constraints)),

		lifecycleSubject: nextSolverSubject(),
	}
	for _, c := range constraints {
		s.dirLit[c.ID] = s.sat.Lit()
		s.byID[c.ID] = c
	}
	return s
}

// Solve runs the CEGAR loop described in the package doc and returns the
// resulting Verdict together with a witness on Reject.
func (s *Solver[K, V]) Solve() Result[K, V] {
	stop := metrics.Get().Start("SI_SOLVER_SOLVE")
	defer stop()

	var lastCycleEdges []graph.EdgePair[*history.Transaction[K, V]]
	var lastCycleConstraints []constraint.SIConstraint[K, V]

	for {
		res := s.sat.Solve()
		if res == -1 {
			s.log.Debugf("sat core exhausted every orientation")
			_, _ = lifecycleMachine.Apply(s.lifecycleSubject, "reject")
			_, _ = lifecycleMachine.Apply(s.lifecycleSubject, "extract")
			return Result[K, V]{
				Verdict:             Reject,
				ConflictEdges:       lastCycleEdges,
				ConflictConstraints: lastCycleConstraints,
			}
		}

		merged := s.buildCycleCheckGraph()
		cyclePairs, constraintIDs, cyclic := s.findCycleConstraints(merged)
		if !cyclic {
			_, _ = lifecycleMachine.Apply(s.lifecycleSubject, "accept")
			return Result[K, V]{Verdict: Accept}
		}

		lastCycleEdges = cyclePairs
		lastCycleConstraints = lastCycleConstraints[:0]
		for _, id := range constraintIDs {
			lastCycleConstraints = append(lastCycleConstraints, s.byID[id])
		}

		s.blockOrientation(constraintIDs)
	}
}

// buildWorkingABGraphs materializes graph A (SO, WR, WW edges — known plus
// whatever the current SAT assignment chose) and graph B (RW edges, same
// sources) as separate tagged graphs.
func (s *Solver[K, V]) buildWorkingABGraphs() (a, b *graph.ValueGraph[*history.Transaction[K, V], edgeTag]) {
	a = graph.NewValueGraph[*history.Transaction[K, V], edgeTag]()
	b = graph.NewValueGraph[*history.Transaction[K, V], edgeTag]()

	for _, t := range s.known.GraphA.Nodes() {
		a.AddNode(t)
		b.AddNode(t)
	}
	for _, pair := range s.known.GraphA.Edges() {
		a.AddEdgeValue(pair.Source, pair.Target, edgeTag{ConstraintID: knownEdge})
	}
	for _, pair := range s.known.GraphB.Edges() {
		b.AddEdgeValue(pair.Source, pair.Target, edgeTag{ConstraintID: knownEdge})
	}

	for _, c := range s.constraints {
		edges := c.Edges1
		if !s.sat.Value(s.dirLit[c.ID]) {
			edges = c.Edges2
		}
		for _, e := range edges {
			tag := edgeTag{ConstraintID: c.ID, Key: e.Key, Type: e.Type}
			if e.Type == graph.RW {
				b.AddEdgeValue(e.From, e.To, tag)
			} else {
				a.AddEdgeValue(e.From, e.To, tag)
			}
		}
	}

	return a, b
}

// buildCycleCheckGraph builds the graph whose acyclicity actually decides
// snapshot isolation: A union (A composed with B). Composing rather than
// simply unioning A and B is what lets two independent anti-dependency
// (RW) edges form a cycle without being flagged — snapshot isolation
// explicitly permits that pattern (the "write skew" anomaly). The cycles
// this graph exposes are those in which every RW edge comes immediately
// after a WW/SO/WR edge, including cycles with no RW edge at all.
func (s *Solver[K, V]) buildCycleCheckGraph() *graph.ValueGraph[*history.Transaction[K, V], edgeTag] {
	a, b := s.buildWorkingABGraphs()

	merged := graph.NewValueGraph[*history.Transaction[K, V], edgeTag]()
	for _, n := range a.Nodes() {
		merged.AddNode(n)
	}
	for _, e := range a.Edges() {
		tags, _ := a.EdgeValue(e.Source, e.Target)
		for _, tag := range tags {
			merged.AddEdgeValue(e.Source, e.Target, tag)
		}
	}

	for _, p := range a.Nodes() {
		for _, q := range a.Successors(p) {
			pqTags, _ := a.EdgeValue(p, q)
			for _, r := range b.Successors(q) {
				qrTags, _ := b.EdgeValue(q, r)
				for _, t1 := range pqTags {
					for _, t2 := range qrTags {
						merged.AddEdgeValue(p, r, composedTag(t1, t2))
					}
				}
			}
		}
	}

	return merged
}

// composedTag attributes a composed A;B edge to whichever of its two
// halves came from an unresolved constraint, preferring the B (RW) half
// since that is the edge type SI treats as conditional.
func composedTag(a, b edgeTag) edgeTag {
	if b.ConstraintID != knownEdge {
		return b
	}
	return a
}

// findCycleConstraints looks for a cycle in g and, if one exists, returns
// the EdgePairs on it together with the distinct non-known constraint ids
// it passes through.
func (s *Solver[K, V]) findCycleConstraints(g *graph.ValueGraph[*history.Transaction[K, V], edgeTag]) ([]graph.EdgePair[*history.Transaction[K, V]], []int, bool) {
	cycle, ok := graph.FindCycle(g)
	if !ok {
		return nil, nil, false
	}

	seen := make(map[int]bool)
	var ids []int
	for _, pair := range cycle {
		tags, _ := g.EdgeValue(pair.Source, pair.Target)
		for _, tag := range tags {
			if tag.ConstraintID == knownEdge || seen[tag.ConstraintID] {
				continue
			}
			seen[tag.ConstraintID] = true
			ids = append(ids, tag.ConstraintID)
		}
	}
	return cycle, ids, true
}

// blockOrientation adds a clause forbidding the exact combination of
// constraint orientations that produced the last cycle, forcing the SAT
// core to flip at least one of them on the next Solve.
func (s *Solver[K, V]) blockOrientation(constraintIDs []int) {
	if len(constraintIDs) == 0 {
		// The known graph alone is cyclic; no orientation can help.
		s.sat.Add(z.LitNull)
		return
	}
	for _, id := range constraintIDs {
		lit := s.dirLit[id]
		if s.sat.Value(lit) {
			s.sat.Add(lit.Not())
		} else {
			s.sat.Add(lit)
		}
	}
	s.sat.Add(z.LitNull)
}

func (r Result[K, V]) String() string {
	if r.Verdict == Accept {
		return "accept"
	}
	return fmt.Sprintf("reject: %d conflicting constraints", len(r.ConflictConstraints))
}
