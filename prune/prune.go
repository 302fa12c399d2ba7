// Package prune implements the constraint-pruning loop of spec.md §4.6:
// repeatedly build the best graph known so far, check each remaining
// constraint against its reachability relation, and commit whichever
// direction is already forced. This shrinks the set of constraints the SAT
// solver has to reason about, often resolving a history completely without
// ever invoking it.
package prune

import (
	"fmt"

	"github.com/dbcop/siverify/constraint"
	"github.com/dbcop/siverify/graph"
	"github.com/dbcop/siverify/history"
	"github.com/dbcop/siverify/logging"
	"github.com/dbcop/siverify/metrics"
	"github.com/dbcop/siverify/statemachine"
)

// Constraint lifecycle states (spec.md §4.10): a constraint starts active,
// still awaiting an orientation, and ends up either discharged by pruning
// (one side conflicted, the other was committed to the known graph) or
// retained for the SAT solver.
const (
	constraintActive     = "ACTIVE"
	constraintDischarged = "DISCHARGED"
	constraintRetained   = "RETAINED"
)

var constraintMachine = statemachine.New(constraintActive, []statemachine.Transition{
	{From: constraintActive, Event: "discharge", To: constraintDischarged},
	{From: constraintActive, Event: "retain", To: constraintRetained},
})

func constraintSubject(round, id int) string {
	return fmt.Sprintf("%d/%d", round, id)
}

// Config tunes the pruning loop.
type Config struct {
	// Enabled turns pruning on. Disabling it entirely defers every
	// constraint to the SAT solver.
	Enabled bool

	// StopThreshold ends the loop early once a round solves no more than
	// this fraction of the original constraint count, or once fewer than
	// this fraction of constraints remain unsolved.
	StopThreshold float64
}

// DefaultConfig matches the reference implementation's defaults.
func DefaultConfig() Config {
	return Config{Enabled: true, StopThreshold: 0.01}
}

// RoundStats reports one pruning round's outcome to an observer (a logger,
// a test, a progress bar).
type RoundStats struct {
	Round     int
	Solved    int
	Remaining int
}

// Pruner runs the constraint-pruning loop over a KnownGraph, mutating it in
// place by adding WW/RW edges for every constraint it manages to resolve.
type Pruner[K comparable, V comparable] struct {
	cfg Config
	log *logging.Logger
}

// New creates a Pruner. A nil logger is replaced with a no-op logger.
func New[K comparable, V comparable](cfg Config, log *logging.Logger) *Pruner[K, V] {
	if log == nil {
		log = logging.Nop()
	}
	return &Pruner[K, V]{cfg: cfg, log: log}
}

// Prune repeatedly narrows constraints until a round makes too little
// progress to be worth continuing, or a cycle is detected early (in which
// case Prune returns true without waiting for the SAT solver). onRound, if
// non-nil, is invoked after every round with that round's statistics.
func (p *Pruner[K, V]) Prune(g *graph.KnownGraph[K, V], constraints []constraint.SIConstraint[K, V], h *history.History[K, V], onRound func(RoundStats)) (remaining []constraint.SIConstraint[K, V], foundCycle bool) {
	if !p.cfg.Enabled {
		return constraints, false
	}

	stop := metrics.Get().Start("SI_PRUNE")
	defer stop()

	total := len(constraints)
	remaining = constraints
	round := 1

	for {
		p.log.Debugf("pruning round %d", round)

		solvedCount, hasCycle, next := p.pruneOnce(g, remaining, h, round)
		remaining = next

		if onRound != nil {
			onRound(RoundStats{Round: round, Solved: solvedCount, Remaining: len(remaining)})
		}

		if hasCycle {
			return remaining, true
		}

		if float64(solvedCount) <= p.cfg.StopThreshold*float64(total) ||
			float64(len(remaining)) < p.cfg.StopThreshold*float64(total) {
			break
		}
		round++
	}

	return remaining, false
}

func (p *Pruner[K, V]) pruneOnce(g *graph.KnownGraph[K, V], constraints []constraint.SIConstraint[K, V], h *history.History[K, V], round int) (solvedCount int, hasCycle bool, remaining []constraint.SIConstraint[K, V]) {
	matA := graph.FromValueGraph(g.GraphA)
	index, nodes := matA.NodeMap()
	matB := graph.FromValueGraphWithNodeMap(g.GraphB, index, nodes)
	orderInSession := graph.OrderInSession(h)

	matC := matA.Composition(matB)
	if matC.HasLoops() {
		return 0, true, constraints
	}

	reachability := graph.ReduceEdges(matA.Union(matC), orderInSession).Reachability()

	remaining = make([]constraint.SIConstraint[K, V], 0, len(constraints))
	for _, c := range constraints {
		subject := constraintSubject(round, c.ID)
		if conflict := checkConflict(c.Edges1, reachability, g); conflict {
			addToKnownGraph(g, c.Edges2)
			_, _ = constraintMachine.Apply(subject, "discharge")
			solvedCount++
			continue
		}
		if conflict := checkConflict(c.Edges2, reachability, g); conflict {
			addToKnownGraph(g, c.Edges1)
			_, _ = constraintMachine.Apply(subject, "discharge")
			solvedCount++
			continue
		}
		_, _ = constraintMachine.Apply(subject, "retain")
		remaining = append(remaining, c)
	}

	return solvedCount, false, remaining
}

// checkConflict reports whether committing edges would create a cycle
// given what's already known to be reachable: a WW edge conflicts if its
// target already reaches its source, and an RW edge conflicts if its
// target already reaches any predecessor of its source in graph A.
func checkConflict[K comparable, V comparable](edges []constraint.SIEdge[K, V], reachability *graph.MatrixGraph[*history.Transaction[K, V]], g *graph.KnownGraph[K, V]) bool {
	for _, e := range edges {
		switch e.Type {
		case graph.WW:
			if reachability.HasEdgeConnecting(e.To, e.From) {
				return true
			}
		case graph.RW:
			for _, pred := range g.GraphA.Predecessors(e.From) {
				if reachability.HasEdgeConnecting(e.To, pred) {
					return true
				}
			}
		}
	}
	return false
}

func addToKnownGraph[K comparable, V comparable](g *graph.KnownGraph[K, V], edges []constraint.SIEdge[K, V]) {
	for _, e := range edges {
		g.PutEdge(e.From, e.To, graph.NewKeyedEdge[K](e.Type, e.Key))
	}
}
