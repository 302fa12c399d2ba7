// Package verify orchestrates the full snapshot-isolation decision procedure
// of spec.md §4: check internal consistency, build the known precedence
// graph, generate SI constraints, prune what can be resolved cheaply, and
// hand whatever remains to the SAT solver. It corresponds to the reference
// implementation's SIVerifier.audit().
package verify

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dbcop/siverify/constraint"
	"github.com/dbcop/siverify/graph"
	"github.com/dbcop/siverify/history"
	"github.com/dbcop/siverify/logging"
	"github.com/dbcop/siverify/metrics"
	"github.com/dbcop/siverify/prune"
	"github.com/dbcop/siverify/sat"
)

// ErrInternalInconsistency means the history itself is malformed — some read
// observes a value no write ever produced, or observes a write that isn't
// the latest one visible to it — independent of snapshot isolation.
var ErrInternalInconsistency = errors.New("history is not internally consistent")

// ErrInvalidHistory means h violates a contract Verify requires of its
// caller before any SI reasoning can begin — e.g. a session or transaction
// with no events — as opposed to ErrInternalInconsistency, which means the
// events themselves don't add up to any possible execution.
var ErrInvalidHistory = errors.New("history is not well-formed")

// Config tunes every stage of the audit.
type Config struct {
	// CoalesceConstraints selects constraint.Config.Coalesce.
	CoalesceConstraints bool

	// EnablePruning selects prune.Config.Enabled.
	EnablePruning bool

	// StopThreshold selects prune.Config.StopThreshold.
	StopThreshold float64

	// DotOutput requests that a rejecting Verdict carry a Graphviz dot
	// rendering of its witness (Verdict.DotOutput, produced by renderDot)
	// alongside the structured conflict data.
	DotOutput bool
}

// DefaultConfig matches the reference implementation's defaults: coalesced
// constraints, pruning enabled, 1% stop threshold.
func DefaultConfig() Config {
	return Config{CoalesceConstraints: true, EnablePruning: true, StopThreshold: 0.01}
}

func (c Config) constraintConfig() constraint.Config {
	return constraint.Config{Coalesce: c.CoalesceConstraints}
}

func (c Config) pruneConfig() prune.Config {
	return prune.Config{Enabled: c.EnablePruning, StopThreshold: c.StopThreshold}
}

// Verdict is the outcome of Verify: either Accept, or Reject carrying a
// witness of the conflict that made every orientation cyclic.
type Verdict[K comparable, V comparable] struct {
	Accepted bool

	// Reason is a short human-readable summary of the verdict, always
	// populated, printable directly by a caller that doesn't want to walk
	// ConflictEdges/ConflictConstraints itself.
	Reason string

	// DotOutput, set only when Config.DotOutput was requested and the
	// verdict is a rejection, is a Graphviz dot rendering of the witness
	// graph: the conflict edges plus the constraint pairs behind them.
	DotOutput string

	// ConflictEdges and ConflictConstraints are populated only when
	// Accepted is false and the SAT solver rejected; they describe the last
	// cycle the solver found. For a cycle detected during pruning both are
	// empty and only Reason is set.
	ConflictEdges       []graph.EdgePair[*history.Transaction[K, V]]
	ConflictConstraints []constraint.SIConstraint[K, V]
}

// Transactions returns the distinct transactions implicated in a rejection's
// witness, in no particular order. Empty on an accepted verdict.
func (v Verdict[K, V]) Transactions() []*history.Transaction[K, V] {
	seen := make(map[*history.Transaction[K, V]]struct{})
	var out []*history.Transaction[K, V]
	add := func(t *history.Transaction[K, V]) {
		if _, ok := seen[t]; ok || t == nil {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	for _, e := range v.ConflictEdges {
		add(e.Source)
		add(e.Target)
	}
	for _, c := range v.ConflictConstraints {
		add(c.WriteTxn1)
		add(c.WriteTxn2)
	}
	return out
}

func (v Verdict[K, V]) String() string {
	if v.Reason != "" {
		return v.Reason
	}
	if v.Accepted {
		return "accept"
	}
	return fmt.Sprintf("reject: %d conflict edges, %d conflict constraints", len(v.ConflictEdges), len(v.ConflictConstraints))
}

func rejectReason(conflictEdges, conflictConstraints int) string {
	return fmt.Sprintf("reject: %d conflict edges, %d conflict constraints", conflictEdges, conflictConstraints)
}

// renderDot produces a minimal Graphviz dot graph of a rejection witness:
// one edge per conflict edge, one dashed edge per constraint pair (dashed
// since a constraint's direction was never settled).
func renderDot[K comparable, V comparable](v Verdict[K, V]) string {
	out := "digraph witness {\n"
	for _, e := range v.ConflictEdges {
		out += fmt.Sprintf("  %q -> %q;\n", e.Source.String(), e.Target.String())
	}
	for _, c := range v.ConflictConstraints {
		out += fmt.Sprintf("  %q -> %q [style=dashed, label=\"constraint#%d\"];\n", c.WriteTxn1.String(), c.WriteTxn2.String(), c.ID)
	}
	out += "}\n"
	return out
}

// Verify decides whether h satisfies snapshot isolation. After accepting an
// empty history and checking that h is well-formed, it checks h's
// internal consistency (spec.md §4.2); a violation there is reported as
// ErrInternalInconsistency wrapping the underlying multierror, distinct from
// an SI Reject verdict, since it means h couldn't have come from any
// execution at all, regardless of isolation level.
func Verify[K comparable, V comparable](h *history.History[K, V], cfg Config, log *logging.Logger) (Verdict[K, V], error) {
	if log == nil {
		log = logging.Nop()
	}

	runID := uuid.NewString()
	log = log.WithRunID(runID)

	stop := metrics.Get().Start("SI_VERIFY")
	defer stop()

	// spec.md §8: an empty history — no sessions at all — vacuously
	// satisfies snapshot isolation. Handle it before validateWellFormed,
	// which otherwise treats "nothing to check" as malformed input.
	if len(h.Sessions()) == 0 {
		log.Debugf("empty history, vacuously accepted")
		return Verdict[K, V]{Accepted: true, Reason: "accept"}, nil
	}

	if err := validateWellFormed(h); err != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidHistory, err)
		return Verdict[K, V]{Reason: err.Error()}, err
	}

	if err := history.CheckInternalConsistency(h); err != nil {
		err = fmt.Errorf("%w: %v", ErrInternalInconsistency, err)
		return Verdict[K, V]{Reason: err.Error()}, err
	}

	g := graph.Build(h)
	constraints := constraint.Generate(h, g, cfg.constraintConfig())

	pruner := prune.New[K, V](cfg.pruneConfig(), log)
	remaining, cycleFoundDuringPrune := pruner.Prune(g, constraints, h, func(rs prune.RoundStats) {
		log.Debugf("prune round %d: solved %d, %d remaining", rs.Round, rs.Solved, rs.Remaining)
	})

	if cycleFoundDuringPrune {
		log.Debugf("rejected during pruning, before reaching the solver")
		v := Verdict[K, V]{Accepted: false, Reason: rejectReason(0, 0)}
		return v, nil
	}

	if len(remaining) == 0 {
		log.Debugf("pruning resolved every constraint")
		return Verdict[K, V]{Accepted: true, Reason: "accept"}, nil
	}

	solver := sat.New(g, remaining, log)
	res := solver.Solve()
	if res.Verdict == sat.Accept {
		return Verdict[K, V]{Accepted: true, Reason: "accept"}, nil
	}

	v := Verdict[K, V]{
		Accepted:            false,
		Reason:              rejectReason(len(res.ConflictEdges), len(res.ConflictConstraints)),
		ConflictEdges:       res.ConflictEdges,
		ConflictConstraints: res.ConflictConstraints,
	}
	if cfg.DotOutput {
		v.DotOutput = renderDot(v)
	}
	return v, nil
}

// validateWellFormed rejects histories that violate Verify's basic contract
// with its caller — independent of whether the events inside are mutually
// consistent — before any SI machinery runs: every session must have at
// least one transaction, every transaction at least one event, and every
// transaction must have reached Commit. The empty-history case (no
// sessions at all) is handled separately by Verify, before this runs — an
// empty history is accepted outright, not rejected as malformed.
func validateWellFormed[K comparable, V comparable](h *history.History[K, V]) error {
	for _, s := range h.Sessions() {
		if len(s.Transactions) == 0 {
			return fmt.Errorf("session %d has no transactions", s.ID)
		}
		for _, t := range s.Transactions {
			if len(t.Events) == 0 {
				return fmt.Errorf("transaction %s has no events", t)
			}
			if t.Status() != history.StatusCommit {
				return fmt.Errorf("transaction %s never committed", t)
			}
		}
	}
	return nil
}
