package prune

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbcop/siverify/constraint"
	"github.com/dbcop/siverify/graph"
	"github.com/dbcop/siverify/history"
)

// buildLostUpdateHistory: t1 writes x=1 and t2 writes x=2 later in the same
// session, and t3 writes x=3 in a second session. Of the three WW conflicts,
// (t1,t2) is already forced by session order, so pruning should resolve it
// without ever reaching the solver.
func buildLostUpdateHistory(t *testing.T) (*history.History[string, int], []constraint.SIConstraint[string, int], *graph.KnownGraph[string, int]) {
	t.Helper()
	b := history.NewBuilder[string, int]()
	s := b.Session(0)

	t1, err := b.Transaction(s, 1)
	require.NoError(t, err)
	b.Write(t1, "x", 1)
	require.NoError(t, t1.Commit())

	t2, err := b.Transaction(s, 2)
	require.NoError(t, err)
	b.Write(t2, "x", 2)
	require.NoError(t, t2.Commit())

	s2 := b.Session(1)
	t3, err := b.Transaction(s2, 3)
	require.NoError(t, err)
	b.Write(t3, "x", 3)
	require.NoError(t, t3.Commit())

	h := b.Build()
	g := graph.Build(h)
	cs := constraint.Generate(h, g, constraint.DefaultConfig())
	return h, cs, g
}

func TestPrunerResolvesSessionOrderedConflict(t *testing.T) {
	h, cs, g := buildLostUpdateHistory(t)
	require.NotEmpty(t, cs)

	p := New[string, int](DefaultConfig(), nil)
	remaining, cycle := p.Prune(g, cs, h, nil)

	assert.False(t, cycle)
	assert.True(t, g.GraphA.HasEdgeConnecting(mustTxn(h, 1), mustTxn(h, 2)), "session order WW conflict between t1,t2 should already exist")
	assert.Less(t, len(remaining), len(cs), "pruning should resolve at least the session-ordered pair")
}

func TestPrunerDisabledReturnsConstraintsUnchanged(t *testing.T) {
	h, cs, g := buildLostUpdateHistory(t)

	p := New[string, int](Config{Enabled: false}, nil)
	remaining, cycle := p.Prune(g, cs, h, nil)

	assert.False(t, cycle)
	assert.Equal(t, len(cs), len(remaining))
}

func TestPrunerReportsRoundStats(t *testing.T) {
	h, cs, g := buildLostUpdateHistory(t)

	p := New[string, int](DefaultConfig(), nil)
	var rounds []RoundStats
	p.Prune(g, cs, h, func(rs RoundStats) {
		rounds = append(rounds, rs)
	})

	require.NotEmpty(t, rounds)
	assert.Equal(t, 1, rounds[0].Round)
}

func mustTxn(h *history.History[string, int], id int64) *history.Transaction[string, int] {
	t, _ := h.Transaction(id)
	return t
}
