package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbcop/siverify/history"
)

func buildTwoSessionHistory(t *testing.T) (*history.History[string, int], *history.Transaction[string, int], *history.Transaction[string, int], *history.Transaction[string, int]) {
	t.Helper()
	b := history.NewBuilder[string, int]()

	s1 := b.Session(1)
	t1, err := b.Transaction(s1, 1)
	require.NoError(t, err)
	b.Write(t1, "x", 1)
	require.NoError(t, t1.Commit())

	t2, err := b.Transaction(s1, 2)
	require.NoError(t, err)
	b.Read(t2, "x", 1)
	require.NoError(t, t2.Commit())

	s2 := b.Session(2)
	t3, err := b.Transaction(s2, 3)
	require.NoError(t, err)
	b.Write(t3, "x", 2)
	require.NoError(t, t3.Commit())

	return b.Build(), t1, t2, t3
}

func TestKnownGraphHasSessionOrderEdge(t *testing.T) {
	h, t1, t2, _ := buildTwoSessionHistory(t)
	g := Build(h)

	assert.True(t, g.GraphA.HasEdgeConnecting(t1, t2))
}

func TestKnownGraphHasWriteReadEdge(t *testing.T) {
	h, t1, t2, _ := buildTwoSessionHistory(t)
	g := Build(h)

	assert.True(t, g.ReadFrom.HasEdgeConnecting(t1, t2))
	assert.True(t, g.GraphA.HasEdgeConnecting(t1, t2))
}

func TestKnownGraphNoEdgeAcrossUnrelatedSessions(t *testing.T) {
	h, _, t2, t3 := buildTwoSessionHistory(t)
	g := Build(h)

	assert.False(t, g.GraphA.HasEdgeConnecting(t2, t3))
	assert.False(t, g.GraphA.HasEdgeConnecting(t3, t2))
}

func TestOrderInSession(t *testing.T) {
	h, t1, t2, t3 := buildTwoSessionHistory(t)
	order := OrderInSession(h)

	assert.Equal(t, 0, order[t1])
	assert.Equal(t, 1, order[t2])
	assert.Equal(t, 0, order[t3])
}

func TestReduceEdgesPreservesReachability(t *testing.T) {
	h, t1, t2, t3 := buildTwoSessionHistory(t)
	g := Build(h)

	matA := FromValueGraph(g.GraphA)
	order := OrderInSession(h)
	reduced := ReduceEdges(matA, order)

	full := matA.Reachability()
	small := reduced.Reachability()

	for _, n := range []*history.Transaction[string, int]{t1, t2, t3} {
		for _, m := range []*history.Transaction[string, int]{t1, t2, t3} {
			assert.Equal(t, full.HasEdgeConnecting(n, m), small.HasEdgeConnecting(n, m), "reachability must be preserved after reduction")
		}
	}
}
