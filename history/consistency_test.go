package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSimpleHistory(t *testing.T) (*Builder[string, int], *History[string, int]) {
	t.Helper()
	b := NewBuilder[string, int]()
	s1 := b.Session(1)
	t1, err := b.Transaction(s1, 1)
	require.NoError(t, err)
	b.Write(t1, "x", 1)
	require.NoError(t, t1.Commit())

	t2, err := b.Transaction(s1, 2)
	require.NoError(t, err)
	b.Read(t2, "x", 1)
	require.NoError(t, t2.Commit())

	return b, b.Build()
}

func TestCheckInternalConsistencyAcceptsReadYourWrite(t *testing.T) {
	b := NewBuilder[string, int]()
	s1 := b.Session(1)
	t1, err := b.Transaction(s1, 1)
	require.NoError(t, err)
	b.Write(t1, "x", 1)
	b.Read(t1, "x", 1)
	require.NoError(t, t1.Commit())

	h := b.Build()
	assert.NoError(t, CheckInternalConsistency(h))
}

func TestCheckInternalConsistencyAcceptsCrossTransactionRead(t *testing.T) {
	_, h := buildSimpleHistory(t)
	assert.NoError(t, CheckInternalConsistency(h))
}

func TestCheckInternalConsistencyRejectsReadWithNoWrite(t *testing.T) {
	b := NewBuilder[string, int]()
	s1 := b.Session(1)
	t1, err := b.Transaction(s1, 1)
	require.NoError(t, err)
	b.Read(t1, "x", 42)
	require.NoError(t, t1.Commit())

	h := b.Build()
	err = CheckInternalConsistency(h)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no corresponding write")
}

func TestCheckInternalConsistencyRejectsStaleRead(t *testing.T) {
	b := NewBuilder[string, int]()
	s1 := b.Session(1)

	t1, err := b.Transaction(s1, 1)
	require.NoError(t, err)
	b.Write(t1, "x", 1)
	require.NoError(t, t1.Commit())

	t2, err := b.Transaction(s1, 2)
	require.NoError(t, err)
	b.Write(t2, "x", 2)
	require.NoError(t, t2.Commit())

	t3, err := b.Transaction(s1, 3)
	require.NoError(t, err)
	b.Read(t3, "x", 1) // stale: a later write to x (value 2) exists
	require.NoError(t, t3.Commit())

	h := b.Build()
	err = CheckInternalConsistency(h)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not reading from latest write")
}

func TestCheckInternalConsistencyRejectsReadOfFutureWriteInSameTransaction(t *testing.T) {
	b := NewBuilder[string, int]()
	s1 := b.Session(1)
	t1, err := b.Transaction(s1, 1)
	require.NoError(t, err)
	b.Read(t1, "x", 1)
	b.Write(t1, "x", 1)
	require.NoError(t, t1.Commit())

	h := b.Build()
	err = CheckInternalConsistency(h)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reads from a write after it")
}

func TestCheckInternalConsistencyAggregatesMultipleViolations(t *testing.T) {
	b := NewBuilder[string, int]()
	s1 := b.Session(1)
	t1, err := b.Transaction(s1, 1)
	require.NoError(t, err)
	b.Read(t1, "x", 1) // no write at all
	b.Read(t1, "y", 2) // no write at all
	require.NoError(t, t1.Commit())

	h := b.Build()
	err = CheckInternalConsistency(h)
	require.Error(t, err)

	merr, ok := err.(interface{ Unwrap() []error })
	_ = ok
	_ = merr
	assert.GreaterOrEqual(t, len(err.(interface{ WrappedErrors() []error }).WrappedErrors()), 2)
}

func TestOrderInSession(t *testing.T) {
	_, h := buildSimpleHistory(t)
	txns := h.Transactions()
	require.Len(t, txns, 2)
	assert.Equal(t, 0, h.OrderInSession(txns[0]))
	assert.Equal(t, 1, h.OrderInSession(txns[1]))
}
