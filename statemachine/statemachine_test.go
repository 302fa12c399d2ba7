package statemachine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func txnMachine() *Machine {
	return New("ONGOING", []Transition{
		{From: "ONGOING", Event: "COMMIT", To: "COMMIT"},
	})
}

func TestMachineDefaultState(t *testing.T) {
	m := txnMachine()
	assert.Equal(t, "ONGOING", m.Current("t1"))
}

func TestMachineApplyValidTransition(t *testing.T) {
	m := txnMachine()
	next, err := m.Apply("t1", "COMMIT")
	require.NoError(t, err)
	assert.Equal(t, "COMMIT", next)
	assert.Equal(t, "COMMIT", m.Current("t1"))
}

func TestMachineApplyInvalidTransition(t *testing.T) {
	m := txnMachine()
	_, err := m.Apply("t1", "COMMIT")
	require.NoError(t, err)

	_, err = m.Apply("t1", "COMMIT")
	assert.Error(t, err, "committing an already-committed transaction must be rejected")
}

func TestMachineIsolatesSubjects(t *testing.T) {
	m := txnMachine()
	_, err := m.Apply("t1", "COMMIT")
	require.NoError(t, err)

	assert.Equal(t, "ONGOING", m.Current("t2"), "subjects must not share state")
}

func TestMachineReset(t *testing.T) {
	m := txnMachine()
	_, err := m.Apply("t1", "COMMIT")
	require.NoError(t, err)

	m.Reset("t1")
	assert.Equal(t, "ONGOING", m.Current("t1"))
}
