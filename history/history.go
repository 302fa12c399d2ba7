// Package history defines the shared data model consumed by the SI
// checker: sessions of ordered transactions of ordered read/write events
// (spec.md §3), plus the internal-consistency check described in spec.md
// §4.1. External collaborators (loaders) are responsible for producing a
// *History; this package never reads a wire format itself.
package history

import (
	"fmt"
	"sync/atomic"

	"github.com/dbcop/siverify/statemachine"
)

// EventType distinguishes a READ from a WRITE event.
type EventType int

const (
	Read EventType = iota
	Write
)

func (t EventType) String() string {
	if t == Write {
		return "WRITE"
	}
	return "READ"
}

// Status is a Transaction's lifecycle state (spec.md §4.10). Abort is not
// modeled; verification requires every Transaction to reach Commit.
const (
	StatusOngoing = "ONGOING"
	StatusCommit  = "COMMIT"
)

var statusMachine = statemachine.New(StatusOngoing, []statemachine.Transition{
	{From: StatusOngoing, Event: "commit", To: StatusCommit},
})

// subjectSeq hands out process-wide unique statusMachine subject keys, since
// statusMachine is shared by every Transaction ever constructed and txnIDs
// are only unique within a single History.
var subjectSeq int64

func nextSubject() string {
	return fmt.Sprintf("txn-%d", atomic.AddInt64(&subjectSeq, 1))
}

// Event is one READ or WRITE of Key, value Value, within a Transaction.
type Event[K comparable, V comparable] struct {
	Type  EventType
	Key   K
	Value V

	// Index is this event's position within its own Transaction's event
	// list, needed by the internal-consistency "latest prior write" check.
	Index int

	Txn *Transaction[K, V]
}

// Transaction is an ordered list of Events belonging to one Session.
type Transaction[K comparable, V comparable] struct {
	ID      int64
	Session *Session[K, V]
	Events  []*Event[K, V]

	subject string // key into statusMachine, unique per transaction
}

// Status returns the transaction's current lifecycle state.
func (t *Transaction[K, V]) Status() string {
	return statusMachine.Current(t.subject)
}

// Commit transitions the transaction from ONGOING to COMMIT. It is an error
// to commit a transaction twice.
func (t *Transaction[K, V]) Commit() error {
	_, err := statusMachine.Apply(t.subject, "commit")
	return err
}

// Writes returns the transaction's WRITE events in order.
func (t *Transaction[K, V]) Writes() []*Event[K, V] {
	out := make([]*Event[K, V], 0, len(t.Events))
	for _, e := range t.Events {
		if e.Type == Write {
			out = append(out, e)
		}
	}
	return out
}

// Reads returns the transaction's READ events in order.
func (t *Transaction[K, V]) Reads() []*Event[K, V] {
	out := make([]*Event[K, V], 0, len(t.Events))
	for _, e := range t.Events {
		if e.Type == Read {
			out = append(out, e)
		}
	}
	return out
}

func (t *Transaction[K, V]) String() string {
	if t == nil {
		return "<nil txn>"
	}
	return fmt.Sprintf("T%d@S%d", t.ID, t.Session.ID)
}

// Session is one client's ordered stream of Transactions.
type Session[K comparable, V comparable] struct {
	ID           int64
	Transactions []*Transaction[K, V]

	order map[int64]int // transaction id -> position within this session
}

// OrderInSession returns txn's zero-based position in the session and
// whether txn belongs to this session at all.
func (s *Session[K, V]) OrderInSession(txnID int64) (int, bool) {
	pos, ok := s.order[txnID]
	return pos, ok
}

// History is an immutable (after Build) collection of Sessions together
// with id indices over Sessions and Transactions.
type History[K comparable, V comparable] struct {
	sessions    []*Session[K, V]
	sessionByID map[int64]*Session[K, V]
	txnByID     map[int64]*Transaction[K, V]
	txnOrder    []*Transaction[K, V] // flattened, session order then txn order
}

// Sessions returns every session in submission order.
func (h *History[K, V]) Sessions() []*Session[K, V] {
	return h.sessions
}

// Transactions returns every transaction, in (session order, txn-in-session
// order).
func (h *History[K, V]) Transactions() []*Transaction[K, V] {
	return h.txnOrder
}

// Transaction looks up a transaction by id.
func (h *History[K, V]) Transaction(id int64) (*Transaction[K, V], bool) {
	t, ok := h.txnByID[id]
	return t, ok
}

// Session looks up a session by id.
func (h *History[K, V]) Session(id int64) (*Session[K, V], bool) {
	s, ok := h.sessionByID[id]
	return s, ok
}

// Events returns every event across every transaction, transaction order
// preserved, event order within a transaction preserved.
func (h *History[K, V]) Events() []*Event[K, V] {
	var out []*Event[K, V]
	for _, t := range h.txnOrder {
		out = append(out, t.Events...)
	}
	return out
}

// OrderInSession returns the position of txn within its own session, the
// same position graph.OrderInSession records for the edge-reduction step
// (spec.md §4.4).
func (h *History[K, V]) OrderInSession(txn *Transaction[K, V]) int {
	pos, _ := txn.Session.OrderInSession(txn.ID)
	return pos
}
