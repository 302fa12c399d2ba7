package history

import "fmt"

// Builder assembles a History programmatically. Since concrete loaders are
// out of scope for this module (spec.md §1), Builder is the only supported
// way to construct a History: a loader collaborator builds one of these and
// hands the result to the core via the collab.HistoryLoader interface.
type Builder[K comparable, V comparable] struct {
	sessions    []*Session[K, V]
	sessionByID map[int64]*Session[K, V]
	txnByID     map[int64]*Transaction[K, V]
	txnOrder    []*Transaction[K, V]
}

// NewBuilder creates an empty Builder.
func NewBuilder[K comparable, V comparable]() *Builder[K, V] {
	return &Builder[K, V]{
		sessionByID: make(map[int64]*Session[K, V]),
		txnByID:     make(map[int64]*Transaction[K, V]),
	}
}

// Session returns the Session with the given id, creating it (in submission
// order) on first reference.
func (b *Builder[K, V]) Session(id int64) *Session[K, V] {
	if s, ok := b.sessionByID[id]; ok {
		return s
	}
	s := &Session[K, V]{ID: id, order: make(map[int64]int)}
	b.sessionByID[id] = s
	b.sessions = append(b.sessions, s)
	return s
}

// Transaction creates and appends a new transaction with id txnID to
// session. It is an error to reuse a txnID.
func (b *Builder[K, V]) Transaction(session *Session[K, V], txnID int64) (*Transaction[K, V], error) {
	if _, exists := b.txnByID[txnID]; exists {
		return nil, fmt.Errorf("history: duplicate transaction id %d", txnID)
	}
	t := &Transaction[K, V]{
		ID:      txnID,
		Session: session,
		subject: nextSubject(),
	}
	session.order[txnID] = len(session.Transactions)
	session.Transactions = append(session.Transactions, t)
	b.txnByID[txnID] = t
	b.txnOrder = append(b.txnOrder, t)
	return t, nil
}

// Read appends a READ event to txn.
func (b *Builder[K, V]) Read(txn *Transaction[K, V], key K, value V) {
	txn.Events = append(txn.Events, &Event[K, V]{
		Type:  Read,
		Key:   key,
		Value: value,
		Index: len(txn.Events),
		Txn:   txn,
	})
}

// Write appends a WRITE event to txn.
func (b *Builder[K, V]) Write(txn *Transaction[K, V], key K, value V) {
	txn.Events = append(txn.Events, &Event[K, V]{
		Type:  Write,
		Key:   key,
		Value: value,
		Index: len(txn.Events),
		Txn:   txn,
	})
}

// Build finalizes the History. The Builder must not be reused afterwards.
func (b *Builder[K, V]) Build() *History[K, V] {
	return &History[K, V]{
		sessions:    b.sessions,
		sessionByID: b.sessionByID,
		txnByID:     b.txnByID,
		txnOrder:    b.txnOrder,
	}
}
