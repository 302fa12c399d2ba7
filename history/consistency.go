package history

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
)

// CheckInternalConsistency verifies that every READ in h observes a value
// some WRITE produced, and that this WRITE is the right one (spec.md §4.1):
// when the reader's own transaction wrote the value, it must be that
// transaction's latest write to the key before the read; when another
// transaction wrote it, it must be that transaction's last write to the key.
// Writes to the same key by third transactions are not compared here.
//
// Unlike the single fail-fast boolean this check is modeled on, every
// violation found is collected and returned together via a *multierror.Error
// so a caller can report every inconsistency in one pass instead of only the
// first.
func CheckInternalConsistency[K comparable, V comparable](h *History[K, V]) error {
	type writeKey struct {
		Key   K
		Value V
	}
	type txnKey struct {
		Txn *Transaction[K, V]
		Key K
	}

	writes := make(map[writeKey]*Event[K, V])
	txnWrites := make(map[txnKey][]int)

	for _, t := range h.txnOrder {
		for _, e := range t.Events {
			if e.Type != Write {
				continue
			}
			writes[writeKey{e.Key, e.Value}] = e
			tk := txnKey{t, e.Key}
			txnWrites[tk] = append(txnWrites[tk], e.Index)
		}
	}

	var result *multierror.Error

	for _, t := range h.txnOrder {
		for _, e := range t.Events {
			if e.Type != Read {
				continue
			}

			writeEv, ok := writes[writeKey{e.Key, e.Value}]
			if !ok {
				result = multierror.Append(result, fmt.Errorf("%s has no corresponding write", describe(e)))
				continue
			}

			writeIndices := txnWrites[txnKey{writeEv.Txn, writeEv.Key}]
			j := sort.SearchInts(writeIndices, writeEv.Index)

			if writeEv.Txn == e.Txn {
				if j != len(writeIndices)-1 && writeIndices[j+1] < e.Index {
					result = multierror.Append(result, fmt.Errorf("%s not reading from latest write: %s", describe(e), describe(writeEv)))
				} else if writeEv.Index > e.Index {
					result = multierror.Append(result, fmt.Errorf("%s reads from a write after it: %s", describe(e), describe(writeEv)))
				}
			} else if j != len(writeIndices)-1 {
				result = multierror.Append(result, fmt.Errorf("%s not reading from latest write: %s", describe(e), describe(writeEv)))
			}
		}
	}

	return result.ErrorOrNil()
}

func describe[K comparable, V comparable](e *Event[K, V]) string {
	return fmt.Sprintf("%s %v=%v in %s", e.Type, e.Key, e.Value, e.Txn)
}
