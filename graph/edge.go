// Package graph builds and reasons about the precedence graph extracted
// from a history: known session-order/write-read edges (spec.md §4.2), the
// write-write/read-write edges contributed by constraint solving, and the
// bitmap-backed reachability engine used to prune and encode those edges
// (spec.md §4.3–§4.4).
package graph

// EdgeType classifies a precedence edge.
type EdgeType int

const (
	// SO is a session-order edge: the source transaction committed before
	// the target transaction in the same session.
	SO EdgeType = iota
	// WR is a write-read (reads-from) edge.
	WR
	// WW is a write-write edge: source transaction's write to a key is
	// overwritten by the target transaction's write to the same key.
	WW
	// RW is a read-write (anti-dependency) edge: the source transaction
	// read a version of a key that the target transaction overwrote.
	RW
)

func (t EdgeType) String() string {
	switch t {
	case SO:
		return "SO"
	case WR:
		return "WR"
	case WW:
		return "WW"
	case RW:
		return "RW"
	default:
		return "UNKNOWN"
	}
}

// Edge labels a precedence edge with its type and, for WR/WW/RW edges, the
// key that produced it. SO edges carry no key.
type Edge[K comparable] struct {
	Type   EdgeType
	Key    K
	HasKey bool
}

// NewKeyedEdge builds a WR/WW/RW edge over key.
func NewKeyedEdge[K comparable](t EdgeType, key K) Edge[K] {
	return Edge[K]{Type: t, Key: key, HasKey: true}
}

// NewSessionEdge builds a keyless SO edge.
func NewSessionEdge[K comparable]() Edge[K] {
	return Edge[K]{Type: SO}
}
