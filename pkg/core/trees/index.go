// Package trees answers ancestry queries against an interval ancestry
// record: who is the parent of a node at a genomic position, who is the
// most recent common ancestor of two nodes there, and what does the local
// tree look like on each interval between recombination breakpoints.
package trees

import (
	"math"

	"github.com/tidwall/btree"

	"github.com/sanonone/pedigree/pkg/core/tables"
)

// Index answers position queries over a record. It does not require the
// edge table to be sorted: edges are bucketed per child into an ordered
// interval map keyed by the left coordinate.
type Index struct {
	col     *tables.Collection
	byChild map[tables.NodeID]*btree.BTreeG[tables.Edge]
}

// NewIndex builds the per-child interval maps for col. The record is held
// by reference and must not be mutated while the index is in use.
func NewIndex(col *tables.Collection) *Index {
	ix := &Index{
		col:     col,
		byChild: make(map[tables.NodeID]*btree.BTreeG[tables.Edge]),
	}
	for _, e := range col.Edges {
		tr, ok := ix.byChild[e.Child]
		if !ok {
			tr = btree.NewBTreeG[tables.Edge](func(a, b tables.Edge) bool {
				return a.Left < b.Left
			})
			ix.byChild[e.Child] = tr
		}
		tr.Set(e)
	}
	return ix
}

// Collection returns the underlying record.
func (ix *Index) Collection() *tables.Collection {
	return ix.col
}

// ParentAt returns the parent of u at position x, or tables.Null if no
// edge with child u covers x (u is a founder there). Intervals are
// half-open: an edge covers x when Left <= x < Right.
func (ix *Index) ParentAt(u tables.NodeID, x float64) tables.NodeID {
	tr, ok := ix.byChild[u]
	if !ok {
		return tables.Null
	}
	parent := tables.Null
	tr.Descend(tables.Edge{Left: x, Right: math.Inf(1)}, func(e tables.Edge) bool {
		if e.Left <= x && x < e.Right {
			parent = e.Parent
		}
		return false // only the nearest left endpoint can cover x
	})
	return parent
}

// MRCAAt returns the most recent common ancestor of u and v at position x,
// or tables.Null if their ancestor walks never meet. The ascent terminates
// because parent time strictly increases along every edge.
func (ix *Index) MRCAAt(u, v tables.NodeID, x float64) tables.NodeID {
	if u == v {
		return u
	}
	seen := map[tables.NodeID]bool{u: true}
	for w := ix.ParentAt(u, x); w != tables.Null; w = ix.ParentAt(w, x) {
		seen[w] = true
	}
	for w := v; w != tables.Null; w = ix.ParentAt(w, x) {
		if seen[w] {
			return w
		}
	}
	return tables.Null
}
