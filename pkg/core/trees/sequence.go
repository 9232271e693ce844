package trees

import (
	"fmt"
	"sort"

	"github.com/sanonone/pedigree/pkg/core/tables"
)

// TreeSequence is a record viewed as the sequence of local genealogical
// trees between recombination breakpoints. Building one requires the edge
// table in canonical sort order.
type TreeSequence struct {
	col         *tables.Collection
	ix          *Index
	breakpoints []float64
	samples     []tables.NodeID
}

// NewSequence validates the sort-order precondition and prepares the
// breakpoint list and query index.
func NewSequence(col *tables.Collection) (*TreeSequence, error) {
	if !col.EdgesSorted() {
		return nil, fmt.Errorf("trees: edge table is not in canonical sort order")
	}
	bps := map[float64]bool{0: true, col.SequenceLength: true}
	for _, e := range col.Edges {
		bps[e.Left] = true
		bps[e.Right] = true
	}
	sorted := make([]float64, 0, len(bps))
	for bp := range bps {
		sorted = append(sorted, bp)
	}
	sort.Float64s(sorted)
	return &TreeSequence{
		col:         col,
		ix:          NewIndex(col),
		breakpoints: sorted,
		samples:     col.Samples(),
	}, nil
}

// Collection returns the underlying record.
func (ts *TreeSequence) Collection() *tables.Collection { return ts.col }

// Index returns the position-query index over the record.
func (ts *TreeSequence) Index() *Index { return ts.ix }

// Samples returns the sample node ids in id order.
func (ts *TreeSequence) Samples() []tables.NodeID {
	return append([]tables.NodeID(nil), ts.samples...)
}

// Breakpoints returns the sorted distinct tree boundaries, including 0 and
// the sequence length.
func (ts *TreeSequence) Breakpoints() []float64 {
	return append([]float64(nil), ts.breakpoints...)
}

// NumTrees returns the number of distinct local trees.
func (ts *TreeSequence) NumTrees() int {
	return len(ts.breakpoints) - 1
}

// TreeAt returns the local tree whose interval contains x.
func (ts *TreeSequence) TreeAt(x float64) *Tree {
	// Largest breakpoint <= x.
	i := sort.SearchFloat64s(ts.breakpoints, x)
	if i == len(ts.breakpoints) || ts.breakpoints[i] > x {
		i--
	}
	if i >= len(ts.breakpoints)-1 {
		i = len(ts.breakpoints) - 2
	}
	return ts.buildTree(ts.breakpoints[i], ts.breakpoints[i+1])
}

// Trees returns every local tree in left-to-right order.
func (ts *TreeSequence) Trees() []*Tree {
	out := make([]*Tree, 0, ts.NumTrees())
	for i := 0; i+1 < len(ts.breakpoints); i++ {
		out = append(out, ts.buildTree(ts.breakpoints[i], ts.breakpoints[i+1]))
	}
	return out
}

func (ts *TreeSequence) buildTree(left, right float64) *Tree {
	t := &Tree{
		Left:     left,
		Right:    right,
		seq:      ts,
		parent:   make(map[tables.NodeID]tables.NodeID),
		children: make(map[tables.NodeID][]tables.NodeID),
		inTree:   make(map[tables.NodeID]bool),
	}
	fullParent := make(map[tables.NodeID]tables.NodeID)
	for _, e := range ts.col.Edges {
		if e.Left <= left && left < e.Right {
			fullParent[e.Child] = e.Parent
		}
	}
	// Restrict to nodes on a path from a sample to its root; everything
	// else is non-ancestral material at this position.
	var roots []tables.NodeID
	seenRoot := make(map[tables.NodeID]bool)
	for _, s := range ts.samples {
		u := s
		for {
			if t.inTree[u] {
				break
			}
			t.inTree[u] = true
			p, ok := fullParent[u]
			if !ok {
				if !seenRoot[u] {
					seenRoot[u] = true
					roots = append(roots, u)
				}
				break
			}
			t.parent[u] = p
			t.children[p] = append(t.children[p], u)
			u = p
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })
	t.roots = roots
	return t
}

// Tree is one local genealogy over [Left, Right).
type Tree struct {
	Left  float64
	Right float64

	seq      *TreeSequence
	parent   map[tables.NodeID]tables.NodeID
	children map[tables.NodeID][]tables.NodeID
	inTree   map[tables.NodeID]bool
	roots    []tables.NodeID
}

// Parent returns u's parent in this tree, or tables.Null.
func (t *Tree) Parent(u tables.NodeID) tables.NodeID {
	if p, ok := t.parent[u]; ok {
		return p
	}
	return tables.Null
}

// Children returns u's children in this tree.
func (t *Tree) Children(u tables.NodeID) []tables.NodeID {
	return t.children[u]
}

// Roots returns the root of every sample's ascent, in id order.
func (t *Tree) Roots() []tables.NodeID {
	return append([]tables.NodeID(nil), t.roots...)
}

// Nodes returns every node ancestral to a sample at this position.
func (t *Tree) Nodes() []tables.NodeID {
	out := make([]tables.NodeID, 0, len(t.inTree))
	for u := range t.inTree {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Contains reports whether u is ancestral to a sample at this position.
func (t *Tree) Contains(u tables.NodeID) bool {
	return t.inTree[u]
}

// IsInternal reports whether u has children in this tree.
func (t *Tree) IsInternal(u tables.NodeID) bool {
	return len(t.children[u]) > 0
}

// Leaves returns the childless nodes in the subtree rooted at u.
func (t *Tree) Leaves(u tables.NodeID) []tables.NodeID {
	var out []tables.NodeID
	var walk func(v tables.NodeID)
	walk = func(v tables.NodeID) {
		kids := t.children[v]
		if len(kids) == 0 {
			out = append(out, v)
			return
		}
		for _, k := range kids {
			walk(k)
		}
	}
	walk(u)
	return out
}

// SamplesUnder returns the sample nodes in the subtree rooted at u,
// including u itself if it is a sample.
func (t *Tree) SamplesUnder(u tables.NodeID) []tables.NodeID {
	var out []tables.NodeID
	var walk func(v tables.NodeID)
	walk = func(v tables.NodeID) {
		if t.seq.col.Nodes[v].IsSample() {
			out = append(out, v)
		}
		for _, k := range t.children[v] {
			walk(k)
		}
	}
	walk(u)
	return out
}

// MRCA returns the most recent common ancestor of u and v in this tree,
// or tables.Null if they sit in different root subtrees.
func (t *Tree) MRCA(u, v tables.NodeID) tables.NodeID {
	if u == v {
		return u
	}
	seen := map[tables.NodeID]bool{u: true}
	for w, ok := t.parent[u]; ok; w, ok = t.parent[w] {
		seen[w] = true
	}
	for w := v; ; {
		if seen[w] {
			return w
		}
		p, ok := t.parent[w]
		if !ok {
			return tables.Null
		}
		w = p
	}
}
