// Package simplify reduces an ancestry record to the material relevant to
// a chosen set of samples, relabeling the retained nodes.
//
// The algorithm propagates ancestral segments from the samples upward
// through the edge table in ascending parent-time order. A parent that
// merges two or more sample lineages anywhere on the genome receives an
// output node; material carried by a single lineage passes through without
// one. The resulting record preserves MRCA structure and per-site derived
// states for every sample, which is exactly what the verify package checks.
package simplify

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/sanonone/pedigree/pkg/core/mutate"
	"github.com/sanonone/pedigree/pkg/core/tables"
	"github.com/sanonone/pedigree/pkg/core/trees"
	"github.com/sanonone/pedigree/pkg/metrics"
)

// Options controls simplification behavior.
type Options struct {
	// FilterSites drops sites left without mutations. Haplotype
	// comparisons across a simplification need it off so the site tables
	// stay aligned.
	FilterSites bool
}

// Result is a simplified record plus the relabeling that produced it:
// NodeMap[input id] is the output id, or tables.Null for pruned nodes.
type Result struct {
	Tables  *tables.Collection
	NodeMap []tables.NodeID
}

// segment maps the genomic interval [left, right) of some input lineage to
// the output node currently representing it.
type segment struct {
	left  float64
	right float64
	node  tables.NodeID
}

// Simplify reduces col to the ancestry of samples. The edge table must be
// in canonical sort order (ascending parent time); the output record is
// returned in canonical order with mutation parents recomputed.
func Simplify(col *tables.Collection, samples []tables.NodeID, opts Options) (*Result, error) {
	if !col.EdgesSorted() {
		return nil, fmt.Errorf("simplify: edge table is not in canonical sort order")
	}
	L := col.SequenceLength
	out := tables.New(L)
	out.Populations = col.Populations

	nodeMap := make([]tables.NodeID, len(col.Nodes))
	isSample := make([]bool, len(col.Nodes))
	for i := range nodeMap {
		nodeMap[i] = tables.Null
	}
	ancestry := make([][]segment, len(col.Nodes))
	for _, s := range samples {
		if nodeMap[s] != tables.Null {
			return nil, fmt.Errorf("simplify: duplicate sample node %d", s)
		}
		n := col.Nodes[s]
		nodeMap[s] = out.AddNode(n.Flags|tables.NodeIsSample, n.Time, n.Population)
		isSample[s] = true
		ancestry[s] = []segment{{0, L, nodeMap[s]}}
	}

	for i := 0; i < len(col.Edges); {
		j := i
		parent := col.Edges[i].Parent
		for j < len(col.Edges) && col.Edges[j].Parent == parent {
			j++
		}
		processParent(col, out, nodeMap, isSample, ancestry, parent, col.Edges[i:j])
		i = j
	}

	mapMutations(col, out, ancestry, opts)
	out.Sort()
	if len(out.Mutations) > 0 {
		ts, err := trees.NewSequence(out)
		if err != nil {
			return nil, fmt.Errorf("simplify: output record is inconsistent: %w", err)
		}
		parents := mutate.ComputeMutationParent(ts)
		for i := range out.Mutations {
			out.Mutations[i].Parent = parents[i]
		}
	}

	out.RecordProvenance(fmt.Sprintf("simplify.Simplify samples=%d filter_sites=%t",
		len(samples), opts.FilterSites))
	metrics.SimplificationsTotal.Inc()
	slog.Debug("record simplified",
		"input_nodes", len(col.Nodes), "output_nodes", len(out.Nodes),
		"input_edges", len(col.Edges), "output_edges", len(out.Edges))
	return &Result{Tables: out, NodeMap: nodeMap}, nil
}

// processParent consumes one parent's edge run: intersects each child edge
// with the child's current ancestry, sweeps the boundary intervals, records
// output edges wherever lineages coalesce (always, for sample parents), and
// passes single-lineage material through.
func processParent(col, out *tables.Collection, nodeMap []tables.NodeID, isSample []bool,
	ancestry [][]segment, parent tables.NodeID, edges []tables.Edge) {

	var segs []segment
	for _, e := range edges {
		for _, seg := range ancestry[e.Child] {
			l, r := e.Left, e.Right
			if seg.left > l {
				l = seg.left
			}
			if seg.right < r {
				r = seg.right
			}
			if l < r {
				segs = append(segs, segment{l, r, seg.node})
			}
		}
	}
	if len(segs) == 0 {
		return
	}

	boundSet := make(map[float64]bool)
	for _, s := range segs {
		boundSet[s.left] = true
		boundSet[s.right] = true
	}
	bounds := make([]float64, 0, len(boundSet))
	for b := range boundSet {
		bounds = append(bounds, b)
	}
	sort.Float64s(bounds)

	var newAncestry []segment
	var buffered []tables.Edge
	pn := col.Nodes[parent]
	for i := 0; i+1 < len(bounds); i++ {
		l, r := bounds[i], bounds[i+1]
		var cover []tables.NodeID
		for _, s := range segs {
			if s.left <= l && r <= s.right {
				cover = append(cover, s.node)
			}
		}
		switch {
		case len(cover) == 0:
			// Gap in the ancestral material.
		case isSample[parent]:
			// A sample parent absorbs everything it transmits.
			for _, c := range cover {
				buffered = append(buffered, tables.Edge{Left: l, Right: r, Parent: nodeMap[parent], Child: c})
			}
		case len(cover) == 1:
			newAncestry = append(newAncestry, segment{l, r, cover[0]})
		default:
			if nodeMap[parent] == tables.Null {
				// Sample status in the output is decided by the samples
				// argument alone, not by the input flags.
				nodeMap[parent] = out.AddNode(pn.Flags&^tables.NodeIsSample, pn.Time, pn.Population)
			}
			for _, c := range cover {
				buffered = append(buffered, tables.Edge{Left: l, Right: r, Parent: nodeMap[parent], Child: c})
			}
			newAncestry = append(newAncestry, segment{l, r, nodeMap[parent]})
		}
	}
	if !isSample[parent] {
		ancestry[parent] = squashSegments(newAncestry)
	}
	flushEdges(out, buffered)
}

// squashSegments merges contiguous segments mapped to the same output node.
func squashSegments(segs []segment) []segment {
	if len(segs) == 0 {
		return nil
	}
	out := segs[:1]
	for _, s := range segs[1:] {
		last := &out[len(out)-1]
		if last.node == s.node && last.right == s.left {
			last.right = s.right
			continue
		}
		out = append(out, s)
	}
	return out
}

// flushEdges squashes one parent's buffered output edges and appends them.
func flushEdges(out *tables.Collection, buffered []tables.Edge) {
	sort.Slice(buffered, func(i, j int) bool {
		if buffered[i].Child != buffered[j].Child {
			return buffered[i].Child < buffered[j].Child
		}
		return buffered[i].Left < buffered[j].Left
	})
	for _, e := range buffered {
		n := len(out.Edges)
		if n > 0 {
			last := &out.Edges[n-1]
			if last.Parent == e.Parent && last.Child == e.Child && last.Right == e.Left {
				last.Right = e.Right
				continue
			}
		}
		out.Edges = append(out.Edges, e)
	}
}

// mapMutations carries each mutation to the output node that inherited the
// segment containing its site, dropping mutations on material no sample
// inherits and, with FilterSites, sites left empty.
func mapMutations(col, out *tables.Collection, ancestry [][]segment, opts Options) {
	type mapped struct {
		oldSite int32
		node    tables.NodeID
		derived string
		time    float64
	}
	var kept []mapped
	siteHasMut := make([]bool, len(col.Sites))
	for _, m := range col.Mutations {
		pos := col.Sites[m.Site].Position
		node := tables.Null
		for _, seg := range ancestry[m.Node] {
			if seg.left <= pos && pos < seg.right {
				node = seg.node
				break
			}
		}
		if node == tables.Null {
			continue
		}
		siteHasMut[m.Site] = true
		kept = append(kept, mapped{m.Site, node, m.DerivedState, m.Time})
	}

	siteMap := make([]int32, len(col.Sites))
	for i, site := range col.Sites {
		if opts.FilterSites && !siteHasMut[i] {
			siteMap[i] = -1
			continue
		}
		siteMap[i] = out.AddSite(site.Position, site.AncestralState)
	}
	for _, m := range kept {
		out.AddMutation(siteMap[m.oldSite], m.node, m.derived, tables.NullMutation, m.time)
	}
}
