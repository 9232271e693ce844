package simplify

import (
	"sort"

	"github.com/sanonone/pedigree/pkg/core/mutate"
	"github.com/sanonone/pedigree/pkg/core/tables"
	"github.com/sanonone/pedigree/pkg/core/trees"
)

// referenceSimplify is an independent implementation of the simplification
// contract used to cross-check Simplify. Instead of propagating ancestral
// segments through the edge table, it materializes the restricted forest
// on every interval between breakpoints and keeps samples plus every node
// where at least two sample lineages meet. Both implementations must
// produce byte-identical tables and node maps.
func referenceSimplify(col *tables.Collection, samples []tables.NodeID, filterSites bool) (*tables.Collection, []tables.NodeID) {
	L := col.SequenceLength
	out := tables.New(L)
	out.Populations = col.Populations

	nodeMap := make([]tables.NodeID, len(col.Nodes))
	isSample := make([]bool, len(col.Nodes))
	for i := range nodeMap {
		nodeMap[i] = tables.Null
	}
	for _, s := range samples {
		n := col.Nodes[s]
		nodeMap[s] = out.AddNode(n.Flags|tables.NodeIsSample, n.Time, n.Population)
		isSample[s] = true
	}

	bps := refBreakpoints(col)
	forests := make([]*refForest, 0, len(bps)-1)
	for i := 0; i+1 < len(bps); i++ {
		forests = append(forests, buildForest(col, samples, bps[i]))
	}

	// Allocate the coalescence nodes in ascending (time, id) order: the
	// order in which the canonical edge table presents parents.
	keptSet := make(map[tables.NodeID]bool)
	for _, f := range forests {
		for u := range f.inTree {
			if !isSample[u] && len(f.children[u]) >= 2 {
				keptSet[u] = true
			}
		}
	}
	kept := make([]tables.NodeID, 0, len(keptSet))
	for u := range keptSet {
		kept = append(kept, u)
	}
	sort.Slice(kept, func(i, j int) bool {
		ti, tj := col.Nodes[kept[i]].Time, col.Nodes[kept[j]].Time
		if ti != tj {
			return ti < tj
		}
		return kept[i] < kept[j]
	})
	for _, u := range kept {
		n := col.Nodes[u]
		nodeMap[u] = out.AddNode(n.Flags&^tables.NodeIsSample, n.Time, n.Population)
	}

	// Edges: on each interval, every locally-kept node attaches to its
	// nearest locally-kept ancestor.
	type pair struct{ parent, child tables.NodeID }
	type iv struct{ left, right float64 }
	raw := make(map[pair][]iv)
	for i, f := range forests {
		l, r := bps[i], bps[i+1]
		for u := range f.inTree {
			if !f.keptHere(u, isSample) {
				continue
			}
			w, ok := f.parent[u]
			for ok && !f.keptHere(w, isSample) {
				w, ok = f.parent[w]
			}
			if ok {
				p := pair{nodeMap[w], nodeMap[u]}
				raw[p] = append(raw[p], iv{l, r})
			}
		}
	}
	for p, ivs := range raw {
		sort.Slice(ivs, func(i, j int) bool { return ivs[i].left < ivs[j].left })
		merged := ivs[:1]
		for _, s := range ivs[1:] {
			last := &merged[len(merged)-1]
			if s.left == last.right {
				last.right = s.right
				continue
			}
			merged = append(merged, s)
		}
		for _, s := range merged {
			out.AddEdge(s.left, s.right, p.parent, p.child)
		}
	}

	// Mutations descend single-lineage chains to the retained node that
	// inherited the material carrying them.
	siteHasMut := make([]bool, len(col.Sites))
	type mapped struct {
		oldSite int32
		node    tables.NodeID
		derived string
		time    float64
	}
	var keptMuts []mapped
	for _, m := range col.Mutations {
		pos := col.Sites[m.Site].Position
		f := forests[refIntervalIndex(bps, pos)]
		if !f.inTree[m.Node] {
			continue
		}
		w := m.Node
		for !f.keptHere(w, isSample) {
			w = f.children[w][0]
		}
		siteHasMut[m.Site] = true
		keptMuts = append(keptMuts, mapped{m.Site, nodeMap[w], m.DerivedState, m.Time})
	}
	siteMap := make([]int32, len(col.Sites))
	for i, site := range col.Sites {
		if filterSites && !siteHasMut[i] {
			siteMap[i] = -1
			continue
		}
		siteMap[i] = out.AddSite(site.Position, site.AncestralState)
	}
	for _, m := range keptMuts {
		out.AddMutation(siteMap[m.oldSite], m.node, m.derived, tables.NullMutation, m.time)
	}

	out.Sort()
	if len(out.Mutations) > 0 {
		ts, err := trees.NewSequence(out)
		if err != nil {
			panic("referenceSimplify produced an inconsistent record: " + err.Error())
		}
		parents := mutate.ComputeMutationParent(ts)
		for i := range out.Mutations {
			out.Mutations[i].Parent = parents[i]
		}
	}
	return out, nodeMap
}

// refForest is the forest restricted to the chosen samples on one
// interval.
type refForest struct {
	parent   map[tables.NodeID]tables.NodeID
	children map[tables.NodeID][]tables.NodeID
	inTree   map[tables.NodeID]bool
}

// keptHere reports whether u survives simplification on this interval:
// it is a chosen sample or at least two sample lineages meet in it.
func (f *refForest) keptHere(u tables.NodeID, isSample []bool) bool {
	return isSample[u] || len(f.children[u]) >= 2
}

func buildForest(col *tables.Collection, samples []tables.NodeID, x float64) *refForest {
	full := make(map[tables.NodeID]tables.NodeID)
	for _, e := range col.Edges {
		if e.Left <= x && x < e.Right {
			full[e.Child] = e.Parent
		}
	}
	f := &refForest{
		parent:   make(map[tables.NodeID]tables.NodeID),
		children: make(map[tables.NodeID][]tables.NodeID),
		inTree:   make(map[tables.NodeID]bool),
	}
	for _, s := range samples {
		u := s
		for !f.inTree[u] {
			f.inTree[u] = true
			p, ok := full[u]
			if !ok {
				break
			}
			f.parent[u] = p
			f.children[p] = append(f.children[p], u)
			u = p
		}
	}
	return f
}

func refBreakpoints(col *tables.Collection) []float64 {
	set := map[float64]bool{0: true, col.SequenceLength: true}
	for _, e := range col.Edges {
		set[e.Left] = true
		set[e.Right] = true
	}
	out := make([]float64, 0, len(set))
	for b := range set {
		out = append(out, b)
	}
	sort.Float64s(out)
	return out
}

func refIntervalIndex(bps []float64, x float64) int {
	i := sort.SearchFloat64s(bps, x)
	if i == len(bps) || bps[i] > x {
		i--
	}
	if i >= len(bps)-1 {
		i = len(bps) - 2
	}
	return i
}
