package trees

import (
	"strings"

	"github.com/sanonone/pedigree/pkg/core/tables"
)

// Haplotypes derives, for every sample, the string of observed states at
// each site in table order. The state observed at a sample is the derived
// state of the newest mutation on the nearest node at or above it at the
// site position, or the ancestral state when no such mutation exists.
func (ts *TreeSequence) Haplotypes() map[tables.NodeID]string {
	perSite := make(map[int32]map[tables.NodeID][]int32)
	for i, m := range ts.col.Mutations {
		byNode, ok := perSite[m.Site]
		if !ok {
			byNode = make(map[tables.NodeID][]int32)
			perSite[m.Site] = byNode
		}
		byNode[m.Node] = append(byNode[m.Node], int32(i))
	}

	out := make(map[tables.NodeID]string, len(ts.samples))
	var sb strings.Builder
	for _, s := range ts.samples {
		sb.Reset()
		for siteIdx, site := range ts.col.Sites {
			sb.WriteString(ts.stateAt(s, site, perSite[int32(siteIdx)]))
		}
		out[s] = sb.String()
	}
	return out
}

func (ts *TreeSequence) stateAt(u tables.NodeID, site tables.Site, byNode map[tables.NodeID][]int32) string {
	for w := u; w != tables.Null; w = ts.ix.ParentAt(w, site.Position) {
		muts := byNode[w]
		if len(muts) == 0 {
			continue
		}
		// Newest mutation on this node wins; ties resolve to the one
		// recorded last.
		best := muts[0]
		for _, idx := range muts[1:] {
			if ts.col.Mutations[idx].Time <= ts.col.Mutations[best].Time {
				best = idx
			}
		}
		return ts.col.Mutations[best].DerivedState
	}
	return site.AncestralState
}
