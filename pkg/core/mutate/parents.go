package mutate

import (
	"sort"

	"github.com/sanonone/pedigree/pkg/core/tables"
	"github.com/sanonone/pedigree/pkg/core/trees"
)

// ComputeMutationParent independently derives the parent column of the
// mutation table: for each mutation, the mutation whose state it overrides.
// That is the next-older mutation on the same node at the same site, or the
// newest mutation at that site on the nearest ancestor carrying one.
func ComputeMutationParent(ts *trees.TreeSequence) []int32 {
	col := ts.Collection()
	parent := make([]int32, len(col.Mutations))
	for i := range parent {
		parent[i] = tables.NullMutation
	}

	perSite := make(map[int32]map[tables.NodeID][]int32)
	for i, m := range col.Mutations {
		byNode, ok := perSite[m.Site]
		if !ok {
			byNode = make(map[tables.NodeID][]int32)
			perSite[m.Site] = byNode
		}
		byNode[m.Node] = append(byNode[m.Node], int32(i))
	}

	ix := ts.Index()
	for siteIdx, byNode := range perSite {
		pos := col.Sites[siteIdx].Position
		// Oldest first within a node, preserving table order on ties.
		for _, muts := range byNode {
			sort.SliceStable(muts, func(i, j int) bool {
				return col.Mutations[muts[i]].Time > col.Mutations[muts[j]].Time
			})
		}
		for u, muts := range byNode {
			for k, idx := range muts {
				if k > 0 {
					parent[idx] = muts[k-1]
					continue
				}
				for w := ix.ParentAt(u, pos); w != tables.Null; w = ix.ParentAt(w, pos) {
					if above := byNode[w]; len(above) > 0 {
						parent[idx] = above[len(above)-1] // newest on that node
						break
					}
				}
			}
		}
	}
	return parent
}
