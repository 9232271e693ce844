// Package mutate overlays variant sites and mutations on an ancestry
// record, and recomputes derived mutation columns for verification.
package mutate

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sanonone/pedigree/pkg/core/tables"
	"github.com/sanonone/pedigree/pkg/core/trees"
)

// states is the Jukes-Cantor alphabet. Every mutation moves to one of the
// three states different from the current one, uniformly.
var states = []string{"0", "1", "2", "3"}

// JukesCantor returns a copy of the record behind ts with numSites evenly
// spaced sites (ancestral state "0") and mutations placed on the local tree
// branches: the count on a branch is Poisson(mu * branch length), each
// mutation gets an explicit time on its branch, and parent mutation indices
// are recorded during the top-down application.
func JukesCantor(ts *trees.TreeSequence, numSites int, mu float64, seed uint64) (*tables.Collection, error) {
	if numSites < 1 {
		return nil, fmt.Errorf("mutate: numSites must be >= 1, got %d", numSites)
	}
	col := ts.Collection().Copy()
	col.Sites = nil
	col.Mutations = nil

	src := rand.NewPCG(seed, seed)
	rng := rand.New(src)
	L := col.SequenceLength

	for j := 0; j < numSites; j++ {
		pos := L * float64(j) / float64(numSites)
		siteID := col.AddSite(pos, states[0])
		tree := ts.TreeAt(pos)

		var walk func(u tables.NodeID, state string, parentMut int32)
		walk = func(u tables.NodeID, state string, parentMut int32) {
			for _, c := range tree.Children(u) {
				top := col.Nodes[u].Time
				bottom := col.Nodes[c].Time
				cState, cParent := state, parentMut
				if lam := mu * (top - bottom); lam > 0 {
					k := int(distuv.Poisson{Lambda: lam, Src: src}.Rand())
					times := make([]float64, k)
					for i := range times {
						times[i] = bottom + rng.Float64()*(top-bottom)
					}
					// Oldest first: each mutation overrides the previous.
					sort.Sort(sort.Reverse(sort.Float64Slice(times)))
					for _, mt := range times {
						cState = otherState(rng, cState)
						cParent = col.AddMutation(siteID, c, cState, cParent, mt)
					}
				}
				walk(c, cState, cParent)
			}
		}
		for _, root := range tree.Roots() {
			walk(root, states[0], tables.NullMutation)
		}
	}

	col.RecordProvenance(fmt.Sprintf(
		"mutate.JukesCantor num_sites=%d mu=%g seed=%d", numSites, mu, seed))
	return col, nil
}

func otherState(rng *rand.Rand, current string) string {
	cur := 0
	for i, s := range states {
		if s == current {
			cur = i
			break
		}
	}
	next := rng.IntN(len(states) - 1)
	if next >= cur {
		next++
	}
	return states[next]
}
