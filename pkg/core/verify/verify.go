// Package verify checks the invariants that relate an ancestry record to
// its simplified form: full ancestral coverage, MRCA correspondence under
// the node relabeling, mutation parent consistency and haplotype
// invariance. A returned error is an invariant violation and is fatal to
// the verification run; it never indicates a recoverable condition.
package verify

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/sanonone/pedigree/pkg/core/mutate"
	"github.com/sanonone/pedigree/pkg/core/simplify"
	"github.com/sanonone/pedigree/pkg/core/tables"
	"github.com/sanonone/pedigree/pkg/core/trees"
)

// Coverage checks that every node with time at most maxTime has inbound
// edges tiling [0, L) exactly: no gaps, no overlaps, full extent. Nodes
// above maxTime are founders or deep-history material and carry no
// obligation.
func Coverage(col *tables.Collection, maxTime float64) error {
	type iv struct{ left, right float64 }
	inbound := make(map[tables.NodeID][]iv)
	for _, e := range col.Edges {
		inbound[e.Child] = append(inbound[e.Child], iv{e.Left, e.Right})
	}
	for i, n := range col.Nodes {
		if n.Time > maxTime {
			continue
		}
		u := tables.NodeID(i)
		ivs := inbound[u]
		if len(ivs) == 0 {
			return fmt.Errorf("verify: node %d (time %g) has no parental material", u, n.Time)
		}
		sort.Slice(ivs, func(a, b int) bool { return ivs[a].left < ivs[b].left })
		if ivs[0].left != 0 {
			return fmt.Errorf("verify: node %d coverage starts at %g, want 0", u, ivs[0].left)
		}
		for k := 0; k+1 < len(ivs); k++ {
			if ivs[k+1].left != ivs[k].right {
				return fmt.Errorf("verify: node %d coverage break at [%g, %g)",
					u, ivs[k].right, ivs[k+1].left)
			}
		}
		if last := ivs[len(ivs)-1].right; last != col.SequenceLength {
			return fmt.Errorf("verify: node %d coverage ends at %g, want %g",
				u, last, col.SequenceLength)
		}
	}
	return nil
}

// NodeMapValid checks the relabeling contract: the map is injective on the
// retained nodes and defined, with the sample flag preserved, for every
// sample.
func NodeMapValid(nodeMap []tables.NodeID, simplified *tables.Collection, samples []tables.NodeID) error {
	seen := make(map[tables.NodeID]tables.NodeID)
	for id, mapped := range nodeMap {
		if mapped == tables.Null {
			continue
		}
		if int(mapped) < 0 || int(mapped) >= len(simplified.Nodes) {
			return fmt.Errorf("verify: node %d maps outside the simplified record (%d)", id, mapped)
		}
		if prev, dup := seen[mapped]; dup {
			return fmt.Errorf("verify: nodes %d and %d both map to %d", prev, id, mapped)
		}
		seen[mapped] = tables.NodeID(id)
	}
	for _, s := range samples {
		mapped := nodeMap[s]
		if mapped == tables.Null {
			return fmt.Errorf("verify: sample %d was pruned by simplification", s)
		}
		if !simplified.Nodes[mapped].IsSample() {
			return fmt.Errorf("verify: sample %d lost its sample flag at %d", s, mapped)
		}
	}
	return nil
}

// MRCAConsistency checks that, at a sample of genomic positions (random
// interior points mixed with recorded breakpoints) and over at most
// maxPairs sample pairs, the MRCA on the full record translated through
// nodeMap equals the MRCA on the simplified record. Both walks must find a
// common ancestor: a one-sided "none" is a violation. Intended for records
// whose trees have fully coalesced.
func MRCAConsistency(full, simplified *tables.Collection, samples []tables.NodeID,
	nodeMap []tables.NodeID, seed uint64, numPositions, maxPairs int) error {

	if err := NodeMapValid(nodeMap, simplified, samples); err != nil {
		return err
	}
	rng := rand.New(rand.NewPCG(seed, seed))
	positions := samplePositions(full, rng, numPositions)
	ixFull := trees.NewIndex(full)
	ixSimp := trees.NewIndex(simplified)

	for _, pos := range positions {
		pairs := 0
		for a := 0; a < len(samples) && pairs < maxPairs; a++ {
			for b := a + 1; b < len(samples) && pairs < maxPairs; b++ {
				pairs++
				u, v := samples[a], samples[b]
				m1 := ixFull.MRCAAt(u, v, pos)
				if m1 == tables.Null {
					return fmt.Errorf("verify: no MRCA of %d and %d at %g in the full record", u, v, pos)
				}
				m2 := ixSimp.MRCAAt(nodeMap[u], nodeMap[v], pos)
				if m2 == tables.Null {
					return fmt.Errorf("verify: no MRCA of %d and %d at %g in the simplified record", u, v, pos)
				}
				if nodeMap[m1] != m2 {
					return fmt.Errorf("verify: MRCA mismatch at %g for (%d, %d): %d maps to %d, simplified has %d",
						pos, u, v, m1, nodeMap[m1], m2)
				}
			}
		}
	}
	return nil
}

// samplePositions mixes n uniform positions with up to n recorded
// breakpoints, sorted.
func samplePositions(col *tables.Collection, rng *rand.Rand, n int) []float64 {
	var out []float64
	for i := 0; i < n; i++ {
		out = append(out, rng.Float64()*col.SequenceLength)
	}
	bpSet := make(map[float64]bool)
	for _, e := range col.Edges {
		if e.Left < col.SequenceLength {
			bpSet[e.Left] = true
		}
	}
	bps := make([]float64, 0, len(bpSet))
	for bp := range bpSet {
		bps = append(bps, bp)
	}
	sort.Float64s(bps)
	for _, i := range rng.Perm(len(bps)) {
		if len(out) >= 2*n {
			break
		}
		out = append(out, bps[i])
	}
	sort.Float64s(out)
	return out
}

// MutationParents checks that the stored mutation parent column equals an
// independent recomputation from the trees.
func MutationParents(ts *trees.TreeSequence) error {
	col := ts.Collection()
	computed := mutate.ComputeMutationParent(ts)
	for i, m := range col.Mutations {
		if m.Parent != computed[i] {
			return fmt.Errorf("verify: mutation %d has parent %d, recomputation gives %d",
				i, m.Parent, computed[i])
		}
	}
	return nil
}

// HaplotypeInvariance simplifies full (which must be in canonical sort
// order) to the given subset without site filtering and checks that the
// site tables agree and every retained sample's haplotype is byte-equal
// before and after.
func HaplotypeInvariance(full *tables.Collection, subset []tables.NodeID) error {
	res, err := simplify.Simplify(full, subset, simplify.Options{FilterSites: false})
	if err != nil {
		return err
	}
	if !tables.SitesEqual(full, res.Tables) {
		return fmt.Errorf("verify: site tables differ after simplification")
	}
	tsFull, err := trees.NewSequence(full)
	if err != nil {
		return err
	}
	tsSub, err := trees.NewSequence(res.Tables)
	if err != nil {
		return err
	}
	hapFull := tsFull.Haplotypes()
	hapSub := tsSub.Haplotypes()
	matched := 0
	for node, h := range hapFull {
		mapped := res.NodeMap[node]
		if mapped == tables.Null {
			continue
		}
		sub, ok := hapSub[mapped]
		if !ok {
			continue
		}
		if h != sub {
			return fmt.Errorf("verify: haplotype of sample %d changed after simplification: %q -> %q",
				node, h, sub)
		}
		matched++
	}
	if matched != len(hapSub) {
		return fmt.Errorf("verify: %d simplified samples but only %d matched originals",
			len(hapSub), matched)
	}
	return nil
}
