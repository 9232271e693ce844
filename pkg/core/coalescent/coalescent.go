// Package coalescent generates deep ancestral history for a sample of
// genomes: a backward-time, single-population coalescent with
// recombination, used to bootstrap the founder generation of forward
// simulations.
package coalescent

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sanonone/pedigree/pkg/core/tables"
	"github.com/sanonone/pedigree/pkg/metrics"
)

type interval struct {
	left  float64
	right float64
}

// lineage is one ancestral genome being traced backward in time, carrying
// the intervals over which it is ancestral to the sample.
type lineage struct {
	node tables.NodeID
	segs []interval // disjoint, sorted by left
}

func (l *lineage) extent() (float64, float64) {
	return l.segs[0].left, l.segs[len(l.segs)-1].right
}

// Simulate runs the coalescent for n sampled genomes over a genome of the
// given length, with per-unit-length recombination rate, drawing all
// randomness from src. Leaves occupy node ids 0..n-1 at time 0 with the
// sample flag set; every leaf's inbound edges cover the full genome.
// Internal nodes may be unary; simplification removes such material.
func Simulate(n int, recombinationRate, sequenceLength float64, src rand.Source) *tables.Collection {
	rng := rand.New(src)
	col := tables.New(sequenceLength)
	col.AddPopulation()

	lineages := make([]*lineage, 0, n)
	for i := 0; i < n; i++ {
		node := col.AddNode(tables.NodeIsSample, 0, 0)
		lineages = append(lineages, &lineage{
			node: node,
			segs: []interval{{0, sequenceLength}},
		})
	}

	t := 0.0
	events := 0
	for len(lineages) > 1 {
		k := float64(len(lineages))
		coalRate := k * (k - 1) / 2
		span := 0.0
		for _, l := range lineages {
			lo, hi := l.extent()
			span += hi - lo
		}
		recRate := recombinationRate * span
		total := coalRate + recRate

		t += distuv.Exponential{Rate: total, Src: src}.Rand()
		events++

		if rng.Float64()*total < recRate {
			lineages = recombine(lineages, rng, span)
		} else {
			lineages = coalesce(col, lineages, rng, t)
		}
	}

	col.RecordProvenance(fmt.Sprintf(
		"coalescent.Simulate n=%d recombination_rate=%g sequence_length=%g",
		n, recombinationRate, sequenceLength))
	metrics.SimulationsTotal.WithLabelValues("coalescent").Inc()
	metrics.NodesCreated.WithLabelValues("coalescent").Add(float64(len(col.Nodes)))
	metrics.EdgesCreated.WithLabelValues("coalescent").Add(float64(len(col.Edges)))
	slog.Debug("coalescent history complete",
		"n", n, "events", events, "nodes", len(col.Nodes), "edges", len(col.Edges))
	return col
}

// recombine splits one lineage, chosen proportionally to its extent, at a
// uniform breakpoint inside that extent. Both halves keep the same node id:
// they are the two parental chunks of a single ancestral genome.
func recombine(lineages []*lineage, rng *rand.Rand, span float64) []*lineage {
	x := rng.Float64() * span
	var target *lineage
	idx := -1
	for i, l := range lineages {
		lo, hi := l.extent()
		if x < hi-lo {
			target = l
			idx = i
			break
		}
		x -= hi - lo
	}
	if target == nil {
		// Floating point slack on the last lineage.
		idx = len(lineages) - 1
		target = lineages[idx]
	}

	lo, hi := target.extent()
	bp := lo + rng.Float64()*(hi-lo)
	var left, right []interval
	for _, s := range target.segs {
		switch {
		case s.right <= bp:
			left = append(left, s)
		case s.left >= bp:
			right = append(right, s)
		default:
			left = append(left, interval{s.left, bp})
			right = append(right, interval{bp, s.right})
		}
	}
	if len(left) == 0 || len(right) == 0 {
		// bp landed exactly on the extent boundary; no effective split.
		return lineages
	}
	lineages[idx] = &lineage{node: target.node, segs: left}
	return append(lineages, &lineage{node: target.node, segs: right})
}

// coalesce merges two uniformly chosen lineages into a fresh parent node at
// time t, recording an inheritance edge for every ancestral segment of both
// children.
func coalesce(col *tables.Collection, lineages []*lineage, rng *rand.Rand, t float64) []*lineage {
	i := rng.IntN(len(lineages))
	j := rng.IntN(len(lineages) - 1)
	if j >= i {
		j++
	}
	a, b := lineages[i], lineages[j]

	p := col.AddNode(0, t, 0)
	for _, l := range []*lineage{a, b} {
		for _, s := range l.segs {
			col.AddEdge(s.left, s.right, p, l.node)
		}
	}

	merged := mergeIntervals(append(append([]interval(nil), a.segs...), b.segs...))
	out := lineages[:0]
	for k, l := range lineages {
		if k != i && k != j {
			out = append(out, l)
		}
	}
	return append(out, &lineage{node: p, segs: merged})
}

// mergeIntervals normalizes a set of intervals into a disjoint, sorted
// list, joining overlapping and adjacent pieces.
func mergeIntervals(segs []interval) []interval {
	sort.Slice(segs, func(i, j int) bool { return segs[i].left < segs[j].left })
	out := segs[:1]
	for _, s := range segs[1:] {
		last := &out[len(out)-1]
		if s.left <= last.right {
			if s.right > last.right {
				last.right = s.right
			}
			continue
		}
		out = append(out, s)
	}
	return out
}
