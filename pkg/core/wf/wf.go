// Package wf implements a forward-time Wright-Fisher simulation of a
// haploid population with recombination, producing an interval ancestry
// record: one node per individual per generation, one edge per inherited
// genomic interval.
//
// The population has fixed size N. Each generation every individual
// survives with probability Survival; the dead are replaced by offspring of
// two parents drawn uniformly, with replacement, from the previous
// generation. With NumLoci zero the genome is continuous on [0, 1) and a
// single breakpoint is drawn as clamp(2U-0.5, 0, 1); with NumLoci set the
// breakpoint is a uniform integer in [1, NumLoci-1]. The breakpoint law is
// part of the generator's reproducibility contract and is kept exactly.
package wf

import (
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/sanonone/pedigree/pkg/core/coalescent"
	"github.com/sanonone/pedigree/pkg/core/tables"
	"github.com/sanonone/pedigree/pkg/metrics"
)

// Config carries the full parameter set of one simulation run. All inputs
// are assumed valid: N >= 1, Generations >= 0, 0 <= Survival < 1, and
// NumLoci either 0 (continuous genome) or >= 2.
type Config struct {
	N           int     `yaml:"n"`
	Generations int     `yaml:"generations"`
	Survival    float64 `yaml:"survival"`
	Seed        uint64  `yaml:"seed"`

	// DeepHistory seeds the founder generation with a coalescent history
	// instead of edge-less founder nodes.
	DeepHistory bool `yaml:"deep_history"`

	// InitialGenerationSamples keeps the sample flags of the founder
	// generation (deep history) or sets them on the fresh founders.
	InitialGenerationSamples bool `yaml:"initial_generation_samples"`

	// NumLoci switches to the discrete-breakpoint genome model.
	NumLoci int `yaml:"num_loci"`

	Debug bool `yaml:"debug"`
}

// Simulator owns the single seeded random generator of a run. The same
// seed and parameters reproduce the output record exactly.
type Simulator struct {
	cfg Config
	rng *rand.Rand
}

// New creates a simulator for cfg with its own seeded generator.
func New(cfg Config) *Simulator {
	return &Simulator{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed)),
	}
}

// Sim runs cfg for cfg.Generations and returns the record. Convenience for
// the common single-shot case.
func Sim(cfg Config) *tables.Collection {
	return New(cfg).Run(cfg.Generations)
}

// sequenceLength returns the genome length L of the configured model.
func (s *Simulator) sequenceLength() float64 {
	if s.cfg.NumLoci > 0 {
		return float64(s.cfg.NumLoci)
	}
	return 1.0
}

// randomBreakpoint draws the single recombination breakpoint for one
// offspring. The continuous law clamp(2U-0.5, 0, 1) concentrates mass at
// the genome ends so that whole-genome single-parent inheritance stays
// common at test scale.
func (s *Simulator) randomBreakpoint() float64 {
	if s.cfg.NumLoci == 0 {
		bp := 2*s.rng.Float64() - 0.5
		if bp < 0 {
			bp = 0
		}
		if bp > 1 {
			bp = 1
		}
		return bp
	}
	return float64(1 + s.rng.IntN(s.cfg.NumLoci-1))
}

// Run simulates ngens generations and returns the completed record. Nodes
// of the final living cohort carry the sample flag.
func (s *Simulator) Run(ngens int) *tables.Collection {
	cfg := s.cfg
	L := s.sequenceLength()
	col := tables.New(L)
	col.AddPopulation()

	if cfg.DeepHistory {
		// Founders come from a coalescent history conditioned on
		// recombination rate 1.0, retimed to precede generation ngens.
		// Leaves occupy ids 0..N-1, matching the initial slot layout.
		init := coalescent.Simulate(cfg.N, 1.0, L, rand.NewPCG(cfg.Seed, cfg.Seed))
		for _, n := range init.Nodes {
			flags := n.Flags
			if !cfg.InitialGenerationSamples {
				flags = 0
			}
			col.AddNode(flags, n.Time+float64(ngens), n.Population)
		}
		for _, e := range init.Edges {
			col.AddEdge(e.Left, e.Right, e.Parent, e.Child)
		}
	} else {
		var flags uint32
		if cfg.InitialGenerationSamples {
			flags = tables.NodeIsSample
		}
		for i := 0; i < cfg.N; i++ {
			col.AddNode(flags, float64(ngens), 0)
		}
	}

	pop := make([]tables.NodeID, cfg.N)
	for i := range pop {
		pop[i] = tables.NodeID(i)
	}

	for t := ngens - 1; t >= 0; t-- {
		dead := make([]bool, cfg.N)
		ndead := 0
		for j := range dead {
			dead[j] = s.rng.Float64() > cfg.Survival
			if dead[j] {
				ndead++
			}
		}
		// Parent pairs are drawn before any slot is replaced, so every
		// parent of this generation comes from the previous one even
		// though replacements are written slot by slot.
		parents := make([][2]tables.NodeID, 0, ndead)
		for i := 0; i < ndead; i++ {
			parents = append(parents, [2]tables.NodeID{
				pop[s.rng.IntN(cfg.N)],
				pop[s.rng.IntN(cfg.N)],
			})
		}
		if cfg.Debug {
			slog.Debug("generation step", "t", t, "replaced", ndead)
		}
		k := 0
		for j := 0; j < cfg.N; j++ {
			if !dead[j] {
				continue
			}
			offspring := col.AddNode(0, float64(t), 0)
			lparent, rparent := parents[k][0], parents[k][1]
			k++
			bp := s.randomBreakpoint()
			pop[j] = offspring
			if bp > 0 {
				col.AddEdge(0, bp, lparent, offspring)
			}
			if bp < L {
				col.AddEdge(bp, L, rparent, offspring)
			}
		}
	}

	// The survivors of the last generation are the sample set.
	col.SetSampleFlags(pop)

	col.RecordProvenance(fmt.Sprintf(
		"wf.Run n=%d generations=%d survival=%g seed=%d deep_history=%t num_loci=%d",
		cfg.N, ngens, cfg.Survival, cfg.Seed, cfg.DeepHistory, cfg.NumLoci))
	metrics.SimulationsTotal.WithLabelValues("wright_fisher").Inc()
	metrics.NodesCreated.WithLabelValues("wright_fisher").Add(float64(len(col.Nodes)))
	metrics.EdgesCreated.WithLabelValues("wright_fisher").Add(float64(len(col.Edges)))
	return col
}
