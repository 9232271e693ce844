package simplify

import (
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/sanonone/pedigree/pkg/core/mutate"
	"github.com/sanonone/pedigree/pkg/core/tables"
	"github.com/sanonone/pedigree/pkg/core/trees"
	"github.com/sanonone/pedigree/pkg/core/wf"
)

// mutatedRecord runs one scenario end to end: forward simulation, canonical
// sort, mutation overlay, sort again. The result is the kind of record
// Simplify sees in production.
func mutatedRecord(t *testing.T, sc wf.Scenario) *tables.Collection {
	t.Helper()
	col := wf.Sim(sc.Config)
	col.Sort()
	ts, err := trees.NewSequence(col)
	if err != nil {
		t.Fatal(err)
	}
	mcol, err := mutate.JukesCantor(ts, sc.Sites, sc.MutationRate, sc.Config.Seed)
	if err != nil {
		t.Fatal(err)
	}
	mcol.Sort()
	return mcol
}

func loadGrid(t *testing.T) []wf.Scenario {
	t.Helper()
	scenarios, err := wf.LoadScenarios(filepath.Join("..", "wf", "testdata", "scenarios.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	return scenarios
}

func sameNodeMap(a, b []tables.NodeID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// The segment propagation in Simplify and the forest walk in
// referenceSimplify must agree byte for byte on every scenario.
func TestMatchesReferenceFullSampleSet(t *testing.T) {
	for _, sc := range loadGrid(t) {
		t.Run(sc.Name, func(t *testing.T) {
			col := mutatedRecord(t, sc)
			samples := col.Samples()

			res, err := Simplify(col, samples, Options{FilterSites: true})
			if err != nil {
				t.Fatal(err)
			}
			want, wantMap := referenceSimplify(col, samples, true)

			if !tables.Equal(res.Tables, want) {
				t.Errorf("simplified tables diverge from reference")
			}
			if !sameNodeMap(res.NodeMap, wantMap) {
				t.Errorf("node maps diverge: %v vs %v", res.NodeMap, wantMap)
			}
		})
	}
}

func TestMatchesReferenceSubsets(t *testing.T) {
	for _, sc := range loadGrid(t) {
		t.Run(sc.Name, func(t *testing.T) {
			col := mutatedRecord(t, sc)
			all := col.Samples()
			rng := rand.New(rand.NewPCG(sc.Config.Seed, 17))

			for _, size := range []int{2, 5} {
				if size > len(all) {
					continue
				}
				perm := rng.Perm(len(all))
				subset := make([]tables.NodeID, size)
				for i := 0; i < size; i++ {
					subset[i] = all[perm[i]]
				}

				res, err := Simplify(col, subset, Options{FilterSites: true})
				if err != nil {
					t.Fatal(err)
				}
				want, wantMap := referenceSimplify(col, subset, true)

				if !tables.Equal(res.Tables, want) {
					t.Errorf("subset of %d: tables diverge from reference", size)
				}
				if !sameNodeMap(res.NodeMap, wantMap) {
					t.Errorf("subset of %d: node maps diverge", size)
				}
			}
		})
	}
}

// Simplifying an already simplified record with the same samples must be a
// no-op up to provenance.
func TestIdempotence(t *testing.T) {
	sc := loadGrid(t)[0]
	col := mutatedRecord(t, sc)

	first, err := Simplify(col, col.Samples(), Options{FilterSites: true})
	if err != nil {
		t.Fatal(err)
	}
	second, err := Simplify(first.Tables, first.Tables.Samples(), Options{FilterSites: true})
	if err != nil {
		t.Fatal(err)
	}
	if !tables.Equal(first.Tables, second.Tables) {
		t.Fatal("second simplification changed the record")
	}
	for i, v := range second.NodeMap {
		if v != tables.NodeID(i) {
			t.Fatalf("second simplification relabeled node %d to %d", i, v)
		}
	}
}

func TestFilterSitesOption(t *testing.T) {
	col := mutatedRecord(t, loadGrid(t)[0])
	subset := col.Samples()[:2]

	keep, err := Simplify(col, subset, Options{FilterSites: false})
	if err != nil {
		t.Fatal(err)
	}
	if len(keep.Tables.Sites) != len(col.Sites) {
		t.Fatalf("site count changed with filtering off: %d -> %d",
			len(col.Sites), len(keep.Tables.Sites))
	}
	for i, site := range keep.Tables.Sites {
		if site != col.Sites[i] {
			t.Fatalf("site %d rewritten: %+v vs %+v", i, site, col.Sites[i])
		}
	}

	drop, err := Simplify(col, subset, Options{FilterSites: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(drop.Tables.Sites) > len(keep.Tables.Sites) {
		t.Fatal("filtering produced more sites than keeping all of them")
	}
	for _, m := range drop.Tables.Mutations {
		if int(m.Site) >= len(drop.Tables.Sites) {
			t.Fatalf("mutation references filtered site %d", m.Site)
		}
	}
}

func TestRejectsUnsortedEdges(t *testing.T) {
	col := tables.New(1.0)
	col.AddPopulation()
	a := col.AddNode(tables.NodeIsSample, 0, 0)
	b := col.AddNode(tables.NodeIsSample, 0, 0)
	p := col.AddNode(0, 1, 0)
	q := col.AddNode(0, 2, 0)
	// q is older than p, so its edge may not come first.
	col.AddEdge(0, 1, q, p)
	col.AddEdge(0, 1, p, a)
	col.AddEdge(0, 1, p, b)

	if _, err := Simplify(col, []tables.NodeID{a, b}, Options{}); err == nil {
		t.Fatal("unsorted edge table accepted")
	}
}

func TestRejectsDuplicateSamples(t *testing.T) {
	col := wf.Sim(wf.Config{N: 5, Generations: 2, Seed: 9})
	col.Sort()
	s := col.Samples()[0]
	if _, err := Simplify(col, []tables.NodeID{s, s}, Options{}); err == nil {
		t.Fatal("duplicate sample accepted")
	}
}

// Sample nodes keep their ids and flags at the front of the output table.
func TestSampleRelabeling(t *testing.T) {
	col := mutatedRecord(t, loadGrid(t)[0])
	samples := col.Samples()
	res, err := Simplify(col, samples, Options{FilterSites: true})
	if err != nil {
		t.Fatal(err)
	}
	for i, s := range samples {
		if res.NodeMap[s] != tables.NodeID(i) {
			t.Errorf("sample %d mapped to %d, want %d", s, res.NodeMap[s], i)
		}
		if !res.Tables.Nodes[i].IsSample() {
			t.Errorf("output node %d lost its sample flag", i)
		}
	}
}
