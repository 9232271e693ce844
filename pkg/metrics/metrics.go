package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Define global variables for metrics.
// We use 'promauto' which automatically registers metrics without complex initialization.

var (
	// 1. Simulations Total (Counter)
	// Counts completed genealogy simulations, labeled by generator.
	SimulationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pedigree_simulations_total",
			Help: "Total number of completed genealogy simulations",
		},
		[]string{"generator"}, // "wright_fisher" or "coalescent"
	)

	// 2. Nodes Created (Counter)
	// Tracks node table growth across all record producers.
	NodesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pedigree_nodes_created_total",
			Help: "Total number of nodes appended to ancestry records",
		},
		[]string{"source"},
	)

	// 3. Edges Created (Counter)
	EdgesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pedigree_edges_created_total",
			Help: "Total number of inheritance edges appended to ancestry records",
		},
		[]string{"source"},
	)

	// 4. Simplifications Total (Counter)
	SimplificationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pedigree_simplifications_total",
			Help: "Total number of ancestry simplification operations",
		},
	)
)
