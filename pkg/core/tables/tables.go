// Package tables defines the interval ancestry record: the columnar,
// append-only node and edge tables that describe which ancestor each
// individual inherited every genomic interval from, plus the site and
// mutation overlay used to derive haplotypes.
//
// A Collection is built incrementally by a single writer (the simulator or
// the coalescent bootstrap) and then handed read-only to the query and
// verification layers. Edges are half-open intervals [Left, Right) and
// always point strictly backward in time: Time(Parent) > Time(Child).
package tables

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// NodeID identifies a row of the node table. IDs are assigned in creation
// order and never reused.
type NodeID int32

// Null is the designated "no node" value returned by lookups that find no
// covering edge or no common ancestor. It is not an error.
const Null NodeID = -1

// NullMutation is the "no parent mutation" value of the mutation table.
const NullMutation int32 = -1

// NodeIsSample marks individuals whose full ancestry must remain queryable
// after simplification.
const NodeIsSample uint32 = 1

// Node is one individual (a haploid genome) at a single point in time.
// Root/ancestor nodes carry the largest times.
type Node struct {
	Flags      uint32
	Time       float64
	Population int32
}

// IsSample reports whether the sample flag is set.
func (n Node) IsSample() bool {
	return n.Flags&NodeIsSample != 0
}

// Edge records that Child inherited the genomic interval [Left, Right)
// from Parent.
type Edge struct {
	Left   float64
	Right  float64
	Parent NodeID
	Child  NodeID
}

// Site is a variant position on the genome with its ancestral state.
type Site struct {
	Position       float64
	AncestralState string
}

// Mutation is a state change at a site on the branch above Node. Parent is
// the index of the mutation whose state this one overrides, or NullMutation.
type Mutation struct {
	Site         int32
	Node         NodeID
	DerivedState string
	Parent       int32
	Time         float64
}

// Provenance records one operation that produced or transformed the record.
type Provenance struct {
	ID        string
	Timestamp time.Time
	Record    string
}

// Collection is a full ancestry record: ordered node and edge tables plus
// the site/mutation overlay. The zero value is not usable; use New.
type Collection struct {
	SequenceLength float64
	Nodes          []Node
	Edges          []Edge
	Sites          []Site
	Mutations      []Mutation
	Populations    int
	Provenances    []Provenance
}

// New creates an empty record over the genome [0, sequenceLength).
func New(sequenceLength float64) *Collection {
	return &Collection{SequenceLength: sequenceLength}
}

// AddPopulation appends a population row and returns its id.
func (c *Collection) AddPopulation() int32 {
	c.Populations++
	return int32(c.Populations - 1)
}

// AddNode appends a node row and returns its id.
func (c *Collection) AddNode(flags uint32, tm float64, population int32) NodeID {
	c.Nodes = append(c.Nodes, Node{Flags: flags, Time: tm, Population: population})
	return NodeID(len(c.Nodes) - 1)
}

// AddEdge appends an inheritance edge for the interval [left, right).
func (c *Collection) AddEdge(left, right float64, parent, child NodeID) {
	c.Edges = append(c.Edges, Edge{Left: left, Right: right, Parent: parent, Child: child})
}

// AddSite appends a site row and returns its index.
func (c *Collection) AddSite(position float64, ancestralState string) int32 {
	c.Sites = append(c.Sites, Site{Position: position, AncestralState: ancestralState})
	return int32(len(c.Sites) - 1)
}

// AddMutation appends a mutation row and returns its index.
func (c *Collection) AddMutation(site int32, node NodeID, derivedState string, parent int32, tm float64) int32 {
	c.Mutations = append(c.Mutations, Mutation{
		Site: site, Node: node, DerivedState: derivedState, Parent: parent, Time: tm,
	})
	return int32(len(c.Mutations) - 1)
}

// RecordProvenance appends a provenance row describing one operation.
func (c *Collection) RecordProvenance(record string) {
	c.Provenances = append(c.Provenances, Provenance{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Record:    record,
	})
}

// Samples returns the ids of all sample-flagged nodes in id order.
func (c *Collection) Samples() []NodeID {
	var out []NodeID
	for i, n := range c.Nodes {
		if n.IsSample() {
			out = append(out, NodeID(i))
		}
	}
	return out
}

// SetSampleFlags sets the sample flag on the given nodes. Used to mark the
// final living cohort once the last generation has been simulated.
func (c *Collection) SetSampleFlags(ids []NodeID) {
	for _, id := range ids {
		c.Nodes[id].Flags |= NodeIsSample
	}
}

// Copy returns a deep copy of the record.
func (c *Collection) Copy() *Collection {
	out := &Collection{
		SequenceLength: c.SequenceLength,
		Nodes:          append([]Node(nil), c.Nodes...),
		Edges:          append([]Edge(nil), c.Edges...),
		Sites:          append([]Site(nil), c.Sites...),
		Mutations:      append([]Mutation(nil), c.Mutations...),
		Populations:    c.Populations,
		Provenances:    append([]Provenance(nil), c.Provenances...),
	}
	return out
}

// EdgesSorted reports whether the edge table is in canonical order:
// ascending parent time, then parent id, then child id, then left
// coordinate. This is the precondition tree building and simplification
// require.
func (c *Collection) EdgesSorted() bool {
	return sort.SliceIsSorted(c.Edges, func(i, j int) bool {
		return c.edgeLess(c.Edges[i], c.Edges[j])
	})
}

func (c *Collection) edgeLess(a, b Edge) bool {
	ta, tb := c.Nodes[a.Parent].Time, c.Nodes[b.Parent].Time
	if ta != tb {
		return ta < tb
	}
	if a.Parent != b.Parent {
		return a.Parent < b.Parent
	}
	if a.Child != b.Child {
		return a.Child < b.Child
	}
	return a.Left < b.Left
}

// Sort puts the record into canonical order: edges as in EdgesSorted, sites
// by position, mutations by site then descending time (oldest first), with
// mutation site and parent indices remapped to the new orders.
func (c *Collection) Sort() {
	sort.SliceStable(c.Edges, func(i, j int) bool {
		return c.edgeLess(c.Edges[i], c.Edges[j])
	})

	// Sites by position, remembering where each old row went.
	siteOrder := make([]int32, len(c.Sites))
	for i := range siteOrder {
		siteOrder[i] = int32(i)
	}
	sort.SliceStable(siteOrder, func(i, j int) bool {
		return c.Sites[siteOrder[i]].Position < c.Sites[siteOrder[j]].Position
	})
	newSiteIndex := make([]int32, len(c.Sites))
	newSites := make([]Site, len(c.Sites))
	for newIdx, oldIdx := range siteOrder {
		newSites[newIdx] = c.Sites[oldIdx]
		newSiteIndex[oldIdx] = int32(newIdx)
	}
	c.Sites = newSites
	for i := range c.Mutations {
		c.Mutations[i].Site = newSiteIndex[c.Mutations[i].Site]
	}

	// Mutations by site, oldest first within a site. Parent indices follow
	// the permutation; a parent is always older, so it stays before its
	// children under the stable sort.
	mutOrder := make([]int32, len(c.Mutations))
	for i := range mutOrder {
		mutOrder[i] = int32(i)
	}
	sort.SliceStable(mutOrder, func(i, j int) bool {
		a, b := c.Mutations[mutOrder[i]], c.Mutations[mutOrder[j]]
		if a.Site != b.Site {
			return a.Site < b.Site
		}
		return a.Time > b.Time
	})
	newMutIndex := make([]int32, len(c.Mutations))
	newMuts := make([]Mutation, len(c.Mutations))
	for newIdx, oldIdx := range mutOrder {
		newMuts[newIdx] = c.Mutations[oldIdx]
		newMutIndex[oldIdx] = int32(newIdx)
	}
	for i := range newMuts {
		if newMuts[i].Parent != NullMutation {
			newMuts[i].Parent = newMutIndex[newMuts[i].Parent]
		}
	}
	c.Mutations = newMuts
}
