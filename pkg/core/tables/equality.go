package tables

// Table equality helpers used by the cross-implementation equivalence
// checks. Provenance rows are deliberately excluded: two independently
// produced but structurally identical records differ only there.

// NodesEqual reports whether both records have identical node tables.
func NodesEqual(a, b *Collection) bool {
	if len(a.Nodes) != len(b.Nodes) {
		return false
	}
	for i := range a.Nodes {
		if a.Nodes[i] != b.Nodes[i] {
			return false
		}
	}
	return true
}

// EdgesEqual reports whether both records have identical edge tables.
func EdgesEqual(a, b *Collection) bool {
	if len(a.Edges) != len(b.Edges) {
		return false
	}
	for i := range a.Edges {
		if a.Edges[i] != b.Edges[i] {
			return false
		}
	}
	return true
}

// SitesEqual reports whether both records have identical site tables.
func SitesEqual(a, b *Collection) bool {
	if len(a.Sites) != len(b.Sites) {
		return false
	}
	for i := range a.Sites {
		if a.Sites[i] != b.Sites[i] {
			return false
		}
	}
	return true
}

// MutationsEqual reports whether both records have identical mutation
// tables, including the parent and time columns.
func MutationsEqual(a, b *Collection) bool {
	if len(a.Mutations) != len(b.Mutations) {
		return false
	}
	for i := range a.Mutations {
		if a.Mutations[i] != b.Mutations[i] {
			return false
		}
	}
	return true
}

// Equal reports whether two records are structurally identical: same
// sequence length and same node, edge, site and mutation tables.
func Equal(a, b *Collection) bool {
	return a.SequenceLength == b.SequenceLength &&
		a.Populations == b.Populations &&
		NodesEqual(a, b) &&
		EdgesEqual(a, b) &&
		SitesEqual(a, b) &&
		MutationsEqual(a, b)
}
