package distributors

import (
	"github.com/google/uuid"

	"github.com/vendeo/vendeo-backend/pkg/db/models"
)

// Ranked is a distributor paired with its distance from a traversal origin.
// The origin itself has depth 1.
type Ranked struct {
	models.Distributor
	Depth int
}

// Tree is an immutable parent/child index over a hierarchy snapshot.
// Parent pointers are trusted only as far as the visited sets allow: every
// traversal terminates even when the stored data contains a cycle.
type Tree struct {
	nodes    map[uuid.UUID]models.Distributor
	children map[uuid.UUID][]uuid.UUID
	order    []uuid.UUID
}

// NewTree indexes rows. Children keep the order in which rows are supplied.
func NewTree(rows []models.Distributor) *Tree {
	t := &Tree{
		nodes:    make(map[uuid.UUID]models.Distributor, len(rows)),
		children: make(map[uuid.UUID][]uuid.UUID),
		order:    make([]uuid.UUID, 0, len(rows)),
	}
	for _, row := range rows {
		if _, dup := t.nodes[row.ID]; dup {
			continue
		}
		t.nodes[row.ID] = row
		t.order = append(t.order, row.ID)
		if row.ParentID != nil {
			t.children[*row.ParentID] = append(t.children[*row.ParentID], row.ID)
		}
	}
	return t
}

// Len reports how many distributors the tree holds.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Get returns the distributor with the given id.
func (t *Tree) Get(id uuid.UUID) (models.Distributor, bool) {
	d, ok := t.nodes[id]
	return d, ok
}

// All returns every distributor in insertion order.
func (t *Tree) All() []models.Distributor {
	out := make([]models.Distributor, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.nodes[id])
	}
	return out
}

// Children returns the direct recruits of id.
func (t *Tree) Children(id uuid.UUID) []models.Distributor {
	ids := t.children[id]
	out := make([]models.Distributor, 0, len(ids))
	for _, childID := range ids {
		out = append(out, t.nodes[childID])
	}
	return out
}

// Subtree walks breadth-first from id. The origin comes first at depth 1.
func (t *Tree) Subtree(id uuid.UUID) []Ranked {
	root, ok := t.nodes[id]
	if !ok {
		return nil
	}
	out := []Ranked{{Distributor: root, Depth: 1}}
	visited := map[uuid.UUID]struct{}{id: {}}
	for i := 0; i < len(out); i++ {
		current := out[i]
		for _, childID := range t.children[current.ID] {
			if _, seen := visited[childID]; seen {
				continue
			}
			visited[childID] = struct{}{}
			out = append(out, Ranked{Distributor: t.nodes[childID], Depth: current.Depth + 1})
		}
	}
	return out
}

// Ascendants follows parent pointers from id up to the root. The origin comes
// first at depth 1 and the root last. A pointer to an unknown parent ends the
// chain, and so does a pointer back into the chain.
func (t *Tree) Ascendants(id uuid.UUID) []Ranked {
	node, ok := t.nodes[id]
	if !ok {
		return nil
	}
	out := []Ranked{{Distributor: node, Depth: 1}}
	visited := map[uuid.UUID]struct{}{id: {}}
	for node.ParentID != nil {
		parent, ok := t.nodes[*node.ParentID]
		if !ok {
			break
		}
		if _, seen := visited[parent.ID]; seen {
			break
		}
		visited[parent.ID] = struct{}{}
		out = append(out, Ranked{Distributor: parent, Depth: len(out) + 1})
		node = parent
	}
	return out
}

// WouldCreateCycle reports whether pointing id at newParent makes id its own ancestor.
func (t *Tree) WouldCreateCycle(id, newParent uuid.UUID) bool {
	if id == newParent {
		return true
	}
	for _, ranked := range t.Ascendants(newParent) {
		if ranked.ID == id {
			return true
		}
	}
	return false
}
