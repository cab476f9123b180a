package distributors

import (
	"slices"

	"github.com/google/uuid"
)

// IssueKind classifies a hierarchy anomaly.
type IssueKind string

const (
	IssueMissingParent IssueKind = "missing_parent"
	IssueCycle         IssueKind = "cycle"
	IssueLevelMismatch IssueKind = "level_mismatch"
)

// IntegrityIssue describes one anomaly found in a hierarchy snapshot.
type IntegrityIssue struct {
	Kind          IssueKind
	DistributorID uuid.UUID
	ParentID      *uuid.UUID
	// Members lists the nodes of a cycle, starting at DistributorID.
	Members       []uuid.UUID
	StoredLevel   int
	ExpectedLevel int
}

// CheckIntegrity inspects the snapshot for dangling parent pointers, parent
// cycles and level snapshots that no longer match the current parent. It only
// reports; nothing is corrected.
func CheckIntegrity(t *Tree) []IntegrityIssue {
	const (
		unvisited = iota
		inPath
		done
	)
	state := make(map[uuid.UUID]int, t.Len())
	inCycle := make(map[uuid.UUID]bool)
	var issues []IntegrityIssue

	for _, start := range t.order {
		if state[start] != unvisited {
			continue
		}
		var path []uuid.UUID
		current := start
		for {
			if state[current] == done {
				break
			}
			if state[current] == inPath {
				idx := slices.Index(path, current)
				members := append([]uuid.UUID(nil), path[idx:]...)
				for _, m := range members {
					inCycle[m] = true
				}
				issues = append(issues, IntegrityIssue{
					Kind:          IssueCycle,
					DistributorID: current,
					ParentID:      t.nodes[current].ParentID,
					Members:       members,
				})
				break
			}
			state[current] = inPath
			path = append(path, current)

			node := t.nodes[current]
			if node.ParentID == nil {
				break
			}
			if _, ok := t.nodes[*node.ParentID]; !ok {
				issues = append(issues, IntegrityIssue{
					Kind:          IssueMissingParent,
					DistributorID: current,
					ParentID:      node.ParentID,
					StoredLevel:   node.Level,
				})
				break
			}
			current = *node.ParentID
		}
		for _, id := range path {
			state[id] = done
		}
	}

	for _, id := range t.order {
		if inCycle[id] {
			continue
		}
		node := t.nodes[id]
		expected := 1
		if node.ParentID != nil {
			parent, ok := t.nodes[*node.ParentID]
			if !ok || inCycle[parent.ID] {
				continue
			}
			expected = parent.Level + 1
		}
		if node.Level != expected {
			issues = append(issues, IntegrityIssue{
				Kind:          IssueLevelMismatch,
				DistributorID: id,
				ParentID:      node.ParentID,
				StoredLevel:   node.Level,
				ExpectedLevel: expected,
			})
		}
	}
	return issues
}
