package qualification

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendeo/vendeo-backend/internal/distributors"
	"github.com/vendeo/vendeo-backend/pkg/enums"
)

// SalesTotals are one seller's personal results for the period.
type SalesTotals struct {
	Points  int
	Revenue decimal.Decimal
}

// Evaluation pairs the derived metrics with their result.
type Evaluation struct {
	Metrics Metrics
	Result  Result
}

// BuildSubtree derives metrics for every distributor under origin and
// evaluates them bottom-up, so each recruit's level is known before its
// parent is scored. Sales are keyed by the distributor's user id. Team points
// and branch revenue of a recruit include the recruit's whole subtree.
func (e *Evaluator) BuildSubtree(tree *distributors.Tree, origin uuid.UUID, sales map[uuid.UUID]SalesTotals, asOf time.Time) map[uuid.UUID]Evaluation {
	nodes := tree.Subtree(origin)
	if len(nodes) == 0 {
		return nil
	}

	inSubtree := make(map[uuid.UUID]struct{}, len(nodes))
	for _, n := range nodes {
		inSubtree[n.ID] = struct{}{}
	}

	groupPoints := make(map[uuid.UUID]int, len(nodes))
	groupRevenue := make(map[uuid.UUID]decimal.Decimal, len(nodes))
	out := make(map[uuid.UUID]Evaluation, len(nodes))

	// Breadth-first order puts every recruit after its parent, so walking it
	// backwards finishes children first.
	for i := len(nodes) - 1; i >= 0; i-- {
		node := nodes[i]
		own := sales[node.UserID]
		m := Metrics{
			PersonalPoints: own.Points,
			GroupPoints:    own.Points,
			TenureDays:     tenureDays(node.CreatedAt, asOf),
			TeamPoints:     []int{},
			RecruitLevels:  []enums.QualificationLevel{},
			Revenue:        own.Revenue,
			BranchRevenue:  []decimal.Decimal{},
		}
		for _, child := range tree.Children(node.ID) {
			if _, ok := inSubtree[child.ID]; !ok || child.ID == origin {
				continue
			}
			childEval, ok := out[child.ID]
			if !ok {
				continue
			}
			m.RecruitCount++
			m.TeamPoints = append(m.TeamPoints, groupPoints[child.ID])
			m.BranchRevenue = append(m.BranchRevenue, groupRevenue[child.ID])
			m.RecruitLevels = append(m.RecruitLevels, childEval.Result.Level)
			m.GroupPoints += groupPoints[child.ID]
			m.Revenue = m.Revenue.Add(groupRevenue[child.ID])
		}

		groupPoints[node.ID] = m.GroupPoints
		groupRevenue[node.ID] = m.Revenue
		out[node.ID] = Evaluation{Metrics: m, Result: e.Evaluate(m)}
	}
	return out
}

func tenureDays(since, asOf time.Time) int {
	if since.IsZero() || asOf.Before(since) {
		return 0
	}
	return int(asOf.Sub(since).Hours() / 24)
}
