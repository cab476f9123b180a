package qualification

import (
	"github.com/shopspring/decimal"

	"github.com/vendeo/vendeo-backend/pkg/enums"
)

// Metrics are the inputs of one distributor's qualification for a period.
// TeamPoints, RecruitLevels and BranchRevenue have one entry per direct recruit.
type Metrics struct {
	PersonalPoints int `json:"personal_points"`
	// GroupPoints is the raw subtree total, reported for display only. The ETT
	// group criterion is computed from the capped TeamPoints.
	GroupPoints   int                        `json:"group_points"`
	RecruitCount  int                        `json:"recruit_count"`
	TenureDays    int                        `json:"tenure_days"`
	TeamPoints    []int                      `json:"team_points"`
	RecruitLevels []enums.QualificationLevel `json:"recruit_levels"`
	Revenue       decimal.Decimal            `json:"revenue"`
	BranchRevenue []decimal.Decimal          `json:"branch_revenue"`
}

// Criterion is one measurable condition of a level.
type Criterion struct {
	Name    string          `json:"name"`
	Current decimal.Decimal `json:"current"`
	Target  decimal.Decimal `json:"target"`
	Met     bool            `json:"met"`
}

// LevelProgress reports every criterion of a level and whether all of them hold.
type LevelProgress struct {
	Level    enums.QualificationLevel `json:"level"`
	Met      bool                     `json:"met"`
	Criteria []Criterion              `json:"criteria"`
}

// Result is the outcome of an evaluation. Level is the highest level whose
// predicate holds; Next is the level right above it, if any.
type Result struct {
	Level  enums.QualificationLevel  `json:"level"`
	Next   *enums.QualificationLevel `json:"next,omitempty"`
	Levels []LevelProgress           `json:"levels"`
}

// RCQualification is the capped team aggregate behind the RC rule.
type RCQualification struct {
	QualifiedTeams int `json:"qualified_teams"`
	TotalEffective int `json:"total_effective"`
}

// ComputeRCQualification counts teams at or above the cap and sums team
// points with each team capped, so a single large team cannot carry the total.
func ComputeRCQualification(teamPoints []int) RCQualification {
	return computeCapped(teamPoints, RCTeamCap)
}

func computeCapped(teamPoints []int, limit int) RCQualification {
	var out RCQualification
	for _, points := range teamPoints {
		if points >= limit {
			out.QualifiedTeams++
		}
		out.TotalEffective += min(max(points, 0), limit)
	}
	return out
}

// Evaluator applies a threshold set.
type Evaluator struct {
	t Thresholds
}

// NewEvaluator returns an evaluator for the given thresholds.
func NewEvaluator(t Thresholds) *Evaluator {
	return &Evaluator{t: t}
}

var defaultEvaluator = NewEvaluator(DefaultThresholds())

// DefaultEvaluator returns the evaluator for the plan in force.
func DefaultEvaluator() *Evaluator {
	return defaultEvaluator
}

// Evaluate runs the default plan.
func Evaluate(m Metrics) Result {
	return defaultEvaluator.Evaluate(m)
}

// Evaluate checks every level independently. A higher level may hold while a
// lower one fails; the reported level is the highest that holds.
func (e *Evaluator) Evaluate(m Metrics) Result {
	levels := enums.QualificationLevels()
	progress := make([]LevelProgress, 0, len(levels))
	reached := enums.QualificationConseiller
	for _, level := range levels {
		criteria := e.criteriaFor(level, m)
		met := true
		for _, c := range criteria {
			met = met && c.Met
		}
		progress = append(progress, LevelProgress{Level: level, Met: met, Criteria: criteria})
		if met {
			reached = level
		}
	}

	result := Result{Level: reached, Levels: progress}
	if rank := reached.Rank(); rank+1 < len(levels) {
		next := levels[rank+1]
		result.Next = &next
	}
	return result
}

func (e *Evaluator) criteriaFor(level enums.QualificationLevel, m Metrics) []Criterion {
	t := e.t
	switch level {
	case enums.QualificationCQ:
		return []Criterion{
			atLeast("personal_points", m.PersonalPoints, t.CQPersonal),
		}
	case enums.QualificationETT:
		return []Criterion{
			atLeast("personal_points", m.PersonalPoints, t.ETTPersonal),
			atLeast("recruits", m.RecruitCount, t.ETTRecruits),
			atLeast("capped_group_points", computeCapped(m.TeamPoints, t.ETTGroupCap).TotalEffective, t.ETTGroup),
		}
	case enums.QualificationETL:
		return []Criterion{
			atLeast("personal_points", m.PersonalPoints, t.ETLPersonal),
			atLeast("recruits_at_ett", countAtLeast(m.RecruitLevels, enums.QualificationETT), t.ETLETTRecruits),
		}
	case enums.QualificationManager:
		return []Criterion{
			atLeast("personal_points", m.PersonalPoints, t.ManagerPersonal),
			atLeast("teams_at_500", countTeamsAtLeast(m.TeamPoints, t.ManagerTeamPoints), t.ManagerTeams),
		}
	case enums.QualificationRC:
		rc := computeCapped(m.TeamPoints, t.RCTeamCap)
		return []Criterion{
			atLeast("qualified_teams", rc.QualifiedTeams, t.RCQualifiedTeams),
			atLeast("total_effective_points", rc.TotalEffective, t.RCTotalEffective),
		}
	case enums.QualificationRD:
		return []Criterion{
			atLeast("teams", activeTeams(m.TeamPoints), t.RDTeams),
			atLeastDecimal("revenue", m.Revenue, t.RDRevenue),
			atLeast("recruits_at_rc", countAtLeast(m.RecruitLevels, enums.QualificationRC), t.RDRCRecruits),
			atLeast("tenure_days", m.TenureDays, t.RDTenureDays),
		}
	case enums.QualificationRVP:
		return []Criterion{
			atLeast("teams", activeTeams(m.TeamPoints), t.RVPTeams),
			atLeastDecimal("revenue", m.Revenue, t.RVPRevenue),
			atLeast("recruits_at_rd", countAtLeast(m.RecruitLevels, enums.QualificationRD), t.RVPRDRecruits),
			atLeast("tenure_days", m.TenureDays, t.RVPTenureDays),
		}
	case enums.QualificationSVP:
		return []Criterion{
			atLeast("teams", activeTeams(m.TeamPoints), t.SVPTeams),
			atLeastDecimal("capped_branch_revenue", cappedRevenue(m.BranchRevenue, t.SVPBranchCap), t.SVPRevenue),
			atLeast("recruits_at_rvp", countAtLeast(m.RecruitLevels, enums.QualificationRVP), t.SVPRVPRecruits),
			atLeast("tenure_days", m.TenureDays, t.SVPTenureDays),
		}
	}
	return nil
}

func atLeast(name string, current, target int) Criterion {
	return Criterion{
		Name:    name,
		Current: decimal.NewFromInt(int64(current)),
		Target:  decimal.NewFromInt(int64(target)),
		Met:     current >= target,
	}
}

func atLeastDecimal(name string, current, target decimal.Decimal) Criterion {
	return Criterion{Name: name, Current: current, Target: target, Met: current.GreaterThanOrEqual(target)}
}

func countAtLeast(levels []enums.QualificationLevel, floor enums.QualificationLevel) int {
	n := 0
	for _, level := range levels {
		if level.AtLeast(floor) {
			n++
		}
	}
	return n
}

func countTeamsAtLeast(teams []int, floor int) int {
	n := 0
	for _, points := range teams {
		if points >= floor {
			n++
		}
	}
	return n
}

// activeTeams counts recruit teams that produced points in the period.
func activeTeams(teams []int) int {
	return countTeamsAtLeast(teams, 1)
}

func cappedRevenue(branches []decimal.Decimal, limit decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, branch := range branches {
		if branch.IsNegative() {
			continue
		}
		total = total.Add(decimal.Min(branch, limit))
	}
	return total
}
