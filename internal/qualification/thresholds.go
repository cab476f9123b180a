package qualification

import "github.com/shopspring/decimal"

// RC team cap: points above it do not count toward the RC aggregate.
const (
	RCTeamCap        = 4000
	RCQualifiedTeams = 4
	RCTotalEffective = 16000
)

// Thresholds holds every numeric target of the qualification plan.
type Thresholds struct {
	CQPersonal int

	ETTPersonal int
	ETTRecruits int
	ETTGroupCap int
	ETTGroup    int

	ETLPersonal    int
	ETLETTRecruits int

	ManagerPersonal   int
	ManagerTeams      int
	ManagerTeamPoints int

	RCTeamCap        int
	RCQualifiedTeams int
	RCTotalEffective int

	RDTeams       int
	RDRevenue     decimal.Decimal
	RDRCRecruits  int
	RDTenureDays  int
	RVPTeams      int
	RVPRevenue    decimal.Decimal
	RVPRDRecruits int
	RVPTenureDays int

	SVPTeams       int
	SVPBranchCap   decimal.Decimal
	SVPRevenue     decimal.Decimal
	SVPRVPRecruits int
	SVPTenureDays  int
}

// DefaultThresholds returns the plan currently in force.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CQPersonal: 25,

		ETTPersonal: 50,
		ETTRecruits: 2,
		ETTGroupCap: 50,
		ETTGroup:    100,

		ETLPersonal:    75,
		ETLETTRecruits: 2,

		ManagerPersonal:   100,
		ManagerTeams:      4,
		ManagerTeamPoints: 500,

		RCTeamCap:        RCTeamCap,
		RCQualifiedTeams: RCQualifiedTeams,
		RCTotalEffective: RCTotalEffective,

		RDTeams:       6,
		RDRevenue:     decimal.NewFromInt(100000),
		RDRCRecruits:  2,
		RDTenureDays:  180,
		RVPTeams:      8,
		RVPRevenue:    decimal.NewFromInt(250000),
		RVPRDRecruits: 3,
		RVPTenureDays: 365,

		SVPTeams:       10,
		SVPBranchCap:   decimal.NewFromInt(150000),
		SVPRevenue:     decimal.NewFromInt(500000),
		SVPRVPRecruits: 3,
		SVPTenureDays:  730,
	}
}
