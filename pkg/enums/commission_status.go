package enums

import "slices"

// CommissionStatus maps to the commission_status column of commission_transactions.
type CommissionStatus string

const (
	CommissionStatusCalculee CommissionStatus = "calculee"
	CommissionStatusValidee  CommissionStatus = "validee"
	CommissionStatusPayee    CommissionStatus = "payee"
)

var validCommissionStatuses = []CommissionStatus{
	CommissionStatusCalculee,
	CommissionStatusValidee,
	CommissionStatusPayee,
}

// String implements fmt.Stringer.
func (s CommissionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s CommissionStatus) IsValid() bool {
	return slices.Contains(validCommissionStatuses, s)
}

// Previous returns the status a row must hold before moving to s.
// calculee has no predecessor.
func (s CommissionStatus) Previous() (CommissionStatus, bool) {
	switch s {
	case CommissionStatusValidee:
		return CommissionStatusCalculee, true
	case CommissionStatusPayee:
		return CommissionStatusValidee, true
	}
	return "", false
}

// ParseCommissionStatus converts raw input into a CommissionStatus.
func ParseCommissionStatus(value string) (CommissionStatus, error) {
	return parse("commission status", validCommissionStatuses, value)
}
