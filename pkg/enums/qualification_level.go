package enums

import "slices"

// QualificationLevel is a distributor rank, ordered from Conseiller to SVP.
type QualificationLevel string

const (
	QualificationConseiller QualificationLevel = "conseiller"
	QualificationCQ         QualificationLevel = "cq"
	QualificationETT        QualificationLevel = "ett"
	QualificationETL        QualificationLevel = "etl"
	QualificationManager    QualificationLevel = "manager"
	QualificationRC         QualificationLevel = "rc"
	QualificationRD         QualificationLevel = "rd"
	QualificationRVP        QualificationLevel = "rvp"
	QualificationSVP        QualificationLevel = "svp"
)

var orderedQualificationLevels = []QualificationLevel{
	QualificationConseiller,
	QualificationCQ,
	QualificationETT,
	QualificationETL,
	QualificationManager,
	QualificationRC,
	QualificationRD,
	QualificationRVP,
	QualificationSVP,
}

// QualificationLevels returns every level from lowest to highest.
func QualificationLevels() []QualificationLevel {
	return slices.Clone(orderedQualificationLevels)
}

// String implements fmt.Stringer.
func (q QualificationLevel) String() string {
	return string(q)
}

// Rank returns the zero-based position of the level, or -1 when unknown.
func (q QualificationLevel) Rank() int {
	return slices.Index(orderedQualificationLevels, q)
}

// IsValid reports whether the value is known.
func (q QualificationLevel) IsValid() bool {
	return q.Rank() >= 0
}

// AtLeast reports whether q ranks at or above other.
func (q QualificationLevel) AtLeast(other QualificationLevel) bool {
	return q.Rank() >= 0 && q.Rank() >= other.Rank()
}

// ParseQualificationLevel converts raw input into a QualificationLevel.
func ParseQualificationLevel(value string) (QualificationLevel, error) {
	return parse("qualification level", orderedQualificationLevels, value)
}
