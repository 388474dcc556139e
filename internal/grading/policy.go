package grading

import (
	"errors"
	"fmt"
	"strings"
)

// Policy selects how borderline modules and subjects are compensated.
type Policy string

const (
	// PolicySimple passes a module at 10 and validates every subject of a passed module.
	PolicySimple Policy = "simple"
	// PolicyThresholdNineWithFloor additionally passes modules at 9 when no other module is
	// below 9 and no subject anywhere is below 5. Compensated subjects must reach 5.
	PolicyThresholdNineWithFloor Policy = "threshold_nine_with_floor"
	// PolicyNoCompensation validates subjects on their own average only.
	PolicyNoCompensation Policy = "no_compensation"
)

const (
	// MaxGrade is the top of the grading scale.
	MaxGrade = 20.0
	// PassMark is the average needed to validate a subject or module outright.
	PassMark = 10.0
	// CompensationMark is the lowest module average that can be compensated.
	CompensationMark = 9.0
	// SubjectFloor is the lowest subject average that can be compensated.
	SubjectFloor = 5.0
	// ExamWeight and DevoirWeight split a subject average between its two scores.
	ExamWeight   = 0.6
	DevoirWeight = 0.4

	epsilon = 1e-9
)

// ErrUnknownPolicy indicates an unsupported policy name.
var ErrUnknownPolicy = errors.New("unknown grading policy")

// Policies lists every supported policy.
func Policies() []Policy {
	return []Policy{PolicySimple, PolicyThresholdNineWithFloor, PolicyNoCompensation}
}

// ParsePolicy normalises a policy name. Dashes and case are ignored.
func ParsePolicy(raw string) (Policy, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, "-", "_")

	policy := Policy(normalized)
	if !policy.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, raw)
	}
	return policy, nil
}

// Valid reports whether p is a supported policy.
func (p Policy) Valid() bool {
	switch p {
	case PolicySimple, PolicyThresholdNineWithFloor, PolicyNoCompensation:
		return true
	default:
		return false
	}
}

func (p Policy) String() string {
	return string(p)
}

func atLeast(v, mark float64) bool {
	return v >= mark-epsilon
}
