// Package grading computes subject, module and overall averages for a grade sheet and decides
// which subjects and modules are validated under a compensation policy.
package grading

import (
	"fmt"
	"math"
	"strings"
)

// SubjectStatus is the outcome of a single subject.
type SubjectStatus string

// ModuleStatus is the outcome of a module.
type ModuleStatus string

const (
	SubjectValidated SubjectStatus = "VALIDATED"
	SubjectRemedial  SubjectStatus = "REMEDIAL"

	ModuleValidated    ModuleStatus = "MODULE_VALIDATED"
	ModuleNotValidated ModuleStatus = "MODULE_NOT_VALIDATED"
)

// SubjectInput is one subject line as entered.
type SubjectInput struct {
	Name        string `json:"name" validate:"max=120"`
	Exam        Score  `json:"exam"`
	Devoir      Score  `json:"devoir"`
	Coefficient Score  `json:"coefficient"`
}

// Valid reports whether the subject is complete enough to take part in its module average.
func (s SubjectInput) Valid() bool {
	return strings.TrimSpace(s.Name) != "" && s.Exam.Present && s.Devoir.Present && s.Coefficient.Present
}

// ModuleInput groups subjects under a module name.
type ModuleInput struct {
	Name     string         `json:"name" validate:"max=120"`
	Subjects []SubjectInput `json:"subjects" validate:"omitempty,max=100,dive"`
}

// Roster is the full grade sheet handed to the engine.
type Roster struct {
	Modules []ModuleInput `json:"modules"`
}

// ModuleAggregate carries the unrounded weight of a module for overall averaging.
type ModuleAggregate struct {
	Average float64
	Credits float64
}

// Options configures an Engine.
type Options struct {
	Policy         Policy
	MinCoefficient float64
}

// DefaultOptions returns the simple policy with a minimum coefficient of 1.
func DefaultOptions() Options {
	return Options{Policy: PolicySimple, MinCoefficient: 1}
}

// Engine evaluates rosters. It holds no state between calls and is safe for concurrent use.
type Engine struct {
	policy         Policy
	minCoefficient float64
}

// NewEngine validates opts and builds an engine.
func NewEngine(opts Options) (*Engine, error) {
	policy := opts.Policy
	if policy == "" {
		policy = PolicySimple
	}
	if !policy.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, opts.Policy)
	}
	if math.IsNaN(opts.MinCoefficient) || opts.MinCoefficient < 0 {
		return nil, fmt.Errorf("minimum coefficient must be non-negative, got %v", opts.MinCoefficient)
	}

	return &Engine{policy: policy, minCoefficient: opts.MinCoefficient}, nil
}

// Policy returns the engine default policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// MinCoefficient returns the configured coefficient floor.
func (e *Engine) MinCoefficient() float64 {
	return e.minCoefficient
}

// SubjectAverage weighs the exam at 60% and the devoir at 40%. Non-finite inputs count as 0.
func SubjectAverage(exam, devoir float64) float64 {
	return finiteOrZero(exam)*ExamWeight + finiteOrZero(devoir)*DevoirWeight
}

// SubjectStatusFor decides a subject outcome from its own average and its module outcome.
func SubjectStatusFor(average float64, modulePassed bool, policy Policy) SubjectStatus {
	if atLeast(average, PassMark) {
		return SubjectValidated
	}

	switch policy {
	case PolicySimple:
		if modulePassed {
			return SubjectValidated
		}
	case PolicyThresholdNineWithFloor:
		if modulePassed && atLeast(average, SubjectFloor) {
			return SubjectValidated
		}
	}

	return SubjectRemedial
}

// ModuleAverage returns the coefficient-weighted mean over valid subjects and the summed credits.
// Both are 0 when no valid subject carries weight.
func ModuleAverage(subjects []SubjectInput, minCoefficient float64) (float64, float64) {
	var weighted, credits float64
	for _, subject := range subjects {
		if !subject.Valid() {
			continue
		}
		coefficient := ClampCoefficient(subject.Coefficient.Float(), minCoefficient)
		average := SubjectAverage(ClampGrade(subject.Exam.Float()), ClampGrade(subject.Devoir.Float()))
		weighted += average * coefficient
		credits += coefficient
	}

	if credits <= 0 {
		return 0, 0
	}
	return weighted / credits, credits
}

// ModulePassed applies the policy gate. allModuleAverages must hold the averages of every
// graded module of the roster; anySubjectBelowFloor covers every valid subject of the roster.
func ModulePassed(moduleAverage float64, allModuleAverages []float64, anySubjectBelowFloor bool, policy Policy) bool {
	if atLeast(moduleAverage, PassMark) {
		return true
	}
	if policy != PolicyThresholdNineWithFloor {
		return false
	}
	if !atLeast(moduleAverage, CompensationMark) || anySubjectBelowFloor {
		return false
	}
	for _, other := range allModuleAverages {
		if !atLeast(other, CompensationMark) {
			return false
		}
	}
	return true
}

// OverallAverage is the credit-weighted mean of module averages; 0 when no credits exist.
func OverallAverage(modules []ModuleAggregate) float64 {
	var weighted, credits float64
	for _, module := range modules {
		if module.Credits <= 0 {
			continue
		}
		weighted += module.Average * module.Credits
		credits += module.Credits
	}
	if credits <= 0 {
		return 0
	}
	return weighted / credits
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	shifted := v * 100
	return math.Round(shifted+math.Copysign(1e-7, shifted)) / 100
}

// RemedialExamNeeded is the exam grade required at the remedial session for the subject to
// reach the pass mark while keeping its devoir, rounded up to the cent.
func RemedialExamNeeded(devoir float64) float64 {
	needed := (PassMark - ClampGrade(devoir)*DevoirWeight) / ExamWeight
	needed = math.Ceil(needed*100-1e-7) / 100
	if needed < 0 {
		return 0
	}
	return needed
}

// Evaluate runs the roster through the engine default policy.
func (e *Engine) Evaluate(roster Roster) Result {
	return e.EvaluateWith(roster, e.policy)
}

// EvaluateWith runs the roster through policy, falling back to the engine default when policy is
// empty or unknown. Module outcomes depend on the whole roster, so every module average is
// computed before any module is passed.
func (e *Engine) EvaluateWith(roster Roster, policy Policy) Result {
	if !policy.Valid() {
		policy = e.policy
	}

	aggregates := make([]ModuleAggregate, len(roster.Modules))
	graded := make([]float64, 0, len(roster.Modules))
	belowFloor := false

	for i, module := range roster.Modules {
		average, credits := ModuleAverage(module.Subjects, e.minCoefficient)
		aggregates[i] = ModuleAggregate{Average: average, Credits: credits}
		if credits > 0 {
			graded = append(graded, average)
		}

		for _, subject := range module.Subjects {
			if !subject.Valid() {
				continue
			}
			if !atLeast(e.subjectAverage(subject), SubjectFloor) {
				belowFloor = true
			}
		}
	}

	result := Result{
		Policy:  policy,
		Modules: make([]ModuleResult, 0, len(roster.Modules)),
	}

	for i, module := range roster.Modules {
		aggregate := aggregates[i]
		passed := aggregate.Credits > 0 && ModulePassed(aggregate.Average, graded, belowFloor, policy)

		moduleResult := ModuleResult{
			Name:        strings.TrimSpace(module.Name),
			Average:     Round2(aggregate.Average),
			Credits:     aggregate.Credits,
			Passed:      passed,
			Compensated: passed && !atLeast(aggregate.Average, PassMark),
			Status:      ModuleNotValidated,
			Subjects:    make([]SubjectResult, 0, len(module.Subjects)),
		}
		if passed {
			moduleResult.Status = ModuleValidated
		}

		for _, subject := range module.Subjects {
			moduleResult.Subjects = append(moduleResult.Subjects, e.subjectResult(subject, passed, policy))
		}

		result.Modules = append(result.Modules, moduleResult)
		result.TotalCredits += aggregate.Credits
	}

	result.OverallAverage = Round2(OverallAverage(aggregates))
	return result
}

func (e *Engine) subjectAverage(subject SubjectInput) float64 {
	return SubjectAverage(ClampGrade(subject.Exam.Float()), ClampGrade(subject.Devoir.Float()))
}

func (e *Engine) subjectResult(subject SubjectInput, modulePassed bool, policy Policy) SubjectResult {
	included := subject.Valid()
	average := e.subjectAverage(subject)

	status := SubjectStatusFor(average, included && modulePassed, policy)

	result := SubjectResult{
		Name:     strings.TrimSpace(subject.Name),
		Average:  Round2(average),
		Status:   status,
		Included: included,
	}
	if subject.Exam.Present {
		result.Exam = NewScore(ClampGrade(subject.Exam.Float()))
	}
	if subject.Devoir.Present {
		result.Devoir = NewScore(ClampGrade(subject.Devoir.Float()))
	}
	if subject.Coefficient.Present {
		result.Coefficient = NewScore(ClampCoefficient(subject.Coefficient.Float(), e.minCoefficient))
	}
	if status == SubjectRemedial && subject.Devoir.Present {
		needed := RemedialExamNeeded(subject.Devoir.Float())
		result.RemedialExamNeeded = &needed
	}

	return result
}
