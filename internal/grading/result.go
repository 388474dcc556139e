package grading

// Result is the serialisable outcome of an evaluation. Averages are rounded to two decimals.
type Result struct {
	Policy         Policy         `json:"policy"`
	Modules        []ModuleResult `json:"modules"`
	OverallAverage float64        `json:"overall_average"`
	TotalCredits   float64        `json:"total_credits"`
}

// ModuleResult is the evaluated form of a module.
type ModuleResult struct {
	Name        string          `json:"name"`
	Average     float64         `json:"average"`
	Credits     float64         `json:"credits"`
	Status      ModuleStatus    `json:"status"`
	Passed      bool            `json:"passed"`
	Compensated bool            `json:"compensated"`
	Subjects    []SubjectResult `json:"subjects"`
}

// SubjectResult is the evaluated form of a subject. Included is false for incomplete subjects,
// which keep their own average but do not count towards the module.
type SubjectResult struct {
	Name               string        `json:"name"`
	Exam               Score         `json:"exam"`
	Devoir             Score         `json:"devoir"`
	Coefficient        Score         `json:"coefficient"`
	Average            float64       `json:"average"`
	Status             SubjectStatus `json:"status"`
	Included           bool          `json:"included"`
	RemedialExamNeeded *float64      `json:"remedial_exam_needed,omitempty"`
}

// Validated counts validated subjects across the result.
func (r Result) Validated() (subjects, modules int) {
	for _, module := range r.Modules {
		if module.Passed {
			modules++
		}
		for _, subject := range module.Subjects {
			if subject.Status == SubjectValidated {
				subjects++
			}
		}
	}
	return subjects, modules
}
