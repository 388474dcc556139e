package dto

import (
	"time"

	"github.com/noah-isme/gradebook-api/internal/grading"
	"github.com/noah-isme/gradebook-api/internal/models"
)

// RosterListRequest defines filters for listing rosters.
type RosterListRequest struct {
	Search   string
	Page     int
	PageSize int
}

// SubjectRequest is a subject line as entered. Absent scores are left empty on the sheet.
type SubjectRequest struct {
	Name        string        `json:"name" validate:"max=120"`
	Exam        grading.Score `json:"exam"`
	Devoir      grading.Score `json:"devoir"`
	Coefficient grading.Score `json:"coefficient"`
}

// OptionalScore records whether a score key was sent at all, so that a JSON null can clear a cell.
type OptionalScore struct {
	Set   bool
	Score grading.Score
}

// UnmarshalJSON marks the score as sent and decodes it.
func (o *OptionalScore) UnmarshalJSON(data []byte) error {
	o.Set = true
	return o.Score.UnmarshalJSON(data)
}

// SubjectUpdateRequest patches a subject; omitted fields are left untouched.
type SubjectUpdateRequest struct {
	Name        *string       `json:"name" validate:"omitempty,max=120"`
	Exam        OptionalScore `json:"exam"`
	Devoir      OptionalScore `json:"devoir"`
	Coefficient OptionalScore `json:"coefficient"`
}

// ModuleRequest creates a module with optional subjects.
type ModuleRequest struct {
	Name     string           `json:"name" validate:"max=120"`
	Subjects []SubjectRequest `json:"subjects" validate:"omitempty,max=100,dive"`
}

// ModuleRenameRequest renames a module.
type ModuleRenameRequest struct {
	Name string `json:"name" validate:"max=120"`
}

// RosterCreateRequest creates a roster with optional nested modules.
type RosterCreateRequest struct {
	StudentName   string          `json:"student_name" validate:"max=160"`
	StudentNumber string          `json:"student_number" validate:"max=64"`
	Policy        string          `json:"policy" validate:"omitempty,max=64"`
	Modules       []ModuleRequest `json:"modules" validate:"omitempty,max=50,dive"`
}

// RosterUpdateRequest patches the roster header fields.
type RosterUpdateRequest struct {
	StudentName   *string `json:"student_name" validate:"omitempty,max=160"`
	StudentNumber *string `json:"student_number" validate:"omitempty,max=64"`
	Policy        *string `json:"policy" validate:"omitempty,max=64"`
}

// SubjectResponse exposes a stored subject.
type SubjectResponse struct {
	ID          uint          `json:"id"`
	Name        string        `json:"name"`
	Exam        grading.Score `json:"exam"`
	Devoir      grading.Score `json:"devoir"`
	Coefficient grading.Score `json:"coefficient"`
}

// ModuleResponse exposes a stored module.
type ModuleResponse struct {
	ID       uint              `json:"id"`
	Name     string            `json:"name"`
	Subjects []SubjectResponse `json:"subjects"`
}

// RosterSummary is a roster line in list responses.
type RosterSummary struct {
	ID            uint      `json:"id"`
	StudentName   string    `json:"student_name"`
	StudentNumber string    `json:"student_number"`
	Policy        string    `json:"policy"`
	Version       uint      `json:"version"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// RosterResponse exposes a full roster.
type RosterResponse struct {
	RosterSummary
	CreatedAt time.Time        `json:"created_at"`
	Modules   []ModuleResponse `json:"modules"`
}

// RosterListResponse contains paginated rosters.
type RosterListResponse struct {
	Items      []RosterSummary `json:"items"`
	Pagination PaginationMeta  `json:"pagination"`
}

// RosterEvaluationResponse wraps an evaluation with the roster version it was computed for.
type RosterEvaluationResponse struct {
	RosterID      uint           `json:"roster_id"`
	RosterVersion uint           `json:"roster_version"`
	CacheHit      bool           `json:"cache_hit"`
	Result        grading.Result `json:"result"`
}

// EvaluationRecordResponse is a past evaluation of a roster.
type EvaluationRecordResponse struct {
	ID             uint            `json:"id"`
	RosterVersion  uint            `json:"roster_version"`
	Policy         string          `json:"policy"`
	OverallAverage float64         `json:"overall_average"`
	Result         *grading.Result `json:"result,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// NewRosterSummary maps a roster model to its list representation.
func NewRosterSummary(roster models.Roster) RosterSummary {
	return RosterSummary{
		ID:            roster.ID,
		StudentName:   roster.StudentName,
		StudentNumber: roster.StudentNumber,
		Policy:        roster.Policy,
		Version:       roster.Version,
		UpdatedAt:     roster.UpdatedAt,
	}
}

// NewRosterResponse maps a roster model with its modules and subjects.
func NewRosterResponse(roster models.Roster) RosterResponse {
	modules := make([]ModuleResponse, 0, len(roster.Modules))
	for _, module := range roster.Modules {
		modules = append(modules, NewModuleResponse(module))
	}

	return RosterResponse{
		RosterSummary: NewRosterSummary(roster),
		CreatedAt:     roster.CreatedAt,
		Modules:       modules,
	}
}

// NewModuleResponse maps a module model.
func NewModuleResponse(module models.RosterModule) ModuleResponse {
	subjects := make([]SubjectResponse, 0, len(module.Subjects))
	for _, subject := range module.Subjects {
		subjects = append(subjects, NewSubjectResponse(subject))
	}
	return ModuleResponse{ID: module.ID, Name: module.Name, Subjects: subjects}
}

// NewSubjectResponse maps a subject model.
func NewSubjectResponse(subject models.RosterSubject) SubjectResponse {
	return SubjectResponse{
		ID:          subject.ID,
		Name:        subject.Name,
		Exam:        grading.ScoreFromPtr(subject.Exam),
		Devoir:      grading.ScoreFromPtr(subject.Devoir),
		Coefficient: grading.ScoreFromPtr(subject.Coefficient),
	}
}

// GradingRoster converts a stored roster to the engine input.
func GradingRoster(roster models.Roster) grading.Roster {
	modules := make([]grading.ModuleInput, 0, len(roster.Modules))
	for _, module := range roster.Modules {
		subjects := make([]grading.SubjectInput, 0, len(module.Subjects))
		for _, subject := range module.Subjects {
			subjects = append(subjects, grading.SubjectInput{
				Name:        subject.Name,
				Exam:        grading.ScoreFromPtr(subject.Exam),
				Devoir:      grading.ScoreFromPtr(subject.Devoir),
				Coefficient: grading.ScoreFromPtr(subject.Coefficient),
			})
		}
		modules = append(modules, grading.ModuleInput{Name: module.Name, Subjects: subjects})
	}
	return grading.Roster{Modules: modules}
}
