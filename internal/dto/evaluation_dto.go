package dto

import "github.com/noah-isme/gradebook-api/internal/grading"

// EvaluateRequest is an ad-hoc grade sheet evaluated without persistence.
type EvaluateRequest struct {
	Policy  string                `json:"policy" validate:"omitempty,max=64"`
	Modules []grading.ModuleInput `json:"modules" validate:"omitempty,max=50,dive"`
}

// Roster returns the engine input carried by the request.
func (r EvaluateRequest) Roster() grading.Roster {
	return grading.Roster{Modules: r.Modules}
}

// EvaluationFrame is a websocket message sent back for each inbound sheet.
type EvaluationFrame struct {
	Type   string          `json:"type"`
	Seq    int64           `json:"seq"`
	Result *grading.Result `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}
