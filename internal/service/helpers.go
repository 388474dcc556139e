package service

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/noah-isme/gradebook-api/internal/grading"
)

var strictText = bluemonday.StrictPolicy()

// sanitizeText trims a user supplied label and strips any markup from it.
func sanitizeText(raw string) string {
	cleaned := strictText.Sanitize(strings.TrimSpace(raw))
	return strings.TrimSpace(html.UnescapeString(cleaned))
}

// normalizePolicy returns the canonical policy name, or "" when raw is blank.
func normalizePolicy(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	policy, err := grading.ParsePolicy(raw)
	if err != nil {
		return "", ErrInvalidPolicy
	}
	return policy.String(), nil
}

// resolvePolicy picks the request override, then the stored roster policy, then the engine default.
func resolvePolicy(engine *grading.Engine, override, stored string) (grading.Policy, error) {
	if strings.TrimSpace(override) != "" {
		policy, err := grading.ParsePolicy(override)
		if err != nil {
			return "", ErrInvalidPolicy
		}
		return policy, nil
	}
	if policy, err := grading.ParsePolicy(stored); err == nil {
		return policy, nil
	}
	return engine.Policy(), nil
}

// storedGrade clamps a grade for persistence; absent scores stay nil.
func storedGrade(score grading.Score) *float64 {
	if !score.Present {
		return nil
	}
	return grading.NewScore(grading.ClampGrade(score.Float())).Ptr()
}

// storedCoefficient keeps coefficients non-negative; the engine floor applies at evaluation.
func storedCoefficient(score grading.Score) *float64 {
	if !score.Present {
		return nil
	}
	return grading.NewScore(grading.ClampCoefficient(score.Float(), 0)).Ptr()
}

func clampPageSize(size int) int {
	if size <= 0 {
		return 20
	}
	if size > 100 {
		return 100
	}
	return size
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
