package grading

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Score is a raw grade cell as typed by a user. Present is false when the cell was left empty.
type Score struct {
	Value   float64
	Present bool
}

// NewScore returns a present score holding v.
func NewScore(v float64) Score {
	return Score{Value: v, Present: true}
}

// ParseScore converts user input into a Score. A comma is accepted as decimal separator and
// the longest numeric prefix is used, so "12,5/20" yields 12.5. Unparsable input is present with value 0.
func ParseScore(raw string) Score {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Score{}
	}

	normalized := strings.Replace(trimmed, ",", ".", 1)
	if value, err := strconv.ParseFloat(normalized, 64); err == nil {
		return NewScore(finiteOrZero(value))
	}

	prefix := numericPrefix(normalized)
	value, err := strconv.ParseFloat(prefix, 64)
	if err != nil {
		return NewScore(0)
	}
	return NewScore(finiteOrZero(value))
}

// Float returns the score value, or 0 when absent.
func (s Score) Float() float64 {
	if !s.Present {
		return 0
	}
	return finiteOrZero(s.Value)
}

// Ptr returns nil for an absent score.
func (s Score) Ptr() *float64 {
	if !s.Present {
		return nil
	}
	v := s.Float()
	return &v
}

// ScoreFromPtr is the inverse of Ptr.
func ScoreFromPtr(v *float64) Score {
	if v == nil {
		return Score{}
	}
	return NewScore(*v)
}

// MarshalJSON encodes absent scores as null.
func (s Score) MarshalJSON() ([]byte, error) {
	if !s.Present {
		return []byte("null"), nil
	}
	return json.Marshal(s.Float())
}

// UnmarshalJSON accepts numbers, numeric strings and null.
func (s *Score) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*s = Score{}
		return nil
	}

	var raw interface{}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case float64:
		*s = NewScore(finiteOrZero(v))
	case string:
		*s = ParseScore(v)
	default:
		*s = NewScore(0)
	}
	return nil
}

// ClampGrade bounds a grade to [0, 20]. NaN becomes 0.
func ClampGrade(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(math.Max(v, 0), MaxGrade)
}

// ClampCoefficient raises v to min when it is below it or not a number.
func ClampCoefficient(v, min float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < min {
		return min
	}
	return v
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func numericPrefix(s string) string {
	end := 0
	seenDot := false
	seenDigit := false
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			seenDigit = true
			end = i + 1
		case r == '.' && !seenDot:
			seenDot = true
		case (r == '-' || r == '+') && i == 0:
		default:
			if !seenDigit {
				return ""
			}
			return s[:end]
		}
	}
	if !seenDigit {
		return ""
	}
	return s[:end]
}
