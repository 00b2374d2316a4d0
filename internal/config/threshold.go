package config

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ThresholdKind selects how a budget threshold is compared against an audit score.
type ThresholdKind int

const (
	// Numeric thresholds pass when score*100 >= Min.
	Numeric ThresholdKind = iota
	// Binary thresholds pass only on an exact match with the audit's 0/1 score.
	Binary
)

func (k ThresholdKind) String() string {
	if k == Binary {
		return "binary"
	}
	return "numeric"
}

// Threshold is a budget bar: a minimum percentage or an expected boolean outcome.
type Threshold struct {
	Kind ThresholdKind
	Min  float64
	Want bool
}

// AtLeast returns a numeric threshold.
func AtLeast(bar float64) Threshold { return Threshold{Kind: Numeric, Min: bar} }

// Exactly returns a binary threshold.
func Exactly(want bool) Threshold { return Threshold{Kind: Binary, Want: want} }

// Value returns the threshold as float64 or bool.
func (t Threshold) Value() any {
	if t.Kind == Binary {
		return t.Want
	}
	return t.Min
}

func (t Threshold) String() string {
	if t.Kind == Binary {
		return strconv.FormatBool(t.Want)
	}
	return strconv.FormatFloat(t.Min, 'f', -1, 64)
}

// MarshalJSON emits the threshold in descriptor form (a number or a boolean).
func (t Threshold) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Value())
}

// UnmarshalJSON accepts the descriptor form written by MarshalJSON.
func (t *Threshold) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	parsed, err := parseThreshold("threshold", v)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// parseThreshold converts a decoded descriptor value into a Threshold.
func parseThreshold(key string, v any) (Threshold, error) {
	var f float64
	switch n := v.(type) {
	case bool:
		return Exactly(n), nil
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint64:
		f = float64(n)
	case float64:
		f = n
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return Threshold{}, newConfigError("budget."+key, "invalid number %q", n.String())
		}
		f = parsed
	default:
		return Threshold{}, newConfigError("budget."+key, "threshold must be a number in [0,100] or a boolean, got %s", describe(v))
	}
	if f < 0 || f > 100 {
		return Threshold{}, newConfigError("budget."+key, "threshold %v out of range [0,100]", f)
	}
	return AtLeast(f), nil
}

func describe(v any) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%T %v", v, v)
}
