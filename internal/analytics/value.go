// Package analytics turns tick series into bars, rolling statistics and pairs-trading signals.
//
// Results that may be absent (warm-up prefixes, zero variance, degenerate regressions) are
// carried as Value rather than NaN so callers must check before use.
package analytics

import (
	"encoding/json"
	"math"
)

// Value is an optional float: OK is false where the statistic is undefined.
type Value struct {
	V  float64
	OK bool
}

// Defined wraps v, treating NaN and ±Inf as undefined.
func Defined(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Value{}
	}
	return Value{V: v, OK: true}
}

// Undefined is the absent value.
func Undefined() Value {
	return Value{}
}

// Last returns the final element of a series, or Undefined for an empty one.
func Last(series []Value) Value {
	if len(series) == 0 {
		return Undefined()
	}
	return series[len(series)-1]
}

func undefinedSeries(n int) []Value {
	return make([]Value, n)
}

// MarshalJSON encodes undefined values as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.OK {
		return []byte("null"), nil
	}
	return json.Marshal(v.V)
}

// UnmarshalJSON accepts a number or null.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Undefined()
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Defined(f)
	return nil
}
