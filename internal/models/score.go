package models

import (
	"encoding/json"
	"fmt"
)

// Score is a feedback score. On the wire it is a JSON number (float or
// integer) or a boolean; absence is modeled by a nil *Score. Anything else
// is rejected at decode time.
type Score struct {
	number  float64
	boolean bool
	isBool  bool
}

// NumberScore returns a numeric score.
func NumberScore(v float64) Score {
	return Score{number: v}
}

// BoolScore returns a boolean score.
func BoolScore(v bool) Score {
	return Score{boolean: v, isBool: true}
}

// IsBool reports whether the score was supplied as a boolean.
func (s Score) IsBool() bool {
	return s.isBool
}

// Float64 returns the score as a number. Boolean scores report 1 or 0.
func (s Score) Float64() float64 {
	if s.isBool {
		if s.boolean {
			return 1
		}
		return 0
	}
	return s.number
}

func (s Score) MarshalJSON() ([]byte, error) {
	if s.isBool {
		return json.Marshal(s.boolean)
	}
	return json.Marshal(s.number)
}

func (s *Score) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*s = BoolScore(b)
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("score must be a number or a boolean, got %s", data)
	}
	*s = NumberScore(n)
	return nil
}
