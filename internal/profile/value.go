package profile

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Value is a single cell on the variable axis of a profile. It is either
// numeric or categorical; the zero Value is the empty categorical cell.
type Value struct {
	num     float64
	str     string
	numeric bool
}

func Num(v float64) Value {
	return Value{num: v, numeric: true}
}

func Cat(s string) Value {
	return Value{str: s}
}

func (v Value) IsNumeric() bool { return v.numeric }

func (v Value) Float() float64 { return v.num }

func (v Value) String() string {
	if v.numeric {
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	}
	return v.str
}

// Less orders numeric cells by value and categorical cells lexically.
// Numeric cells sort before categorical ones so mixed columns stay stable.
func (v Value) Less(o Value) bool {
	if v.numeric != o.numeric {
		return v.numeric
	}
	if v.numeric {
		return v.num < o.num
	}
	return v.str < o.str
}

func (v Value) Equal(o Value) bool {
	return v.numeric == o.numeric && v.num == o.num && v.str == o.str
}

// Key returns a stable map key for bucketing.
func (v Value) Key() string {
	if v.numeric {
		return "n:" + strconv.FormatFloat(v.num, 'b', -1, 64)
	}
	return "c:" + v.str
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.numeric {
		return json.Marshal(v.num)
	}
	return json.Marshal(v.str)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		*v = Value{}
		return nil
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*v = Cat(str)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("profile value must be a number or a string: %w", err)
	}
	*v = Num(f)
	return nil
}
