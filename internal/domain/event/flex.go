package event

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// FlexString accepts a JSON string or number. Any other JSON value decodes
// to the empty string.
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = FlexString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err == nil {
		*s = FlexString(num.String())
		return nil
	}
	*s = ""
	return nil
}

func (s FlexString) String() string {
	return strings.TrimSpace(string(s))
}

// FlexInt accepts a JSON number or a numeric string. Anything else decodes to 0.
type FlexInt int

func (n *FlexInt) UnmarshalJSON(data []byte) error {
	*n = 0
	var num json.Number
	if err := json.Unmarshal(data, &num); err == nil {
		*n = parseFlexInt(num.String())
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*n = parseFlexInt(strings.TrimSpace(str))
	}
	return nil
}

func parseFlexInt(s string) FlexInt {
	if i, err := strconv.Atoi(s); err == nil {
		return FlexInt(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return FlexInt(int(f))
	}
	return 0
}
