package domain

import (
	"bytes"
	"math"
	"strconv"
)

// Amount is a monetary or quantity value as serialized by the backend.
// The backend is inconsistent about numeric encoding: the same field may
// arrive as a JSON number, a decimal string ("150.50"), or null. Amount
// absorbs all three; anything unparseable decodes to 0 rather than failing
// the whole payload (fail-soft, see DESIGN.md).
type Amount float64

// UnmarshalJSON accepts a number, a numeric string, or null.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}
	if data[0] == '"' {
		data = bytes.Trim(data, `"`)
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		*a = 0
		return nil
	}
	*a = Amount(f)
	return nil
}

// MarshalJSON always encodes as a plain JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(a), 'f', -1, 64)), nil
}

// Float64 returns the underlying value.
func (a Amount) Float64() float64 { return float64(a) }
