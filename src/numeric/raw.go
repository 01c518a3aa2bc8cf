package numeric

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Raw holds an amount exactly as an upstream source sent it. It decodes from a
// JSON string, a JSON number or null, so "1.234,56", 1234.56 and null are all
// accepted without loss.
type Raw string

// Decimal normalizes the raw value.
func (r Raw) Decimal() decimal.Decimal { return Normalize(r) }

// IsEmpty reports whether nothing was supplied.
func (r Raw) IsEmpty() bool { return Clean(string(r)) == "" }

// Decimal-valued constructors used when records are built in code.
func RawFromDecimal(d decimal.Decimal) Raw { return Raw(d.String()) }
func RawFromFloat(f float64) Raw       { return Raw(strconv.FormatFloat(f, 'f', -1, 64)) }

func (r *Raw) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = Raw(s)
		return nil
	}
	// A bare JSON number is exact; keep it out of the separator heuristic.
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return fmt.Errorf("numeric: invalid JSON number %s: %w", data, err)
	}
	*r = Raw(d.String())
	return nil
}

func (r Raw) MarshalJSON() ([]byte, error) {
	if r == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(r))
}
