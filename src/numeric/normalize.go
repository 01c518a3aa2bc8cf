// Package numeric turns the loosely formatted amounts supplied by brokers and
// import sources into exact decimals.
package numeric

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/logger"
	"github.com/shopspring/decimal"
)

// ParseWarning reports an input that could not be read and was defaulted to zero.
type ParseWarning struct {
	Input  string
	Reason string
}

func (w *ParseWarning) Error() string {
	return fmt.Sprintf("numeric: %q defaulted to 0: %s", w.Input, w.Reason)
}

// Normalize converts raw into a decimal. It never fails: nil, empty and
// unparsable inputs yield zero, the latter with a logged ParseWarning.
func Normalize(raw any) decimal.Decimal {
	d, warn := NormalizeChecked(raw)
	if warn != nil {
		logger.L.Warn("Numeric value defaulted to zero", "input", warn.Input, "reason", warn.Reason)
	}
	return d
}

// NormalizeChecked is Normalize without logging; it returns the warning instead.
func NormalizeChecked(raw any) (decimal.Decimal, *ParseWarning) {
	switch v := raw.(type) {
	case nil:
		return decimal.Zero, nil
	case decimal.Decimal:
		return v, nil
	case *decimal.Decimal:
		if v == nil {
			return decimal.Zero, nil
		}
		return *v, nil
	case Raw:
		return NormalizeString(string(v))
	case *Raw:
		if v == nil {
			return decimal.Zero, nil
		}
		return NormalizeString(string(*v))
	case string:
		return NormalizeString(v)
	case *string:
		if v == nil {
			return decimal.Zero, nil
		}
		return NormalizeString(*v)
	case json.Number:
		return fromJSONNumber(v.String())
	case float64:
		return fromFloat(v)
	case *float64:
		if v == nil {
			return decimal.Zero, nil
		}
		return fromFloat(*v)
	case float32:
		return fromFloat(float64(v))
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int32:
		return decimal.NewFromInt32(v), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case uint:
		return decimal.NewFromUint64(uint64(v)), nil
	case uint32:
		return decimal.NewFromUint64(uint64(v)), nil
	case uint64:
		return decimal.NewFromUint64(v), nil
	default:
		return decimal.Zero, &ParseWarning{Input: fmt.Sprintf("%v", raw), Reason: fmt.Sprintf("unsupported type %T", raw)}
	}
}

func fromJSONNumber(s string) (decimal.Decimal, *ParseWarning) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &ParseWarning{Input: s, Reason: err.Error()}
	}
	return d, nil
}

func fromFloat(f float64) (decimal.Decimal, *ParseWarning) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, &ParseWarning{Input: fmt.Sprintf("%v", f), Reason: "not a finite number"}
	}
	return decimal.NewFromFloat(f), nil
}

// NormalizeString applies the separator heuristic to s. When both ',' and '.'
// appear, whichever occurs last is the decimal separator and the other is a
// thousands separator. A lone ',' is a decimal separator.
//
// Scientific notation such as "1e3" or "1.5E-2" is read as written.
func NormalizeString(s string) (decimal.Decimal, *ParseWarning) {
	if exponentForm.MatchString(s) {
		return fromJSONNumber(strings.TrimSpace(s))
	}
	cleaned := Clean(s)
	if cleaned == "" {
		if strings.TrimSpace(s) == "" {
			return decimal.Zero, nil
		}
		return decimal.Zero, &ParseWarning{Input: s, Reason: "no digits"}
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, &ParseWarning{Input: s, Reason: err.Error()}
	}
	return d, nil
}

var exponentForm = regexp.MustCompile(`^\s*[-+]?(\d+\.?\d*|\.\d+)[eE][-+]?\d+\s*$`)

// Clean reduces s to a canonical "-1234.56" form without parsing it. An
// amount wrapped in parentheses, as in "(12.50)", is negative.
func Clean(s string) string {
	if inner, ok := parenthesised(s); ok {
		cleaned := Clean(inner)
		if cleaned == "" || strings.HasPrefix(cleaned, "-") {
			return cleaned
		}
		return "-" + cleaned
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\u2212':
			b.WriteRune('-')
		case unicode.IsSpace(r) || r == '\u00a0' || r == '\u202f':
		case r >= '0' && r <= '9', r == ',', r == '.', r == '-', r == '+':
			b.WriteRune(r)
		}
	}
	compact := b.String()

	lastComma := strings.LastIndexByte(compact, ',')
	lastDot := strings.LastIndexByte(compact, '.')

	var sep, other byte
	switch {
	case lastComma >= 0 && lastDot >= 0 && lastComma > lastDot:
		sep, other = ',', '.'
	case lastComma >= 0 && lastDot >= 0:
		sep, other = '.', ','
	case lastComma >= 0:
		sep, other = ',', '.'
	case lastDot >= 0:
		sep, other = '.', ','
	default:
		return stripSigns(compact)
	}

	compact = strings.ReplaceAll(compact, string(other), "")
	last := strings.LastIndexByte(compact, sep)
	head := strings.ReplaceAll(compact[:last], string(sep), "")
	return stripSigns(head + "." + compact[last+1:])
}

func parenthesised(s string) (string, bool) {
	t := strings.TrimSpace(s)
	if len(t) < 2 || t[0] != '(' || t[len(t)-1] != ')' {
		return "", false
	}
	return t[1 : len(t)-1], true
}

// stripSigns keeps a single leading sign; a sign anywhere else makes the
// value unparsable, which is left for the decimal parser to report.
func stripSigns(s string) string {
	if s == "" {
		return s
	}
	sign := ""
	body := s
	if s[0] == '-' || s[0] == '+' {
		if s[0] == '-' {
			sign = "-"
		}
		body = s[1:]
	}
	if strings.Trim(body, ".") == "" {
		return ""
	}
	if strings.HasPrefix(body, ".") {
		body = "0" + body
	}
	if strings.HasSuffix(body, ".") {
		body += "0"
	}
	return sign + body
}
