package numeric

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSeparators(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.234,56", "1234.56"},
		{"1,234.56", "1234.56"},
		{"1234,56", "1234.56"},
		{"150,00", "150"},
		{"1 234,56 €", "1234.56"},
		{"1\u00a0234,56", "1234.56"},
		{"1\u202f234.5", "1234.5"},
		{"USD 1,234,567.89", "1234567.89"},
		{"1.234.567,8", "1234567.8"},
		{"-12,5", "-12.5"},
		{"−12.5", "-12.5"},
		{"+7", "7"},
		{",5", "0.5"},
		{"42", "42"},
		{"EUR -0.75", "-0.75"},
		{"(12.50)", "-12.5"},
		{"(1.234,56 €)", "-1234.56"},
		{"1e3", "1000"},
		{"1.5E-2", "0.015"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, warn := NormalizeChecked(tt.in)
			require.Nil(t, warn)
			require.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestNormalizeDefaultsToZero(t *testing.T) {
	for _, in := range []any{nil, "", "   ", (*string)(nil), Raw("")} {
		got, warn := NormalizeChecked(in)
		require.Nil(t, warn, "input %#v", in)
		require.True(t, got.IsZero())
	}

	for _, in := range []any{"abc", "12-", ".", math.NaN(), math.Inf(1), struct{}{}} {
		got, warn := NormalizeChecked(in)
		require.NotNil(t, warn, "input %#v", in)
		require.True(t, got.IsZero())
		require.True(t, Normalize(in).IsZero())
	}
}

func TestNormalizeNumbers(t *testing.T) {
	require.True(t, Normalize(180).Equal(decimal.NewFromInt(180)))
	require.True(t, Normalize(int64(-3)).Equal(decimal.NewFromInt(-3)))
	require.True(t, Normalize(12.25).Equal(decimal.RequireFromString("12.25")))
	require.True(t, Normalize(json.Number("99.5")).Equal(decimal.RequireFromString("99.5")))
	require.True(t, Normalize(json.Number("2.5e2")).Equal(decimal.NewFromInt(250)))
	d := decimal.RequireFromString("3.14")
	require.True(t, Normalize(d).Equal(d))
	require.True(t, Normalize(&d).Equal(d))
}

func TestRawUnmarshal(t *testing.T) {
	var payload struct {
		A Raw `json:"a"`
		B Raw `json:"b"`
		C Raw `json:"c"`
		D Raw `json:"d"`
	}
	err := json.Unmarshal([]byte(`{"a":"1.234,56","b":1234.56,"c":null}`), &payload)
	require.NoError(t, err)

	require.Equal(t, Raw("1.234,56"), payload.A)
	require.Equal(t, Raw("1234.56"), payload.B)
	require.True(t, payload.C.IsEmpty())
	require.True(t, payload.D.IsEmpty())
	require.True(t, payload.A.Decimal().Equal(payload.B.Decimal()))

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	require.JSONEq(t, `{"a":"1.234,56","b":"1234.56","c":null,"d":null}`, string(out))
}

func TestRawUnmarshalExponent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1e3", "1000"},
		{"1.5E-2", "0.015"},
		{"-2e0", "-2"},
		{"12.5", "12.5"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var r Raw
			require.NoError(t, json.Unmarshal([]byte(tt.in), &r))
			got, warn := NormalizeChecked(r)
			require.Nil(t, warn)
			require.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}
