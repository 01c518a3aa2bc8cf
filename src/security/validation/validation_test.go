package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeLabel(t *testing.T) {
	require.Equal(t, "Dividend", SanitizeLabel("  <b>Dividend</b>\x00 "))
	require.Equal(t, "R&D", SanitizeLabel("R&D"))
	require.Equal(t, "", SanitizeLabel("<script>alert(1)</script>"))
}

func TestValidateTagName(t *testing.T) {
	require.NoError(t, ValidateTagName("Core"))

	err := ValidateTagName("   ")
	require.True(t, errors.Is(err, ErrValidationFailed))

	err = ValidateTagName(strings.Repeat("x", MaxTagNameLength+1))
	require.ErrorIs(t, err, ErrValidationFailed)
}

func TestValidateTickerAndCurrency(t *testing.T) {
	require.NoError(t, ValidateTicker("BRK.B"))
	require.NoError(t, ValidateTicker("VWCE.DE"))
	require.ErrorIs(t, ValidateTicker(""), ErrValidationFailed)
	require.ErrorIs(t, ValidateTicker("AA PL"), ErrValidationFailed)

	require.NoError(t, ValidateCurrencyCode("eur"))
	require.NoError(t, ValidateCurrencyCode(""))
	require.ErrorIs(t, ValidateCurrencyCode("EURO"), ErrValidationFailed)
}
