// backend/src/security/validation/field_validator.go
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var ErrValidationFailed = fmt.Errorf("validation failed")

const (
	DefaultMaxStringLength = 255
	MaxTagNameLength       = 64
	MaxTickerLength        = 32
	MaxCurrencyCodeLength  = 3
)

// --- String Validators ---

// ValidateStringNotEmpty checks if a string is not empty after trimming.
func ValidateStringNotEmpty(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidateStringMaxLength checks if a string's UTF-8 character count is within max bounds.
func ValidateStringMaxLength(s string, maxLength int, fieldName string) error {
	if utf8.RuneCountInString(s) > maxLength {
		return fmt.Errorf("%w: %s exceeds maximum length of %d characters", ErrValidationFailed, fieldName, maxLength)
	}
	return nil
}

// ValidateStringRegex checks if a string matches a given regex pattern.
func ValidateStringRegex(s string, pattern *regexp.Regexp, fieldName, formatDescription string) error {
	if !pattern.MatchString(s) {
		return fmt.Errorf("%w: %s ('%s') is not in the expected format (%s)", ErrValidationFailed, fieldName, s, formatDescription)
	}
	return nil
}

// --- Specific Format Validators ---

var (
	currencyCodeRegex = regexp.MustCompile(`^[A-Z]{3}$`)
	tickerRegex       = regexp.MustCompile(`^[A-Za-z0-9.\-_:^=]+$`)
)

// ValidateTagName checks an already sanitized tag name.
func ValidateTagName(s string) error {
	if err := ValidateStringNotEmpty(s, "tag name"); err != nil {
		return err
	}
	return ValidateStringMaxLength(s, MaxTagNameLength, "tag name")
}

// ValidateTicker checks that a ticker symbol is non-empty and plausible.
func ValidateTicker(s string) error {
	trimmed := strings.TrimSpace(s)
	if err := ValidateStringNotEmpty(trimmed, "ticker"); err != nil {
		return err
	}
	if err := ValidateStringMaxLength(trimmed, MaxTickerLength, "ticker"); err != nil {
		return err
	}
	return ValidateStringRegex(trimmed, tickerRegex, "ticker", "letters, digits and . - _ : ^ =")
}

// ValidateCurrencyCode checks if currency code is 3 uppercase letters.
func ValidateCurrencyCode(s string) error {
	trimmed := strings.ToUpper(strings.TrimSpace(s)) // Normalize to uppercase before validation
	if trimmed == "" {
		return nil
	}
	if err := ValidateStringMaxLength(trimmed, MaxCurrencyCodeLength, "Currency Code"); err != nil {
		return err
	}
	if !currencyCodeRegex.MatchString(trimmed) {
		return fmt.Errorf("%w: Currency Code ('%s') is not in the expected format (3 uppercase letters)", ErrValidationFailed, s)
	}
	return nil
}
